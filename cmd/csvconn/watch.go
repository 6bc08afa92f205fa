package main

import (
	"context"
	"time"

	"github.com/openstandia/connector-csv/csvconn/connector"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/filesystem/watcher"

	"github.com/spf13/cobra"
)

var watchToken string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync every time a csv file changes",
	Long: `Watch the csv files and run a sync pass after each change, printing
the reported changes. Tokens are kept in memory between passes. Without
--object-class every configured object class is watched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		classes := conn.ObjectClasses()
		if cmd.Flags().Changed("object-class") {
			classes = []string{objectClass}
		}

		l := newLiveSync(conn, func(entry *connector.ChangeEntry) bool {
			if err := render(cmd.OutOrStdout(), entry); err != nil {
				logger.Warn().Err(err).Msg("Couldn't print change")
			}
			return true
		})
		if err := l.init(cmd.Context(), classes, watchToken); err != nil {
			return err
		}

		w, err := watcher.NewFileWatcher(watcher.Config{
			DebounceDelay: time.Duration(appConfig.Watch.DebounceMillis) * time.Millisecond,
			Logger:        &logger,
		}, l.files()...)
		if err != nil {
			return err
		}
		defer w.Close()
		w.Start()

		return l.run(cmd.Context(), w.Changes(), w.Errors())
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchToken, "token", "t", "", "initial token, a new one is issued when empty")
	rootCmd.AddCommand(watchCmd)
}

// liveSync keeps one token per object class and syncs the object classes
// of a file when it changes.
type liveSync struct {
	conn    *connector.Connector
	handle  connector.ChangeHandler
	tokens  map[string]string
	byFile  map[string][]string
	classes []string
}

func newLiveSync(c *connector.Connector, handle connector.ChangeHandler) *liveSync {
	return &liveSync{
		conn:   c,
		handle: handle,
		tokens: make(map[string]string),
		byFile: make(map[string][]string),
	}
}

// init resolves the files of the object classes and issues start tokens
func (l *liveSync) init(ctx context.Context, classes []string, token string) error {
	pathUtils := common.NewPathUtils()
	for _, name := range classes {
		h, err := l.conn.Handler(name)
		if err != nil {
			return err
		}

		start := token
		if start == "" {
			latest, err := h.LatestToken(ctx)
			if err != nil {
				return err
			}
			start = latest.String()
		}
		l.tokens[name] = start

		file := pathUtils.NormalizePath(h.Config().FilePath)
		l.byFile[file] = append(l.byFile[file], name)
		l.classes = append(l.classes, name)
		logger.Info().Str("object_class", name).Str("file", file).Str("token", start).Msg("Watching object class")
	}
	return nil
}

func (l *liveSync) files() []string {
	files := make([]string, 0, len(l.byFile))
	for f := range l.byFile {
		files = append(files, f)
	}
	return files
}

// run syncs on every batch until ctx is done or the watcher stops
func (l *liveSync) run(ctx context.Context, changes <-chan []watcher.Event, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			for _, name := range l.byFile[batch[0].Path] {
				l.sync(ctx, name)
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// sync runs one pass; on failure the previous token is kept for the retry
func (l *liveSync) sync(ctx context.Context, name string) {
	result, err := l.conn.Sync(ctx, name, l.tokens[name], l.handle)
	if err != nil {
		logger.Error().Err(err).Str("object_class", name).Msg("Live sync pass failed, keeping previous token")
		return
	}
	l.tokens[name] = result.Token.String()
}
