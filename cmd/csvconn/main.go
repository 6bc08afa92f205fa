package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/connector"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Exit codes by error kind
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitStructural    = 3
	exitIO            = 4
)

var (
	cfgFile      string
	objectClass  string
	outputFormat string
	verbose      bool

	appConfig *config.Config
	conn      *connector.Connector
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   internal.DefaultAppCMDShortCut,
	Short: "Expose flat csv files as identity object classes",
	Long: `Reads delimited text files as object classes of an identity connector.

Every configured file is one object class. Records can be searched, and
changes are reported against snapshots of the file taken at each sync
token.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml or "+internal.DefaultGlobalConfig+")")
	rootCmd.PersistentFlags().StringVarP(&objectClass, "object-class", "o", internal.DefaultObjectClass, "object class to operate on")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return common.NewConfigurationError("load config", "%v", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	appConfig = cfg
	logger = logging.New(cfg.Logging)

	conn, err = connector.New(cfg, connector.Options{Logger: &logger})
	return err
}

// render writes v in the selected output format
func render(w io.Writer, v interface{}) error {
	switch strings.ToLower(outputFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return common.NewConfigurationError("render", "unknown output format %q", outputFormat)
	}
}

func exitCode(err error) int {
	switch {
	case common.IsConfiguration(err):
		return exitConfiguration
	case common.IsStructural(err):
		return exitStructural
	case common.IsIO(err):
		return exitIO
	default:
		return exitFailure
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
