package main

import (
	"github.com/openstandia/connector-csv/csvconn/connector"

	"github.com/spf13/cobra"
)

var syncToken string

type syncOutput struct {
	Result  *connector.SyncResult    `json:"result" yaml:"result"`
	Changes []*connector.ChangeEntry `json:"changes" yaml:"changes"`
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Report changes since a token",
	Long: `Report a create-or-update change for every object when the csv file
differs from the snapshot of --token. Without a valid token only a new
token is issued. Pass the returned token to the next call.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := syncOutput{Changes: make([]*connector.ChangeEntry, 0)}
		result, err := conn.Sync(cmd.Context(), objectClass, syncToken, func(entry *connector.ChangeEntry) bool {
			out.Changes = append(out.Changes, entry)
			return true
		})
		if err != nil {
			return err
		}
		out.Result = result
		return render(cmd.OutOrStdout(), out)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a token for the current csv file content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := conn.LatestToken(cmd.Context(), objectClass)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]string{"token": token.String()})
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncToken, "token", "t", "", "token returned by the previous sync")
	rootCmd.AddCommand(syncCmd, tokenCmd)
}
