package main

import (
	"github.com/openstandia/connector-csv/csvconn/connector"

	"github.com/spf13/cobra"
)

var schemaAll bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema derived from the csv headers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if schemaAll {
			return render(cmd.OutOrStdout(), conn.Schema())
		}

		h, err := conn.Handler(objectClass)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), []*connector.Schema{h.Schema()})
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaAll, "all", false, "print every object class")
	rootCmd.AddCommand(schemaCmd)
}
