package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check the configuration and every csv file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := conn.Test(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d object class(es)\n", len(conn.ObjectClasses()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
