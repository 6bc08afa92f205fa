package main

import (
	"github.com/openstandia/connector-csv/csvconn/connector"

	"github.com/spf13/cobra"
)

var (
	searchUID   string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List the objects of the csv file",
	Long: `List the objects of the csv file in file order. With --uid only the
object with that identifier is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var query *connector.Query
		if searchUID != "" {
			query = &connector.Query{UID: searchUID}
		}

		objects := make([]*connector.Object, 0)
		err := conn.Search(cmd.Context(), objectClass, query, func(obj *connector.Object) bool {
			objects = append(objects, obj)
			return searchLimit <= 0 || len(objects) < searchLimit
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), objects)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchUID, "uid", "", "only return the object with this identifier")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "stop after this many objects, 0 for all")
	rootCmd.AddCommand(searchCmd)
}
