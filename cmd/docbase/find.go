package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docbase"
)

var (
	findCollection string
	findQuery      string
	findOne        bool
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Evaluate an XPath-like query against a collection and print matches as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(findCollection)
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if findOne {
			doc, ok, err := docbase.FindOneCollection(db, findCollection, findQuery)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("null")
				return nil
			}
			return printJSON(doc)
		}

		docs, err := docbase.FindCollection(db, findCollection, findQuery)
		if err != nil {
			return err
		}
		return printJSON(docs)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(cmdOut())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().StringVar(&findCollection, "collection", "", "collection name")
	findCmd.Flags().StringVar(&findQuery, "query", "/.", "XPath-like query expression")
	findCmd.Flags().BoolVar(&findOne, "one", false, "stop at the first match")
	findCmd.MarkFlagRequired("collection")
}
