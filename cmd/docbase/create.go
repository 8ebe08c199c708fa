package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docbase"
)

var createCollection string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(createCollection)
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if err := docbase.CreateCollection(db, createCollection); err != nil {
			return err
		}
		fmt.Printf("created collection %q\n", createCollection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createCollection, "collection", "", "collection name")
	createCmd.MarkFlagRequired("collection")
}
