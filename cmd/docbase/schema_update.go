package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docbase"
)

var (
	schemaUpdateCollection string
	schemaUpdateFile       string
)

var schemaUpdateCmd = &cobra.Command{
	Use:   "schema-update",
	Short: "Apply a declarative YAML schema update to a collection",
	Long: `schema-update loads a CollectionSchemaUpdate from --file and applies
its rename/add/remove/retype operations to every document in --collection,
rewriting the file under the descriptor's declared --schema-version. A
collection left read-only by a prior version mismatch is cleared on
success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := docbase.LoadSchemaUpdate(schemaUpdateFile)
		if err != nil {
			return err
		}

		db, err := openDB(schemaUpdateCollection)
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if err := docbase.ApplyCollectionSchemaUpdateNamed(db, schemaUpdateCollection, update); err != nil {
			return err
		}
		fmt.Printf("applied schema update to %q\n", schemaUpdateCollection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaUpdateCmd)
	schemaUpdateCmd.Flags().StringVar(&schemaUpdateCollection, "collection", "", "collection name")
	schemaUpdateCmd.Flags().StringVar(&schemaUpdateFile, "file", "", "path to a YAML CollectionSchemaUpdate")
	schemaUpdateCmd.MarkFlagRequired("collection")
	schemaUpdateCmd.MarkFlagRequired("file")
}
