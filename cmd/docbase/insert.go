package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"docbase"
	"docbase/internal/codec"
)

var (
	insertCollection string
	insertDoc        string
	insertUpsert     bool
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert (or, with --upsert, upsert) one JSON document",
	Long: `Reads one JSON document from --doc, or from STDIN if --doc is not given,
and inserts it into --collection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := []byte(insertDoc)
		if insertDoc == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading document from stdin: %w", err)
			}
			raw = data
		}

		var doc codec.Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing document: %w", err)
		}

		db, err := openDB(insertCollection)
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if insertUpsert {
			if err := docbase.UpsertCollection(db, insertCollection, doc); err != nil {
				return err
			}
		} else if err := docbase.InsertCollection(db, insertCollection, doc); err != nil {
			return err
		}
		fmt.Printf("wrote 1 document to %q\n", insertCollection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insertCmd)
	insertCmd.Flags().StringVar(&insertCollection, "collection", "", "collection name")
	insertCmd.Flags().StringVar(&insertDoc, "doc", "", "JSON document (default: read from stdin)")
	insertCmd.Flags().BoolVar(&insertUpsert, "upsert", false, "upsert instead of insert")
	insertCmd.MarkFlagRequired("collection")
}
