package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docbase"
)

var (
	restorePath  string
	restoreMerge bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load collection files from --path back into the database",
	Long: `restore reads every "*.json" file under --path and loads it into the
database directory. Without --merge each file entirely replaces the live
collection of the same name. With --merge, every document in the backup
file is upserted by id into the live collection instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB("")
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if err := registerCollectionsFromDir(db, restorePath); err != nil {
			return err
		}
		if err := db.Restore(restorePath, restoreMerge); err != nil {
			return err
		}
		fmt.Printf("restored from %q\n", restorePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVar(&restorePath, "path", "", "source directory")
	restoreCmd.Flags().BoolVar(&restoreMerge, "merge", false, "upsert by id instead of replacing each collection")
	restoreCmd.MarkFlagRequired("path")
}
