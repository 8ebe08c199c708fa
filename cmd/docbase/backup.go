package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupPath string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot every collection into a fresh file tree at --path",
	Long: `backup opens every collection file already present under the database
directory (it has no registered descriptors of its own to decide which
collections exist) and copies each one, ciphertext intact, to --path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB("")
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if err := openEveryCollection(db); err != nil {
			return err
		}
		if err := db.Backup(backupPath); err != nil {
			return err
		}
		fmt.Printf("backed up to %q\n", backupPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupPath, "path", "", "destination directory")
	backupCmd.MarkFlagRequired("path")
}
