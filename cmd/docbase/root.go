package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docbase/internal/config"
	"docbase/internal/descriptor"
	"docbase/internal/logger"

	"docbase"
)

var (
	dataPath      string
	idField       string
	schemaVersion string
	secretFields  []string
	cipherSecret  string
)

var rootCmd = &cobra.Command{
	Use:   "docbase",
	Short: "Inspect, back up, and restore a docbase database directory",
	Long: `docbase operates directly on a database directory of newline-delimited
JSON collection files, the same format the embedded library persists to.
It has no static entity types of its own: every collection it touches is
registered on the fly from --id-field/--secret flags, the way an
application embedding the library would register its own struct types.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Configure()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "database directory (default: $DOCBASE_DATA_PATH or ./data)")
	rootCmd.PersistentFlags().StringVar(&idField, "id-field", "id", "document identifier field path for the --collection flag")
	rootCmd.PersistentFlags().StringVar(&schemaVersion, "schema-version", "1.0", "declared schema version for the --collection flag")
	rootCmd.PersistentFlags().StringSliceVar(&secretFields, "secret", nil, "field path to treat as secret (repeatable)")
	rootCmd.PersistentFlags().StringVar(&cipherSecret, "cipher-secret", "", "symmetric key for secret fields (default: $DOCBASE_CIPHER_SECRET)")
}

// openDB builds a *docbase.DB from the persistent flags plus the
// environment, registering collectionName on the fly per --id-field and
// --secret.
func openDB(collectionName string) (*docbase.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataPath != "" {
		cfg.DBFilesLocation = dataPath
	}
	if cipherSecret != "" {
		cfg.CipherSecret = cipherSecret
	}
	// The CLI is a short-lived process per invocation; a background
	// watcher goroutine would just be torn down immediately.
	cfg.DisableWatcher = true

	reg := descriptor.NewRegistry()
	if collectionName != "" {
		desc := &descriptor.Descriptor{
			CollectionName: collectionName,
			SchemaVersion:  schemaVersion,
			IDPath:         idField,
			SecretPaths:    normalizeSecretPaths(secretFields),
		}
		if err := descriptor.RegisterNamed(reg, desc); err != nil {
			return nil, err
		}
	}

	return docbase.Open(cfg, reg)
}

// openEveryCollection registers and loads every "*.json" file already
// present under db's directory, under a generic descriptor keyed by the
// shared --id-field/--secret flags. Used by backup, which otherwise has
// no way to know what collections a bare database directory holds.
func openEveryCollection(db *docbase.DB) error {
	entries, err := os.ReadDir(db.Dir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		desc := &descriptor.Descriptor{
			CollectionName: name,
			SchemaVersion:  schemaVersion,
			IDPath:         idField,
			SecretPaths:    normalizeSecretPaths(secretFields),
		}
		if _, err := db.Registry().DescribeByName(name); err != nil {
			if err := descriptor.RegisterNamed(db.Registry(), desc); err != nil {
				return err
			}
		}
		// A no-op query forces the collection open (EnsureOpen loads an
		// existing file rather than creating one), which is all backup
		// needs before it can see the collection via Store.Names.
		if _, err := docbase.FindCollection(db, name, "/."); err != nil {
			return err
		}
	}
	return nil
}

// registerCollectionsFromDir registers a generic descriptor, per the shared
// --id-field/--secret flags, for every "*.json" file found directly under
// dir — without opening or loading any of them. restore uses this to learn
// what collections a backup tree holds before handing them to db.Restore.
func registerCollectionsFromDir(db *docbase.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if _, err := db.Registry().DescribeByName(name); err == nil {
			continue
		}
		desc := &descriptor.Descriptor{
			CollectionName: name,
			SchemaVersion:  schemaVersion,
			IDPath:         idField,
			SecretPaths:    normalizeSecretPaths(secretFields),
		}
		if err := descriptor.RegisterNamed(db.Registry(), desc); err != nil {
			return err
		}
	}
	return nil
}

func normalizeSecretPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
