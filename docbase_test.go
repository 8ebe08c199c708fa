package docbase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbase/internal/config"
	"docbase/internal/descriptor"
)

type server struct {
	ID       string `json:"id" docbase:"id"`
	Hostname string `json:"hostname"`
	Retries  int    `json:"retries"`
}

type account struct {
	ID       string `json:"id" docbase:"id"`
	Username string `json:"username"`
	Password string `json:"password" docbase:"secret"`
}

func openTestDB(t *testing.T, register func(*descriptor.Registry)) *DB {
	t.Helper()
	cfg := config.Default()
	cfg.DBFilesLocation = t.TempDir()
	cfg.DisableWatcher = true
	cfg.CipherSecret = "integration-test-secret"

	reg := descriptor.NewRegistry()
	if register != nil {
		register(reg)
	}
	db, err := Open(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })
	return db
}

func TestCreateInsertFind(t *testing.T) {
	db := openTestDB(t, func(r *descriptor.Registry) {
		_, err := descriptor.Register[server](r, "servers", "1.0")
		require.NoError(t, err)
	})

	require.NoError(t, Create[server](db))
	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1", Retries: 0}))
	require.NoError(t, Insert[server](db, &server{ID: "s2", Hostname: "web-2", Retries: 0}))

	found, err := Find[server](db, `/.[hostname='web-2']`)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "s2", found[0].ID)

	one, ok, err := FindByID[server](db, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web-1", one.Hostname)
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	db := openTestDB(t, func(r *descriptor.Registry) {
		_, err := descriptor.Register[server](r, "servers", "1.0")
		require.NoError(t, err)
	})

	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1"}))
	err := Insert[server](db, &server{ID: "s1", Hostname: "web-1-dup"})
	assert.Error(t, err)
}

func TestSaveUpsertRemove(t *testing.T) {
	db := openTestDB(t, func(r *descriptor.Registry) {
		_, err := descriptor.Register[server](r, "servers", "1.0")
		require.NoError(t, err)
	})

	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1"}))
	require.NoError(t, Save[server](db, &server{ID: "s1", Hostname: "web-1-renamed"}))

	one, ok, err := FindByID[server](db, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web-1-renamed", one.Hostname)

	require.NoError(t, Upsert[server](db, &server{ID: "s2", Hostname: "web-2"}))
	_, ok, err = FindByID[server](db, "s2")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, Remove[server](db, "s1"))
	_, ok, err = FindByID[server](db, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindAndModifyAndFindAndRemove(t *testing.T) {
	db := openTestDB(t, func(r *descriptor.Registry) {
		_, err := descriptor.Register[server](r, "servers", "1.0")
		require.NoError(t, err)
	})

	require.NoError(t, Insert[server](db,
		&server{ID: "s1", Hostname: "web-1", Retries: 1},
		&server{ID: "s2", Hostname: "web-2", Retries: 9},
	))

	n, err := FindAndModify[server](db, `/.[retries<5]`, Update{Ops: []UpdateOp{Set("retries", 100.0)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	one, _, err := FindByID[server](db, "s1")
	require.NoError(t, err)
	assert.Equal(t, 100, one.Retries)

	n, err = FindAndRemove[server](db, `/.[retries=9]`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, err := FindByID[server](db, "s2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretFieldRoundTripThroughFacade(t *testing.T) {
	db := openTestDB(t, func(r *descriptor.Registry) {
		_, err := descriptor.Register[account](r, "accounts", "1.0")
		require.NoError(t, err)
	})

	require.NoError(t, Insert[account](db, &account{ID: "a1", Username: "alice", Password: "hunter2"}))

	one, ok, err := FindByID[account](db, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hunter2", one.Password)

	raw, err := os.ReadFile(filepath.Join(db.Dir(), "accounts.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestCollectionBecomesReadOnlyOnSchemaVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.DisableWatcher = true

	reg1 := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg1, "servers", "1.0")
	require.NoError(t, err)
	db1, err := Open(cfg, reg1)
	require.NoError(t, err)
	require.NoError(t, Insert[server](db1, &server{ID: "s1", Hostname: "web-1"}))
	require.NoError(t, db1.Shutdown())

	reg2 := descriptor.NewRegistry()
	_, err = descriptor.Register[server](reg2, "servers", "2.0")
	require.NoError(t, err)
	db2, err := Open(cfg, reg2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Shutdown() })

	_, _, err = FindByID[server](db2, "s1")
	require.NoError(t, err)

	readOnly, err := IsReadOnly(db2, "servers")
	require.NoError(t, err)
	assert.True(t, readOnly)

	err = Insert[server](db2, &server{ID: "s2", Hostname: "web-2"})
	assert.Error(t, err)
}

func TestSchemaUpdateClearsReadOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.DisableWatcher = true

	reg1 := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg1, "servers", "1.0")
	require.NoError(t, err)
	db1, err := Open(cfg, reg1)
	require.NoError(t, err)
	require.NoError(t, Insert[server](db1, &server{ID: "s1", Hostname: "web-1"}))
	require.NoError(t, db1.Shutdown())

	reg2 := descriptor.NewRegistry()
	_, err = descriptor.Register[server](reg2, "servers", "2.0")
	require.NoError(t, err)
	db2, err := Open(cfg, reg2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Shutdown() })

	update := &SchemaUpdate{TargetVersion: "2.0"}
	require.NoError(t, ApplyCollectionSchemaUpdate[server](db2, update))

	readOnly, err := IsReadOnly(db2, "servers")
	require.NoError(t, err)
	assert.False(t, readOnly)

	require.NoError(t, Insert[server](db2, &server{ID: "s2", Hostname: "web-2"}))
}

func TestBackupAndRestoreReplace(t *testing.T) {
	dir := t.TempDir()
	backupDir := t.TempDir()

	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.DisableWatcher = true
	reg := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg, "servers", "1.0")
	require.NoError(t, err)

	db, err := Open(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })

	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1"}))
	require.NoError(t, db.Backup(backupDir))

	require.NoError(t, Insert[server](db, &server{ID: "s2", Hostname: "web-2"}))
	require.NoError(t, db.Restore(backupDir, false))

	_, ok, err := FindByID[server](db, "s2")
	require.NoError(t, err)
	assert.False(t, ok, "replace restore must drop documents written after the backup")

	one, ok, err := FindByID[server](db, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web-1", one.Hostname)
}

func TestBackupAndRestoreMerge(t *testing.T) {
	dir := t.TempDir()
	backupDir := t.TempDir()

	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.DisableWatcher = true
	reg := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg, "servers", "1.0")
	require.NoError(t, err)

	db, err := Open(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })

	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1"}))
	require.NoError(t, db.Backup(backupDir))

	require.NoError(t, Insert[server](db, &server{ID: "s2", Hostname: "web-2"}))
	require.NoError(t, db.Restore(backupDir, true))

	_, ok, err := FindByID[server](db, "s2")
	require.NoError(t, err)
	assert.True(t, ok, "merge restore must keep documents inserted after the backup")
	_, ok, err = FindByID[server](db, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOnCollectionFileModifiedNotifiesSubscriber(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.WatchDebounce = 20 * time.Millisecond

	reg := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg, "servers", "1.0")
	require.NoError(t, err)

	db, err := Open(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })

	require.NoError(t, Insert[server](db, &server{ID: "s1", Hostname: "web-1"}))

	notified := make(chan string, 1)
	db.OnCollectionFileModified(func(name string) {
		select {
		case notified <- name:
		default:
		}
	})

	path := filepath.Join(dir, "servers.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte(`{"id":"s2","hostname":"web-2","retries":0}`+"\n")...), 0o644))

	select {
	case name := <-notified:
		assert.Equal(t, "servers", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for collection-modified notification")
	}
}

func TestOnCollectionFileAddedNotifiesSubscriberForUnopenedCollection(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBFilesLocation = dir
	cfg.WatchDebounce = 20 * time.Millisecond

	reg := descriptor.NewRegistry()
	_, err := descriptor.Register[server](reg, "servers", "1.0")
	require.NoError(t, err)

	db, err := Open(cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })

	// "servers" has a registered descriptor but has never been created,
	// inserted into, or otherwise opened by this DB — the store has no
	// in-memory entry for it yet when the external file appears.
	notified := make(chan string, 1)
	db.OnCollectionFileAdded(func(name string) {
		select {
		case notified <- name:
		default:
		}
	})

	path := filepath.Join(dir, "servers.json")
	content := "{\"schemaVersion\":\"1.0\"}\n{\"id\":\"s1\",\"hostname\":\"web-1\",\"retries\":0}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case name := <-notified:
		assert.Equal(t, "servers", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for collection-added notification")
	}

	one, ok, err := FindByID[server](db, "s1")
	require.NoError(t, err)
	require.True(t, ok, "the newly-created collection must be loaded, not just notified about")
	assert.Equal(t, "web-1", one.Hostname)
}
