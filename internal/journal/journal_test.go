package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbase/internal/codec"
)

func TestCreateEmptyThenLoad(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")

	require.NoError(t, j.CreateEmpty("1.0"))
	assert.True(t, j.Exists())

	loaded, err := j.Load()
	require.NoError(t, err)
	assert.Equal(t, "1.0", loaded.SchemaVersion)
	assert.Empty(t, loaded.Docs)
}

func TestCreateEmptyFailsIfAlreadyPopulated(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")
	require.NoError(t, j.Rewrite("1.0", []codec.Doc{{"id": "a"}}))

	err := j.CreateEmpty("1.0")
	assert.Error(t, err)
}

func TestRewriteThenLoadPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")

	docs := []codec.Doc{
		{"id": "a", "name": "first"},
		{"id": "b", "name": "second"},
	}
	require.NoError(t, j.Rewrite("1.0", docs))

	loaded, err := j.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Docs, 2)
	assert.Equal(t, "a", loaded.Docs[0].Doc["id"])
	assert.Equal(t, "b", loaded.Docs[1].Doc["id"])
	assert.Equal(t, 2, loaded.Docs[0].Line)
	assert.Equal(t, 3, loaded.Docs[1].Line)
}

func TestAppendAddsOneLine(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")
	require.NoError(t, j.CreateEmpty("1.0"))

	require.NoError(t, j.Append(codec.Doc{"id": "a"}))
	require.NoError(t, j.Append(codec.Doc{"id": "b"}))

	loaded, err := j.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Docs, 2)
	assert.Equal(t, "a", loaded.Docs[0].Doc["id"])
	assert.Equal(t, "b", loaded.Docs[1].Doc["id"])
}

func TestLoadFailsOnMissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	j := New(dir, "widgets")
	_, err := j.Load()
	assert.Error(t, err)
}

func TestLoadFailsOnCorruptLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	data := "{\"schemaVersion\":\"1.0\"}\n{not json}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	j := New(dir, "widgets")
	_, err := j.Load()
	assert.Error(t, err)
}

func TestLoadTolerantDropsTrailingPartialLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	data := "{\"schemaVersion\":\"1.0\"}\n{\"id\":\"a\"}\n{\"id\":\"b\"" // no closing brace/newline
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	j := New(dir, "widgets")
	loaded, err := j.LoadTolerant()
	require.NoError(t, err)
	require.Len(t, loaded.Docs, 1)
	assert.Equal(t, "a", loaded.Docs[0].Doc["id"])
}

func TestLoadTolerantFailsOnCorruptNonTrailingLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	data := "{\"schemaVersion\":\"1.0\"}\n{not json}\n{\"id\":\"b\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	j := New(dir, "widgets")
	_, err := j.LoadTolerant()
	assert.Error(t, err)
}

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")
	require.NoError(t, j.CreateEmpty("1.0"))
	require.True(t, j.Exists())

	require.NoError(t, j.Remove())
	assert.False(t, j.Exists())

	// Removing an already-absent file is not an error.
	assert.NoError(t, j.Remove())
}

func TestCleanupStaleTempRemovesLeftovers(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, "widgets")
	stale := filepath.Join(dir, ".widgets.deadbeef.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	j.CleanupStaleTemp()
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}
