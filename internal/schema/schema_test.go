package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbase/internal/codec"
)

func TestCheckReadOnlyOnVersionMismatch(t *testing.T) {
	assert.False(t, Check("1.0", "1.0"))
	assert.True(t, Check("1.0", "1.1"))
}

func TestApplyOpsRenameAddRemoveRetype(t *testing.T) {
	docs := []codec.Doc{
		{"id": "a", "host": "web-1", "retries": "3"},
	}
	ops := []Op{
		{Kind: OpRename, Path: "host", NewPath: "hostname"},
		{Kind: OpAdd, Path: "region", Default: "us-east"},
		{Kind: OpRetype, Path: "retries", Converter: "toInt"},
		{Kind: OpRemove, Path: "id"},
	}

	out, err := ApplyOps(docs, ops)
	require.NoError(t, err)
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, "web-1", d["hostname"])
	assert.NotContains(t, d, "host")
	assert.Equal(t, "us-east", d["region"])
	assert.Equal(t, float64(3), d["retries"])
	assert.NotContains(t, d, "id")
}

func TestApplyOpsDoesNotMutateInput(t *testing.T) {
	docs := []codec.Doc{{"id": "a", "name": "x"}}
	_, err := ApplyOps(docs, []Op{{Kind: OpRemove, Path: "name"}})
	require.NoError(t, err)
	assert.Equal(t, "x", docs[0]["name"], "input documents must be left untouched")
}

func TestApplyOpsFailsOnUnknownConverter(t *testing.T) {
	docs := []codec.Doc{{"retries": "3"}}
	_, err := ApplyOps(docs, []Op{{Kind: OpRetype, Path: "retries", Converter: "toNowhere"}})
	assert.Error(t, err)
}

func TestApplyOpsAddLeavesExistingValueAlone(t *testing.T) {
	docs := []codec.Doc{{"region": "eu-west"}}
	out, err := ApplyOps(docs, []Op{{Kind: OpAdd, Path: "region", Default: "us-east"}})
	require.NoError(t, err)
	assert.Equal(t, "eu-west", out[0]["region"])
}

func TestLoadUpdateFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "update.yaml")
	yamlSrc := `
targetVersion: "1.1"
ops:
  - rename:
      old: host
      new: hostname
  - add:
      path: region
      default: us-east
  - retype:
      path: retries
      converter: toInt
  - remove: id
`
	require.NoError(t, os.WriteFile(path, []byte(yamlSrc), 0o644))

	update, err := LoadUpdateFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.1", update.TargetVersion)
	require.Len(t, update.Ops, 4)

	ops, err := ResolveOps(update.Ops)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, OpRename, ops[0].Kind)
	assert.Equal(t, "host", ops[0].Path)
	assert.Equal(t, "hostname", ops[0].NewPath)
	assert.Equal(t, OpAdd, ops[1].Kind)
	assert.Equal(t, OpRetype, ops[2].Kind)
	assert.Equal(t, "toInt", ops[2].Converter)
	assert.Equal(t, OpRemove, ops[3].Kind)
	assert.Equal(t, "id", ops[3].Path)
}

func TestApplyResolvesRawOpsThenApplies(t *testing.T) {
	docs := []codec.Doc{{"host": "web-1"}}
	rawOps := []yamlOp{{Rename: &renameSpec{Old: "host", New: "hostname"}}}

	out, err := Apply(docs, rawOps)
	require.NoError(t, err)
	assert.Equal(t, "web-1", out[0]["hostname"])
}
