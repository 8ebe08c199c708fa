package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID       string `json:"id" docbase:"id"`
	Name     string `json:"name"`
	Password string `json:"password" docbase:"secret"`
}

type nested struct {
	ID   string `docbase:"id,path=meta.id"`
	Name string
}

func TestRegisterDiscoversIDAndSecretTags(t *testing.T) {
	reg := NewRegistry()
	desc, err := Register[widget](reg, "widgets", "1.0")
	require.NoError(t, err)

	assert.Equal(t, "widgets", desc.CollectionName)
	assert.Equal(t, "id", desc.IDPath)
	assert.Equal(t, []string{"password"}, desc.SecretPaths)
}

func TestRegisterRejectsStructWithoutIDField(t *testing.T) {
	type noID struct {
		Name string
	}
	reg := NewRegistry()
	_, err := Register[noID](reg, "noids", "1.0")
	assert.Error(t, err)
}

func TestRegisterHonorsExplicitPath(t *testing.T) {
	reg := NewRegistry()
	desc, err := Register[nested](reg, "nested", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "meta.id", desc.IDPath)
}

func TestDescribeByNameAndByValue(t *testing.T) {
	reg := NewRegistry()
	desc, err := Register[widget](reg, "widgets", "1.0")
	require.NoError(t, err)

	byName, err := reg.DescribeByName("widgets")
	require.NoError(t, err)
	assert.Same(t, desc, byName)

	byValue, err := reg.DescribeByValue(&widget{})
	require.NoError(t, err)
	assert.Same(t, desc, byValue)

	byType, err := DescribeByType[widget](reg)
	require.NoError(t, err)
	assert.Same(t, desc, byType)
}

func TestDescribeByNameUnknownFails(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.DescribeByName("missing")
	assert.Error(t, err)
}

func TestGetIDAndSetID(t *testing.T) {
	reg := NewRegistry()
	desc, err := Register[widget](reg, "widgets", "1.0")
	require.NoError(t, err)

	doc := map[string]any{"id": "w1", "name": "sprocket"}
	id, err := desc.GetID(doc)
	require.NoError(t, err)
	assert.Equal(t, "w1", id)

	desc.SetID(doc, "w2")
	assert.Equal(t, "w2", doc["id"])
}

func TestGetIDFailsOnMissingPath(t *testing.T) {
	reg := NewRegistry()
	desc, err := Register[widget](reg, "widgets", "1.0")
	require.NoError(t, err)

	_, err = desc.GetID(map[string]any{"name": "sprocket"})
	assert.Error(t, err)
}

func TestRegisterNamedRequiresIDPath(t *testing.T) {
	reg := NewRegistry()
	err := RegisterNamed(reg, &Descriptor{CollectionName: "things"})
	assert.Error(t, err)
}

func TestRegisterNamedAcceptsProgrammaticDescriptor(t *testing.T) {
	reg := NewRegistry()
	desc := &Descriptor{CollectionName: "things", SchemaVersion: "1.0", IDPath: "id"}
	require.NoError(t, RegisterNamed(reg, desc))

	got, err := reg.DescribeByName("things")
	require.NoError(t, err)
	assert.Same(t, desc, got)
}

func TestRegisterRejectsCollisionOnDifferentType(t *testing.T) {
	reg := NewRegistry()
	_, err := Register[widget](reg, "shared", "1.0")
	require.NoError(t, err)

	_, err = Register[nested](reg, "shared", "1.0")
	assert.Error(t, err)
}

func TestNamesListsEveryRegisteredCollection(t *testing.T) {
	reg := NewRegistry()
	_, err := Register[widget](reg, "widgets", "1.0")
	require.NoError(t, err)
	_, err = Register[nested](reg, "nested", "1.0")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"widgets", "nested"}, reg.Names())
}
