package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_JSONLayout(t *testing.T) {
	doc := NewDocument()
	doc.Append(0, Node{ID: "a", Title: "A"})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"version", "level0", "level1", "level2", "level3", "consumed"} {
		assert.Contains(t, fields, key)
	}
}

func TestDocument_Normalize(t *testing.T) {
	var doc Document
	doc.Level0 = []Node{{ID: "a"}, {ID: "b"}}
	doc.Consumed[0] = 7
	doc.Consumed[1] = -2

	doc.Normalize()

	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Equal(t, 2, doc.Consumed[0])
	assert.Equal(t, 0, doc.Consumed[1])
	assert.NotNil(t, doc.Level3)
	assert.Equal(t, 0, doc.Pending(0))
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument()
	doc.Append(1, Node{ID: "s", SourceEntries: []SourceRef{{ID: "a", Title: "A"}}})

	clone := doc.Clone()
	clone.Level1[0].SourceEntries[0].Title = "changed"
	clone.Append(0, Node{ID: "x"})

	assert.Equal(t, "A", doc.Level1[0].SourceEntries[0].Title)
	assert.Empty(t, doc.Level0)
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel(0))
	assert.True(t, ValidLevel(3))
	assert.False(t, ValidLevel(-1))
	assert.False(t, ValidLevel(4))
}
