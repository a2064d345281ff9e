package apischema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) *SchemaNode {
	t.Helper()
	id := mustScalar(t, "id", NodeTypeInt).Required()
	id.Example = "42"
	id.Mock = "@integer"
	id.Description = "identifier"

	price := mustScalar(t, "price", NodeTypeFloat)
	price.Example = "9.5"

	tag := mustScalar(t, "", NodeTypeString)
	tag.Example = "new"
	tag.Mock = "@word"

	active := mustScalar(t, "active", NodeTypeBoolean)
	active.Example = "yes"

	return NewObjectNode(RootNodeName, id, price, NewArrayNode("tags", tag), active)
}

func TestToJSONSchema(t *testing.T) {
	s, err := ToJSONSchema(sampleTree(t))
	require.NoError(t, err)

	assert.Equal(t, JSONSchemaVersion, s.Schema)
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"id"}, s.Required)
	assert.Equal(t, []string{"id", "price", "tags", "active"}, s.PropertyOrder)

	id := s.Properties["id"]
	require.NotNil(t, id)
	assert.Equal(t, "integer", id.Type)
	assert.Equal(t, "identifier", id.Description)
	assert.Equal(t, []any{int64(42)}, id.Examples)

	assert.Equal(t, "number", s.Properties["price"].Type)

	tags := s.Properties["tags"]
	assert.Equal(t, "array", tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, "string", tags.Items.Type)

	// "yes" is not a boolean literal, so no example is attached
	assert.Empty(t, s.Properties["active"].Examples)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"object"`)
}

func TestToJSONSchema_Errors(t *testing.T) {
	_, err := ToJSONSchema(nil)
	assert.Error(t, err)

	dup := NewObjectNode(RootNodeName, mustScalar(t, "a", NodeTypeString), mustScalar(t, "a", NodeTypeInt))
	_, err = ToJSONSchema(dup)
	assert.True(t, IsValidationError(err))
}

func TestBuildExample(t *testing.T) {
	tree := sampleTree(t)

	example := BuildExample(tree, false)
	assert.Equal(t, map[string]any{
		"id":     int64(42),
		"price":  9.5,
		"tags":   []any{"new"},
		"active": false,
	}, example)

	mock := BuildExample(tree, true).(map[string]any)
	assert.Equal(t, int64(0), mock["id"], "unparseable mock text falls back to zero")
	assert.Equal(t, []any{"@word"}, mock["tags"])

	assert.Equal(t, []any{}, BuildExample(NewArrayNode("list", nil), false))
	assert.Nil(t, BuildExample(nil, false))
}

func TestValidateExample(t *testing.T) {
	tree := sampleTree(t)

	require.NoError(t, ValidateExample(tree, BuildExample(tree, false)))

	decode := func(raw string) map[string]any {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))
		return doc
	}

	assert.NoError(t, ValidateExample(tree, decode(`{"id": 7, "tags": ["a", "b"]}`)))

	err := ValidateExample(tree, decode(`{"tags": []}`))
	assert.True(t, IsValidationError(err), "missing required id")

	assert.Error(t, ValidateExample(tree, decode(`{"id": "seven"}`)))
}
