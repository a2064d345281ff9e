package apischema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScalar(t *testing.T, name string, nodeType NodeType) *SchemaNode {
	t.Helper()
	n, err := NewScalarNode(name, nodeType)
	require.NoError(t, err)
	return n
}

// =============================================================================
// Constructors
// =============================================================================

func TestNewArrayNode_ForcesElementShape(t *testing.T) {
	elem := mustScalar(t, "whatever", NodeTypeString).Required()
	arr := NewArrayNode("tags", elem)

	require.NotNil(t, arr.ArrayElem)
	assert.Equal(t, ArrayElemName, arr.ArrayElem.Name)
	assert.False(t, arr.ArrayElem.IsRequired)
	assert.Empty(t, arr.Children)
}

func TestNewScalarNode_RejectsContainers(t *testing.T) {
	for _, nt := range []NodeType{NodeTypeObject, NodeTypeArray, NodeType("DATE")} {
		_, err := NewScalarNode("x", nt)
		assert.Error(t, err, nt)
	}
}

func TestNodeType_Valid(t *testing.T) {
	for _, nt := range NodeTypes {
		assert.True(t, nt.Valid(), nt)
	}
	assert.False(t, NodeType("").Valid())
	assert.False(t, NodeType("object").Valid())
	assert.True(t, NodeTypeArray.IsContainer())
	assert.False(t, NodeTypeInt.IsContainer())
}

// =============================================================================
// Validate
// =============================================================================

func TestSchemaNode_Validate(t *testing.T) {
	tests := []struct {
		name      string
		build     func() *SchemaNode
		wantField string
	}{
		{
			name: "valid nested tree",
			build: func() *SchemaNode {
				return NewObjectNode(RootNodeName,
					mustScalar(t, "id", NodeTypeInt).Required(),
					NewArrayNode("tags", mustScalar(t, "", NodeTypeString)),
					NewObjectNode("owner", mustScalar(t, "name", NodeTypeString)),
				)
			},
		},
		{
			name:      "root must be named root",
			build:     func() *SchemaNode { return NewObjectNode("body") },
			wantField: "name",
		},
		{
			name: "scalar with children",
			build: func() *SchemaNode {
				s := mustScalar(t, "id", NodeTypeString)
				s.Children = []*SchemaNode{mustScalar(t, "x", NodeTypeString)}
				return NewObjectNode(RootNodeName, s)
			},
			wantField: "children[0].children",
		},
		{
			name: "array with children",
			build: func() *SchemaNode {
				a := NewArrayNode("list", nil)
				a.Children = []*SchemaNode{mustScalar(t, "x", NodeTypeString)}
				return NewObjectNode(RootNodeName, a)
			},
			wantField: "children[0].children",
		},
		{
			name: "object with array element",
			build: func() *SchemaNode {
				o := NewObjectNode(RootNodeName)
				o.ArrayElem = mustScalar(t, "items", NodeTypeString)
				return o
			},
			wantField: "arrayElem",
		},
		{
			name: "required array element",
			build: func() *SchemaNode {
				a := NewArrayNode("list", mustScalar(t, "", NodeTypeString))
				a.ArrayElem.IsRequired = true
				return NewObjectNode(RootNodeName, a)
			},
			wantField: "children[0].arrayElem.isRequired",
		},
		{
			name: "nameless child",
			build: func() *SchemaNode {
				return NewObjectNode(RootNodeName, mustScalar(t, "", NodeTypeBoolean))
			},
			wantField: "children[0].name",
		},
		{
			name: "object with example",
			build: func() *SchemaNode {
				o := NewObjectNode("owner", mustScalar(t, "name", NodeTypeString))
				o.Example = `{"name":"x"}`
				return NewObjectNode(RootNodeName, o)
			},
			wantField: "children[0].example",
		},
		{
			name: "array with mock",
			build: func() *SchemaNode {
				a := NewArrayNode("tags", mustScalar(t, "", NodeTypeString))
				a.Mock = "@list"
				return NewObjectNode(RootNodeName, a)
			},
			wantField: "children[0].mock",
		},
		{
			name: "duplicate sibling names",
			build: func() *SchemaNode {
				return NewObjectNode(RootNodeName,
					mustScalar(t, "id", NodeTypeString),
					mustScalar(t, "name", NodeTypeString),
					mustScalar(t, "id", NodeTypeInt),
				)
			},
			wantField: "children[2].name",
		},
		{
			name: "same name at different levels",
			build: func() *SchemaNode {
				return NewObjectNode(RootNodeName,
					mustScalar(t, "id", NodeTypeString),
					NewObjectNode("owner", mustScalar(t, "id", NodeTypeString)),
				)
			},
		},
		{
			name: "unknown type",
			build: func() *SchemaNode {
				return NewObjectNode(RootNodeName, &SchemaNode{Name: "x", Type: "DATE"})
			},
			wantField: "children[0].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, ErrorTypeValidation, e.Type)
			assert.Equal(t, tt.wantField, e.Field)
		})
	}
}

// =============================================================================
// JSON encoding
// =============================================================================

func TestSchemaNode_MarshalJSON(t *testing.T) {
	root := NewObjectNode(RootNodeName,
		mustScalar(t, "id", NodeTypeString),
		NewArrayNode("ids", mustScalar(t, "", NodeTypeInt)),
	)
	root.Children[0].Children = nil

	data, err := json.Marshal(root)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "root", decoded["name"])
	assert.NotContains(t, decoded, "arrayElem")

	children := decoded["children"].([]any)
	require.Len(t, children, 2)

	id := children[0].(map[string]any)
	assert.Equal(t, []any{}, id["children"])
	assert.NotContains(t, id, "arrayElem")

	ids := children[1].(map[string]any)
	elem := ids["arrayElem"].(map[string]any)
	assert.Equal(t, "items", elem["name"])
	assert.Equal(t, "INT", elem["type"])
}

func TestApiData_Schema(t *testing.T) {
	body := NewObjectNode(RootNodeName)
	resp := NewObjectNode(RootNodeName, mustScalar(t, "ok", NodeTypeBoolean))
	data := &ApiData{
		BodyJSON: body,
		Response: map[string]*SchemaNode{ResponseStatusOK: resp},
	}

	assert.Same(t, body, data.Schema(PartBodyJSON))
	assert.Same(t, resp, data.Schema(PartResponse))
	assert.Nil(t, data.Schema(SchemaPart("headers")))
	assert.Nil(t, (&ApiData{}).ResponseOK())
	assert.True(t, PartResponse.Valid())
	assert.False(t, SchemaPart("bodyForm").Valid())
}

func TestSchemaNode_Walk(t *testing.T) {
	root := NewObjectNode(RootNodeName,
		NewObjectNode("a", mustScalar(t, "b", NodeTypeString)),
		NewArrayNode("c", NewObjectNode("", mustScalar(t, "d", NodeTypeFloat))),
	)

	var names []string
	maxDepth := 0
	root.Walk(func(n *SchemaNode, depth int) bool {
		names = append(names, n.Name)
		maxDepth = max(maxDepth, depth)
		return true
	})
	assert.Equal(t, []string{"root", "a", "b", "c", "items", "d"}, names)
	assert.Equal(t, 3, maxDepth)

	var shallow []string
	root.Walk(func(n *SchemaNode, depth int) bool {
		shallow = append(shallow, n.Name)
		return depth < 1
	})
	assert.Equal(t, []string{"root", "a", "c"}, shallow)
}
