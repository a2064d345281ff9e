package apischema

import (
	"fmt"

	"github.com/goccy/go-json"
)

// NodeType is the kind of a schema node.
type NodeType string

const (
	NodeTypeObject  NodeType = "OBJECT"
	NodeTypeArray   NodeType = "ARRAY"
	NodeTypeString  NodeType = "STRING"
	NodeTypeInt     NodeType = "INT"
	NodeTypeFloat   NodeType = "FLOAT"
	NodeTypeBoolean NodeType = "BOOLEAN"
)

// NodeTypes lists every node type in the order the editor offers them.
var NodeTypes = []NodeType{
	NodeTypeObject,
	NodeTypeArray,
	NodeTypeString,
	NodeTypeInt,
	NodeTypeFloat,
	NodeTypeBoolean,
}

func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeObject, NodeTypeArray, NodeTypeString, NodeTypeInt, NodeTypeFloat, NodeTypeBoolean:
		return true
	}
	return false
}

// IsContainer reports whether nodes of this type carry nested nodes.
func (t NodeType) IsContainer() bool {
	return t == NodeTypeObject || t == NodeTypeArray
}

const (
	// RootNodeName is the fixed name of every tree root.
	RootNodeName = "root"
	// ArrayElemName is the fixed name of an array's element schema.
	ArrayElemName = "items"
)

// SchemaNode is one node of a body or response schema tree.
// Children is only populated for OBJECT nodes and ArrayElem only for ARRAY nodes.
type SchemaNode struct {
	Name        string        `json:"name"`
	Type        NodeType      `json:"type"`
	Description string        `json:"description"`
	Example     string        `json:"example"`
	Mock        string        `json:"mock"`
	IsRequired  bool          `json:"isRequired"`
	Children    []*SchemaNode `json:"children"`
	ArrayElem   *SchemaNode   `json:"arrayElem,omitempty"`
}

// NewObjectNode creates an OBJECT node holding the given children.
func NewObjectNode(name string, children ...*SchemaNode) *SchemaNode {
	if children == nil {
		children = []*SchemaNode{}
	}
	return &SchemaNode{Name: name, Type: NodeTypeObject, Children: children}
}

// NewArrayNode creates an ARRAY node. The element schema is renamed to
// ArrayElemName and is never required.
func NewArrayNode(name string, elem *SchemaNode) *SchemaNode {
	if elem != nil {
		elem.Name = ArrayElemName
		elem.IsRequired = false
	}
	return &SchemaNode{Name: name, Type: NodeTypeArray, Children: []*SchemaNode{}, ArrayElem: elem}
}

// NewScalarNode creates a STRING, INT, FLOAT or BOOLEAN node.
func NewScalarNode(name string, nodeType NodeType) (*SchemaNode, error) {
	if !nodeType.Valid() || nodeType.IsContainer() {
		return nil, fmt.Errorf("%q is not a scalar node type", nodeType)
	}
	return &SchemaNode{Name: name, Type: nodeType, Children: []*SchemaNode{}}, nil
}

// Required returns the node with IsRequired set. It is a convenience for building trees inline.
func (n *SchemaNode) Required() *SchemaNode {
	n.IsRequired = true
	return n
}

// DuplicateNameMessage reports a child named like an earlier sibling.
const DuplicateNameMessage = "duplicates the name of another field at this level"

// Validate checks the structural invariants of the tree rooted at n.
// The root must be named RootNodeName.
func (n *SchemaNode) Validate() error {
	if n == nil {
		return NewValidationError("", "schema is missing")
	}
	if n.Name != RootNodeName {
		return NewValidationError("name", fmt.Sprintf("root node must be named %q", RootNodeName))
	}
	return n.validate("", true)
}

func (n *SchemaNode) validate(path string, isRoot bool) error {
	field := func(attr string) string {
		if path == "" {
			return attr
		}
		return path + "." + attr
	}

	if !n.Type.Valid() {
		return NewValidationError(field("type"), fmt.Sprintf("unknown node type %q", n.Type))
	}
	if !isRoot && n.Name == "" {
		return NewValidationError(field("name"), "node name must not be empty")
	}

	if n.Type.IsContainer() {
		if n.Example != "" {
			return NewValidationError(field("example"), fmt.Sprintf("%s nodes cannot carry an example", n.Type))
		}
		if n.Mock != "" {
			return NewValidationError(field("mock"), fmt.Sprintf("%s nodes cannot carry a mock", n.Type))
		}
	}

	switch n.Type {
	case NodeTypeObject:
		if n.ArrayElem != nil {
			return NewValidationError(field("arrayElem"), "object nodes cannot carry an array element")
		}
		seen := make(map[string]bool, len(n.Children))
		for i, child := range n.Children {
			childPath := fmt.Sprintf("%s[%d]", field("children"), i)
			if child == nil {
				return NewValidationError(childPath, "child is missing")
			}
			if err := child.validate(childPath, false); err != nil {
				return err
			}
			if seen[child.Name] {
				return NewValidationError(childPath+".name", DuplicateNameMessage)
			}
			seen[child.Name] = true
		}
	case NodeTypeArray:
		if len(n.Children) > 0 {
			return NewValidationError(field("children"), "array nodes cannot carry children")
		}
		if n.ArrayElem != nil {
			if n.ArrayElem.IsRequired {
				return NewValidationError(field("arrayElem.isRequired"), "array elements cannot be required")
			}
			if err := n.ArrayElem.validate(field("arrayElem"), false); err != nil {
				return err
			}
		}
	default:
		if len(n.Children) > 0 {
			return NewValidationError(field("children"), fmt.Sprintf("%s nodes cannot carry children", n.Type))
		}
		if n.ArrayElem != nil {
			return NewValidationError(field("arrayElem"), fmt.Sprintf("%s nodes cannot carry an array element", n.Type))
		}
	}
	return nil
}

// MarshalJSON always writes children as a list.
func (n SchemaNode) MarshalJSON() ([]byte, error) {
	type plain SchemaNode
	p := plain(n)
	if p.Children == nil {
		p.Children = []*SchemaNode{}
	}
	return json.Marshal(p)
}

// Walk visits n and every descendant depth-first. Returning false stops descent below the visited node.
func (n *SchemaNode) Walk(fn func(node *SchemaNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *SchemaNode) walk(fn func(*SchemaNode, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
	n.ArrayElem.walk(fn, depth+1)
}

// ParamType is the type of a flat request parameter.
type ParamType string

const (
	ParamTypeString  ParamType = "STRING"
	ParamTypeFile    ParamType = "FILE"
	ParamTypeObject  ParamType = "OBJECT"
	ParamTypeArray   ParamType = "ARRAY"
	ParamTypeInt     ParamType = "INT"
	ParamTypeFloat   ParamType = "FLOAT"
	ParamTypeBoolean ParamType = "BOOLEAN"
)

// RequestParam is a row of the queryParams, headers or bodyForm tables.
type RequestParam struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Example     string    `json:"example"`
	Description string    `json:"description"`
	IsRequired  bool      `json:"isRequired"`
}

// RequestMethod is the HTTP method an API is documented for.
type RequestMethod string

const (
	MethodGet     RequestMethod = "GET"
	MethodPost    RequestMethod = "POST"
	MethodPut     RequestMethod = "PUT"
	MethodPatch   RequestMethod = "PATCH"
	MethodDelete  RequestMethod = "DELETE"
	MethodHead    RequestMethod = "HEAD"
	MethodOptions RequestMethod = "OPTIONS"
)

var RequestMethods = []RequestMethod{
	MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions,
}

// BodyType selects which request body representation is active.
type BodyType string

const (
	BodyTypeForm BodyType = "FORM"
	BodyTypeJSON BodyType = "JSON"
	BodyTypeRaw  BodyType = "RAW"
)

var BodyTypes = []BodyType{BodyTypeForm, BodyTypeJSON, BodyTypeRaw}

// BodyRaw is the free text request body.
type BodyRaw struct {
	Example     string `json:"example"`
	Description string `json:"description"`
}

// ResponseStatusOK is the only response status the editor manages.
const ResponseStatusOK = "200"

// ApiData is the persisted description of one API endpoint.
type ApiData struct {
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	Method      RequestMethod          `json:"method"`
	Description *string                `json:"description"`
	PathParams  []RequestParam         `json:"pathParams"`
	QueryParams []RequestParam         `json:"queryParams"`
	Headers     []RequestParam         `json:"headers"`
	BodyType    BodyType               `json:"bodyType"`
	BodyForm    []RequestParam         `json:"bodyForm"`
	BodyRaw     BodyRaw                `json:"bodyRaw"`
	BodyJSON    *SchemaNode            `json:"bodyJson"`
	Response    map[string]*SchemaNode `json:"response"`
}

// ResponseOK returns the schema of the 200 response, or nil.
func (d *ApiData) ResponseOK() *SchemaNode {
	if d == nil || d.Response == nil {
		return nil
	}
	return d.Response[ResponseStatusOK]
}

// SchemaPart names one of the two schema trees of an API.
type SchemaPart string

const (
	PartBodyJSON SchemaPart = "bodyJson"
	PartResponse SchemaPart = "response"
)

func (p SchemaPart) Valid() bool {
	return p == PartBodyJSON || p == PartResponse
}

// Schema returns the tree for the given part.
func (d *ApiData) Schema(part SchemaPart) *SchemaNode {
	switch part {
	case PartBodyJSON:
		return d.BodyJSON
	case PartResponse:
		return d.ResponseOK()
	}
	return nil
}

// FormSnapshot is the flat editor state sent to a client: the submitted
// field values plus the live row ids of every dynamic list, keyed by list path.
type FormSnapshot struct {
	Values map[string][]string `json:"values"`
	Rows   map[string][]int    `json:"rows"`
}
