package apischema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchemaVersion is the dialect of exported schemas.
const JSONSchemaVersion = "https://json-schema.org/draft/2020-12/schema"

// ToJSONSchema converts a schema tree into a JSON Schema document.
func ToJSONSchema(node *SchemaNode) (*jsonschema.Schema, error) {
	if node == nil {
		return nil, NewValidationError("", "schema is missing")
	}
	s, err := toJSONSchema(node)
	if err != nil {
		return nil, err
	}
	s.Schema = JSONSchemaVersion
	return s, nil
}

func toJSONSchema(node *SchemaNode) (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{Description: node.Description}

	switch node.Type {
	case NodeTypeObject:
		s.Type = "object"
		s.Properties = make(map[string]*jsonschema.Schema, len(node.Children))
		for _, child := range node.Children {
			if _, dup := s.Properties[child.Name]; dup {
				return nil, NewValidationError(child.Name, "duplicate property name")
			}
			cs, err := toJSONSchema(child)
			if err != nil {
				return nil, err
			}
			s.Properties[child.Name] = cs
			s.PropertyOrder = append(s.PropertyOrder, child.Name)
			if child.IsRequired {
				s.Required = append(s.Required, child.Name)
			}
		}
	case NodeTypeArray:
		s.Type = "array"
		if node.ArrayElem != nil {
			items, err := toJSONSchema(node.ArrayElem)
			if err != nil {
				return nil, err
			}
			s.Items = items
		}
	case NodeTypeString:
		s.Type = "string"
	case NodeTypeInt:
		s.Type = "integer"
	case NodeTypeFloat:
		s.Type = "number"
	case NodeTypeBoolean:
		s.Type = "boolean"
	default:
		return nil, NewValidationError(node.Name, fmt.Sprintf("unknown node type %q", node.Type))
	}

	if !node.Type.IsContainer() && node.Example != "" {
		if v, ok := parseScalar(node.Type, node.Example); ok {
			s.Examples = []any{v}
		}
	}
	return s, nil
}

// BuildExample renders a sample document for the tree. Scalars use their
// example text, or their mock text when useMock is set, parsed by type.
// Unparseable or empty text yields the zero value of the type.
func BuildExample(node *SchemaNode, useMock bool) any {
	if node == nil {
		return nil
	}
	switch node.Type {
	case NodeTypeObject:
		obj := make(map[string]any, len(node.Children))
		for _, child := range node.Children {
			obj[child.Name] = BuildExample(child, useMock)
		}
		return obj
	case NodeTypeArray:
		if node.ArrayElem == nil {
			return []any{}
		}
		return []any{BuildExample(node.ArrayElem, useMock)}
	}

	text := node.Example
	if useMock {
		text = node.Mock
	}
	if v, ok := parseScalar(node.Type, text); ok {
		return v
	}
	switch node.Type {
	case NodeTypeInt:
		return int64(0)
	case NodeTypeFloat:
		return float64(0)
	case NodeTypeBoolean:
		return false
	}
	return ""
}

func parseScalar(t NodeType, text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	switch t {
	case NodeTypeString:
		return text, true
	case NodeTypeInt:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		return v, err == nil
	case NodeTypeFloat:
		v, err := strconv.ParseFloat(trimmed, 64)
		return v, err == nil
	case NodeTypeBoolean:
		v, err := strconv.ParseBool(trimmed)
		return v, err == nil
	}
	return nil, false
}

// ValidateExample checks doc against the JSON Schema of the tree.
func ValidateExample(node *SchemaNode, doc any) error {
	s, err := ToJSONSchema(node)
	if err != nil {
		return err
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return NewInternalError("resolve exported schema", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return NewValidationError(node.Name, err.Error()).WithCause(err)
	}
	return nil
}
