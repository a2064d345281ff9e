package internal

import (
	"net/url"

	"github.com/lychee-technology/apischema"
)

// RequiredMarker is the value a checked isRequired checkbox submits.
// An unchecked box submits nothing.
const RequiredMarker = "true"

// FormNode is the form-shaped view of a SchemaNode used as editor defaults.
type FormNode struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Example     string      `json:"example"`
	Mock        string      `json:"mock"`
	IsRequired  string      `json:"isRequired,omitempty"`
	Children    []*FormNode `json:"children"`
	ArrayElem   *FormNode   `json:"arrayElem,omitempty"`
}

// Required reports whether the presence marker is set.
func (n *FormNode) Required() bool {
	return n.IsRequired != ""
}

func requiredMarker(required bool) string {
	if required {
		return RequiredMarker
	}
	return ""
}

// ToForm converts a schema tree into editor defaults. ARRAY nodes never
// expose children in form shape, even if the stored data carried some.
func ToForm(node *apischema.SchemaNode) *FormNode {
	if node == nil {
		return nil
	}
	form := &FormNode{
		Name:        node.Name,
		Type:        string(node.Type),
		Description: node.Description,
		Example:     node.Example,
		Mock:        node.Mock,
		IsRequired:  requiredMarker(node.IsRequired),
		Children:    []*FormNode{},
		ArrayElem:   ToForm(node.ArrayElem),
	}
	if node.Type != apischema.NodeTypeArray {
		for _, child := range node.Children {
			form.Children = append(form.Children, ToForm(child))
		}
	}
	return form
}

// FormParam is one row of a parameter table in form shape.
type FormParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Example     string `json:"example"`
	Description string `json:"description"`
	IsRequired  string `json:"isRequired,omitempty"`
}

func toFormParams(params []apischema.RequestParam) []FormParam {
	out := make([]FormParam, 0, len(params))
	for _, p := range params {
		out = append(out, FormParam{
			Name:        p.Name,
			Type:        string(p.Type),
			Example:     p.Example,
			Description: p.Description,
			IsRequired:  requiredMarker(p.IsRequired),
		})
	}
	return out
}

// FormDefaults holds every default value of the API edit form.
type FormDefaults struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	QueryParams []FormParam       `json:"queryParams"`
	Headers     []FormParam       `json:"headers"`
	BodyType    string            `json:"bodyType"`
	BodyForm    []FormParam       `json:"bodyForm"`
	BodyRaw     apischema.BodyRaw `json:"bodyRaw"`
	BodyJSON    *FormNode         `json:"bodyJson,omitempty"`
	Response    *FormNode         `json:"response,omitempty"`
}

// ApiDataToForm builds the edit form defaults of a stored API. The response
// tree is taken from the 200 status.
func ApiDataToForm(data *apischema.ApiData) *FormDefaults {
	if data == nil {
		return nil
	}
	d := &FormDefaults{
		Name:        data.Name,
		Path:        data.Path,
		Method:      string(data.Method),
		QueryParams: toFormParams(data.QueryParams),
		Headers:     toFormParams(data.Headers),
		BodyType:    string(data.BodyType),
		BodyForm:    toFormParams(data.BodyForm),
		BodyRaw:     data.BodyRaw,
		BodyJSON:    ToForm(data.BodyJSON),
		Response:    ToForm(data.ResponseOK()),
	}
	if data.Description != nil {
		d.Description = *data.Description
	}
	return d
}

// Params returns the rows of the named parameter table.
func (d *FormDefaults) Params(group string) []FormParam {
	if d == nil {
		return nil
	}
	switch group {
	case FieldQueryParams:
		return d.QueryParams
	case FieldHeaders:
		return d.Headers
	case FieldBodyForm:
		return d.BodyForm
	}
	return nil
}

// Tree returns the defaults of the tree bound to prefix.
func (d *FormDefaults) Tree(prefix string) *FormNode {
	if d == nil {
		return nil
	}
	switch prefix {
	case string(apischema.PartBodyJSON):
		return d.BodyJSON
	case string(apischema.PartResponse):
		return d.Response
	}
	return nil
}

// WriteFields flattens the defaults into the fields a browser would submit
// for them.
func (d *FormDefaults) WriteFields(values url.Values) {
	values.Set(FieldName, d.Name)
	values.Set(FieldPathValue, d.Path)
	values.Set(FieldMethod, d.Method)
	values.Set(FieldDescription, d.Description)
	values.Set(FieldBodyType, d.BodyType)
	values.Set(FieldBodyRaw+"."+FieldExample, d.BodyRaw.Example)
	values.Set(FieldBodyRaw+"."+FieldDescription, d.BodyRaw.Description)

	for _, group := range ParamGroups {
		for i, p := range d.Params(group) {
			WriteParamFields(values, ParamPath(group, i), p)
		}
	}
	if d.BodyJSON != nil {
		WriteNodeFields(values, NodePath(string(apischema.PartBodyJSON)), d.BodyJSON, NodeRoot)
	}
	if d.Response != nil {
		WriteNodeFields(values, NodePath(string(apischema.PartResponse)), d.Response, NodeRoot)
	}
}

// WriteParamFields writes one parameter row.
func WriteParamFields(values url.Values, path FieldPath, p FormParam) {
	values.Set(path.Attr(FieldName).String(), p.Name)
	if p.Type != "" {
		values.Set(path.Attr(FieldType).String(), p.Type)
	}
	values.Set(path.Attr(FieldExample).String(), p.Example)
	values.Set(path.Attr(FieldDescription).String(), p.Description)
	if p.IsRequired != "" {
		values.Set(path.Attr(FieldIsRequired).String(), p.IsRequired)
	}
}

// NodeRole is the position of a node in its tree. It decides which inputs
// are disabled and therefore absent from a submission.
type NodeRole int

const (
	NodeChild NodeRole = iota
	NodeRoot
	NodeArrayElem
)

// WriteNodeFields writes a node and its subtree. Disabled inputs are left
// out: the root and array element names, the array element isRequired box,
// and the example and mock of OBJECT and ARRAY nodes.
func WriteNodeFields(values url.Values, path FieldPath, node *FormNode, role NodeRole) {
	if role == NodeChild {
		values.Set(path.Attr(FieldName).String(), node.Name)
	}
	values.Set(path.Attr(FieldType).String(), node.Type)
	values.Set(path.Attr(FieldDescription).String(), node.Description)

	container := apischema.NodeType(node.Type).IsContainer()
	if !container {
		values.Set(path.Attr(FieldExample).String(), node.Example)
		values.Set(path.Attr(FieldMock).String(), node.Mock)
	}
	if role != NodeArrayElem && node.IsRequired != "" {
		values.Set(path.Attr(FieldIsRequired).String(), node.IsRequired)
	}

	for i, child := range node.Children {
		WriteNodeFields(values, path.Child(i), child, NodeChild)
	}
	if node.ArrayElem != nil {
		WriteNodeFields(values, path.ArrayElem(), node.ArrayElem, NodeArrayElem)
	}
}
