package internal

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/lychee-technology/apischema"
)

// The form structs mirror the flat form after ExpandValues. Every leaf is a
// pointer so that an absent field can be told apart from an empty one.

type apiForm struct {
	Name        *string     `mapstructure:"name" validate:"required"`
	Path        *string     `mapstructure:"path" validate:"required"`
	Method      *string     `mapstructure:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Description *string     `mapstructure:"description"`
	PathParams  []paramForm `mapstructure:"pathParams" validate:"omitempty,dive"`
	QueryParams []paramForm `mapstructure:"queryParams" validate:"omitempty,dive"`
	Headers     []paramForm `mapstructure:"headers" validate:"omitempty,dive"`
	BodyType    *string     `mapstructure:"bodyType" validate:"required,oneof=FORM JSON RAW"`
	BodyForm    []paramForm `mapstructure:"bodyForm" validate:"omitempty,dive"`
	BodyRaw     bodyRawForm `mapstructure:"bodyRaw"`
	BodyJSON    *nodeForm   `mapstructure:"bodyJson" validate:"required"`
	Response    *nodeForm   `mapstructure:"response" validate:"required"`
}

type bodyRawForm struct {
	Example     *string `mapstructure:"example" validate:"required"`
	Description *string `mapstructure:"description" validate:"required"`
}

type paramForm struct {
	Name        *string `mapstructure:"name"`
	Type        *string `mapstructure:"type" validate:"omitempty,oneof=STRING FILE OBJECT ARRAY INT FLOAT BOOLEAN"`
	Example     *string `mapstructure:"example"`
	Description *string `mapstructure:"description"`
	IsRequired  *string `mapstructure:"isRequired"`
}

type nodeForm struct {
	Name        *string     `mapstructure:"name"`
	Type        *string     `mapstructure:"type" validate:"required,oneof=OBJECT ARRAY STRING INT FLOAT BOOLEAN"`
	Description *string     `mapstructure:"description"`
	Example     *string     `mapstructure:"example"`
	Mock        *string     `mapstructure:"mock"`
	IsRequired  *string     `mapstructure:"isRequired"`
	Children    []*nodeForm `mapstructure:"children" validate:"omitempty,dive"`
	ArrayElem   *nodeForm   `mapstructure:"arrayElem"`
}

// Normalizer turns a flat form submission into ApiData. It is safe for
// concurrent use and performs no I/O.
type Normalizer struct {
	validate *validator.Validate
	limits   ExpandLimits
	maxRows  int
}

// NewNormalizer creates a Normalizer bounded by the editor limits. Zero limits are not enforced.
func NewNormalizer(cfg apischema.EditorConfig) *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Normalizer{
		validate: v,
		limits:   ExpandLimits{MaxDepth: cfg.MaxDepth, MaxFields: cfg.MaxFields},
		maxRows:  cfg.MaxRows,
	}
}

// Normalize validates the submission and builds the normalized API data.
// On failure the returned error is an apischema.ValidationReport keyed by
// field path, and no data is returned.
//
// Tree rules: the root is renamed "root" and array elements "items";
// nodes without a name are dropped together with their subtree; missing
// text attributes become empty strings; isRequired is true when present;
// OBJECT nodes keep only children, ARRAY nodes keep only their element
// schema (never required) and scalar nodes keep neither. Only scalar nodes
// keep example and mock text.
func (n *Normalizer) Normalize(values url.Values) (*apischema.ApiData, error) {
	expanded, err := ExpandValues(values, n.limits)
	if err != nil {
		return nil, err
	}

	var form apiForm
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &form,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, apischema.NewInternalError("create form decoder", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, apischema.ValidationReport{"form": "malformed submission: " + err.Error()}
	}

	report := apischema.ValidationReport{}
	n.checkLimits(report, &form)
	if report.HasErrors() {
		return nil, report
	}

	trimForm(&form)
	if err := n.validate.Struct(&form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apischema.NewInternalError("validate form", err)
		}
		for _, fe := range verrs {
			report.Add(fieldPath(fe.Namespace()), fieldMessage(fe))
		}
		return nil, report
	}

	checkDuplicateNames(report, NodePath(string(apischema.PartBodyJSON)), form.BodyJSON)
	checkDuplicateNames(report, NodePath(string(apischema.PartResponse)), form.Response)
	if report.HasErrors() {
		return nil, report
	}

	data := &apischema.ApiData{
		Name:        *form.Name,
		Path:        *form.Path,
		Method:      apischema.RequestMethod(*form.Method),
		PathParams:  []apischema.RequestParam{},
		QueryParams: normalizeParams(form.QueryParams),
		Headers:     normalizeParams(form.Headers),
		BodyType:    apischema.BodyType(*form.BodyType),
		BodyForm:    normalizeParams(form.BodyForm),
		BodyRaw: apischema.BodyRaw{
			Example:     *form.BodyRaw.Example,
			Description: *form.BodyRaw.Description,
		},
		BodyJSON: normalizeNode(form.BodyJSON, NodeRoot),
		Response: map[string]*apischema.SchemaNode{
			apischema.ResponseStatusOK: normalizeNode(form.Response, NodeRoot),
		},
	}
	if desc := deref(form.Description); desc != "" {
		data.Description = &desc
	}
	return data, nil
}

// checkLimits bounds the row counts. Depth was already enforced per field by ExpandValues.
func (n *Normalizer) checkLimits(report apischema.ValidationReport, form *apiForm) {
	if n.maxRows > 0 {
		groups := map[string][]paramForm{
			FieldPathParams:  form.PathParams,
			FieldQueryParams: form.QueryParams,
			FieldHeaders:     form.Headers,
			FieldBodyForm:    form.BodyForm,
		}
		for group, rows := range groups {
			if len(rows) > n.maxRows {
				report.Add(group, fmt.Sprintf("has %d rows, at most %d are allowed", len(rows), n.maxRows))
			}
		}
	}
	n.checkNodeLimits(report, NodePath(string(apischema.PartBodyJSON)), form.BodyJSON)
	n.checkNodeLimits(report, NodePath(string(apischema.PartResponse)), form.Response)
}

func (n *Normalizer) checkNodeLimits(report apischema.ValidationReport, path FieldPath, node *nodeForm) {
	if node == nil {
		return
	}
	if n.maxRows > 0 && len(node.Children) > n.maxRows {
		report.Add(path.Key(FieldChildren).String(), fmt.Sprintf("has %d rows, at most %d are allowed", len(node.Children), n.maxRows))
	}
	for i, child := range node.Children {
		n.checkNodeLimits(report, path.Child(i), child)
	}
	n.checkNodeLimits(report, path.ArrayElem(), node.ArrayElem)
}

// checkDuplicateNames reports every child of an OBJECT node that reuses the
// name of an earlier sibling. Nameless children are pruned later and are skipped.
func checkDuplicateNames(report apischema.ValidationReport, path FieldPath, node *nodeForm) {
	if node == nil {
		return
	}
	switch apischema.NodeType(deref(node.Type)) {
	case apischema.NodeTypeObject:
		seen := make(map[string]bool, len(node.Children))
		for i, child := range node.Children {
			if child == nil || deref(child.Name) == "" {
				continue
			}
			name := *child.Name
			if seen[name] {
				report.Add(path.Child(i).Attr(FieldName).String(), apischema.DuplicateNameMessage)
			}
			seen[name] = true
			checkDuplicateNames(report, path.Child(i), child)
		}
	case apischema.NodeTypeArray:
		checkDuplicateNames(report, path.ArrayElem(), node.ArrayElem)
	}
}

// fieldPath strips the struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return fmt.Sprintf("failed the %s check", fe.Tag())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// trimForm trims the general fields and parameter rows. Tree text is kept verbatim.
func trimForm(form *apiForm) {
	trimPtr(form.Name)
	trimPtr(form.Path)
	trimPtr(form.Description)
	trimPtr(form.BodyRaw.Example)
	trimPtr(form.BodyRaw.Description)
	for _, rows := range [][]paramForm{form.PathParams, form.QueryParams, form.Headers, form.BodyForm} {
		for i := range rows {
			trimPtr(rows[i].Name)
			trimPtr(rows[i].Example)
			trimPtr(rows[i].Description)
			if rows[i].Type != nil && *rows[i].Type == "" {
				rows[i].Type = nil
			}
		}
	}
}

func normalizeParams(rows []paramForm) []apischema.RequestParam {
	out := make([]apischema.RequestParam, 0, len(rows))
	for _, row := range rows {
		name := deref(row.Name)
		if name == "" {
			continue
		}
		paramType := apischema.ParamTypeString
		if row.Type != nil {
			paramType = apischema.ParamType(*row.Type)
		}
		out = append(out, apischema.RequestParam{
			Name:        name,
			Type:        paramType,
			Example:     deref(row.Example),
			Description: deref(row.Description),
			IsRequired:  row.IsRequired != nil,
		})
	}
	return out
}

// normalizeNode builds the node for f, or returns nil when the node has no
// name and must be pruned. Validation has already guaranteed a type.
func normalizeNode(f *nodeForm, role NodeRole) *apischema.SchemaNode {
	if f == nil {
		return nil
	}
	name := deref(f.Name)
	switch role {
	case NodeRoot:
		name = apischema.RootNodeName
	case NodeArrayElem:
		name = apischema.ArrayElemName
	}
	if name == "" {
		return nil
	}

	node := &apischema.SchemaNode{
		Name:        name,
		Type:        apischema.NodeType(deref(f.Type)),
		Description: deref(f.Description),
		Example:     deref(f.Example),
		Mock:        deref(f.Mock),
		IsRequired:  f.IsRequired != nil && role != NodeArrayElem,
		Children:    []*apischema.SchemaNode{},
	}

	if node.Type.IsContainer() {
		node.Example = ""
		node.Mock = ""
	}

	switch node.Type {
	case apischema.NodeTypeObject:
		for _, child := range f.Children {
			if c := normalizeNode(child, NodeChild); c != nil {
				node.Children = append(node.Children, c)
			}
		}
	case apischema.NodeTypeArray:
		node.ArrayElem = normalizeNode(f.ArrayElem, NodeArrayElem)
	}
	return node
}
