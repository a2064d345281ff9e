package editor

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
)

// Form is an editing session of one API description.
type Form struct {
	Name        string
	Path        string
	Method      apischema.RequestMethod
	Description string
	BodyType    apischema.BodyType
	BodyRaw     apischema.BodyRaw

	QueryParams *ParamTable
	Headers     *ParamTable
	BodyForm    *ParamTable
	BodyJSON    *Tree
	Response    *Tree

	submitting atomic.Bool
}

// NewForm starts a session from the defaults of a stored API, or a blank
// session for a new one when defaults is nil.
func NewForm(defaults *internal.FormDefaults) *Form {
	if defaults == nil {
		defaults = &internal.FormDefaults{
			Method:   string(apischema.MethodGet),
			BodyType: string(apischema.BodyTypeForm),
		}
	}
	return &Form{
		Name:        defaults.Name,
		Path:        defaults.Path,
		Method:      apischema.RequestMethod(defaults.Method),
		Description: defaults.Description,
		BodyType:    apischema.BodyType(defaults.BodyType),
		BodyRaw:     defaults.BodyRaw,
		QueryParams: NewParamTable(internal.FieldQueryParams, nil, defaults.QueryParams),
		Headers:     NewParamTable(internal.FieldHeaders, nil, defaults.Headers),
		BodyForm:    NewParamTable(internal.FieldBodyForm, BodyFormTypes, defaults.BodyForm),
		BodyJSON:    NewTree(string(apischema.PartBodyJSON), defaults.BodyJSON, false),
		Response:    NewTree(string(apischema.PartResponse), defaults.Response, true),
	}
}

// Table returns the parameter table bound to group.
func (f *Form) Table(group string) *ParamTable {
	switch group {
	case internal.FieldQueryParams:
		return f.QueryParams
	case internal.FieldHeaders:
		return f.Headers
	case internal.FieldBodyForm:
		return f.BodyForm
	}
	return nil
}

// Tree returns the schema tree bound to part.
func (f *Form) Tree(part apischema.SchemaPart) *Tree {
	switch part {
	case apischema.PartBodyJSON:
		return f.BodyJSON
	case apischema.PartResponse:
		return f.Response
	}
	return nil
}

// Values returns the flat fields a browser would submit for the session.
func (f *Form) Values() url.Values {
	values := url.Values{}
	values.Set(internal.FieldName, f.Name)
	values.Set(internal.FieldPathValue, f.Path)
	values.Set(internal.FieldMethod, string(f.Method))
	values.Set(internal.FieldDescription, f.Description)
	values.Set(internal.FieldBodyType, string(f.BodyType))
	values.Set(internal.FieldBodyRaw+"."+internal.FieldExample, f.BodyRaw.Example)
	values.Set(internal.FieldBodyRaw+"."+internal.FieldDescription, f.BodyRaw.Description)

	for _, group := range internal.ParamGroups {
		f.Table(group).WriteFields(values)
	}
	f.BodyJSON.WriteFields(values)
	f.Response.WriteFields(values)
	return values
}

// Snapshot captures the field values together with the row identities of
// every dynamic list, keyed by the path of the list.
func (f *Form) Snapshot() *apischema.FormSnapshot {
	rows := make(map[string][]int)
	for _, group := range internal.ParamGroups {
		rows[group] = f.Table(group).IDs()
	}
	f.BodyJSON.collectRows(rows)
	f.Response.collectRows(rows)
	return &apischema.FormSnapshot{
		Values: map[string][]string(f.Values()),
		Rows:   rows,
	}
}

// SaveFunc persists a submitted form.
type SaveFunc func(ctx context.Context, values url.Values) error

// Submitting reports whether a submission is being saved.
func (f *Form) Submitting() bool {
	return f.submitting.Load()
}

// Submit hands the current values to save. A second call made while the
// first is still saving fails with apischema.ErrSubmissionInFlight. The
// session is not modified, so a failed save can simply be retried.
func (f *Form) Submit(ctx context.Context, save SaveFunc) error {
	if !f.submitting.CompareAndSwap(false, true) {
		return apischema.ErrSubmissionInFlight
	}
	defer f.submitting.Store(false)
	return save(ctx, f.Values())
}
