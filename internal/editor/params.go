package editor

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
)

// BodyFormTypes are the types offered by the form body table.
var BodyFormTypes = []apischema.ParamType{apischema.ParamTypeString, apischema.ParamTypeFile}

// ParamRow is one row of a parameter table.
type ParamRow struct {
	id          int
	Name        string
	Type        apischema.ParamType
	Example     string
	Description string
	Required    bool
}

func (r *ParamRow) ID() int { return r.id }

// ParamTable edits one flat parameter list. A table without types has no
// type column: blank rows are submitted without a type and loaded rows keep
// the type they were stored with.
type ParamTable struct {
	group string
	types []apischema.ParamType
	seq   *internal.Sequencer
	rows  map[int]*ParamRow
}

// NewParamTable seeds the table from defaults, or with one blank row.
func NewParamTable(group string, types []apischema.ParamType, defaults []internal.FormParam) *ParamTable {
	t := &ParamTable{
		group: group,
		types: types,
		seq:   internal.NewSequencer(len(defaults)),
		rows:  make(map[int]*ParamRow),
	}
	for i, d := range defaults {
		row := t.blankRow(i + 1)
		row.Name = d.Name
		if pt := apischema.ParamType(d.Type); pt != "" && (len(types) == 0 || slices.Contains(types, pt)) {
			row.Type = pt
		}
		row.Example = d.Example
		row.Description = d.Description
		row.Required = d.IsRequired != ""
		t.rows[row.id] = row
	}
	return t
}

func (t *ParamTable) Group() string                { return t.group }
func (t *ParamTable) Types() []apischema.ParamType { return t.types }

func (t *ParamTable) blankRow(id int) *ParamRow {
	row := &ParamRow{id: id}
	if len(t.types) > 0 {
		row.Type = t.types[0]
	}
	return row
}

func (t *ParamTable) row(id int) *ParamRow {
	r, ok := t.rows[id]
	if !ok {
		r = t.blankRow(id)
		t.rows[id] = r
	}
	return r
}

// Rows returns the rows in order.
func (t *ParamTable) Rows() []*ParamRow {
	ids := t.seq.IDs()
	out := make([]*ParamRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.row(id))
	}
	return out
}

func (t *ParamTable) IDs() []int {
	return t.seq.IDs()
}

// Row returns the row with the given identity.
func (t *ParamTable) Row(id int) (*ParamRow, bool) {
	if !t.seq.Contains(id) {
		return nil, false
	}
	return t.row(id), true
}

// Add appends a blank row.
func (t *ParamTable) Add() *ParamRow {
	return t.row(t.seq.Allocate())
}

// Remove deletes a row; the table never becomes empty.
func (t *ParamTable) Remove(id int) {
	t.seq.RemoveAndEnsureNonEmpty(id)
	delete(t.rows, id)
}

// SetType changes the type of a row to one the table offers.
func (t *ParamTable) SetType(id int, pt apischema.ParamType) error {
	row, ok := t.Row(id)
	if !ok {
		return fmt.Errorf("%s has no row %d", t.group, id)
	}
	if !slices.Contains(t.types, pt) {
		return fmt.Errorf("%s does not offer type %q", t.group, pt)
	}
	row.Type = pt
	return nil
}

// WriteFields adds the fields a browser submits for this table.
func (t *ParamTable) WriteFields(values url.Values) {
	for i, row := range t.Rows() {
		p := internal.FormParam{
			Name:        row.Name,
			Type:        string(row.Type),
			Example:     row.Example,
			Description: row.Description,
		}
		if row.Required {
			p.IsRequired = internal.RequiredMarker
		}
		internal.WriteParamFields(values, internal.ParamPath(t.group, i), p)
	}
}
