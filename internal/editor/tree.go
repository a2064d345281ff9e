// Package editor holds the state of an API edit form: the general fields,
// the parameter tables and the two schema trees. Every dynamic list is
// backed by an internal.Sequencer, so rows keep their identity while the
// user adds, inserts and removes siblings. A session is owned by a single
// caller and is not safe for concurrent mutation.
package editor

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
)

var (
	ErrFixedName     = errors.New("name of this node is fixed")
	ErrDisabledInput = errors.New("input is disabled for this node")
	ErrNotRemovable  = errors.New("node cannot be removed")
	ErrNoSiblings    = errors.New("node cannot have siblings")
	ErrNotObject     = errors.New("only OBJECT nodes and the root take children")
	ErrDetached      = errors.New("node was removed from its tree")
)

// Tree edits the schema bound to one form prefix (bodyJson or response).
type Tree struct {
	prefix string
	isMock bool
	root   *Node
}

// NewTree starts a tree editor. A nil defaults value gives a blank tree:
// an OBJECT root with one empty child row. isMock selects which sample
// column the tree edits: mock for responses, example for request bodies.
func NewTree(prefix string, defaults *internal.FormNode, isMock bool) *Tree {
	t := &Tree{prefix: prefix, isMock: isMock}
	t.root = newNode(t, nil, internal.NodeRoot, 0, defaults)
	return t
}

func (t *Tree) Prefix() string { return t.prefix }
func (t *Tree) IsMock() bool   { return t.isMock }
func (t *Tree) Root() *Node    { return t.root }

// ToForm returns the mounted rows in form shape.
func (t *Tree) ToForm() *internal.FormNode {
	return t.root.toForm()
}

// WriteFields adds the fields a browser submits for this tree.
func (t *Tree) WriteFields(values url.Values) {
	internal.WriteNodeFields(values, internal.NodePath(t.prefix), t.ToForm(), internal.NodeRoot)
}

// Find returns the mounted node at a form path such as
// bodyJson.children[1].arrayElem.
func (t *Tree) Find(path string) (*Node, error) {
	fp, err := internal.ParseFieldPath(path)
	if err != nil {
		return nil, err
	}
	if fp[0].IsIndex || fp[0].Key != t.prefix {
		return nil, fmt.Errorf("path %q is outside tree %s", path, t.prefix)
	}

	node := t.root
	for i := 1; i < len(fp); i++ {
		seg := fp[i]
		switch {
		case seg.Key == internal.FieldArrayElem && !seg.IsIndex:
			node = node.ArrayElem()
		case seg.Key == internal.FieldChildren && !seg.IsIndex && i+1 < len(fp) && fp[i+1].IsIndex:
			i++
			children := node.Children()
			if fp[i].Index >= len(children) {
				return nil, fmt.Errorf("path %q: no row at index %d", path, fp[i].Index)
			}
			node = children[fp[i].Index]
		default:
			return nil, fmt.Errorf("path %q does not address a node", path)
		}
		if node == nil {
			return nil, fmt.Errorf("path %q: row is not mounted", path)
		}
	}
	return node, nil
}

func (t *Tree) collectRows(rows map[string][]int) {
	t.root.collectRows(rows)
}

// Node is one row of a tree editor. The rows below a node are mounted once
// the node is touched: the root always is, a node loaded from stored data
// is, and any other node becomes touched when its type is changed.
type Node struct {
	tree   *Tree
	parent *Node
	role   internal.NodeRole
	id     int

	name        string
	nodeType    apischema.NodeType
	description string
	example     string
	mock        string
	required    bool

	touched bool
	open    bool
	removed bool

	seq      *internal.Sequencer
	children map[int]*Node
	elem     *Node
}

func newNode(tree *Tree, parent *Node, role internal.NodeRole, id int, d *internal.FormNode) *Node {
	n := &Node{
		tree:     tree,
		parent:   parent,
		role:     role,
		id:       id,
		nodeType: apischema.NodeTypeString,
		touched:  role == internal.NodeRoot,
		open:     true,
		children: make(map[int]*Node),
	}
	if role == internal.NodeRoot {
		n.nodeType = apischema.NodeTypeObject
	}
	if d == nil {
		n.seq = internal.NewSequencer(1)
		return n
	}

	n.touched = true
	n.name = d.Name
	if t := apischema.NodeType(d.Type); t.Valid() {
		n.nodeType = t
	}
	n.description = d.Description
	n.example = d.Example
	n.mock = d.Mock
	n.required = d.Required() && role != internal.NodeArrayElem

	n.seq = internal.NewSequencer(len(d.Children))
	for i, child := range d.Children {
		id := i + 1
		n.children[id] = newNode(tree, n, internal.NodeChild, id, child)
	}
	if d.ArrayElem != nil {
		n.elem = newNode(tree, n, internal.NodeArrayElem, 0, d.ArrayElem)
	}
	return n
}

// ID is the row identity of the node among its siblings. It is zero for
// the root and for array elements.
func (n *Node) ID() int                  { return n.id }
func (n *Node) Role() internal.NodeRole  { return n.role }
func (n *Node) Type() apischema.NodeType { return n.nodeType }
func (n *Node) Description() string      { return n.description }
func (n *Node) Required() bool           { return n.required }
func (n *Node) Touched() bool            { return n.touched }
func (n *Node) Open() bool               { return n.open }
func (n *Node) Removed() bool            { return n.removed }

// Name returns the submitted name. Root and array element names are fixed.
func (n *Node) Name() string {
	switch n.role {
	case internal.NodeRoot:
		return apischema.RootNodeName
	case internal.NodeArrayElem:
		return apischema.ArrayElemName
	}
	return n.name
}

// Sample returns the value of the sample column the tree edits.
func (n *Node) Sample() string {
	if n.tree.isMock {
		return n.mock
	}
	return n.example
}

func (n *Node) Example() string { return n.example }
func (n *Node) Mock() string    { return n.mock }

// Path returns the form path of the node, or nil once it has been removed.
func (n *Node) Path() internal.FieldPath {
	if n.removed {
		return nil
	}
	switch n.role {
	case internal.NodeRoot:
		return internal.NodePath(n.tree.prefix)
	case internal.NodeArrayElem:
		parent := n.parent.Path()
		if parent == nil {
			return nil
		}
		return parent.ArrayElem()
	}
	parent := n.parent.Path()
	if parent == nil {
		return nil
	}
	return parent.Child(n.parent.seq.IndexOf(n.id))
}

// Hidden reports whether the row is currently out of view: a collapsed
// ancestor, or a parent whose type does not use this kind of row.
func (n *Node) Hidden() bool {
	if n.parent == nil {
		return false
	}
	if n.parent.Hidden() || !n.parent.open {
		return true
	}
	if n.role == internal.NodeArrayElem {
		return n.parent.nodeType != apischema.NodeTypeArray
	}
	return n.parent.nodeType != apischema.NodeTypeObject
}

func (n *Node) child(id int) *Node {
	c, ok := n.children[id]
	if !ok {
		c = newNode(n.tree, n, internal.NodeChild, id, nil)
		n.children[id] = c
	}
	return c
}

// Children returns the mounted child rows in order. Rows stay mounted
// whatever the current type; the normalizer drops them if the type does
// not use them.
func (n *Node) Children() []*Node {
	if !n.touched {
		return nil
	}
	ids := n.seq.IDs()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, n.child(id))
	}
	return out
}

// ChildIDs returns the row identities of the children in order.
func (n *Node) ChildIDs() []int {
	return n.seq.IDs()
}

// ArrayElem returns the mounted element schema row.
func (n *Node) ArrayElem() *Node {
	if !n.touched {
		return nil
	}
	if n.elem == nil {
		n.elem = newNode(n.tree, n, internal.NodeArrayElem, 0, nil)
	}
	return n.elem
}

func (n *Node) SetName(name string) error {
	if n.removed {
		return ErrDetached
	}
	if n.role != internal.NodeChild {
		return ErrFixedName
	}
	n.name = name
	return nil
}

// SetType changes the node type and mounts the rows below it.
func (n *Node) SetType(t apischema.NodeType) error {
	if n.removed {
		return ErrDetached
	}
	if !t.Valid() {
		return fmt.Errorf("unknown node type %q", t)
	}
	n.nodeType = t
	n.touched = true
	return nil
}

func (n *Node) SetDescription(desc string) error {
	if n.removed {
		return ErrDetached
	}
	n.description = desc
	return nil
}

// SetSample edits the sample column of the tree. The other column keeps
// its loaded value.
func (n *Node) SetSample(value string) error {
	if n.removed {
		return ErrDetached
	}
	if n.nodeType.IsContainer() {
		return ErrDisabledInput
	}
	if n.tree.isMock {
		n.mock = value
	} else {
		n.example = value
	}
	return nil
}

func (n *Node) SetRequired(required bool) error {
	if n.removed {
		return ErrDetached
	}
	if n.role == internal.NodeArrayElem {
		return ErrDisabledInput
	}
	n.required = required
	return nil
}

// Toggle collapses or expands the rows below the node.
func (n *Node) Toggle() {
	n.open = !n.open
}

// AddChild appends a blank child row. The root takes rows whatever its
// type; other nodes must be OBJECT.
func (n *Node) AddChild() (*Node, error) {
	if n.removed {
		return nil, ErrDetached
	}
	if n.role != internal.NodeRoot && n.nodeType != apischema.NodeTypeObject {
		return nil, ErrNotObject
	}
	n.touched = true
	return n.child(n.seq.Allocate()), nil
}

// AddSibling inserts a blank row right after the node.
func (n *Node) AddSibling() (*Node, error) {
	if n.removed {
		return nil, ErrDetached
	}
	if n.role != internal.NodeChild {
		return nil, ErrNoSiblings
	}
	return n.parent.child(n.parent.seq.InsertAfter(n.id)), nil
}

// Remove deletes the row. When it was the last child, a blank row takes its place.
func (n *Node) Remove() error {
	if n.removed {
		return ErrDetached
	}
	if n.role != internal.NodeChild {
		return ErrNotRemovable
	}
	n.parent.seq.RemoveAndEnsureNonEmpty(n.id)
	delete(n.parent.children, n.id)
	n.removed = true
	return nil
}

func (n *Node) toForm() *internal.FormNode {
	form := &internal.FormNode{
		Name:        n.Name(),
		Type:        string(n.nodeType),
		Description: n.description,
		Example:     n.example,
		Mock:        n.mock,
		Children:    []*internal.FormNode{},
	}
	if n.required && n.role != internal.NodeArrayElem {
		form.IsRequired = internal.RequiredMarker
	}
	if !n.touched {
		return form
	}
	for _, child := range n.Children() {
		form.Children = append(form.Children, child.toForm())
	}
	form.ArrayElem = n.ArrayElem().toForm()
	return form
}

func (n *Node) collectRows(rows map[string][]int) {
	if !n.touched {
		return
	}
	rows[n.Path().Key(internal.FieldChildren).String()] = n.seq.IDs()
	for _, child := range n.Children() {
		child.collectRows(rows)
	}
	n.ArrayElem().collectRows(rows)
}
