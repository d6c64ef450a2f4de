package tree

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// ControlFactory builds the control of a field node.
type ControlFactory func(kind schema.FieldKind, node *schema.Node) (widgets.Control, error)

// Option customises a Tree.
type Option func(*Tree)

// WithLogger sets the logger used for structural debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithControlFactory overrides how field controls are created.
func WithControlFactory(factory ControlFactory) Option {
	return func(t *Tree) {
		t.controls = factory
	}
}

// WithListener registers a listener at construction time.
func WithListener(listener Listener) Option {
	return func(t *Tree) {
		if listener != nil {
			t.listeners = append(t.listeners, listener)
		}
	}
}

// Tree is the live instance tree of one open document. It is not safe for
// concurrent use: every mutation runs to completion, including listener
// notification, before returning.
type Tree struct {
	logger    *slog.Logger
	controls  ControlFactory
	listeners []Listener
	root      *Instance
	emitting  bool
	pending   []valueEvent
	broken    error
}

// New constructs an empty tree.
func New(options ...Option) *Tree {
	t := &Tree{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(t)
	}
	t.applyDefaults()
	return t
}

func (t *Tree) applyDefaults() {
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.controls == nil {
		t.controls = widgets.Create
	}
}

// AddListener registers a listener. Listeners are notified in registration
// order.
func (t *Tree) AddListener(listener Listener) {
	if listener == nil {
		return
	}
	t.listeners = append(t.listeners, listener)
}

// Root returns the root instance, nil before Load.
func (t *Tree) Root() *Instance { return t.root }

// Err returns the invariant failure that broke the tree, if any.
func (t *Tree) Err() error { return t.broken }

// Load materialises node as the root of the tree.
func (t *Tree) Load(node *schema.Node) (*Instance, error) {
	if t.broken != nil {
		return nil, t.broken
	}
	if t.emitting {
		return nil, ErrReentrant
	}
	if t.root != nil {
		return nil, ErrAlreadyLoaded
	}
	if node == nil {
		return nil, ErrNilNode
	}
	root, err := t.build(node, nil, 1)
	if err != nil {
		return nil, err
	}
	t.root = root
	added := root.Subtree()
	t.assignIdentifiers(added)
	t.logger.Debug("tree loaded", "root", node.ID, "instances", len(added))
	if err := t.commit(Change{Added: added}); err != nil {
		return nil, err
	}
	return root, nil
}

// Instantiate materialises node under parent. Repeatable nodes are appended as
// the last member of their repeater; other nodes take their schema position
// and may only exist once per parent.
func (t *Tree) Instantiate(node *schema.Node, parent *Instance) (*Instance, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNilNode
	}
	if err := t.checkAttachedGroup(parent); err != nil {
		return nil, err
	}
	if parent.node.ChildIndex(node) < 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNotChild, node.ID, parent.node.ID)
	}
	if !parent.expanded {
		return nil, fmt.Errorf("%w: %s", ErrCollapsedParent, parent.QualifiedID())
	}
	if node.Repeatable {
		return parent.ChildRepeater(node).AddInstance(nil)
	}
	if parent.hasChildFor(node) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPresent, node.ID)
	}

	inst, err := t.build(node, parent, 1)
	if err != nil {
		return nil, err
	}
	parent.insertChild(inst, parent.schemaInsertPosition(node))
	added := inst.Subtree()
	t.assignIdentifiers(added)
	renamed := t.refreshIdentifiers()
	t.logger.Debug("instance added", "qualifiedId", inst.QualifiedID(), "renamed", len(renamed))
	if err := t.commit(Change{Added: added, Renamed: renamed}); err != nil {
		return nil, err
	}
	return inst, nil
}

// Remove detaches inst and its subtree from the parent and from its repeater,
// renumbers the remaining members and notifies listeners.
func (t *Tree) Remove(inst *Instance) error {
	if err := t.begin(); err != nil {
		return err
	}
	if err := t.checkAttached(inst); err != nil {
		return err
	}
	if inst == t.root {
		return ErrRemoveRoot
	}

	qualifiedID := inst.QualifiedID()
	removed := inst.Subtree()
	inst.parent.removeChild(inst)
	rep := inst.repeater
	if rep != nil {
		rep.removeMember(inst)
	}
	for _, gone := range removed {
		gone.detached = true
	}

	if rep != nil {
		rep.renumber()
	}
	renamed := t.refreshIdentifiers()
	t.logger.Debug("instance removed", "qualifiedId", qualifiedID, "instances", len(removed), "renamed", len(renamed))
	return t.commit(Change{Removed: removed, Renamed: renamed}, rep)
}

// Expand instantiates the children of a collapsed group. Expanding an
// expanded group does nothing.
func (t *Tree) Expand(inst *Instance) error {
	if err := t.begin(); err != nil {
		return err
	}
	if err := t.checkAttachedGroup(inst); err != nil {
		return err
	}
	if inst.expanded {
		return nil
	}
	children, err := t.buildChildren(inst)
	if err != nil {
		return err
	}
	attachChildren(inst, children)
	inst.expanded = true

	var added []*Instance
	for _, child := range children {
		added = append(added, child.Subtree()...)
	}
	t.assignIdentifiers(added)
	renamed := t.refreshIdentifiers()
	t.logger.Debug("group expanded", "qualifiedId", inst.QualifiedID(), "instances", len(added))
	return t.commit(Change{Added: added, Renamed: renamed})
}

// SetValue writes a field value and notifies listeners when it changed.
// Writes made while listeners handle a structural change are notified once
// that change has been delivered to every listener.
func (t *Tree) SetValue(inst *Instance, value string) error {
	if t.broken != nil {
		return t.broken
	}
	if err := t.checkAttached(inst); err != nil {
		return err
	}
	if inst.control == nil {
		return fmt.Errorf("%w: %s", ErrNotField, inst.QualifiedID())
	}
	previous := inst.control.Value()
	if !inst.control.SetValue(value) {
		return nil
	}
	t.valueChanged(inst, previous)
	return nil
}

// Repeater returns the repeater of the repeatable child node under parent.
func (t *Tree) Repeater(parent *Instance, node *schema.Node) (*Repeater, error) {
	if err := t.checkAttachedGroup(parent); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNilNode
	}
	if parent.node.ChildIndex(node) < 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNotChild, node.ID, parent.node.ID)
	}
	if !node.Repeatable {
		return nil, fmt.Errorf("%w: %s", ErrNotRepeatable, node.ID)
	}
	return parent.ChildRepeater(node), nil
}

// Walk visits every attached instance in tree order.
func (t *Tree) Walk(fn func(*Instance) bool) {
	t.root.Walk(fn)
}

// Find returns the attached instance with the supplied qualified id.
func (t *Tree) Find(qualifiedID string) *Instance {
	var found *Instance
	t.root.Walk(func(inst *Instance) bool {
		if found != nil {
			return false
		}
		if inst.QualifiedID() == qualifiedID {
			found = inst
			return false
		}
		return true
	})
	return found
}

// FindByContentID returns every attached instance of the schema id in tree
// order.
func (t *Tree) FindByContentID(id string) []*Instance {
	var out []*Instance
	t.root.Walk(func(inst *Instance) bool {
		if inst.node.ID == id {
			out = append(out, inst)
		}
		return true
	})
	return out
}

func (t *Tree) begin() error {
	if t.broken != nil {
		return t.broken
	}
	if t.emitting {
		return ErrReentrant
	}
	if t.root == nil {
		return ErrNotLoaded
	}
	return nil
}

func (t *Tree) checkAttached(inst *Instance) error {
	if inst == nil {
		return ErrNilInstance
	}
	if inst.tree != t {
		return ErrForeignInstance
	}
	if inst.detached {
		return fmt.Errorf("%w: %s", ErrDetached, inst.QualifiedID())
	}
	return nil
}

func (t *Tree) checkAttachedGroup(inst *Instance) error {
	if err := t.checkAttached(inst); err != nil {
		return err
	}
	if inst.node.IsField() {
		return fmt.Errorf("%w: %s is a field", ErrNotChild, inst.node.ID)
	}
	return nil
}

func (t *Tree) build(node *schema.Node, parent *Instance, number int) (*Instance, error) {
	inst := &Instance{tree: t, node: node, number: number, parent: parent}
	if node.Repeatable && parent != nil {
		inst.repeater = parent.ChildRepeater(node)
	}
	if node.IsField() {
		ctrl, err := t.controls(node.Kind(), node)
		if err != nil {
			return nil, err
		}
		if node.PresetValue != "" {
			ctrl.SetValue(node.PresetValue)
		}
		inst.control = ctrl
		return inst, nil
	}
	if node.Collapsed {
		return inst, nil
	}
	children, err := t.buildChildren(inst)
	if err != nil {
		return nil, err
	}
	attachChildren(inst, children)
	inst.expanded = true
	return inst, nil
}

func (t *Tree) buildChildren(inst *Instance) ([]*Instance, error) {
	children := make([]*Instance, 0, len(inst.node.Children))
	for _, childNode := range inst.node.Children {
		child, err := t.build(childNode, inst, 1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func attachChildren(inst *Instance, children []*Instance) {
	inst.children = append(inst.children, children...)
	for _, child := range children {
		if child.repeater != nil {
			child.repeater.members = append(child.repeater.members, child)
		}
	}
}

// assignIdentifiers sets the generated identifier of new id-scheme fields
// without notifying listeners; the structural change announces them.
func (t *Tree) assignIdentifiers(added []*Instance) {
	for _, inst := range added {
		if inst.control == nil || !inst.node.HasIDScheme() {
			continue
		}
		inst.control.SetValue(inst.GeneratedIdentifier())
	}
}

// refreshIdentifiers regenerates the identifiers of the id-scheme fields of
// the tree and returns the ones that changed. Their value change notifications are queued behind the structural change.
func (t *Tree) refreshIdentifiers() []Rename {
	var renamed []Rename
	t.root.Walk(func(inst *Instance) bool {
		if inst.control == nil || !inst.node.HasIDScheme() {
			return true
		}
		want := inst.GeneratedIdentifier()
		previous := inst.control.Value()
		if previous == want {
			return true
		}
		inst.control.SetValue(want)
		renamed = append(renamed, Rename{Instance: inst, Previous: previous, Current: want})
		t.pending = append(t.pending, valueEvent{inst: inst, previous: previous})
		return true
	})
	return renamed
}

func (t *Tree) commit(change Change, repeaters ...*Repeater) error {
	for _, rep := range repeaters {
		if rep == nil {
			continue
		}
		if err := rep.check(); err != nil {
			t.broken = err
			t.pending = nil
			t.logger.Error("tree invariant violated", "error", err)
			return err
		}
	}
	t.emit(change)
	return nil
}

func (t *Tree) emit(change Change) {
	if !change.Empty() {
		listeners := append([]Listener(nil), t.listeners...)
		t.emitting = true
		for _, listener := range listeners {
			listener.StructureChanged(change)
		}
		t.emitting = false
	}
	t.flush()
}

func (t *Tree) flush() {
	for len(t.pending) > 0 {
		event := t.pending[0]
		t.pending = t.pending[1:]
		t.notifyValue(event)
	}
}

func (t *Tree) valueChanged(inst *Instance, previous string) {
	event := valueEvent{inst: inst, previous: previous}
	if t.emitting {
		t.pending = append(t.pending, event)
		return
	}
	t.notifyValue(event)
}

func (t *Tree) notifyValue(event valueEvent) {
	if event.inst.detached {
		return
	}
	listeners := append([]Listener(nil), t.listeners...)
	for _, listener := range listeners {
		listener.ValueChanged(event.inst, event.previous)
	}
}
