package tree

import (
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// Instance is one materialised occurrence of a schema node. Its qualified id
// is derived on demand from the schema id, the instance number and the
// qualified id of the nearest repeatable ancestor.
type Instance struct {
	tree     *Tree
	node     *schema.Node
	number   int
	parent   *Instance
	children []*Instance
	// repeaters hosted by this instance, keyed by the repeatable child node.
	repeaters map[*schema.Node]*Repeater
	repeater  *Repeater
	control   widgets.Control
	expanded  bool
	detached  bool
}

// Node returns the schema node the instance materialises.
func (i *Instance) Node() *schema.Node { return i.node }

// ContentID returns the schema id.
func (i *Instance) ContentID() string { return i.node.ID }

// Number returns the instance number, 1 for non-repeatable nodes.
func (i *Instance) Number() int { return i.number }

// Parent returns the parent instance, nil for the root.
func (i *Instance) Parent() *Instance { return i.parent }

// Control returns the field control, nil for groups.
func (i *Instance) Control() widgets.Control { return i.control }

// IsField reports whether the instance is a field.
func (i *Instance) IsField() bool { return i.node.IsField() }

// Expanded reports whether the group children were instantiated.
func (i *Instance) Expanded() bool { return i.expanded }

// Detached reports whether the instance was removed from its tree.
func (i *Instance) Detached() bool { return i.detached }

// Repeater returns the repeater the instance belongs to, nil when the schema
// node is not repeatable.
func (i *Instance) Repeater() *Repeater { return i.repeater }

// Children returns a copy of the child instances in tree order.
func (i *Instance) Children() []*Instance {
	return append([]*Instance(nil), i.children...)
}

// Value returns the current field value, or the empty string for groups.
func (i *Instance) Value() string {
	if i.control == nil {
		return ""
	}
	return i.control.Value()
}

// RepeatableParent returns the nearest repeatable ancestor, excluding i.
func (i *Instance) RepeatableParent() *Instance {
	for p := i.parent; p != nil; p = p.parent {
		if p.node.Repeatable {
			return p
		}
	}
	return nil
}

// QualifiedID returns the fully scoped identifier of the instance.
func (i *Instance) QualifiedID() string {
	qualifier := ""
	if rp := i.RepeatableParent(); rp != nil {
		qualifier = rp.QualifiedID()
	}
	return FormatQualifiedID(i.node.ID, i.number, qualifier)
}

// IdentifiedGroup returns the ancestor group whose identifier field is this
// field, if any.
func (i *Instance) IdentifiedGroup() *Instance {
	for p := i.parent; p != nil; p = p.parent {
		if p.node.IdentifierFieldID != "" && p.node.IdentifierFieldID == i.node.ID {
			return p
		}
	}
	return nil
}

// GeneratedIdentifier returns the identifier an id-scheme field should carry
// given the current numbering: the scheme followed by the number of the
// identified group, or of the nearest repeatable ancestor-or-self when no
// group is identified by the field. Live fields sharing the scheme within
// the same numbering scope take consecutive numbers in tree order.
func (i *Instance) GeneratedIdentifier() string {
	if !i.node.HasIDScheme() {
		return ""
	}
	scope := i.identifierScope()
	number := 1
	if scope != nil {
		number = scope.number
	}
	if stride := schemeSlots(scope, i); stride > 1 {
		number = (number-1)*stride + i.schemeOrdinal(scope)
	}
	return FormatSchemedID(i.node.IDScheme, number)
}

// identifierScope returns the instance whose number drives the identifier of
// i: the identified group, else the nearest repeatable ancestor-or-self. It
// is nil for fields numbered at tree level.
func (i *Instance) identifierScope() *Instance {
	if group := i.IdentifiedGroup(); group != nil {
		return group
	}
	if i.node.Repeatable {
		return i
	}
	return i.RepeatableParent()
}

// schemeOrdinal returns the 1-based position of i among the live fields of
// its scheme that share scope.
func (i *Instance) schemeOrdinal(scope *Instance) int {
	from := scope
	if from == nil {
		from = i.root()
	}
	ordinal, position := 0, 0
	from.Walk(func(inst *Instance) bool {
		if position > 0 {
			return false
		}
		if inst.sharesScheme(i, scope) {
			ordinal++
			if inst == i {
				position = ordinal
			}
		}
		return true
	})
	if position == 0 {
		return 1
	}
	return position
}

func (i *Instance) sharesScheme(other *Instance, scope *Instance) bool {
	return i.control != nil &&
		i.node.HasIDScheme() &&
		i.node.IDScheme == other.node.IDScheme &&
		i.identifierScope() == scope
}

func (i *Instance) root() *Instance {
	r := i
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// schemeSlots returns how many identifiers of the scheme of field one scope
// instance can hold at most. Scopes below the tree level reserve that many
// numbers per scope number so that neighbouring scopes never overlap. At tree
// level there is a single scope and the live count is used.
func schemeSlots(scope *Instance, field *Instance) int {
	if scope == nil {
		count := 0
		field.root().Walk(func(inst *Instance) bool {
			if inst.sharesScheme(field, nil) {
				count++
			}
			return true
		})
		return count
	}
	if scope.node.IsField() {
		return 1
	}
	return countSchemeNodes(scope.node, field.node.IDScheme, nil)
}

// countSchemeNodes counts the schema fields of scheme below group without
// entering repeatable nodes or the identifier fields of nested groups.
func countSchemeNodes(group *schema.Node, scheme string, identifiers map[string]bool) int {
	count := 0
	for _, child := range group.Children {
		if child.Repeatable {
			continue
		}
		if child.IsField() {
			if child.IDScheme == scheme && !identifiers[child.ID] {
				count++
			}
			continue
		}
		nested := identifiers
		if child.IdentifierFieldID != "" {
			nested = make(map[string]bool, len(identifiers)+1)
			for id := range identifiers {
				nested[id] = true
			}
			nested[child.IdentifierFieldID] = true
		}
		count += countSchemeNodes(child, scheme, nested)
	}
	return count
}

// Walk visits i and its attached descendants depth-first, pre-order.
// Returning false skips the subtree of the visited instance.
func (i *Instance) Walk(fn func(*Instance) bool) {
	if i == nil || fn == nil {
		return
	}
	if !fn(i) {
		return
	}
	for _, child := range i.children {
		child.Walk(fn)
	}
}

// Subtree returns i and its descendants in pre-order.
func (i *Instance) Subtree() []*Instance {
	var out []*Instance
	i.Walk(func(inst *Instance) bool {
		out = append(out, inst)
		return true
	})
	return out
}

// FindByContentID returns the first instance in the subtree with the supplied
// schema id.
func (i *Instance) FindByContentID(id string) *Instance {
	var found *Instance
	i.Walk(func(inst *Instance) bool {
		if found != nil {
			return false
		}
		if inst.node.ID == id {
			found = inst
			return false
		}
		return true
	})
	return found
}

// ChildRepeater returns the repeater managing the instances of the repeatable
// child node under i, creating it on first use. Nil when node is not a
// repeatable child of i.
func (i *Instance) ChildRepeater(node *schema.Node) *Repeater {
	if node == nil || !node.Repeatable || i.node.ChildIndex(node) < 0 {
		return nil
	}
	if i.repeaters == nil {
		i.repeaters = make(map[*schema.Node]*Repeater)
	}
	rep, ok := i.repeaters[node]
	if !ok {
		rep = &Repeater{tree: i.tree, parent: i, node: node}
		i.repeaters[node] = rep
	}
	return rep
}

// Depth returns the number of ancestors.
func (i *Instance) Depth() int {
	depth := 0
	for p := i.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

func (i *Instance) insertChild(child *Instance, at int) {
	if at < 0 || at > len(i.children) {
		at = len(i.children)
	}
	i.children = append(i.children, nil)
	copy(i.children[at+1:], i.children[at:])
	i.children[at] = child
}

func (i *Instance) removeChild(child *Instance) bool {
	for idx, candidate := range i.children {
		if candidate == child {
			i.children = append(i.children[:idx], i.children[idx+1:]...)
			return true
		}
	}
	return false
}

func (i *Instance) childIndex(child *Instance) int {
	for idx, candidate := range i.children {
		if candidate == child {
			return idx
		}
	}
	return -1
}

// schemaInsertPosition returns where a new instance of node goes among i's
// children so that siblings stay in schema order.
func (i *Instance) schemaInsertPosition(node *schema.Node) int {
	target := i.node.ChildIndex(node)
	pos := 0
	for idx, child := range i.children {
		if i.node.ChildIndex(child.node) <= target {
			pos = idx + 1
		}
	}
	return pos
}

func (i *Instance) hasChildFor(node *schema.Node) bool {
	for _, child := range i.children {
		if child.node == node {
			return true
		}
	}
	return false
}
