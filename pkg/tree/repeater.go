package tree

import (
	"fmt"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// Repeater manages the sibling instances of one repeatable schema node under
// one parent instance. Members are numbered 1..N in tree order once every
// mutation settles. A repeater outlives its last member so more instances can
// still be added.
type Repeater struct {
	tree    *Tree
	parent  *Instance
	node    *schema.Node
	members []*Instance
}

// Node returns the repeatable schema node.
func (r *Repeater) Node() *schema.Node { return r.node }

// Parent returns the instance hosting the members.
func (r *Repeater) Parent() *Instance { return r.parent }

// Count returns the number of live members.
func (r *Repeater) Count() int { return len(r.members) }

// Members returns the live members in tree order.
func (r *Repeater) Members() []*Instance {
	return append([]*Instance(nil), r.members...)
}

// AddInstance instantiates a new member right after the supplied one, or as
// the last member when after is nil, and renumbers.
func (r *Repeater) AddInstance(after *Instance) (*Instance, error) {
	t := r.tree
	if err := t.begin(); err != nil {
		return nil, err
	}
	if err := t.checkAttachedGroup(r.parent); err != nil {
		return nil, err
	}
	if !r.parent.expanded {
		return nil, fmt.Errorf("%w: %s", ErrCollapsedParent, r.parent.QualifiedID())
	}
	memberPos := len(r.members)
	if after != nil {
		memberPos = r.indexOf(after)
		if memberPos < 0 || after.detached {
			return nil, fmt.Errorf("%w: %s", ErrNotMember, after.QualifiedID())
		}
		memberPos++
	}

	inst, err := t.build(r.node, r.parent, memberPos+1)
	if err != nil {
		return nil, err
	}

	var childPos int
	switch {
	case after != nil:
		childPos = r.parent.childIndex(after) + 1
	case len(r.members) > 0:
		childPos = r.parent.childIndex(r.members[len(r.members)-1]) + 1
	default:
		childPos = r.parent.schemaInsertPosition(r.node)
	}
	r.parent.insertChild(inst, childPos)
	r.insertMember(inst, memberPos)
	r.renumber()

	added := inst.Subtree()
	t.assignIdentifiers(added)
	renamed := t.refreshIdentifiers()
	t.logger.Debug("instance added", "qualifiedId", inst.QualifiedID(), "count", len(r.members), "renamed", len(renamed))
	if err := t.commit(Change{Added: added, Renamed: renamed}, r); err != nil {
		return nil, err
	}
	return inst, nil
}

// RemoveInstance removes a member and renumbers the survivors.
func (r *Repeater) RemoveInstance(inst *Instance) error {
	if inst == nil {
		return ErrNilInstance
	}
	if inst.repeater != r || r.indexOf(inst) < 0 {
		return fmt.Errorf("%w: %s", ErrNotMember, inst.QualifiedID())
	}
	return r.tree.Remove(inst)
}

// Renumber reassigns 1..N to the members in tree order and regenerates the
// identifiers that depend on the numbering. Listeners are told about changed
// identifiers only.
func (r *Repeater) Renumber() error {
	t := r.tree
	if err := t.begin(); err != nil {
		return err
	}
	r.renumber()
	renamed := t.refreshIdentifiers()
	return t.commit(Change{Renamed: renamed}, r)
}

func (r *Repeater) renumber() {
	for idx, member := range r.members {
		member.number = idx + 1
	}
}

func (r *Repeater) indexOf(inst *Instance) int {
	for idx, member := range r.members {
		if member == inst {
			return idx
		}
	}
	return -1
}

func (r *Repeater) insertMember(inst *Instance, at int) {
	if at < 0 || at > len(r.members) {
		at = len(r.members)
	}
	r.members = append(r.members, nil)
	copy(r.members[at+1:], r.members[at:])
	r.members[at] = inst
}

func (r *Repeater) removeMember(inst *Instance) {
	if idx := r.indexOf(inst); idx >= 0 {
		r.members = append(r.members[:idx], r.members[idx+1:]...)
	}
}

// check verifies dense numbering and that members mirror the parent's
// children of the same schema node, in order.
func (r *Repeater) check() error {
	idx := 0
	for _, child := range r.parent.children {
		if child.node != r.node {
			continue
		}
		if idx >= len(r.members) || r.members[idx] != child {
			return fmt.Errorf("%w: repeater %s under %s is out of sync with the tree", ErrInvariant, r.node.ID, r.parent.QualifiedID())
		}
		idx++
	}
	if idx != len(r.members) {
		return fmt.Errorf("%w: repeater %s under %s holds %d members, tree holds %d", ErrInvariant, r.node.ID, r.parent.QualifiedID(), len(r.members), idx)
	}
	for pos, member := range r.members {
		if member.number != pos+1 {
			return fmt.Errorf("%w: %s numbered %d at position %d", ErrInvariant, member.node.ID, member.number, pos+1)
		}
		if member.detached || member.parent != r.parent {
			return fmt.Errorf("%w: repeater %s holds a detached member", ErrInvariant, r.node.ID)
		}
	}
	return nil
}
