package tree

// Rename records a generated identifier that changed because its instance was
// renumbered.
type Rename struct {
	Instance *Instance
	Previous string
	Current  string
}

// Change describes one structural mutation after it settled: numbering is
// dense again and generated identifiers are up to date. Added and Removed list
// whole subtrees in pre-order.
type Change struct {
	Added   []*Instance
	Removed []*Instance
	Renamed []Rename
}

// Empty reports whether the change carries nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Renamed) == 0
}

// Listener observes the tree. Structural changes are delivered once per
// mutation; value changes of fields follow, in the order they happened.
// Listeners may write field values but must not mutate structure from
// StructureChanged.
type Listener interface {
	StructureChanged(change Change)
	ValueChanged(inst *Instance, previous string)
}

// ListenerFuncs adapts plain functions to Listener. Nil members are skipped.
type ListenerFuncs struct {
	OnStructure func(change Change)
	OnValue     func(inst *Instance, previous string)
}

func (f ListenerFuncs) StructureChanged(change Change) {
	if f.OnStructure != nil {
		f.OnStructure(change)
	}
}

func (f ListenerFuncs) ValueChanged(inst *Instance, previous string) {
	if f.OnValue != nil {
		f.OnValue(inst, previous)
	}
}

type valueEvent struct {
	inst     *Instance
	previous string
}
