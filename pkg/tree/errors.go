package tree

import "errors"

var (
	// ErrInvariant reports that a structural mutation left the tree in a state
	// that violates dense numbering or parent/repeater consistency. The tree
	// refuses further mutations once it has been returned.
	ErrInvariant = errors.New("tree: invariant violated")

	ErrNotLoaded       = errors.New("tree: no root loaded")
	ErrAlreadyLoaded   = errors.New("tree: root already loaded")
	ErrNilNode         = errors.New("tree: schema node is nil")
	ErrNilInstance     = errors.New("tree: instance is nil")
	ErrDetached        = errors.New("tree: instance is detached")
	ErrForeignInstance = errors.New("tree: instance belongs to another tree")
	ErrNotChild        = errors.New("tree: schema node is not a child of the parent")
	ErrNotRepeatable   = errors.New("tree: schema node is not repeatable")
	ErrAlreadyPresent  = errors.New("tree: non-repeatable node already instantiated")
	ErrNotField        = errors.New("tree: instance is not a field")
	ErrRemoveRoot      = errors.New("tree: the root cannot be removed")
	ErrReentrant       = errors.New("tree: structural mutation while notifying listeners")
	ErrNotMember       = errors.New("tree: instance is not a member of the repeater")
	ErrCollapsedParent = errors.New("tree: parent group is not expanded")
)
