// Package script applies YAML operation scripts to an editing session. A
// script is a list of steps:
//
//	steps:
//	  - set: BT-21-Procedure
//	    value: Road works
//	  - add: GR-Lot
//	  - expand: GR-Lot/1/GR-Lot-Options
//	  - remove: GR-Lot/2/GR-Lot-Options
//	  - add: GR-Lot-Options
//	    under: GR-Lot/2
//	  - addAfter: GR-Lot/1
//	  - remove: GR-Lot/3
//
// Targets are qualified ids or content paths as accepted by Session.Find.
package script

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formtree/pkg/tree"
)

// Step operations.
const (
	OpSet      = "set"
	OpAdd      = "add"
	OpAddAfter = "addAfter"
	OpRemove   = "remove"
	OpExpand   = "expand"
)

var (
	// ErrUnresolved reports a target that addresses no instance.
	ErrUnresolved = errors.New("script: target not found")
	// ErrInvalidStep reports a step naming no operation or several.
	ErrInvalidStep = errors.New("script: invalid step")
)

// Editor is the part of a session a script drives.
type Editor interface {
	Root() *tree.Instance
	Find(ref string) *tree.Instance
	Add(parent *tree.Instance, contentID string) (*tree.Instance, error)
	AddAfter(inst *tree.Instance) (*tree.Instance, error)
	Remove(inst *tree.Instance) error
	Expand(inst *tree.Instance) error
	SetValue(inst *tree.Instance, value string) error
}

// Step is one operation. Exactly one of the operation keys is set.
type Step struct {
	Set      string `yaml:"set,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Add      string `yaml:"add,omitempty"`
	Under    string `yaml:"under,omitempty"`
	AddAfter string `yaml:"addAfter,omitempty"`
	Remove   string `yaml:"remove,omitempty"`
	Expand   string `yaml:"expand,omitempty"`
}

// Op returns the operation and its target.
func (s Step) Op() (string, string, error) {
	var op, target string
	for _, candidate := range []struct{ op, target string }{
		{OpSet, s.Set},
		{OpAdd, s.Add},
		{OpAddAfter, s.AddAfter},
		{OpRemove, s.Remove},
		{OpExpand, s.Expand},
	} {
		if strings.TrimSpace(candidate.target) == "" {
			continue
		}
		if op != "" {
			return "", "", fmt.Errorf("%w: both %s and %s", ErrInvalidStep, op, candidate.op)
		}
		op, target = candidate.op, strings.TrimSpace(candidate.target)
	}
	if op == "" {
		return "", "", fmt.Errorf("%w: no operation", ErrInvalidStep)
	}
	return op, target, nil
}

// Script is a parsed operation script.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// StepError locates the step that failed.
type StepError struct {
	Index  int
	Op     string
	Target string
	Err    error
}

func (e *StepError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("script: step %d (%s %s): %v", e.Index+1, e.Op, e.Target, e.Err)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Parse decodes a YAML script and checks every step names one operation.
func Parse(data []byte) (*Script, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("script: document is empty")
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	for i, step := range s.Steps {
		if _, _, err := step.Op(); err != nil {
			return nil, &StepError{Index: i, Err: err}
		}
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return Parse(data)
}

// Apply runs the steps in order and stops at the first failure.
func (s *Script) Apply(ed Editor) error {
	if s == nil {
		return nil
	}
	for i, step := range s.Steps {
		op, target, err := step.Op()
		if err == nil {
			err = apply(ed, op, target, step)
		}
		if err != nil {
			return &StepError{Index: i, Op: op, Target: target, Err: err}
		}
	}
	return nil
}

func apply(ed Editor, op, target string, step Step) error {
	if op == OpAdd {
		parent, err := addParent(ed, target, step.Under)
		if err != nil {
			return err
		}
		_, err = ed.Add(parent, target)
		return err
	}

	inst := ed.Find(target)
	if inst == nil {
		return ErrUnresolved
	}
	switch op {
	case OpSet:
		return ed.SetValue(inst, step.Value)
	case OpAddAfter:
		_, err := ed.AddAfter(inst)
		return err
	case OpRemove:
		return ed.Remove(inst)
	case OpExpand:
		return ed.Expand(inst)
	}
	return fmt.Errorf("%w: %s", ErrInvalidStep, op)
}

// addParent resolves the parent of an add step. Without an explicit parent
// the first expanded group whose schema allows contentID is used.
func addParent(ed Editor, contentID, under string) (*tree.Instance, error) {
	if under = strings.TrimSpace(under); under != "" {
		parent := ed.Find(under)
		if parent == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolved, under)
		}
		return parent, nil
	}
	var parent *tree.Instance
	if root := ed.Root(); root != nil {
		root.Walk(func(inst *tree.Instance) bool {
			if parent != nil {
				return false
			}
			if inst.IsField() || !inst.Expanded() {
				return true
			}
			for _, child := range inst.Node().Children {
				if child.ID == contentID {
					parent = inst
					return false
				}
			}
			return true
		})
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: no parent accepts %s", ErrUnresolved, contentID)
	}
	return parent, nil
}
