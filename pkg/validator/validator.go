package validator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/goliatone/go-formtree/pkg/dynprop"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// ErrNilInstance is returned when registering against a nil instance.
var ErrNilInstance = errors.New("validator: instance is nil")

// State is the validation state of one field instance.
type State int

const (
	Unchecked State = iota
	Valid
	Invalid
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unchecked"
	}
}

// Status is the outcome of the last check of an instance. Property,
// Severity and Message are set when the instance is invalid.
type Status struct {
	State    State
	Property schema.PropertyKind
	Severity string
	Message  string
}

// MessageFunc turns a constraint message key into display text.
type MessageFunc func(key string) string

// StatusFunc is told about every status transition.
type StatusFunc func(inst *tree.Instance, previous, current Status)

// Option customises a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for validation debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithMessages translates constraint message keys.
func WithMessages(fn MessageFunc) Option {
	return func(v *Validator) {
		v.messages = fn
	}
}

// WithStatusFunc registers a callback for status transitions.
func WithStatusFunc(fn StatusFunc) Option {
	return func(v *Validator) {
		v.onStatus = fn
	}
}

// Default messages used when a constraint carries none.
const (
	MessageMandatory = "This field is mandatory"
	MessageForbidden = "This field is forbidden"
	MessagePattern   = "The value does not match the expected format"
	MessageCodeList  = "The value is not one of the allowed codes"
)

type entry struct {
	props  []dynprop.Property
	events map[string]struct{}
	status Status
}

// Validator keeps the validation roster of one open document: the dynamic
// properties registered per field instance and the trigger events they react
// to. It is a tree.Listener; New registers it with the tree so field
// properties are registered on addition and dropped on removal.
type Validator struct {
	tree     *tree.Tree
	ctx      dynprop.Context
	logger   *slog.Logger
	messages MessageFunc
	onStatus StatusFunc

	roster   map[*tree.Instance]*entry
	patterns map[string]*regexp.Regexp
	err      error
}

// New constructs a validator resolving properties in ctx.
func New(t *tree.Tree, ctx dynprop.Context, options ...Option) *Validator {
	v := &Validator{
		tree:     t,
		ctx:      ctx,
		roster:   make(map[*tree.Instance]*entry),
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t != nil {
		t.AddListener(v)
	}
	return v
}

// Err returns the first configuration error met while registering
// properties from tree events.
func (v *Validator) Err() error { return v.err }

// StructureChanged registers the validated properties of added fields and
// drops the roster entries of removed instances.
func (v *Validator) StructureChanged(change tree.Change) {
	for _, inst := range change.Removed {
		v.Unregister(inst)
	}
	for _, inst := range change.Added {
		if !inst.IsField() || inst.Node().Field == nil {
			continue
		}
		for _, kind := range schema.ValidatedProperties() {
			def := inst.Node().Field.Property(kind)
			if def == nil {
				continue
			}
			if err := v.Register(dynprop.NewProperty(kind, def), inst); err != nil && v.err == nil {
				v.err = err
			}
		}
	}
}

// ValueChanged dispatches the default trigger event for inst.
func (v *Validator) ValueChanged(inst *tree.Instance, previous string) {
	v.Dispatch(inst, dynprop.DefaultEvent)
}

// Register appends prop to the roster of inst and checks inst right away.
// A property kind registers once per instance; trigger events are tracked
// once per instance regardless of how many properties share them.
func (v *Validator) Register(prop dynprop.Property, inst *tree.Instance) error {
	if inst == nil {
		return ErrNilInstance
	}
	e := v.roster[inst]
	if e == nil {
		e = &entry{events: make(map[string]struct{})}
		v.roster[inst] = e
	}
	replaced := false
	for idx, existing := range e.props {
		if existing.Kind == prop.Kind {
			e.props[idx] = prop
			replaced = true
			break
		}
	}
	if !replaced {
		e.props = append(e.props, prop)
	}
	for _, registered := range e.props {
		e.events[registered.TriggerEvent()] = struct{}{}
	}
	_, err := v.CheckValidity(inst)
	return err
}

// Unregister drops the roster entry of inst, reporting a transition back to
// Unchecked. Unknown instances are ignored.
func (v *Validator) Unregister(inst *tree.Instance) {
	e, ok := v.roster[inst]
	if !ok {
		return
	}
	v.transition(inst, e, Status{})
	delete(v.roster, inst)
	v.logger.Debug("validation unregistered", "qualifiedId", inst.QualifiedID())
}

// Dispatch checks inst when one of its properties listens to event.
func (v *Validator) Dispatch(inst *tree.Instance, event string) {
	e := v.roster[inst]
	if e == nil {
		return
	}
	if _, ok := e.events[event]; !ok {
		return
	}
	if _, err := v.CheckValidity(inst); err != nil {
		v.logger.Error("validation failed", "qualifiedId", inst.QualifiedID(), "error", err)
	}
}

// CheckValidity evaluates the registered properties of inst in registration
// order and stops at the first failing one. Read-only and hidden instances
// are always valid.
func (v *Validator) CheckValidity(inst *tree.Instance) (Status, error) {
	e := v.roster[inst]
	if e == nil {
		return Status{}, nil
	}
	status := Status{State: Valid}
	var err error
	if !skipped(inst) {
		for _, prop := range e.props {
			var ok bool
			ok, status, err = v.check(prop, inst)
			if err != nil {
				status = Status{State: Invalid, Property: prop.Kind, Severity: schema.SeverityError, Message: err.Error()}
				break
			}
			if !ok {
				break
			}
		}
	}
	v.transition(inst, e, status)
	return status, err
}

// CheckAll re-validates every registered instance and returns the first
// invalid one in tree order.
func (v *Validator) CheckAll() (*tree.Instance, bool) {
	for inst := range v.roster {
		if _, err := v.CheckValidity(inst); err != nil {
			v.logger.Error("validation failed", "qualifiedId", inst.QualifiedID(), "error", err)
		}
	}
	var first *tree.Instance
	if v.tree != nil && v.tree.Root() != nil {
		v.tree.Walk(func(inst *tree.Instance) bool {
			if first != nil {
				return false
			}
			if e := v.roster[inst]; e != nil && e.status.State == Invalid {
				first = inst
				return false
			}
			return true
		})
	}
	return first, first == nil
}

// Invalid returns the invalid instances in tree order.
func (v *Validator) Invalid() []*tree.Instance {
	var out []*tree.Instance
	if v.tree == nil || v.tree.Root() == nil {
		return out
	}
	v.tree.Walk(func(inst *tree.Instance) bool {
		if e := v.roster[inst]; e != nil && e.status.State == Invalid {
			out = append(out, inst)
		}
		return true
	})
	return out
}

// State returns the last status of inst; unregistered instances are
// Unchecked.
func (v *Validator) State(inst *tree.Instance) Status {
	if e := v.roster[inst]; e != nil {
		return e.status
	}
	return Status{}
}

// Properties returns the property kinds registered for inst in order.
func (v *Validator) Properties(inst *tree.Instance) []schema.PropertyKind {
	e := v.roster[inst]
	if e == nil {
		return nil
	}
	out := make([]schema.PropertyKind, 0, len(e.props))
	for _, prop := range e.props {
		out = append(out, prop.Kind)
	}
	return out
}

// Events returns how many distinct trigger events inst listens to.
func (v *Validator) Events(inst *tree.Instance) int {
	if e := v.roster[inst]; e != nil {
		return len(e.events)
	}
	return 0
}

// Holds reports whether inst has a roster entry.
func (v *Validator) Holds(inst *tree.Instance) bool {
	_, ok := v.roster[inst]
	return ok
}

// Len returns the roster size.
func (v *Validator) Len() int { return len(v.roster) }

func (v *Validator) transition(inst *tree.Instance, e *entry, status Status) {
	previous := e.status
	e.status = status
	if previous == status {
		return
	}
	v.logger.Debug("validation state changed",
		"qualifiedId", inst.QualifiedID(),
		"from", previous.State.String(),
		"to", status.State.String(),
		"property", string(status.Property),
	)
	if v.onStatus != nil {
		v.onStatus(inst, previous, status)
	}
}

// check evaluates one property. It returns false with an Invalid status when
// the property fails.
func (v *Validator) check(prop dynprop.Property, inst *tree.Instance) (bool, Status, error) {
	res, err := dynprop.Resolve(prop.Def, v.ctx)
	if err != nil {
		return false, Status{}, configError(inst, prop.Kind, err)
	}
	value := strings.TrimSpace(inst.Value())

	var failed bool
	var fallback string
	switch prop.Kind {
	case schema.PropertyMandatory:
		required, err := res.Bool()
		if err != nil {
			return false, Status{}, configError(inst, prop.Kind, err)
		}
		failed, fallback = required && value == "", MessageMandatory
	case schema.PropertyForbidden:
		forbidden, err := res.Bool()
		if err != nil {
			return false, Status{}, configError(inst, prop.Kind, err)
		}
		failed, fallback = forbidden && value != "", MessageForbidden
	case schema.PropertyPattern:
		pattern, err := res.Text()
		if err != nil {
			return false, Status{}, configError(inst, prop.Kind, err)
		}
		if pattern == "" || value == "" {
			break
		}
		re, err := v.compile(pattern)
		if err != nil {
			return false, Status{}, configError(inst, prop.Kind, err)
		}
		failed, fallback = !re.MatchString(value), MessagePattern
	case schema.PropertyCodeList:
		id, err := res.Codelist()
		if err != nil {
			return false, Status{}, configError(inst, prop.Kind, err)
		}
		ctrl := inst.Control()
		if id == "" || value == "" || ctrl == nil || len(ctrl.Options()) == 0 {
			break
		}
		failed, fallback = !widgets.HasOption(ctrl, value), MessageCodeList
	}

	if !failed {
		return true, Status{State: Valid}, nil
	}
	return false, Status{
		State:    Invalid,
		Property: prop.Kind,
		Severity: res.Severity,
		Message:  v.message(res.Message, fallback),
	}, nil
}

func (v *Validator) message(key, fallback string) string {
	if key == "" {
		return fallback
	}
	if v.messages != nil {
		if text := v.messages(key); text != "" {
			return text
		}
	}
	return key
}

// compile anchors pattern so the whole value must match.
func (v *Validator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	v.patterns[pattern] = re
	return re, nil
}

func skipped(inst *tree.Instance) bool {
	if inst.Node().ReadOnly {
		return true
	}
	for p := inst; p != nil; p = p.Parent() {
		if p.Node().Hidden {
			return true
		}
	}
	return false
}

func configError(inst *tree.Instance, kind schema.PropertyKind, err error) error {
	return &schema.ConfigurationError{
		Subject: "field",
		ID:      inst.ContentID(),
		Reason:  fmt.Sprintf("property %s", kind),
		Err:     err,
	}
}
