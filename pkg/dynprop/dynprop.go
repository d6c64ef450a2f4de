// Package dynprop resolves the dynamic properties of field metadata against
// the notice being edited. Constraints are scanned in declaration order; the
// first one scoped to the active notice subtype whose condition holds wins,
// otherwise the unconditional default applies.
//
// Conditions are written in the SDK expression language, which is not
// interpreted here: a non-empty condition is never satisfied. Constraints
// carrying a condition therefore never override the default.
package dynprop

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// DefaultEvent is the trigger event validators listen to when a property does
// not name one.
const DefaultEvent = "change"

// Context carries the execution context properties are resolved against.
type Context struct {
	NoticeSubtype string
	SDKVersion    string
	Language      string
}

// Resolution is the effective value of a dynamic property.
type Resolution struct {
	Value    any
	Severity string
	Message  string
}

// Property pairs a dynamic property definition with its kind and the event
// that triggers its re-evaluation.
type Property struct {
	Kind  schema.PropertyKind
	Def   *schema.DynamicProperty
	Event string
}

// NewProperty builds a Property listening to DefaultEvent.
func NewProperty(kind schema.PropertyKind, def *schema.DynamicProperty) Property {
	return Property{Kind: kind, Def: def, Event: DefaultEvent}
}

// TriggerEvent returns the event the property reacts to.
func (p Property) TriggerEvent() string {
	if strings.TrimSpace(p.Event) == "" {
		return DefaultEvent
	}
	return p.Event
}

// Resolve returns the effective value of prop in ctx. A nil property, or one
// with neither a default nor a matching constraint, is a configuration error.
func Resolve(prop *schema.DynamicProperty, ctx Context) (Resolution, error) {
	if prop == nil {
		return Resolution{}, &schema.ConfigurationError{Subject: "property", Reason: "property is nil"}
	}
	for _, constraint := range prop.Constraints {
		if !constraint.AppliesTo(ctx.NoticeSubtype) {
			continue
		}
		if !conditionMet(constraint.Condition) {
			continue
		}
		return resolutionOf(constraint), nil
	}
	if !prop.HasDefault() {
		return Resolution{}, &schema.ConfigurationError{
			Subject: "property",
			ID:      ctx.NoticeSubtype,
			Reason:  "no default value and no constraint applies",
		}
	}
	return resolutionOf(prop.Default()), nil
}

// conditionMet evaluates a constraint condition. Only the absence of a
// condition counts as satisfied.
func conditionMet(condition string) bool {
	return strings.TrimSpace(condition) == ""
}

func resolutionOf(c schema.Constraint) Resolution {
	severity := c.Severity
	if severity == "" {
		severity = schema.SeverityError
	}
	return Resolution{Value: c.Value, Severity: severity, Message: c.Message}
}

// Bool interprets a resolution value as a boolean flag. Strings "true" and
// "false" are accepted for YAML sources.
func (r Resolution) Bool() (bool, error) {
	switch typed := r.Value.(type) {
	case bool:
		return typed, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("dynprop: value %v is not a boolean", r.Value)
}

// Text interprets a resolution value as a string (patterns).
func (r Resolution) Text() (string, error) {
	switch typed := r.Value.(type) {
	case string:
		return typed, nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return typed.String(), nil
	}
	return "", fmt.Errorf("dynprop: value %v is not a string", r.Value)
}

// Codelist interprets a resolution value as a codelist reference.
func (r Resolution) Codelist() (string, error) {
	if r.Value == nil {
		return "", nil
	}
	id := schema.CodelistRef(r.Value)
	if id == "" {
		return "", fmt.Errorf("dynprop: value %v is not a codelist reference", r.Value)
	}
	return id, nil
}
