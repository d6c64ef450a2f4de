package widgets

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// Option is one selectable entry of a choice control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control holds the value of a field instance. Rendering layers draw it;
// the core only reads and writes values and option lists.
type Control interface {
	Kind() schema.FieldKind
	Widget() string
	Value() string
	// SetValue stores value and reports whether the stored value changed.
	SetValue(value string) bool
	Options() []Option
	SetOptions(options []Option)
	// Exclusive reports whether the value must be one of the options.
	Exclusive() bool
}

var defaultRegistry = NewRegistry()

// Create builds the control for a field node of the given kind. Widgets are
// resolved through the default registry.
func Create(kind schema.FieldKind, node *schema.Node) (Control, error) {
	return CreateWith(defaultRegistry, kind, node)
}

// CreateWith builds a control resolving its widget through reg.
func CreateWith(reg *Registry, kind schema.FieldKind, node *schema.Node) (Control, error) {
	widget, ok := reg.Resolve(node)
	if !ok {
		widget = WidgetTextbox
	}
	base := baseControl{kind: kind, widget: widget}

	switch kind {
	case schema.KindText, schema.KindTextMultilingual, schema.KindEmail, schema.KindPhone, schema.KindURL:
		return &textControl{baseControl: base}, nil
	case schema.KindInteger, schema.KindNumber, schema.KindAmount, schema.KindMeasure,
		schema.KindDate, schema.KindTime, schema.KindID:
		return &trimmedControl{baseControl: base}, nil
	case schema.KindCode, schema.KindIDRef, schema.KindIndicator:
		return &choiceControl{baseControl: base}, nil
	default:
		id := ""
		if node != nil {
			id = node.ID
		}
		return nil, &schema.ConfigurationError{Subject: "field", ID: id, Reason: fmt.Sprintf("no control for kind %q", kind)}
	}
}

// Selected returns the value a control contributes to the document. Exclusive
// controls only contribute a value that matches one of their options, unless
// no options were supplied.
func Selected(c Control) string {
	if c == nil {
		return ""
	}
	value := c.Value()
	if !c.Exclusive() {
		return value
	}
	options := c.Options()
	if len(options) == 0 {
		return value
	}
	for _, opt := range options {
		if opt.Value == value {
			return value
		}
	}
	return ""
}

// HasOption reports whether value is one of the control's options.
func HasOption(c Control, value string) bool {
	if c == nil {
		return false
	}
	for _, opt := range c.Options() {
		if opt.Value == value {
			return true
		}
	}
	return false
}

type baseControl struct {
	kind    schema.FieldKind
	widget  string
	value   string
	options []Option
}

func (c *baseControl) Kind() schema.FieldKind { return c.kind }
func (c *baseControl) Widget() string         { return c.widget }
func (c *baseControl) Value() string          { return c.value }
func (c *baseControl) Exclusive() bool        { return false }

func (c *baseControl) Options() []Option {
	return append([]Option(nil), c.options...)
}

func (c *baseControl) SetOptions(options []Option) {
	c.options = append([]Option(nil), options...)
}

func (c *baseControl) store(value string) bool {
	if c.value == value {
		return false
	}
	c.value = value
	return true
}

// textControl keeps free text as entered.
type textControl struct {
	baseControl
}

func (c *textControl) SetValue(value string) bool {
	return c.store(value)
}

// trimmedControl covers numeric, temporal and identifier inputs where
// surrounding whitespace carries no meaning.
type trimmedControl struct {
	baseControl
}

func (c *trimmedControl) SetValue(value string) bool {
	return c.store(strings.TrimSpace(value))
}

// choiceControl selects one of its options: codes, identifier references and
// indicators.
type choiceControl struct {
	baseControl
}

func (c *choiceControl) SetValue(value string) bool {
	return c.store(strings.TrimSpace(value))
}

func (c *choiceControl) Exclusive() bool { return true }

// IndicatorOptions returns the two options of an indicator control.
func IndicatorOptions(whenTrue, whenFalse string) []Option {
	return []Option{
		{Value: "true", Label: whenTrue},
		{Value: "false", Label: whenFalse},
	}
}
