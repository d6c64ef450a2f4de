package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// Built-in widget identifiers exposed by the registry.
const (
	WidgetTextbox  = "textbox"
	WidgetTextarea = "textarea"
	WidgetCombobox = "combobox"
	WidgetRadio    = "radio"
	WidgetCheckbox = "checkbox"
	WidgetHidden   = "hidden"
)

// Matcher decides whether a widget should handle the supplied node.
type Matcher func(node *schema.Node) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for field nodes based on the display type declared
// by the notice type or registered matchers. Higher priority wins; ties fall
// back to registration order.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in widget matchers
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a widget matcher with the provided name and priority. Higher
// priority values take precedence.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget name for a node. An explicit display type is
// honoured before matcher evaluation.
func (r *Registry) Resolve(node *schema.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if explicit := explicitWidget(node); explicit != "" {
		return explicit, true
	}
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(node) {
			return entry.name, true
		}
	}
	return "", false
}

func explicitWidget(node *schema.Node) string {
	switch strings.ToUpper(strings.TrimSpace(node.DisplayType)) {
	case schema.DisplayTypeCombobox:
		return WidgetCombobox
	case schema.DisplayTypeRadio:
		return WidgetRadio
	case schema.DisplayTypeCheckbox:
		return WidgetCheckbox
	case schema.DisplayTypeTextarea:
		return WidgetTextarea
	case schema.DisplayTypeTextbox:
		return WidgetTextbox
	default:
		return ""
	}
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetRadio, 90, func(node *schema.Node) bool {
		return node.Kind() == schema.KindIndicator
	})

	r.Register(WidgetCombobox, 80, func(node *schema.Node) bool {
		kind := node.Kind()
		return kind == schema.KindCode || kind == schema.KindIDRef
	})

	r.Register(WidgetTextarea, 60, func(node *schema.Node) bool {
		if node.Kind() != schema.KindTextMultilingual {
			return false
		}
		return node.Field != nil && node.Field.MaxLength > 400
	})

	r.Register(WidgetHidden, 50, func(node *schema.Node) bool {
		return node.Hidden
	})

	r.Register(WidgetTextbox, 0, func(node *schema.Node) bool {
		return node.IsField()
	})
}
