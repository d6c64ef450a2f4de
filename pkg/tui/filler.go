package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/validator"
)

const defaultAttempts = 3

// Editor is the part of a session the filler drives.
type Editor interface {
	Root() *tree.Instance
	SetValue(inst *tree.Instance, value string) error
	State(inst *tree.Instance) validator.Status
	Label(ctx context.Context, inst *tree.Instance) string
}

// Theme captures optional message prefixes.
type Theme struct {
	ErrorPrefix string
}

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithFilter restricts the prompted fields.
func WithFilter(fn func(*tree.Instance) bool) Option {
	return func(f *Filler) {
		f.filter = fn
	}
}

// WithAttempts bounds how often an invalid answer is asked again.
func WithAttempts(n int) Option {
	return func(f *Filler) {
		f.attempts = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		f.logger = logger
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(f *Filler) {
		f.theme = theme
	}
}

// Filler walks the editable fields of a session and prompts for their
// values in tree order.
type Filler struct {
	driver   PromptDriver
	filter   func(*tree.Instance) bool
	attempts int
	logger   *slog.Logger
	theme    Theme
}

// New constructs a Filler with defaults (survey driver, three attempts).
func New(options ...Option) *Filler {
	f := &Filler{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	if f.attempts <= 0 {
		f.attempts = defaultAttempts
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if f.theme.ErrorPrefix == "" {
		f.theme.ErrorPrefix = "! "
	}
	return f
}

// Fill prompts every editable field. Fields are collected before prompting,
// so instances added by value synchronization are not visited.
func (f *Filler) Fill(ctx context.Context, ed Editor) error {
	if ed == nil {
		return ErrNilEditor
	}
	for _, inst := range f.fields(ed.Root()) {
		if inst.Detached() {
			continue
		}
		if err := f.fillOne(ctx, ed, inst); err != nil {
			return fmt.Errorf("tui: %s: %w", inst.QualifiedID(), err)
		}
	}
	return nil
}

func (f *Filler) fields(root *tree.Instance) []*tree.Instance {
	var out []*tree.Instance
	root.Walk(func(inst *tree.Instance) bool {
		node := inst.Node()
		if node.Hidden {
			return false
		}
		if !inst.IsField() || node.ReadOnly {
			return true
		}
		if f.filter == nil || f.filter(inst) {
			out = append(out, inst)
		}
		return true
	})
	return out
}

func (f *Filler) fillOne(ctx context.Context, ed Editor, inst *tree.Instance) error {
	label := ed.Label(ctx, inst)
	for attempt := 1; attempt <= f.attempts; attempt++ {
		value, err := f.ask(ctx, inst, label)
		if err != nil {
			return err
		}
		if err := ed.SetValue(inst, value); err != nil {
			return err
		}
		status := ed.State(inst)
		if status.State != validator.Invalid {
			return nil
		}
		f.logger.Debug("invalid answer", "qualifiedId", inst.QualifiedID(), "attempt", attempt)
		if err := f.driver.Info(ctx, f.theme.ErrorPrefix+status.Message); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) ask(ctx context.Context, inst *tree.Instance, label string) (string, error) {
	current := inst.Value()
	if options := inst.Control().Options(); len(options) > 0 {
		labels := make([]string, len(options))
		selected := -1
		for i, opt := range options {
			labels[i] = opt.Label
			if labels[i] == "" {
				labels[i] = opt.Value
			}
			if opt.Value == current {
				selected = i
			}
		}
		idx, err := f.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: selected})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(options) {
			return current, nil
		}
		return options[idx].Value, nil
	}
	if strings.EqualFold(inst.Node().DisplayType, schema.DisplayTypeTextarea) {
		return f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: current})
	}
	return f.driver.Input(ctx, InputConfig{Message: label, Default: current})
}
