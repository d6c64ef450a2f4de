package session

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/metrics"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/validator"
)

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger handed to every component of a session.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSchemaProvider injects the source of notice types and field metadata.
func WithSchemaProvider(p provider.SchemaProvider) Option {
	return func(m *Manager) {
		m.schemas = p
	}
}

// WithCodelistProvider injects the source of codelist codes. Without one,
// code fields carry no options and accept any value.
func WithCodelistProvider(p provider.CodelistProvider) Option {
	return func(m *Manager) {
		m.codelists = p
	}
}

// WithTranslator injects the label catalogue.
func WithTranslator(t provider.Translator) Option {
	return func(m *Manager) {
		m.translator = t
	}
}

// WithSDK uses sdk as schema provider, codelist provider and translator.
func WithSDK(sdk *provider.SDK) Option {
	return func(m *Manager) {
		if sdk == nil {
			return
		}
		m.schemas = sdk
		m.codelists = sdk
		m.translator = sdk
	}
}

// WithListener registers a tree listener on every session. Listeners are
// notified after the registry and the validator.
func WithListener(listener tree.Listener) Option {
	return func(m *Manager) {
		if listener != nil {
			m.listeners = append(m.listeners, listener)
		}
	}
}

// WithStatusFunc observes validation transitions of every session.
func WithStatusFunc(fn validator.StatusFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.statusFuncs = append(m.statusFuncs, fn)
		}
	}
}

// WithMetrics instruments sessions with Prometheus counters registered on
// reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// WithDocService sets the document service Submit posts to.
func WithDocService(client *docservice.Client) Option {
	return func(m *Manager) {
		m.docs = client
	}
}

// WithUUID overrides how notice identifiers are generated.
func WithUUID(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// WithTransformers registers transformers applied, in order, to every
// notice type before its tree is built.
func WithTransformers(transformers ...Transformer) Option {
	return func(m *Manager) {
		for _, t := range transformers {
			if t != nil {
				m.transformers = append(m.transformers, t)
			}
		}
	}
}

func (m *Manager) applyDefaults() {
	if m.defaultsApplied {
		return
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.registerer != nil && m.collector == nil {
		m.collector = metrics.New()
		if err := m.collector.Register(m.registerer); err != nil {
			m.initialiseErr = err
		}
	}
	m.defaultsApplied = true
}
