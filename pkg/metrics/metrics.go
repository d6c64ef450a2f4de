package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/validator"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "formtree"

// Option customises a Collector.
type Option func(*Collector)

// WithNamespace overrides the metric namespace.
func WithNamespace(namespace string) Option {
	return func(c *Collector) {
		c.namespace = namespace
	}
}

// WithConstLabels attaches constant labels, such as the notice subtype, to
// every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Collector) {
		c.constLabels = labels
	}
}

// Collector counts tree activity. It is a tree.Listener and its
// ObserveStatus method matches validator.StatusFunc.
type Collector struct {
	namespace   string
	constLabels prometheus.Labels

	added       *prometheus.CounterVec
	removed     *prometheus.CounterVec
	renamed     prometheus.Counter
	values      prometheus.Counter
	live        prometheus.Gauge
	failures    *prometheus.CounterVec
	invalidLive prometheus.Gauge
}

var _ tree.Listener = (*Collector)(nil)

// New constructs a collector. Nothing is registered until Register.
func New(options ...Option) *Collector {
	c := &Collector{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	c.applyDefaults()

	c.added = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Subsystem:   "tree",
		Name:        "instances_added_total",
		Help:        "Instances materialised in the tree, by content type.",
		ConstLabels: c.constLabels,
	}, []string{"content_type"})
	c.removed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Subsystem:   "tree",
		Name:        "instances_removed_total",
		Help:        "Instances detached from the tree, by content type.",
		ConstLabels: c.constLabels,
	}, []string{"content_type"})
	c.renamed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Subsystem:   "tree",
		Name:        "identifiers_renamed_total",
		Help:        "Generated identifiers rewritten after renumbering.",
		ConstLabels: c.constLabels,
	})
	c.values = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Subsystem:   "tree",
		Name:        "value_changes_total",
		Help:        "Field value changes delivered to listeners.",
		ConstLabels: c.constLabels,
	})
	c.live = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Subsystem:   "tree",
		Name:        "instances",
		Help:        "Attached instances.",
		ConstLabels: c.constLabels,
	})
	c.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Subsystem:   "validator",
		Name:        "failures_total",
		Help:        "Transitions into the invalid state, by failing property.",
		ConstLabels: c.constLabels,
	}, []string{"property"})
	c.invalidLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Subsystem:   "validator",
		Name:        "invalid_instances",
		Help:        "Instances currently invalid.",
		ConstLabels: c.constLabels,
	})
	return c
}

func (c *Collector) applyDefaults() {
	if c.namespace == "" {
		c.namespace = DefaultNamespace
	}
}

// Collectors returns every metric of the collector.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.added, c.removed, c.renamed, c.values, c.live, c.failures, c.invalidLive}
}

// Register registers every metric with reg. Registering the same collector
// twice is not an error.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if reg == nil {
		return errors.New("metrics: registerer is nil")
	}
	for _, collector := range c.Collectors() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return fmt.Errorf("metrics: register: %w", err)
		}
	}
	return nil
}

// StructureChanged counts added, removed and renamed instances.
func (c *Collector) StructureChanged(change tree.Change) {
	for _, inst := range change.Added {
		c.added.WithLabelValues(string(inst.Node().ContentType)).Inc()
	}
	for _, inst := range change.Removed {
		c.removed.WithLabelValues(string(inst.Node().ContentType)).Inc()
	}
	c.live.Add(float64(len(change.Added) - len(change.Removed)))
	c.renamed.Add(float64(len(change.Renamed)))
}

// ValueChanged counts field value changes.
func (c *Collector) ValueChanged(*tree.Instance, string) {
	c.values.Inc()
}

// ObserveStatus records validator transitions.
func (c *Collector) ObserveStatus(_ *tree.Instance, previous, current validator.Status) {
	if current.State == validator.Invalid && previous.State != validator.Invalid {
		c.failures.WithLabelValues(string(current.Property)).Inc()
		c.invalidLive.Inc()
	}
	if previous.State == validator.Invalid && current.State != validator.Invalid {
		c.invalidLive.Dec()
	}
}
