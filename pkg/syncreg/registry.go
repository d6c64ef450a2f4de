package syncreg

import (
	"io"
	"log/slog"
	"sort"

	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// OptionsFunc is told whenever the option list of an id-ref field changes.
type OptionsFunc func(inst *tree.Instance, options []widgets.Option)

// Option customises a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for propagation debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithOptionsFunc registers a callback for option list updates.
func WithOptionsFunc(fn OptionsFunc) Option {
	return func(r *Registry) {
		r.onOptions = fn
	}
}

type publication struct {
	scheme     string
	identifier string
}

// Registry keeps identifier references and value copies consistent while the
// tree changes. Id-scheme fields publish their identifier, id-ref fields
// subscribe to the identifiers of their schemes, and fields with a value
// source mirror the value of the source field.
//
// The registry is a tree.Listener; New registers it with the tree.
type Registry struct {
	tree      *tree.Tree
	logger    *slog.Logger
	onOptions OptionsFunc

	// scheme -> identifier -> number of live publishers
	identifiers map[string]map[string]int
	published   map[*tree.Instance]publication

	// scheme -> id-ref subscribers
	idRefs       map[string]map[*tree.Instance]struct{}
	idRefSchemes map[*tree.Instance][]string

	// source content id -> subscribers mirroring it
	valueSubs   map[string]map[*tree.Instance]struct{}
	valueSubOf  map[*tree.Instance]string
	sources     map[string][]*tree.Instance
	isPublisher map[*tree.Instance]struct{}
}

// New constructs a registry writing through t and registers it as a listener.
func New(t *tree.Tree, options ...Option) *Registry {
	r := &Registry{
		tree:         t,
		identifiers:  make(map[string]map[string]int),
		published:    make(map[*tree.Instance]publication),
		idRefs:       make(map[string]map[*tree.Instance]struct{}),
		idRefSchemes: make(map[*tree.Instance][]string),
		valueSubs:    make(map[string]map[*tree.Instance]struct{}),
		valueSubOf:   make(map[*tree.Instance]string),
		sources:      make(map[string][]*tree.Instance),
		isPublisher:  make(map[*tree.Instance]struct{}),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t != nil {
		t.AddListener(r)
	}
	return r
}

// StructureChanged applies a settled structural change. Removals retract
// identifiers before dropping subscriptions; renames are applied as one
// batch; additions publish identifiers, then subscribe id-ref fields seeded
// with the current identifiers, then subscribe value-source fields with the
// current source value.
func (r *Registry) StructureChanged(change tree.Change) {
	for _, inst := range change.Removed {
		if pub, ok := r.published[inst]; ok {
			delete(r.published, inst)
			r.Retract(pub.scheme, pub.identifier)
		}
	}
	for _, inst := range change.Removed {
		if schemes, ok := r.idRefSchemes[inst]; ok {
			r.UnsubscribeIDRef(inst, schemes...)
		}
		if source, ok := r.valueSubOf[inst]; ok {
			r.UnsubscribeValueSource(inst, source)
		}
		r.removeSource(inst)
	}

	r.applyRenames(change.Renamed)

	for _, inst := range change.Added {
		if !inst.IsField() || !inst.Node().HasIDScheme() {
			continue
		}
		r.publishInstance(inst)
	}
	for _, inst := range change.Added {
		if inst.IsField() && inst.Node().HasIDSchemes() {
			r.SubscribeIDRef(inst, inst.Node().IDSchemes...)
		}
	}
	for _, inst := range change.Added {
		if inst.IsField() {
			r.addSource(inst)
		}
	}
	for _, inst := range change.Added {
		if inst.IsField() && inst.Node().ValueSource != "" {
			r.SubscribeValueSource(inst, inst.Node().ValueSource)
		}
	}
}

// ValueChanged propagates a field value to its value-source subscribers and
// keeps published identifiers in step with id-scheme field values.
func (r *Registry) ValueChanged(inst *tree.Instance, previous string) {
	if pub, ok := r.published[inst]; ok && pub.identifier != inst.Value() {
		r.applyRenames([]tree.Rename{{Instance: inst, Previous: pub.identifier, Current: inst.Value()}})
	}
	if _, ok := r.isPublisher[inst]; ok {
		r.NotifyValueChanged(inst.ContentID(), inst.Value())
	}
}

// SubscribeIDRef subscribes inst to the identifiers of the supplied schemes
// and seeds its options. Unknown schemes start without identifiers.
func (r *Registry) SubscribeIDRef(inst *tree.Instance, schemes ...string) {
	if inst == nil || len(schemes) == 0 {
		return
	}
	known := r.idRefSchemes[inst]
	for _, scheme := range schemes {
		if r.idRefs[scheme] == nil {
			r.idRefs[scheme] = make(map[*tree.Instance]struct{})
		}
		if _, dup := r.idRefs[scheme][inst]; !dup {
			known = append(known, scheme)
		}
		r.idRefs[scheme][inst] = struct{}{}
	}
	r.idRefSchemes[inst] = known
	r.refreshOptions(inst)
}

// UnsubscribeIDRef drops the subscriptions of inst for the supplied schemes.
// Unknown subscriptions are ignored.
func (r *Registry) UnsubscribeIDRef(inst *tree.Instance, schemes ...string) {
	for _, scheme := range schemes {
		subs := r.idRefs[scheme]
		delete(subs, inst)
		if len(subs) == 0 {
			delete(r.idRefs, scheme)
		}
	}
	remaining := r.idRefSchemes[inst][:0:0]
	for _, scheme := range r.idRefSchemes[inst] {
		if _, ok := r.idRefs[scheme][inst]; ok {
			remaining = append(remaining, scheme)
		}
	}
	if len(remaining) == 0 {
		delete(r.idRefSchemes, inst)
		return
	}
	r.idRefSchemes[inst] = remaining
}

// SubscribeValueSource makes inst mirror the field with content id source and
// pulls the current value of the first live source instance.
func (r *Registry) SubscribeValueSource(inst *tree.Instance, source string) {
	if inst == nil || source == "" {
		return
	}
	if previous, ok := r.valueSubOf[inst]; ok && previous != source {
		r.UnsubscribeValueSource(inst, previous)
	}
	if r.valueSubs[source] == nil {
		r.valueSubs[source] = make(map[*tree.Instance]struct{})
	}
	r.valueSubs[source][inst] = struct{}{}
	r.valueSubOf[inst] = source

	if publishers := r.sources[source]; len(publishers) > 0 {
		r.write(inst, publishers[0].Value())
	}
}

// UnsubscribeValueSource drops the value-source subscription of inst.
func (r *Registry) UnsubscribeValueSource(inst *tree.Instance, source string) {
	subs := r.valueSubs[source]
	delete(subs, inst)
	if len(subs) == 0 {
		delete(r.valueSubs, source)
	}
	if r.valueSubOf[inst] == source {
		delete(r.valueSubOf, inst)
	}
}

// Publish announces a live identifier of scheme and refreshes the options of
// the subscribers of that scheme.
func (r *Registry) Publish(scheme, identifier string) {
	if scheme == "" || identifier == "" {
		return
	}
	if r.identifiers[scheme] == nil {
		r.identifiers[scheme] = make(map[string]int)
	}
	r.identifiers[scheme][identifier]++
	if r.identifiers[scheme][identifier] == 1 {
		r.logger.Debug("identifier published", "scheme", scheme, "identifier", identifier)
		r.refreshScheme(scheme)
	}
}

// Retract withdraws an identifier of scheme. Once no publisher is left, the
// identifier disappears from the options and subscribers holding it are
// cleared.
func (r *Registry) Retract(scheme, identifier string) {
	ids := r.identifiers[scheme]
	if ids == nil || ids[identifier] == 0 {
		return
	}
	ids[identifier]--
	if ids[identifier] > 0 {
		return
	}
	delete(ids, identifier)
	if len(ids) == 0 {
		delete(r.identifiers, scheme)
	}
	r.logger.Debug("identifier retracted", "scheme", scheme, "identifier", identifier)
	r.refreshScheme(scheme)
	for _, sub := range r.subscribersOf(scheme) {
		if sub.Value() == identifier && !r.offers(sub, identifier) {
			r.write(sub, "")
		}
	}
}

// NotifyValueChanged pushes value to every subscriber mirroring source.
func (r *Registry) NotifyValueChanged(source, value string) {
	subs := r.valueSubs[source]
	if len(subs) == 0 {
		return
	}
	for _, sub := range sortedInstances(subs) {
		r.write(sub, value)
	}
}

// Identifiers returns the live identifiers of scheme, sorted.
func (r *Registry) Identifiers(scheme string) []string {
	ids := r.identifiers[scheme]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Options returns the identifiers offered to an id-ref subscriber: the union
// of the live identifiers of its schemes, sorted.
func (r *Registry) Options(inst *tree.Instance) []widgets.Option {
	seen := make(map[string]struct{})
	var ids []string
	for _, scheme := range r.idRefSchemes[inst] {
		for id := range r.identifiers[scheme] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]widgets.Option, 0, len(ids))
	for _, id := range ids {
		out = append(out, widgets.Option{Value: id, Label: id})
	}
	return out
}

// Stats counts what the registry currently tracks.
type Stats struct {
	Identifiers      int
	Publishers       int
	IDRefSubscribers int
	ValueSubscribers int
	Sources          int
}

// Stats returns the current registry size.
func (r *Registry) Stats() Stats {
	stats := Stats{
		Publishers:       len(r.published),
		IDRefSubscribers: len(r.idRefSchemes),
		ValueSubscribers: len(r.valueSubOf),
		Sources:          len(r.isPublisher),
	}
	for _, ids := range r.identifiers {
		stats.Identifiers += len(ids)
	}
	return stats
}

// Holds reports whether the registry references inst in any role.
func (r *Registry) Holds(inst *tree.Instance) bool {
	if _, ok := r.published[inst]; ok {
		return true
	}
	if _, ok := r.idRefSchemes[inst]; ok {
		return true
	}
	if _, ok := r.valueSubOf[inst]; ok {
		return true
	}
	if _, ok := r.isPublisher[inst]; ok {
		return true
	}
	for _, subs := range r.idRefs {
		if _, ok := subs[inst]; ok {
			return true
		}
	}
	for _, subs := range r.valueSubs {
		if _, ok := subs[inst]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) publishInstance(inst *tree.Instance) {
	identifier := inst.Value()
	if identifier == "" {
		return
	}
	r.published[inst] = publication{scheme: inst.Node().IDScheme, identifier: identifier}
	r.Publish(inst.Node().IDScheme, identifier)
}

// applyRenames moves published identifiers and the references holding them in
// one step, so a chain such as 0002->0001, 0003->0002 never mixes old and new
// identifiers.
func (r *Registry) applyRenames(renames []tree.Rename) {
	if len(renames) == 0 {
		return
	}
	moved := make(map[string]map[string]string)
	schemes := make(map[string]struct{})
	for _, rename := range renames {
		pub, ok := r.published[rename.Instance]
		if !ok {
			continue
		}
		ids := r.identifiers[pub.scheme]
		if ids != nil && ids[pub.identifier] > 0 {
			ids[pub.identifier]--
			if ids[pub.identifier] == 0 {
				delete(ids, pub.identifier)
				if moved[pub.scheme] == nil {
					moved[pub.scheme] = make(map[string]string)
				}
				moved[pub.scheme][pub.identifier] = rename.Current
			}
		}
		schemes[pub.scheme] = struct{}{}
		if rename.Current == "" {
			delete(r.published, rename.Instance)
			continue
		}
		r.published[rename.Instance] = publication{scheme: pub.scheme, identifier: rename.Current}
	}
	for _, rename := range renames {
		pub, ok := r.published[rename.Instance]
		if !ok || pub.identifier != rename.Current {
			continue
		}
		if r.identifiers[pub.scheme] == nil {
			r.identifiers[pub.scheme] = make(map[string]int)
		}
		r.identifiers[pub.scheme][pub.identifier]++
	}
	for scheme := range schemes {
		if len(r.identifiers[scheme]) == 0 {
			delete(r.identifiers, scheme)
		}
		r.refreshScheme(scheme)
	}

	for scheme, mapping := range moved {
		for _, sub := range r.subscribersOf(scheme) {
			current := sub.Value()
			next, ok := mapping[current]
			if !ok {
				continue
			}
			if next != "" && !r.offers(sub, next) {
				next = ""
			}
			r.logger.Debug("reference follows rename", "qualifiedId", sub.QualifiedID(), "from", current, "to", next)
			r.write(sub, next)
		}
	}
}

func (r *Registry) addSource(inst *tree.Instance) {
	if _, ok := r.isPublisher[inst]; ok {
		return
	}
	id := inst.ContentID()
	r.isPublisher[inst] = struct{}{}
	r.sources[id] = append(r.sources[id], inst)
	if len(r.sources[id]) == 1 && inst.Value() != "" {
		r.NotifyValueChanged(id, inst.Value())
	}
}

func (r *Registry) removeSource(inst *tree.Instance) {
	if _, ok := r.isPublisher[inst]; !ok {
		return
	}
	delete(r.isPublisher, inst)
	id := inst.ContentID()
	publishers := r.sources[id]
	for idx, candidate := range publishers {
		if candidate == inst {
			publishers = append(publishers[:idx], publishers[idx+1:]...)
			break
		}
	}
	if len(publishers) == 0 {
		delete(r.sources, id)
		return
	}
	r.sources[id] = publishers
}

func (r *Registry) refreshScheme(scheme string) {
	for _, sub := range r.subscribersOf(scheme) {
		r.refreshOptions(sub)
	}
}

func (r *Registry) refreshOptions(inst *tree.Instance) {
	ctrl := inst.Control()
	if ctrl == nil {
		return
	}
	options := r.Options(inst)
	ctrl.SetOptions(options)
	if r.onOptions != nil {
		r.onOptions(inst, options)
	}
}

func (r *Registry) offers(inst *tree.Instance, identifier string) bool {
	for _, scheme := range r.idRefSchemes[inst] {
		if r.identifiers[scheme][identifier] > 0 {
			return true
		}
	}
	return false
}

func (r *Registry) subscribersOf(scheme string) []*tree.Instance {
	return sortedInstances(r.idRefs[scheme])
}

func (r *Registry) write(inst *tree.Instance, value string) {
	if r.tree == nil || inst.Detached() {
		return
	}
	if err := r.tree.SetValue(inst, value); err != nil {
		r.logger.Debug("registry write skipped", "qualifiedId", inst.QualifiedID(), "error", err)
	}
}

// sortedInstances returns set members ordered by qualified id so propagation
// order does not depend on map iteration.
func sortedInstances(set map[*tree.Instance]struct{}) []*tree.Instance {
	out := make([]*tree.Instance, 0, len(set))
	for inst := range set {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedID() < out[j].QualifiedID()
	})
	return out
}
