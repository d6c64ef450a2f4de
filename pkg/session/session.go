package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/dynprop"
	"github.com/goliatone/go-formtree/pkg/metrics"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/syncreg"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/validator"
	"github.com/goliatone/go-formtree/pkg/visualmodel"
)

const sdkVersionPrefix = "eforms-sdk-"

var (
	// ErrBroken is returned by every mutation once a structural change has
	// violated the tree invariants.
	ErrBroken = errors.New("session: broken")
	// ErrNoDocService reports a Submit without a configured document service.
	ErrNoDocService = errors.New("session: document service is not configured")
	// ErrUnknownContent reports a content id that is not a child of the
	// addressed group.
	ErrUnknownContent = errors.New("session: unknown content")
)

// ValidationError blocks a submission while an instance is invalid.
type ValidationError struct {
	QualifiedID string
	Status      validator.Status
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("session: %s is invalid: %s", e.QualifiedID, e.Status.Message)
}

// Request selects the notice form to open.
type Request struct {
	SDKVersion    string
	NoticeSubtype string
	// Language of labels and codelists. Defaults to provider.DefaultLanguage.
	Language string
}

// Manager opens editing sessions over shared providers. It is safe to open
// sessions concurrently; each Session is confined to one goroutine.
type Manager struct {
	logger       *slog.Logger
	schemas      provider.SchemaProvider
	codelists    provider.CodelistProvider
	translator   provider.Translator
	listeners    []tree.Listener
	statusFuncs  []validator.StatusFunc
	registerer   prometheus.Registerer
	collector    *metrics.Collector
	docs         *docservice.Client
	newID        func() string
	transformers []Transformer

	initialiseErr   error
	defaultsApplied bool
}

// New constructs a Manager applying any provided options.
func New(options ...Option) *Manager {
	m := &Manager{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}
	m.applyDefaults()
	return m
}

// Open loads the notice type of req and materialises its instance tree with
// the registry, the validator and any configured listener attached.
func (m *Manager) Open(ctx context.Context, req Request) (*Session, error) {
	if ctx == nil {
		return nil, errors.New("session: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.defaultsApplied {
		m.applyDefaults()
	}
	if err := m.initialiseErr; err != nil {
		return nil, err
	}
	if m.schemas == nil {
		return nil, errors.New("session: schema provider is required")
	}
	req.SDKVersion = strings.TrimSpace(req.SDKVersion)
	req.NoticeSubtype = strings.TrimSpace(req.NoticeSubtype)
	if req.SDKVersion == "" {
		return nil, errors.New("session: sdk version is required")
	}
	if req.NoticeSubtype == "" {
		return nil, errors.New("session: notice subtype is required")
	}
	req.Language = provider.Canonical(req.Language)

	nt, err := m.schemas.ContentSchema(ctx, req.SDKVersion, req.NoticeSubtype)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	standardPresets(nt, req, m.newID)
	for _, t := range m.transformers {
		if err := t.Transform(ctx, nt); err != nil {
			return nil, fmt.Errorf("session: transform notice type: %w", err)
		}
	}

	dctx := dynprop.Context{
		NoticeSubtype: req.NoticeSubtype,
		SDKVersion:    req.SDKVersion,
		Language:      req.Language,
	}
	options, err := m.bindOptions(ctx, nt, req, dctx)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}

	s := &Session{
		ctx:        context.WithoutCancel(ctx),
		logger:     m.logger.With("subtype", req.NoticeSubtype, "sdk", req.SDKVersion),
		req:        req,
		notice:     nt,
		translator: m.translator,
		docs:       m.docs,
	}
	s.tree = tree.New(
		tree.WithLogger(s.logger),
		tree.WithListener(&optionsBinder{options: options}),
	)
	s.registry = syncreg.New(s.tree, syncreg.WithLogger(s.logger))
	s.validator = validator.New(s.tree, dctx,
		validator.WithLogger(s.logger),
		validator.WithMessages(s.message),
		validator.WithStatusFunc(m.statusFunc()),
	)
	if m.collector != nil {
		s.tree.AddListener(m.collector)
	}
	for _, listener := range m.listeners {
		s.tree.AddListener(listener)
	}

	if _, err := s.tree.Load(nt.Root()); err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	if err := s.validator.Err(); err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	s.logger.Debug("session opened", "notice", nt.ID, "language", req.Language)
	return s, nil
}

func (m *Manager) statusFunc() validator.StatusFunc {
	funcs := append([]validator.StatusFunc(nil), m.statusFuncs...)
	if m.collector != nil {
		funcs = append([]validator.StatusFunc{m.collector.ObserveStatus}, funcs...)
	}
	if len(funcs) == 0 {
		return nil
	}
	return func(inst *tree.Instance, previous, current validator.Status) {
		for _, fn := range funcs {
			fn(inst, previous, current)
		}
	}
}

// Session is one open notice: its instance tree, synchronization registry
// and validator. A Session is not safe for concurrent use.
type Session struct {
	ctx        context.Context
	logger     *slog.Logger
	req        Request
	notice     *schema.NoticeType
	translator provider.Translator
	docs       *docservice.Client

	tree      *tree.Tree
	registry  *syncreg.Registry
	validator *validator.Validator
	broken    error
}

// Request returns the normalised request the session was opened with.
func (s *Session) Request() Request { return s.req }

// NoticeType returns the linked notice type backing the tree.
func (s *Session) NoticeType() *schema.NoticeType { return s.notice }

// Tree returns the instance tree.
func (s *Session) Tree() *tree.Tree { return s.tree }

// Root returns the root instance.
func (s *Session) Root() *tree.Instance { return s.tree.Root() }

// Registry returns the synchronization registry.
func (s *Session) Registry() *syncreg.Registry { return s.registry }

// Validator returns the validator.
func (s *Session) Validator() *validator.Validator { return s.validator }

// Err returns the failure that broke the session, if any.
func (s *Session) Err() error { return s.broken }

// Find resolves a qualified id ("gr_lot_0002_bt_21_lot_0001") or a content
// path ("GR-Lot/2/BT-21-Lot", "GR-Lot[2].BT-21-Lot"). Paths without numbers
// address first instances.
func (s *Session) Find(ref string) *tree.Instance {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if inst := s.tree.Find(ref); inst != nil {
		return inst
	}
	qualifiedID, ok := docservice.Locate(s.tree.Root(), ref)
	if !ok {
		return nil
	}
	return s.tree.Find(qualifiedID)
}

// Add materialises the child content contentID under parent. Repeatable
// content is appended as the last member of its repeater.
func (s *Session) Add(parent *tree.Instance, contentID string) (*tree.Instance, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, tree.ErrNilInstance
	}
	var node *schema.Node
	for _, child := range parent.Node().Children {
		if child.ID == contentID {
			node = child
			break
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %s under %s", ErrUnknownContent, contentID, parent.QualifiedID())
	}
	inst, err := s.tree.Instantiate(node, parent)
	return inst, s.settle(err)
}

// AddAfter inserts a new sibling right after inst in its repeater.
func (s *Session) AddAfter(inst *tree.Instance) (*tree.Instance, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, tree.ErrNilInstance
	}
	rep := inst.Repeater()
	if rep == nil {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotRepeatable, inst.ContentID())
	}
	added, err := rep.AddInstance(inst)
	return added, s.settle(err)
}

// Remove detaches inst and its subtree.
func (s *Session) Remove(inst *tree.Instance) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.settle(s.tree.Remove(inst))
}

// Expand materialises the children of a collapsed group.
func (s *Session) Expand(inst *tree.Instance) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.settle(s.tree.Expand(inst))
}

// SetValue writes a field value.
func (s *Session) SetValue(inst *tree.Instance, value string) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.settle(s.tree.SetValue(inst, value))
}

// State returns the validation status of inst.
func (s *Session) State(inst *tree.Instance) validator.Status {
	return s.validator.State(inst)
}

// CheckAll validates every registered instance and returns the first invalid
// one in tree order.
func (s *Session) CheckAll() (*tree.Instance, bool) {
	return s.validator.CheckAll()
}

// VisualModel serializes the tree.
func (s *Session) VisualModel() (*visualmodel.Node, error) {
	return visualmodel.Serialize(s.tree.Root())
}

// Submission is the outcome of Submit. Mapping attaches a rejection report to
// instances.
type Submission struct {
	Result  docservice.Result
	Mapping docservice.ReportMapping
}

// Submit validates the notice and posts its visual model to the document
// service. An invalid instance blocks the submission with a
// *ValidationError.
func (s *Session) Submit(ctx context.Context) (Submission, error) {
	if s.docs == nil {
		return Submission{}, ErrNoDocService
	}
	if first, ok := s.CheckAll(); !ok {
		return Submission{}, &ValidationError{QualifiedID: first.QualifiedID(), Status: s.State(first)}
	}
	model, err := s.VisualModel()
	if err != nil {
		return Submission{}, err
	}
	result, err := s.docs.Submit(ctx, model)
	if err != nil {
		return Submission{}, fmt.Errorf("session: submit: %w", err)
	}
	sub := Submission{Result: result}
	if result.Rejected() {
		sub.Mapping = docservice.MapReport(s.tree.Root(), result.Report)
		s.logger.Debug("notice rejected", "fields", len(sub.Mapping.Fields), "document", len(sub.Mapping.Document))
	}
	return sub, nil
}

func (s *Session) begin() error {
	if s.broken != nil {
		return s.broken
	}
	return nil
}

// settle marks the session broken when err reports an invariant violation.
func (s *Session) settle(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tree.ErrInvariant) {
		s.broken = fmt.Errorf("%w: %w", ErrBroken, err)
		s.logger.Error("session broken", "error", err)
		return s.broken
	}
	return err
}

func (s *Session) message(key string) string {
	if s.translator == nil {
		return ""
	}
	text, err := s.translator.Label(s.ctx, s.req.SDKVersion, key, s.req.Language)
	if err != nil {
		return ""
	}
	return text
}
