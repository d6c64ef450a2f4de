package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-formtree/internal/loader"
	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/session"
	ts "github.com/goliatone/go-formtree/pkg/testsupport"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/validator"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

const noticeUUID = "4b1f7a52-0c1e-4d5e-9f3a-6a8b2c9d0e11"

func newSDK() *provider.SDK {
	l := loader.New(schema.NewLoaderOptions(schema.WithFileSystem(ts.SDK())))
	return provider.NewSDK(provider.WithLoader(l), provider.WithFS())
}

func open(t *testing.T, lang string, options ...session.Option) *session.Session {
	t.Helper()
	base := []session.Option{
		session.WithSDK(newSDK()),
		session.WithUUID(func() string { return noticeUUID }),
	}
	m := session.New(append(base, options...)...)
	s, err := m.Open(ts.Context(), session.Request{
		SDKVersion:    ts.SDKVersion,
		NoticeSubtype: ts.NoticeSubtype,
		Language:      lang,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func mustFind(t *testing.T, s *session.Session, ref string) *tree.Instance {
	t.Helper()
	inst := s.Find(ref)
	if inst == nil {
		t.Fatalf("%s not found", ref)
	}
	return inst
}

// firstOf returns the first instance of a content id that carries no
// addressable path, such as a container or a cosmetic group.
func firstOf(t *testing.T, s *session.Session, contentID string) *tree.Instance {
	t.Helper()
	found := s.Tree().FindByContentID(contentID)
	if len(found) == 0 {
		t.Fatalf("no instance of %s", contentID)
	}
	return found[0]
}

func TestOpenPresetsStandardFields(t *testing.T) {
	s := open(t, "")
	if got := s.Request().Language; got != provider.DefaultLanguage {
		t.Fatalf("language = %q", got)
	}

	model, err := s.VisualModel()
	if err != nil {
		t.Fatalf("visual model: %v", err)
	}
	got := []string{model.SDKVersion, model.NoticeSubType, model.NoticeUUID}
	want := []string{"eforms-sdk-1.10.0", "16", noticeUUID}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("standard fields mismatch (-want +got):\n%s", diff)
	}
	if v := mustFind(t, s, "BT-702(a)-notice").Value(); v != "ENG" {
		t.Fatalf("notice language = %q", v)
	}
}

func TestOpenBindsOptions(t *testing.T) {
	s := open(t, "en-GB")

	nature := mustFind(t, s, "GR-Lot/1/BT-23-Lot")
	wantNature := []widgets.Option{
		{Value: "works", Label: "Works"},
		{Value: "supplies", Label: "Supplies"},
		{Value: "services", Label: "Services"},
	}
	if diff := cmp.Diff(wantNature, nature.Control().Options()); diff != "" {
		t.Fatalf("codelist options mismatch (-want +got):\n%s", diff)
	}

	indicator := mustFind(t, s, "BT-771-Lot")
	wantIndicator := widgets.IndicatorOptions("Yes, information may be completed later", "No")
	if diff := cmp.Diff(wantIndicator, indicator.Control().Options()); diff != "" {
		t.Fatalf("indicator options mismatch (-want +got):\n%s", diff)
	}

	review := mustFind(t, s, "OPT-301-Lot-ReviewOrg")
	var values []string
	for _, opt := range review.Control().Options() {
		values = append(values, opt.Value)
	}
	if diff := cmp.Diff([]string{"ORG-0001"}, values); diff != "" {
		t.Fatalf("id-ref options mismatch (-want +got):\n%s", diff)
	}

	fr := open(t, "fr")
	indicator = mustFind(t, fr, "BT-771-Lot")
	if diff := cmp.Diff(widgets.IndicatorOptions("Oui", "Non"), indicator.Control().Options()); diff != "" {
		t.Fatalf("french indicator options mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationUsesTranslatedMessages(t *testing.T) {
	s := open(t, "en")

	first, ok := s.CheckAll()
	if ok {
		t.Fatalf("a fresh notice must not be valid")
	}
	if got := first.QualifiedID(); got != "bt_21_procedure_0001" {
		t.Fatalf("first invalid = %s", got)
	}
	if got := s.State(first).Message; got != "The procedure title is mandatory." {
		t.Fatalf("message = %q", got)
	}

	if err := s.SetValue(first, "Road works"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if got := s.State(first).State; got != validator.Valid {
		t.Fatalf("state = %s", got)
	}
	if v := mustFind(t, s, "GR-Lot/1/BT-21-Lot").Value(); v != "Road works" {
		t.Fatalf("value source not mirrored, got %q", v)
	}
}

func TestStructuralOperations(t *testing.T) {
	s := open(t, "en")
	if err := s.SetValue(mustFind(t, s, "BT-21-Procedure"), "Road works"); err != nil {
		t.Fatalf("set value: %v", err)
	}

	first := mustFind(t, s, "GR-Lot/1")
	second, err := s.AddAfter(first)
	if err != nil {
		t.Fatalf("add after: %v", err)
	}
	if got := second.QualifiedID(); got != "gr_lot_0002" {
		t.Fatalf("new lot = %s", got)
	}
	if v := mustFind(t, s, "GR-Lot/2/BT-21-Lot").Value(); v != "Road works" {
		t.Fatalf("new lot did not pull the source value, got %q", v)
	}
	if v := mustFind(t, s, "GR-Lot/2/BT-137-Lot").Value(); v != "LOT-0002" {
		t.Fatalf("new lot identifier = %q", v)
	}

	if err := s.Remove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if v := mustFind(t, s, "GR-Lot/1/BT-137-Lot").Value(); v != "LOT-0001" {
		t.Fatalf("renumbered identifier = %q", v)
	}
	if s.Find("GR-Lot/2") != nil {
		t.Fatalf("second lot must be gone after renumbering")
	}

	options := mustFind(t, s, "GR-Lot/1/GR-Lot-Options")
	if len(options.Children()) != 0 {
		t.Fatalf("collapsed group must start empty")
	}
	if _, err := s.Add(options, "BT-54-Lot"); !errors.Is(err, tree.ErrCollapsedParent) {
		t.Fatalf("add under collapsed group err = %v", err)
	}
	if err := s.Expand(options); err != nil {
		t.Fatalf("expand: %v", err)
	}
	mustFind(t, s, "GR-Lot/1/BT-54-Lot")

	if _, err := s.AddAfter(mustFind(t, s, "BT-21-Procedure")); !errors.Is(err, tree.ErrNotRepeatable) {
		t.Fatalf("add after a field err = %v", err)
	}
	data := firstOf(t, s, schema.DataContainerID)
	if _, err := s.Add(data, "GR-Nope"); !errors.Is(err, session.ErrUnknownContent) {
		t.Fatalf("add unknown err = %v", err)
	}
	lot, err := s.Add(data, "GR-Lot")
	if err != nil {
		t.Fatalf("add lot: %v", err)
	}
	if got := lot.Number(); got != 2 {
		t.Fatalf("appended lot number = %d", got)
	}
}

func TestLabels(t *testing.T) {
	s := open(t, "en")
	ctx := ts.Context()
	cases := []struct {
		ref  string
		want string
	}{
		{ref: "GR-Lot/1", want: "Lot (0001)"},
		{ref: "GR-Lot/1/BT-21-Lot", want: "Lot title"},
		{ref: "GR-Organisations", want: "Organisations"},
	}
	for _, tc := range cases {
		inst := s.Find(tc.ref)
		if inst == nil {
			inst = firstOf(t, s, tc.ref)
		}
		if got := s.Label(ctx, inst); got != tc.want {
			t.Errorf("Label(%s) = %q, want %q", tc.ref, got, tc.want)
		}
	}

	fr := open(t, "fr")
	if got := fr.Label(ctx, mustFind(t, fr, "BT-21-Procedure")); got != "Titre" {
		t.Fatalf("french label = %q", got)
	}
	if got := fr.Label(ctx, mustFind(t, fr, "BT-21-Lot")); got != "Lot title" {
		t.Fatalf("fallback label = %q", got)
	}
}

func fillMandatory(t *testing.T, s *session.Session) {
	t.Helper()
	values := map[string]string{
		"BT-21-Procedure":             "Road works",
		"BT-500-Organization-Company": "City of Example",
		"GR-Lot/1/BT-23-Lot":          "works",
	}
	for ref, value := range values {
		if err := s.SetValue(mustFind(t, s, ref), value); err != nil {
			t.Fatalf("set %s: %v", ref, err)
		}
	}
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors": {"GR-Lot/1/BT-21-Lot": ["Lot title is too short"], "": ["Notice rejected"]}}`)
	}))
	defer server.Close()

	client, err := docservice.New(server.URL)
	if err != nil {
		t.Fatalf("docservice: %v", err)
	}

	if _, err := open(t, "en").Submit(ts.Context()); !errors.Is(err, session.ErrNoDocService) {
		t.Fatalf("submit without service err = %v", err)
	}

	s := open(t, "en", session.WithDocService(client))
	_, err = s.Submit(ts.Context())
	var invalid *session.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if invalid.QualifiedID != "bt_21_procedure_0001" {
		t.Fatalf("blocking instance = %s", invalid.QualifiedID)
	}

	fillMandatory(t, s)
	sub, err := s.Submit(ts.Context())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sub.Result.Rejected() {
		t.Fatalf("submission should be rejected")
	}
	want := docservice.ReportMapping{
		Fields:   map[string][]string{"gr_lot_0001_bt_21_lot_0001": {"Lot title is too short"}},
		Document: []string{"Notice rejected"},
	}
	if diff := cmp.Diff(want, sub.Mapping); diff != "" {
		t.Fatalf("report mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetTransformer(t *testing.T) {
	preset, err := session.NewPresetTransformer([]byte(`
content:
  BT-21-Procedure: {presetValue: "Preset title"}
  GR-Lot-Options: {collapsed: false}
`))
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	s := open(t, "en", session.WithTransformers(preset))
	if v := mustFind(t, s, "BT-21-Procedure").Value(); v != "Preset title" {
		t.Fatalf("preset value = %q", v)
	}
	mustFind(t, s, "GR-Lot/1/BT-54-Lot")

	bad, err := session.NewPresetTransformer([]byte(`content: {GR-Nope: {hidden: true}}`))
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	m := session.New(session.WithSDK(newSDK()), session.WithTransformers(bad))
	_, err = m.Open(ts.Context(), session.Request{SDKVersion: ts.SDKVersion, NoticeSubtype: ts.NoticeSubtype})
	var cfg *schema.ConfigurationError
	if !errors.As(err, &cfg) || cfg.ID != "GR-Nope" {
		t.Fatalf("err = %v, want configuration error for GR-Nope", err)
	}

	if _, err := session.NewPresetTransformer(nil); err == nil {
		t.Fatalf("empty preset document should fail")
	}
}

func TestListenersAndMetrics(t *testing.T) {
	var added int
	listener := tree.ListenerFuncs{OnStructure: func(change tree.Change) {
		added += len(change.Added)
	}}
	var transitions int
	reg := prometheus.NewRegistry()
	s := open(t, "en",
		session.WithListener(listener),
		session.WithMetrics(reg),
		session.WithStatusFunc(func(*tree.Instance, validator.Status, validator.Status) { transitions++ }),
	)
	if added == 0 {
		t.Fatalf("listener did not see the load")
	}
	if transitions == 0 {
		t.Fatalf("status func did not see validation")
	}

	live := 0
	s.Tree().Walk(func(*tree.Instance) bool {
		live++
		return true
	})
	if added != live {
		t.Fatalf("listener saw %d added instances, tree has %d", added, live)
	}

	count, err := testutil.GatherAndCount(reg, "formtree_tree_instances")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("instances series = %d", count)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := ts.Context()
	if _, err := session.New().Open(ctx, session.Request{SDKVersion: "1", NoticeSubtype: "16"}); err == nil {
		t.Fatalf("open without provider should fail")
	}

	m := session.New(session.WithSDK(newSDK()))
	if _, err := m.Open(ctx, session.Request{SDKVersion: ts.SDKVersion}); err == nil {
		t.Fatalf("open without subtype should fail")
	}
	if _, err := m.Open(ctx, session.Request{SDKVersion: ts.SDKVersion, NoticeSubtype: "99"}); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("unknown subtype err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Open(cancelled, session.Request{SDKVersion: ts.SDKVersion, NoticeSubtype: ts.NoticeSubtype}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled open err = %v", err)
	}
}
