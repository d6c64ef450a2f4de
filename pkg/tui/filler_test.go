package tui_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formtree/internal/loader"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/session"
	ts "github.com/goliatone/go-formtree/pkg/testsupport"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/tui"
)

type stubDriver struct {
	inputs    []string
	selectIdx []int
	textAreas []string
	inputPos  int
	selectPos int
	textPos   int

	prompts      []string
	options      [][]string
	infoMessages []string
}

func (s *stubDriver) Input(_ context.Context, cfg tui.InputConfig) (string, error) {
	s.prompts = append(s.prompts, cfg.Message)
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg tui.SelectConfig) (int, error) {
	s.prompts = append(s.prompts, cfg.Message)
	s.options = append(s.options, cfg.Options)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, cfg tui.TextAreaConfig) (string, error) {
	s.prompts = append(s.prompts, cfg.Message)
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func openSession(t *testing.T) *session.Session {
	t.Helper()
	l := loader.New(schema.NewLoaderOptions(schema.WithFileSystem(ts.SDK())))
	sdk := provider.NewSDK(provider.WithLoader(l), provider.WithFS())
	s, err := session.New(session.WithSDK(sdk)).Open(ts.Context(), session.Request{
		SDKVersion:    ts.SDKVersion,
		NoticeSubtype: ts.NoticeSubtype,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func only(ids ...string) func(*tree.Instance) bool {
	return func(inst *tree.Instance) bool {
		for _, id := range ids {
			if inst.ContentID() == id {
				return true
			}
		}
		return false
	}
}

func TestFillPromptsInTreeOrder(t *testing.T) {
	driver := &stubDriver{
		textAreas: []string{"Road works"},
		inputs:    []string{"not-an-email", "office@example.eu"},
		selectIdx: []int{1},
	}
	f := tui.New(
		tui.WithPromptDriver(driver),
		tui.WithFilter(only("BT-21-Procedure", "BT-506-Organization-Company", "BT-23-Lot")),
	)
	s := openSession(t)
	if err := f.Fill(ts.Context(), s); err != nil {
		t.Fatalf("fill: %v", err)
	}

	wantPrompts := []string{"Title", "Email", "Email", "Main nature of the contract"}
	if diff := cmp.Diff(wantPrompts, driver.prompts); diff != "" {
		t.Fatalf("prompts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"Works", "Supplies", "Services"}}, driver.options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"! The email address is not valid."}, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}

	got := []string{
		s.Find("BT-21-Procedure").Value(),
		s.Find("BT-21-Lot").Value(),
		s.Find("BT-506-Organization-Company").Value(),
		s.Find("BT-23-Lot").Value(),
	}
	want := []string{"Road works", "Road works", "office@example.eu", "supplies"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestFillSkipsHiddenAndReadOnlyFields(t *testing.T) {
	driver := &stubDriver{}
	f := tui.New(
		tui.WithPromptDriver(driver),
		tui.WithFilter(only("OPT-002-notice", "BT-137-Lot", "OPT-200-Organization-Company")),
	)
	if err := f.Fill(ts.Context(), openSession(t)); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(driver.prompts) != 0 {
		t.Fatalf("unexpected prompts %v", driver.prompts)
	}
}

func TestFillPropagatesDriverErrors(t *testing.T) {
	f := tui.New(
		tui.WithPromptDriver(&stubDriver{}),
		tui.WithFilter(only("BT-500-Organization-Company")),
	)
	if err := f.Fill(ts.Context(), openSession(t)); err == nil {
		t.Fatalf("expected the unscripted prompt to fail")
	}
	if err := f.Fill(ts.Context(), nil); !errors.Is(err, tui.ErrNilEditor) {
		t.Fatalf("err = %v", err)
	}
}
