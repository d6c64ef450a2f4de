package docservice_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/schema"
	ts "github.com/goliatone/go-formtree/pkg/testsupport"
	"github.com/goliatone/go-formtree/pkg/tree"
)

func lotTree(t *testing.T) *tree.Tree {
	t.Helper()
	lot := ts.Group("GR-Lot", ts.Repeatable(), ts.Children(
		ts.Field("BT-21-Lot", schema.KindText),
		ts.Group("GR-Lot-Description", ts.Cosmetic(), ts.Children(
			ts.Field("BT-24-Lot", schema.KindText),
		)),
	))
	root := ts.Root(ts.Field("BT-22-Procedure", schema.KindText), lot)

	tr := tree.New()
	if _, err := tr.Load(root); err != nil {
		t.Fatalf("load: %v", err)
	}
	rep, err := tr.Repeater(tr.Root(), lot)
	if err != nil {
		t.Fatalf("repeater: %v", err)
	}
	if _, err := rep.AddInstance(nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	return tr
}

func TestMapReportResolvesInstancePaths(t *testing.T) {
	tr := lotTree(t)

	report := map[string][]string{
		"GR-Lot/2/BT-21-Lot":            {"Title too long"},
		"/body/GR-Lot[2]/BT-24-Lot":     {"Description required"},
		"gr_lot_0001_bt_21_lot_0001":    {"Title required"},
		"BT-21-Lot":                     {" Title required ", "Use the official title"},
		"#/notice-data/BT-22-Procedure": {"Unknown procedure"},
		"GR-Lot.2.BT-99-Unknown":        {"Lot incomplete"},
		"BT-99-Unknown":                 {"Unknown rule failed"},
		"non_field_errors":              {"Notice rejected"},
		"":                              {"Unscoped error", "  "},
	}

	mapped := docservice.MapReport(tr.Root(), report)

	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	wantFields := map[string][]string{
		"gr_lot_0002_bt_21_lot_0001": {"Title too long"},
		"gr_lot_0002_bt_24_lot_0001": {"Description required"},
		"gr_lot_0001_bt_21_lot_0001": {"Title required", "Use the official title"},
		"bt_22_procedure_0001":       {"Unknown procedure"},
		"gr_lot_0002":                {"Lot incomplete"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields, sorted); diff != "" {
		t.Fatalf("field messages mismatch (-want +got):\n%s", diff)
	}

	wantDocument := []string{"Notice rejected", "Unknown rule failed", "Unscoped error"}
	if diff := cmp.Diff(wantDocument, mapped.Document, sorted); diff != "" {
		t.Fatalf("document messages mismatch (-want +got):\n%s", diff)
	}
}

func TestMapReportEmpty(t *testing.T) {
	tr := lotTree(t)
	mapped := docservice.MapReport(tr.Root(), nil)
	if len(mapped.Fields) != 0 || len(mapped.Document) != 0 {
		t.Fatalf("empty report mapped to %+v", mapped)
	}

	mapped = docservice.MapReport(nil, map[string][]string{"BT-21-Lot": {"orphan"}})
	if diff := cmp.Diff([]string{"orphan"}, mapped.Document); diff != "" {
		t.Fatalf("document messages mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeMessages(t *testing.T) {
	merged := docservice.MergeMessages([]string{" First ", "Second"}, "Second", "third", "  ")
	want := []string{"First", "Second", "third"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged messages mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateRequiresExactPath(t *testing.T) {
	tr := lotTree(t)
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{path: "GR-Lot/2/BT-21-Lot", want: "gr_lot_0002_bt_21_lot_0001", ok: true},
		{path: "GR-Lot[2]", want: "gr_lot_0002", ok: true},
		{path: "BT-24-Lot", want: "gr_lot_0001_bt_24_lot_0001", ok: true},
		{path: "bt_22_procedure_0001", want: "bt_22_procedure_0001", ok: true},
		{path: "GR-Lot/2/BT-99-Unknown"},
		{path: ""},
	}
	for _, tc := range cases {
		got, ok := docservice.Locate(tr.Root(), tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Locate(%q) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}
