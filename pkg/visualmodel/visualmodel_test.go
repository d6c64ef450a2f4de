package visualmodel

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formtree/pkg/schema"
	ts "github.com/goliatone/go-formtree/pkg/testsupport"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

const noticeUUID = "4b1f7a52-0c1e-4d5e-9f3a-6a8b2c9d0e11"

func standardFields() *schema.Node {
	return ts.Group("GR-Notice-Metadata", ts.Cosmetic(), ts.Children(
		ts.Field(schema.FieldSDKVersion, schema.KindID, ts.Preset("eforms-sdk-1.10")),
		ts.Field(schema.FieldNoticeSubtype, schema.KindCode, ts.Preset("16")),
		ts.Field(schema.FieldNoticeUUID, schema.KindID, ts.Preset(noticeUUID)),
	))
}

func lotTree(t *testing.T) *tree.Tree {
	t.Helper()
	lot := ts.Group("GR-Lot", ts.Repeatable(), ts.Children(
		ts.Field("BT-21-Lot", schema.KindText),
		ts.Group("GR-Lot-Description", ts.Cosmetic(), ts.Children(
			ts.Field("BT-24-Lot", schema.KindText),
		)),
	))
	root := ts.Root(standardFields(), lot, ts.Field("BT-771-Lot", schema.KindIndicator))

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
	titles := tr.FindByContentID("BT-21-Lot")
	tr.SetValue(titles[0], "First")
	tr.SetValue(titles[1], "Second")

	indicator := tr.FindByContentID("BT-771-Lot")[0]
	indicator.Control().SetOptions(widgets.IndicatorOptions("yes", "no"))
	tr.SetValue(indicator, "true")
	return tr
}

func TestSerializeMatchesGolden(t *testing.T) {
	tr := lotTree(t)
	model, err := Serialize(tr.Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := EncodeJSON(model)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	golden := filepath.Join("testdata", "visual_model.golden.json")
	if ts.WriteMaybeGolden(t, golden, got) {
		return
	}
	if diff := ts.CompareJSON(t, ts.MustReadGolden(t, golden), got); diff != "" {
		t.Fatalf("visual model mismatch (-want +got):\n%s", diff)
	}
}

func TestInstanceCountEncodesAsContentCount(t *testing.T) {
	model, err := Serialize(lotTree(t).Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	data, err := EncodeJSON(model)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded struct {
		Children []map[string]any `json:"children"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var counts []any
	for _, child := range decoded.Children {
		if child["contentId"] != "GR-Lot" {
			continue
		}
		if _, ok := child["instanceCount"]; ok {
			t.Fatalf("instance number must not be encoded as instanceCount")
		}
		counts = append(counts, child["contentCount"])
	}
	if diff := cmp.Diff([]any{float64(1), float64(2)}, counts); diff != "" {
		t.Fatalf("lot contentCount mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeIsIdempotentAndSkipsCosmeticGroups(t *testing.T) {
	nt := ts.LoadNoticeType(t)
	tr := tree.New()
	if _, err := tr.Load(nt.Root()); err != nil {
		t.Fatalf("load: %v", err)
	}

	first, err := Serialize(tr.Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	second, err := Serialize(tr.Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("serialization is not idempotent (-first +second):\n%s", diff)
	}

	var cosmetic []string
	nt.Root().Walk(func(node *schema.Node) bool {
		if node.IsCosmetic() {
			cosmetic = append(cosmetic, node.ID)
		}
		return true
	})
	if len(cosmetic) == 0 {
		t.Fatalf("fixture has no cosmetic groups")
	}
	for _, id := range cosmetic {
		if first.FindByContentID(id) != nil {
			t.Fatalf("cosmetic group %s must not be serialized", id)
		}
	}

	org := first.FindByContentID("GR-Organisation")
	if org == nil || org.VisNodeID != "ND-Organization" {
		t.Fatalf("organisation node = %+v", org)
	}
	if org.FindByContentID("BT-513-Organization-Company") == nil {
		t.Fatalf("fields of a cosmetic group must be spliced into the parent")
	}
	if got := first.FindByContentID(schema.MetadataContainerID); got == nil || got.VisType != VisTypeNonField {
		t.Fatalf("metadata container = %+v", got)
	}
}

func TestExclusiveChoiceExportsCheckedOption(t *testing.T) {
	tr := lotTree(t)
	indicator := tr.FindByContentID("BT-771-Lot")[0]
	tr.SetValue(indicator, "maybe")

	model, err := Serialize(tr.Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got := model.FindByContentID("BT-771-Lot").Text(); got != "" {
		t.Fatalf("value outside the options must not be exported, got %q", got)
	}
}

func TestSerializeRequiresStandardFields(t *testing.T) {
	tr := tree.New()
	root := ts.Root(
		ts.Field(schema.FieldSDKVersion, schema.KindID),
		ts.Field(schema.FieldNoticeSubtype, schema.KindCode),
	)
	if _, err := tr.Load(root); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := Serialize(tr.Root())
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want serialization error", err)
	}
	if serr.ContentID != schema.FieldNoticeUUID {
		t.Fatalf("missing field = %q", serr.ContentID)
	}

	if _, err := Serialize(nil); !errors.As(err, &serr) {
		t.Fatalf("nil root err = %v", err)
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	tr := lotTree(t)
	model, err := Serialize(tr.Root())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	a, err := EncodeCBOR(model)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeCBOR(model)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encodings differ")
	}
	decoded, err := DecodeCBOR(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(model, decoded); diff != "" {
		t.Fatalf("decoded model mismatch (-want +got):\n%s", diff)
	}
}
