package testsupport

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// Identifiers of the bundled SDK fixture.
const (
	SDKVersion    = "1.10.0"
	NoticeSubtype = "16"
)

//go:embed testdata/sdk
var sdkFiles embed.FS

// SDK returns the bundled SDK fixture laid out as
// <version>/{notice-types,fields,codelists,translations}.
func SDK() fs.FS {
	sub, err := fs.Sub(sdkFiles, "testdata/sdk")
	if err != nil {
		panic(fmt.Sprintf("testsupport: sdk fixture: %v", err))
	}
	return sub
}

// LoadNoticeType parses and links the bundled contract notice fixture.
func LoadNoticeType(t testing.TB) *schema.NoticeType {
	t.Helper()

	nt, _, err := LoadNoticeTypeFromFS(SDK(), SDKVersion, NoticeSubtype)
	if err != nil {
		t.Fatalf("load notice type: %v", err)
	}
	return nt
}

// LoadNoticeTypeFromFS parses the notice type and field metadata of version
// from fsys and links them, without requiring testing.T.
func LoadNoticeTypeFromFS(fsys fs.FS, version, subtype string) (*schema.NoticeType, *schema.FieldSet, error) {
	if fsys == nil {
		return nil, nil, errors.New("testsupport: filesystem is required")
	}
	ntDoc, err := readDocument(fsys, path.Join(version, "notice-types", subtype+".json"))
	if err != nil {
		return nil, nil, err
	}
	fieldsDoc, err := readDocument(fsys, path.Join(version, "fields", "fields.json"))
	if err != nil {
		return nil, nil, err
	}
	nt, err := schema.ParseNoticeType(ntDoc)
	if err != nil {
		return nil, nil, err
	}
	fields, err := schema.ParseFields(fieldsDoc)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.Link(nt, fields); err != nil {
		return nil, nil, err
	}
	return nt, fields, nil
}

func readDocument(fsys fs.FS, name string) (schema.Document, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return schema.Document{}, fmt.Errorf("testsupport: read %s: %w", name, err)
	}
	doc, err := schema.NewDocument(schema.SourceFromFS(name), data)
	if err != nil {
		return schema.Document{}, fmt.Errorf("testsupport: new document: %w", err)
	}
	return doc, nil
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	WriteMaybeGolden(t, path, payload)
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// CompareJSON decodes both payloads and returns a diff of their structure so
// key order and indentation do not matter.
func CompareJSON(t *testing.T, want, got []byte) string {
	t.Helper()

	var wantValue, gotValue any
	if err := json.Unmarshal(bytes.TrimSpace(want), &wantValue); err != nil {
		t.Fatalf("decode want: %v", err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(got), &gotValue); err != nil {
		t.Fatalf("decode got: %v", err)
	}
	return cmp.Diff(wantValue, gotValue)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
