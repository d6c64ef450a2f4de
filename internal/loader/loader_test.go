package loader

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formtree/pkg/schema"
	ts "github.com/goliatone/go-formtree/pkg/testsupport"
)

func TestLoadFromFS(t *testing.T) {
	files := fstest.MapFS{"1.10.0/fields/fields.json": {Data: []byte(`{"fields": []}`)}}
	l := New(schema.NewLoaderOptions(schema.WithFileSystem(files)))

	doc, err := l.Load(ts.Context(), schema.SourceFromFS("1.10.0/fields/fields.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := string(doc.Raw()); got != `{"fields": []}` {
		t.Fatalf("raw = %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "16.json")
	if err := os.WriteFile(path, []byte(`{"noticeId": "16"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := New(schema.LoaderOptions{}).Load(ts.Context(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Location() != path {
		t.Fatalf("location = %q", doc.Location())
	}
}

func TestLoadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fields.json":
			_, _ = w.Write([]byte(`{"fields": []}`))
		case "/broken.json":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	disabled := New(schema.LoaderOptions{})
	if _, err := disabled.Load(ts.Context(), schema.SourceFromURL(server.URL+"/fields.json")); !errors.Is(err, ErrHTTPDisabled) {
		t.Fatalf("err = %v, want ErrHTTPDisabled", err)
	}

	l := New(schema.NewLoaderOptions(schema.WithHTTPClient(server.Client())))
	if _, err := l.Load(ts.Context(), schema.SourceFromURL(server.URL+"/fields.json")); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := l.Load(ts.Context(), schema.SourceFromURL(server.URL+"/broken.json"))
	var status *StatusError
	if !errors.As(err, &status) || status.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v, want StatusError 500", err)
	}
	if errors.Is(err, schema.ErrDocumentNotFound) {
		t.Fatalf("server errors must not read as missing documents")
	}
}

func TestMissingDocumentsReportNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	l := New(schema.NewLoaderOptions(
		schema.WithFileSystem(fstest.MapFS{}),
		schema.WithHTTPClient(server.Client()),
	))
	cases := map[string]schema.Source{
		"file": schema.SourceFromFile(filepath.Join(t.TempDir(), "missing.json")),
		"fs":   schema.SourceFromFS("missing.json"),
		"url":  schema.SourceFromURL(server.URL + "/missing.json"),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(ts.Context(), src)
			if !errors.Is(err, schema.ErrDocumentNotFound) {
				t.Fatalf("err = %v, want ErrDocumentNotFound", err)
			}
			if name != "url" && !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("err = %v must keep fs.ErrNotExist", err)
			}
		})
	}
}

func TestLoadRejects(t *testing.T) {
	l := New(schema.LoaderOptions{})
	cancelled, cancel := context.WithCancel(ts.Context())
	cancel()

	cases := []struct {
		name string
		ctx  context.Context
		src  schema.Source
		want error
	}{
		{name: "nil source", ctx: ts.Context(), want: ErrNilSource},
		{name: "empty location", ctx: ts.Context(), src: schema.SourceFromFS(""), want: ErrEmptyLocation},
		{name: "no file system", ctx: ts.Context(), src: schema.SourceFromFS("fields.json"), want: ErrNoFileSystem},
		{name: "cancelled", ctx: cancelled, src: schema.SourceFromFS("fields.json"), want: context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Load(tc.ctx, tc.src); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
