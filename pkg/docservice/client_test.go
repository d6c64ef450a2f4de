package docservice_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/visualmodel"
)

func sampleModel() *visualmodel.Node {
	title := "Road works"
	return &visualmodel.Node{
		ContentID:     "notice-root",
		ContentType:   "notice",
		VisType:       visualmodel.VisTypeNonField,
		InstanceCount: 1,
		VisNodeID:     "ND-Root",
		SDKVersion:    "eforms-sdk-1.10",
		NoticeSubType: "16",
		NoticeUUID:    "4b1f7a52-0c1e-4d5e-9f3a-6a8b2c9d0e11",
		Children: []*visualmodel.Node{{
			ContentID:     "BT-21-Procedure",
			ContentType:   "field",
			VisType:       visualmodel.VisTypeField,
			InstanceCount: 1,
			Value:         &title,
		}},
	}
}

func TestSubmitReturnsGeneratedDocument(t *testing.T) {
	var received *visualmodel.Node
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("api key header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		model, err := visualmodel.DecodeJSON(body)
		if err != nil {
			t.Errorf("decode request: %v", err)
		}
		received = model
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = io.WriteString(w, "<ContractNotice/>")
	}))
	defer server.Close()

	client, err := docservice.New(server.URL, docservice.WithHeader("X-Api-Key", "secret"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Submit(context.Background(), sampleModel())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Rejected() {
		t.Fatalf("result rejected: %+v", result.Report)
	}
	if got := string(result.Document); got != "<ContractNotice/>" {
		t.Fatalf("document = %q", got)
	}
	if !docservice.IsXML(result.ContentType) {
		t.Fatalf("content type %q is not xml", result.ContentType)
	}
	if diff := cmp.Diff(sampleModel(), received); diff != "" {
		t.Fatalf("submitted model mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitReturnsValidationReport(t *testing.T) {
	cases := []struct {
		name string
		body string
		want map[string][]string
	}{
		{
			name: "errors envelope",
			body: `{"errors": {"GR-Lot/1/BT-21-Lot": ["Title required"], "": "Notice rejected"}}`,
			want: map[string][]string{
				"GR-Lot/1/BT-21-Lot": {"Title required"},
				"":                   {"Notice rejected"},
			},
		},
		{
			name: "issue list",
			body: `{"issues": [{"path": "BT-21-Lot", "message": "Title required"}, {"field": "BT-24-Lot", "message": "Too short"}]}`,
			want: map[string][]string{
				"BT-21-Lot": {"Title required"},
				"BT-24-Lot": {"Too short"},
			},
		},
		{
			name: "bare map",
			body: `{"BT-21-Lot": ["Title required", "Title too long"]}`,
			want: map[string][]string{
				"BT-21-Lot": {"Title required", "Title too long"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			client, err := docservice.New(server.URL)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			result, err := client.Submit(context.Background(), sampleModel())
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if !result.Rejected() {
				t.Fatalf("result should be rejected")
			}
			if diff := cmp.Diff(tc.want, result.Report); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitSendsCBOR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/cbor" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if _, err := visualmodel.DecodeCBOR(body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, "<ContractNotice/>")
	}))
	defer server.Close()

	client, err := docservice.New(server.URL, docservice.WithEncoding("CBOR"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Submit(context.Background(), sampleModel()); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSubmitUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := docservice.New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Submit(context.Background(), sampleModel())
	var statusErr *docservice.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want status error", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "backend down" {
		t.Fatalf("status error = %+v", statusErr)
	}

	if _, err := client.Submit(context.Background(), nil); !errors.Is(err, docservice.ErrNilModel) {
		t.Fatalf("nil model err = %v", err)
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://example.com/notices", "/relative/path", "http://"} {
		if _, err := docservice.New(endpoint); !errors.Is(err, docservice.ErrEndpoint) {
			t.Fatalf("New(%q) err = %v, want ErrEndpoint", endpoint, err)
		}
	}
	if _, err := docservice.New("https://example.com/notices", docservice.WithEncoding("xml")); err == nil {
		t.Fatalf("unsupported encoding should fail")
	}
}
