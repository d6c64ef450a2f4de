package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formtree/pkg/visualmodel"
)

const sdkDir = "../../pkg/testsupport/testdata/sdk"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const fillScript = `
steps:
  - set: BT-21-Procedure
    value: Road works
  - set: BT-500-Organization-Company
    value: City of Example
  - set: GR-Lot/1/BT-23-Lot
    value: works
`

func TestRunPrintsVisualModel(t *testing.T) {
	scriptPath := writeFile(t, "script.yaml", fillScript)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--sdk", sdkDir, "--sdk-version", "1.10.0", "--subtype", "16", "--script", scriptPath,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}

	model, err := visualmodel.DecodeJSON(stdout.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := []string{model.NoticeSubType, model.FindByContentID("BT-21-Lot").Text()}
	if diff := cmp.Diff([]string{"16", "Road works"}, got); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReportsInvalidFields(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--sdk", sdkDir, "--sdk-version", "1.10.0", "--subtype", "16", "--format", "cbor",
	}, &stdout, &stderr)

	var exit *exitError
	if !errors.As(err, &exit) || exit.ExitCode() != exitInvalid {
		t.Fatalf("err = %v, want invalid exit", err)
	}
	if !strings.Contains(stderr.String(), "invalid bt_21_procedure_0001 (Title): The procedure title is mandatory.") {
		t.Fatalf("stderr = %s", stderr.String())
	}
	if _, err := visualmodel.DecodeCBOR(stdout.Bytes()); err != nil {
		t.Fatalf("decode cbor: %v", err)
	}
}

func TestRunSubmitsNotice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, "<ContractNotice/>")
	}))
	defer server.Close()

	scriptPath := writeFile(t, "script.yaml", fillScript)
	out := filepath.Join(t.TempDir(), "notice.xml")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--sdk", sdkDir, "--sdk-version", "1.10.0", "--subtype", "16",
		"--script", scriptPath, "--submit", server.URL, "-o", out,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "<ContractNotice/>" {
		t.Fatalf("document = %q", data)
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	cases := map[string][]string{
		"no sdk":       {"--sdk-version", "1.10.0", "--subtype", "16"},
		"both sdks":    {"--sdk", sdkDir, "--sdk-url", "http://localhost", "--sdk-version", "1.10.0", "--subtype", "16"},
		"no subtype":   {"--sdk", sdkDir, "--sdk-version", "1.10.0"},
		"bad format":   {"--sdk", sdkDir, "--sdk-version", "1.10.0", "--subtype", "16", "--format", "xml"},
		"extra arg":    {"--sdk", sdkDir, "--sdk-version", "1.10.0", "--subtype", "16", "extra"},
		"unknown flag": {"--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if err := run(context.Background(), args, io.Discard, io.Discard); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}
