// formtree-cli opens an eForms notice form from an SDK, applies an optional
// operation script or interactive answers, validates the result and prints
// the visual model. With --submit the notice is posted to a document service
// instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	formtree "github.com/goliatone/go-formtree"
	"github.com/goliatone/go-formtree/internal/script"
	"github.com/goliatone/go-formtree/pkg/docservice"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/session"
	"github.com/goliatone/go-formtree/pkg/tui"
	"github.com/goliatone/go-formtree/pkg/visualmodel"
)

// Exit codes beyond the generic failure.
const (
	exitInvalid  = 2
	exitRejected = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

type config struct {
	sdkDir      string
	sdkURL      string
	sdkVersion  string
	subtype     string
	lang        string
	scriptPath  string
	presetPath  string
	format      string
	output      string
	submitURL   string
	interactive bool
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cfg config
	flagSet := pflag.NewFlagSet("formtree-cli", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&cfg.sdkDir, "sdk", "", "SDK directory laid out as <version>/{notice-types,fields,codelists,translations}")
	flagSet.StringVar(&cfg.sdkURL, "sdk-url", "", "base URL serving the SDK layout")
	flagSet.StringVar(&cfg.sdkVersion, "sdk-version", "", "SDK version, e.g. 1.10.0")
	flagSet.StringVar(&cfg.subtype, "subtype", "", "notice subtype, e.g. 16")
	flagSet.StringVar(&cfg.lang, "lang", provider.DefaultLanguage, "label language")
	flagSet.StringVar(&cfg.scriptPath, "script", "", "YAML operation script applied after opening")
	flagSet.StringVar(&cfg.presetPath, "preset", "", "YAML preset document applied to the notice type")
	flagSet.StringVar(&cfg.format, "format", docservice.EncodingJSON, "visual model encoding: json or cbor")
	flagSet.StringVarP(&cfg.output, "output", "o", "", "output file (stdout if empty)")
	flagSet.StringVar(&cfg.submitURL, "submit", "", "document service URL the notice is submitted to")
	flagSet.BoolVarP(&cfg.interactive, "interactive", "i", false, "prompt for every editable field")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "debug logging")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	options, err := cfg.sessionOptions(logger)
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}
	s, err := session.New(options...).Open(ctx, formtree.Request{
		SDKVersion:    cfg.sdkVersion,
		NoticeSubtype: cfg.subtype,
		Language:      cfg.lang,
	})
	if err != nil {
		logger.Error("open failed", "error", err)
		return err
	}

	if cfg.scriptPath != "" {
		sc, err := script.Load(cfg.scriptPath)
		if err != nil {
			return err
		}
		if err := sc.Apply(s); err != nil {
			return err
		}
	}
	if cfg.interactive {
		filler := tui.New(tui.WithLogger(logger))
		if err := filler.Fill(ctx, s); err != nil {
			return err
		}
	}

	if cfg.submitURL != "" {
		return submit(ctx, s, cfg, stdout, stderr)
	}

	invalid := reportInvalid(ctx, s, stderr)
	model, err := s.VisualModel()
	if err != nil {
		return err
	}
	data, err := encode(model, cfg.format)
	if err != nil {
		return err
	}
	if err := write(cfg.output, stdout, data); err != nil {
		return err
	}
	if invalid > 0 {
		return &exitError{code: exitInvalid, err: fmt.Errorf("%d invalid field(s)", invalid)}
	}
	return nil
}

func (c *config) validate() error {
	if (c.sdkDir == "") == (c.sdkURL == "") {
		return errors.New("exactly one of --sdk or --sdk-url is required")
	}
	if strings.TrimSpace(c.sdkVersion) == "" {
		return errors.New("--sdk-version is required")
	}
	if strings.TrimSpace(c.subtype) == "" {
		return errors.New("--subtype is required")
	}
	c.format = strings.ToLower(strings.TrimSpace(c.format))
	if c.format != docservice.EncodingJSON && c.format != docservice.EncodingCBOR {
		return fmt.Errorf("unsupported format %q", c.format)
	}
	return nil
}

func (c *config) sessionOptions(logger *slog.Logger) ([]session.Option, error) {
	var sdk *provider.SDK
	if c.sdkDir != "" {
		sdk = formtree.NewSDKFromDir(c.sdkDir, provider.WithLogger(logger))
	} else {
		sdk = formtree.NewSDKFromURL(c.sdkURL, provider.WithLogger(logger))
	}
	options := []session.Option{session.WithSDK(sdk), session.WithLogger(logger)}

	if c.presetPath != "" {
		data, err := os.ReadFile(c.presetPath)
		if err != nil {
			return nil, fmt.Errorf("read preset: %w", err)
		}
		preset, err := session.NewPresetTransformer(data)
		if err != nil {
			return nil, err
		}
		options = append(options, session.WithTransformers(preset))
	}
	if c.submitURL != "" {
		client, err := docservice.New(c.submitURL,
			docservice.WithLogger(logger),
			docservice.WithEncoding(c.format),
		)
		if err != nil {
			return nil, err
		}
		options = append(options, session.WithDocService(client))
	}
	return options, nil
}

func reportInvalid(ctx context.Context, s *session.Session, stderr io.Writer) int {
	s.CheckAll()
	invalid := s.Validator().Invalid()
	for _, inst := range invalid {
		status := s.State(inst)
		fmt.Fprintf(stderr, "invalid %s (%s): %s\n", inst.QualifiedID(), s.Label(ctx, inst), status.Message)
	}
	return len(invalid)
}

func submit(ctx context.Context, s *session.Session, cfg config, stdout, stderr io.Writer) error {
	if _, ok := s.CheckAll(); !ok {
		count := reportInvalid(ctx, s, stderr)
		return &exitError{code: exitInvalid, err: fmt.Errorf("%d invalid field(s), notice not submitted", count)}
	}
	sub, err := s.Submit(ctx)
	if err != nil {
		return err
	}
	if !sub.Result.Rejected() {
		return write(cfg.output, stdout, sub.Result.Document)
	}

	ids := make([]string, 0, len(sub.Mapping.Fields))
	for id := range sub.Mapping.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, msg := range sub.Mapping.Fields[id] {
			fmt.Fprintf(stderr, "rejected %s: %s\n", id, msg)
		}
	}
	for _, msg := range sub.Mapping.Document {
		fmt.Fprintf(stderr, "rejected: %s\n", msg)
	}
	return &exitError{code: exitRejected, err: errors.New("notice rejected by the document service")}
}

func encode(model *visualmodel.Node, format string) ([]byte, error) {
	if format == docservice.EncodingCBOR {
		return visualmodel.EncodeCBOR(model)
	}
	return visualmodel.EncodeJSON(model)
}

func write(path string, stdout io.Writer, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
