package provider

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// DefaultLanguage is used when a label is missing in the requested language.
const DefaultLanguage = "en"

// Option customises an SDK provider.
type Option func(*SDK)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SDK) {
		s.logger = logger
	}
}

// WithLoader overrides the document loader.
func WithLoader(loader schema.Loader) Option {
	return func(s *SDK) {
		s.loader = loader
	}
}

// WithDirectory reads the SDK from a local directory.
func WithDirectory(dir string) Option {
	return func(s *SDK) {
		s.locate = func(rel string) (schema.Source, error) {
			return schema.SourceFromFile(filepath.Join(dir, filepath.FromSlash(rel))), nil
		}
	}
}

// WithFS reads the SDK from names relative to the root of the loader's
// fs.FS.
func WithFS() Option {
	return func(s *SDK) {
		s.locate = func(rel string) (schema.Source, error) {
			return schema.SourceFromFS(rel), nil
		}
	}
}

// WithBaseURL reads the SDK over HTTP below base.
func WithBaseURL(base string) Option {
	return func(s *SDK) {
		s.locate = func(rel string) (schema.Source, error) {
			joined, err := url.JoinPath(base, rel)
			if err != nil {
				return nil, fmt.Errorf("provider: sdk url: %w", err)
			}
			return schema.SourceFromURL(joined), nil
		}
	}
}

// WithFallbackLanguage changes the language labels fall back to.
func WithFallbackLanguage(lang string) Option {
	return func(s *SDK) {
		s.fallback = lang
	}
}

// SDK serves notice types, field metadata, codelists and translations laid
// out as
//
//	<version>/notice-types/<subtype>.json
//	<version>/fields/fields.json
//	<version>/codelists/<codelist>.yaml
//	<version>/translations/<language>.yaml
//
// Parsed documents are cached per version. SDK is safe for concurrent use
// by several sessions.
type SDK struct {
	loader   schema.Loader
	locate   func(rel string) (schema.Source, error)
	logger   *slog.Logger
	fallback string

	mu           sync.Mutex
	fields       map[string]*schema.FieldSet
	codelists    map[string]*codelistFile
	translations map[string]map[string]string
}

var (
	_ SchemaProvider   = (*SDK)(nil)
	_ CodelistProvider = (*SDK)(nil)
	_ Translator       = (*SDK)(nil)
)

// NewSDK constructs an SDK provider. A loader and a location option are
// required before any lookup.
func NewSDK(options ...Option) *SDK {
	s := &SDK{
		fields:       make(map[string]*schema.FieldSet),
		codelists:    make(map[string]*codelistFile),
		translations: make(map[string]map[string]string),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	s.applyDefaults()
	return s
}

func (s *SDK) applyDefaults() {
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.fallback == "" {
		s.fallback = DefaultLanguage
	}
}

// ContentSchema loads the notice type of subtype and links it against the
// field metadata of version. The returned notice type is parsed fresh.
func (s *SDK) ContentSchema(ctx context.Context, version, subtype string) (*schema.NoticeType, error) {
	doc, err := s.load(ctx, path.Join(version, "notice-types", subtype+".json"))
	if err != nil {
		return nil, err
	}
	nt, err := schema.ParseNoticeType(doc)
	if err != nil {
		return nil, err
	}
	fields, err := s.FieldMetadata(ctx, version)
	if err != nil {
		return nil, err
	}
	if err := schema.Link(nt, fields); err != nil {
		return nil, err
	}
	s.logger.Debug("notice type loaded", "version", version, "subtype", subtype, "location", doc.Location())
	return nt, nil
}

// FieldMetadata returns the cached field metadata of version.
func (s *SDK) FieldMetadata(ctx context.Context, version string) (*schema.FieldSet, error) {
	s.mu.Lock()
	cached := s.fields[version]
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	doc, err := s.load(ctx, path.Join(version, "fields", "fields.json"))
	if err != nil {
		return nil, err
	}
	fields, err := schema.ParseFields(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.fields[version]; existing != nil {
		return existing, nil
	}
	s.fields[version] = fields
	return fields, nil
}

type codelistCode struct {
	Code   string            `json:"code" yaml:"code"`
	Labels map[string]string `json:"labels" yaml:"labels"`
}

type codelistFile struct {
	ID    string         `json:"id" yaml:"id"`
	Codes []codelistCode `json:"codes" yaml:"codes"`
}

// Codes returns the codes of codelistID with labels in language, falling back
// to the fallback language and then to the code itself. Labels are stripped
// of markup.
func (s *SDK) Codes(ctx context.Context, version, codelistID, lang string) ([]Code, error) {
	list, err := s.codelist(ctx, version, codelistID)
	if err != nil {
		return nil, err
	}
	primary := Canonical(lang)
	out := make([]Code, 0, len(list.Codes))
	for _, entry := range list.Codes {
		label := entry.Labels[primary]
		if label == "" {
			label = entry.Labels[s.fallback]
		}
		if label == "" {
			label = entry.Code
		}
		out = append(out, Code{Code: entry.Code, Label: SanitizeLabel(label)})
	}
	return out, nil
}

func (s *SDK) codelist(ctx context.Context, version, id string) (*codelistFile, error) {
	key := version + "/" + id
	s.mu.Lock()
	cached := s.codelists[key]
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	doc, err := s.load(ctx, path.Join(version, "codelists", id+".yaml"))
	if err != nil {
		return nil, err
	}
	var list codelistFile
	if err := schema.Decode(doc, &list); err != nil {
		return nil, fmt.Errorf("provider: codelist %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codelists[key] = &list
	return &list, nil
}

// Label resolves key in language, falling back to the fallback language.
// Labels are stripped of markup. Unknown keys wrap ErrNotFound.
func (s *SDK) Label(ctx context.Context, version, key, lang string) (string, error) {
	for _, candidate := range []string{Canonical(lang), s.fallback} {
		labels, err := s.translationsFor(ctx, version, candidate)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return "", err
		}
		if label, ok := labels[key]; ok {
			return SanitizeLabel(label), nil
		}
	}
	return "", fmt.Errorf("%w: label %q", ErrNotFound, key)
}

func (s *SDK) translationsFor(ctx context.Context, version, lang string) (map[string]string, error) {
	key := version + "/" + lang
	s.mu.Lock()
	cached, ok := s.translations[key]
	s.mu.Unlock()
	if ok {
		if cached == nil {
			return nil, fmt.Errorf("%w: translations %s", ErrNotFound, key)
		}
		return cached, nil
	}

	doc, err := s.load(ctx, path.Join(version, "translations", lang+".yaml"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.mu.Lock()
			s.translations[key] = nil
			s.mu.Unlock()
		}
		return nil, err
	}
	labels := make(map[string]string)
	if err := schema.Decode(doc, &labels); err != nil {
		return nil, fmt.Errorf("provider: translations %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[key] = labels
	return labels, nil
}

func (s *SDK) load(ctx context.Context, rel string) (schema.Document, error) {
	if s.loader == nil {
		return schema.Document{}, errors.New("provider: loader is not configured")
	}
	if s.locate == nil {
		return schema.Document{}, errors.New("provider: sdk location is not configured")
	}
	src, err := s.locate(rel)
	if err != nil {
		return schema.Document{}, err
	}
	doc, err := s.loader.Load(ctx, src)
	if err != nil {
		if isNotExist(err) {
			return schema.Document{}, fmt.Errorf("%w: %s: %v", ErrNotFound, rel, err)
		}
		return schema.Document{}, fmt.Errorf("provider: load %s: %w", rel, err)
	}
	return doc, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, schema.ErrDocumentNotFound)
}

// Canonical reduces a language tag to its lowercase base language ("en-GB"
// and "EN" become "en"). Unparseable input is lowercased and returned as is.
func Canonical(lang string) string {
	trimmed := strings.TrimSpace(lang)
	if trimmed == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	base, _ := tag.Base()
	return base.String()
}

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// SanitizeLabel strips markup from a translated label and decodes entities.
func SanitizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	labelPolicyOnce.Do(func() {
		labelPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(trimmed)))
}
