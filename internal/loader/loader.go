// Package loader implements schema.Loader over local files, an fs.FS and
// HTTP.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/goliatone/go-formtree/pkg/schema"
)

var (
	// ErrNilSource reports a Load call without a source.
	ErrNilSource = errors.New("loader: source is nil")
	// ErrEmptyLocation reports a source without a path or URL.
	ErrEmptyLocation = errors.New("loader: source location is empty")
	// ErrUnsupportedKind reports a source kind no fetcher serves.
	ErrUnsupportedKind = errors.New("loader: unsupported source kind")
	// ErrHTTPDisabled reports a URL source on a loader built without an
	// HTTP client or fallback.
	ErrHTTPDisabled = errors.New("loader: http support disabled")
	// ErrNoFileSystem reports an fs source on a loader built without one.
	ErrNoFileSystem = errors.New("loader: no file system configured")
)

// fetcher reads the raw bytes behind one kind of location.
type fetcher func(ctx context.Context, location string) ([]byte, error)

// Loader resolves schema documents through the fetcher registered for the
// source kind.
type Loader struct {
	fetchers map[schema.SourceKind]fetcher
}

var _ schema.Loader = (*Loader)(nil)

// New constructs a Loader from resolved options. File sources are always
// served; fs sources need a FileSystem and URL sources an HTTP client or the
// HTTP fallback.
func New(options schema.LoaderOptions) *Loader {
	return &Loader{fetchers: map[schema.SourceKind]fetcher{
		schema.SourceKindFile: readFile,
		schema.SourceKindFS:   fsFetcher(options.FileSystem),
		schema.SourceKindURL:  httpFetcher(httpClient(options), options.RequestTimeout),
	}}
}

// Load fetches the document behind src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, ErrNilSource
	}
	fetch, ok := l.fetchers[src.Kind()]
	if !ok {
		return schema.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, src.Kind())
	}
	if src.Location() == "" {
		return schema.Document{}, fmt.Errorf("%w (%s)", ErrEmptyLocation, src.Kind())
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, err
	}
	data, err := fetch(ctx, src.Location())
	if err != nil {
		return schema.Document{}, err
	}
	return schema.NewDocument(src, data)
}

func httpClient(options schema.LoaderOptions) *http.Client {
	if options.HTTPClient != nil {
		client := *options.HTTPClient
		if client.Timeout == 0 {
			client.Timeout = options.RequestTimeout
		}
		return &client
	}
	if options.AllowHTTPFallback {
		return &http.Client{Timeout: options.RequestTimeout}
	}
	return nil
}

// notFound tags a missing location with schema.ErrDocumentNotFound while
// keeping the backend error in the chain.
func notFound(location string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", schema.ErrDocumentNotFound, location)
	}
	return fmt.Errorf("%w: %s: %w", schema.ErrDocumentNotFound, location, cause)
}

func mapNotExist(location string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(location, err)
	}
	return err
}
