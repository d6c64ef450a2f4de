package formtree

import (
	"context"
	"io/fs"
	"time"

	"github.com/goliatone/go-formtree/internal/loader"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/session"
)

const defaultHTTPTimeout = 30 * time.Second

// Request aliases session.Request for callers using the root package.
type Request = session.Request

// Session aliases session.Session.
type Session = session.Session

// NewLoader constructs a document loader using the internal implementation
// while keeping the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return loader.New(schema.NewLoaderOptions(options...))
}

// NewSDKFromDir serves SDK files below dir on the local filesystem.
func NewSDKFromDir(dir string, options ...provider.Option) *provider.SDK {
	base := []provider.Option{
		provider.WithLoader(NewLoader()),
		provider.WithDirectory(dir),
	}
	return provider.NewSDK(append(base, options...)...)
}

// NewSDKFromFS serves SDK files from the root of files, e.g. an embed.FS.
func NewSDKFromFS(files fs.FS, options ...provider.Option) *provider.SDK {
	base := []provider.Option{
		provider.WithLoader(NewLoader(schema.WithFileSystem(files))),
		provider.WithFS(),
	}
	return provider.NewSDK(append(base, options...)...)
}

// NewSDKFromURL serves SDK files over HTTP below base.
func NewSDKFromURL(base string, options ...provider.Option) *provider.SDK {
	defaults := []provider.Option{
		provider.WithLoader(NewLoader(schema.WithHTTPFallback(defaultHTTPTimeout))),
		provider.WithBaseURL(base),
	}
	return provider.NewSDK(append(defaults, options...)...)
}

// NewManager exposes the session manager constructor from the top-level
// module.
func NewManager(options ...session.Option) *session.Manager {
	return session.New(options...)
}

// Open is the simplest entry point: it opens one notice form backed by sdk.
func Open(ctx context.Context, sdk *provider.SDK, req Request, options ...session.Option) (*Session, error) {
	return session.New(append([]session.Option{session.WithSDK(sdk)}, options...)...).Open(ctx, req)
}
