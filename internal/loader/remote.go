package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx answer other than 404.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loader: %s answered %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func httpFetcher(client *http.Client, timeout time.Duration) fetcher {
	if client == nil {
		return func(context.Context, string) ([]byte, error) {
			return nil, ErrHTTPDisabled
		}
	}
	return func(ctx context.Context, url string) ([]byte, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("loader: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("loader: get %s: %w", url, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return nil, notFound(url, nil)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{URL: url, Status: resp.StatusCode}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("loader: read %s: %w", url, err)
		}
		return data, nil
	}
}
