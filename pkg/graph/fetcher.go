package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/metrics"
)

// continuationKeys are copied from paging.next into the next request
var continuationKeys = []string{"after", "offset", "limit"}

// ErrStalledCursor is returned when paging.next would repeat the current request
var ErrStalledCursor = errors.New("continuation reference does not advance")

// Getter performs a single decoded GET. *Client implements it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, target interface{}) error
}

// Request describes a paged collection to walk
type Request struct {
	Path  string
	Query url.Values
	// PassThrough names extra continuation parameters carried over from paging.next
	PassThrough []string
	// Stop is evaluated after each page is consumed; true ends the walk
	Stop func(*Page) bool
}

// Fetcher walks paged Graph API collections
type Fetcher struct {
	getter  Getter
	logger  logger.Logger
	metrics *metrics.Recorder
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithFetcherLogger sets the fetcher logger
func WithFetcherLogger(log logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		if log != nil {
			f.logger = log
		}
	}
}

// WithFetcherMetrics counts fetched pages
func WithFetcherMetrics(m *metrics.Recorder) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a Fetcher on top of g
func NewFetcher(g Getter, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{getter: g, logger: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Pages returns the pages of req in order. Each range over the sequence
// starts again from the first page. A fetch error is yielded once and ends
// the sequence; so do a missing paging.next, req.Stop returning true and the
// consumer breaking out of the loop.
func (f *Fetcher) Pages(ctx context.Context, req Request) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		query := cloneValues(req.Query)
		kind := endpointKind(req.Path)

		for n := 1; ; n++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page := &Page{}
			if err := f.getter.GetJSON(ctx, req.Path, query, page); err != nil {
				yield(nil, fmt.Errorf("fetch page %d of %s: %w", n, req.Path, err))
				return
			}
			f.metrics.IncPage(kind)
			f.logger.DebugWithFields("page fetched", map[string]interface{}{
				"path":     req.Path,
				"page":     n,
				"items":    len(page.Data),
				"has_next": page.HasNext(),
			})

			if !yield(page, nil) {
				return
			}
			if req.Stop != nil && req.Stop(page) {
				f.logger.DebugWithFields("pagination stopped early", map[string]interface{}{
					"path": req.Path,
					"page": n,
				})
				return
			}
			if !page.HasNext() {
				return
			}

			next, err := nextQuery(query, page.Paging.Next, req.PassThrough)
			if err != nil {
				yield(nil, fmt.Errorf("follow page %d of %s: %w", n, req.Path, err))
				return
			}
			query = next
		}
	}
}

// nextQuery merges the continuation parameters of next into a copy of current
func nextQuery(current url.Values, next string, passThrough []string) (url.Values, error) {
	u, err := url.Parse(next)
	if err != nil {
		return nil, errs.Parsing(0, fmt.Errorf("invalid paging.next: %w", err))
	}
	ref := u.Query()

	merged := cloneValues(current)
	changed := false
	for _, key := range append(append([]string(nil), continuationKeys...), passThrough...) {
		v, ok := ref[key]
		if !ok || len(v) == 0 {
			continue
		}
		if merged.Get(key) != v[0] {
			changed = true
		}
		merged.Set(key, v[0])
	}

	if !changed {
		return nil, ErrStalledCursor
	}
	return merged, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// endpointKind labels a path by its last segment: search, photos, albums
func endpointKind(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
