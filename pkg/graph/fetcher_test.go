package graph

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/metrics"
)

// registerPages serves pages[i] for the i-th cursor: "" then c1, c2, ...
func registerPages(t *testing.T, mock *httpmock.MockTransport, path string, pages [][]string) {
	t.Helper()
	cursors := map[string]int{"": 0}
	for i := 1; i < len(pages); i++ {
		cursors["c"+string(rune('0'+i))] = i
	}
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7"+path,
		func(req *http.Request) (*http.Response, error) {
			i, ok := cursors[req.URL.Query().Get("after")]
			if !ok {
				return httpmock.NewStringResponse(http.StatusBadRequest, "unknown cursor"), nil
			}
			next := ""
			if i+1 < len(pages) {
				next = "c" + string(rune('0'+i+1))
			}
			return httpmock.NewStringResponse(http.StatusOK, pageBody(t, path, pages[i], next)), nil
		})
}

func collectIDs(t *testing.T, f *Fetcher, req Request) []string {
	t.Helper()
	var ids []string
	for page, err := range f.Pages(context.Background(), req) {
		require.NoError(t, err)
		items, bad := Decode[Photo](page)
		require.Empty(t, bad)
		for _, item := range items {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func TestPagesConcatenatesAllPages(t *testing.T) {
	mock := httpmock.NewMockTransport()
	registerPages(t, mock, "/e1/photos", [][]string{{"a", "b"}, {"c"}, {"d", "e"}})

	rec := metrics.New()
	f := NewFetcher(newTestClient(t, mock), WithFetcherMetrics(rec))
	ids := collectIDs(t, f, PhotoList("e1"))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
	assert.Equal(t, 3, mock.GetTotalCallCount())
}

func TestPagesRestartsFromFirstPage(t *testing.T) {
	mock := httpmock.NewMockTransport()
	registerPages(t, mock, "/e1/photos", [][]string{{"a"}, {"b"}})

	f := NewFetcher(newTestClient(t, mock))
	seq := f.Pages(context.Background(), PhotoList("e1"))

	for range 2 {
		var ids []string
		for page, err := range seq {
			require.NoError(t, err)
			items, _ := Decode[Photo](page)
			for _, item := range items {
				ids = append(ids, item.ID)
			}
		}
		assert.Equal(t, []string{"a", "b"}, ids)
	}
	assert.Equal(t, 4, mock.GetTotalCallCount())
}

func TestPagesStopPredicate(t *testing.T) {
	mock := httpmock.NewMockTransport()
	registerPages(t, mock, "/loc/albums", [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"5"}})

	seen := 0
	req := AlbumList("loc")
	req.Stop = func(*Page) bool {
		seen++
		return seen == 2
	}

	f := NewFetcher(newTestClient(t, mock))
	ids := collectIDs(t, f, req)

	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, 2, mock.GetTotalCallCount())
}

func TestPagesConsumerBreak(t *testing.T) {
	mock := httpmock.NewMockTransport()
	registerPages(t, mock, "/e1/photos", [][]string{{"a"}, {"b"}, {"c"}})

	f := NewFetcher(newTestClient(t, mock))
	for page, err := range f.Pages(context.Background(), PhotoList("e1")) {
		require.NoError(t, err)
		require.NotNil(t, page)
		break
	}
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestPagesRetriesThenContinues(t *testing.T) {
	mock := httpmock.NewMockTransport()
	failures := 0
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/e1/photos",
		func(req *http.Request) (*http.Response, error) {
			if failures < 2 {
				failures++
				return nil, errors.New("connection reset by peer")
			}
			return httpmock.NewStringResponse(http.StatusOK, pageBody(t, "/e1/photos", []string{"x"}, "")), nil
		})

	f := NewFetcher(newTestClient(t, mock))
	ids := collectIDs(t, f, PhotoList("e1"))

	assert.Equal(t, []string{"x"}, ids)
	assert.Equal(t, 3, mock.GetTotalCallCount())
}

func TestPagesStatusErrorEndsSequence(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("offset") == "" {
				return httpmock.NewStringResponse(http.StatusOK,
					`{"data":[{"id":"1"}],"paging":{"next":"`+testBase+`/v2.7/search?offset=25&limit=25"}}`), nil
			}
			return httpmock.NewStringResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
		})

	f := NewFetcher(newTestClient(t, mock))
	var pages int
	var lastErr error
	for page, err := range f.Pages(context.Background(), Request{Path: SearchPath}) {
		if err != nil {
			lastErr = err
			continue
		}
		require.NotNil(t, page)
		pages++
	}

	assert.Equal(t, 1, pages)
	require.Error(t, lastErr)
	assert.True(t, errs.Is(lastErr, errs.ErrorTypeStatus))
	assert.Contains(t, lastErr.Error(), "fetch page 2 of /search")
}

func TestNextQueryMergesContinuationKeys(t *testing.T) {
	current := url.Values{"fields": {"images"}, "after": {"old"}}
	next := testBase + "/v2.7/e1/photos?access_token=leaked&fields=images&limit=25&after=new&pretty=0&unrelated=1"

	merged, err := nextQuery(current, next, []string{"pretty"})
	require.NoError(t, err)

	assert.Equal(t, "images", merged.Get("fields"))
	assert.Equal(t, "new", merged.Get("after"))
	assert.Equal(t, "25", merged.Get("limit"))
	assert.Equal(t, "0", merged.Get("pretty"))
	assert.Empty(t, merged.Get("unrelated"))
	assert.Empty(t, merged.Get("access_token"))
	assert.Equal(t, "old", current.Get("after"))
}

func TestNextQueryOffsetPagination(t *testing.T) {
	merged, err := nextQuery(url.Values{"type": {"place"}}, testBase+"/v2.7/search?type=place&limit=25&offset=50", nil)
	require.NoError(t, err)
	assert.Equal(t, "50", merged.Get("offset"))
	assert.Empty(t, merged.Get("pretty"))
}

func TestNextQueryStalledCursor(t *testing.T) {
	_, err := nextQuery(url.Values{"after": {"same"}}, testBase+"/x?after=same", nil)
	assert.ErrorIs(t, err, ErrStalledCursor)
}

func TestEndpointKind(t *testing.T) {
	assert.Equal(t, "search", endpointKind("/search"))
	assert.Equal(t, "photos", endpointKind("/123/photos"))
	assert.Equal(t, "albums", endpointKind("/123/albums/"))
}
