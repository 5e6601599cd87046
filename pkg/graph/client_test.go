package graph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityharvest/pkg/config"
	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/retry"
)

func TestGetJSONAttachesTokenAndQuery(t *testing.T) {
	mock := httpmock.NewMockTransport()
	var seen url.Values
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		func(req *http.Request) (*http.Response, error) {
			seen = req.URL.Query()
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[]}`), nil
		})

	c := newTestClient(t, mock)
	var page Page
	err := c.GetJSON(context.Background(), "/search", url.Values{"type": {"place"}}, &page)

	require.NoError(t, err)
	assert.Equal(t, "test-token", seen.Get("access_token"))
	assert.Equal(t, "place", seen.Get("type"))
	assert.Empty(t, page.Data)
}

func TestGetJSONRetriesConnectionFailures(t *testing.T) {
	mock := httpmock.NewMockTransport()
	calls := 0
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/e1/photos",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls <= 2 {
				return nil, errors.New("dial tcp: connection refused")
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[{"id":"p1"}]}`), nil
		})

	c := newTestClient(t, mock)
	var page Page
	require.NoError(t, c.GetJSON(context.Background(), "/e1/photos", nil, &page))

	assert.Equal(t, 3, mock.GetTotalCallCount())
	assert.Len(t, page.Data, 1)
}

func TestGetJSONRetriesTimeoutBeforeResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"p1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.GraphConfig{
		BaseURL:     srv.URL,
		APIVersion:  "v2.7",
		AccessToken: "test-token",
		Timeout:     50 * time.Millisecond,
	}, WithRetry(&retry.Config{
		MaxAttempts: 5,
		Backoff:     retry.Constant(time.Millisecond),
		Logger:      logger.NewNopLogger(),
	}))

	var page Page
	require.NoError(t, c.GetJSON(context.Background(), "/e1/photos", nil, &page))

	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, page.Data, 1)
}

func TestGetJSONCallerDeadlineIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(config.GraphConfig{
		BaseURL:    srv.URL,
		APIVersion: "v2.7",
		Timeout:    5 * time.Second,
	}, WithRetry(&retry.Config{
		MaxAttempts: 5,
		Backoff:     retry.Constant(time.Millisecond),
		Logger:      logger.NewNopLogger(),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var page Page
	err := c.GetJSON(ctx, "/e1/photos", nil, &page)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errs.Is(err, errs.ErrorTypeNetwork))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetJSONStatusErrorIsNotRetried(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":{"message":"Invalid OAuth access token.","code":190}}`))

	tl := logger.NewTestLogger()
	c := newTestClient(t, mock, WithLogger(tl))
	err := c.GetJSON(context.Background(), "/search", nil, &Page{})

	require.Error(t, err)
	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeStatus, apiErr.Type)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Contains(t, apiErr.Body, "Invalid OAuth access token.")
	assert.Equal(t, 1, mock.GetTotalCallCount())
	assert.True(t, tl.HasMessage("Graph API rejected request"))
}

func TestGetJSONServerErrorIsFatal(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "try later"))

	c := newTestClient(t, mock)
	err := c.GetJSON(context.Background(), "/search", nil, &Page{})

	assert.True(t, errs.Is(err, errs.ErrorTypeStatus))
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		httpmock.NewErrorResponder(errors.New("network is unreachable")))

	c := newTestClient(t, mock)
	err := c.GetJSON(context.Background(), "/search", nil, &Page{})

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
	assert.NotContains(t, err.Error(), "test-token")
	assert.Equal(t, 5, mock.GetTotalCallCount())
}

func TestGetJSONParsingError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		httpmock.NewStringResponder(http.StatusOK, `<html>not json</html>`))

	c := newTestClient(t, mock)
	err := c.GetJSON(context.Background(), "/search", nil, &Page{})

	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestGetJSONCancelledContext(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/v2.7/search",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, mock)
	err := c.GetJSON(ctx, "/search", nil, &Page{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURL(t *testing.T) {
	c := newTestClient(t, httpmock.NewMockTransport())
	assert.Equal(t, testBase+"/v2.7/search", c.URL("/search"))
	assert.Equal(t, testBase+"/v2.7/123/albums", c.URL("123/albums"))
}
