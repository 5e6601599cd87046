package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"cityharvest/pkg/config"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/retry"
)

const testBase = "https://graph.test"

func newTestClient(t *testing.T, mock *httpmock.MockTransport, opts ...Option) *Client {
	t.Helper()
	cfg := config.GraphConfig{
		BaseURL:     testBase,
		APIVersion:  "v2.7",
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
	}
	base := []Option{
		WithHTTPClient(&http.Client{Transport: mock}),
		WithRetry(&retry.Config{
			MaxAttempts: 5,
			Backoff:     retry.Constant(time.Millisecond),
			Logger:      logger.NewNopLogger(),
		}),
	}
	return NewClient(cfg, append(base, opts...)...)
}

// pageBody renders a page whose items are {"id": "<prefix><n>"} and whose
// paging.next, when after is non-empty, points at the given cursor.
func pageBody(t *testing.T, path string, ids []string, after string) string {
	t.Helper()
	data := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]string{"id": id})
	}
	page := map[string]interface{}{"data": data}
	if after != "" {
		page["paging"] = map[string]interface{}{
			"cursors": map[string]string{"after": after},
			"next":    fmt.Sprintf("%s/v2.7%s?access_token=test-token&limit=25&after=%s", testBase, path, after),
		}
	}
	b, err := json.Marshal(page)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
