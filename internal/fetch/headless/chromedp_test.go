package headless

import (
	"net/http"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestResponseMetaCapturesDocumentResponses(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	// Sub-resource responses are ignored; only the document drives metadata.
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://example.org/logo.png"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 200,
			URL:    "https://www.smartraveller.gov.au/destinations",
			Headers: network.Headers{
				"Content-Type": "text/html; charset=utf-8",
			},
		},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://request.url", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://www.smartraveller.gov.au/destinations", url)
	require.Equal(t, "text/html; charset=utf-8", headers.Get("Content-Type"))
}

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	status, _, url := meta.snapshotWithFallbacks("https://request.url", "https://final.url")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final.url", url)

	status, _, url = meta.snapshotWithFallbacks("https://request.url", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://request.url", url)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Accept", "text/html")
	h.Add("X-Forwarded-For", "10.0.0.1")
	h.Add("X-Forwarded-For", "10.0.0.2")

	got := toNetworkHeaders(h)
	require.Equal(t, "text/html", got["Accept"])
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got["X-Forwarded-For"])
}

func TestNewRejectsNegativeParallelism(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1})
	require.Error(t, err)
}
