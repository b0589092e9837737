package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFetcher(timeout time.Duration) *Fetcher {
	return New(Config{
		UserAgent:    "mediascraper-test",
		Timeout:      timeout,
		MaxBodySize:  1 << 20,
		MaxRedirects: 3,
	})
}

func TestFetch_ReturnsDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "mediascraper-test", r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><img src='/a.jpg'></body></html>"))
	}))
	defer srv.Close()

	doc, err := newTestFetcher(5 * time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Contains(t, string(doc.Body), "a.jpg")
}

func TestFetch_AcceptsClientErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>missing</body></html>"))
	}))
	defer srv.Close()

	doc, err := newTestFetcher(5 * time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, doc.StatusCode)
	require.Contains(t, string(doc.Body), "missing")
}

func TestFetch_RejectsServerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(5 * time.Second).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.False(t, IsTimeout(err))
}

func TestFetch_TimeoutClassified(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	_, err := newTestFetcher(100 * time.Millisecond).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, IsTimeout(err))
}

func TestFetch_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := newTestFetcher(5 * time.Second).Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.True(t, IsTimeout(err))
}

func TestFetch_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := newTestFetcher(time.Second).Fetch(context.Background(), "   ")
	require.Error(t, err)
}
