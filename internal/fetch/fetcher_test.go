package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
)

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		UserAgent:  "harvest-test",
	}
}

func TestPageReturnsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "harvest-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	f := New(testFetchConfig(), zap.NewNop())
	body, err := f.Page(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "ok")
}

func TestPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	f := New(testFetchConfig(), zap.NewNop())
	body, err := f.Page(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "recovered")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPageRejectsClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(testFetchConfig(), zap.NewNop())
	_, err := f.Page(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPageRejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := New(testFetchConfig(), zap.NewNop())
	_, err := f.Page(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotHTML))
}
