package util

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBytesFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.mpd", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/live.mpd", http.StatusFound)
	})
	mux.HandleFunc("/new/live.mpd", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<MPD/>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	data, finalURL, err := NewHTTPUtil().GetBytes(context.Background(), srv.URL+"/old.mpd")
	require.NoError(t, err)
	assert.Equal(t, "<MPD/>", string(data))
	assert.Equal(t, srv.URL+"/new/live.mpd", finalURL)
}

func TestGetBytesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewHTTPUtil()
	_, _, err := h.GetBytes(context.Background(), srv.URL+"/missing")
	var nonRetryable *NonRetryableHTTPError
	require.True(t, errors.As(err, &nonRetryable))
	assert.Equal(t, http.StatusNotFound, nonRetryable.HTTPStatusCode())

	_, _, err = h.GetBytes(context.Background(), srv.URL+"/flaky")
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.HTTPStatusCode())
}

func TestGetBytesLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mpd")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0644))

	data, _, err := NewHTTPUtil().GetBytes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	data, _, err = NewHTTPUtil().GetBytes(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestDoRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond, Backoff: 1}

	var calls int32
	err := DoRetry(context.Background(), func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)

	calls = 0
	err = DoRetry(context.Background(), func() error {
		atomic.AddInt32(&calls, 1)
		return &NonRetryableHTTPError{StatusCode: 404, Message: "gone"}
	}, cfg)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls)

	calls = 0
	err = DoRetry(context.Background(), func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	}, cfg)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls)
	assert.Contains(t, err.Error(), "always")
}

func TestGetRange(t *testing.T) {
	payload := []byte("0123456789abcdef")
	mux := http.NewServeMux()
	mux.HandleFunc("/ranged.mp4", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "ranged.mp4", time.Time{}, bytes.NewReader(payload))
	})
	mux.HandleFunc("/plain.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := NewHTTPUtil()
	data, err := h.GetRange(context.Background(), srv.URL+"/ranged.mp4", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(data))

	data, err = h.GetRange(context.Background(), srv.URL+"/plain.mp4", 10, 12)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = h.GetRange(context.Background(), srv.URL+"/plain.mp4", 5, 2)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "local.mp4")
	require.NoError(t, os.WriteFile(path, payload, 0644))
	data, err = h.GetRange(context.Background(), path, 14, 20)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(data))
}

func TestSetHTTPProxy(t *testing.T) {
	t.Cleanup(func() { SetHTTPProxy("") })

	SetHTTPProxy("http://127.0.0.1:8888")
	tr := DefaultHTTPUtil.client.Transport.(*http.Transport)
	require.NotNil(t, tr.Proxy)
	proxy, err := tr.Proxy(httptest.NewRequest(http.MethodGet, "https://example.com/live.mpd", nil))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8888", proxy.Host)

	SetHTTPProxy("")
	assert.Nil(t, DefaultHTTPUtil.client.Transport.(*http.Transport).Proxy)
}

func TestHTTPUtilDoKeepsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere.mpd", http.StatusFound)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/live.mpd", nil)
	require.NoError(t, err)
	resp, err := NewHTTPUtil().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere.mpd", resp.Header.Get("Location"))
}
