package command

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/util"
)

func TestNewExtractorSendsHeaders(t *testing.T) {
	util.SetLogLevel(util.LogLevelOff)
	t.Cleanup(func() {
		util.SetHTTPProxy("")
	})

	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		_, _ = w.Write([]byte(testMPD))
	}))
	defer srv.Close()

	opt := NewMyOption()
	opt.Headers = map[string]string{"X-Token": "abc"}
	result, err := newExtractor(opt, nil).ExtractManifest(context.Background(), srv.URL+"/manifest.mpd")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Len(t, result.Manifest.Periods, 1)
}

func TestNewExtractorUsesProxy(t *testing.T) {
	util.SetLogLevel(util.LogLevelOff)
	t.Cleanup(func() {
		util.SetHTTPProxy("")
	})

	// the proxy answers for every upstream host
	var proxied string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.String()
		_, _ = w.Write([]byte(testMPD))
	}))
	defer proxy.Close()

	opt := NewMyOption()
	opt.CustomProxy = proxy.URL
	_, err := newExtractor(opt, nil).ExtractManifest(context.Background(), "http://cdn.invalid/manifest.mpd")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.invalid/manifest.mpd", proxied)
}
