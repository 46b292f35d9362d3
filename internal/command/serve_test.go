package command

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/metrics"
	"mpdcore/internal/parser"
	"mpdcore/internal/util"
)

const liveTestMPD = `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic"
    availabilityStartTime="2024-01-01T00:00:00Z" minimumUpdatePeriod="PT5S" timeShiftBufferDepth="PT30S">
  <Period id="live" start="PT0S">
    <AdaptationSet mimeType="video/mp4">
      <SegmentTemplate timescale="1" duration="2" startNumber="0" media="$Number$.m4s"/>
      <Representation id="v1" bandwidth="1000"/>
    </AdaptationSet>
  </Period>
</MPD>`

func newTestHandler(t *testing.T) *ManifestHandler {
	t.Helper()
	util.SetLogLevel(util.LogLevelOff)
	extractor := parser.NewStreamExtractor(parser.NewHTTPFetcher(util.NewHTTPUtil(), util.RetryConfig{}), parser.Options{})
	return NewManifestHandler(extractor, metrics.New())
}

func doGet(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestManifestHandlerNotLoaded(t *testing.T) {
	routes := newTestHandler(t).Routes()
	assert.Equal(t, http.StatusServiceUnavailable, doGet(routes, "/manifest").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doGet(routes, "/representations/v1/segments").Code)
}

func TestManifestHandlerGetManifest(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Load(context.Background(), writeTestMPD(t)))

	rec := doGet(h.Routes(), "/manifest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		IsDynamic bool `json:"isDynamic"`
		Periods   []struct {
			ID          string                     `json:"id"`
			Adaptations map[string]json.RawMessage `json:"adaptations"`
		} `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.IsDynamic)
	require.Len(t, body.Periods, 1)
	assert.Equal(t, "p0", body.Periods[0].ID)
	assert.Contains(t, body.Periods[0].Adaptations, "video")
	assert.Contains(t, body.Periods[0].Adaptations, "audio")
}

func TestManifestHandlerGetSegments(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Load(context.Background(), writeTestMPD(t)))
	routes := h.Routes()

	rec := doGet(routes, "/representations/v1/segments")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing segmentListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, "v1", listing.RepresentationID)
	assert.Len(t, listing.Segments, 5)

	rec = doGet(routes, "/representations/a1/segments?from=8&duration=3")
	require.Equal(t, http.StatusOK, rec.Code)
	listing = segmentListing{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Segments, 1)
	assert.Equal(t, 8.0, listing.Segments[0].Time)

	// from alone keeps the end of the window
	rec = doGet(routes, "/representations/a1/segments?from=12")
	require.Equal(t, http.StatusOK, rec.Code)
	listing = segmentListing{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Segments, 2)

	assert.Equal(t, http.StatusNotFound, doGet(routes, "/representations/nope/segments").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(routes, "/representations/v1/segments?from=abc").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(routes, "/representations/v1/segments?duration=-1").Code)
}

func TestManifestHandlerMetrics(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()
	doGet(routes, "/manifest")

	rec := doGet(routes, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mpd_http_requests_total 1")
	assert.Contains(t, rec.Body.String(), "mpd_http_errors_total 1")
}

func TestManifestHandlerRefreshStatic(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Load(context.Background(), writeTestMPD(t)))
	period := h.manifest.Periods[0]

	require.NoError(t, h.Refresh(context.Background()))
	assert.Same(t, period, h.manifest.Periods[0])

	_, ok := h.nextRefresh()
	assert.False(t, ok)

	// static manifests return at once
	done := make(chan struct{})
	go func() {
		h.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a static manifest")
	}
}

func TestManifestHandlerRefreshWithoutManifest(t *testing.T) {
	assert.Error(t, newTestHandler(t).Refresh(context.Background()))
}

func TestManifestHandlerLiveRefresh(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(liveTestMPD))
	}))
	defer srv.Close()

	h := newTestHandler(t)
	require.NoError(t, h.Load(context.Background(), srv.URL+"/live.mpd"))
	assert.True(t, h.manifest.IsDynamic)

	wait, ok := h.nextRefresh()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, wait)

	require.NoError(t, h.Refresh(context.Background()))
	assert.Equal(t, int32(2), requests.Load())
	_, _, rep := h.manifest.FindRepresentation("v1")
	assert.NotNil(t, rep)

	// Run stops with its context
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestManifestHandlerMinimumRefreshInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.mpd")
	mpd := strings.Replace(liveTestMPD, `minimumUpdatePeriod="PT5S"`, `minimumUpdatePeriod="PT0.1S"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(mpd), 0644))

	h := newTestHandler(t)
	require.NoError(t, h.Load(context.Background(), path))
	wait, ok := h.nextRefresh()
	require.True(t, ok)
	assert.Equal(t, minRefreshInterval, wait)
}
