package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/util"
)

func TestParseSegmentWindow(t *testing.T) {
	window, err := ParseSegmentWindow("10.5, 20")
	require.NoError(t, err)
	assert.Equal(t, &SegmentWindow{From: 10.5, Duration: 20}, window)

	for _, bad := range []string{"", "10", "a,2", "1,b"} {
		_, err := ParseSegmentWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := ParseHeaders([]string{"Cookie: a=b; c=d", "X-Token:abc", "Empty:"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Cookie": "a=b; c=d", "X-Token": "abc", "Empty": ""}, headers)

	_, err = ParseHeaders([]string{"no colon"})
	assert.Error(t, err)
	_, err = ParseHeaders([]string{": value"})
	assert.Error(t, err)
}

func TestMyOptionValidate(t *testing.T) {
	opt := NewMyOption()
	assert.Error(t, opt.Validate())

	opt.Input = "manifest.mpd"
	opt.RetryCount = -2
	require.NoError(t, opt.Validate())
	assert.Equal(t, 0, opt.RetryCount)

	opt.Segments = &SegmentWindow{From: 0, Duration: -1}
	assert.Error(t, opt.Validate())
}

func TestMyOptionRetryConfig(t *testing.T) {
	opt := NewMyOption()
	opt.RetryCount = 5
	cfg := opt.RetryConfig()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, util.DefaultRetryConfig.RetryDelay, cfg.RetryDelay)
}

func TestNewMyOptionFromEnv(t *testing.T) {
	t.Setenv("MPD_HTTP_RETRY_COUNT", "7")
	t.Setenv("MPD_SERVE_ADDR", ":9999")
	t.Setenv("MPD_LOG_LEVEL", "debug")
	opt := NewMyOption()
	assert.Equal(t, 7, opt.RetryCount)
	assert.Equal(t, ":9999", opt.Addr)
	assert.Equal(t, util.LogLevelDebug, opt.LogLevel)
}
