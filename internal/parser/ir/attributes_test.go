package ir

import (
	"math"
	"testing"

	"mpdcore/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"PT30S", 30},
		{"PT1M30S", 90},
		{"PT1H", 3600},
		{"PT0.5S", 0.5},
		{"P1D", 86400},
		{"P1DT1H", 90000},
		{"PT1H2M3.5S", 3723.5},
		{"P1Y", 365 * 24 * 3600},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	for _, bad := range []string{"", "P", "PT", "30S", "PTXS", "P1DT"} {
		_, err := ParseDuration(bad)
		assert.ErrorIs(t, err, ErrInvalidDuration, bad)
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("1970-01-01T00:01:00Z")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got)

	got, err = ParseDateTime("1970-01-01T00:00:10.5")
	require.NoError(t, err)
	assert.InDelta(t, 10.5, got, 1e-9)

	got, err = ParseDateTime("1970-01-01T01:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	_, err = ParseDateTime("yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseScalars(t *testing.T) {
	b, err := ParseBoolean("true")
	require.NoError(t, err)
	assert.True(t, b)
	_, err = ParseBoolean("TRUE")
	assert.ErrorIs(t, err, ErrInvalidBoolean)

	f, err := ParseFloat("INF")
	require.NoError(t, err)
	assert.True(t, math.IsInf(f, 1))

	i, err := ParseInt("25.0")
	require.NoError(t, err)
	assert.Equal(t, int64(25), i)
	_, err = ParseInt("abc")
	assert.ErrorIs(t, err, ErrInvalidNumber)

	fr, err := ParseFrameRate("30000/1001")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, fr, 0.001)
	_, err = ParseFrameRate("30/0")
	assert.Error(t, err)
}

func TestParseByteRange(t *testing.T) {
	r, err := ParseByteRange("100-199")
	require.NoError(t, err)
	assert.Equal(t, entity.ByteRange{Start: 100, End: 199}, r)
	assert.Equal(t, int64(100), r.Length())

	_, err = ParseByteRange("199-100")
	assert.ErrorIs(t, err, ErrInvalidByteRange)
	_, err = ParseByteRange("100")
	assert.ErrorIs(t, err, ErrInvalidByteRange)
}

func TestParseKeyID(t *testing.T) {
	dashed, err := ParseKeyID("9eb4050d-e44b-4802-932e-27d75083e266")
	require.NoError(t, err)
	require.Len(t, dashed, 16)
	assert.Equal(t, byte(0x9e), dashed[0])

	plain, err := ParseKeyID("9eb4050de44b4802932e27d75083e266")
	require.NoError(t, err)
	assert.Equal(t, dashed, plain)

	_, err = ParseKeyID("nope")
	assert.ErrorIs(t, err, ErrInvalidKeyID)
}

func TestParseBase64(t *testing.T) {
	data, err := ParseBase64("aGVs\n bG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = ParseBase64("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ParseBase64("!!!")
	assert.ErrorIs(t, err, ErrInvalidBase64)
}
