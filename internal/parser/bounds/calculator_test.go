package bounds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

type steppingClock struct{ now float64 }

func (c *steppingClock) NowMs() float64 { return c.now }

func TestStaticBounds(t *testing.T) {
	c := NewCalculator(Options{IsDynamic: false, Clock: FixedClock(0)})

	assert.False(t, c.LastPositionIsKnown())
	_, ok := c.EstimatedMaximumPosition(0)
	assert.False(t, ok)

	c.SetLastPosition(120, nil)
	assert.True(t, c.LastPositionIsKnown())
	max, ok := c.EstimatedMaximumPosition(0)
	require.True(t, ok)
	assert.Equal(t, 120.0, max)

	min, ok := c.EstimatedMinimumSegmentTime()
	require.True(t, ok)
	assert.Equal(t, 0.0, min)

	_, ok = c.EstimatedLiveEdge()
	assert.False(t, ok)
}

func TestLiveMinimumSegmentTime(t *testing.T) {
	c := NewCalculator(Options{
		IsDynamic:             true,
		TimeShiftBufferDepth:  ptr(5),
		AvailabilityStartTime: 0,
		ServerTimestampOffset: ptr(5000),
		Clock:                 FixedClock(3000),
	})

	edge, ok := c.EstimatedLiveEdge()
	require.True(t, ok)
	assert.Equal(t, 8.0, edge)

	min, ok := c.EstimatedMinimumSegmentTime()
	require.True(t, ok)
	assert.Equal(t, (3.0+5-0)-5, min)
}

func TestLiveEdgeIsMonotonic(t *testing.T) {
	clock := &steppingClock{now: 1000}
	c := NewCalculator(Options{
		IsDynamic:             true,
		AvailabilityStartTime: 10,
		ServerTimestampOffset: ptr(20000),
		Clock:                 clock,
	})

	previous := math.Inf(-1)
	for i := 0; i < 10; i++ {
		edge, ok := c.EstimatedLiveEdge()
		require.True(t, ok)
		assert.GreaterOrEqual(t, edge, previous)
		previous = edge
		clock.now += float64(i * 250)
	}
}

func TestLiveMaximumPosition(t *testing.T) {
	t.Run("live edge plus availability time offset", func(t *testing.T) {
		c := NewCalculator(Options{
			IsDynamic:             true,
			ServerTimestampOffset: ptr(10000),
			Clock:                 FixedClock(0),
		})
		max, ok := c.EstimatedMaximumPosition(2)
		require.True(t, ok)
		assert.Equal(t, 12.0, max)
	})

	t.Run("infinite offset extrapolates", func(t *testing.T) {
		clock := &steppingClock{now: 4000}
		c := NewCalculator(Options{
			IsDynamic:             true,
			ServerTimestampOffset: ptr(10000),
			Clock:                 clock,
		})
		_, ok := c.EstimatedMaximumPosition(math.Inf(1))
		assert.False(t, ok)

		c.SetLastPosition(30, ptr(2))
		max, ok := c.EstimatedMaximumPosition(math.Inf(1))
		require.True(t, ok)
		assert.Equal(t, 32.0, max)
	})

	t.Run("extrapolation is floored at zero", func(t *testing.T) {
		c := NewCalculator(Options{IsDynamic: true, Clock: FixedClock(0)})
		c.SetLastPosition(1, ptr(100))
		max, ok := c.EstimatedMaximumPosition(0)
		require.True(t, ok)
		assert.Equal(t, 0.0, max)
	})

	t.Run("last position needs its time", func(t *testing.T) {
		c := NewCalculator(Options{IsDynamic: true, Clock: FixedClock(0)})
		c.SetLastPosition(10, nil)
		assert.False(t, c.LastPositionIsKnown())
	})
}

func TestLiveMinimumUnknown(t *testing.T) {
	c := NewCalculator(Options{IsDynamic: true, TimeShiftBufferDepth: ptr(30), Clock: FixedClock(0)})
	_, ok := c.EstimatedMinimumSegmentTime()
	assert.False(t, ok)

	noDepth := NewCalculator(Options{IsDynamic: true, Clock: FixedClock(0)})
	min, ok := noDepth.EstimatedMinimumSegmentTime()
	require.True(t, ok)
	assert.Equal(t, 0.0, min)
}
