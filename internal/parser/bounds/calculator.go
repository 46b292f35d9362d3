// Package bounds estimates the minimum and maximum positions currently
// requestable in a presentation.
package bounds

import (
	"math"
	"sync"
)

// Options configures a Calculator
type Options struct {
	IsDynamic bool
	// TimeShiftBufferDepth in seconds, nil when unbounded
	TimeShiftBufferDepth *float64
	// AvailabilityStartTime in seconds since the unix epoch
	AvailabilityStartTime float64
	// ServerTimestampOffset is server time minus monotonic time, in milliseconds
	ServerTimestampOffset *float64
	Clock                 Clock
}

// Calculator 边界计算器
//
// It keeps at most one observed (position, time) pair. Every estimate
// combines it with the current clock reading, nothing is cached.
type Calculator struct {
	mu sync.RWMutex

	isDynamic             bool
	timeShiftBufferDepth  *float64
	availabilityStartTime float64
	serverTimestampOffset *float64
	clock                 Clock

	lastPosition *float64
	positionTime *float64
}

// NewCalculator 创建边界计算器
func NewCalculator(opts Options) *Calculator {
	clock := opts.Clock
	if clock == nil {
		clock = DefaultClock
	}
	return &Calculator{
		isDynamic:             opts.IsDynamic,
		timeShiftBufferDepth:  opts.TimeShiftBufferDepth,
		availabilityStartTime: opts.AvailabilityStartTime,
		serverTimestampOffset: opts.ServerTimestampOffset,
		clock:                 clock,
	}
}

// IsDynamic reports whether the presentation is live
func (c *Calculator) IsDynamic() bool {
	return c.isDynamic
}

// SetLastPosition records the latest known valid position. positionTime is
// the monotonic time, in seconds, at which it was valid.
func (c *Calculator) SetLastPosition(position float64, positionTime *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPosition = &position
	if positionTime != nil {
		t := *positionTime
		c.positionTime = &t
	} else {
		c.positionTime = nil
	}
}

// LastPositionIsKnown needs both the position and its time for live content
func (c *Calculator) LastPositionIsKnown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isDynamic {
		return c.lastPosition != nil && c.positionTime != nil
	}
	return c.lastPosition != nil
}

// EstimatedLiveEdge is only known for live content with a server clock offset
func (c *Calculator) EstimatedLiveEdge() (float64, bool) {
	if !c.isDynamic || c.serverTimestampOffset == nil {
		return 0, false
	}
	return (c.clock.NowMs()+*c.serverTimestampOffset)/1000 - c.availabilityStartTime, true
}

// EstimatedMaximumPosition returns the last requestable position.
// availabilityTimeOffset is added to the live edge; +Inf disables the live
// edge and falls back to extrapolating the last known position.
func (c *Calculator) EstimatedMaximumPosition(availabilityTimeOffset float64) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimatedMaximumPosition(availabilityTimeOffset)
}

func (c *Calculator) estimatedMaximumPosition(availabilityTimeOffset float64) (float64, bool) {
	if !c.isDynamic {
		if c.lastPosition == nil {
			return 0, false
		}
		return *c.lastPosition, true
	}

	if liveEdge, ok := c.EstimatedLiveEdge(); ok && !math.IsInf(availabilityTimeOffset, 1) {
		return liveEdge + availabilityTimeOffset, true
	}

	if c.lastPosition != nil && c.positionTime != nil {
		now := c.clock.NowMs() / 1000
		return math.Max(*c.lastPosition-*c.positionTime+now, 0), true
	}
	if c.lastPosition != nil {
		return *c.lastPosition, true
	}
	return 0, false
}

// EstimatedMinimumSegmentTime is 0 unless the content is live with a
// time-shift window
func (c *Calculator) EstimatedMinimumSegmentTime() (float64, bool) {
	if !c.isDynamic || c.timeShiftBufferDepth == nil {
		return 0, true
	}

	maximum, ok := c.EstimatedLiveEdge()
	if !ok {
		c.mu.RLock()
		maximum, ok = c.estimatedMaximumPosition(0)
		c.mu.RUnlock()
	}
	if !ok {
		return 0, false
	}
	return maximum - *c.timeShiftBufferDepth, true
}
