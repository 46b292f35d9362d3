package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

// liveCalculator has its live edge at 100s and a 30s time-shift window
func liveCalculator() *bounds.Calculator {
	return bounds.NewCalculator(bounds.Options{
		IsDynamic:             true,
		TimeShiftBufferDepth:  f64(30),
		ServerTimestampOffset: f64(100000),
		Clock:                 bounds.FixedClock(0),
	})
}

func staticContext(start float64, end *float64) Context {
	return Context{
		PeriodStart:           start,
		PeriodEnd:             end,
		IsLastPeriod:          true,
		BoundsCalculator:      bounds.NewCalculator(bounds.Options{}),
		RepresentationID:      "v1",
		RepresentationBitrate: 500000,
		BaseURLs:              []string{"https://cdn/v/"},
	}
}

func numberTemplate(duration float64) *ir.SegmentTemplate {
	return &ir.SegmentTemplate{
		SegmentBase: ir.SegmentBase{
			Duration:       f64(duration),
			StartNumber:    i64(1),
			Initialization: &ir.Initialization{Media: "$RepresentationID$/init.mp4"},
		},
		Media: "$RepresentationID$/seg-$Number$.m4s",
	}
}

func TestTemplateStaticBoundary(t *testing.T) {
	idx, err := NewTemplateIndex(numberTemplate(60), staticContext(0, f64(150)))
	require.NoError(t, err)

	segments := idx.Segments(0, 150)
	require.Len(t, segments, 3)
	for i, seg := range segments {
		require.NotNil(t, seg.Number)
		assert.Equal(t, int64(i+1), *seg.Number)
		assert.Equal(t, float64(i*60), seg.Time)
		assert.Equal(t, 1.0, seg.Timescale)
	}
	assert.Equal(t, 30.0, segments[2].Duration)
	assert.Equal(t, 150.0, segments[2].End)
	assert.Equal(t, []string{"https://cdn/v/v1/seg-3.m4s"}, segments[2].MediaURLs)

	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 150.0, last)
	end, ok := idx.End()
	require.True(t, ok)
	assert.Equal(t, 150.0, end)
	first, ok := idx.FirstAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 0.0, first)

	init := idx.InitSegment()
	require.NotNil(t, init)
	assert.True(t, init.IsInit)
	assert.Equal(t, []string{"https://cdn/v/v1/init.mp4"}, init.MediaURLs)
	assert.True(t, idx.IsFinished())
}

func TestTemplateWindowInsideAndOutside(t *testing.T) {
	idx, err := NewTemplateIndex(numberTemplate(60), staticContext(0, f64(150)))
	require.NoError(t, err)

	segments := idx.Segments(130, 5)
	require.Len(t, segments, 1)
	assert.Equal(t, int64(3), *segments[0].Number)

	assert.Empty(t, idx.Segments(200, 10))
	assert.True(t, idx.IsSegmentStillAvailable(segments[0]))
}

func TestTemplateIgnoresRoundingRemainder(t *testing.T) {
	idx, err := NewTemplateIndex(numberTemplate(60), staticContext(0, f64(120.004)))
	require.NoError(t, err)

	segments := idx.Segments(0, 200)
	require.Len(t, segments, 2)
	assert.Equal(t, 60.0, segments[1].Time)
}

func TestTemplateEndNumber(t *testing.T) {
	tpl := numberTemplate(10)
	tpl.EndNumber = i64(4)
	idx, err := NewTemplateIndex(tpl, staticContext(0, f64(100)))
	require.NoError(t, err)

	segments := idx.Segments(0, 100)
	require.Len(t, segments, 4)
	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 40.0, last)
}

func TestTemplateTimeTokenUsesPresentationTimeOffset(t *testing.T) {
	tpl := numberTemplate(2000)
	tpl.Timescale = f64(1000)
	tpl.PresentationTimeOffset = f64(50000)
	tpl.Media = "t$Time$.m4s"
	idx, err := NewTemplateIndex(tpl, staticContext(10, f64(14)))
	require.NoError(t, err)

	segments := idx.Segments(10, 4)
	require.Len(t, segments, 2)
	assert.Equal(t, 10.0, segments[0].Time)
	assert.Equal(t, []string{"https://cdn/v/t50000.m4s"}, segments[0].MediaURLs)
	assert.Equal(t, []string{"https://cdn/v/t52000.m4s"}, segments[1].MediaURLs)
	assert.Equal(t, -40.0, segments[0].TimestampOffset)
}

func TestTemplateMissingDuration(t *testing.T) {
	_, err := NewTemplateIndex(&ir.SegmentTemplate{Media: "x"}, staticContext(0, nil))
	assert.ErrorIs(t, err, ErrNoTemplateDuration)
}

func TestTemplateLive(t *testing.T) {
	ctx := staticContext(0, nil)
	ctx.IsDynamic = true
	ctx.BoundsCalculator = liveCalculator()
	idx, err := NewTemplateIndex(numberTemplate(10), ctx)
	require.NoError(t, err)

	segments := idx.Segments(0, 200)
	require.Len(t, segments, 3)
	assert.Equal(t, 70.0, segments[0].Time)
	assert.Equal(t, int64(8), *segments[0].Number)
	assert.Equal(t, 90.0, segments[2].Time)

	first, ok := idx.FirstAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 70.0, first)
	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 100.0, last)

	_, ok = idx.End()
	assert.False(t, ok)
	await, known := idx.AwaitSegmentBetween(100, 110)
	assert.True(t, known)
	assert.True(t, await)
	assert.False(t, idx.IsFinished())

	assert.True(t, idx.CanBeOutOfSyncError(&util.NonRetryableHTTPError{StatusCode: 404}))
	assert.False(t, idx.CanBeOutOfSyncError(&util.NonRetryableHTTPError{StatusCode: 403}))
}

func TestTemplateLivePeriodNotStarted(t *testing.T) {
	ctx := staticContext(500, nil)
	ctx.IsDynamic = true
	ctx.BoundsCalculator = liveCalculator()
	idx, err := NewTemplateIndex(numberTemplate(10), ctx)
	require.NoError(t, err)

	assert.Empty(t, idx.Segments(0, 1000))
	_, ok := idx.FirstAvailablePosition()
	assert.False(t, ok)
}

func TestTemplateReplace(t *testing.T) {
	a, err := NewTemplateIndex(numberTemplate(10), staticContext(0, f64(20)))
	require.NoError(t, err)
	b, err := NewTemplateIndex(numberTemplate(10), staticContext(0, f64(50)))
	require.NoError(t, err)

	require.NoError(t, a.Update(b))
	assert.Len(t, a.Segments(0, 100), 5)

	list, err := NewListIndex(&ir.SegmentList{SegmentBase: ir.SegmentBase{Duration: f64(1)}}, staticContext(0, nil))
	require.NoError(t, err)
	assert.Error(t, a.Replace(list))
}

func TestTemplateLiveBoundedPeriod(t *testing.T) {
	// no server clock: the maximum position is extrapolated from 500s
	extrapolated := func() *bounds.Calculator {
		c := bounds.NewCalculator(bounds.Options{IsDynamic: true, Clock: bounds.FixedClock(0)})
		c.SetLastPosition(500, f64(0))
		return c
	}

	tests := []struct {
		name       string
		calc       *bounds.Calculator
		periodEnd  float64
		endNumber  *int64
		count      int
		firstTime  float64
		lastNumber int64
		lastAvail  float64
		finished   bool
	}{
		{name: "ended, no live edge", calc: extrapolated(), periodEnd: 100, count: 10, firstTime: 0, lastNumber: 10, lastAvail: 100, finished: true},
		{name: "ended, known live edge", calc: liveCalculator(), periodEnd: 90, count: 2, firstTime: 70, lastNumber: 9, lastAvail: 90, finished: true},
		{name: "ended, endNumber caps", calc: extrapolated(), periodEnd: 100, endNumber: i64(5), count: 5, firstTime: 0, lastNumber: 5, lastAvail: 50, finished: false},
		{name: "still running", calc: extrapolated(), periodEnd: 1000, count: 50, firstTime: 0, lastNumber: 50, lastAvail: 500, finished: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := staticContext(0, f64(tt.periodEnd))
			ctx.IsDynamic = true
			ctx.BoundsCalculator = tt.calc
			tpl := numberTemplate(10)
			tpl.EndNumber = tt.endNumber
			idx, err := NewTemplateIndex(tpl, ctx)
			require.NoError(t, err)

			segments := idx.Segments(0, 2000)
			require.Len(t, segments, tt.count)
			assert.Equal(t, tt.firstTime, segments[0].Time)
			last := segments[len(segments)-1]
			assert.Equal(t, tt.lastNumber, *last.Number)
			for _, seg := range segments {
				assert.Equal(t, 10.0, seg.Duration)
				assert.LessOrEqual(t, seg.End, tt.periodEnd)
			}

			lastAvail, ok := idx.LastAvailablePosition()
			require.True(t, ok)
			assert.Equal(t, tt.lastAvail, lastAvail)
			assert.Equal(t, tt.finished, idx.IsFinished())
		})
	}
}
