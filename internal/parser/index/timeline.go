package index

import (
	"math"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
)

// TimelineIndex SegmentTemplate with a SegmentTimeline
type TimelineIndex struct {
	data timelineData

	calc         *bounds.Calculator
	isDynamic    bool
	isLastPeriod bool

	scaledPeriodStart float64
	scaledPeriodEnd   *float64

	baseURLs []string
	// roundingError in seconds
	roundingError float64
}

var _ entity.RepresentationIndex = (*TimelineIndex)(nil)

// NewTimelineIndex builds the index of a SegmentTemplate carrying a timeline
func NewTimelineIndex(tpl *ir.SegmentTemplate, ctx Context) *TimelineIndex {
	timescale := orDefault(tpl.Timescale, 1)
	if timescale <= 0 {
		timescale = 1
	}
	presentationTimeOffset := orDefault(tpl.PresentationTimeOffset, 0)

	// nothing declared: every announced segment is taken as available
	availabilityTimeOffset := math.Inf(1)
	if ctx.AvailabilityTimeOffset != nil || ctx.AvailabilityTimeComplete != nil {
		availabilityTimeOffset = orDefault(ctx.AvailabilityTimeOffset, 0)
	}
	availabilityTimeComplete := true
	if ctx.AvailabilityTimeComplete != nil {
		availabilityTimeComplete = *ctx.AvailabilityTimeComplete
	}

	var init *initInfo
	if tpl.Initialization != nil {
		init = &initInfo{
			url: unescapeDollars(replaceRepresentationTokens(tpl.Initialization.Media, ctx.RepresentationID, ctx.RepresentationBitrate)),
			rng: copyRange(tpl.Initialization.Range),
		}
	}

	idx := &TimelineIndex{
		data: timelineData{
			timescale:                timescale,
			indexTimeOffset:          presentationTimeOffset - ctx.PeriodStart*timescale,
			availabilityTimeOffset:   availabilityTimeOffset,
			availabilityTimeComplete: availabilityTimeComplete,
			startNumber:              copyInt(tpl.StartNumber),
			endNumber:                copyInt(tpl.EndNumber),
			timeline:                 convertTimeline(tpl.Timeline),
			indexRange:               copyRange(tpl.IndexRange),
			initialization:           init,
			segmentURLTemplate:       replaceRepresentationTokens(tpl.Media, ctx.RepresentationID, ctx.RepresentationBitrate),
		},
		calc:          ctx.calculator(),
		isDynamic:     ctx.IsDynamic,
		isLastPeriod:  ctx.IsLastPeriod,
		baseURLs:      append([]string(nil), ctx.BaseURLs...),
		roundingError: ctx.roundingConfig().MaximumTimeRoundingError,
	}
	idx.scaledPeriodStart = idx.data.toIndexTime(ctx.PeriodStart)
	if ctx.PeriodEnd != nil {
		end := idx.data.toIndexTime(*ctx.PeriodEnd)
		idx.scaledPeriodEnd = &end
	}
	return idx
}

// refreshTimeline drops what fell out of the time-shift window
func (t *TimelineIndex) refreshTimeline() {
	if !t.isDynamic {
		return
	}
	firstPosition, ok := t.calc.EstimatedMinimumSegmentTime()
	if !ok {
		return
	}
	var removed int64
	t.data.timeline, removed = clearTimelineFromPosition(t.data.timeline, t.data.toIndexTime(firstPosition))
	if removed == 0 {
		return
	}
	switch {
	case t.data.startNumber != nil:
		*t.data.startNumber += removed
	case t.data.endNumber != nil:
		t.data.startNumber = int64Ptr(removed + 1)
	}
}

func (t *TimelineIndex) scaledRounding() float64 {
	return t.roundingError * t.data.timescale
}

// InitSegment 初始化分片
func (t *TimelineIndex) InitSegment() *entity.Segment {
	return buildInitSegment(t.data.initialization, t.data.indexRange, t.baseURLs, -(t.data.indexTimeOffset / t.data.timescale))
}

// Segments 获取时间范围内的分片
func (t *TimelineIndex) Segments(from, duration float64) []*entity.Segment {
	t.refreshTimeline()
	return segmentsFromTimeline(&t.data, from, duration, t.calc, t.scaledPeriodEnd, t.baseURLs)
}

// FirstAvailablePosition is the start of the first element, never before the period
func (t *TimelineIndex) FirstAvailablePosition() (float64, bool) {
	t.refreshTimeline()
	if len(t.data.timeline) == 0 {
		return 0, false
	}
	return t.data.fromIndexTime(math.Max(t.scaledPeriodStart, t.data.timeline[0].start)), true
}

// LastAvailablePosition is the end of the last requestable segment
func (t *TimelineIndex) LastAvailablePosition() (float64, bool) {
	t.refreshTimeline()
	end, ok := t.data.lastRequestableSegmentEnd(t.calc, t.scaledPeriodEnd)
	if !ok {
		return 0, false
	}
	return t.data.fromIndexTime(minEnd(end, t.scaledPeriodEnd)), true
}

// End 结束时间
func (t *TimelineIndex) End() (float64, bool) {
	if t.isDynamic {
		if t.scaledPeriodEnd == nil {
			return 0, false
		}
		return t.data.fromIndexTime(*t.scaledPeriodEnd), true
	}
	if len(t.data.timeline) == 0 {
		return 0, false
	}
	last := t.data.timeline[len(t.data.timeline)-1]
	return t.data.fromIndexTime(minEnd(indexSegmentEnd(last, nil, t.scaledPeriodEnd), t.scaledPeriodEnd)), true
}

// AwaitSegmentBetween 是否等待新分片
func (t *TimelineIndex) AwaitSegmentBetween(start, end float64) (bool, bool) {
	if !t.isDynamic {
		return false, true
	}
	t.refreshTimeline()
	rounding := t.scaledRounding()
	scaledWantedEnd := t.data.toIndexTime(end)

	if lastEnd, ok := t.data.lastRequestableSegmentEnd(t.calc, t.scaledPeriodEnd); ok {
		if minEnd(lastEnd, t.scaledPeriodEnd)+rounding >= minEnd(scaledWantedEnd, t.scaledPeriodEnd) {
			return false, true
		}
	}

	if t.scaledPeriodEnd == nil {
		if scaledWantedEnd+rounding > t.scaledPeriodStart {
			return false, false
		}
		return false, true
	}
	scaledWantedStart := t.data.toIndexTime(start)
	return scaledWantedStart-rounding < *t.scaledPeriodEnd && scaledWantedEnd+rounding > t.scaledPeriodStart, true
}

// ShouldRefresh timelines are complete for their version
func (t *TimelineIndex) ShouldRefresh(from, to float64) bool {
	return false
}

// CheckDiscontinuity 检查时间线空洞
func (t *TimelineIndex) CheckDiscontinuity(time float64) (float64, bool) {
	t.refreshTimeline()
	return t.data.timelineDiscontinuity(time, t.scaledPeriodEnd)
}

// IsSegmentStillAvailable 分片是否仍然可用
func (t *TimelineIndex) IsSegmentStillAvailable(segment *entity.Segment) bool {
	if segment.IsInit {
		return true
	}
	t.refreshTimeline()
	return t.data.containsSegment(segment, t.scaledRounding())
}

// CanBeOutOfSyncError a 404 on live content means our timeline is behind
func (t *TimelineIndex) CanBeOutOfSyncError(err error) bool {
	return t.isDynamic && entity.IsHTTPNotFound(err)
}

// IsFinished 是否已结束
func (t *TimelineIndex) IsFinished() bool {
	if !t.isDynamic || !t.isLastPeriod {
		return true
	}
	if t.scaledPeriodEnd == nil || len(t.data.timeline) == 0 {
		return false
	}
	last := t.data.timeline[len(t.data.timeline)-1]
	return indexSegmentEnd(last, nil, t.scaledPeriodEnd)+t.scaledRounding() >= *t.scaledPeriodEnd
}

// IsInitialized 是否已初始化
func (t *TimelineIndex) IsInitialized() bool {
	return true
}

// Replace 替换
func (t *TimelineIndex) Replace(other entity.RepresentationIndex) error {
	o, ok := other.(*TimelineIndex)
	if !ok {
		return entity.ErrIncompatibleIndex
	}
	t.data = o.data.clone()
	t.calc = o.calc
	t.isDynamic = o.isDynamic
	t.isLastPeriod = o.isLastPeriod
	t.scaledPeriodStart = o.scaledPeriodStart
	t.scaledPeriodEnd = o.scaledPeriodEnd
	t.baseURLs = o.baseURLs
	t.roundingError = o.roundingError
	return nil
}

// Update 合并时间线
func (t *TimelineIndex) Update(other entity.RepresentationIndex) error {
	o, ok := other.(*TimelineIndex)
	if !ok {
		return entity.ErrIncompatibleIndex
	}
	merged, replaced, err := updateSegmentTimeline(t.data.timeline, o.data.timeline)
	if err != nil {
		return err
	}
	t.data.timeline = merged
	if replaced {
		t.data.startNumber = copyInt(o.data.startNumber)
	}
	t.data.availabilityTimeOffset = o.data.availabilityTimeOffset
	t.data.availabilityTimeComplete = o.data.availabilityTimeComplete
	t.data.endNumber = copyInt(o.data.endNumber)
	t.data.segmentURLTemplate = o.data.segmentURLTemplate
	t.data.initialization = o.data.initialization
	t.calc = o.calc
	t.isDynamic = o.isDynamic
	t.isLastPeriod = o.isLastPeriod
	t.scaledPeriodStart = o.scaledPeriodStart
	t.scaledPeriodEnd = o.scaledPeriodEnd
	t.baseURLs = o.baseURLs
	return nil
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return int64Ptr(*v)
}
