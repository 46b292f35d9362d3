package index

import (
	"errors"
	"math"
	"strconv"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
)

// ErrNoTemplateDuration a SegmentTemplate without timeline needs a duration
var ErrNoTemplateDuration = errors.New("invalid SegmentTemplate: no duration")

// TemplateIndex number-based SegmentTemplate.
// Positions are computed in the template timescale, relative to the period start.
type TemplateIndex struct {
	duration               float64
	timescale              float64
	presentationTimeOffset float64
	indexTimeOffset        float64
	startNumber            *int64
	endNumber              *int64
	mediaTemplate          string
	initialization         *initInfo
	indexRange             *entity.ByteRange

	availabilityTimeOffset float64
	calc                   *bounds.Calculator
	isDynamic              bool
	periodStart            float64
	// scaledRelativePeriodEnd is the period duration in timescale units
	scaledRelativePeriodEnd *float64

	baseURLs           []string
	minimumSegmentSize float64
	roundingError      float64
}

var _ entity.RepresentationIndex = (*TemplateIndex)(nil)

// NewTemplateIndex 创建模板索引
func NewTemplateIndex(tpl *ir.SegmentTemplate, ctx Context) (*TemplateIndex, error) {
	if tpl.Duration == nil || *tpl.Duration <= 0 {
		return nil, ErrNoTemplateDuration
	}
	timescale := orDefault(tpl.Timescale, 1)
	if timescale <= 0 {
		timescale = 1
	}
	presentationTimeOffset := orDefault(tpl.PresentationTimeOffset, 0)
	cfg := ctx.roundingConfig()

	var init *initInfo
	if tpl.Initialization != nil {
		init = &initInfo{
			url: unescapeDollars(replaceRepresentationTokens(tpl.Initialization.Media, ctx.RepresentationID, ctx.RepresentationBitrate)),
			rng: copyRange(tpl.Initialization.Range),
		}
	}

	idx := &TemplateIndex{
		duration:               *tpl.Duration,
		timescale:              timescale,
		presentationTimeOffset: presentationTimeOffset,
		indexTimeOffset:        presentationTimeOffset - ctx.PeriodStart*timescale,
		startNumber:            copyInt(tpl.StartNumber),
		endNumber:              copyInt(tpl.EndNumber),
		mediaTemplate:          replaceRepresentationTokens(tpl.Media, ctx.RepresentationID, ctx.RepresentationBitrate),
		initialization:         init,
		indexRange:             copyRange(tpl.IndexRange),
		availabilityTimeOffset: orDefault(ctx.AvailabilityTimeOffset, 0),
		calc:                   ctx.calculator(),
		isDynamic:              ctx.IsDynamic,
		periodStart:            ctx.PeriodStart,
		baseURLs:               append([]string(nil), ctx.BaseURLs...),
		minimumSegmentSize:     cfg.MinimumSegmentSize,
		roundingError:          cfg.MaximumTimeRoundingError,
	}
	if ctx.PeriodEnd != nil {
		end := (*ctx.PeriodEnd - ctx.PeriodStart) * timescale
		idx.scaledRelativePeriodEnd = &end
	}
	return idx, nil
}

func (t *TemplateIndex) firstNumber() int64 {
	if t.startNumber != nil {
		return *t.startNumber
	}
	return 1
}

// capByEndNumber limits a segment count to what endNumber allows
func (t *TemplateIndex) capByEndNumber(count float64) float64 {
	if t.endNumber != nil {
		allowed := float64(*t.endNumber - t.firstNumber() + 1)
		if allowed < count {
			return allowed
		}
	}
	return count
}

// firstSegmentStart relative to the period start, in timescale units
func (t *TemplateIndex) firstSegmentStart() (float64, bool) {
	if !t.isDynamic {
		return 0, true
	}
	if t.scaledRelativePeriodEnd == nil || *t.scaledRelativePeriodEnd == 0 {
		if maximum, ok := t.calc.EstimatedMaximumPosition(t.availabilityTimeOffset); ok && maximum < t.periodStart {
			return 0, false
		}
	}
	firstPosition, ok := t.calc.EstimatedMinimumSegmentTime()
	if !ok {
		return 0, false
	}
	segmentTime := 0.0
	if firstPosition > t.periodStart {
		segmentTime = (firstPosition - t.periodStart) * t.timescale
	}
	return math.Floor(segmentTime/t.duration) * t.duration, true
}

// periodEndedBefore reports whether the period ends before scaledPosition,
// relative to the period start in timescale units
func (t *TemplateIndex) periodEndedBefore(scaledPosition float64) bool {
	return t.scaledRelativePeriodEnd != nil && *t.scaledRelativePeriodEnd < scaledPosition
}

// lastSegmentStartOfPeriod is the start of the segment holding the period end
func (t *TemplateIndex) lastSegmentStartOfPeriod() float64 {
	count := t.capByEndNumber(math.Ceil(*t.scaledRelativePeriodEnd / t.duration))
	return (count - 1) * t.duration
}

// lastSegmentStart relative to the period start, in timescale units
func (t *TemplateIndex) lastSegmentStart() (float64, bool) {
	if t.isDynamic {
		liveEdge, ok := t.calc.EstimatedLiveEdge()
		if ok && t.periodEndedBefore((liveEdge-t.periodStart)*t.timescale) {
			return t.lastSegmentStartOfPeriod(), true
		}
		lastPosition, ok := t.calc.EstimatedMaximumPosition(t.availabilityTimeOffset)
		if !ok {
			return 0, false
		}
		scaledLastPosition := (lastPosition - t.periodStart) * t.timescale
		if t.periodEndedBefore(scaledLastPosition) {
			return t.lastSegmentStartOfPeriod(), true
		}
		if scaledLastPosition < 0 {
			return 0, false
		}
		available := t.capByEndNumber(math.Floor(scaledLastPosition / t.duration))
		if available <= 0 {
			return 0, false
		}
		return (available - 1) * t.duration, true
	}

	maximumTime := 0.0
	if t.scaledRelativePeriodEnd != nil {
		maximumTime = *t.scaledRelativePeriodEnd
	}
	count := t.capByEndNumber(math.Ceil(maximumTime / t.duration))
	regularLastSegmentStart := (count - 1) * t.duration
	// a tiny remainder is a rounding artifact of the period duration
	minimumDuration := t.minimumSegmentSize * t.timescale
	if t.endNumber != nil || maximumTime-regularLastSegmentStart > minimumDuration || count < 2 {
		return regularLastSegmentStart, true
	}
	return (count - 2) * t.duration, true
}

// InitSegment 初始化分片
func (t *TemplateIndex) InitSegment() *entity.Segment {
	return buildInitSegment(t.initialization, t.indexRange, t.baseURLs, -(t.indexTimeOffset / t.timescale))
}

// Segments 获取时间范围内的分片
func (t *TemplateIndex) Segments(from, duration float64) []*entity.Segment {
	scaledStart := t.periodStart * t.timescale
	upFromPeriodStart := from*t.timescale - scaledStart
	toFromPeriodStart := (from+duration)*t.timescale - scaledStart

	firstSegmentStart, ok := t.firstSegmentStart()
	if !ok {
		return nil
	}
	lastSegmentStart, ok := t.lastSegmentStart()
	if !ok {
		return nil
	}
	startPosition := math.Max(firstSegmentStart, upFromPeriodStart)
	lastWantedStartPosition := math.Min(lastSegmentStart, toFromPeriodStart)
	if lastWantedStartPosition+t.duration <= startPosition {
		return nil
	}

	var segments []*entity.Segment
	numberOffset := t.firstNumber()
	numberIndexedToZero := math.Floor(startPosition / t.duration)
	for timeFromPeriodStart := numberIndexedToZero * t.duration; timeFromPeriodStart <= lastWantedStartPosition; timeFromPeriodStart += t.duration {
		number := int64(numberIndexedToZero) + numberOffset
		if t.endNumber != nil && number > *t.endNumber {
			return segments
		}
		realDuration := t.duration
		if t.scaledRelativePeriodEnd != nil && timeFromPeriodStart+t.duration > *t.scaledRelativePeriodEnd {
			realDuration = *t.scaledRelativePeriodEnd - timeFromPeriodStart
		}
		realTime := timeFromPeriodStart + scaledStart
		manifestTime := timeFromPeriodStart + t.presentationTimeOffset

		segments = append(segments, &entity.Segment{
			ID:              strconv.FormatInt(number, 10),
			Time:            realTime / t.timescale,
			End:             (realTime + realDuration) / t.timescale,
			Duration:        realDuration / t.timescale,
			Timescale:       1,
			Number:          int64Ptr(number),
			MediaURLs:       resolveMediaURLs(t.baseURLs, replaceSegmentTokens(t.mediaTemplate, manifestTime, &number)),
			Complete:        true,
			TimestampOffset: -(t.indexTimeOffset / t.timescale),
		})
		numberIndexedToZero++
	}
	return segments
}

// FirstAvailablePosition 第一个可用位置
func (t *TemplateIndex) FirstAvailablePosition() (float64, bool) {
	start, ok := t.firstSegmentStart()
	if !ok {
		return 0, false
	}
	return start/t.timescale + t.periodStart, true
}

// LastAvailablePosition 最后可用位置
func (t *TemplateIndex) LastAvailablePosition() (float64, bool) {
	start, ok := t.lastSegmentStart()
	if !ok {
		return 0, false
	}
	end := minEnd(start+t.duration, t.scaledRelativePeriodEnd)
	return end/t.timescale + t.periodStart, true
}

// End 结束时间
func (t *TemplateIndex) End() (float64, bool) {
	if !t.isDynamic {
		return t.LastAvailablePosition()
	}
	if t.scaledRelativePeriodEnd == nil {
		return 0, false
	}
	return (*t.scaledRelativePeriodEnd + t.periodStart*t.timescale) / t.timescale, true
}

// AwaitSegmentBetween 是否等待新分片
func (t *TemplateIndex) AwaitSegmentBetween(start, end float64) (bool, bool) {
	if !t.isDynamic {
		return false, true
	}
	rounding := t.roundingError * t.timescale
	scaledPeriodStart := t.periodStart * t.timescale
	scaledRelativeEnd := end*t.timescale - scaledPeriodStart
	if t.scaledRelativePeriodEnd == nil {
		return scaledRelativeEnd+rounding >= 0, true
	}
	scaledRelativeStart := start*t.timescale - scaledPeriodStart
	return scaledRelativeStart-rounding < *t.scaledRelativePeriodEnd && scaledRelativeEnd+rounding >= 0, true
}

// ShouldRefresh 模板无需刷新
func (t *TemplateIndex) ShouldRefresh(from, to float64) bool {
	return false
}

// CheckDiscontinuity templates have no holes
func (t *TemplateIndex) CheckDiscontinuity(time float64) (float64, bool) {
	return 0, false
}

// IsSegmentStillAvailable 分片是否仍然可用
func (t *TemplateIndex) IsSegmentStillAvailable(segment *entity.Segment) bool {
	if segment.IsInit {
		return true
	}
	segments := t.Segments(segment.Time, 0.1)
	if len(segments) == 0 {
		return false
	}
	first := segments[0]
	return first.Time == segment.Time && first.End == segment.End && first.SameNumber(segment)
}

// CanBeOutOfSyncError a 404 on live content means the clock drifted
func (t *TemplateIndex) CanBeOutOfSyncError(err error) bool {
	return t.isDynamic && entity.IsHTTPNotFound(err)
}

// IsFinished 是否已结束
func (t *TemplateIndex) IsFinished() bool {
	if !t.isDynamic {
		return true
	}
	if t.scaledRelativePeriodEnd == nil {
		return false
	}
	lastStart, ok := t.lastSegmentStart()
	if !ok {
		return false
	}
	return lastStart+t.duration+t.roundingError*t.timescale >= *t.scaledRelativePeriodEnd
}

// IsInitialized 是否已初始化
func (t *TemplateIndex) IsInitialized() bool {
	return true
}

// Replace 替换
func (t *TemplateIndex) Replace(other entity.RepresentationIndex) error {
	o, ok := other.(*TemplateIndex)
	if !ok {
		return entity.ErrIncompatibleIndex
	}
	*t = *o
	return nil
}

// Update a template holds no history, updating is replacing
func (t *TemplateIndex) Update(other entity.RepresentationIndex) error {
	return t.Replace(other)
}
