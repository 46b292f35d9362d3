package index

import (
	"errors"
	"math"
	"strconv"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// growingDuration marks the last element of a timeline whose duration is
// not known yet because the segment is still being produced
const growingDuration = -1

// unboundedRepeat is reached by negative repeat counts with nothing to stop them
const unboundedRepeat = 1 << 53

// ErrTimelineGap is returned when a newer timeline starts after the end of
// the known one, so that the two cannot be merged
var ErrTimelineGap = errors.New("cannot perform partial update: not enough data")

// timelineElement is one S element with every value resolved, in index time
type timelineElement struct {
	start       float64
	duration    float64
	repeatCount float64
	rng         *entity.ByteRange
}

// timelineData is what the Base and Timeline indexes share
type timelineData struct {
	timescale       float64
	indexTimeOffset float64

	// availabilityTimeOffset in seconds, +Inf means everything announced
	// is already requestable
	availabilityTimeOffset   float64
	availabilityTimeComplete bool

	startNumber *int64
	endNumber   *int64

	timeline []timelineElement

	indexRange         *entity.ByteRange
	initialization     *initInfo
	segmentURLTemplate string
}

func (d *timelineData) toIndexTime(t float64) float64 {
	return t*d.timescale + d.indexTimeOffset
}

func (d *timelineData) fromIndexTime(t float64) float64 {
	return (t - d.indexTimeOffset) / d.timescale
}

func (d *timelineData) clone() timelineData {
	c := *d
	c.timeline = append([]timelineElement(nil), d.timeline...)
	if d.startNumber != nil {
		c.startNumber = int64Ptr(*d.startNumber)
	}
	if d.endNumber != nil {
		c.endNumber = int64Ptr(*d.endNumber)
	}
	return c
}

// convertTimeline resolves the implicit start and duration of S elements.
// An element whose values cannot be inferred is dropped with a warning.
func convertTimeline(elements []ir.TimelineElement) []timelineElement {
	timeline := make([]timelineElement, 0, len(elements))
	for i, el := range elements {
		var (
			start      float64
			startKnown bool
		)
		switch {
		case el.Start != nil:
			start, startKnown = *el.Start, true
		case i == 0:
			start, startKnown = 0, true
		case len(timeline) > 0:
			prev := timeline[len(timeline)-1]
			if prev.duration > 0 && prev.repeatCount >= 0 {
				start, startKnown = prev.start+prev.duration*(prev.repeatCount+1), true
			}
		}
		if !startKnown {
			util.Logger.Warn("DASH: an S element could not be parsed, unknown start")
			continue
		}

		var duration float64
		switch {
		case el.Duration != nil:
			duration = *el.Duration
		case i+1 < len(elements) && elements[i+1].Start != nil:
			duration = *elements[i+1].Start - start
		case i == len(elements)-1:
			duration = growingDuration
		default:
			util.Logger.Warn("DASH: an S element could not be parsed, unknown duration")
			continue
		}

		timeline = append(timeline, timelineElement{
			start:       start,
			duration:    duration,
			repeatCount: el.RepeatCount,
		})
	}
	return timeline
}

// calculateRepeat resolves a negative repeat count against the next element,
// maxPosition or, failing both, an unbounded end
func calculateRepeat(el timelineElement, next *timelineElement, maxPosition *float64) float64 {
	if el.repeatCount >= 0 {
		return el.repeatCount
	}
	if el.duration <= 0 {
		return 0
	}
	var segmentEnd float64
	switch {
	case next != nil:
		segmentEnd = next.start
	case maxPosition != nil:
		segmentEnd = *maxPosition
	default:
		segmentEnd = math.MaxFloat64
	}
	return math.Max(math.Ceil((segmentEnd-el.start)/el.duration)-1, 0)
}

// indexSegmentEnd is the end of the last repetition of el
func indexSegmentEnd(el timelineElement, next *timelineElement, maxPosition *float64) float64 {
	if el.duration <= 0 {
		return el.start
	}
	repeat := calculateRepeat(el, next, maxPosition)
	return el.start + (repeat+1)*el.duration
}

func wantedRepeatIndex(start, duration, wanted float64) float64 {
	diff := wanted - start
	if diff > 0 {
		return math.Floor(diff / duration)
	}
	return 0
}

func nextElement(timeline []timelineElement, i int) *timelineElement {
	if i+1 < len(timeline) {
		return &timeline[i+1]
	}
	return nil
}

func (d *timelineData) newSegment(scaledTime, scaledDuration float64, number int64, rng *entity.ByteRange, complete bool, baseURLs []string) *entity.Segment {
	t := scaledTime - d.indexTimeOffset
	duration := scaledDuration
	if t < 0 {
		duration += t
		t = 0
	}
	media := unescapeDollars(d.segmentURLTemplate)
	if d.segmentURLTemplate != "" {
		media = replaceSegmentTokens(d.segmentURLTemplate, scaledTime, &number)
	}
	return &entity.Segment{
		ID:              strconv.FormatFloat(scaledTime, 'f', -1, 64),
		Time:            t / d.timescale,
		End:             (t + duration) / d.timescale,
		Duration:        duration / d.timescale,
		Timescale:       1,
		Number:          int64Ptr(number),
		MediaURLs:       resolveMediaURLs(baseURLs, media),
		Range:           copyRange(rng),
		Complete:        complete,
		TimestampOffset: -(d.indexTimeOffset / d.timescale),
	}
}

// segmentsFromTimeline lists the segments of the timeline overlapping
// [from, from+duration) that are already requestable
func segmentsFromTimeline(d *timelineData, from, duration float64, calc *bounds.Calculator, scaledPeriodEnd *float64, baseURLs []string) []*entity.Segment {
	maximumTime, maximumKnown := calc.EstimatedMaximumPosition(d.availabilityTimeOffset)
	wantedMaximum := from + duration
	if maximumKnown {
		wantedMaximum = math.Min(wantedMaximum, maximumTime)
	}
	scaledUp := d.toIndexTime(from)
	scaledTo := d.toIndexTime(wantedMaximum)

	maxRepeatTime := scaledPeriodEnd
	if maximumKnown {
		v := minEnd(d.toIndexTime(maximumTime), scaledPeriodEnd)
		maxRepeatTime = &v
	}

	currentNumber := int64(1)
	if d.startNumber != nil {
		currentNumber = *d.startNumber
	}

	var segments []*entity.Segment
	maxEncounteredDuration := 0.0
	for i, el := range d.timeline {
		if el.duration < 0 {
			// only announced once its projected end is reachable
			projectedEnd := el.start + maxEncounteredDuration
			if maxEncounteredDuration > 0 && projectedEnd <= scaledTo && projectedEnd > scaledUp {
				if d.endNumber == nil || currentNumber <= *d.endNumber {
					segments = append(segments, d.newSegment(el.start, maxEncounteredDuration, currentNumber, el.rng, false, baseURLs))
				}
			}
			return segments
		}
		if el.duration == 0 {
			currentNumber++
			continue
		}
		maxEncounteredDuration = math.Max(maxEncounteredDuration, el.duration)

		repeat := calculateRepeat(el, nextElement(d.timeline, i), maxRepeatTime)
		if repeat >= unboundedRepeat && math.IsInf(scaledTo, 1) {
			util.Logger.Warn("DASH: cannot list an unbounded timeline element")
			return segments
		}
		complete := d.availabilityTimeComplete || (i != len(d.timeline)-1 && repeat != 0)
		n := wantedRepeatIndex(el.start, el.duration, scaledUp)
		segmentTime := el.start + n*el.duration
		for segmentTime < scaledTo && n <= repeat {
			number := currentNumber + int64(n)
			if d.endNumber != nil && number > *d.endNumber {
				return segments
			}
			segments = append(segments, d.newSegment(segmentTime, el.duration, number, el.rng, complete, baseURLs))
			n++
			segmentTime = el.start + n*el.duration
		}
		if segmentTime >= scaledTo {
			return segments
		}
		currentNumber += int64(repeat) + 1
		if d.endNumber != nil && currentNumber > *d.endNumber {
			return segments
		}
	}
	return segments
}

// lastRequestableSegmentEnd returns, in index time, the end of the last
// segment that can be requested now
func (d *timelineData) lastRequestableSegmentEnd(calc *bounds.Calculator, scaledPeriodEnd *float64) (float64, bool) {
	if len(d.timeline) == 0 {
		return 0, false
	}
	last := d.timeline[len(d.timeline)-1]
	if math.IsInf(d.availabilityTimeOffset, 1) {
		return indexSegmentEnd(last, nil, scaledPeriodEnd), true
	}
	maxSeconds, ok := calc.EstimatedMaximumPosition(d.availabilityTimeOffset)
	if !ok {
		return indexSegmentEnd(last, nil, scaledPeriodEnd), true
	}

	for i := len(d.timeline) - 1; i >= 0; i-- {
		el := d.timeline[i]
		if el.duration <= 0 {
			continue
		}
		endOfFirstOccurrence := el.start + el.duration
		if d.fromIndexTime(endOfFirstOccurrence) > maxSeconds {
			continue
		}
		endTime := indexSegmentEnd(el, nextElement(d.timeline, i), scaledPeriodEnd)
		if d.fromIndexTime(endTime) <= maxSeconds {
			return endTime, true
		}
		nbOfSegments := math.Floor((d.toIndexTime(maxSeconds) - el.start) / el.duration)
		return el.start + nbOfSegments*el.duration, true
	}
	return 0, false
}

// clearTimelineFromPosition removes the segments ending before
// firstAvailablePosition and returns how many were removed
func clearTimelineFromPosition(timeline []timelineElement, firstAvailablePosition float64) ([]timelineElement, int64) {
	var removed int64
	for len(timeline) > 0 {
		first := &timeline[0]
		if first.repeatCount < 0 || first.duration <= 0 {
			break
		}
		if first.start+first.duration > firstAvailablePosition {
			break
		}
		ended := math.Floor((firstAvailablePosition - first.start) / first.duration)
		if ended > first.repeatCount {
			removed += int64(first.repeatCount) + 1
			timeline = timeline[1:]
			continue
		}
		first.start += ended * first.duration
		first.repeatCount -= ended
		removed += int64(ended)
		break
	}
	return timeline, removed
}

// updateSegmentTimeline merges newer into old. replaced is true when the old
// history had to be dropped entirely.
func updateSegmentTimeline(old, newer []timelineElement) (merged []timelineElement, replaced bool, err error) {
	if len(old) == 0 {
		return append([]timelineElement(nil), newer...), true, nil
	}
	if len(newer) == 0 {
		return old, false, nil
	}

	newStart := newer[0].start
	oldLast := old[len(old)-1]
	if indexSegmentEnd(oldLast, &newer[0], nil) < newStart {
		return old, false, ErrTimelineGap
	}

	splice := func(keep int) []timelineElement {
		out := append([]timelineElement(nil), old[:keep]...)
		return append(out, newer...)
	}

	for i := len(old) - 1; i >= 0; i-- {
		cur := old[i]
		if cur.start == newStart {
			return splice(i), false, nil
		}
		if cur.start > newStart {
			continue
		}

		if cur.duration > 0 && cur.start+cur.duration > newStart {
			util.Logger.Warn("RepresentationIndex: manifest update removed all previous segments")
			return append([]timelineElement(nil), newer...), true, nil
		}
		if cur.repeatCount <= 0 {
			merged = splice(i + 1)
			if cur.repeatCount < 0 && cur.duration > 0 {
				merged[i].repeatCount = math.Floor((newStart-cur.start)/cur.duration) - 1
			}
			return merged, false, nil
		}

		lastTime := cur.start + cur.duration*(cur.repeatCount+1)
		if lastTime <= newStart {
			return splice(i + 1), false, nil
		}

		currentRepeat := (newStart-cur.start)/cur.duration - 1
		if currentRepeat == math.Trunc(currentRepeat) && cur.duration == newer[0].duration {
			newRepeat := float64(-1)
			if newer[0].repeatCount >= 0 {
				newRepeat = newer[0].repeatCount + currentRepeat + 1
			}
			merged = splice(i)
			merged[i].start = cur.start
			merged[i].repeatCount = newRepeat
			return merged, false, nil
		}

		util.Logger.Warn("RepresentationIndex: manifest update removed previous segments")
		merged = splice(i + 1)
		merged[i].repeatCount = math.Floor(currentRepeat)
		return merged, false, nil
	}

	// every known element starts after the new timeline
	prevLast := old[len(old)-1]
	newLast := newer[len(newer)-1]
	if prevLast.repeatCount < 0 {
		if prevLast.start > newLast.start {
			util.Logger.Warn("RepresentationIndex: the new index is older than the previous one")
			return old, false, nil
		}
		return append([]timelineElement(nil), newer...), true, nil
	}
	prevLastTime := prevLast.start + prevLast.duration*(prevLast.repeatCount+1)
	newLastTime := newLast.start + newLast.duration*(newLast.repeatCount+1)
	if prevLastTime >= newLastTime {
		util.Logger.Warn("RepresentationIndex: the new index is older than the previous one")
		return old, false, nil
	}
	return append([]timelineElement(nil), newer...), true, nil
}

// timelineDiscontinuity returns the start of the next element when
// scaledTime falls between the end of an element and the next one
func (d *timelineData) timelineDiscontinuity(t float64, scaledPeriodEnd *float64) (float64, bool) {
	scaledTime := d.toIndexTime(t)
	if scaledTime < 0 || len(d.timeline) < 2 {
		return 0, false
	}
	low, high := 0, len(d.timeline)
	for low < high {
		mid := (low + high) / 2
		if d.timeline[mid].start < scaledTime {
			low = mid + 1
		} else {
			high = mid
		}
	}
	idx := low
	if low > 0 {
		idx = low - 1
	}
	if idx >= len(d.timeline)-1 {
		return 0, false
	}
	cur := d.timeline[idx]
	if cur.duration <= 0 {
		return 0, false
	}
	next := d.timeline[idx+1]
	segmentEnd := indexSegmentEnd(cur, &next, scaledPeriodEnd)
	if scaledTime >= segmentEnd && scaledTime < next.start {
		return d.fromIndexTime(next.start), true
	}
	return 0, false
}

// containsSegment reports whether segment still matches an element of the
// timeline, within the rounding tolerance
func (d *timelineData) containsSegment(segment *entity.Segment, rounding float64) bool {
	scaled := d.toIndexTime(segment.Time)
	for i, el := range d.timeline {
		if el.start > scaled+rounding {
			return false
		}
		if el.duration <= 0 {
			if math.Abs(el.start-scaled) <= rounding {
				return sameRange(el.rng, segment.Range)
			}
			continue
		}
		repeat := calculateRepeat(el, nextElement(d.timeline, i), nil)
		k := math.Round((scaled - el.start) / el.duration)
		if k < 0 || k > repeat {
			continue
		}
		if math.Abs(el.start+k*el.duration-scaled) <= rounding {
			return sameRange(el.rng, segment.Range)
		}
	}
	return false
}

func sameRange(a, b *entity.ByteRange) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
