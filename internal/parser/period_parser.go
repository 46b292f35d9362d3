package parser

import (
	"math"
	"strconv"
	"time"

	"mpdcore/internal/config"
	"mpdcore/internal/entity"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// manifestInfo is what the period parser needs to know about the MPD
type manifestInfo struct {
	isDynamic             bool
	availabilityStartTime float64
	duration              *float64
	// clockOffset is server time minus monotonic time, in milliseconds
	clockOffset *float64
	baseURLs    []BaseURL

	calc        *bounds.Calculator
	clock       bounds.Clock
	now         func() time.Time
	protections *ContentProtectionResolver
	config      config.ParserConfig
	metrics     *metrics.Metrics
}

// parsePeriods resolves the periods of an MPD. Periods are parsed from the
// last one so the bounds calculator is seeded with the latest position
// before earlier periods need it.
func parsePeriods(periods []*ir.Period, info *manifestInfo) ([]*entity.Period, error) {
	times, err := resolvePeriodTimes(periods, presentationTimes{
		isDynamic:             info.isDynamic,
		availabilityStartTime: info.availabilityStartTime,
		duration:              info.duration,
	})
	if err != nil {
		return nil, err
	}
	ids := periodIDs(periods)

	parsed := make([]*entity.Period, len(periods))
	for i := len(periods) - 1; i >= 0; i-- {
		p := periods[i]
		t := times[i]
		ctx := &periodContext{
			periodStart:     t.start,
			periodEnd:       t.end,
			isDynamic:       info.isDynamic,
			isLastPeriod:    i == len(periods)-1,
			calc:            info.calc,
			baseURLs:        ResolveBaseURLs(info.baseURLs, p.Children.BaseURLs),
			segmentTemplate: p.Children.SegmentTemplate,
			protections:     info.protections,
			config:          info.config,
			metrics:         info.metrics,
		}

		adaptations, err := parseAdaptationSets(p.Children.AdaptationSets, ctx)
		if err != nil {
			return nil, err
		}
		parsed[i] = &entity.Period{
			ID:           ids[i],
			Start:        t.start,
			Duration:     t.duration,
			End:          t.end,
			Adaptations:  adaptations,
			StreamEvents: streamEvents(p.Children.EventStreams, t.start),
		}

		if !info.calc.LastPositionIsKnown() {
			seedBoundsCalculator(info, parsed[i], t.start)
		}
	}

	if info.isDynamic && !info.calc.LastPositionIsKnown() {
		if position, positionTime, ok := guessLastPositionFromClock(info, 0); ok {
			info.calc.SetLastPosition(position, &positionTime)
		}
	}
	return FlattenOverlappingPeriods(parsed), nil
}

// seedBoundsCalculator records the last position announced by a period
func seedBoundsCalculator(info *manifestInfo, period *entity.Period, periodStart float64) {
	lastPosition, ok := maximumLastPosition(period)
	if !info.isDynamic {
		if ok {
			info.calc.SetLastPosition(lastPosition, nil)
		}
		return
	}
	if ok {
		positionTime := info.clock.NowMs() / 1000
		info.calc.SetLastPosition(lastPosition, &positionTime)
		return
	}
	if position, positionTime, ok := guessLastPositionFromClock(info, periodStart); ok {
		info.calc.SetLastPosition(position, &positionTime)
	}
}

// guessLastPositionFromClock estimates the live position from the server
// clock offset, or from the system clock when no offset is known
func guessLastPositionFromClock(info *manifestInfo, minimumTime float64) (float64, float64, bool) {
	positionTime := info.clock.NowMs() / 1000
	if info.clockOffset != nil {
		position := positionTime + *info.clockOffset/1000 - info.availabilityStartTime
		if position >= minimumTime {
			return position, positionTime, true
		}
		return 0, 0, false
	}
	now := float64(info.now().UnixMilli()) / 1000
	if now < minimumTime {
		return 0, 0, false
	}
	util.Logger.Warn("DASH: no clock synchronization mechanism found, using the system clock")
	return now - info.availabilityStartTime, positionTime, true
}

// maximumLastPosition is the largest last position over every representation
func maximumLastPosition(period *entity.Period) (float64, bool) {
	found := false
	maximum := math.Inf(-1)
	for _, a := range period.GetAdaptations() {
		for _, r := range a.Representations {
			if position, ok := r.Index.LastAvailablePosition(); ok {
				found = true
				maximum = math.Max(maximum, position)
			}
		}
	}
	return maximum, found
}

// periodIDs returns the declared ids, generated ones for the others, with
// duplicates suffixed in document order
func periodIDs(periods []*ir.Period) []string {
	ids := make([]string, 0, len(periods))
	used := make(map[string]bool, len(periods))
	for i, p := range periods {
		id := p.Attributes.ID
		if id == "" {
			util.Logger.Warn("DASH: no id found on Period %d, generating one", i)
			id = "gen-dash-period-" + strconv.Itoa(i)
		}
		for used[id] {
			id += "-dup"
		}
		used[id] = true
		ids = append(ids, id)
	}
	return ids
}

func streamEvents(eventStreams []ir.EventStream, periodStart float64) []entity.StreamEvent {
	var res []entity.StreamEvent
	for _, es := range eventStreams {
		timescale := es.Timescale
		if timescale <= 0 {
			timescale = 1
		}
		for _, ev := range es.Events {
			if ev.PresentationTime == nil {
				continue
			}
			start := *ev.PresentationTime/timescale + periodStart
			event := entity.StreamEvent{
				ID:              ev.ID,
				Start:           start,
				SchemeIDURI:     es.SchemeIDURI,
				Value:           es.Value,
				Timescale:       timescale,
				TimescaledStart: *ev.PresentationTime,
				MessageData:     ev.MessageData,
			}
			if ev.Duration != nil {
				end := start + *ev.Duration/timescale
				event.End = &end
			}
			res = append(res, event)
		}
	}
	return res
}
