package parser

import (
	"math"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// periodTimeInfo is the resolved timing of one Period, in seconds
type periodTimeInfo struct {
	start    float64
	duration *float64
	end      *float64
}

type presentationTimes struct {
	isDynamic             bool
	availabilityStartTime float64
	// duration is the mediaPresentationDuration
	duration *float64
}

// resolvePeriodTimes computes the start, duration and end of every period.
// A start comes from the Period itself, the presentation for the first one,
// or the end of the previous one. A duration comes from the Period itself,
// the presentation for the last one, or the start of the next one.
func resolvePeriodTimes(periods []*ir.Period, times presentationTimes) ([]periodTimeInfo, error) {
	infos := make([]periodTimeInfo, 0, len(periods))
	for i, p := range periods {
		var start float64
		switch {
		case p.Attributes.Start != nil:
			start = *p.Attributes.Start
		case i == 0:
			if times.isDynamic {
				start = times.availabilityStartTime
			}
		default:
			prev := infos[i-1]
			if prev.end == nil {
				return nil, ErrMissingPeriodStart
			}
			start = *prev.end
		}

		var duration *float64
		switch {
		case p.Attributes.Duration != nil:
			d := *p.Attributes.Duration
			duration = &d
		case i == len(periods)-1 && times.duration != nil:
			d := *times.duration - start
			duration = &d
		case i < len(periods)-1 && periods[i+1].Attributes.Start != nil:
			d := *periods[i+1].Attributes.Start - start
			duration = &d
		}

		info := periodTimeInfo{start: start, duration: duration}
		if duration != nil {
			end := start + *duration
			info.end = &end
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// FlattenOverlappingPeriods removes overlaps between consecutive periods.
// A later period always wins: the previous one is shortened to end where
// the later one starts, or dropped when nothing of it remains.
func FlattenOverlappingPeriods(periods []*entity.Period) []*entity.Period {
	if len(periods) == 0 {
		return periods
	}
	flattened := []*entity.Period{periods[0]}
	for _, p := range periods[1:] {
		last := flattened[len(flattened)-1]
		for last.Duration == nil || last.Start+*last.Duration > p.Start {
			util.Logger.Warn("DASH: updating overlapping periods %s and %s", last.ID, p.ID)
			duration := p.Start - last.Start
			end := p.Start
			last.Duration = &duration
			last.End = &end
			if duration > 0 {
				break
			}
			flattened = flattened[:len(flattened)-1]
			if len(flattened) == 0 {
				break
			}
			last = flattened[len(flattened)-1]
		}
		flattened = append(flattened, p)
	}
	return flattened
}

// contentStart is the first position where both audio and video have
// segments, from the first period holding any
func contentStart(periods []*entity.Period) (float64, bool) {
	for _, p := range periods {
		audio, hasAudio := firstAdaptation(p, entity.TrackTypeAudio)
		video, hasVideo := firstAdaptation(p, entity.TrackTypeVideo)
		if !hasAudio && !hasVideo {
			continue
		}
		position := math.Inf(-1)
		for _, a := range []*entity.Adaptation{audio, video} {
			if a == nil {
				continue
			}
			first, ok := adaptationBound(a, entity.RepresentationIndex.FirstAvailablePosition, math.Max)
			if !ok {
				return 0, false
			}
			position = math.Max(position, first)
		}
		return position, true
	}
	return 0, false
}

// contentEnd is the last position where both audio and video have
// segments, from the last period holding any
func contentEnd(periods []*entity.Period) (float64, bool) {
	for i := len(periods) - 1; i >= 0; i-- {
		audio, hasAudio := firstAdaptation(periods[i], entity.TrackTypeAudio)
		video, hasVideo := firstAdaptation(periods[i], entity.TrackTypeVideo)
		if !hasAudio && !hasVideo {
			continue
		}
		position := math.Inf(1)
		for _, a := range []*entity.Adaptation{audio, video} {
			if a == nil {
				continue
			}
			last, ok := adaptationBound(a, entity.RepresentationIndex.LastAvailablePosition, math.Min)
			if !ok {
				return 0, false
			}
			position = math.Min(position, last)
		}
		return position, true
	}
	return 0, false
}

func firstAdaptation(p *entity.Period, t entity.TrackType) (*entity.Adaptation, bool) {
	list := p.Adaptations[t]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// adaptationBound combines the positions of every representation, unknown
// as soon as one of them is
func adaptationBound(a *entity.Adaptation, position func(entity.RepresentationIndex) (float64, bool), combine func(float64, float64) float64) (float64, bool) {
	if len(a.Representations) == 0 {
		return 0, false
	}
	var res float64
	for i, r := range a.Representations {
		v, ok := position(r.Index)
		if !ok {
			return 0, false
		}
		if i == 0 {
			res = v
		} else {
			res = combine(res, v)
		}
	}
	return res, true
}
