package entity

import "math"

// MaximumTimeData describes the latest reachable position of a presentation
type MaximumTimeData struct {
	IsLinear            bool     `json:"isLinear"`
	MaximumSafePosition float64  `json:"maximumSafePosition"`
	LivePosition        *float64 `json:"livePosition,omitempty"`
	// Time is the monotonic timestamp, in milliseconds, at which the values were true
	Time float64 `json:"time"`
}

// TimeBounds 可播放时间范围
type TimeBounds struct {
	MinimumSafePosition *float64        `json:"minimumSafePosition,omitempty"`
	TimeshiftDepth      *float64        `json:"timeshiftDepth,omitempty"`
	MaximumTimeData     MaximumTimeData `json:"maximumTimeData"`
}

// StreamEvent is one Event of an EventStream, in seconds
type StreamEvent struct {
	ID              string   `json:"id,omitempty"`
	Start           float64  `json:"start"`
	End             *float64 `json:"end,omitempty"`
	SchemeIDURI     string   `json:"schemeIdUri"`
	Value           string   `json:"value,omitempty"`
	Timescale       float64  `json:"timescale"`
	TimescaledStart float64  `json:"timescaledStart"`
	MessageData     string   `json:"messageData,omitempty"`
}

// Period 周期
type Period struct {
	ID           string                      `json:"id"`
	Start        float64                     `json:"start"`
	Duration     *float64                    `json:"duration,omitempty"`
	End          *float64                    `json:"end,omitempty"`
	Adaptations  map[TrackType][]*Adaptation `json:"adaptations"`
	StreamEvents []StreamEvent               `json:"streamEvents,omitempty"`
}

// GetAdaptations returns every adaptation of the period, video first
func (p *Period) GetAdaptations() []*Adaptation {
	res := make([]*Adaptation, 0)
	for _, t := range SupportedTrackTypes {
		res = append(res, p.Adaptations[t]...)
	}
	return res
}

// GetAdaptation 根据ID查找
func (p *Period) GetAdaptation(id string) *Adaptation {
	for _, a := range p.GetAdaptations() {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ContainsTime reports whether t falls in [Start, End)
func (p *Period) ContainsTime(t float64) bool {
	if t < p.Start {
		return false
	}
	return p.End == nil || t < *p.End
}

func (p *Period) mergeFrom(newer *Period, incremental bool) {
	p.Start = newer.Start
	p.Duration = newer.Duration
	p.End = newer.End
	p.StreamEvents = newer.StreamEvents

	adaptations := make(map[TrackType][]*Adaptation)
	for _, t := range SupportedTrackTypes {
		for _, na := range newer.Adaptations[t] {
			if old := p.GetAdaptation(na.ID); old != nil {
				old.mergeFrom(na, incremental)
				adaptations[t] = append(adaptations[t], old)
				continue
			}
			adaptations[t] = append(adaptations[t], na)
		}
	}
	p.Adaptations = adaptations
}

// Manifest is the parsed form of an MPD
type Manifest struct {
	IsDynamic                  bool       `json:"isDynamic"`
	IsLive                     bool       `json:"isLive"`
	IsLastPeriodKnown          bool       `json:"isLastPeriodKnown"`
	AvailabilityStartTime      float64    `json:"availabilityStartTime"`
	PublishTime                *float64   `json:"publishTime,omitempty"`
	SuggestedPresentationDelay *float64   `json:"suggestedPresentationDelay,omitempty"`
	// ClockOffset is server time minus monotonic time, in milliseconds
	ClockOffset *float64   `json:"clockOffset,omitempty"`
	Lifetime    *float64   `json:"lifetime,omitempty"`
	Periods     []*Period  `json:"periods"`
	TimeBounds  TimeBounds `json:"timeBounds"`
	URIs        []string   `json:"uris,omitempty"`
}

// GetPeriod 根据ID查找
func (m *Manifest) GetPeriod(id string) *Period {
	for _, p := range m.Periods {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// GetPeriodForTime returns the period playing at t, nil if none
func (m *Manifest) GetPeriodForTime(t float64) *Period {
	for _, p := range m.Periods {
		if p.ContainsTime(t) {
			return p
		}
	}
	return nil
}

// FindRepresentation looks a representation up by its id across every period
func (m *Manifest) FindRepresentation(id string) (*Period, *Adaptation, *Representation) {
	for _, p := range m.Periods {
		for _, a := range p.GetAdaptations() {
			if r := a.GetRepresentation(id); r != nil {
				return p, a, r
			}
		}
	}
	return nil, nil, nil
}

// Replace takes over the whole content of newer. Periods, adaptations and
// representations already known keep their identity; their indexes are
// replaced with the newer ones.
func (m *Manifest) Replace(newer *Manifest) {
	m.Periods = m.mergePeriods(newer.Periods, false)
	m.copyAttributes(newer)
}

// Update merges a newer version of the same live content. Periods that
// ended before the first newer period are kept, indexes are updated
// incrementally so their known history survives.
func (m *Manifest) Update(newer *Manifest) {
	periods := make([]*Period, 0, len(m.Periods)+len(newer.Periods))
	if len(newer.Periods) > 0 {
		firstStart := newer.Periods[0].Start
		for _, p := range m.Periods {
			if newer.GetPeriod(p.ID) != nil {
				continue
			}
			if p.End != nil && *p.End <= firstStart {
				periods = append(periods, p)
			}
		}
	}
	m.Periods = append(periods, m.mergePeriods(newer.Periods, true)...)
	m.copyAttributes(newer)
}

func (m *Manifest) mergePeriods(newPeriods []*Period, incremental bool) []*Period {
	res := make([]*Period, 0, len(newPeriods))
	for _, np := range newPeriods {
		if old := m.GetPeriod(np.ID); old != nil {
			old.mergeFrom(np, incremental)
			res = append(res, old)
			continue
		}
		res = append(res, np)
	}
	return res
}

func (m *Manifest) copyAttributes(newer *Manifest) {
	m.IsDynamic = newer.IsDynamic
	m.IsLive = newer.IsLive
	m.IsLastPeriodKnown = newer.IsLastPeriodKnown
	m.AvailabilityStartTime = newer.AvailabilityStartTime
	m.PublishTime = newer.PublishTime
	m.SuggestedPresentationDelay = newer.SuggestedPresentationDelay
	m.ClockOffset = newer.ClockOffset
	m.Lifetime = newer.Lifetime
	m.TimeBounds = newer.TimeBounds
	m.URIs = newer.URIs
}

// MinimumSafePosition 最小可播放位置
func (m *Manifest) MinimumSafePosition() float64 {
	if m.TimeBounds.MinimumSafePosition != nil {
		return *m.TimeBounds.MinimumSafePosition
	}
	return 0
}

// MaximumSafePosition extrapolates the maximum position to monotonic time nowMs
func (m *Manifest) MaximumSafePosition(nowMs float64) float64 {
	data := m.TimeBounds.MaximumTimeData
	if !data.IsLinear {
		return data.MaximumSafePosition
	}
	elapsed := (nowMs - data.Time) / 1000
	return math.Max(data.MaximumSafePosition+elapsed, 0)
}
