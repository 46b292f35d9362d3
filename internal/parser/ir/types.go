// Package ir holds the typed intermediate form of an MPD, one record per
// element, built in a single pass over the attributed tree.
package ir

import (
	"mpdcore/internal/entity"
	"mpdcore/internal/tree"
)

// Scheme is any descriptor element (Role, Accessibility, UTCTiming, ...)
type Scheme struct {
	SchemeIDURI string
	Value       string
	ID          string
}

// BaseURL 基础URL
type BaseURL struct {
	Value           string
	ServiceLocation string
}

// MPDAttributes are the root attributes. Times are in seconds, dates in
// seconds since the unix epoch.
type MPDAttributes struct {
	ID                         string
	Profiles                   string
	Type                       string
	AvailabilityStartTime      *float64
	AvailabilityEndTime        *float64
	PublishTime                *float64
	Duration                   *float64
	MinimumUpdatePeriod        *float64
	MinBufferTime              *float64
	TimeShiftBufferDepth       *float64
	SuggestedPresentationDelay *float64
	MaxSegmentDuration         *float64
	MaxSubsegmentDuration      *float64
}

// MPDChildren are the root children, in document order per kind
type MPDChildren struct {
	UTCTimings []Scheme
	BaseURLs   []BaseURL
	Locations  []string
	Periods    []*Period
}

// MPD is the root record
type MPD struct {
	Attributes MPDAttributes
	Children   MPDChildren
}

// PeriodAttributes 周期属性
type PeriodAttributes struct {
	ID                 string
	Start              *float64
	Duration           *float64
	BitstreamSwitching *bool
	XLinkHref          string
	XLinkActuate       string
}

// PeriodChildren 周期子元素
type PeriodChildren struct {
	BaseURLs        []BaseURL
	AdaptationSets  []*AdaptationSet
	EventStreams    []EventStream
	SegmentTemplate *SegmentTemplate
}

// Period 周期
type Period struct {
	Attributes PeriodAttributes
	Children   PeriodChildren
}

// AdaptationSetAttributes 自适应集属性
type AdaptationSetAttributes struct {
	ID                       string
	Group                    *int64
	Language                 string
	ContentType              string
	MimeType                 string
	Codecs                   string
	Profiles                 string
	FrameRate                *float64
	Width                    *int64
	Height                   *int64
	MaxWidth                 *int64
	MaxHeight                *int64
	MinBitrate               *int64
	MaxBitrate               *int64
	SelectionPriority        *int64
	SegmentAlignment         *bool
	SubsegmentAlignment      *bool
	BitstreamSwitching       *bool
	AvailabilityTimeOffset   *float64
	AvailabilityTimeComplete *bool
}

// AdaptationSetChildren 自适应集子元素
type AdaptationSetChildren struct {
	Accessibilities        []Scheme
	BaseURLs               []BaseURL
	ContentComponent       *Scheme
	ContentProtections     []*ContentProtection
	EssentialProperties    []Scheme
	InbandEventStreams     []Scheme
	Roles                  []Scheme
	SupplementalProperties []Scheme
	Label                  string
	Representations        []*Representation
	SegmentBase            *SegmentBase
	SegmentList            *SegmentList
	SegmentTemplate        *SegmentTemplate
}

// AdaptationSet 自适应集
type AdaptationSet struct {
	Attributes AdaptationSetAttributes
	Children   AdaptationSetChildren
}

// RepresentationAttributes 表示属性
type RepresentationAttributes struct {
	ID                       string
	Bitrate                  *int64
	Codecs                   string
	MimeType                 string
	FrameRate                *float64
	Width                    *int64
	Height                   *int64
	AudioSamplingRate        string
	QualityRanking           *int64
	AvailabilityTimeOffset   *float64
	AvailabilityTimeComplete *bool
}

// RepresentationChildren 表示子元素
type RepresentationChildren struct {
	BaseURLs               []BaseURL
	ContentProtections     []*ContentProtection
	InbandEventStreams     []Scheme
	EssentialProperties    []Scheme
	SupplementalProperties []Scheme
	SegmentBase            *SegmentBase
	SegmentList            *SegmentList
	SegmentTemplate        *SegmentTemplate
}

// Representation 表示
type Representation struct {
	Attributes RepresentationAttributes
	Children   RepresentationChildren
}

// ContentProtectionAttributes 加密信息属性
type ContentProtectionAttributes struct {
	SchemeIDURI string
	Value       string
	// KeyID is the 16-byte cenc:default_KID
	KeyID []byte
	Ref   string
	RefID string
}

// ContentProtection 加密信息元素
type ContentProtection struct {
	Attributes ContentProtectionAttributes
	// Pssh holds the decoded cenc:pssh payloads, full boxes
	Pssh [][]byte
}

// Initialization points at an initialization segment
type Initialization struct {
	Media string
	Range *entity.ByteRange
}

// TimelineElement is one S element, values in the timescale of its template
type TimelineElement struct {
	Start       *float64
	Duration    *float64
	RepeatCount float64
}

// SegmentBase carries the attributes shared by SegmentBase, SegmentList and
// SegmentTemplate. Duration is in timescale units.
type SegmentBase struct {
	Timescale                *float64
	PresentationTimeOffset   *float64
	IndexRange               *entity.ByteRange
	IndexRangeExact          bool
	Initialization           *Initialization
	AvailabilityTimeOffset   *float64
	AvailabilityTimeComplete *bool
	Duration                 *float64
	StartNumber              *int64
	EndNumber                *int64
}

// SegmentURL is one entry of a SegmentList
type SegmentURL struct {
	Media      string
	MediaRange *entity.ByteRange
	Index      string
	IndexRange *entity.ByteRange
}

// SegmentList 分片列表
type SegmentList struct {
	SegmentBase
	List []SegmentURL
}

// SegmentTemplate 分片模板
type SegmentTemplate struct {
	SegmentBase
	Media              string
	Index              string
	BitstreamSwitching *bool
	// Timeline is nil when the template carries no SegmentTimeline
	Timeline []TimelineElement
}

// HasTimeline reports whether a SegmentTimeline child was declared
func (t *SegmentTemplate) HasTimeline() bool {
	return t != nil && t.Timeline != nil
}

// Event is one Event of an EventStream, values in the stream timescale
type Event struct {
	ID               string
	PresentationTime *float64
	Duration         *float64
	MessageData      string
	Element          *tree.Node
}

// EventStream 事件流
type EventStream struct {
	SchemeIDURI string
	Value       string
	Timescale   float64
	Events      []Event
}
