package entity

import "strings"

// TrackType is the kind of media carried by an adaptation
type TrackType int

const (
	TrackTypeAudio TrackType = iota
	TrackTypeVideo
	TrackTypeText
	TrackTypeUnknown TrackType = -1
)

// SupportedTrackTypes lists the types kept in a parsed Period, in output order
var SupportedTrackTypes = []TrackType{TrackTypeVideo, TrackTypeAudio, TrackTypeText}

func (t TrackType) String() string {
	switch t {
	case TrackTypeAudio:
		return "audio"
	case TrackTypeVideo:
		return "video"
	case TrackTypeText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseTrackType maps a MIME top-level type or a plain type name to a TrackType
func ParseTrackType(str string) TrackType {
	switch strings.ToLower(str) {
	case "audio":
		return TrackTypeAudio
	case "video":
		return TrackTypeVideo
	case "text":
		return TrackTypeText
	default:
		return TrackTypeUnknown
	}
}

// MarshalJSON 实现JSON序列化
func (t TrackType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// MarshalText lets TrackType be used as a JSON map key
func (t TrackType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (t *TrackType) UnmarshalText(data []byte) error {
	*t = ParseTrackType(string(data))
	return nil
}
