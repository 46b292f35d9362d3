package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte interval inside a media resource
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// String renders the range the way an HTTP Range header expects it
func (r ByteRange) String() string {
	return strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10)
}

// Length 获取长度
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Segment describes one fetchable media or initialization segment.
// All times are in seconds; Timescale is always 1 once a segment leaves an index.
type Segment struct {
	ID              string     `json:"id"`
	Time            float64    `json:"time"`
	End             float64    `json:"end"`
	Duration        float64    `json:"duration"`
	Timescale       float64    `json:"timescale"`
	Number          *int64     `json:"number,omitempty"`
	MediaURLs       []string   `json:"mediaUrls"`
	Range           *ByteRange `json:"range,omitempty"`
	IndexRange      *ByteRange `json:"indexRange,omitempty"`
	IsInit          bool       `json:"isInit"`
	Complete        bool       `json:"complete"`
	TimestampOffset float64    `json:"timestampOffset"`
}

// HasNumber reports whether the segment carries a segment number
func (s *Segment) HasNumber() bool {
	return s.Number != nil
}

// SameNumber compares the optional segment numbers of two segments
func (s *Segment) SameNumber(other *Segment) bool {
	if s.Number == nil || other.Number == nil {
		return s.Number == nil && other.Number == nil
	}
	return *s.Number == *other.Number
}

// String 转换为字符串表示
func (s *Segment) String() string {
	if s.IsInit {
		return fmt.Sprintf("[Init] %s", strings.Join(s.MediaURLs, " , "))
	}
	parts := []string{
		fmt.Sprintf("%.3f-%.3f", s.Time, s.End),
	}
	if s.Number != nil {
		parts = append(parts, fmt.Sprintf("#%d", *s.Number))
	}
	if s.Range != nil {
		parts = append(parts, "bytes="+s.Range.String())
	}
	if !s.Complete {
		parts = append(parts, "incomplete")
	}
	parts = append(parts, strings.Join(s.MediaURLs, " , "))
	return strings.Join(parts, " | ")
}
