package entity

import (
	"errors"
	"fmt"
	"strings"
)

// CdnMetadata is one base URL candidate segments can be fetched from
type CdnMetadata struct {
	BaseURL string `json:"baseUrl"`
	ID      string `json:"id,omitempty"`
}

// Representation 流规格
type Representation struct {
	ID                 string              `json:"id"`
	Bitrate            int64               `json:"bitrate"`
	Codecs             string              `json:"codecs,omitempty"`
	MimeType           string              `json:"mimeType,omitempty"`
	Width              int                 `json:"width,omitempty"`
	Height             int                 `json:"height,omitempty"`
	FrameRate          *float64            `json:"frameRate,omitempty"`
	ContentProtections *ContentProtections `json:"contentProtections,omitempty"`
	Index              RepresentationIndex `json:"-"`
	CdnMetadata        []CdnMetadata       `json:"cdnMetadata"`
}

// Resolution returns "WxH" when both dimensions are known
func (r *Representation) Resolution() string {
	if r.Width > 0 && r.Height > 0 {
		return fmt.Sprintf("%dx%d", r.Width, r.Height)
	}
	return ""
}

// ToShortString 转换为短字符串表示
func (r *Representation) ToShortString(trackType TrackType) string {
	var prefixStr string
	parts := []string{}

	switch trackType {
	case TrackTypeAudio:
		prefixStr = "[Aud]"
		parts = append(parts, r.ID)
		if r.Bitrate > 0 {
			parts = append(parts, fmt.Sprintf("%d Kbps", r.Bitrate/1000))
		}
		if r.Codecs != "" {
			parts = append(parts, r.Codecs)
		}
	case TrackTypeText:
		prefixStr = "[Sub]"
		parts = append(parts, r.ID)
		if r.Codecs != "" {
			parts = append(parts, r.Codecs)
		}
		if r.MimeType != "" {
			parts = append(parts, r.MimeType)
		}
	default:
		prefixStr = "[Vid]"
		if res := r.Resolution(); res != "" {
			parts = append(parts, res)
		}
		if r.Bitrate > 0 {
			parts = append(parts, fmt.Sprintf("%d Kbps", r.Bitrate/1000))
		}
		parts = append(parts, r.ID)
		if r.FrameRate != nil {
			parts = append(parts, fmt.Sprintf("%.2f", *r.FrameRate))
		}
		if r.Codecs != "" {
			parts = append(parts, r.Codecs)
		}
	}

	returnStr := prefixStr + " " + strings.Join(parts, " | ")
	if r.ContentProtections.IsEncrypted() {
		returnStr = "[*CENC] " + returnStr
	}
	return strings.TrimRight(strings.TrimSpace(returnStr), " |")
}

// mergeFrom copies the descriptive fields of newer and transfers its index
// state into the receiver's index, keeping the receiver's identity.
func (r *Representation) mergeFrom(newer *Representation, incremental bool) {
	r.Bitrate = newer.Bitrate
	r.Codecs = newer.Codecs
	r.MimeType = newer.MimeType
	r.Width = newer.Width
	r.Height = newer.Height
	r.FrameRate = newer.FrameRate
	r.ContentProtections = newer.ContentProtections
	r.CdnMetadata = newer.CdnMetadata

	if r.Index == nil {
		r.Index = newer.Index
		return
	}
	var err error
	if incremental {
		err = r.Index.Update(newer.Index)
		if errors.Is(err, ErrUpdateNotSupported) {
			// SegmentList/SegmentBase 只能整体替换
			err = r.Index.Replace(newer.Index)
		}
	} else {
		err = r.Index.Replace(newer.Index)
	}
	if err != nil {
		// a different kind of index, or histories that cannot be merged
		r.Index = newer.Index
	}
}
