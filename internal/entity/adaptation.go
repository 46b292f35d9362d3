package entity

import "fmt"

// Adaptation 轨道, a set of interchangeable encodings of the same content
type Adaptation struct {
	ID                 string            `json:"id"`
	Type               TrackType         `json:"type"`
	Representations    []*Representation `json:"representations"`
	Language           string            `json:"language,omitempty"`
	NormalizedLanguage string            `json:"normalizedLanguage,omitempty"`
	Label              string            `json:"label,omitempty"`
	ClosedCaption      *bool             `json:"closedCaption,omitempty"`
	AudioDescription   *bool             `json:"audioDescription,omitempty"`
	SignInterpreted    bool              `json:"signInterpreted,omitempty"`
	IsDub              bool              `json:"isDub,omitempty"`
	ForcedSubtitles    bool              `json:"forcedSubtitles,omitempty"`
	IsTrickModeTrack   bool              `json:"isTrickModeTrack,omitempty"`
	TrickModeTracks    []*Adaptation     `json:"trickModeTracks,omitempty"`
}

// GetRepresentation 根据ID查找
func (a *Adaptation) GetRepresentation(id string) *Representation {
	for _, r := range a.Representations {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (a *Adaptation) String() string {
	return fmt.Sprintf("%s %s (%d representations)", a.Type, a.ID, len(a.Representations))
}

func (a *Adaptation) mergeFrom(newer *Adaptation, incremental bool) {
	a.Type = newer.Type
	a.Language = newer.Language
	a.NormalizedLanguage = newer.NormalizedLanguage
	a.Label = newer.Label
	a.ClosedCaption = newer.ClosedCaption
	a.AudioDescription = newer.AudioDescription
	a.SignInterpreted = newer.SignInterpreted
	a.IsDub = newer.IsDub
	a.ForcedSubtitles = newer.ForcedSubtitles
	a.IsTrickModeTrack = newer.IsTrickModeTrack
	a.TrickModeTracks = newer.TrickModeTracks

	merged := make([]*Representation, 0, len(newer.Representations))
	for _, nr := range newer.Representations {
		if old := a.GetRepresentation(nr.ID); old != nil {
			old.mergeFrom(nr, incremental)
			merged = append(merged, old)
			continue
		}
		merged = append(merged, nr)
	}
	a.Representations = merged
}
