package parser

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

const (
	schemeRole             = "urn:mpeg:dash:role:2011"
	schemeAudioPurpose     = "urn:tva:metadata:cs:AudioPurposeCS:2007"
	schemeSetSwitching     = "urn:mpeg:dash:adaptation-set-switching:2016"
	schemeTrickMode        = "http://dashif.org/guidelines/trickmode"
	audioPurposeVisual     = "1"
	audioPurposeHearing    = "2"
	defaultSelectionWeight = 1
)

var supportedTextRoles = []string{"subtitle", "caption"}

// adaptationMetadata decides the final order of the adaptations of a type
type adaptationMetadata struct {
	priority         int64
	isMainAdaptation bool
	indexInMpd       int
}

type orderedAdaptation struct {
	adaptation *entity.Adaptation
	metadata   adaptationMetadata
}

type switchingInfo struct {
	newID        string
	switchingIDs []string
}

type trickModeAdaptation struct {
	adaptation  *entity.Adaptation
	attachedIDs []string
}

// parseAdaptationSets groups the AdaptationSets of a period into tracks.
// Sets of unknown type are dropped, "main" video sets and switchable sets
// are merged, trick mode sets are attached to the tracks they reference.
func parseAdaptationSets(sets []*ir.AdaptationSet, ctx *periodContext) (map[entity.TrackType][]*entity.Adaptation, error) {
	parsed := make(map[entity.TrackType][]*orderedAdaptation)
	switching := make(map[string]switchingInfo)
	parsedIDs := make(map[string]bool)
	trickModes := make([]trickModeAdaptation, 0)
	lastMainVideo := -1

	for i, set := range sets {
		attrs := set.Attributes
		children := set.Children

		trackType := inferAdaptationType(set)
		if trackType == entity.TrackTypeUnknown {
			util.Logger.Warn("DASH: unknown type for AdaptationSet %q, ignored", attrs.ID)
			ctx.metrics.IncDroppedAdaptations()
			continue
		}

		priority := int64(defaultSelectionWeight)
		if attrs.SelectionPriority != nil {
			priority = *attrs.SelectionPriority
		}
		originalID := attrs.ID
		switchingIDs := adaptationSetSwitchingIDs(children.SupplementalProperties)
		isMain := hasScheme(children.Roles, schemeRole, "main")

		var trickModeProperty *ir.Scheme
		for j := range children.EssentialProperties {
			if children.EssentialProperties[j].SchemeIDURI == schemeTrickMode {
				trickModeProperty = &children.EssentialProperties[j]
				break
			}
		}
		isTrickMode := trickModeProperty != nil

		baseURLs := ResolveBaseURLs(ctx.baseURLs, children.BaseURLs)

		if trackType == entity.TrackTypeVideo && isMain && lastMainVideo >= 0 && !isTrickMode {
			mainVideo := parsed[entity.TrackTypeVideo][lastMainVideo].adaptation
			reps, err := parseRepresentations(set, baseURLs, mainVideo.Representations, ctx)
			if err != nil {
				return nil, err
			}
			mainVideo.Representations = append(mainVideo.Representations, reps...)
			if originalID != "" {
				if _, ok := switching[originalID]; !ok {
					switching[originalID] = switchingInfo{newID: mainVideo.ID, switchingIDs: switchingIDs}
				}
			}
			continue
		}

		adaptation := &entity.Adaptation{
			Type:               trackType,
			Language:           attrs.Language,
			NormalizedLanguage: normalizeLanguage(attrs.Language),
			Label:              children.Label,
			IsTrickModeTrack:   isTrickMode,
		}
		fillAccessibility(adaptation, children)

		id := adaptationID(set, adaptation)
		for parsedIDs[id] {
			util.Logger.Warn("DASH: two AdaptationSets with the same id %q", id)
			id += "-dup"
		}
		parsedIDs[id] = true
		adaptation.ID = id

		reps, err := parseRepresentations(set, baseURLs, nil, ctx)
		if err != nil {
			return nil, err
		}
		adaptation.Representations = reps

		if originalID != "" {
			if _, ok := switching[originalID]; !ok {
				switching[originalID] = switchingInfo{newID: id, switchingIDs: switchingIDs}
			}
		}

		if isTrickMode {
			trickModes = append(trickModes, trickModeAdaptation{
				adaptation:  adaptation,
				attachedIDs: strings.Fields(trickModeProperty.Value),
			})
			continue
		}

		metadata := adaptationMetadata{priority: priority, isMainAdaptation: isMain, indexInMpd: i}
		if mergedInto := findSwitchingTarget(parsed[trackType], switching, switchingIDs, originalID, adaptation); mergedInto != nil {
			util.Logger.Info("DASH: merging switchable AdaptationSets %s and %s", adaptation.ID, mergedInto.adaptation.ID)
			mergedInto.adaptation.Representations = append(mergedInto.adaptation.Representations, adaptation.Representations...)
			mergedInto.metadata = adaptationMetadata{
				priority:         max(mergedInto.metadata.priority, priority),
				isMainAdaptation: mergedInto.metadata.isMainAdaptation || isMain,
				indexInMpd:       min(mergedInto.metadata.indexInMpd, i),
			}
			continue
		}

		parsed[trackType] = append(parsed[trackType], &orderedAdaptation{adaptation: adaptation, metadata: metadata})
		if trackType == entity.TrackTypeVideo && isMain {
			lastMainVideo = len(parsed[trackType]) - 1
		}
	}

	for _, tm := range trickModes {
		for _, attachedID := range tm.attachedIDs {
			for _, t := range entity.SupportedTrackTypes {
				if t == entity.TrackTypeAudio {
					continue
				}
				for _, oa := range parsed[t] {
					if oa.adaptation.ID == attachedID {
						oa.adaptation.TrickModeTracks = append(oa.adaptation.TrickModeTracks, tm.adaptation)
					}
				}
			}
		}
	}

	res := make(map[entity.TrackType][]*entity.Adaptation)
	for t, list := range parsed {
		sort.SliceStable(list, func(a, b int) bool {
			ma, mb := list[a].metadata, list[b].metadata
			if ma.priority != mb.priority {
				return ma.priority > mb.priority
			}
			if ma.isMainAdaptation != mb.isMainAdaptation {
				return ma.isMainAdaptation
			}
			return ma.indexInMpd < mb.indexInMpd
		})
		adaptations := make([]*entity.Adaptation, 0, len(list))
		for _, oa := range list {
			adaptations = append(adaptations, oa.adaptation)
		}
		res[t] = adaptations
	}
	return res, nil
}

// findSwitchingTarget returns the already parsed adaptation a switchable
// set should be merged into. Both sets have to reference each other and
// carry the same language and accessibility flags.
func findSwitchingTarget(list []*orderedAdaptation, switching map[string]switchingInfo, switchingIDs []string, originalID string, adaptation *entity.Adaptation) *orderedAdaptation {
	if originalID == "" {
		return nil
	}
	for _, id := range switchingIDs {
		info, ok := switching[id]
		if !ok || info.newID == adaptation.ID || !containsString(info.switchingIDs, originalID) {
			continue
		}
		for _, oa := range list {
			if oa.adaptation.ID != info.newID {
				continue
			}
			if equalBoolPtr(oa.adaptation.AudioDescription, adaptation.AudioDescription) &&
				equalBoolPtr(oa.adaptation.ClosedCaption, adaptation.ClosedCaption) &&
				oa.adaptation.Language == adaptation.Language {
				return oa
			}
		}
	}
	return nil
}

// inferAdaptationType looks at the MIME types first, then at the codecs,
// of the set and then of its representations
func inferAdaptationType(set *ir.AdaptationSet) entity.TrackType {
	roles := set.Children.Roles
	if mime := set.Attributes.MimeType; mime != "" {
		if t := typeFromMimeType(mime, roles); t != entity.TrackTypeUnknown {
			return t
		}
	}
	if codecs := set.Attributes.Codecs; codecs != "" {
		if t := typeFromCodecs(codecs); t != entity.TrackTypeUnknown {
			return t
		}
	}
	for _, rep := range set.Children.Representations {
		if mime := rep.Attributes.MimeType; mime != "" {
			if t := typeFromMimeType(mime, roles); t != entity.TrackTypeUnknown {
				return t
			}
		}
		if codecs := rep.Attributes.Codecs; codecs != "" {
			if t := typeFromCodecs(codecs); t != entity.TrackTypeUnknown {
				return t
			}
		}
	}
	return entity.TrackTypeUnknown
}

func typeFromMimeType(mimeType string, roles []ir.Scheme) entity.TrackType {
	topLevel, _, _ := strings.Cut(mimeType, "/")
	if t := entity.ParseTrackType(topLevel); t != entity.TrackTypeUnknown {
		return t
	}
	switch mimeType {
	case "application/ttml+xml":
		return entity.TrackTypeText
	case "application/mp4":
		for _, r := range roles {
			if r.SchemeIDURI == schemeRole && containsString(supportedTextRoles, r.Value) {
				return entity.TrackTypeText
			}
		}
	}
	return entity.TrackTypeUnknown
}

func typeFromCodecs(codecs string) entity.TrackType {
	if len(codecs) >= 3 {
		switch codecs[:3] {
		case "avc", "hev", "hvc", "vp8", "vp9", "av1":
			return entity.TrackTypeVideo
		case "vtt":
			return entity.TrackTypeText
		}
	}
	if len(codecs) >= 4 {
		switch codecs[:4] {
		case "mp4a":
			return entity.TrackTypeAudio
		case "wvtt", "stpp":
			return entity.TrackTypeText
		}
	}
	return entity.TrackTypeUnknown
}

// fillAccessibility sets the accessibility flags from Accessibility and Role
func fillAccessibility(a *entity.Adaptation, children ir.AdaptationSetChildren) {
	roles := children.Roles
	accessibilities := children.Accessibilities

	switch a.Type {
	case entity.TrackTypeText:
		cc := hasScheme(accessibilities, schemeAudioPurpose, audioPurposeHearing) || hasScheme(roles, schemeRole, "caption")
		a.ClosedCaption = &cc
		a.ForcedSubtitles = hasScheme(roles, schemeRole, "forced-subtitle") || hasScheme(roles, schemeRole, "forced_subtitle")
	case entity.TrackTypeAudio:
		ad := hasScheme(accessibilities, schemeAudioPurpose, audioPurposeVisual) || hasScheme(roles, schemeRole, "description")
		a.AudioDescription = &ad
	case entity.TrackTypeVideo:
		a.SignInterpreted = hasScheme(accessibilities, schemeRole, "sign")
	}
	a.IsDub = hasScheme(roles, schemeRole, "dub")
}

// adaptationID is the declared id, or one built from what tells the set apart
func adaptationID(set *ir.AdaptationSet, a *entity.Adaptation) string {
	attrs := set.Attributes
	if attrs.ID != "" {
		return attrs.ID
	}
	var sb strings.Builder
	sb.WriteString(a.Type.String())
	if attrs.Language != "" {
		sb.WriteString("-" + attrs.Language)
	}
	if a.ClosedCaption != nil && *a.ClosedCaption {
		sb.WriteString("-cc")
	}
	if a.ForcedSubtitles {
		sb.WriteString("-forced")
	}
	if a.AudioDescription != nil && *a.AudioDescription {
		sb.WriteString("-ad")
	}
	if a.SignInterpreted {
		sb.WriteString("-si")
	}
	if a.IsTrickModeTrack {
		sb.WriteString("-trickMode")
	}
	if attrs.ContentType != "" {
		sb.WriteString("-" + attrs.ContentType)
	}
	if attrs.Codecs != "" {
		sb.WriteString("-" + attrs.Codecs)
	}
	if attrs.MimeType != "" {
		sb.WriteString("-" + attrs.MimeType)
	}
	if attrs.FrameRate != nil {
		sb.WriteString("-" + strconv.FormatFloat(*attrs.FrameRate, 'f', -1, 64))
	}
	return sb.String()
}

// normalizeLanguage returns the ISO 639-3 code of lang, lang itself when it
// cannot be parsed
func normalizeLanguage(lang string) string {
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return lang
	}
	return base.ISO3()
}

func adaptationSetSwitchingIDs(properties []ir.Scheme) []string {
	ids := make([]string, 0)
	for _, p := range properties {
		if p.SchemeIDURI != schemeSetSwitching {
			continue
		}
		for _, id := range strings.Split(p.Value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func hasScheme(schemes []ir.Scheme, schemeIDURI, value string) bool {
	for _, s := range schemes {
		if s.SchemeIDURI == schemeIDURI && s.Value == value {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
