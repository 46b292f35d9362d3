package parser

import (
	"strconv"

	"mpdcore/internal/config"
	"mpdcore/internal/entity"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// periodContext is shared by every element parsed under one Period
type periodContext struct {
	periodStart  float64
	periodEnd    *float64
	isDynamic    bool
	isLastPeriod bool
	calc         *bounds.Calculator
	baseURLs     []BaseURL
	// segmentTemplate is the one declared on the Period, inherited downwards
	segmentTemplate *ir.SegmentTemplate
	protections     *ContentProtectionResolver
	config          config.ParserConfig
	metrics         *metrics.Metrics
}

// parseRepresentations parses the representations of one AdaptationSet.
// existing are representations the result will be appended to, their ids
// take part in the deduplication.
func parseRepresentations(set *ir.AdaptationSet, baseURLs []BaseURL, existing []*entity.Representation, ctx *periodContext) ([]*entity.Representation, error) {
	usedIDs := make(map[string]bool, len(existing))
	for _, r := range existing {
		usedIDs[r.ID] = true
	}

	attrs := set.Attributes
	reps := make([]*entity.Representation, 0, len(set.Children.Representations))
	for _, irRep := range set.Children.Representations {
		ra := irRep.Attributes
		repBaseURLs := ResolveBaseURLs(baseURLs, irRep.Children.BaseURLs)

		var bitrate int64
		if ra.Bitrate != nil {
			bitrate = *ra.Bitrate
		} else {
			util.Logger.Warn("DASH: no bitrate found on Representation %q", ra.ID)
		}

		rep := &entity.Representation{
			Bitrate:     bitrate,
			Codecs:      normalizeCodecs(firstNonEmpty(ra.Codecs, attrs.Codecs)),
			MimeType:    firstNonEmpty(ra.MimeType, attrs.MimeType),
			Width:       intOr(ra.Width, attrs.Width),
			Height:      intOr(ra.Height, attrs.Height),
			FrameRate:   ra.FrameRate,
			CdnMetadata: cdnMetadata(repBaseURLs),
		}
		if rep.FrameRate == nil {
			rep.FrameRate = attrs.FrameRate
		}

		id := representationID(irRep, bitrate)
		for usedIDs[id] {
			util.Logger.Warn("DASH: two Representations with the same id %q", id)
			id += "-dup"
		}
		usedIDs[id] = true
		rep.ID = id

		idx, err := newRepresentationIndex(set, irRep, repBaseURLs, ctx)
		if err != nil {
			return nil, err
		}
		rep.Index = idx

		protections := make([]*ir.ContentProtection, 0, len(set.Children.ContentProtections)+len(irRep.Children.ContentProtections))
		protections = append(protections, set.Children.ContentProtections...)
		protections = append(protections, irRep.Children.ContentProtections...)
		if len(protections) > 0 {
			ctx.protections.Add(rep, protections)
		}

		reps = append(reps, rep)
	}
	return reps, nil
}

// representationID is the declared id, else bitrate, size, MIME type and codecs
func representationID(rep *ir.Representation, bitrate int64) string {
	a := rep.Attributes
	if a.ID != "" {
		return a.ID
	}
	id := strconv.FormatInt(bitrate, 10)
	if a.Height != nil {
		id += "-" + strconv.FormatInt(*a.Height, 10)
	}
	if a.Width != nil {
		id += "-" + strconv.FormatInt(*a.Width, 10)
	}
	if a.MimeType != "" {
		id += "-" + a.MimeType
	}
	if a.Codecs != "" {
		id += "-" + a.Codecs
	}
	return id
}

func cdnMetadata(baseURLs []BaseURL) []entity.CdnMetadata {
	res := make([]entity.CdnMetadata, 0, len(baseURLs))
	for _, b := range baseURLs {
		res = append(res, entity.CdnMetadata{BaseURL: b.URL, ID: b.ServiceLocation})
	}
	return res
}

// normalizeCodecs fixes the frequent "mp4a.40.02" spelling
func normalizeCodecs(codecs string) string {
	if codecs == "mp4a.40.02" {
		return "mp4a.40.2"
	}
	return codecs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOr(values ...*int64) int {
	for _, v := range values {
		if v != nil {
			return int(*v)
		}
	}
	return 0
}
