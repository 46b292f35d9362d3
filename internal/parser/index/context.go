// Package index implements the segment indexes of a Representation: the
// SegmentBase, SegmentList, SegmentTemplate and SegmentTimeline addressing
// schemes, all behind entity.RepresentationIndex.
package index

import (
	"math"

	"mpdcore/internal/config"
	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/util"
)

// Context is what an index needs to know about its surroundings
type Context struct {
	// PeriodStart in seconds
	PeriodStart float64
	// PeriodEnd in seconds, nil when not known yet
	PeriodEnd    *float64
	IsDynamic    bool
	IsLastPeriod bool

	BoundsCalculator *bounds.Calculator

	RepresentationID      string
	RepresentationBitrate int64

	// BaseURLs are the resolved base URLs of the Representation, one per CDN
	BaseURLs []string

	AvailabilityTimeOffset   *float64
	AvailabilityTimeComplete *bool

	Config config.ParserConfig
}

func (c *Context) calculator() *bounds.Calculator {
	if c.BoundsCalculator == nil {
		c.BoundsCalculator = bounds.NewCalculator(bounds.Options{IsDynamic: c.IsDynamic})
	}
	return c.BoundsCalculator
}

func (c *Context) roundingConfig() config.ParserConfig {
	cfg := c.Config
	def := config.DefaultParserConfig()
	if cfg.MinimumSegmentSize <= 0 {
		cfg.MinimumSegmentSize = def.MinimumSegmentSize
	}
	if cfg.MaximumTimeRoundingError <= 0 {
		cfg.MaximumTimeRoundingError = def.MaximumTimeRoundingError
	}
	return cfg
}

// initInfo is the initialization segment as declared, url may be empty
// when the media resource itself holds it
type initInfo struct {
	url string
	rng *entity.ByteRange
}

func buildInitSegment(init *initInfo, indexRange *entity.ByteRange, baseURLs []string, timestampOffset float64) *entity.Segment {
	if init == nil {
		return nil
	}
	return &entity.Segment{
		ID:              "init",
		IsInit:          true,
		Timescale:       1,
		MediaURLs:       resolveMediaURLs(baseURLs, init.url),
		Range:           copyRange(init.rng),
		IndexRange:      copyRange(indexRange),
		Complete:        true,
		TimestampOffset: timestampOffset,
	}
}

// resolveMediaURLs returns one URL per base URL. An empty media path
// designates the base URL itself.
func resolveMediaURLs(baseURLs []string, media string) []string {
	if len(baseURLs) == 0 {
		if media == "" {
			return nil
		}
		return []string{media}
	}
	urls := make([]string, 0, len(baseURLs))
	for _, base := range baseURLs {
		urls = append(urls, util.ResolveURL(base, media))
	}
	return urls
}

func copyRange(r *entity.ByteRange) *entity.ByteRange {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func minEnd(v float64, end *float64) float64 {
	if end == nil {
		return v
	}
	return math.Min(v, *end)
}

func int64Ptr(v int64) *int64 {
	return &v
}
