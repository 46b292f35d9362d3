package parser

import (
	"math"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/index"
	"mpdcore/internal/parser/ir"
)

// newRepresentationIndex picks the addressing scheme of a Representation.
// Its own SegmentBase or SegmentList come first, then a SegmentTemplate
// declared anywhere from the Period down, then what the AdaptationSet
// declares. Without any of them the whole resource is one segment.
func newRepresentationIndex(set *ir.AdaptationSet, rep *ir.Representation, baseURLs []BaseURL, ctx *periodContext) (entity.RepresentationIndex, error) {
	setChildren := set.Children
	repChildren := rep.Children

	idxCtx := index.Context{
		PeriodStart:      ctx.periodStart,
		PeriodEnd:        ctx.periodEnd,
		IsDynamic:        ctx.isDynamic,
		IsLastPeriod:     ctx.isLastPeriod,
		BoundsCalculator: ctx.calc,
		RepresentationID: rep.Attributes.ID,
		BaseURLs:         baseURLStrings(baseURLs),
		Config:           ctx.config,
	}
	idxCtx.AvailabilityTimeOffset = firstFloat(rep.Attributes.AvailabilityTimeOffset, set.Attributes.AvailabilityTimeOffset)
	idxCtx.AvailabilityTimeComplete = firstBool(rep.Attributes.AvailabilityTimeComplete, set.Attributes.AvailabilityTimeComplete)
	if rep.Attributes.Bitrate != nil {
		idxCtx.RepresentationBitrate = *rep.Attributes.Bitrate
	}

	switch {
	case repChildren.SegmentBase != nil:
		base := mergeSegmentBase(setChildren.SegmentBase, repChildren.SegmentBase)
		return newBaseIndex(&base, idxCtx), nil
	case repChildren.SegmentList != nil:
		return newListIndex(mergeSegmentLists(setChildren.SegmentList, repChildren.SegmentList), idxCtx)
	case repChildren.SegmentTemplate != nil || setChildren.SegmentTemplate != nil || ctx.segmentTemplate != nil:
		tpl := mergeSegmentTemplates(ctx.segmentTemplate, setChildren.SegmentTemplate, repChildren.SegmentTemplate)
		return newTemplateIndex(tpl, idxCtx)
	case setChildren.SegmentBase != nil:
		base := mergeSegmentBase(setChildren.SegmentBase, nil)
		return newBaseIndex(&base, idxCtx), nil
	case setChildren.SegmentList != nil:
		return newListIndex(mergeSegmentLists(setChildren.SegmentList, nil), idxCtx)
	}

	// one segment spanning the whole period, addressed by the base URL
	return index.NewTemplateIndex(&ir.SegmentTemplate{
		SegmentBase: ir.SegmentBase{
			Duration:    float64Ptr(math.MaxUint32),
			Timescale:   float64Ptr(1),
			StartNumber: int64Ptr(0),
		},
	}, idxCtx)
}

func newBaseIndex(base *ir.SegmentBase, ctx index.Context) entity.RepresentationIndex {
	ctx.AvailabilityTimeOffset = firstFloat(base.AvailabilityTimeOffset, ctx.AvailabilityTimeOffset)
	ctx.AvailabilityTimeComplete = firstBool(base.AvailabilityTimeComplete, ctx.AvailabilityTimeComplete)
	return index.NewBaseIndex(base, ctx)
}

func newListIndex(list *ir.SegmentList, ctx index.Context) (entity.RepresentationIndex, error) {
	ctx.AvailabilityTimeOffset = firstFloat(list.AvailabilityTimeOffset, ctx.AvailabilityTimeOffset)
	ctx.AvailabilityTimeComplete = firstBool(list.AvailabilityTimeComplete, ctx.AvailabilityTimeComplete)
	return index.NewListIndex(list, ctx)
}

func newTemplateIndex(tpl *ir.SegmentTemplate, ctx index.Context) (entity.RepresentationIndex, error) {
	ctx.AvailabilityTimeOffset = firstFloat(tpl.AvailabilityTimeOffset, ctx.AvailabilityTimeOffset)
	ctx.AvailabilityTimeComplete = firstBool(tpl.AvailabilityTimeComplete, ctx.AvailabilityTimeComplete)
	if tpl.HasTimeline() {
		return index.NewTimelineIndex(tpl, ctx), nil
	}
	return index.NewTemplateIndex(tpl, ctx)
}

// mergeSegmentBase overlays the attributes declared by child over parent
func mergeSegmentBase(parent, child *ir.SegmentBase) ir.SegmentBase {
	var res ir.SegmentBase
	for _, b := range []*ir.SegmentBase{parent, child} {
		if b == nil {
			continue
		}
		res.Timescale = firstFloat(b.Timescale, res.Timescale)
		res.PresentationTimeOffset = firstFloat(b.PresentationTimeOffset, res.PresentationTimeOffset)
		if b.IndexRange != nil {
			res.IndexRange = b.IndexRange
			res.IndexRangeExact = b.IndexRangeExact
		}
		if b.Initialization != nil {
			res.Initialization = b.Initialization
		}
		res.AvailabilityTimeOffset = firstFloat(b.AvailabilityTimeOffset, res.AvailabilityTimeOffset)
		res.AvailabilityTimeComplete = firstBool(b.AvailabilityTimeComplete, res.AvailabilityTimeComplete)
		res.Duration = firstFloat(b.Duration, res.Duration)
		if b.StartNumber != nil {
			res.StartNumber = b.StartNumber
		}
		if b.EndNumber != nil {
			res.EndNumber = b.EndNumber
		}
	}
	return res
}

func mergeSegmentLists(parent, child *ir.SegmentList) *ir.SegmentList {
	res := &ir.SegmentList{}
	var parentBase, childBase *ir.SegmentBase
	if parent != nil {
		parentBase = &parent.SegmentBase
		res.List = parent.List
	}
	if child != nil {
		childBase = &child.SegmentBase
		if len(child.List) > 0 {
			res.List = child.List
		}
	}
	res.SegmentBase = mergeSegmentBase(parentBase, childBase)
	return res
}

// mergeSegmentTemplates overlays templates from the outermost to the innermost
func mergeSegmentTemplates(templates ...*ir.SegmentTemplate) *ir.SegmentTemplate {
	res := &ir.SegmentTemplate{}
	for _, t := range templates {
		if t == nil {
			continue
		}
		res.SegmentBase = mergeSegmentBase(&res.SegmentBase, &t.SegmentBase)
		if t.Media != "" {
			res.Media = t.Media
		}
		if t.Index != "" {
			res.Index = t.Index
		}
		if t.BitstreamSwitching != nil {
			res.BitstreamSwitching = t.BitstreamSwitching
		}
		if t.Timeline != nil {
			res.Timeline = t.Timeline
		}
	}
	return res
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func float64Ptr(v float64) *float64 {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
