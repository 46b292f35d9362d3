package ir

import (
	"strings"

	"mpdcore/internal/tree"
)

// BuildMPD converts the MPD root node. Attribute failures are returned as
// warnings; the node name is not checked here.
func BuildMPD(root *tree.Node) (*MPD, []error) {
	warnings := make([]error, 0)
	r := newAttrReader(root, &warnings)

	mpd := &MPD{
		Attributes: MPDAttributes{
			ID:                         r.str("id"),
			Profiles:                   r.str("profiles"),
			Type:                       root.AttrOr("type", "static"),
			AvailabilityStartTime:      r.date("availabilityStartTime"),
			AvailabilityEndTime:        r.date("availabilityEndTime"),
			PublishTime:                r.date("publishTime"),
			Duration:                   r.duration("mediaPresentationDuration"),
			MinimumUpdatePeriod:        r.duration("minimumUpdatePeriod"),
			MinBufferTime:              r.duration("minBufferTime"),
			TimeShiftBufferDepth:       r.duration("timeShiftBufferDepth"),
			SuggestedPresentationDelay: r.duration("suggestedPresentationDelay"),
			MaxSegmentDuration:         r.duration("maxSegmentDuration"),
			MaxSubsegmentDuration:      r.duration("maxSubsegmentDuration"),
		},
	}

	for _, child := range root.Children {
		switch child.Name {
		case "BaseURL":
			mpd.Children.BaseURLs = append(mpd.Children.BaseURLs, buildBaseURL(child))
		case "Location":
			mpd.Children.Locations = append(mpd.Children.Locations, child.Text)
		case "UTCTiming":
			mpd.Children.UTCTimings = append(mpd.Children.UTCTimings, buildScheme(child))
		case "Period":
			mpd.Children.Periods = append(mpd.Children.Periods, buildPeriod(child, &warnings))
		}
	}
	return mpd, warnings
}

// BuildPeriods converts every Period child of node, used for fetched xlink
// fragments.
func BuildPeriods(node *tree.Node) ([]*Period, []error) {
	warnings := make([]error, 0)
	if node.Name == "Period" {
		return []*Period{buildPeriod(node, &warnings)}, warnings
	}
	periods := make([]*Period, 0)
	for _, child := range node.ChildrenNamed("Period") {
		periods = append(periods, buildPeriod(child, &warnings))
	}
	return periods, warnings
}

func buildPeriod(node *tree.Node, warnings *[]error) *Period {
	r := newAttrReader(node, warnings)
	period := &Period{
		Attributes: PeriodAttributes{
			ID:                 r.str("id"),
			Start:              r.duration("start"),
			Duration:           r.duration("duration"),
			BitstreamSwitching: r.boolean("bitstreamSwitching"),
			XLinkHref:          r.str("xlink:href"),
			XLinkActuate:       r.str("xlink:actuate"),
		},
	}
	for _, child := range node.Children {
		switch child.Name {
		case "BaseURL":
			period.Children.BaseURLs = append(period.Children.BaseURLs, buildBaseURL(child))
		case "AdaptationSet":
			period.Children.AdaptationSets = append(period.Children.AdaptationSets, buildAdaptationSet(child, warnings))
		case "EventStream":
			period.Children.EventStreams = append(period.Children.EventStreams, buildEventStream(child, warnings))
		case "SegmentTemplate":
			period.Children.SegmentTemplate = buildSegmentTemplate(child, warnings)
		}
	}
	return period
}

func buildAdaptationSet(node *tree.Node, warnings *[]error) *AdaptationSet {
	r := newAttrReader(node, warnings)
	as := &AdaptationSet{
		Attributes: AdaptationSetAttributes{
			ID:                       r.str("id"),
			Group:                    r.int("group"),
			Language:                 r.str("lang"),
			ContentType:              r.str("contentType"),
			MimeType:                 r.str("mimeType"),
			Codecs:                   r.str("codecs"),
			Profiles:                 r.str("profiles"),
			FrameRate:                r.frameRate("frameRate"),
			Width:                    r.int("width"),
			Height:                   r.int("height"),
			MaxWidth:                 r.int("maxWidth"),
			MaxHeight:                r.int("maxHeight"),
			MinBitrate:               r.int("minBandwidth"),
			MaxBitrate:               r.int("maxBandwidth"),
			SelectionPriority:        r.int("selectionPriority"),
			SegmentAlignment:         r.boolean("segmentAlignment"),
			SubsegmentAlignment:      r.boolean("subsegmentAlignment"),
			BitstreamSwitching:       r.boolean("bitstreamSwitching"),
			AvailabilityTimeOffset:   r.float("availabilityTimeOffset"),
			AvailabilityTimeComplete: r.boolean("availabilityTimeComplete"),
		},
	}

	c := &as.Children
	for _, child := range node.Children {
		switch child.Name {
		case "Accessibility":
			c.Accessibilities = append(c.Accessibilities, buildScheme(child))
		case "BaseURL":
			c.BaseURLs = append(c.BaseURLs, buildBaseURL(child))
		case "ContentComponent":
			s := Scheme{ID: child.AttrOr("id", ""), Value: child.AttrOr("contentType", "")}
			c.ContentComponent = &s
		case "ContentProtection":
			c.ContentProtections = append(c.ContentProtections, buildContentProtection(child, warnings))
		case "EssentialProperty":
			c.EssentialProperties = append(c.EssentialProperties, buildScheme(child))
		case "InbandEventStream":
			c.InbandEventStreams = append(c.InbandEventStreams, buildScheme(child))
		case "Label":
			c.Label = child.Text
		case "Representation":
			c.Representations = append(c.Representations, buildRepresentation(child, warnings))
		case "Role":
			c.Roles = append(c.Roles, buildScheme(child))
		case "SupplementalProperty":
			c.SupplementalProperties = append(c.SupplementalProperties, buildScheme(child))
		case "SegmentBase":
			c.SegmentBase = buildSegmentBase(child, warnings)
		case "SegmentList":
			c.SegmentList = buildSegmentList(child, warnings)
		case "SegmentTemplate":
			c.SegmentTemplate = buildSegmentTemplate(child, warnings)
		}
	}
	return as
}

func buildRepresentation(node *tree.Node, warnings *[]error) *Representation {
	r := newAttrReader(node, warnings)
	rep := &Representation{
		Attributes: RepresentationAttributes{
			ID:                       r.str("id"),
			Bitrate:                  r.int("bandwidth"),
			Codecs:                   r.str("codecs"),
			MimeType:                 r.str("mimeType"),
			FrameRate:                r.frameRate("frameRate"),
			Width:                    r.int("width"),
			Height:                   r.int("height"),
			AudioSamplingRate:        r.str("audioSamplingRate"),
			QualityRanking:           r.int("qualityRanking"),
			AvailabilityTimeOffset:   r.float("availabilityTimeOffset"),
			AvailabilityTimeComplete: r.boolean("availabilityTimeComplete"),
		},
	}

	c := &rep.Children
	for _, child := range node.Children {
		switch child.Name {
		case "BaseURL":
			c.BaseURLs = append(c.BaseURLs, buildBaseURL(child))
		case "ContentProtection":
			c.ContentProtections = append(c.ContentProtections, buildContentProtection(child, warnings))
		case "InbandEventStream":
			c.InbandEventStreams = append(c.InbandEventStreams, buildScheme(child))
		case "EssentialProperty":
			c.EssentialProperties = append(c.EssentialProperties, buildScheme(child))
		case "SupplementalProperty":
			c.SupplementalProperties = append(c.SupplementalProperties, buildScheme(child))
		case "SegmentBase":
			c.SegmentBase = buildSegmentBase(child, warnings)
		case "SegmentList":
			c.SegmentList = buildSegmentList(child, warnings)
		case "SegmentTemplate":
			c.SegmentTemplate = buildSegmentTemplate(child, warnings)
		}
	}
	return rep
}

func buildContentProtection(node *tree.Node, warnings *[]error) *ContentProtection {
	r := newAttrReader(node, warnings)
	cp := &ContentProtection{
		Attributes: ContentProtectionAttributes{
			SchemeIDURI: r.str("schemeIdUri"),
			Value:       r.str("value"),
			Ref:         r.str("ref"),
			RefID:       r.str("refId"),
		},
	}
	if kid := readWith(r, "cenc:default_KID", ParseKeyID); kid != nil {
		cp.Attributes.KeyID = *kid
	}
	for _, child := range node.ChildrenNamed("cenc:pssh") {
		data, err := ParseBase64(child.Text)
		if err != nil {
			*warnings = append(*warnings, &AttributeError{Element: child.Name, Attribute: "#text", Value: child.Text, Err: err})
			continue
		}
		cp.Pssh = append(cp.Pssh, data)
	}
	return cp
}

func buildSegmentBaseAttributes(node *tree.Node, r attrReader) SegmentBase {
	base := SegmentBase{
		Timescale:                r.float("timescale"),
		PresentationTimeOffset:   r.float("presentationTimeOffset"),
		IndexRange:               r.byteRange("indexRange"),
		AvailabilityTimeOffset:   r.float("availabilityTimeOffset"),
		AvailabilityTimeComplete: r.boolean("availabilityTimeComplete"),
		Duration:                 r.float("duration"),
		StartNumber:              r.int("startNumber"),
		EndNumber:                r.int("endNumber"),
	}
	if exact := r.boolean("indexRangeExact"); exact != nil {
		base.IndexRangeExact = *exact
	}
	if init := node.FirstChild("Initialization"); init != nil {
		initReader := newAttrReader(init, r.warnings)
		base.Initialization = &Initialization{
			Media: initReader.str("sourceURL"),
			Range: initReader.byteRange("range"),
		}
	}
	return base
}

func buildSegmentBase(node *tree.Node, warnings *[]error) *SegmentBase {
	base := buildSegmentBaseAttributes(node, newAttrReader(node, warnings))
	return &base
}

func buildSegmentList(node *tree.Node, warnings *[]error) *SegmentList {
	r := newAttrReader(node, warnings)
	list := &SegmentList{SegmentBase: buildSegmentBaseAttributes(node, r)}
	for _, child := range node.ChildrenNamed("SegmentURL") {
		ur := newAttrReader(child, warnings)
		list.List = append(list.List, SegmentURL{
			Media:      ur.str("media"),
			MediaRange: ur.byteRange("mediaRange"),
			Index:      ur.str("index"),
			IndexRange: ur.byteRange("indexRange"),
		})
	}
	return list
}

func buildSegmentTemplate(node *tree.Node, warnings *[]error) *SegmentTemplate {
	r := newAttrReader(node, warnings)
	tpl := &SegmentTemplate{
		SegmentBase:        buildSegmentBaseAttributes(node, r),
		Media:              r.str("media"),
		Index:              r.str("index"),
		BitstreamSwitching: r.boolean("bitstreamSwitching"),
	}
	if init, ok := node.Attr("initialization"); ok {
		tpl.Initialization = &Initialization{Media: init}
	}
	if timeline := node.FirstChild("SegmentTimeline"); timeline != nil {
		tpl.Timeline = make([]TimelineElement, 0, len(timeline.Children))
		for _, s := range timeline.ChildrenNamed("S") {
			sr := newAttrReader(s, warnings)
			elt := TimelineElement{Start: sr.float("t"), Duration: sr.float("d")}
			if repeat := sr.float("r"); repeat != nil {
				elt.RepeatCount = *repeat
			}
			tpl.Timeline = append(tpl.Timeline, elt)
		}
	}
	return tpl
}

func buildEventStream(node *tree.Node, warnings *[]error) EventStream {
	r := newAttrReader(node, warnings)
	es := EventStream{
		SchemeIDURI: r.str("schemeIdUri"),
		Value:       r.str("value"),
		Timescale:   1,
	}
	if ts := r.float("timescale"); ts != nil && *ts > 0 {
		es.Timescale = *ts
	}
	for _, child := range node.ChildrenNamed("Event") {
		er := newAttrReader(child, warnings)
		event := Event{
			ID:               er.str("id"),
			PresentationTime: er.float("presentationTime"),
			Duration:         er.float("duration"),
			MessageData:      er.str("messageData"),
			Element:          child,
		}
		if event.MessageData == "" {
			event.MessageData = child.Text
		}
		es.Events = append(es.Events, event)
	}
	return es
}

func buildScheme(node *tree.Node) Scheme {
	return Scheme{
		SchemeIDURI: node.AttrOr("schemeIdUri", ""),
		Value:       node.AttrOr("value", ""),
		ID:          node.AttrOr("id", ""),
	}
}

func buildBaseURL(node *tree.Node) BaseURL {
	return BaseURL{
		Value:           strings.TrimSpace(node.Text),
		ServiceLocation: node.AttrOr("serviceLocation", ""),
	}
}
