package parser

import (
	"fmt"
	"strings"
	"time"

	"mpdcore/internal/config"
	"mpdcore/internal/entity"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/tree"
	"mpdcore/internal/util"
)

const (
	schemeUTCDirect  = "urn:mpeg:dash:utc:direct:2014"
	schemeUTCHTTPISO = "urn:mpeg:dash:utc:http-iso:2014"
	schemeUTCXSDate  = "urn:mpeg:dash:utc:http-xsdate:2014"
	xlinkResolveZero = "urn:mpeg:dash:resolve-to-zero:2013"
	xlinkOnLoad      = "onLoad"
)

// ResourceType 外部资源类型
type ResourceType int

const (
	// ResourceXLink is a remote Period fragment
	ResourceXLink ResourceType = iota
	// ResourceClock is a UTCTiming time source
	ResourceClock
)

func (t ResourceType) String() string {
	switch t {
	case ResourceXLink:
		return "xlink"
	case ResourceClock:
		return "clock"
	default:
		return "unknown"
	}
}

// ResourceRequest asks the caller to fetch URL
type ResourceRequest struct {
	Type ResourceType
	URL  string
}

// ResourceResponse is the outcome of one ResourceRequest. Err is set when
// the fetch failed.
type ResourceResponse struct {
	Data []byte
	// URL is the final URL, after redirections
	URL string
	Err error
}

// ParseResult is either a parsed manifest or a list of resources needed to
// go on. In the latter case Continue has to be called with one response per
// request, in the same order.
type ParseResult struct {
	Manifest *entity.Manifest
	Warnings []error
	Requests []ResourceRequest

	next func([]ResourceResponse) (*ParseResult, error)
}

// Done reports whether the manifest is available
func (r *ParseResult) Done() bool {
	return r.Manifest != nil
}

// Continue resumes the parse with the fetched resources
func (r *ParseResult) Continue(responses []ResourceResponse) (*ParseResult, error) {
	if r.next == nil {
		return r, nil
	}
	if len(responses) != len(r.Requests) {
		return nil, ErrWrongResourceCount
	}
	return r.next(responses)
}

// Options DASH解析选项
type Options struct {
	// ManifestURL is where the MPD was loaded from, used to resolve
	// relative URLs. May be empty.
	ManifestURL string
	// ReferenceDateTime in seconds since the unix epoch, used as the
	// availabilityStartTime of a dynamic MPD that declares none
	ReferenceDateTime *float64
	// ExternalClockOffset is server time minus monotonic time, in
	// milliseconds, when the caller already knows it
	ExternalClockOffset *float64
	// Tokenizer turns fetched xlink bodies into trees, XMLTokenizer by default
	Tokenizer tree.Tokenizer
	Clock     bounds.Clock
	// Now is the system clock
	Now     func() time.Time
	Config  config.ParserConfig
	Metrics *metrics.Metrics
}

// DASHParser DASH解析器
type DASHParser struct {
	opts Options
}

// NewDASHParser 创建DASH解析器
func NewDASHParser(opts Options) *DASHParser {
	if opts.Tokenizer == nil {
		opts.Tokenizer = tree.XMLTokenizer{}
	}
	if opts.Clock == nil {
		opts.Clock = bounds.DefaultClock
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Config == (config.ParserConfig{}) {
		opts.Config = config.DefaultParserConfig()
	}
	return &DASHParser{opts: opts}
}

// parseState is one parse in progress, shared by its continuations
type parseState struct {
	mpd            *ir.MPD
	warnings       []error
	clockOffset    *float64
	hasLoadedClock bool
}

// Parse 解析MPD属性树
func (p *DASHParser) Parse(root *tree.Node) (*ParseResult, error) {
	if root == nil || root.LocalName() != "MPD" {
		p.opts.Metrics.IncParses("error")
		return nil, ErrInvalidRoot
	}
	mpd, warnings := ir.BuildMPD(root)
	for _, w := range warnings {
		util.Logger.Warn("DASH: %s", w.Error())
	}
	state := &parseState{
		mpd:         mpd,
		warnings:    warnings,
		clockOffset: p.opts.ExternalClockOffset,
	}
	return p.step(state)
}

// step goes as far as possible, asking for the clock first and for the
// xlinks second
func (p *DASHParser) step(state *parseState) (*ParseResult, error) {
	attrs := state.mpd.Attributes
	children := state.mpd.Children

	if state.clockOffset == nil && !state.hasLoadedClock {
		if offset, ok := p.directClockOffset(children.UTCTimings); ok {
			state.clockOffset = &offset
		} else if attrs.Type == "dynamic" {
			if clockURL := httpClockURL(children.UTCTimings); clockURL != "" {
				return p.needResources(state, []ResourceRequest{{Type: ResourceClock, URL: clockURL}}, func(responses []ResourceResponse) (*ParseResult, error) {
					state.hasLoadedClock = true
					resp := responses[0]
					if resp.Err != nil {
						util.Logger.Warn("DASH: error on fetching the clock resource: %s", resp.Err.Error())
						state.warnings = append(state.warnings, resp.Err)
						return p.step(state)
					}
					offset, err := p.clockOffsetFrom(string(resp.Data))
					if err != nil {
						util.Logger.Warn("DASH: invalid clock resource: %s", err.Error())
						state.warnings = append(state.warnings, err)
						return p.step(state)
					}
					state.clockOffset = &offset
					return p.step(state)
				}), nil
			}
		}
	}

	removeResolvedToZero(state.mpd)
	xlinks := make([]int, 0)
	requests := make([]ResourceRequest, 0)
	for i, period := range state.mpd.Children.Periods {
		if period.Attributes.XLinkHref != "" && period.Attributes.XLinkActuate == xlinkOnLoad {
			xlinks = append(xlinks, i)
			requests = append(requests, ResourceRequest{Type: ResourceXLink, URL: util.ResolveURL(p.opts.ManifestURL, period.Attributes.XLinkHref)})
		}
	}
	if len(xlinks) == 0 {
		return p.complete(state)
	}

	return p.needResources(state, requests, func(responses []ResourceResponse) (*ParseResult, error) {
		periods := state.mpd.Children.Periods
		// from the last one so earlier indexes stay valid while splicing
		for i := len(responses) - 1; i >= 0; i-- {
			resp := responses[i]
			if resp.Err != nil {
				p.opts.Metrics.IncParses("error")
				return nil, fmt.Errorf("获取xlink失败 %s: %w", requests[i].URL, resp.Err)
			}
			fetched, err := p.xlinkPeriods(resp.Data)
			if err != nil {
				p.opts.Metrics.IncParses("error")
				return nil, err
			}
			at := xlinks[i]
			spliced := make([]*ir.Period, 0, len(periods)-1+len(fetched))
			spliced = append(spliced, periods[:at]...)
			spliced = append(spliced, fetched...)
			spliced = append(spliced, periods[at+1:]...)
			periods = spliced
		}
		state.mpd.Children.Periods = periods
		return p.step(state)
	}), nil
}

func (p *DASHParser) needResources(state *parseState, requests []ResourceRequest, next func([]ResourceResponse) (*ParseResult, error)) *ParseResult {
	p.opts.Metrics.IncParses("needs_resources")
	for _, r := range requests {
		p.opts.Metrics.IncResourceRequests(r.Type.String())
		util.Logger.Debug("DASH: needs %s resource %s", r.Type, r.URL)
	}
	return &ParseResult{
		Warnings: state.warnings,
		Requests: requests,
		next:     next,
	}
}

// xlinkPeriods tokenizes a fetched fragment, which may hold several
// sibling Periods
func (p *DASHParser) xlinkPeriods(data []byte) ([]*ir.Period, error) {
	wrapped := make([]byte, 0, len(data)+13)
	wrapped = append(wrapped, "<root>"...)
	wrapped = append(wrapped, stripXMLDeclaration(data)...)
	wrapped = append(wrapped, "</root>"...)
	node, err := p.opts.Tokenizer.Tokenize(wrapped)
	if err != nil {
		return nil, fmt.Errorf("invalid external resource: %w", err)
	}
	periods, warnings := ir.BuildPeriods(node)
	for _, w := range warnings {
		util.Logger.Warn("DASH: %s", w.Error())
	}
	return periods, nil
}

func (p *DASHParser) complete(state *parseState) (*ParseResult, error) {
	attrs := state.mpd.Attributes
	children := state.mpd.Children
	isDynamic := attrs.Type == "dynamic"

	var initialBaseURLs []BaseURL
	if p.opts.ManifestURL != "" {
		initialBaseURLs = []BaseURL{{URL: util.DirectoryURL(p.opts.ManifestURL)}}
	}
	availabilityStartTime := p.availabilityStartTime(attrs)

	calc := bounds.NewCalculator(bounds.Options{
		IsDynamic:             isDynamic,
		TimeShiftBufferDepth:  attrs.TimeShiftBufferDepth,
		AvailabilityStartTime: availabilityStartTime,
		ServerTimestampOffset: state.clockOffset,
		Clock:                 p.opts.Clock,
	})
	protections := NewContentProtectionResolver(p.opts.Metrics)
	info := &manifestInfo{
		isDynamic:             isDynamic,
		availabilityStartTime: availabilityStartTime,
		duration:              attrs.Duration,
		clockOffset:           state.clockOffset,
		baseURLs:              ResolveBaseURLs(initialBaseURLs, children.BaseURLs),
		calc:                  calc,
		clock:                 p.opts.Clock,
		now:                   p.opts.Now,
		protections:           protections,
		config:                p.opts.Config,
		metrics:               p.opts.Metrics,
	}

	periods, err := parsePeriods(children.Periods, info)
	if err != nil {
		p.opts.Metrics.IncParses("error")
		return nil, err
	}
	protections.Finalize()

	manifest := &entity.Manifest{
		IsDynamic:                  isDynamic,
		IsLive:                     isDynamic,
		AvailabilityStartTime:      availabilityStartTime,
		PublishTime:                attrs.PublishTime,
		SuggestedPresentationDelay: attrs.SuggestedPresentationDelay,
		ClockOffset:                state.clockOffset,
		Periods:                    periods,
		TimeBounds:                 p.timeBounds(attrs, periods, calc, availabilityStartTime, state.clockOffset),
		URIs:                       manifestURIs(p.opts.ManifestURL, children.Locations),
	}
	if mup := attrs.MinimumUpdatePeriod; mup != nil && *mup >= 0 {
		lifetime := *mup
		if lifetime == 0 {
			lifetime = p.opts.Config.FallbackLifetimeWhenMinimumUpdatePeriodIsZero
		}
		manifest.Lifetime = &lifetime
	}
	// a dynamic MPD may still get new periods unless it is bounded and
	// will not be updated
	manifest.IsLastPeriodKnown = !isDynamic || (attrs.MinimumUpdatePeriod == nil &&
		((len(periods) > 0 && periods[len(periods)-1].End != nil) || attrs.Duration != nil))

	p.opts.Metrics.IncParses("done")
	p.opts.Metrics.AddWarnings(len(state.warnings))
	util.Logger.Debug("DASH: %d periods parsed, %d warnings", len(periods), len(state.warnings))
	return &ParseResult{Manifest: manifest, Warnings: state.warnings}, nil
}

func (p *DASHParser) timeBounds(attrs ir.MPDAttributes, periods []*entity.Period, calc *bounds.Calculator, availabilityStartTime float64, clockOffset *float64) entity.TimeBounds {
	now := p.opts.Clock.NowMs()
	var tb entity.TimeBounds
	if start, ok := contentStart(periods); ok {
		tb.MinimumSafePosition = &start
	}
	end, endKnown := contentEnd(periods)

	if !calc.IsDynamic() {
		maximum := 0.0
		switch {
		case endKnown:
			maximum = end
		case attrs.Duration != nil:
			maximum = *attrs.Duration
		}
		tb.MaximumTimeData = entity.MaximumTimeData{IsLinear: false, MaximumSafePosition: maximum, Time: now}
		return tb
	}

	maximum := end
	if !endKnown {
		if clockOffset == nil {
			util.Logger.Warn("DASH: use system clock to define maximum position")
			maximum = float64(p.opts.Now().UnixMilli())/1000 - availabilityStartTime
		} else {
			maximum = (now+*clockOffset)/1000 - availabilityStartTime
		}
	}
	livePosition := maximum
	if liveEdge, ok := calc.EstimatedLiveEdge(); ok {
		livePosition = liveEdge
	}
	tb.MaximumTimeData = entity.MaximumTimeData{
		IsLinear:            true,
		MaximumSafePosition: maximum,
		LivePosition:        &livePosition,
		Time:                now,
	}

	if depth := attrs.TimeShiftBufferDepth; depth != nil {
		timeshiftDepth := *depth
		// segments older than the announced depth may still be there
		if tb.MinimumSafePosition != nil && maximum-*tb.MinimumSafePosition > timeshiftDepth {
			timeshiftDepth = maximum - *tb.MinimumSafePosition
		}
		tb.TimeshiftDepth = &timeshiftDepth
	}
	return tb
}

func (p *DASHParser) availabilityStartTime(attrs ir.MPDAttributes) float64 {
	if attrs.Type != "dynamic" {
		return 0
	}
	if attrs.AvailabilityStartTime != nil {
		return *attrs.AvailabilityStartTime
	}
	if p.opts.ReferenceDateTime != nil {
		return *p.opts.ReferenceDateTime
	}
	return float64(p.opts.Now().UnixMilli()) / 1000
}

func (p *DASHParser) directClockOffset(timings []ir.Scheme) (float64, bool) {
	for _, t := range timings {
		if t.SchemeIDURI != schemeUTCDirect || t.Value == "" {
			continue
		}
		offset, err := p.clockOffsetFrom(t.Value)
		if err != nil {
			util.Logger.Warn("DASH: invalid direct UTCTiming %q", t.Value)
			continue
		}
		return offset, true
	}
	return 0, false
}

// clockOffsetFrom turns a server date into server time minus monotonic time
func (p *DASHParser) clockOffsetFrom(serverDate string) (float64, error) {
	seconds, err := ir.ParseDateTime(strings.TrimSpace(serverDate))
	if err != nil {
		return 0, err
	}
	return seconds*1000 - p.opts.Clock.NowMs(), nil
}

func httpClockURL(timings []ir.Scheme) string {
	for _, t := range timings {
		if (t.SchemeIDURI == schemeUTCHTTPISO || t.SchemeIDURI == schemeUTCXSDate) && t.Value != "" {
			return t.Value
		}
	}
	return ""
}

// removeResolvedToZero drops the periods whose xlink resolves to nothing
func removeResolvedToZero(mpd *ir.MPD) {
	kept := mpd.Children.Periods[:0]
	for _, period := range mpd.Children.Periods {
		if period.Attributes.XLinkHref == xlinkResolveZero {
			continue
		}
		kept = append(kept, period)
	}
	mpd.Children.Periods = kept
}

func manifestURIs(manifestURL string, locations []string) []string {
	uris := make([]string, 0, len(locations)+1)
	if manifestURL != "" {
		uris = append(uris, manifestURL)
	}
	for _, l := range locations {
		if l = strings.TrimSpace(l); l != "" {
			uris = append(uris, util.ResolveURL(manifestURL, l))
		}
	}
	return uris
}

func stripXMLDeclaration(data []byte) []byte {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "<?xml") {
		if i := strings.Index(s, "?>"); i >= 0 {
			s = strings.TrimSpace(s[i+2:])
		}
	}
	return []byte(s)
}
