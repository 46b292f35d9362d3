package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/config"
	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
)

func testPeriodContext() *periodContext {
	return &periodContext{
		periodEnd:    float64Ptr(100),
		isLastPeriod: true,
		calc:         bounds.NewCalculator(bounds.Options{}),
		baseURLs:     []BaseURL{{URL: "https://cdn.example.com/"}},
		protections:  NewContentProtectionResolver(nil),
		config:       config.DefaultParserConfig(),
	}
}

func irRepresentation(id string, bandwidth int64) *ir.Representation {
	return &ir.Representation{Attributes: ir.RepresentationAttributes{ID: id, Bitrate: int64Ptr(bandwidth)}}
}

func irSet(id, mimeType string, reps ...*ir.Representation) *ir.AdaptationSet {
	return &ir.AdaptationSet{
		Attributes: ir.AdaptationSetAttributes{ID: id, MimeType: mimeType},
		Children:   ir.AdaptationSetChildren{Representations: reps},
	}
}

func roleScheme(value string) ir.Scheme {
	return ir.Scheme{SchemeIDURI: schemeRole, Value: value}
}

func adaptationIDs(list []*entity.Adaptation) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestInferAdaptationType(t *testing.T) {
	tests := []struct {
		name string
		set  *ir.AdaptationSet
		want entity.TrackType
	}{
		{"video mime", irSet("", "video/mp4"), entity.TrackTypeVideo},
		{"ttml", irSet("", "application/ttml+xml"), entity.TrackTypeText},
		{"mp4 subtitles", &ir.AdaptationSet{
			Attributes: ir.AdaptationSetAttributes{MimeType: "application/mp4"},
			Children:   ir.AdaptationSetChildren{Roles: []ir.Scheme{roleScheme("subtitle")}},
		}, entity.TrackTypeText},
		{"mp4 without role", irSet("", "application/mp4"), entity.TrackTypeUnknown},
		{"set codecs", &ir.AdaptationSet{Attributes: ir.AdaptationSetAttributes{Codecs: "mp4a.40.2"}}, entity.TrackTypeAudio},
		{"representation codecs", irSet("", "", &ir.Representation{Attributes: ir.RepresentationAttributes{Codecs: "stpp"}}), entity.TrackTypeText},
		{"representation mime", irSet("", "", &ir.Representation{Attributes: ir.RepresentationAttributes{MimeType: "video/webm"}}), entity.TrackTypeVideo},
		{"unknown", irSet("", "application/octet-stream"), entity.TrackTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferAdaptationType(tt.set))
		})
	}
}

func TestParseAdaptationSetsDropsUnknown(t *testing.T) {
	res, err := parseAdaptationSets([]*ir.AdaptationSet{
		irSet("bin", "application/octet-stream", irRepresentation("b1", 1000)),
		irSet("v", "video/mp4", irRepresentation("v1", 1000)),
	}, testPeriodContext())
	require.NoError(t, err)

	assert.Equal(t, []string{"v"}, adaptationIDs(res[entity.TrackTypeVideo]))
	assert.Empty(t, res[entity.TrackTypeAudio])
	assert.Empty(t, res[entity.TrackTypeText])
}

func TestParseAdaptationSetsDuplicateIDs(t *testing.T) {
	res, err := parseAdaptationSets([]*ir.AdaptationSet{
		irSet("a", "audio/mp4", irRepresentation("r", 1000)),
		irSet("a", "audio/mp4", irRepresentation("r", 2000), irRepresentation("r", 3000)),
	}, testPeriodContext())
	require.NoError(t, err)

	audio := res[entity.TrackTypeAudio]
	assert.Equal(t, []string{"a", "a-dup"}, adaptationIDs(audio))
	// representation ids are unique within an adaptation only
	assert.Equal(t, "r", audio[1].Representations[0].ID)
	assert.Equal(t, "r-dup", audio[1].Representations[1].ID)
}

func TestParseAdaptationSetsMergesMainVideo(t *testing.T) {
	first := irSet("v1", "video/mp4", irRepresentation("r1", 1000))
	first.Children.Roles = []ir.Scheme{roleScheme("main")}
	second := irSet("v2", "video/mp4", irRepresentation("r1", 2000), irRepresentation("r2", 3000))
	second.Children.Roles = []ir.Scheme{roleScheme("main")}

	res, err := parseAdaptationSets([]*ir.AdaptationSet{first, second}, testPeriodContext())
	require.NoError(t, err)

	video := res[entity.TrackTypeVideo]
	require.Len(t, video, 1)
	assert.Equal(t, "v1", video[0].ID)
	ids := make([]string, 0)
	for _, r := range video[0].Representations {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r1", "r1-dup", "r2"}, ids)
}

func switchingProperty(ids string) ir.Scheme {
	return ir.Scheme{SchemeIDURI: schemeSetSwitching, Value: ids}
}

func TestParseAdaptationSetsSwitching(t *testing.T) {
	first := irSet("1", "audio/mp4", irRepresentation("a1", 64000))
	first.Attributes.Language = "en"
	first.Children.SupplementalProperties = []ir.Scheme{switchingProperty("2")}
	second := irSet("2", "audio/mp4", irRepresentation("a2", 128000))
	second.Attributes.Language = "en"
	second.Children.SupplementalProperties = []ir.Scheme{switchingProperty("1, 3")}
	// different language, not merged
	third := irSet("3", "audio/mp4", irRepresentation("a3", 128000))
	third.Attributes.Language = "fr"
	third.Children.SupplementalProperties = []ir.Scheme{switchingProperty("1")}

	res, err := parseAdaptationSets([]*ir.AdaptationSet{first, second, third}, testPeriodContext())
	require.NoError(t, err)

	audio := res[entity.TrackTypeAudio]
	assert.Equal(t, []string{"1", "3"}, adaptationIDs(audio))
	assert.Len(t, audio[0].Representations, 2)
	assert.Len(t, audio[1].Representations, 1)
}

func TestParseAdaptationSetsSwitchingNeedsMutualReference(t *testing.T) {
	first := irSet("1", "audio/mp4", irRepresentation("a1", 64000))
	second := irSet("2", "audio/mp4", irRepresentation("a2", 128000))
	second.Children.SupplementalProperties = []ir.Scheme{switchingProperty("1")}

	res, err := parseAdaptationSets([]*ir.AdaptationSet{first, second}, testPeriodContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, adaptationIDs(res[entity.TrackTypeAudio]))
}

func TestParseAdaptationSetsTrickMode(t *testing.T) {
	trick := irSet("t", "video/mp4", irRepresentation("tr", 100000))
	trick.Children.EssentialProperties = []ir.Scheme{{SchemeIDURI: schemeTrickMode, Value: "v"}}

	res, err := parseAdaptationSets([]*ir.AdaptationSet{
		trick,
		irSet("v", "video/mp4", irRepresentation("vr", 1000000)),
	}, testPeriodContext())
	require.NoError(t, err)

	video := res[entity.TrackTypeVideo]
	require.Len(t, video, 1)
	assert.Equal(t, "v", video[0].ID)
	require.Len(t, video[0].TrickModeTracks, 1)
	assert.Equal(t, "t", video[0].TrickModeTracks[0].ID)
	assert.True(t, video[0].TrickModeTracks[0].IsTrickModeTrack)
}

func TestParseAdaptationSetsOrdering(t *testing.T) {
	low := irSet("low", "audio/mp4", irRepresentation("a1", 1000))
	plain := irSet("plain", "audio/mp4", irRepresentation("a2", 1000))
	main := irSet("main", "audio/mp4", irRepresentation("a3", 1000))
	main.Children.Roles = []ir.Scheme{roleScheme("main")}
	high := irSet("high", "audio/mp4", irRepresentation("a4", 1000))
	high.Attributes.SelectionPriority = int64Ptr(5)
	low.Attributes.SelectionPriority = int64Ptr(0)

	res, err := parseAdaptationSets([]*ir.AdaptationSet{low, plain, main, high}, testPeriodContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "main", "plain", "low"}, adaptationIDs(res[entity.TrackTypeAudio]))
}

func TestParseAdaptationSetsAccessibility(t *testing.T) {
	captions := irSet("", "text/vtt", irRepresentation("t1", 1000))
	captions.Attributes.Language = "en"
	captions.Children.Roles = []ir.Scheme{roleScheme("caption")}

	described := irSet("", "audio/mp4", irRepresentation("a1", 1000))
	described.Attributes.Language = "fr"
	described.Children.Accessibilities = []ir.Scheme{{SchemeIDURI: schemeAudioPurpose, Value: "1"}}

	dub := irSet("", "audio/mp4", irRepresentation("a2", 1000))
	dub.Children.Roles = []ir.Scheme{roleScheme("dub")}

	res, err := parseAdaptationSets([]*ir.AdaptationSet{captions, described, dub}, testPeriodContext())
	require.NoError(t, err)

	text := res[entity.TrackTypeText]
	require.Len(t, text, 1)
	assert.Equal(t, "text-en-cc-text/vtt", text[0].ID)
	require.NotNil(t, text[0].ClosedCaption)
	assert.True(t, *text[0].ClosedCaption)
	assert.Equal(t, "eng", text[0].NormalizedLanguage)

	audio := res[entity.TrackTypeAudio]
	require.Len(t, audio, 2)
	assert.Equal(t, "audio-fr-ad-audio/mp4", audio[0].ID)
	require.NotNil(t, audio[0].AudioDescription)
	assert.True(t, *audio[0].AudioDescription)
	assert.Equal(t, "fra", audio[0].NormalizedLanguage)
	assert.True(t, audio[1].IsDub)
	assert.False(t, *audio[1].AudioDescription)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "fra", normalizeLanguage("fr"))
	assert.Equal(t, "eng", normalizeLanguage("en-US"))
	assert.Equal(t, "", normalizeLanguage(""))
}

func TestParseRepresentations(t *testing.T) {
	set := irSet("v", "video/mp4",
		&ir.Representation{Attributes: ir.RepresentationAttributes{Codecs: "mp4a.40.02", Width: int64Ptr(640), Height: int64Ptr(360), Bitrate: int64Ptr(800000)}},
		&ir.Representation{Attributes: ir.RepresentationAttributes{ID: "nobitrate"}},
	)
	set.Attributes.FrameRate = float64Ptr(25)
	set.Children.Representations[0].Children.BaseURLs = []ir.BaseURL{{Value: "v1/", ServiceLocation: "edge"}}

	reps, err := parseRepresentations(set, []BaseURL{{URL: "https://cdn.example.com/"}}, nil, testPeriodContext())
	require.NoError(t, err)
	require.Len(t, reps, 2)

	assert.Equal(t, "800000-360-640-mp4a.40.02", reps[0].ID)
	assert.Equal(t, "mp4a.40.2", reps[0].Codecs)
	assert.Equal(t, "video/mp4", reps[0].MimeType)
	assert.Equal(t, 640, reps[0].Width)
	require.NotNil(t, reps[0].FrameRate)
	assert.Equal(t, 25.0, *reps[0].FrameRate)
	assert.Equal(t, []entity.CdnMetadata{{BaseURL: "https://cdn.example.com/v1/", ID: "edge"}}, reps[0].CdnMetadata)
	assert.NotNil(t, reps[0].Index)

	assert.Equal(t, "nobitrate", reps[1].ID)
	assert.Equal(t, int64(0), reps[1].Bitrate)
}
