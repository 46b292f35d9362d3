package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:cenc="urn:mpeg:cenc:2013"
     xmlns:xlink="http://www.w3.org/1999/xlink" type="static">
  <BaseURL>https://cdn.example.com/</BaseURL>
  <Period id="p0" xlink:href="remote.xml" xlink:actuate="onLoad"/>
  <Period id="p1">
    <AdaptationSet mimeType="video/mp4">
      <ContentProtection schemeIdUri="urn:mpeg:dash:mp4protection:2011" cenc:default_KID="9eb4050d-e44b-4802-932e-27d75083e266"/>
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed">
        <cenc:pssh>AAAA</cenc:pssh>
      </ContentProtection>
    </AdaptationSet>
  </Period>
</MPD>`

func TestParseXML(t *testing.T) {
	root, err := ParseXML([]byte(sampleMPD))
	require.NoError(t, err)

	assert.Equal(t, "MPD", root.Name)
	assert.Equal(t, "static", root.AttrOr("type", ""))
	_, hasXmlns := root.Attr("xmlns")
	assert.False(t, hasXmlns)

	base := root.FirstChild("BaseURL")
	require.NotNil(t, base)
	assert.Equal(t, "https://cdn.example.com/", base.Text)

	periods := root.ChildrenNamed("Period")
	require.Len(t, periods, 2)
	href, ok := periods[0].Attr("xlink:href")
	assert.True(t, ok)
	assert.Equal(t, "remote.xml", href)

	cps := periods[1].Children[0].ChildrenNamed("ContentProtection")
	require.Len(t, cps, 2)
	kid, ok := cps[0].Attr("cenc:default_KID")
	assert.True(t, ok)
	assert.Equal(t, "9eb4050d-e44b-4802-932e-27d75083e266", kid)

	pssh := cps[1].FirstChild("cenc:pssh")
	require.NotNil(t, pssh)
	assert.Equal(t, "AAAA", pssh.Text)
	assert.Equal(t, "pssh", pssh.LocalName())
}

func TestParseXMLStopsAtFirstRoot(t *testing.T) {
	root, err := ParseXML([]byte(`<Period id="a"/><Period id="b"/>`))
	require.NoError(t, err)
	assert.Equal(t, "a", root.AttrOr("id", ""))
}

func TestParseXMLEmpty(t *testing.T) {
	_, err := ParseXML([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
