package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentProtectionsAddKeyID(t *testing.T) {
	c := NewContentProtections()
	c.AddKeyID([]byte{0x01, 0x02}, "wv")
	c.AddKeyID([]byte{0x01, 0x02}, "wv")
	c.AddKeyID([]byte{0x01, 0x02}, "pr")
	c.AddKeyID([]byte{0x01, 0x03}, "wv")
	// nil and empty ids are the same key
	c.AddKeyID(nil, "wv")
	c.AddKeyID([]byte{}, "wv")

	require.Len(t, c.KeyIDs, 4)
	assert.Equal(t, KeyIDInfo{KeyID: []byte{0x01, 0x03}, SystemID: "wv"}, c.KeyIDs[2])
	assert.True(t, c.IsEncrypted())
}

func TestContentProtectionsAddInitData(t *testing.T) {
	c := NewContentProtections()
	c.AddInitData("cenc", "wv", []byte("pssh-a"))
	c.AddInitData("cenc", "wv", []byte("pssh-a"))
	c.AddInitData("cenc", "wv", []byte("pssh-b"))
	c.AddInitData("keyids", "wv", []byte("pssh-a"))

	require.Len(t, c.InitData, 2)
	assert.Equal(t, "cenc", c.InitData[0].Type)
	assert.Len(t, c.InitData[0].Values, 2)
	assert.Len(t, c.InitData[1].Values, 1)
}

func TestContentProtectionsIsEncrypted(t *testing.T) {
	var c *ContentProtections
	assert.False(t, c.IsEncrypted())
	assert.False(t, NewContentProtections().IsEncrypted())
}
