package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		relative string
		want     string
	}{
		{"empty base", "", "seg.mp4", "seg.mp4"},
		{"empty relative", "https://a.com/x/", "", "https://a.com/x/"},
		{"absolute relative", "https://a.com/x/", "https://b.com/y.mp4", "https://b.com/y.mp4"},
		{"sibling of a file", "https://a.com/x/manifest.mpd", "seg.mp4", "https://a.com/x/seg.mp4"},
		{"directory base", "https://a.com/x/", "v/seg.mp4", "https://a.com/x/v/seg.mp4"},
		{"root relative", "https://a.com/x/y/", "/seg.mp4", "https://a.com/seg.mp4"},
		{"parent", "https://a.com/x/y/", "../seg.mp4", "https://a.com/x/seg.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.base, tt.relative))
		})
	}
}

func TestDirectoryURL(t *testing.T) {
	assert.Equal(t, "https://a.com/x/", DirectoryURL("https://a.com/x/live.mpd?token=1"))
	assert.Equal(t, "https://a.com/", DirectoryURL("https://a.com"))
	assert.Equal(t, "", DirectoryURL("live.mpd"))
	assert.Equal(t, "dir/", DirectoryURL("dir/live.mpd"))
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("https://a.com/x"))
	assert.True(t, IsAbsoluteURL("file:///tmp/a.mpd"))
	assert.False(t, IsAbsoluteURL("a/b.mp4"))
	assert.False(t, IsAbsoluteURL("/a/b.mp4"))
}
