package index

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/ir"
)

func segmentList() *ir.SegmentList {
	return &ir.SegmentList{
		SegmentBase: ir.SegmentBase{
			Duration:       f64(10),
			Initialization: &ir.Initialization{Media: "init.mp4"},
		},
		List: []ir.SegmentURL{
			{Media: "a.mp4", MediaRange: &entity.ByteRange{Start: 0, End: 99}},
			{Media: "b.mp4"},
			{Media: "c.mp4"},
		},
	}
}

func TestListSegments(t *testing.T) {
	idx, err := NewListIndex(segmentList(), staticContext(100, nil))
	require.NoError(t, err)

	segments := idx.Segments(105, 10)
	require.Len(t, segments, 2)
	assert.Equal(t, 100.0, segments[0].Time)
	assert.Equal(t, 110.0, segments[1].Time)
	assert.Equal(t, &entity.ByteRange{Start: 0, End: 99}, segments[0].Range)
	assert.Equal(t, []string{"https://cdn/v/b.mp4"}, segments[1].MediaURLs)

	assert.Empty(t, idx.Segments(0, 50))
	assert.Len(t, idx.Segments(100, 1000), 3)
	assert.Empty(t, idx.Segments(200, 10))

	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 130.0, last)
	first, ok := idx.FirstAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 100.0, first)

	assert.False(t, idx.ShouldRefresh(0, 125))
	assert.True(t, idx.ShouldRefresh(0, 135))

	init := idx.InitSegment()
	require.NotNil(t, init)
	assert.Equal(t, []string{"https://cdn/v/init.mp4"}, init.MediaURLs)
}

func TestListLastPositionClampedToPeriod(t *testing.T) {
	idx, err := NewListIndex(segmentList(), staticContext(0, f64(25)))
	require.NoError(t, err)
	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 25.0, last)
}

func TestListUpdateNotSupported(t *testing.T) {
	a, err := NewListIndex(segmentList(), staticContext(0, nil))
	require.NoError(t, err)
	b, err := NewListIndex(&ir.SegmentList{SegmentBase: ir.SegmentBase{Duration: f64(5)}}, staticContext(0, nil))
	require.NoError(t, err)

	assert.ErrorIs(t, a.Update(b), entity.ErrUpdateNotSupported)
	assert.Len(t, a.Segments(0, 100), 3)

	require.NoError(t, a.Replace(b))
	assert.Empty(t, a.Segments(0, 100))
}

func TestListMissingDuration(t *testing.T) {
	_, err := NewListIndex(&ir.SegmentList{}, staticContext(0, nil))
	assert.ErrorIs(t, err, ErrNoListDuration)
}

type sidxReference struct {
	size     uint32
	duration uint32
}

// buildSidx writes a version 0 sidx box
func buildSidx(timescale, earliest, firstOffset uint32, refs ...sidxReference) []byte {
	size := 32 + 12*len(refs)
	b := make([]byte, size)
	binary.BigEndian.PutUint32(b[0:], uint32(size))
	copy(b[4:], "sidx")
	binary.BigEndian.PutUint32(b[12:], 1)
	binary.BigEndian.PutUint32(b[16:], timescale)
	binary.BigEndian.PutUint32(b[20:], earliest)
	binary.BigEndian.PutUint32(b[24:], firstOffset)
	binary.BigEndian.PutUint16(b[30:], uint16(len(refs)))
	for i, ref := range refs {
		off := 32 + 12*i
		binary.BigEndian.PutUint32(b[off:], ref.size&0x7fffffff)
		binary.BigEndian.PutUint32(b[off+4:], ref.duration)
		binary.BigEndian.PutUint32(b[off+8:], 0x90000000)
	}
	return b
}

func TestBaseIndexFromSidx(t *testing.T) {
	ctx := staticContext(0, nil)
	ctx.BaseURLs = []string{"https://cdn/v.mp4"}
	idx := NewBaseIndex(&ir.SegmentBase{
		Timescale:  f64(1000),
		IndexRange: &entity.ByteRange{Start: 800, End: 855},
	}, ctx)

	assert.False(t, idx.IsInitialized())
	assert.Empty(t, idx.Segments(0, 10))
	_, ok := idx.LastAvailablePosition()
	assert.False(t, ok)

	init := idx.InitSegment()
	require.NotNil(t, init)
	assert.Equal(t, &entity.ByteRange{Start: 0, End: 799}, init.Range)
	assert.Equal(t, &entity.ByteRange{Start: 800, End: 855}, init.IndexRange)
	assert.Equal(t, []string{"https://cdn/v.mp4"}, init.MediaURLs)

	data := buildSidx(1000, 0, 0, sidxReference{size: 1000, duration: 2000}, sidxReference{size: 500, duration: 1500})
	require.Len(t, data, 56)
	require.NoError(t, idx.InitializeFromSidx(data, 800))
	assert.True(t, idx.IsInitialized())

	segments := idx.Segments(0, 10)
	require.Len(t, segments, 2)
	assert.Equal(t, &entity.ByteRange{Start: 856, End: 1855}, segments[0].Range)
	assert.Equal(t, &entity.ByteRange{Start: 1856, End: 2355}, segments[1].Range)
	assert.Equal(t, 2.0, segments[1].Time)
	assert.Equal(t, 3.5, segments[1].End)
	assert.Equal(t, []string{"https://cdn/v.mp4"}, segments[1].MediaURLs)

	last, ok := idx.LastAvailablePosition()
	require.True(t, ok)
	assert.Equal(t, 3.5, last)
}

func TestBaseIndexSidxTimescaleConversion(t *testing.T) {
	idx := NewBaseIndex(&ir.SegmentBase{Timescale: f64(90000)}, staticContext(0, nil))
	data := buildSidx(1000, 1000, 0, sidxReference{size: 10, duration: 4000})
	require.NoError(t, idx.InitializeFromSidx(data, 0))

	segments := idx.Segments(0, 100)
	require.Len(t, segments, 1)
	assert.Equal(t, 1.0, segments[0].Time)
	assert.Equal(t, 5.0, segments[0].End)
}

func TestBaseIndexRejectsOtherBoxes(t *testing.T) {
	idx := NewBaseIndex(&ir.SegmentBase{}, staticContext(0, nil))
	free := []byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}
	assert.ErrorIs(t, idx.InitializeFromSidx(free, 0), ErrNoSidx)
	assert.False(t, idx.IsInitialized())
}
