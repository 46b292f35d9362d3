package index

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/Eyevinn/mp4ff/mp4"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// ErrNoSidx the data given to InitializeFromSidx does not start with a sidx box
var ErrNoSidx = errors.New("box 'sidx' not found")

// BaseIndex SegmentBase: one resource, segments described by its sidx box
type BaseIndex struct {
	data timelineData

	calc              *bounds.Calculator
	scaledPeriodStart float64
	scaledPeriodEnd   *float64
	baseURLs          []string
	isInitialized     bool
}

var _ entity.RepresentationIndex = (*BaseIndex)(nil)

// NewBaseIndex 创建SegmentBase索引
func NewBaseIndex(base *ir.SegmentBase, ctx Context) *BaseIndex {
	timescale := orDefault(base.Timescale, 1)
	if timescale <= 0 {
		timescale = 1
	}

	// without explicit initialization the init data sits before the index
	init := &initInfo{}
	if base.Initialization != nil {
		init.url = unescapeDollars(replaceRepresentationTokens(base.Initialization.Media, ctx.RepresentationID, ctx.RepresentationBitrate))
		init.rng = copyRange(base.Initialization.Range)
	}
	if init.rng == nil && base.IndexRange != nil && base.IndexRange.Start > 0 {
		init.rng = &entity.ByteRange{Start: 0, End: base.IndexRange.Start - 1}
	}

	idx := &BaseIndex{
		data: timelineData{
			timescale:                timescale,
			indexTimeOffset:          orDefault(base.PresentationTimeOffset, 0) - ctx.PeriodStart*timescale,
			availabilityTimeOffset:   orDefault(ctx.AvailabilityTimeOffset, 0),
			availabilityTimeComplete: true,
			startNumber:              copyInt(base.StartNumber),
			endNumber:                copyInt(base.EndNumber),
			indexRange:               copyRange(base.IndexRange),
			initialization:           init,
		},
		calc:     ctx.calculator(),
		baseURLs: append([]string(nil), ctx.BaseURLs...),
	}
	idx.scaledPeriodStart = idx.data.toIndexTime(ctx.PeriodStart)
	if ctx.PeriodEnd != nil {
		end := idx.data.toIndexTime(*ctx.PeriodEnd)
		idx.scaledPeriodEnd = &end
	}
	return idx
}

// InitializeFromSidx fills the index from the bytes of a sidx box.
// sidxOffset is the position of the box in the media resource, usually the
// start of indexRange.
func (b *BaseIndex) InitializeFromSidx(data []byte, sidxOffset int64) error {
	if b.isInitialized {
		return nil
	}
	box, err := mp4.DecodeBox(uint64(sidxOffset), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("解析sidx失败: %w", err)
	}
	sidx, ok := box.(*mp4.SidxBox)
	if !ok {
		return ErrNoSidx
	}
	if sidx.Timescale == 0 {
		return fmt.Errorf("invalid sidx: timescale 0")
	}

	scale := b.data.timescale / float64(sidx.Timescale)
	offset := sidxOffset + int64(sidx.Size()) + int64(sidx.FirstOffset)
	t := float64(sidx.EarliestPresentationTime)
	for _, ref := range sidx.SidxRefs {
		size := int64(ref.ReferencedSize)
		b.data.timeline = append(b.data.timeline, timelineElement{
			start:    t * scale,
			duration: float64(ref.SubSegmentDuration) * scale,
			rng:      &entity.ByteRange{Start: offset, End: offset + size - 1},
		})
		t += float64(ref.SubSegmentDuration)
		offset += size
	}
	util.Logger.Debug("sidx: %d segments, timescale %d", len(sidx.SidxRefs), sidx.Timescale)
	b.isInitialized = true
	return nil
}

// InitSegment 初始化分片
func (b *BaseIndex) InitSegment() *entity.Segment {
	return buildInitSegment(b.data.initialization, b.data.indexRange, b.baseURLs, -(b.data.indexTimeOffset / b.data.timescale))
}

// Segments 获取时间范围内的分片
func (b *BaseIndex) Segments(from, duration float64) []*entity.Segment {
	return segmentsFromTimeline(&b.data, from, duration, b.calc, b.scaledPeriodEnd, b.baseURLs)
}

// FirstAvailablePosition 第一个可用位置
func (b *BaseIndex) FirstAvailablePosition() (float64, bool) {
	if len(b.data.timeline) == 0 {
		return 0, false
	}
	return b.data.fromIndexTime(math.Max(b.scaledPeriodStart, b.data.timeline[0].start)), true
}

// LastAvailablePosition 最后可用位置
func (b *BaseIndex) LastAvailablePosition() (float64, bool) {
	if len(b.data.timeline) == 0 {
		return 0, false
	}
	last := b.data.timeline[len(b.data.timeline)-1]
	return b.data.fromIndexTime(minEnd(indexSegmentEnd(last, nil, b.scaledPeriodEnd), b.scaledPeriodEnd)), true
}

// End 结束时间
func (b *BaseIndex) End() (float64, bool) {
	return b.LastAvailablePosition()
}

// AwaitSegmentBetween 否
func (b *BaseIndex) AwaitSegmentBetween(start, end float64) (bool, bool) {
	return false, true
}

// ShouldRefresh 否
func (b *BaseIndex) ShouldRefresh(from, to float64) bool {
	return false
}

// CheckDiscontinuity 无
func (b *BaseIndex) CheckDiscontinuity(time float64) (float64, bool) {
	return 0, false
}

// IsSegmentStillAvailable 总是可用
func (b *BaseIndex) IsSegmentStillAvailable(segment *entity.Segment) bool {
	return true
}

// CanBeOutOfSyncError 否
func (b *BaseIndex) CanBeOutOfSyncError(err error) bool {
	return false
}

// IsFinished 是否已结束
func (b *BaseIndex) IsFinished() bool {
	return true
}

// IsInitialized is false until the sidx has been loaded
func (b *BaseIndex) IsInitialized() bool {
	return b.isInitialized
}

// Replace 替换
func (b *BaseIndex) Replace(other entity.RepresentationIndex) error {
	o, ok := other.(*BaseIndex)
	if !ok {
		return entity.ErrIncompatibleIndex
	}
	b.data = o.data.clone()
	b.isInitialized = o.isInitialized
	b.scaledPeriodEnd = o.scaledPeriodEnd
	b.calc = o.calc
	b.baseURLs = o.baseURLs
	return nil
}

// Update 不支持
func (b *BaseIndex) Update(other entity.RepresentationIndex) error {
	util.Logger.Debug("Base RepresentationIndex: cannot update a SegmentBase, replacing")
	return entity.ErrUpdateNotSupported
}
