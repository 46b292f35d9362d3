package index

import (
	"errors"
	"math"
	"strconv"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// ErrNoListDuration a SegmentList needs a duration
var ErrNoListDuration = errors.New("invalid SegmentList: no duration")

type listItem struct {
	url        string
	mediaRange *entity.ByteRange
}

// ListIndex SegmentList, every segment is declared explicitly
type ListIndex struct {
	list            []listItem
	timescale       float64
	duration        float64
	indexTimeOffset float64
	indexRange      *entity.ByteRange
	initialization  *initInfo

	periodStart float64
	periodEnd   *float64
	baseURLs    []string
}

var _ entity.RepresentationIndex = (*ListIndex)(nil)

// NewListIndex 创建列表索引
func NewListIndex(list *ir.SegmentList, ctx Context) (*ListIndex, error) {
	if list.Duration == nil || *list.Duration <= 0 {
		return nil, ErrNoListDuration
	}
	timescale := orDefault(list.Timescale, 1)
	if timescale <= 0 {
		timescale = 1
	}

	items := make([]listItem, 0, len(list.List))
	for _, u := range list.List {
		items = append(items, listItem{
			url:        unescapeDollars(replaceRepresentationTokens(u.Media, ctx.RepresentationID, ctx.RepresentationBitrate)),
			mediaRange: copyRange(u.MediaRange),
		})
	}

	var init *initInfo
	if list.Initialization != nil {
		init = &initInfo{
			url: unescapeDollars(replaceRepresentationTokens(list.Initialization.Media, ctx.RepresentationID, ctx.RepresentationBitrate)),
			rng: copyRange(list.Initialization.Range),
		}
	}

	return &ListIndex{
		list:            items,
		timescale:       timescale,
		duration:        *list.Duration,
		indexTimeOffset: orDefault(list.PresentationTimeOffset, 0) - ctx.PeriodStart*timescale,
		indexRange:      copyRange(list.IndexRange),
		initialization:  init,
		periodStart:     ctx.PeriodStart,
		periodEnd:       ctx.PeriodEnd,
		baseURLs:        append([]string(nil), ctx.BaseURLs...),
	}, nil
}

// InitSegment 初始化分片
func (l *ListIndex) InitSegment() *entity.Segment {
	return buildInitSegment(l.initialization, l.indexRange, l.baseURLs, -(l.indexTimeOffset / l.timescale))
}

// Segments 获取时间范围内的分片
func (l *ListIndex) Segments(from, duration float64) []*entity.Segment {
	durationInSeconds := l.duration / l.timescale
	fromInPeriod := from - l.periodStart
	up := fromInPeriod * l.timescale
	to := (fromInPeriod + duration) * l.timescale

	last := math.Min(float64(len(l.list)-1), math.Floor(to/l.duration))
	i := math.Max(0, math.Floor(up/l.duration))

	var segments []*entity.Segment
	for ; i <= last; i++ {
		item := l.list[int(i)]
		t := i*durationInSeconds + l.periodStart
		segments = append(segments, &entity.Segment{
			ID:              strconv.Itoa(int(i)),
			Time:            t,
			End:             t + durationInSeconds,
			Duration:        durationInSeconds,
			Timescale:       1,
			MediaURLs:       resolveMediaURLs(l.baseURLs, item.url),
			Range:           copyRange(item.mediaRange),
			Complete:        true,
			TimestampOffset: -(l.indexTimeOffset / l.timescale),
		})
	}
	return segments
}

// FirstAvailablePosition 周期开始
func (l *ListIndex) FirstAvailablePosition() (float64, bool) {
	return l.periodStart, true
}

// LastAvailablePosition end of the last declared segment, within the period
func (l *ListIndex) LastAvailablePosition() (float64, bool) {
	end := float64(len(l.list))*l.duration/l.timescale + l.periodStart
	return minEnd(end, l.periodEnd), true
}

// End 结束时间
func (l *ListIndex) End() (float64, bool) {
	return l.LastAvailablePosition()
}

// AwaitSegmentBetween the list is complete
func (l *ListIndex) AwaitSegmentBetween(start, end float64) (bool, bool) {
	return false, true
}

// ShouldRefresh is true when asked for a time outside the declared list
func (l *ListIndex) ShouldRefresh(from, to float64) bool {
	i := math.Floor((to - l.periodStart) * l.timescale / l.duration)
	return i < 0 || i >= float64(len(l.list))
}

// CheckDiscontinuity 无空洞
func (l *ListIndex) CheckDiscontinuity(time float64) (float64, bool) {
	return 0, false
}

// IsSegmentStillAvailable 总是可用
func (l *ListIndex) IsSegmentStillAvailable(segment *entity.Segment) bool {
	return true
}

// CanBeOutOfSyncError 否
func (l *ListIndex) CanBeOutOfSyncError(err error) bool {
	return false
}

// IsFinished 是否已结束
func (l *ListIndex) IsFinished() bool {
	return true
}

// IsInitialized 是否已初始化
func (l *ListIndex) IsInitialized() bool {
	return true
}

// Replace 替换
func (l *ListIndex) Replace(other entity.RepresentationIndex) error {
	o, ok := other.(*ListIndex)
	if !ok {
		return entity.ErrIncompatibleIndex
	}
	*l = *o
	return nil
}

// Update 不支持
func (l *ListIndex) Update(other entity.RepresentationIndex) error {
	util.Logger.Debug("List RepresentationIndex: cannot update a SegmentList, replacing")
	return entity.ErrUpdateNotSupported
}
