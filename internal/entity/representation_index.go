package entity

import (
	"errors"
	"net/http"
)

// ErrIncompatibleIndex is returned by Replace/Update when the other index
// is not of the same kind as the receiver
var ErrIncompatibleIndex = errors.New("incompatible representation index")

// ErrUpdateNotSupported is returned by indexes that cannot merge a newer version
var ErrUpdateNotSupported = errors.New("representation index cannot be updated")

// RepresentationIndex maps a time window to the segments of one representation.
//
// Positions are in seconds. Methods returning (value, ok) report ok == false
// when the value cannot be computed yet or when no segment is available.
type RepresentationIndex interface {
	// InitSegment returns the initialization segment, nil when there is none.
	InitSegment() *Segment
	// Segments returns the segments overlapping [from, from+duration).
	Segments(from, duration float64) []*Segment
	FirstAvailablePosition() (float64, bool)
	LastAvailablePosition() (float64, bool)
	// End returns the end of the content once known.
	End() (float64, bool)
	// AwaitSegmentBetween reports whether segments not yet requestable are
	// expected between start and end. known is false when it cannot be told.
	AwaitSegmentBetween(start, end float64) (await bool, known bool)
	ShouldRefresh(from, to float64) bool
	// CheckDiscontinuity returns the start of the next segment when time
	// falls in a hole of the index.
	CheckDiscontinuity(time float64) (float64, bool)
	IsSegmentStillAvailable(segment *Segment) bool
	CanBeOutOfSyncError(err error) bool
	IsFinished() bool
	IsInitialized() bool
	// Replace swaps the whole state for the one of other.
	Replace(other RepresentationIndex) error
	// Update merges the state of other, keeping already known history.
	Update(other RepresentationIndex) error
}

// HTTPStatusCoder is implemented by request errors carrying an HTTP status
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsHTTPNotFound reports whether err wraps an HTTP 404 response
func IsHTTPNotFound(err error) bool {
	var coder HTTPStatusCoder
	if errors.As(err, &coder) {
		return coder.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
