package parser

import (
	"errors"

	"mpdcore/internal/parser/index"
)

var (
	// ErrInvalidRoot the tree handed to Parse is not an MPD
	ErrInvalidRoot = errors.New("root element is not MPD")
	// ErrMissingPeriodStart no start could be derived for a Period
	ErrMissingPeriodStart = errors.New("missing start time when parsing periods")
	// ErrWrongResourceCount Continue got a different number of responses than requested
	ErrWrongResourceCount = errors.New("number of resources does not match the requests")

	// ErrNoTemplateDuration a SegmentTemplate without timeline needs a duration
	ErrNoTemplateDuration = index.ErrNoTemplateDuration
	// ErrNoListDuration a SegmentList needs a duration
	ErrNoListDuration = index.ErrNoListDuration

	errNotPssh = errors.New("box is not a pssh")
)
