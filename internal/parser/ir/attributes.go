package ir

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mpdcore/internal/entity"
	"mpdcore/internal/tree"

	"github.com/google/uuid"
)

var (
	ErrInvalidDuration  = errors.New("invalid ISO 8601 duration")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidNumber    = errors.New("invalid number")
	ErrInvalidBoolean   = errors.New("invalid boolean")
	ErrInvalidByteRange = errors.New("invalid byte range")
	ErrInvalidKeyID     = errors.New("invalid key id")
	ErrInvalidBase64    = errors.New("invalid base64 payload")
)

// AttributeError reports one attribute that could not be parsed. The
// attribute is ignored, the rest of the element is kept.
type AttributeError struct {
	Element   string
	Attribute string
	Value     string
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s@%s: %v (%q)", e.Element, e.Attribute, e.Err, e.Value)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}

// P, M and D in the date part, H, M and S in the time part. Years and
// months are approximated the usual way.
var durationRegex = regexp.MustCompile(`^P(?:([\d.]+)Y)?(?:([\d.]+)M)?(?:([\d.]+)D)?(?:T(?:([\d.]+)H)?(?:([\d.]+)M)?(?:([\d.]+)S)?)?$`)

var durationUnits = []float64{365 * 24 * 3600, 30 * 24 * 3600, 24 * 3600, 3600, 60, 1}

// ParseDuration converts an ISO 8601 duration to seconds
func ParseDuration(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "P" || strings.HasSuffix(value, "T") {
		return 0, ErrInvalidDuration
	}
	matches := durationRegex.FindStringSubmatch(value)
	if matches == nil {
		return 0, ErrInvalidDuration
	}
	var total float64
	for i, unit := range durationUnits {
		part := matches[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, ErrInvalidDuration
		}
		total += n * unit
	}
	return total, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDateTime returns the number of seconds since the unix epoch. Dates
// without a zone are taken as UTC.
func ParseDateTime(value string) (float64, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return float64(t.UnixNano()) / 1e9, nil
		}
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return float64(t.UnixNano()) / 1e9, nil
	}
	return 0, ErrInvalidDate
}

// ParseBoolean accepts only "true" and "false"
func ParseBoolean(value string) (bool, error) {
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, ErrInvalidBoolean
	}
}

// ParseFloat also accepts "INF"
func ParseFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) {
		return 0, ErrInvalidNumber
	}
	return f, nil
}

// ParseInt truncates decimal notations ("25.0")
func ParseInt(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidNumber
	}
	return int64(f), nil
}

// ParseFrameRate reads "25" as well as "30000/1001"
func ParseFrameRate(value string) (float64, error) {
	if !strings.Contains(value, "/") {
		return ParseFloat(value)
	}
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return 0, ErrInvalidNumber
	}
	numerator, err1 := strconv.ParseFloat(parts[0], 64)
	denominator, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || denominator == 0 {
		return 0, ErrInvalidNumber
	}
	return numerator / denominator, nil
}

var byteRangeRegex = regexp.MustCompile(`^\s*(\d+)\s*-\s*(\d+)\s*$`)

// ParseByteRange reads an inclusive "start-end" range
func ParseByteRange(value string) (entity.ByteRange, error) {
	matches := byteRangeRegex.FindStringSubmatch(value)
	if matches == nil {
		return entity.ByteRange{}, ErrInvalidByteRange
	}
	start, err1 := strconv.ParseInt(matches[1], 10, 64)
	end, err2 := strconv.ParseInt(matches[2], 10, 64)
	if err1 != nil || err2 != nil || end < start {
		return entity.ByteRange{}, ErrInvalidByteRange
	}
	return entity.ByteRange{Start: start, End: end}, nil
}

// ParseKeyID reads a 16-byte key id, dashed or not
func ParseKeyID(value string) ([]byte, error) {
	u, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return nil, ErrInvalidKeyID
	}
	kid := make([]byte, len(u))
	copy(kid, u[:])
	return kid, nil
}

// ParseBase64 decodes standard base64, padded or not
func ParseBase64(value string) ([]byte, error) {
	value = strings.Join(strings.Fields(value), "")
	if data, err := base64.StdEncoding.DecodeString(value); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
	if err != nil {
		return nil, ErrInvalidBase64
	}
	return data, nil
}

// attrReader parses the attributes of one node, collecting failures
type attrReader struct {
	node     *tree.Node
	warnings *[]error
}

func newAttrReader(node *tree.Node, warnings *[]error) attrReader {
	return attrReader{node: node, warnings: warnings}
}

func (r attrReader) fail(name, value string, err error) {
	*r.warnings = append(*r.warnings, &AttributeError{
		Element:   r.node.Name,
		Attribute: name,
		Value:     value,
		Err:       err,
	})
}

func (r attrReader) str(name string) string {
	v, _ := r.node.Attr(name)
	return v
}

func (r attrReader) float(name string) *float64 {
	return readWith(r, name, ParseFloat)
}

func (r attrReader) int(name string) *int64 {
	return readWith(r, name, ParseInt)
}

func (r attrReader) boolean(name string) *bool {
	return readWith(r, name, ParseBoolean)
}

func (r attrReader) duration(name string) *float64 {
	return readWith(r, name, ParseDuration)
}

func (r attrReader) date(name string) *float64 {
	return readWith(r, name, ParseDateTime)
}

func (r attrReader) frameRate(name string) *float64 {
	return readWith(r, name, ParseFrameRate)
}

func (r attrReader) byteRange(name string) *entity.ByteRange {
	return readWith(r, name, ParseByteRange)
}

func readWith[T any](r attrReader, name string, parse func(string) (T, error)) *T {
	raw, ok := r.node.Attr(name)
	if !ok {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		r.fail(name, raw, err)
		return nil
	}
	return &v
}
