package index

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var tokenRegex = regexp.MustCompile(`\$(RepresentationID|Bandwidth|Number|Time)(?:%0(\d+)d)?\$`)

// tokenValue is the replacement of one identifier, nil leaves it in place
type tokenValue func(width int) (string, bool)

// expandTokens replaces $Identifier$ and $Identifier%0Nd$ occurrences.
// Escaped dollars ($$) are never part of an identifier. They are turned
// into a single $ only when unescape is set, so that a template can be
// expanded in several passes.
func expandTokens(template string, values map[string]tokenValue, unescape bool) string {
	pieces := strings.Split(template, "$$")
	for i, piece := range pieces {
		pieces[i] = tokenRegex.ReplaceAllStringFunc(piece, func(match string) string {
			sub := tokenRegex.FindStringSubmatch(match)
			value, ok := values[sub[1]]
			if !ok {
				return match
			}
			width := 0
			if sub[2] != "" {
				width, _ = strconv.Atoi(sub[2])
			}
			replacement, ok := value(width)
			if !ok {
				return match
			}
			return replacement
		})
	}
	if unescape {
		return strings.Join(pieces, "$")
	}
	return strings.Join(pieces, "$$")
}

func formatInteger(v int64, width int) string {
	if width > 0 {
		return fmt.Sprintf("%0*d", width, v)
	}
	return strconv.FormatInt(v, 10)
}

// formatTime prints integral timescaled times without decimals
func formatTime(t float64, width int) string {
	if t == math.Trunc(t) && math.Abs(t) < math.MaxInt64 {
		return formatInteger(int64(t), width)
	}
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// replaceRepresentationTokens fills $RepresentationID$ and $Bandwidth$
func replaceRepresentationTokens(template, id string, bitrate int64) string {
	if template == "" {
		return ""
	}
	return expandTokens(template, map[string]tokenValue{
		"RepresentationID": func(int) (string, bool) { return id, true },
		"Bandwidth": func(width int) (string, bool) {
			return formatInteger(bitrate, width), true
		},
	}, false)
}

// replaceSegmentTokens fills $Time$ and $Number$ and unescapes $$
func replaceSegmentTokens(template string, time float64, number *int64) string {
	if template == "" {
		return ""
	}
	return expandTokens(template, map[string]tokenValue{
		"Time": func(width int) (string, bool) { return formatTime(time, width), true },
		"Number": func(width int) (string, bool) {
			if number == nil {
				return "", false
			}
			return formatInteger(*number, width), true
		},
	}, true)
}

// unescapeDollars finishes a template that carries no segment token
func unescapeDollars(template string) string {
	return strings.ReplaceAll(template, "$$", "$")
}
