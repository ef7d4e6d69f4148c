// Package timecode converts between HH:MM:SS.mmm display timestamps and
// millisecond offsets. Hours are unbounded (a 30-hour timeline formats as
// 30:00:00.000, not 06:00:00.000).
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFormat reports a timestamp that does not match the HH:MM:SS.mmm shape.
var ErrFormat = errors.New("invalid timecode format")

const (
	msPerHour   = 3_600_000
	msPerMinute = 60_000
	msPerSecond = 1_000
)

// Format renders a non-negative millisecond offset as HH:MM:SS.mmm.
// Negative offsets are clamped to zero.
func Format(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / msPerHour
	ms -= hours * msPerHour
	minutes := ms / msPerMinute
	ms -= minutes * msPerMinute
	seconds := ms / msPerSecond
	ms -= seconds * msPerSecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, ms)
}

// Parse converts an HH:MM:SS.mmm timestamp to milliseconds. The string must
// contain exactly two colons and one dot in the seconds field; every segment
// must be a plain decimal number.
func Parse(s string) (int64, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: %q needs two ':' separators", ErrFormat, s)
	}

	secFields := strings.Split(fields[2], ".")
	if len(secFields) != 2 {
		return 0, fmt.Errorf("%w: %q needs one '.' in the seconds field", ErrFormat, s)
	}

	segments := []string{fields[0], fields[1], secFields[0], secFields[1]}
	values := make([]int64, len(segments))
	for i, seg := range segments {
		v, err := parseSegment(seg)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrFormat, s)
		}
		values[i] = v
	}

	return values[0]*msPerHour + values[1]*msPerMinute + values[2]*msPerSecond + values[3], nil
}

func parseSegment(seg string) (int64, error) {
	if seg == "" {
		return 0, ErrFormat
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, ErrFormat
		}
	}
	return strconv.ParseInt(seg, 10, 64)
}
