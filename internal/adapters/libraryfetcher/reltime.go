package libraryfetcher

import (
	"math"
	"strconv"
	"strings"
	"time"

	"ollama-catalog/internal/core/domain"
)

const day = 24 * time.Hour

// Units past "day" are approximate on purpose: a month is 30 days and a
// year is 365 days, whatever the calendar says.
var relativeUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    day,
	"week":   7 * day,
	"month":  30 * day,
	"year":   365 * day,
}

// ParseRelativeTime resolves "<N> <unit>[s] [ago]" against ref.
func ParseRelativeTime(text string, ref time.Time) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(normalizeSpaces(text)))
	if n := len(fields); n > 0 && fields[n-1] == "ago" {
		fields = fields[:n-1]
	}
	if len(fields) != 2 {
		return time.Time{}, &domain.FormatError{Value: text, Reason: `expected "<number> <unit>"`}
	}

	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return time.Time{}, &domain.FormatError{Value: text, Reason: "missing numeral"}
	}

	unit, ok := relativeUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return time.Time{}, &domain.FormatError{Value: text, Reason: "unknown unit " + strconv.Quote(fields[1])}
	}
	if n > math.MaxInt64/int64(unit) {
		return time.Time{}, &domain.FormatError{Value: text, Reason: "offset out of range"}
	}

	return ref.Add(-time.Duration(n) * unit), nil
}

// normalizeSpaces turns the non-breaking spaces the catalog uses between
// words into plain ones.
func normalizeSpaces(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}
