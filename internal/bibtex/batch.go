package bibtex

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalidRange is returned when a requested span range is empty or out of bounds.
var ErrInvalidRange = errors.New("invalid span range")

// Range is a half-open interval [Start, End) over a span list.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of spans covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// ValidateRange checks that 0 <= start < end <= n.
func ValidateRange(n, start, end int) error {
	if start < 0 || end > n || start >= end {
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidRange, "[%d, %d) over %d spans", start, end, n),
			"ranges must satisfy 0 <= start < end <= %d", n)
	}
	return nil
}

// ParseRange parses only spans[start:end]. An invalid range fails without
// producing a partial index.
func ParseRange(spans []Span, start, end int) (*Index, ParseStats, error) {
	if err := ValidateRange(len(spans), start, end); err != nil {
		return nil, ParseStats{}, err
	}
	idx, stats := parseSpans(spans[start:end])
	return idx, stats, nil
}

// Batches covers n spans with contiguous ranges of at most size spans.
// A non-positive size yields a single range.
func Batches(n, size int) []Range {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []Range{{Start: 0, End: n}}
	}
	ranges := make([]Range, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
