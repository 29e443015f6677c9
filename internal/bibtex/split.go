package bibtex

import (
	"regexp"
	"strings"
	"unicode"
)

// entryStartRegex matches a line that opens an entry: @type{
var entryStartRegex = regexp.MustCompile(`(?m)^[ \t]*@([A-Za-z][A-Za-z0-9_-]*)[ \t]*\{`)

// Span is the raw text of one entry within a corpus.
type Span struct {
	Text   string
	Offset int // byte offset of the leading @ in the corpus
	Line   int // 1-based line of the leading @
}

// isEntryType reports whether a block type holds a bibliographic record.
func isEntryType(typ string) bool {
	switch strings.ToLower(typ) {
	case "comment", "preamble", "string":
		return false
	}
	return true
}

// SpanIterator walks a corpus one entry span at a time without materializing
// the whole span list. It is restartable via Reset and yields the same
// sequence as Split.
type SpanIterator struct {
	text string
	pos  int // always at a line start
	line int

	// pending holds the next entry start found while bounding the previous span
	pending    int
	pendingTyp string
	hasPending bool
}

// NewSpanIterator returns an iterator over the entry spans of text.
func NewSpanIterator(text string) *SpanIterator {
	return &SpanIterator{text: text, line: 1}
}

// Reset rewinds the iterator to the beginning of the corpus.
func (it *SpanIterator) Reset() {
	it.pos = 0
	it.line = 1
	it.hasPending = false
}

// Next returns the next entry span, or false once the corpus is exhausted.
func (it *SpanIterator) Next() (Span, bool) {
	for {
		start, typ, ok := it.nextStart()
		if !ok {
			it.advance(len(it.text))
			return Span{}, false
		}
		it.advance(start)
		line := it.line

		end := len(it.text)
		if next, nextTyp, found := it.find(nextLine(it.text, start)); found {
			end = next
			it.pending, it.pendingTyp, it.hasPending = next, nextTyp, true
		}

		raw := it.text[start:end]
		it.advance(end)

		if !isEntryType(typ) {
			continue
		}

		trimmed := strings.TrimLeft(raw, " \t")
		return Span{
			Text:   strings.TrimRightFunc(trimmed, unicode.IsSpace),
			Offset: start + len(raw) - len(trimmed),
			Line:   line,
		}, true
	}
}

func (it *SpanIterator) nextStart() (int, string, bool) {
	if it.hasPending {
		it.hasPending = false
		return it.pending, it.pendingTyp, true
	}
	return it.find(it.pos)
}

// find locates the first entry start at or after from, which must be a line start.
func (it *SpanIterator) find(from int) (int, string, bool) {
	if from >= len(it.text) {
		return 0, "", false
	}
	loc := entryStartRegex.FindStringSubmatchIndex(it.text[from:])
	if loc == nil {
		return 0, "", false
	}
	return from + loc[0], it.text[from+loc[2] : from+loc[3]], true
}

func (it *SpanIterator) advance(to int) {
	if to <= it.pos {
		return
	}
	it.line += strings.Count(it.text[it.pos:to], "\n")
	it.pos = to
}

func nextLine(text string, i int) int {
	j := strings.IndexByte(text[i:], '\n')
	if j < 0 {
		return len(text)
	}
	return i + j + 1
}

// Split returns the ordered entry spans of a corpus in a single linear scan.
// It is a pure function of text: repeated calls yield identical spans, so
// index ranges over the result are stable across retries.
func Split(text string) []Span {
	var spans []Span
	it := NewSpanIterator(text)
	for {
		span, ok := it.Next()
		if !ok {
			return spans
		}
		spans = append(spans, span)
	}
}
