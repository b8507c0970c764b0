package cc1

import (
	"fmt"
	"sort"
)

// Span is the source-location range carried by every token and AST
// node: a byte range into the preprocessed buffer plus the line and
// column of its start, for diagnostic formatting (spec §3, §7).
//
// Adapted from the teacher's Range/Span/LineIndex trio (pos.go in
// clarete-langlang): the teacher keeps a rune-offset Range plus a
// resolved start/end Location computed lazily by a LineIndex. This
// spec's diagnostic format needs line/column eagerly (every token
// carries its own), so Span folds byte offsets and line/column into
// one value instead of the teacher's separate Range+Location split.
type Span struct {
	ByteLo, ByteHi int
	Line, Column   int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// Merge returns the smallest span covering both s and o.
func (s Span) Merge(o Span) Span {
	lo := s
	if o.ByteLo < s.ByteLo {
		lo = o
	}
	hi := s.ByteHi
	if o.ByteHi > hi {
		hi = o.ByteHi
	}
	return Span{ByteLo: lo.ByteLo, ByteHi: hi, Line: lo.Line, Column: lo.Column}
}

// LineIndex converts byte offsets to line/column by binary-searching
// line-start offsets, exactly as the teacher's LineIndex does.
type LineIndex struct {
	input     []byte
	lineStart []int
}

// NewLineIndex builds a LineIndex over input. Construction is O(n).
func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

// At returns the 1-based line and column for byte offset cursor.
func (li *LineIndex) At(cursor int) (line, column int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}
	idx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, cursor - li.lineStart[idx] + 1
}

// Span builds a Span for [lo, hi) using this index to resolve
// lo's line/column.
func (li *LineIndex) Span(lo, hi int) Span {
	line, col := li.At(lo)
	return Span{ByteLo: lo, ByteHi: hi, Line: line, Column: col}
}
