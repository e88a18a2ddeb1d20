// Package linecol converts byte offsets in a source text into line/column positions.
//
// All positions produced here are 0-based. Range.ToOneBased is the single place where lines are
// shifted to the 1-based numbering editors expect.
package linecol

import (
	"sort"
	"strings"
)

// Position is a 0-based line/column pair. LineStart is the byte offset where the line begins.
type Position struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	LineStart int `json:"-"`
}

// Less orders positions by line, then column.
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Range is a start/end pair of positions. End is nil when the span could not be resolved.
type Range struct {
	Start Position  `json:"start"`
	End   *Position `json:"end,omitempty"`
}

// Unresolved returns the sentinel range used for locations that cannot be mapped.
func Unresolved() Range {
	return Range{Start: Position{Line: -1, Column: 0}}
}

// Resolved reports whether r carries a real location.
func (r Range) Resolved() bool {
	return r.Start.Line >= 0 && r.End != nil
}

// ToOneBased shifts both lines by one. Unresolved ranges are returned unchanged.
func (r Range) ToOneBased() Range {
	if !r.Resolved() {
		return r
	}
	end := *r.End
	end.Line++
	start := r.Start
	start.Line++
	return Range{Start: start, End: &end}
}

// Equal compares two ranges structurally.
func (r Range) Equal(o Range) bool {
	if r.Start.Line != o.Start.Line || r.Start.Column != o.Start.Column {
		return false
	}
	if r.End == nil || o.End == nil {
		return r.End == nil && o.End == nil
	}
	return r.End.Line == o.End.Line && r.End.Column == o.End.Column
}

// Index holds the newline offsets of one source text. It is immutable once built.
type Index struct {
	breaks []int
	size   int
}

// Build scans source once and records the offset of every '\n'.
func Build(source string) *Index {
	breaks := make([]int, 0, strings.Count(source, "\n"))
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			breaks = append(breaks, i)
		}
	}
	return &Index{breaks: breaks, size: len(source)}
}

// LineBreaks returns a copy of the recorded newline offsets.
func (idx *Index) LineBreaks() []int {
	out := make([]int, len(idx.breaks))
	copy(out, idx.breaks)
	return out
}

// LineCount returns the number of lines in the indexed text.
func (idx *Index) LineCount() int {
	return len(idx.breaks) + 1
}

// Size returns the length in bytes of the indexed text.
func (idx *Index) Size() int {
	return idx.size
}

// OffsetToPosition maps a byte offset to a 0-based position. An offset that sits exactly on a
// newline belongs to the line that newline terminates.
func (idx *Index) OffsetToPosition(offset int) Position {
	// Number of breaks strictly before offset is the line number, except when offset is itself
	// a break, which still belongs to the line it ends.
	line := sort.SearchInts(idx.breaks, offset)
	lineStart := 0
	if line > 0 {
		lineStart = idx.breaks[line-1] + 1
	}
	return Position{Line: line, Column: offset - lineStart, LineStart: lineStart}
}

// SpanToRange maps a start/length span to a 0-based range. Negative inputs produce the
// Unresolved sentinel.
func (idx *Index) SpanToRange(start, length int) Range {
	if start < 0 || length < 0 {
		return Unresolved()
	}
	end := idx.OffsetToPosition(start + length)
	return Range{Start: idx.OffsetToPosition(start), End: &end}
}
