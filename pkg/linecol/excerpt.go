package linecol

import (
	"strings"
)

// Excerpt returns the source lines covered by r (0-based) with a marker line of carets under the
// columns the range spans. Multi-line ranges are capped at maxLines lines and marked from the
// start column to the end of the first line. An unresolved range yields "".
func (idx *Index) Excerpt(source string, r Range, maxLines int) string {
	if !r.Resolved() || len(source) != idx.size {
		return ""
	}
	if maxLines <= 0 {
		maxLines = 3
	}

	first := r.Start.Line
	last := r.End.Line
	if last-first+1 > maxLines {
		last = first + maxLines - 1
	}

	var b strings.Builder
	for line := first; line <= last && line < idx.LineCount(); line++ {
		text := idx.lineText(source, line)
		b.WriteString(text)
		b.WriteByte('\n')
		if line != first {
			continue
		}
		endCol := len(text)
		if r.End.Line == first && r.End.Column < endCol {
			endCol = r.End.Column
		}
		width := endCol - r.Start.Column
		if width < 1 {
			width = 1
		}
		b.WriteString(markerPad(text, r.Start.Column))
		b.WriteString(strings.Repeat("^", width))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (idx *Index) lineText(source string, line int) string {
	start := 0
	if line > 0 {
		start = idx.breaks[line-1] + 1
	}
	end := len(source)
	if line < len(idx.breaks) {
		end = idx.breaks[line]
	}
	return strings.TrimRight(source[start:end], "\r")
}

// markerPad keeps tabs so the carets line up under tab-indented code.
func markerPad(text string, column int) string {
	if column > len(text) {
		column = len(text)
	}
	pad := []byte(text[:column])
	for i, c := range pad {
		if c != '\t' {
			pad[i] = ' '
		}
	}
	return string(pad)
}
