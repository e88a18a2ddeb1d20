// Package diagnostics holds the editor-facing result model: located, severity-tagged messages
// grouped per file.
package diagnostics

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/linecol"
)

// Severity of a diagnostic as shown in an editor.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities from least to most serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Record is one located diagnostic. Range lines are 1-based; columns stay 0-based.
type Record struct {
	FilePath string
	Range    linecol.Range
	Severity Severity
	Message  string
	RuleID   string
	Title    string
	Excerpt  string
}

// Fingerprint identifies a record within its file for deduplication.
func (r Record) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d", r.Range.Start.Line, r.Range.Start.Column)
	if r.Range.End != nil {
		fmt.Fprintf(&b, "-%d:%d", r.Range.End.Line, r.Range.End.Column)
	}
	b.WriteString("|")
	b.WriteString(r.Message)
	b.WriteString("|")
	b.WriteString(r.RuleID)
	return calculateMD5Hash(b.String())
}

// calculateMD5Hash returns the hex md5 digest of text.
func calculateMD5Hash(text string) string {
	hash := md5.New()
	io.WriteString(hash, text)
	return hex.EncodeToString(hash.Sum(nil))
}

// FileGroup collects the diagnostics of one file.
type FileGroup struct {
	FilePath string
	Messages []Record
}

// ErrorCount returns the number of error-level messages.
func (g FileGroup) ErrorCount() int {
	return g.count(SeverityError)
}

// WarningCount returns the number of warning-level messages.
func (g FileGroup) WarningCount() int {
	return g.count(SeverityWarning)
}

func (g FileGroup) count(s Severity) int {
	n := 0
	for _, m := range g.Messages {
		if m.Severity == s {
			n++
		}
	}
	return n
}

// GroupAndDedupe groups records by file path, files in order of first appearance, and drops
// records whose range, message and rule id repeat an earlier record of the same file.
// Applying it to the flattened output again yields the same groups.
func GroupAndDedupe(records []Record) []FileGroup {
	var groups []FileGroup
	byPath := make(map[string]int)
	seen := make(map[string]map[string]bool)

	for _, r := range records {
		gi, ok := byPath[r.FilePath]
		if !ok {
			gi = len(groups)
			byPath[r.FilePath] = gi
			groups = append(groups, FileGroup{FilePath: r.FilePath})
			seen[r.FilePath] = make(map[string]bool)
		}
		fp := r.Fingerprint()
		if seen[r.FilePath][fp] {
			continue
		}
		seen[r.FilePath][fp] = true
		groups[gi].Messages = append(groups[gi].Messages, r)
	}
	return groups
}

// Flatten returns the records of groups in group order.
func Flatten(groups []FileGroup) []Record {
	var out []Record
	for _, g := range groups {
		out = append(out, g.Messages...)
	}
	return out
}

type jsonMessage struct {
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	EndLine  *int     `json:"endLine,omitempty"`
	EndCol   *int     `json:"endCol,omitempty"`
	Message  string   `json:"message"`
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title,omitempty"`
	Excerpt  string   `json:"markedSourceExcerpt,omitempty"`
}

type jsonGroup struct {
	FilePath            string        `json:"filePath"`
	ErrorCount          int           `json:"errorCount"`
	WarningCount        int           `json:"warningCount"`
	FixableErrorCount   int           `json:"fixableErrorCount"`
	FixableWarningCount int           `json:"fixableWarningCount"`
	Messages            []jsonMessage `json:"messages"`
}

// MarshalJSON renders the group in the lint-result layout editors consume.
func (g FileGroup) MarshalJSON() ([]byte, error) {
	out := jsonGroup{
		FilePath:     g.FilePath,
		ErrorCount:   g.ErrorCount(),
		WarningCount: g.WarningCount(),
		Messages:     make([]jsonMessage, 0, len(g.Messages)),
	}
	for _, m := range g.Messages {
		jm := jsonMessage{
			Line:     m.Range.Start.Line,
			Column:   m.Range.Start.Column,
			Message:  m.Message,
			RuleID:   m.RuleID,
			Severity: m.Severity,
			Title:    m.Title,
			Excerpt:  m.Excerpt,
		}
		if m.Range.End != nil {
			endLine, endCol := m.Range.End.Line, m.Range.End.Column
			jm.EndLine = &endLine
			jm.EndCol = &endCol
		}
		out.Messages = append(out.Messages, jm)
	}
	return json.Marshal(out)
}
