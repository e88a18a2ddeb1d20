package findings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/files"
)

const (
	ToolMythX   = "mythx"
	ToolMythril = "mythril"
)

// mythxReport is one element of a MythX (or `myth analyze -o jsonv2`) result.
type mythxReport struct {
	Issues       []mythxIssue   `json:"issues"`
	SourceType   string         `json:"sourceType"`
	SourceFormat string         `json:"sourceFormat"`
	SourceList   []string       `json:"sourceList"`
	Meta         map[string]any `json:"meta"`
}

type mythxIssue struct {
	SWCID       string          `json:"swcID"`
	SWCTitle    string          `json:"swcTitle"`
	Severity    string          `json:"severity"`
	Description json.RawMessage `json:"description"`
	Locations   []mythxLocation `json:"locations"`
	Extra       map[string]any  `json:"extra"`
}

type mythxLocation struct {
	SourceMap    string   `json:"sourceMap"`
	SourceType   string   `json:"sourceType"`
	SourceFormat string   `json:"sourceFormat"`
	SourceList   []string `json:"sourceList"`
}

// mythrilLegacyReport is the output of `myth analyze -o json`.
type mythrilLegacyReport struct {
	Success bool                 `json:"success"`
	Error   *string              `json:"error"`
	Issues  []mythrilLegacyIssue `json:"issues"`
}

type mythrilLegacyIssue struct {
	Address     *int   `json:"address"`
	SWCID       string `json:"swc-id"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Contract    string `json:"contract"`
	Function    string `json:"function"`
	SourceMap   string `json:"sourceMap"`
	Filename    string `json:"filename"`
	LineNo      *int   `json:"lineno"`
	Code        string `json:"code"`
}

// Load reads a findings file and parses it with Parse.
func Load(path string) ([]Finding, error) {
	data, err := files.ReadValidated(path)
	if err != nil {
		return nil, err
	}
	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse findings %q: %w", path, err)
	}
	return out, nil
}

// Parse accepts either MythX-style reports or legacy Mythril JSON and returns the findings in
// document order.
func Parse(data []byte) ([]Finding, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty findings document")
	}
	if trimmed[0] == '[' {
		return ParseMythX(trimmed)
	}

	var probe struct {
		Issues []map[string]json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode findings JSON: %w", err)
	}
	for _, issue := range probe.Issues {
		if _, ok := issue["swc-id"]; ok {
			return ParseMythrilLegacy(trimmed)
		}
		if _, ok := issue["address"]; ok {
			return ParseMythrilLegacy(trimmed)
		}
	}
	return ParseMythX(trimmed)
}

// ReadMythX parses MythX reports from r.
func ReadMythX(r io.Reader) ([]Finding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	return ParseMythX(data)
}

// ParseMythX decodes a single MythX report or an array of them. A location's own sourceFormat
// and sourceList take precedence over the report's.
func ParseMythX(data []byte) ([]Finding, error) {
	var reports []mythxReport
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil, fmt.Errorf("failed to decode MythX reports: %w", err)
		}
	} else {
		var single mythxReport
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("failed to decode MythX report: %w", err)
		}
		reports = []mythxReport{single}
	}

	var out []Finding
	for ri, report := range reports {
		batchFormat, err := formatOrDefault(report.SourceFormat)
		if err != nil {
			return nil, fmt.Errorf("report %d: %w", ri, err)
		}
		for ii, issue := range report.Issues {
			desc, err := decodeDescription(issue.Description)
			if err != nil {
				return nil, fmt.Errorf("report %d issue %d: %w", ri, ii, err)
			}
			f := Finding{
				SWCID:       issue.SWCID,
				Title:       issue.SWCTitle,
				Severity:    issue.Severity,
				Description: desc,
				SourceList:  report.SourceList,
				Tool:        ToolMythX,
				Extra:       issue.Extra,
			}
			for li, loc := range issue.Locations {
				format := batchFormat
				if loc.SourceFormat != "" {
					if format, err = formatOrDefault(loc.SourceFormat); err != nil {
						return nil, fmt.Errorf("report %d issue %d location %d: %w", ri, ii, li, err)
					}
				}
				list := loc.SourceList
				if len(list) == 0 {
					list = report.SourceList
				}
				f.Locations = append(f.Locations, Location{
					SourceMap:  loc.SourceMap,
					Format:     format,
					SourceList: list,
				})
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// ParseMythrilLegacy decodes `myth analyze -o json` output. Each issue's address becomes a
// bytecode-offset location.
func ParseMythrilLegacy(data []byte) ([]Finding, error) {
	var report mythrilLegacyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode Mythril report: %w", err)
	}
	if report.Error != nil && *report.Error != "" {
		return nil, fmt.Errorf("mythril reported an error: %s", *report.Error)
	}

	out := make([]Finding, 0, len(report.Issues))
	for _, issue := range report.Issues {
		f := Finding{
			SWCID:       issue.SWCID,
			Title:       issue.Title,
			Severity:    issue.Severity,
			Description: splitDescription(issue.Description),
			Tool:        ToolMythril,
			Extra:       map[string]any{},
		}
		if issue.Contract != "" {
			f.Extra["contract"] = issue.Contract
		}
		if issue.Function != "" {
			f.Extra["function"] = issue.Function
		}
		if issue.Filename != "" {
			f.Extra["filename"] = issue.Filename
		}
		if issue.LineNo != nil {
			f.Extra["lineno"] = *issue.LineNo
		}
		if issue.Address != nil {
			f.Locations = append(f.Locations, Location{
				SourceMap: strconv.Itoa(*issue.Address) + ":1:0",
				Format:    FormatBytecodeOffset,
			})
		} else if issue.SourceMap != "" {
			f.Locations = append(f.Locations, Location{
				SourceMap: issue.SourceMap,
				Format:    FormatInlineSourceMap,
			})
		}
		out = append(out, f)
	}
	return out, nil
}

// formatOrDefault treats a missing format as bytecode offsets, which is what both MythX and
// Mythril emit for compiled contracts.
func formatOrDefault(s string) (LocationFormat, error) {
	if s == "" {
		return FormatBytecodeOffset, nil
	}
	format, ok := ParseLocationFormat(s)
	if !ok {
		return "", fmt.Errorf("unsupported source format %q", s)
	}
	return format, nil
}

// decodeDescription accepts both the {head, tail} object and a plain string.
func decodeDescription(raw json.RawMessage) (Description, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Description{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Description{}, fmt.Errorf("invalid description: %w", err)
		}
		return splitDescription(s), nil
	}
	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return Description{}, fmt.Errorf("invalid description: %w", err)
	}
	return d, nil
}
