// Package report renders diagnostic groups in the supported output formats.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/olekukonko/tablewriter"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/sarif"
)

// Format is an output format name.
type Format string

const (
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
	FormatTable Format = "table"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatSARIF, FormatTable}

// ParseFormat validates a format name. Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (expected one of json, sarif, table)", s)
}

// Options carry what some formats need besides the groups themselves.
type Options struct {
	Tool   sarif.ToolMetadata
	Logger hclog.Logger
}

// Write renders groups to w in format.
func Write(w io.Writer, format Format, groups []diagnostics.FileGroup, opts Options) error {
	if groups == nil {
		groups = []diagnostics.FileGroup{}
	}
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(groups); err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		return nil
	case FormatSARIF:
		r, err := sarif.FromGroups(groups, opts.Tool, opts.Logger)
		if err != nil {
			return err
		}
		r.SortResultsByLevel()
		if err := r.Write(w); err != nil {
			return fmt.Errorf("failed to write SARIF report: %w", err)
		}
		if opts.Logger != nil {
			info := r.CollectSeverityInfo()
			opts.Logger.Info("SARIF report summary",
				"error", info["error"],
				"warning", info["warning"],
				"note", info["note"],
				"total", info["total"])
		}
		return nil
	case FormatTable:
		_, err := io.WriteString(w, renderTable(groups))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func renderTable(groups []diagnostics.FileGroup) string {
	var b strings.Builder

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"File", "Line", "Severity", "Rule", "Message"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})

	var total, errorCount, warningCount int
	for _, g := range groups {
		for _, m := range g.Messages {
			line := "-"
			if m.Range.Resolved() {
				line = strconv.Itoa(m.Range.Start.Line)
			}
			table.Append([]string{g.FilePath, line, string(m.Severity), m.RuleID, m.Message})
			total++
		}
		errorCount += g.ErrorCount()
		warningCount += g.WarningCount()
	}

	table.SetFooter([]string{
		fmt.Sprintf("Files %d", len(groups)),
		"",
		fmt.Sprintf("%d errors", errorCount),
		fmt.Sprintf("%d warnings", warningCount),
		fmt.Sprintf("Total %d", total),
	})
	table.Render()

	return b.String()
}
