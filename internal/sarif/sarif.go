package sarif

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
)

const (
	swcRegistryURL = "https://swcregistry.io/docs/"
	unknownRuleID  = "SWC-000"
)

// Report wraps a SARIF log built from diagnostics.
type Report struct {
	*sarif.Report
	logger hclog.Logger
}

// ToolMetadata names the tool recorded as the run's driver.
type ToolMetadata struct {
	Name           string
	Version        *string
	InformationURI string
}

// FromGroups builds a single-run SARIF report from diagnostic groups. Lines are already 1-based;
// columns are shifted from 0-based to the 1-based columns SARIF requires. Records with an
// unresolved range keep their file but carry no region.
func FromGroups(groups []diagnostics.FileGroup, tool ToolMetadata, logger hclog.Logger) (*Report, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(tool.Name, tool.InformationURI)
	if tool.Version != nil {
		run.Tool.Driver.WithVersion(*tool.Version)
	}
	run.WithAutomationDetails(sarif.NewRunAutomationDetails().WithGUID(uuid.New().String()))

	for _, g := range groups {
		for _, m := range g.Messages {
			run.AddResult(toResult(run, g.FilePath, m))
		}
	}
	report.AddRun(run)

	logger.Debug("SARIF report built", "results", len(run.Results), "rules", len(run.Tool.Driver.Rules))
	return &Report{Report: report, logger: logger}, nil
}

func toResult(run *sarif.Run, filePath string, m diagnostics.Record) *sarif.Result {
	ruleID := m.RuleID
	if ruleID == "" {
		ruleID = unknownRuleID
	}
	rule := run.AddRule(ruleID)
	if rule.ShortDescription == nil && m.Title != "" {
		rule.WithShortDescription(sarif.NewMultiformatMessageString(m.Title))
	}
	if rule.HelpURI == nil && ruleID != unknownRuleID {
		rule.WithHelpURI(swcRegistryURL + ruleID)
	}

	physical := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewSimpleArtifactLocation(filePath))
	if m.Range.Resolved() {
		physical.WithRegion(sarif.NewRegion().
			WithStartLine(m.Range.Start.Line).
			WithStartColumn(m.Range.Start.Column + 1).
			WithEndLine(m.Range.End.Line).
			WithEndColumn(m.Range.End.Column + 1))
	}

	result := sarif.NewRuleResult(ruleID).
		WithMessage(sarif.NewTextMessage(m.Message)).
		WithLevel(Level(m.Severity)).
		WithLocations([]*sarif.Location{sarif.NewLocationWithPhysicalLocation(physical)}).
		WithPartialFingerPrints(map[string]interface{}{
			"primaryLocationLineHash": m.Fingerprint(),
		})
	if m.Excerpt != "" {
		result.Properties = sarif.Properties{"markedSourceExcerpt": m.Excerpt}
	}
	return result
}

// Level maps a diagnostic severity onto a SARIF result level.
func Level(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return "error"
	case diagnostics.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

// CollectSeverityInfo counts results per level, plus a total.
func (r Report) CollectSeverityInfo() map[string]int {
	severityInfo := map[string]int{
		"error":   0,
		"warning": 0,
		"note":    0,
		"total":   0,
	}
	for _, run := range r.Runs {
		for _, result := range run.Results {
			level := "note"
			if result.Level != nil {
				level = *result.Level
			}
			severityInfo[level]++
			severityInfo["total"]++
		}
	}
	return severityInfo
}

// SortResultsByLevel orders results error, warning, note. The sort is stable so results of the
// same level keep their diagnostic order.
func (r Report) SortResultsByLevel() {
	levelOrder := map[string]int{
		"error":   0,
		"warning": 1,
		"note":    2,
		"none":    3,
	}
	rank := func(result *sarif.Result) int {
		if result.Level == nil {
			return len(levelOrder)
		}
		if v, ok := levelOrder[*result.Level]; ok {
			return v
		}
		return len(levelOrder)
	}
	for _, run := range r.Runs {
		results := run.Results
		sort.SliceStable(results, func(i, j int) bool {
			return rank(results[i]) < rank(results[j])
		})
	}
}

// Write renders the report as indented JSON.
func (r Report) Write(w io.Writer) error {
	return r.PrettyWrite(w)
}
