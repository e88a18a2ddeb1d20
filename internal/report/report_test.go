package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/sarif"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/linecol"
)

func groups() []diagnostics.FileGroup {
	return []diagnostics.FileGroup{{
		FilePath: "contracts/Bank.sol",
		Messages: []diagnostics.Record{
			{
				Range:    linecol.Range{Start: linecol.Position{Line: 5, Column: 4}, End: &linecol.Position{Line: 5, Column: 27}},
				Severity: diagnostics.SeverityError,
				Message:  "Overflow.",
				RuleID:   "SWC-101",
			},
			{
				Range:    linecol.Unresolved(),
				Severity: diagnostics.SeverityWarning,
				Message:  "Reentrancy.",
				RuleID:   "SWC-107",
			},
		},
	}}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", "SARIF", " table "} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, groups(), Options{}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "contracts/Bank.sol", decoded[0]["filePath"])
	assert.Equal(t, float64(1), decoded[0]["errorCount"])
	assert.Len(t, decoded[0]["messages"], 2)

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, nil, Options{}))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatSARIF, groups(), Options{Tool: sarif.ToolMetadata{Name: "soldiag"}}))

	var decoded struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []struct {
				RuleID string `json:"ruleId"`
				Level  string `json:"level"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2.1.0", decoded.Version)
	require.Len(t, decoded.Runs, 1)
	require.Len(t, decoded.Runs[0].Results, 2)
	assert.Equal(t, "error", decoded.Runs[0].Results[0].Level)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, groups(), Options{}))
	out := buf.String()

	assert.Contains(t, out, "contracts/Bank.sol")
	assert.Contains(t, out, "SWC-101")
	assert.Contains(t, out, "Overflow.")
	assert.Contains(t, strings.ToUpper(out), "TOTAL 2")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), groups(), Options{}))
}

func TestWriteSARIFLogsSeveritySummary(t *testing.T) {
	var logs bytes.Buffer
	lg := hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Info, DisableTime: true})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatSARIF, groups(), Options{Tool: sarif.ToolMetadata{Name: "soldiag"}, Logger: lg}))

	out := logs.String()
	assert.Contains(t, out, "SARIF report summary")
	assert.Contains(t, out, "error=1")
	assert.Contains(t, out, "warning=1")
	assert.Contains(t, out, "note=0")
	assert.Contains(t, out, "total=2")
}
