package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/artifact"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/config"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/report"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

const counterSource = "contract A {\n    uint x;\n}\n"

const mythxFindings = `[{
  "sourceType": "raw-bytecode",
  "sourceFormat": "evm-byzantium-bytecode",
  "sourceList": ["contracts/A.sol"],
  "issues": [
    {"swcID": "SWC-101", "swcTitle": "Integer Overflow", "severity": "High",
     "description": {"head": "Arithmetic overflow.", "tail": "The addition can wrap."},
     "locations": [{"sourceMap": "2:1:0"}]},
    {"swcID": "SWC-101", "swcTitle": "Integer Overflow", "severity": "High",
     "description": {"head": "Arithmetic overflow.", "tail": "The addition can wrap."},
     "locations": [{"sourceMap": "2:1:0"}]}
  ]
}]`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeArtifact(t *testing.T, dir, name, bytecode string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"contractName":      name,
		"sourcePath":        "contracts/A.sol",
		"bytecode":          bytecode,
		"sourceMap":         "0:27:0;17:7:0",
		"deployedBytecode":  bytecode,
		"deployedSourceMap": "0:27:0;17:7:0",
		"sources": map[string]any{
			"contracts/A.sol": map[string]any{
				"id":     0,
				"source": counterSource,
				"ast":    json.RawMessage(`{"id": 1, "nodeType": "SourceUnit", "src": "0:27:0", "nodes": []}`),
			},
		},
	})
	require.NoError(t, err)
	return writeFile(t, dir, name+".json", data)
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var cmdErr *errors.CommandError
	require.True(t, stderrors.As(err, &cmdErr), "expected a CommandError, got %v", err)
	return cmdErr.ExitCode
}

func TestValidateDiagnoseArgs(t *testing.T) {
	tests := []struct {
		name    string
		options RunOptionsDiagnose
		wantErr string
	}{
		{
			name:    "valid single pair",
			options: RunOptionsDiagnose{Artifacts: []string{"a.json"}, Findings: []string{"f.json"}},
		},
		{
			name:    "shared findings",
			options: RunOptionsDiagnose{Artifacts: []string{"a.json", "b.json"}, Findings: []string{"f.json"}},
		},
		{
			name:    "missing artifact",
			options: RunOptionsDiagnose{Findings: []string{"f.json"}},
			wantErr: "the 'artifact' flag must be specified",
		},
		{
			name:    "missing findings",
			options: RunOptionsDiagnose{Artifacts: []string{"a.json"}},
			wantErr: "the 'findings' flag must be specified",
		},
		{
			name:    "unpaired findings",
			options: RunOptionsDiagnose{Artifacts: []string{"a.json", "b.json", "c.json"}, Findings: []string{"f.json", "g.json"}},
			wantErr: "expected one 'findings' file or one per artifact",
		},
		{
			name:    "negative threads",
			options: RunOptionsDiagnose{Artifacts: []string{"a.json"}, Findings: []string{"f.json"}, Threads: -1},
			wantErr: "the 'threads' flag must be a positive integer",
		},
		{
			name:    "blank artifact",
			options: RunOptionsDiagnose{Artifacts: []string{" "}, Findings: []string{"f.json"}},
			wantErr: "the 'artifact' flag cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDiagnoseArgs(&tt.options)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestBuildNormalizerOptions(t *testing.T) {
	cfg := config.Default()

	opts, err := buildNormalizerOptions(cfg, &RunOptionsDiagnose{})
	require.NoError(t, err)
	assert.True(t, opts.IgnoreArrayGetters)
	assert.False(t, opts.IncludeExcerpt)
	assert.Equal(t, config.DefaultMaxMessageLength, opts.MaxMessageLength)
	assert.Equal(t, artifact.Deployed, opts.Bytecode)
	assert.Equal(t, config.DefaultWorkers, opts.Workers)

	opts, err = buildNormalizerOptions(cfg, &RunOptionsDiagnose{NoIgnore: true, Excerpt: true, Creation: true})
	require.NoError(t, err)
	assert.False(t, opts.IgnoreArrayGetters)
	assert.True(t, opts.IncludeExcerpt)
	assert.Equal(t, artifact.Creation, opts.Bytecode)

	cfg.Normalizer.Bytecode = "runtime"
	_, err = buildNormalizerOptions(cfg, &RunOptionsDiagnose{})
	assert.Error(t, err)
}

func TestDetermineFormat(t *testing.T) {
	cfg := config.Default()
	f, err := determineFormat(cfg, &RunOptionsDiagnose{})
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, f)

	f, err = determineFormat(cfg, &RunOptionsDiagnose{Format: "table"})
	require.NoError(t, err)
	assert.Equal(t, report.FormatTable, f)

	_, err = determineFormat(cfg, &RunOptionsDiagnose{Format: "html"})
	assert.Error(t, err)
}

func TestReportFileName(t *testing.T) {
	assert.Equal(t, "soldiag-report.json", reportFileName(report.FormatJSON))
	assert.Equal(t, "soldiag-report.sarif", reportFileName(report.FormatSARIF))
	assert.Equal(t, "soldiag-report.txt", reportFileName(report.FormatTable))
}

func TestPrepareJobs(t *testing.T) {
	dir := t.TempDir()
	f1 := writeFile(t, dir, "f1.json", []byte(mythxFindings))
	f2 := writeFile(t, dir, "f2.json", []byte(`[]`))

	jobs, err := prepareJobs(&RunOptionsDiagnose{Artifacts: []string{"a.json", "b.json"}, Findings: []string{f1}})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Len(t, jobs[1].Findings, 2)
	assert.True(t, jobs[0].FilterByContract)

	jobs, err = prepareJobs(&RunOptionsDiagnose{Artifacts: []string{"a.json", "b.json"}, Findings: []string{f1, f2}})
	require.NoError(t, err)
	assert.Len(t, jobs[0].Findings, 2)
	assert.Empty(t, jobs[1].Findings)
	assert.False(t, jobs[0].FilterByContract)

	_, err = prepareJobs(&RunOptionsDiagnose{Artifacts: []string{"a.json"}, Findings: []string{filepath.Join(dir, "nope.json")}})
	assert.Error(t, err)
}

func TestDiagnoseJSONToStdout(t *testing.T) {
	dir := t.TempDir()
	o := &RunOptionsDiagnose{
		Artifacts: []string{writeArtifact(t, dir, "A", "0x600100")},
		Findings:  []string{writeFile(t, dir, "mythx.json", []byte(mythxFindings))},
	}

	var stdout, stderr bytes.Buffer
	err := diagnose(context.Background(), config.Default(), o, &stdout, &stderr, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Empty(t, stderr.String())

	var decoded []struct {
		FilePath   string `json:"filePath"`
		ErrorCount int    `json:"errorCount"`
		Messages   []struct {
			Line     int    `json:"line"`
			Column   int    `json:"column"`
			RuleID   string `json:"ruleId"`
			Severity string `json:"severity"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "contracts/A.sol", decoded[0].FilePath)
	require.Len(t, decoded[0].Messages, 1, "duplicates are removed")
	assert.Equal(t, 2, decoded[0].Messages[0].Line)
	assert.Equal(t, 4, decoded[0].Messages[0].Column)
	assert.Equal(t, "SWC-101", decoded[0].Messages[0].RuleID)
	assert.Equal(t, "error", decoded[0].Messages[0].Severity)
}

func TestDiagnoseSARIFToDirectory(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "results")
	o := &RunOptionsDiagnose{
		Artifacts:  []string{writeArtifact(t, dir, "A", "0x600100")},
		Findings:   []string{writeFile(t, dir, "mythx.json", []byte(mythxFindings))},
		Format:     "sarif",
		OutputPath: outDir,
	}

	var stdout, stderr bytes.Buffer
	require.NoError(t, diagnose(context.Background(), config.Default(), o, &stdout, &stderr, hclog.NewNullLogger()))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(filepath.Join(outDir, "soldiag-report.sarif"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ruleId": "SWC-101"`)
}

func TestDiagnoseExitCodes(t *testing.T) {
	dir := t.TempDir()
	findingsPath := writeFile(t, dir, "mythx.json", []byte(mythxFindings))
	good := writeArtifact(t, dir, "A", "0x600100")
	bad := writeArtifact(t, dir, "Broken", "0x6")

	var stdout, stderr bytes.Buffer
	lg := hclog.NewNullLogger()

	err := diagnose(context.Background(), config.Default(), &RunOptionsDiagnose{Artifacts: []string{good}}, &stdout, &stderr, lg)
	assert.Equal(t, 1, exitCode(t, err))

	err = diagnose(context.Background(), config.Default(), &RunOptionsDiagnose{Artifacts: []string{good}, Findings: []string{findingsPath}, Format: "xml"}, &stdout, &stderr, lg)
	assert.Equal(t, 1, exitCode(t, err))

	err = diagnose(context.Background(), config.Default(), &RunOptionsDiagnose{Artifacts: []string{good}, Findings: []string{filepath.Join(dir, "missing.json")}}, &stdout, &stderr, lg)
	assert.Equal(t, 2, exitCode(t, err))

	stdout.Reset()
	stderr.Reset()
	err = diagnose(context.Background(), config.Default(), &RunOptionsDiagnose{Artifacts: []string{good, bad}, Findings: []string{findingsPath}}, &stdout, &stderr, lg)
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, stderr.String(), "cannot analyze this contract:")
	assert.Contains(t, stdout.String(), "contracts/A.sol", "the healthy artifact is still reported")
}

func TestWriteReportSurfacesWriteErrors(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full is not available")
	}
	err := writeReport(&bytes.Buffer{}, report.FormatJSON, nil, "/dev/full", report.Options{Logger: hclog.NewNullLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write report")
}
