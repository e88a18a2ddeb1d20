package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared"
)

func TestPrintVersionInfo(t *testing.T) {
	v := shared.Versions{Version: "1.0.0", GolangVersion: "go1.24", BuildTime: "2026-01-01"}

	var buf bytes.Buffer
	require.NoError(t, printVersionInfo(&buf, v, false))
	assert.Contains(t, buf.String(), "Core Version: v1.0.0")
	assert.Contains(t, buf.String(), "Go Version: go1.24")

	buf.Reset()
	require.NoError(t, printVersionInfo(&buf, v, true))
	var decoded shared.Versions
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, v, decoded)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Core Version: vunknown")
}
