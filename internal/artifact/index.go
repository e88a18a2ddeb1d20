package artifact

import (
	"fmt"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/evm"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/linecol"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/sourcemap"
)

// Indexed holds the lookup tables derived from an artifact. Everything is built once by Index and
// only read afterwards, so an Indexed value can be shared between goroutines.
type Indexed struct {
	Artifact *Artifact
	Kind     BytecodeKind

	Lines map[int]*linecol.Index

	instructions *evm.InstructionTable
}

// Index builds line tables for every source and the instruction table for kind's bytecode. The
// other bytecode and source map are not read. The source map for kind is decoded once up front so
// malformed maps fail here instead of per finding.
func (a *Artifact) Index(kind BytecodeKind) (*Indexed, error) {
	ix := &Indexed{
		Artifact: a,
		Kind:     kind,
		Lines:    make(map[int]*linecol.Index, len(a.Sources)),
	}
	for _, s := range a.Sources {
		ix.Lines[s.ID] = linecol.Build(s.Text)
	}

	bytecode, sourceMap := a.Pair(kind)
	table, err := evm.Build(bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s bytecode: %w", kind, err)
	}
	ix.instructions = table

	if _, err := sourcemap.Decode(sourceMap); err != nil {
		return nil, fmt.Errorf("%s source map: %w", kind, err)
	}
	return ix, nil
}

// Instructions returns the instruction table for the selected bytecode kind.
func (ix *Indexed) Instructions() *evm.InstructionTable {
	return ix.instructions
}

// SourceMap returns the compressed source map for the selected bytecode kind.
func (ix *Indexed) SourceMap() string {
	_, m := ix.Artifact.Pair(ix.Kind)
	return m
}

// LineIndex returns the line table of the source with file index i.
func (ix *Indexed) LineIndex(i int) (*linecol.Index, bool) {
	idx, ok := ix.Lines[i]
	return idx, ok
}
