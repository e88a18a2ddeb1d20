package artifact

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/files"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/solast"
)

// BytecodeKind selects which bytecode/source map pair findings refer to.
type BytecodeKind string

const (
	Deployed BytecodeKind = "deployed"
	Creation BytecodeKind = "creation"
)

// ParseBytecodeKind converts a config or flag value into a BytecodeKind.
func ParseBytecodeKind(s string) (BytecodeKind, error) {
	switch BytecodeKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Deployed:
		return Deployed, nil
	case Creation:
		return Creation, nil
	default:
		return "", fmt.Errorf("unknown bytecode kind %q (expected %q or %q)", s, Deployed, Creation)
	}
}

// Source is one compiled source file with its AST and text.
type Source struct {
	Path string
	ID   int
	AST  *solast.Node
	Text string
}

// Artifact is the compiler output for one contract. It is not modified after loading.
type Artifact struct {
	ContractName      string
	SourcePath        string
	Bytecode          string
	DeployedBytecode  string
	SourceMap         string
	DeployedSourceMap string
	Sources           map[string]*Source
}

type rawSource struct {
	ID        *int            `json:"id"`
	AST       json.RawMessage `json:"ast"`
	LegacyAST json.RawMessage `json:"legacyAST"`
	Source    string          `json:"source"`
	Content   string          `json:"content"`
}

type rawArtifact struct {
	ContractName      string               `json:"contractName"`
	SourcePath        string               `json:"sourcePath"`
	Bytecode          string               `json:"bytecode"`
	DeployedBytecode  string               `json:"deployedBytecode"`
	SourceMap         string               `json:"sourceMap"`
	DeployedSourceMap string               `json:"deployedSourceMap"`
	Sources           map[string]rawSource `json:"sources"`

	// Truffle artifacts carry a single source at the top level.
	AST       json.RawMessage `json:"ast"`
	LegacyAST json.RawMessage `json:"legacyAST"`
	Source    string          `json:"source"`
}

// Load reads and parses an artifact file.
func Load(path string) (*Artifact, error) {
	data, err := files.ReadValidated(path)
	if err != nil {
		return nil, err
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact %q: %w", path, err)
	}
	return a, nil
}

// Parse decodes artifact JSON. Missing mandatory fields are reported later by Validate, so that
// the caller gets a single IncompleteArtifactError naming all of them.
func Parse(data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact JSON: %w", err)
	}

	a := &Artifact{
		ContractName:      raw.ContractName,
		SourcePath:        raw.SourcePath,
		Bytecode:          raw.Bytecode,
		DeployedBytecode:  raw.DeployedBytecode,
		SourceMap:         raw.SourceMap,
		DeployedSourceMap: raw.DeployedSourceMap,
		Sources:           make(map[string]*Source),
	}

	if len(raw.Sources) == 0 && raw.SourcePath != "" {
		raw.Sources = map[string]rawSource{
			raw.SourcePath: {AST: raw.AST, LegacyAST: raw.LegacyAST, Source: raw.Source},
		}
	}

	for path, rs := range raw.Sources {
		src := &Source{Path: path, ID: -1, Text: rs.Source}
		if src.Text == "" {
			src.Text = rs.Content
		}
		astJSON := rs.AST
		if isEmptyJSON(astJSON) {
			astJSON = rs.LegacyAST
		}
		if !isEmptyJSON(astJSON) {
			node, err := solast.Parse(astJSON)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", path, err)
			}
			src.AST = node
		}
		switch {
		case rs.ID != nil:
			src.ID = *rs.ID
		case src.AST != nil && src.AST.HasSrc:
			// a SourceUnit's own src carries the file index
			src.ID = src.AST.Src.FileIndex
		}
		a.Sources[path] = src
	}
	assignMissingIDs(a.Sources)

	if a.SourcePath == "" && len(a.Sources) == 1 {
		for path := range a.Sources {
			a.SourcePath = path
		}
	}
	return a, nil
}

func isEmptyJSON(m json.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return s == "" || s == "null"
}

// assignMissingIDs gives sources without an id the next free ids in path order.
func assignMissingIDs(sources map[string]*Source) {
	used := make(map[int]bool)
	var missing []string
	for path, s := range sources {
		if s.ID >= 0 {
			used[s.ID] = true
		} else {
			missing = append(missing, path)
		}
	}
	sort.Strings(missing)
	next := 0
	for _, path := range missing {
		for used[next] {
			next++
		}
		sources[path].ID = next
		used[next] = true
	}
}

// Pair returns the bytecode and source map for kind.
func (a *Artifact) Pair(kind BytecodeKind) (bytecode, sourceMap string) {
	if kind == Creation {
		return a.Bytecode, a.SourceMap
	}
	return a.DeployedBytecode, a.DeployedSourceMap
}

// Validate checks that every field needed to resolve findings for kind is present and that each
// file index referenced from an AST belongs to a known source.
func (a *Artifact) Validate(kind BytecodeKind) error {
	var missing []string
	bytecode, sourceMap := a.Pair(kind)
	if strings.TrimSpace(strings.TrimPrefix(bytecode, "0x")) == "" {
		missing = append(missing, string(kind)+" bytecode")
	}
	if strings.TrimSpace(sourceMap) == "" {
		missing = append(missing, string(kind)+" source map")
	}
	if len(a.Sources) == 0 {
		missing = append(missing, "sources")
	}

	known := make(map[int]bool, len(a.Sources))
	for _, s := range a.Sources {
		known[s.ID] = true
	}
	for _, s := range a.SourceList() {
		if s.AST == nil {
			missing = append(missing, fmt.Sprintf("AST for %q", s.Path))
			continue
		}
		if s.Text == "" {
			missing = append(missing, fmt.Sprintf("source text for %q", s.Path))
		}
		for _, idx := range solast.FileIndices(s.AST) {
			if !known[idx] {
				missing = append(missing, fmt.Sprintf("source for file index %d referenced by %q", idx, s.Path))
			}
		}
	}

	if len(missing) > 0 {
		return errors.NewIncompleteArtifactError(a.ContractName, missing...)
	}
	return nil
}

// SourceList returns the sources ordered by id, the order solc uses for file indices.
func (a *Artifact) SourceList() []*Source {
	out := make([]*Source, 0, len(a.Sources))
	for _, s := range a.Sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// SourceByIndex returns the source with file index i.
func (a *Artifact) SourceByIndex(i int) (*Source, bool) {
	if i < 0 {
		return nil, false
	}
	for _, s := range a.Sources {
		if s.ID == i {
			return s, true
		}
	}
	return nil, false
}

// SourceByPath looks a source up by exact path, then by a unique matching path suffix or base
// name. Tools often report paths relative to a different root than the compiler used.
func (a *Artifact) SourceByPath(path string) (*Source, bool) {
	if s, ok := a.Sources[path]; ok {
		return s, true
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	var match *Source
	for p, s := range a.Sources {
		candidate := filepath.ToSlash(p)
		if strings.HasSuffix(candidate, "/"+clean) || strings.HasSuffix(clean, "/"+candidate) ||
			filepath.Base(candidate) == filepath.Base(clean) {
			if match != nil {
				return nil, false
			}
			match = s
		}
	}
	return match, match != nil
}

// PrimarySource returns the source the contract itself is declared in.
func (a *Artifact) PrimarySource() (*Source, bool) {
	if s, ok := a.Sources[a.SourcePath]; ok {
		return s, true
	}
	list := a.SourceList()
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}
