// Package issues maps tool findings for one compiled contract onto source locations.
//
// A Normalizer is built once per artifact. Construction validates the artifact and builds every
// lookup table; after that, findings are resolved concurrently against the read-only tables.
package issues

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/artifact"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/findings"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/linecol"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/solast"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/sourcemap"
)

// State is the lifecycle stage of a Normalizer.
type State int

const (
	Idle State = iota
	Loaded
	Normalizing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Normalizing:
		return "normalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Options tune how findings are turned into diagnostics.
type Options struct {
	IgnoreArrayGetters bool
	IncludeExcerpt     bool
	MaxMessageLength   int
	Bytecode           artifact.BytecodeKind
	Workers            int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		IgnoreArrayGetters: true,
		MaxMessageLength:   120,
		Bytecode:           artifact.Deployed,
		Workers:            4,
	}
}

// Stats counts what happened to the findings of one Normalize call.
type Stats struct {
	Findings   int
	Locations  int
	Emitted    int
	Suppressed int
	Unresolved int
}

// Resolved is a finding location mapped onto a source file. Range lines are 1-based.
type Resolved struct {
	Source   *artifact.Source
	FilePath string
	Span     sourcemap.Span
	Range    linecol.Range
}

// Normalizer resolves findings against a single artifact.
type Normalizer struct {
	art    *artifact.Artifact
	index  *artifact.Indexed
	opts   Options
	logger hclog.Logger

	mu    sync.Mutex
	state State
}

// New validates art and builds its lookup tables. Any error is fatal for this artifact.
func New(art *artifact.Artifact, opts Options, logger hclog.Logger) (*Normalizer, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Bytecode == "" {
		opts.Bytecode = artifact.Deployed
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	n := &Normalizer{art: art, opts: opts, logger: logger, state: Idle}

	if err := art.Validate(opts.Bytecode); err != nil {
		return nil, err
	}
	index, err := art.Index(opts.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("failed to index contract %q: %w", art.ContractName, err)
	}
	n.index = index
	n.setState(Loaded)
	logger.Debug("artifact loaded",
		"contract", art.ContractName,
		"sources", len(art.Sources),
		"instructions", index.Instructions().Len(),
		"bytecode", opts.Bytecode)
	return n, nil
}

// State returns the current lifecycle stage.
func (n *Normalizer) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Normalizer) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// begin moves a loaded (or previously finished) normalizer into Normalizing.
func (n *Normalizer) begin() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case Loaded, Done:
		n.state = Normalizing
		return nil
	default:
		return fmt.Errorf("normalizer is %s, expected %s", n.state, Loaded)
	}
}

// SeverityOf maps a tool severity onto a diagnostic severity. Unknown values map to info.
func SeverityOf(tool string) diagnostics.Severity {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case "high":
		return diagnostics.SeverityError
	case "medium":
		return diagnostics.SeverityWarning
	default:
		return diagnostics.SeverityInfo
	}
}

// locate decodes loc into a span and the source it belongs to.
func (n *Normalizer) locate(loc findings.Location) (sourcemap.Span, *artifact.Source, error) {
	switch loc.Format {
	case findings.FormatBytecodeOffset:
		field, _, _ := strings.Cut(loc.SourceMap, ":")
		offset, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || offset < 0 {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap, "invalid bytecode offset")
		}
		instr, ok := n.index.Instructions().Resolve(offset)
		if !ok {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap,
				fmt.Sprintf("offset %d is not an instruction start", offset))
		}
		entry, err := sourcemap.AtIndex(instr, n.index.SourceMap())
		if err != nil {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap, err.Error())
		}
		if !entry.HasSource() {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap,
				fmt.Sprintf("instruction %d has no source", instr))
		}
		src, ok := n.art.SourceByIndex(entry.FileIndex)
		if !ok {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap,
				fmt.Sprintf("unknown file index %d", entry.FileIndex))
		}
		return entry.Span(), src, nil

	case findings.FormatInlineSourceMap:
		span, err := sourcemap.DecodeSingle(loc.SourceMap)
		if err != nil {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap, err.Error())
		}
		if !span.Valid() {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap, "negative span")
		}
		src, ok := n.sourceForInline(span.FileIndex, loc.SourceList)
		if !ok {
			return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap,
				fmt.Sprintf("unknown file index %d", span.FileIndex))
		}
		return span, src, nil

	default:
		return sourcemap.Span{}, nil, errors.NewUnresolvableLocationError(loc.SourceMap,
			fmt.Sprintf("unsupported location format %q", loc.Format))
	}
}

// sourceForInline finds the source an inline location refers to. The finding's own source list
// names the files by path; without one, the index is a compiler file index.
func (n *Normalizer) sourceForInline(fileIndex int, sourceList []string) (*artifact.Source, bool) {
	if fileIndex == sourcemap.NoSource {
		if len(n.art.Sources) == 1 {
			return n.art.PrimarySource()
		}
		return nil, false
	}
	if fileIndex < len(sourceList) {
		if src, ok := n.art.SourceByPath(sourceList[fileIndex]); ok {
			return src, true
		}
	}
	return n.art.SourceByIndex(fileIndex)
}

// IsIgnorable reports whether loc points inside a public array state variable whose generated
// getter analysis tools are known to misreport. Unresolvable locations are never ignorable.
func (n *Normalizer) IsIgnorable(loc findings.Location) bool {
	span, src, err := n.locate(loc)
	if err != nil {
		return false
	}
	return n.ignorableAt(span, src)
}

func (n *Normalizer) ignorableAt(span sourcemap.Span, src *artifact.Source) bool {
	if !n.opts.IgnoreArrayGetters || src.AST == nil {
		return false
	}
	decl := solast.FindEnclosing(src.AST, "VariableDeclaration", span)
	return solast.IsFalsePositiveArrayGetter(decl)
}

// ResolveLocation maps loc onto its source file with a 1-based range. Errors are
// UnresolvableLocationError and are meant to be downgraded by the caller, not returned upward.
func (n *Normalizer) ResolveLocation(loc findings.Location) (Resolved, error) {
	span, src, err := n.locate(loc)
	if err != nil {
		return Resolved{}, err
	}
	return n.resolveAt(loc, span, src)
}

// resolveAt builds the range of an already located span. This is the only place lines become
// 1-based.
func (n *Normalizer) resolveAt(loc findings.Location, span sourcemap.Span, src *artifact.Source) (Resolved, error) {
	lines, ok := n.index.LineIndex(src.ID)
	if !ok {
		return Resolved{}, errors.NewUnresolvableLocationError(loc.SourceMap, "no line index for "+src.Path)
	}
	if span.End() > lines.Size() {
		return Resolved{}, errors.NewUnresolvableLocationError(loc.SourceMap,
			fmt.Sprintf("span ends at %d past the end of %s (%d bytes)", span.End(), src.Path, lines.Size()))
	}
	r := lines.SpanToRange(span.Start, span.Length)
	if !r.Resolved() {
		return Resolved{}, errors.NewUnresolvableLocationError(loc.SourceMap, "span does not map to a line")
	}
	return Resolved{Source: src, FilePath: src.Path, Span: span, Range: r.ToOneBased()}, nil
}

// excerpt marks res in its source. The marker is built from the 0-based span, not res.Range.
func (n *Normalizer) excerpt(res Resolved) string {
	lines, ok := n.index.LineIndex(res.Source.ID)
	if !ok {
		return ""
	}
	return lines.Excerpt(res.Source.Text, lines.SpanToRange(res.Span.Start, res.Span.Length), 3)
}

// ToDiagnostic builds the record for f at res. Messages longer than the configured maximum are
// cut after their first sentence, so some detail can be lost.
func (n *Normalizer) ToDiagnostic(f findings.Finding, res Resolved, excerpt string) diagnostics.Record {
	title := f.Title
	if title == "" {
		title = strings.TrimSpace(f.Description.Head)
	}
	return diagnostics.Record{
		FilePath: res.FilePath,
		Range:    res.Range,
		Severity: SeverityOf(f.Severity),
		Message:  truncateMessage(f.Description.Text(), n.opts.MaxMessageLength),
		RuleID:   f.RuleID(),
		Title:    title,
		Excerpt:  excerpt,
	}
}

func truncateMessage(msg string, limit int) string {
	if limit <= 0 || len(msg) <= limit {
		return msg
	}
	for i := 0; i+1 < len(msg); i++ {
		if msg[i] == '.' && isSpace(msg[i+1]) {
			return msg[:i+1]
		}
	}
	return msg
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// task is one finding/location pair. loc is nil for findings without locations.
type task struct {
	finding *findings.Finding
	loc     *findings.Location
}

type outcome struct {
	record     diagnostics.Record
	suppressed bool
	unresolved bool
}

// Normalize resolves every location of every finding. Findings are processed by up to
// Options.Workers goroutines; the returned records keep input order. Suppressed locations are
// dropped and unresolvable ones are reported on the contract's primary source with an
// unresolved range. Only cancellation of ctx produces an error.
func (n *Normalizer) Normalize(ctx context.Context, fs []findings.Finding) ([]diagnostics.Record, Stats, error) {
	if err := n.begin(); err != nil {
		return nil, Stats{}, err
	}
	defer n.setState(Done)

	var tasks []task
	for i := range fs {
		f := &fs[i]
		if len(f.Locations) == 0 {
			tasks = append(tasks, task{finding: f})
			continue
		}
		for j := range f.Locations {
			tasks = append(tasks, task{finding: f, loc: &f.Locations[j]})
		}
	}

	results := make([]outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.opts.Workers)
	for i := range tasks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = n.process(tasks[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Findings: len(fs), Locations: len(tasks)}
	records := make([]diagnostics.Record, 0, len(results))
	for _, r := range results {
		if r.suppressed {
			stats.Suppressed++
			continue
		}
		if r.unresolved {
			stats.Unresolved++
		}
		records = append(records, r.record)
	}
	stats.Emitted = len(records)

	n.logger.Debug("findings normalized",
		"contract", n.art.ContractName,
		"findings", stats.Findings,
		"emitted", stats.Emitted,
		"suppressed", stats.Suppressed,
		"unresolved", stats.Unresolved)
	return records, stats, nil
}

func (n *Normalizer) process(t task) outcome {
	f := *t.finding
	if t.loc == nil {
		return outcome{record: n.unresolvedRecord(f), unresolved: true}
	}

	span, src, err := n.locate(*t.loc)
	if err == nil && n.ignorableAt(span, src) {
		n.logger.Debug("finding suppressed on public array getter", "swc", f.RuleID(), "location", t.loc.SourceMap)
		return outcome{suppressed: true}
	}

	var res Resolved
	if err == nil {
		res, err = n.resolveAt(*t.loc, span, src)
	}
	if err != nil {
		n.logger.Debug("finding location unresolved", "swc", f.RuleID(), "location", t.loc.SourceMap, "error", err)
		return outcome{record: n.unresolvedRecord(f), unresolved: true}
	}

	var excerpt string
	if n.opts.IncludeExcerpt {
		excerpt = n.excerpt(res)
	}
	return outcome{record: n.ToDiagnostic(f, res, excerpt)}
}

func (n *Normalizer) unresolvedRecord(f findings.Finding) diagnostics.Record {
	res := Resolved{Range: linecol.Unresolved()}
	if src, ok := n.art.PrimarySource(); ok {
		res.Source = src
		res.FilePath = src.Path
	}
	return n.ToDiagnostic(f, res, "")
}

// Run normalizes fs and groups the records per file.
func (n *Normalizer) Run(ctx context.Context, fs []findings.Finding) ([]diagnostics.FileGroup, Stats, error) {
	records, stats, err := n.Normalize(ctx, fs)
	if err != nil {
		return nil, stats, err
	}
	return diagnostics.GroupAndDedupe(records), stats, nil
}
