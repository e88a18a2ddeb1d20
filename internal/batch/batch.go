// Package batch normalizes the findings of many artifacts concurrently.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/artifact"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/findings"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/issues"
)

const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// Job is one artifact and the findings reported against it. When Artifact is nil it is loaded
// from ArtifactPath. FilterByContract drops findings attributed to a different contract, for
// findings files shared between several artifacts.
type Job struct {
	ArtifactPath     string
	Artifact         *artifact.Artifact
	Findings         []findings.Finding
	FilterByContract bool
}

// Result is the outcome of one Job. Err holds a fatal artifact error; other jobs are unaffected.
type Result struct {
	ArtifactPath string
	Contract     string
	Status       string
	Groups       []diagnostics.FileGroup
	Stats        issues.Stats
	Err          error
}

// Runner processes jobs with a bounded number of goroutines.
type Runner struct {
	parallel int            // Number of artifacts processed at once
	opts     issues.Options // Options passed to every normalizer
	logger   hclog.Logger   // Logger for logging messages and errors
}

// New creates a Runner. parallel below 1 is treated as 1.
func New(parallel int, opts issues.Options, logger hclog.Logger) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{parallel: parallel, opts: opts, logger: logger}
}

// Run processes jobs and returns one Result per job in input order. Only cancellation of ctx
// produces an error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	runID := uuid.New().String()
	lg := r.logger.With("run", runID)
	lg.Info("batch starting", "total", len(jobs), "goroutines", r.parallel)
	started := time.Now()

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runJob(gctx, jobs[i], lg.With("#", i+1))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lg.Info("batch finished", "total", len(jobs), "failed", len(Failed(results)), "elapsed", time.Since(started).String())
	return results, nil
}

// runJob returns an error only when ctx is cancelled; artifact failures land on the Result.
func (r *Runner) runJob(ctx context.Context, job Job, lg hclog.Logger) (Result, error) {
	res := Result{ArtifactPath: job.ArtifactPath, Status: StatusOK}

	art := job.Artifact
	if art == nil {
		loaded, err := artifact.Load(job.ArtifactPath)
		if err != nil {
			lg.Error("failed to load artifact", "path", job.ArtifactPath, "error", err)
			return markFailed(res, fmt.Errorf("failed to load artifact %q: %w", job.ArtifactPath, err)), nil
		}
		art = loaded
	}
	res.Contract = art.ContractName

	n, err := issues.New(art, r.opts, lg.Named(art.ContractName))
	if err != nil {
		lg.Error("cannot analyze this contract", "contract", art.ContractName, "error", err)
		return markFailed(res, err), nil
	}

	fs := job.Findings
	if job.FilterByContract {
		fs = findings.ForContract(fs, art.ContractName)
	}
	groups, stats, err := n.Run(ctx, fs)
	if err != nil {
		return Result{}, err
	}
	if stats.Unresolved > 0 {
		lg.Warn("some findings could not be located", "contract", art.ContractName, "unresolved", stats.Unresolved)
	}
	res.Groups = groups
	res.Stats = stats
	return res, nil
}

func markFailed(res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	return res
}

// Run is a convenience wrapper around New(...).Run.
func Run(ctx context.Context, jobs []Job, parallel int, opts issues.Options, logger hclog.Logger) ([]Result, error) {
	return New(parallel, opts, logger).Run(ctx, jobs)
}

// Merge combines the groups of successful results into one deduplicated list, keeping job order.
func Merge(results []Result) []diagnostics.FileGroup {
	var records []diagnostics.Record
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		records = append(records, diagnostics.Flatten(res.Groups)...)
	}
	return diagnostics.GroupAndDedupe(records)
}

// Failed returns the results that carry a fatal error.
func Failed(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}
