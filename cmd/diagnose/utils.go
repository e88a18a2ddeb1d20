package diagnose

import (
	"bytes"
	"fmt"
	"io"

	"github.com/juanfranblanco/vscode-solidity-sub001/internal/artifact"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/batch"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/config"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/diagnostics"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/findings"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/issues"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/report"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/files"
)

// determineFormat picks the flag value over the configured one.
func determineFormat(cfg *config.Config, o *RunOptionsDiagnose) (report.Format, error) {
	return report.ParseFormat(config.SetThen(o.Format, cfg.Output.Format))
}

func determineOutputPath(cfg *config.Config, o *RunOptionsDiagnose) string {
	return config.SetThen(o.OutputPath, cfg.Output.Path)
}

// buildNormalizerOptions merges the normalizer section of cfg with the command flags.
func buildNormalizerOptions(cfg *config.Config, o *RunOptionsDiagnose) (issues.Options, error) {
	kind, err := artifact.ParseBytecodeKind(cfg.Normalizer.Bytecode)
	if err != nil {
		return issues.Options{}, err
	}
	if o.Creation {
		kind = artifact.Creation
	}
	return issues.Options{
		IgnoreArrayGetters: config.GetBoolValue(cfg, "Normalizer.IgnoreArrayGetters", true) && !o.NoIgnore,
		IncludeExcerpt:     config.GetBoolValue(cfg, "Normalizer.IncludeExcerpt", false) || o.Excerpt,
		MaxMessageLength:   config.GetIntValue(cfg.Normalizer.MaxMessageLength, config.DefaultMaxMessageLength),
		Bytecode:           kind,
		Workers:            config.SetThen(cfg.Normalizer.Workers, config.DefaultWorkers),
	}, nil
}

// prepareJobs loads the findings files and pairs them with artifacts. A single findings file is
// shared by every artifact and filtered by contract name.
func prepareJobs(o *RunOptionsDiagnose) ([]batch.Job, error) {
	sets := make([][]findings.Finding, len(o.Findings))
	for i, path := range o.Findings {
		fs, err := findings.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read findings %q: %w", path, err)
		}
		sets[i] = fs
	}

	sharedSet := len(sets) == 1
	jobs := make([]batch.Job, len(o.Artifacts))
	for i, path := range o.Artifacts {
		job := batch.Job{ArtifactPath: path}
		if sharedSet {
			job.Findings = sets[0]
			job.FilterByContract = len(o.Artifacts) > 1
		} else {
			job.Findings = sets[i]
		}
		jobs[i] = job
	}
	return jobs, nil
}

// reportFileName is used when the output path names a directory.
func reportFileName(format report.Format) string {
	ext := string(format)
	if format == report.FormatTable {
		ext = "txt"
	}
	return "soldiag-report." + ext
}

// writeReport renders groups to stdout, or to outputPath when one is set.
func writeReport(stdout io.Writer, format report.Format, groups []diagnostics.FileGroup, outputPath string, opts report.Options) error {
	if outputPath == "" {
		return report.Write(stdout, format, groups, opts)
	}

	fullPath, folder, err := files.DetermineFileFullPath(outputPath, reportFileName(format))
	if err != nil {
		return err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, groups, opts); err != nil {
		return err
	}
	if err := files.WriteFile(fullPath, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write report to %q: %w", fullPath, err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("report saved", "path", fullPath, "format", format)
	}
	return nil
}
