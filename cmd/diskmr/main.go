package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nemanja-m/diskmr/internal/shared/config"
	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/engine"
	"github.com/nemanja-m/diskmr/pkg/jobs"
	"github.com/nemanja-m/diskmr/pkg/record"
	"github.com/nemanja-m/diskmr/pkg/store"

	_ "github.com/nemanja-m/diskmr/examples/filter"
	_ "github.com/nemanja-m/diskmr/examples/numeric"
	_ "github.com/nemanja-m/diskmr/examples/wordcount"
)

const usage = `usage: diskmr <command> [flags] [args]

commands:
  run [flags] <input>...   run a job over input files or glob patterns
  jobs                     list registered jobs
  inspect <artifact>       print an intermediate artifact of the fs store
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "jobs":
		listJobs()
	case "inspect":
		err = inspectCommand(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger := logging.New(os.Stderr, slog.LevelInfo, "text")
		if engine.IsConfigurationError(err) {
			logger.Fatal("Invalid job", "error", err)
		}
		logger.Fatal("Job failed", "error", err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "config file (default diskmr.yaml in ./config or .)")
		jobName    = fs.String("job", "", "job to run; chosen by input extension when empty")
		output     = fs.String("output", "", "output file (overrides config)")
		workDir    = fs.String("work-dir", "", "directory for intermediate stores (overrides config)")
		backend    = fs.String("backend", "", "intermediate store backend: fs or bbolt (overrides config)")
		progress   = fs.Bool("progress", false, "show phase progress bars")
		column     = fs.String("column", "", "numeric: 1-based column index")
		attr       = fs.String("attr", "", "filter: attribute name")
		value      = fs.String("value", "", "filter: attribute value")
	)
	fs.Parse(args)

	cfg, err := config.LoadEngine(*configPath)
	if err != nil {
		return err
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *progress {
		cfg.Progress = true
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level, cfg.Logging.Format)

	inputs, err := engine.ExpandInputs(fs.Args())
	if err != nil {
		return fmt.Errorf("expand inputs: %w", err)
	}

	entry, err := selectJob(*jobName, inputs)
	if err != nil {
		return err
	}

	params := make(map[string]string)
	for name, v := range map[string]string{"column": *column, "attr": *attr, "value": *value} {
		if v != "" {
			params[name] = v
		}
	}
	runner, err := entry.Build(params)
	if err != nil {
		return err
	}

	opts := engine.Options{
		WorkDir: cfg.WorkDir,
		Output:  cfg.Output,
		Backend: store.Backend(cfg.Store.Backend),
		Comma:   cfg.Comma(),
		Logger:  logger,
	}
	var observer *progressObserver
	if cfg.Progress {
		observer = newProgressObserver(os.Stderr)
		opts.Observer = observer
	}

	logger.Info("Running job", "job", entry.Name, "inputs", len(inputs), "output", cfg.Output)
	report, err := runner.Run(inputs, opts)
	if observer != nil {
		observer.finish()
	}
	if err != nil {
		return err
	}

	phases := make([]string, 0, len(report.Phases))
	for _, phase := range report.Phases {
		phases = append(phases, fmt.Sprintf("%s=%s", strings.ToLower(string(phase.State)), phase.Duration))
	}
	var outputSize string
	if info, err := os.Stat(report.Output); err == nil {
		outputSize = humanize.Bytes(uint64(info.Size()))
	}
	logger.Info("Job completed",
		"job_id", report.JobID.String(),
		"processes", report.NumProcesses,
		"output", report.Output,
		"output_size", outputSize,
		"duration", report.Duration(),
		"phases", strings.Join(phases, " "),
	)
	return nil
}

// selectJob resolves the job by name, or by the first input's extension
// when name is empty. A named job must read the inputs' format.
func selectJob(name string, inputs []string) (jobs.Entry, error) {
	var (
		format   core.Format
		detected bool
	)
	if len(inputs) > 0 {
		format, detected = core.ParseFormat(filepath.Ext(inputs[0]))
	}

	if name != "" {
		entry, err := jobs.Get(name)
		if err != nil {
			return jobs.Entry{}, fmt.Errorf("unknown job %q, available jobs: %v", name, jobs.List())
		}
		if detected && entry.Format != format {
			return jobs.Entry{}, &core.ConfigurationError{
				Rule: "format",
				Err:  fmt.Errorf("%w: job %s reads %s input, got %q", core.ErrUnsupportedFormat, entry.Name, entry.Format, inputs[0]),
			}
		}
		return entry, nil
	}

	if len(inputs) == 0 {
		return jobs.Entry{}, &core.ConfigurationError{Rule: "inputs", Err: core.ErrEmptyInput}
	}
	if !detected {
		return jobs.Entry{}, &core.ConfigurationError{
			Rule: "format",
			Err:  fmt.Errorf("%w %q, supported formats are %v", core.ErrUnsupportedFormat, filepath.Ext(inputs[0]), core.SupportedFormats()),
		}
	}
	return jobs.ForFormat(format)
}

func listJobs() {
	for _, name := range jobs.List() {
		entry, _ := jobs.Get(name)
		params := ""
		if len(entry.Params) > 0 {
			params = " -" + strings.Join(entry.Params, " -")
		}
		fmt.Printf("%-10s %-5s %s%s\n", entry.Name, entry.Format, entry.Describe, params)
	}
}

// inspectCommand prints a unit written by the filesystem store. Chunks are
// raw input bytes; every other stage holds framed records.
func inspectCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("inspect takes exactly one artifact path")
	}
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasPrefix(filepath.Base(path), string(store.StageChunk)+"-") {
		_, err := io.Copy(os.Stdout, f)
		return err
	}
	n, err := record.Dump(os.Stdout, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d records\n", n)
	return nil
}
