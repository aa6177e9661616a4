package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/partition"
	"github.com/nemanja-m/diskmr/pkg/store"
)

// Engine drives one job through validation, partition/map/group, shuffle,
// reduce and merge. Every phase ends with a barrier: no unit of the next
// phase is read before all units of the previous one are written.
type Engine[K comparable, V any, R any] struct {
	job    Job[K, V, R]
	opts   Options
	id     uuid.UUID
	state  State
	logger logging.Logger
}

func NewEngine[K comparable, V any, R any](job Job[K, V, R], opts Options) *Engine[K, V, R] {
	opts = opts.withDefaults()
	id := uuid.New()
	return &Engine[K, V, R]{
		job:    job.withDefaults(),
		opts:   opts,
		id:     id,
		state:  StateInit,
		logger: opts.Logger.With("job_id", id.String()),
	}
}

func (e *Engine[K, V, R]) ID() uuid.UUID {
	return e.id
}

func (e *Engine[K, V, R]) State() State {
	return e.state
}

func (e *Engine[K, V, R]) transition(to State) {
	e.logger.Debug("Job state changed", "from", string(e.state), "to", string(to))
	e.state = to
}

func (e *Engine[K, V, R]) Run(inputs []string) (*Report, error) {
	report := &Report{
		JobID:     e.id,
		Name:      e.job.Name,
		Inputs:    inputs,
		Output:    e.opts.Output,
		StartedAt: time.Now().UTC(),
	}
	err := e.run(inputs, report)
	report.State = e.state
	report.CompletedAt = time.Now().UTC()
	return report, err
}

func (e *Engine[K, V, R]) run(inputs []string, report *Report) error {
	e.transition(StateValidating)
	format, err := Validate(e.job, inputs)
	if err != nil {
		e.logger.Error("Job validation failed", "error", err)
		if purgeErr := store.Purge(e.opts.WorkDir); purgeErr != nil {
			e.logger.Warn("Failed to clear intermediate artifacts", "work_dir", e.opts.WorkDir, "error", purgeErr)
		}
		e.transition(StateFailed)
		return err
	}

	n := NumProcesses(len(inputs))
	report.NumProcesses = n
	files := make([]string, len(inputs))
	for i, path := range inputs {
		files[i] = filepath.Base(path)
	}

	if err := os.MkdirAll(e.opts.WorkDir, 0o755); err != nil {
		e.transition(StateFailed)
		return err
	}
	e.checkFreeSpace(inputs)

	s, err := store.New(e.opts.Backend, store.JobDir(e.opts.WorkDir, e.id.String()))
	if err != nil {
		e.transition(StateFailed)
		return err
	}

	e.logger.Info("Starting job",
		"name", e.job.Name,
		"inputs", len(inputs),
		"format", string(format),
		"processes", n,
		"store", s.Root(),
		"backend", string(e.opts.Backend),
	)

	phases := []struct {
		state State
		units int
		run   func() error
	}{
		{StatePartitionMapGroup, len(inputs) * n, func() error { return e.runMapPhase(s, inputs, format, n) }},
		{StateShuffle, len(inputs) * n, func() error { return e.shuffle(s, files, n) }},
		{StateReduce, n, func() error { return e.runReducePhase(s, n) }},
		{StateMerge, n, func() error { return e.merge(s, n) }},
	}

	for _, phase := range phases {
		e.transition(phase.state)
		e.opts.Observer.PhaseStarted(phase.state, phase.units)

		started := time.Now()
		if err := phase.run(); err != nil {
			e.logger.Error("Job failed", "state", string(phase.state), "error", err, "store", s.Root())
			s.Close()
			e.transition(StateFailed)
			return err
		}
		report.Phases = append(report.Phases, PhaseTiming{State: phase.state, Duration: time.Since(started)})
	}

	if err := s.Close(); err != nil {
		e.logger.Warn("Failed to close store", "error", err)
	}
	if err := os.RemoveAll(s.Root()); err != nil {
		e.logger.Warn("Failed to remove store directory", "store", s.Root(), "error", err)
	}

	e.transition(StateDone)
	e.logger.Info("Job completed", "output", e.opts.Output)
	return nil
}

// runMapPhase schedules one task per file on a single pool. Each file task
// partitions its file and then submits one map+group task per chunk, so the
// pool holds two levels of work with at most files*n running at once.
func (e *Engine[K, V, R]) runMapPhase(s store.Store, inputs []string, format core.Format, n int) error {
	partitioner := partition.New(s,
		partition.WithComma(e.opts.Comma),
		partition.WithLogger(e.logger),
	)

	pool := NewPool(len(inputs) * n)
	for _, path := range inputs {
		pool.Submit(func() error {
			if err := partitioner.Partition(path, n); err != nil {
				return err
			}

			file := filepath.Base(path)
			for index := range n {
				pool.Submit(func() error {
					if err := e.mapChunk(s, file, format, index); err != nil {
						return err
					}
					if err := e.groupChunk(s, file, index); err != nil {
						return err
					}
					e.opts.Observer.UnitDone(StatePartitionMapGroup)
					return nil
				})
			}
			return nil
		})
	}
	return pool.Wait()
}

func (e *Engine[K, V, R]) runReducePhase(s store.Store, n int) error {
	pool := NewPool(n)
	for index := range n {
		pool.Submit(func() error {
			if err := e.reduceBucket(s, index); err != nil {
				return err
			}
			e.opts.Observer.UnitDone(StateReduce)
			return nil
		})
	}
	return pool.Wait()
}

// checkFreeSpace warns when the work directory's filesystem has less free
// space than the inputs occupy; every input is copied once as chunks.
func (e *Engine[K, V, R]) checkFreeSpace(inputs []string) {
	var total uint64
	for _, path := range inputs {
		if info, err := os.Stat(path); err == nil {
			total += uint64(info.Size())
		}
	}

	available, err := store.AvailableBytes(e.opts.WorkDir)
	if err != nil {
		e.logger.Debug("Skipping free space check", "error", err)
		return
	}
	if available < total {
		e.logger.Warn("Work directory may run out of space",
			"work_dir", e.opts.WorkDir,
			"available", humanize.Bytes(available),
			"inputs", humanize.Bytes(total),
		)
	}
}

// Validate checks a job before any worker starts and returns the input
// format shared by all files.
func Validate[K comparable, V any, R any](job Job[K, V, R], inputs []string) (core.Format, error) {
	if len(inputs) == 0 {
		return "", &core.ConfigurationError{Rule: "inputs", Err: core.ErrEmptyInput}
	}
	if job.Map == nil || job.Reduce == nil {
		return "", &core.ConfigurationError{Rule: "functions", Err: core.ErrInvalidFunctions}
	}

	ext := filepath.Ext(inputs[0])
	for _, path := range inputs[1:] {
		if filepath.Ext(path) != ext {
			return "", &core.ConfigurationError{
				Rule: "format",
				Err:  fmt.Errorf("%w: %q and %q", core.ErrMixedFormats, inputs[0], path),
			}
		}
	}
	format, ok := core.ParseFormat(ext)
	if !ok {
		return "", &core.ConfigurationError{
			Rule: "format",
			Err:  fmt.Errorf("%w %q, supported formats are %v", core.ErrUnsupportedFormat, ext, core.SupportedFormats()),
		}
	}

	seen := make(map[string]string, len(inputs))
	for _, path := range inputs {
		name := filepath.Base(path)
		if prev, ok := seen[name]; ok {
			return "", &core.ConfigurationError{
				Rule: "names",
				Err:  fmt.Errorf("%w: %q and %q", core.ErrDuplicateBasename, prev, path),
			}
		}
		seen[name] = path
	}

	return format, nil
}

// IsConfigurationError reports whether err was raised by validation.
func IsConfigurationError(err error) bool {
	var configErr *core.ConfigurationError
	return errors.As(err, &configErr)
}
