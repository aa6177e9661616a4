package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/store"
)

const minProcesses = 3

// Job binds the two user functions with the codecs used to move their keys,
// values and results through the intermediate store. Codecs default to JSON.
type Job[K comparable, V any, R any] struct {
	Name   string
	Map    core.MapFunc[K, V]
	Reduce core.ReduceFunc[K, V, R]

	Keys    core.Codec[K]
	Values  core.Codec[V]
	Results core.Codec[R]

	// Format renders one reduce result as an output line. The JSON
	// encoding of the result is used when nil.
	Format func(R) string
}

// Run executes the job over inputs with a fresh engine.
func (j Job[K, V, R]) Run(inputs []string, opts Options) (*Report, error) {
	return NewEngine(j, opts).Run(inputs)
}

func (j Job[K, V, R]) withDefaults() Job[K, V, R] {
	if j.Keys == nil {
		j.Keys = core.JSONCodec[K]{}
	}
	if j.Values == nil {
		j.Values = core.JSONCodec[V]{}
	}
	if j.Results == nil {
		j.Results = core.JSONCodec[R]{}
	}
	if j.Format == nil {
		j.Format = formatJSON[R]
	}
	return j
}

func formatJSON[R any](result R) string {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(b)
}

type Options struct {
	// WorkDir holds one store directory per job run.
	WorkDir string

	// Output is the path of the merged result file.
	Output string

	Backend store.Backend

	// Comma is the csv field delimiter.
	Comma rune

	Logger   logging.Logger
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.WorkDir == "" {
		o.WorkDir = filepath.Join(os.TempDir(), "diskmr")
	}
	if o.Output == "" {
		o.Output = "map_reduce_output.txt"
	}
	if o.Backend == "" {
		o.Backend = store.BackendFS
	}
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// Observer is notified as phases start and units complete. UnitDone may be
// called concurrently.
type Observer interface {
	PhaseStarted(state State, units int)
	UnitDone(state State)
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(State, int) {}
func (nopObserver) UnitDone(State)          {}

type State string

const (
	StateInit              State = "INIT"
	StateValidating        State = "VALIDATING"
	StatePartitionMapGroup State = "PARTITION_MAP_GROUP"
	StateShuffle           State = "SHUFFLE"
	StateReduce            State = "REDUCE"
	StateMerge             State = "MERGE"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

type PhaseTiming struct {
	State    State
	Duration time.Duration
}

type Report struct {
	JobID        uuid.UUID
	Name         string
	State        State
	Inputs       []string
	NumProcesses int
	Output       string
	Phases       []PhaseTiming
	StartedAt    time.Time
	CompletedAt  time.Time
}

func (r *Report) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// NumProcesses is the chunk, bucket and per-file worker count for a job
// over the given number of input files.
func NumProcesses(files int) int {
	return max(minProcesses, files)
}
