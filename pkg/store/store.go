package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nemanja-m/diskmr/pkg/core"
)

type Stage string

const (
	StageChunk  Stage = "part"
	StageMap    Stage = "map"
	StageGroup  Stage = "inter"
	StageBucket Stage = "shuffled"
	StageReduce Stage = "reduce"
)

// Address identifies one intermediate unit. Owner is the input file
// basename for per-file stages and empty for bucket-indexed stages.
type Address struct {
	Stage Stage
	Owner string
	Index int
}

func ChunkAddress(file string, index int) Address {
	return Address{Stage: StageChunk, Owner: file, Index: index}
}

func MapAddress(file string, index int) Address {
	return Address{Stage: StageMap, Owner: file, Index: index}
}

func GroupAddress(file string, index int) Address {
	return Address{Stage: StageGroup, Owner: file, Index: index}
}

func BucketAddress(index int) Address {
	return Address{Stage: StageBucket, Index: index}
}

func ReduceAddress(index int) Address {
	return Address{Stage: StageReduce, Index: index}
}

func (a Address) String() string {
	if a.Owner == "" {
		return fmt.Sprintf("%s-%04d", a.Stage, a.Index)
	}
	return fmt.Sprintf("%s-%s-%04d", a.Stage, a.Owner, a.Index)
}

// Store holds write-once, read-once intermediate units. Each address has
// exactly one producer and one consumer; the orchestrator's phase barriers
// order them, so implementations need no per-unit locking.
type Store interface {
	// Create opens a new unit for writing. The unit becomes readable once
	// the returned writer is closed. Creating an existing unit fails.
	Create(addr Address) (io.WriteCloser, error)
	Open(addr Address) (io.ReadCloser, error)
	Remove(addr Address) error
	// Root is the directory that holds the store's data.
	Root() string
	Close() error
}

// Consume reads a unit and deletes it once fn returns successfully.
func Consume(s Store, addr Address, fn func(io.Reader) error) error {
	r, err := s.Open(addr)
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		r.Close()
		return err
	}
	if err := r.Close(); err != nil {
		return storeError("close", addr, err)
	}
	return s.Remove(addr)
}

// Produce creates a unit and lets fn fill it.
func Produce(s Store, addr Address, fn func(io.Writer) error) error {
	w, err := s.Create(addr)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return storeError("close", addr, err)
	}
	return nil
}

const jobDirPrefix = "job-"

// JobDir returns the per-job store root under workDir.
func JobDir(workDir, jobID string) string {
	return filepath.Join(workDir, jobDirPrefix+jobID)
}

// Purge removes every per-job store left under workDir by earlier runs.
func Purge(workDir string) error {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(workDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

type Backend string

const (
	BackendFS   Backend = "fs"
	BackendBolt Backend = "bbolt"
)

// New opens a store of the given backend rooted at dir.
func New(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFS, "":
		return NewFileStore(dir)
	case BackendBolt:
		return NewBoltStore(dir)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

func storeError(op string, addr Address, err error) error {
	var se *core.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &core.StoreError{Op: op, Address: addr.String(), Err: err}
}
