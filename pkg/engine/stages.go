package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/record"
	"github.com/nemanja-m/diskmr/pkg/store"
)

// grouping is an insertion-ordered key -> values mapping over encoded keys.
type grouping struct {
	index   map[string]int
	records []record.Record
}

func newGrouping() *grouping {
	return &grouping{index: make(map[string]int)}
}

func (g *grouping) add(key []byte, values ...[]byte) {
	i, ok := g.index[string(key)]
	if !ok {
		i = len(g.records)
		g.index[string(key)] = i
		g.records = append(g.records, record.Record{Key: key})
	}
	g.records[i].Values = append(g.records[i].Values, values...)
}

func (g *grouping) write(w io.Writer) error {
	return writeRecords(w, g.records)
}

// slice returns the records at positions offset, offset+stride, ...
func (g *grouping) slice(offset, stride int) []record.Record {
	var out []record.Record
	for i := offset; i < len(g.records); i += stride {
		out = append(out, g.records[i])
	}
	return out
}

func writeRecords(w io.Writer, records []record.Record) error {
	rw := record.NewWriter(w)
	for _, rec := range records {
		if err := rw.Write(rec); err != nil {
			return err
		}
	}
	return rw.Flush()
}

func invoke[T any](stage, unit string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.WorkerError{Stage: stage, Unit: unit, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = fn()
	if err != nil {
		return result, &core.WorkerError{Stage: stage, Unit: unit, Err: err}
	}
	return result, nil
}

// mapChunk runs the mapper once over a chunk, persists its pairs and then
// deletes the chunk.
func (e *Engine[K, V, R]) mapChunk(s store.Store, file string, format core.Format, index int) error {
	unit := store.ChunkAddress(file, index).String()
	logger := e.logger.With("file", file, "chunk", index)
	logger.Debug("Starting map task")

	return store.Consume(s, store.ChunkAddress(file, index), func(r io.Reader) error {
		chunk := core.Chunk{Reader: r, File: file, Index: index, Format: format, Comma: e.opts.Comma}
		pairs, err := invoke("map", unit, func() ([]core.Pair[K, V], error) {
			return e.job.Map(chunk)
		})
		if err != nil {
			return err
		}

		records := make([]record.Record, 0, len(pairs))
		for _, pair := range pairs {
			key, err := e.job.Keys.Encode(pair.Key)
			if err != nil {
				return &core.WorkerError{Stage: "map", Unit: unit, Err: fmt.Errorf("encode key: %w", err)}
			}
			value, err := e.job.Values.Encode(pair.Value)
			if err != nil {
				return &core.WorkerError{Stage: "map", Unit: unit, Err: fmt.Errorf("encode value: %w", err)}
			}
			records = append(records, record.Record{Key: key, Values: [][]byte{value}})
		}

		if err := store.Produce(s, store.MapAddress(file, index), func(w io.Writer) error {
			return writeRecords(w, records)
		}); err != nil {
			return err
		}
		logger.Debug("Completed map task", "pairs", len(pairs))
		return nil
	})
}

// groupChunk folds one chunk's map output into key -> values, keeping keys
// in first-seen order and values in arrival order.
func (e *Engine[K, V, R]) groupChunk(s store.Store, file string, index int) error {
	return store.Consume(s, store.MapAddress(file, index), func(r io.Reader) error {
		g := newGrouping()
		if err := record.ReadAll(r, func(rec record.Record) error {
			g.add(rec.Key, rec.Values...)
			return nil
		}); err != nil {
			return &core.StoreError{Op: "read", Address: store.MapAddress(file, index).String(), Err: err}
		}

		if err := store.Produce(s, store.GroupAddress(file, index), g.write); err != nil {
			return err
		}
		e.logger.Debug("Grouped chunk", "file", file, "chunk", index, "keys", len(g.records))
		return nil
	})
}

// shuffle merges every grouping, files in input order and chunks ascending,
// into one global grouping and deals its entries round-robin into n buckets.
func (e *Engine[K, V, R]) shuffle(s store.Store, files []string, n int) error {
	global := newGrouping()
	for _, file := range files {
		for index := range n {
			addr := store.GroupAddress(file, index)
			if err := store.Consume(s, addr, func(r io.Reader) error {
				return record.ReadAll(r, func(rec record.Record) error {
					global.add(rec.Key, rec.Values...)
					return nil
				})
			}); err != nil {
				return err
			}
			e.opts.Observer.UnitDone(StateShuffle)
		}
	}

	for bucket := range n {
		records := global.slice(bucket, n)
		if err := store.Produce(s, store.BucketAddress(bucket), func(w io.Writer) error {
			return writeRecords(w, records)
		}); err != nil {
			return err
		}
	}

	e.logger.Info("Shuffle completed", "keys", len(global.records), "buckets", n)
	return nil
}

// reduceBucket runs the reducer once over a whole bucket.
func (e *Engine[K, V, R]) reduceBucket(s store.Store, index int) error {
	addr := store.BucketAddress(index)
	unit := addr.String()

	return store.Consume(s, addr, func(r io.Reader) error {
		bucket := core.Bucket[K, V]{Index: index}
		if err := record.ReadAll(r, func(rec record.Record) error {
			key, err := e.job.Keys.Decode(rec.Key)
			if err != nil {
				return fmt.Errorf("decode key: %w", err)
			}
			group := core.Group[K, V]{Key: key, Values: make([]V, 0, len(rec.Values))}
			for _, raw := range rec.Values {
				value, err := e.job.Values.Decode(raw)
				if err != nil {
					return fmt.Errorf("decode value: %w", err)
				}
				group.Values = append(group.Values, value)
			}
			bucket.Groups = append(bucket.Groups, group)
			return nil
		}); err != nil {
			return &core.WorkerError{Stage: "reduce", Unit: unit, Err: err}
		}

		result, err := invoke("reduce", unit, func() (R, error) {
			return e.job.Reduce(bucket)
		})
		if err != nil {
			return err
		}

		encoded, err := e.job.Results.Encode(result)
		if err != nil {
			return &core.WorkerError{Stage: "reduce", Unit: unit, Err: fmt.Errorf("encode result: %w", err)}
		}
		if err := store.Produce(s, store.ReduceAddress(index), func(w io.Writer) error {
			return writeRecords(w, []record.Record{{Values: [][]byte{encoded}}})
		}); err != nil {
			return err
		}

		e.logger.Debug("Completed reduce task", "bucket", index, "keys", len(bucket.Groups))
		return nil
	})
}

// merge writes one line per reduce result, in bucket order, to the output.
func (e *Engine[K, V, R]) merge(s store.Store, n int) (err error) {
	if dir := filepath.Dir(e.opts.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(e.opts.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for index := range n {
		addr := store.ReduceAddress(index)
		if err := store.Consume(s, addr, func(r io.Reader) error {
			var encoded []byte
			if err := record.ReadAll(r, func(rec record.Record) error {
				if len(rec.Values) == 1 {
					encoded = rec.Values[0]
				}
				return nil
			}); err != nil {
				return err
			}
			if encoded == nil {
				return fmt.Errorf("%w: empty reduce result", core.ErrArtifactMissing)
			}

			result, err := e.job.Results.Decode(encoded)
			if err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			_, err = fmt.Fprintln(w, e.job.Format(result))
			return err
		}); err != nil {
			return &core.StoreError{Op: "merge", Address: addr.String(), Err: err}
		}
		e.opts.Observer.UnitDone(StateMerge)
	}
	return w.Flush()
}
