// Package partition splits input files into exactly N chunks and writes them
// to the intermediate store.
//
// Each format has its own boundary rule:
//
//   - txt:  contiguous byte ranges of about ceil(size/N) bytes, cut only after
//     a whitespace byte so no word is split. The last chunk absorbs the rest.
//   - csv:  the header is dropped and data rows are assigned in contiguous runs
//     of floor(rows/N); the last chunk absorbs the remainder.
//   - json: records are assigned round-robin, record i going to chunk i mod N.
//     Every chunk is written as a JSON array.
//
// The json policy is deliberately not contiguous like the other two.
package partition

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/store"
)

type Partitioner struct {
	store  store.Store
	comma  rune
	logger logging.Logger
}

type Option func(*Partitioner)

// WithComma sets the field delimiter used for csv inputs.
func WithComma(comma rune) Option {
	return func(p *Partitioner) {
		p.comma = comma
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(p *Partitioner) {
		p.logger = logger
	}
}

func New(s store.Store, opts ...Option) *Partitioner {
	p := &Partitioner{
		store:  s,
		comma:  ',',
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Partition splits the file at path into n chunks addressed by the file's
// basename. The format is taken from the file extension.
func (p *Partitioner) Partition(path string, n int) error {
	if n <= 0 {
		return &core.PartitionError{File: path, Err: fmt.Errorf("chunk count must be positive, got %d", n)}
	}

	format, ok := core.ParseFormat(filepath.Ext(path))
	if !ok {
		return &core.PartitionError{File: path, Err: fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, filepath.Ext(path))}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &core.PartitionError{File: path, Err: err}
	}
	if info.Size() == 0 {
		return &core.PartitionError{File: path, Err: core.ErrEmptyFile}
	}

	name := filepath.Base(path)
	p.logger.Info("Partitioning file",
		"file", name,
		"format", string(format),
		"size", humanize.Bytes(uint64(info.Size())),
		"chunks", n,
	)

	switch format {
	case core.FormatCSV:
		err = p.partitionCSV(path, name, n)
	case core.FormatJSON:
		err = p.partitionJSON(path, name, n)
	default:
		err = p.partitionText(path, name, info.Size(), n)
	}
	if err != nil {
		return err
	}

	p.logger.Debug("Partitioned file", "file", name, "chunks", n)
	return nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.PartitionError{File: path, Err: err}
	}
	return f, nil
}

// chunkWriter buffers writes to one chunk unit.
type chunkWriter struct {
	*bufio.Writer
	unit io.WriteCloser
}

func (p *Partitioner) createChunk(name string, index int) (*chunkWriter, error) {
	unit, err := p.store.Create(store.ChunkAddress(name, index))
	if err != nil {
		return nil, err
	}
	return &chunkWriter{Writer: bufio.NewWriter(unit), unit: unit}, nil
}

func (c *chunkWriter) Close() error {
	if err := c.Flush(); err != nil {
		c.unit.Close()
		return err
	}
	return c.unit.Close()
}

// sequence hands out chunk writers in ascending index order, creating empty
// units for any index that is skipped.
type sequence struct {
	p     *Partitioner
	name  string
	n     int
	index int
	cur   *chunkWriter
}

func (p *Partitioner) newSequence(name string, n int) (*sequence, error) {
	cur, err := p.createChunk(name, 0)
	if err != nil {
		return nil, err
	}
	return &sequence{p: p, name: name, n: n, cur: cur}, nil
}

func (s *sequence) advance(index int) error {
	for s.index < index && s.index < s.n-1 {
		if err := s.cur.Close(); err != nil {
			return err
		}
		s.index++
		next, err := s.p.createChunk(s.name, s.index)
		if err != nil {
			s.cur = nil
			return err
		}
		s.cur = next
	}
	return nil
}

// finish closes the current chunk and materializes the remaining empty ones.
func (s *sequence) finish() error {
	if err := s.advance(s.n - 1); err != nil {
		return err
	}
	return s.cur.Close()
}

// abort releases the open chunk after a failure.
func (s *sequence) abort() {
	if s.cur != nil {
		s.cur.Close()
	}
}
