package partition

import (
	"bufio"
	"errors"
	"io"

	"github.com/nemanja-m/diskmr/pkg/core"
)

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// partitionText streams the file byte by byte. A chunk is closed after the
// first whitespace byte that pushes the running count past target times the
// current chunk number. Without whitespace near a boundary the final chunk
// ends up larger than the others.
func (p *Partitioner) partitionText(path, name string, size int64, n int) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	target := (size + int64(n) - 1) / int64(n)

	seq, err := p.newSequence(name, n)
	if err != nil {
		return err
	}

	r := bufio.NewReader(f)
	var count int64
	for {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			seq.abort()
			return &core.PartitionError{File: path, Err: err}
		}

		if err := seq.cur.WriteByte(b); err != nil {
			seq.abort()
			return err
		}
		count++

		chunkNumber := int64(seq.index + 1)
		if seq.index < n-1 && isSpace(b) && count > target*chunkNumber {
			if err := seq.advance(seq.index + 1); err != nil {
				seq.abort()
				return err
			}
		}
	}

	return seq.finish()
}
