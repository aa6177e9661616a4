package partition

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/nemanja-m/diskmr/pkg/core"
)

func (p *Partitioner) newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = p.comma
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	return reader
}

// countRows returns the number of data rows, excluding the header.
func (p *Partitioner) countRows(path string) (int, error) {
	f, err := openInput(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := p.newCSVReader(f)
	rows := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, &core.PartitionError{File: path, Err: err}
		}
		rows++
	}
	if rows == 0 {
		return 0, &core.PartitionError{File: path, Err: core.ErrEmptyFile}
	}
	return rows - 1, nil
}

// partitionCSV makes two streaming passes: one to count rows, one to copy
// them into chunks. The header row is not copied.
func (p *Partitioner) partitionCSV(path, name string, n int) error {
	rows, err := p.countRows(path)
	if err != nil {
		return err
	}
	rowLimit := rows / n

	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := p.newCSVReader(f)
	if _, err := reader.Read(); err != nil {
		return &core.PartitionError{File: path, Err: err}
	}

	seq, err := p.newSequence(name, n)
	if err != nil {
		return err
	}
	writer := p.newCSVWriter(seq.cur)

	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			seq.abort()
			return &core.PartitionError{File: path, Err: err}
		}

		index := n - 1
		if rowLimit > 0 {
			index = min(row/rowLimit, n-1)
		}
		if index != seq.index {
			writer.Flush()
			if err := writer.Error(); err != nil {
				seq.abort()
				return err
			}
			if err := seq.advance(index); err != nil {
				seq.abort()
				return err
			}
			writer = p.newCSVWriter(seq.cur)
		}

		if err := writer.Write(record); err != nil {
			seq.abort()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		seq.abort()
		return err
	}
	return seq.finish()
}

func (p *Partitioner) newCSVWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = p.comma
	return writer
}
