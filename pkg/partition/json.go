package partition

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nemanja-m/diskmr/pkg/core"
)

// loadRecords materializes every record of a json input. The file may hold a
// single top-level array, whose elements are the records, or a stream of
// values, one per line or otherwise whitespace separated, each of which is a
// record. A leading array followed by more values is read as a stream.
func loadRecords(path string) ([]json.RawMessage, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	first, err := peekNonSpace(r)
	if errors.Is(err, io.EOF) {
		return nil, &core.PartitionError{File: path, Err: core.ErrEmptyFile}
	}
	if err != nil {
		return nil, &core.PartitionError{File: path, Err: err}
	}

	if first == '[' {
		dec := json.NewDecoder(r)
		records, err := decodeArray(dec)
		if err != nil {
			return nil, &core.PartitionError{File: path, Err: err}
		}
		var next json.RawMessage
		if err := dec.Decode(&next); errors.Is(err, io.EOF) {
			return records, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, &core.PartitionError{File: path, Err: err}
		}
		r = bufio.NewReader(f)
	}

	records, err := decodeStream(json.NewDecoder(r))
	if err != nil {
		return nil, &core.PartitionError{File: path, Err: err}
	}
	return records, nil
}

func decodeArray(dec *json.Decoder) ([]json.RawMessage, error) {
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var records []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		records = append(records, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("unterminated array: %w", err)
	}
	return records, nil
}

func decodeStream(dec *json.Decoder) ([]json.RawMessage, error) {
	var records []json.RawMessage
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records)+1, err)
		}
		records = append(records, raw)
	}
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if !isSpace(b) {
			return b, r.UnreadByte()
		}
	}
}

// partitionJSON assigns record i to chunk i mod n. Unlike the txt and csv
// policies the chunks are interleaved, not contiguous ranges.
func (p *Partitioner) partitionJSON(path, name string, n int) error {
	records, err := loadRecords(path)
	if err != nil {
		return err
	}

	for index := range n {
		cw, err := p.createChunk(name, index)
		if err != nil {
			return err
		}
		if err := writeArray(cw, records, index, n); err != nil {
			cw.Close()
			return err
		}
		if err := cw.Close(); err != nil {
			return err
		}
	}
	return nil
}

func writeArray(w *chunkWriter, records []json.RawMessage, offset, stride int) error {
	if err := w.WriteByte('['); err != nil {
		return err
	}
	for i := offset; i < len(records); i += stride {
		if i != offset {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.Write(records[i]); err != nil {
			return err
		}
	}
	return w.WriteByte(']')
}
