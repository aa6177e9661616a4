// Package record implements the framing used for every intermediate unit
// that carries key/value data.
//
// A unit is a sequence of records. Each record is a varint length followed by
// a protobuf wire-format message with two fields:
//
//	1: bytes           encoded key
//	2: repeated bytes  encoded values
//
// Payloads are produced by the job's codecs, so the framing never needs to
// know the user's types.
package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2

	// MaxRecordSize bounds a single framed record.
	MaxRecordSize = 256 * 1024 * 1024
)

var ErrRecordTooLarge = errors.New("record exceeds maximum size")

type Record struct {
	Key    []byte
	Values [][]byte
}

func Marshal(rec Record) []byte {
	size := protowire.SizeTag(fieldKey) + protowire.SizeBytes(len(rec.Key))
	for _, v := range rec.Values {
		size += protowire.SizeTag(fieldValue) + protowire.SizeBytes(len(v))
	}

	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Key)
	for _, v := range rec.Values {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, v)
	}
	return b
}

func Unmarshal(b []byte) (Record, error) {
	var rec Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			rec.Key = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			rec.Values = append(rec.Values, append([]byte(nil), v...))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return rec, nil
}

type Writer struct {
	w   *bufio.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(rec Record) error {
	msg := Marshal(rec)
	w.buf = protowire.AppendVarint(w.buf[:0], uint64(len(msg)))
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	_, err := w.w.Write(msg)
	return err
}

// Flush must be called before the underlying writer is closed.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (Record, error) {
	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read record length: %w", err)
	}
	if size > MaxRecordSize {
		return Record{}, ErrRecordTooLarge
	}

	msg := make([]byte, size)
	if _, err := io.ReadFull(r.r, msg); err != nil {
		return Record{}, fmt.Errorf("read record body: %w", io.ErrUnexpectedEOF)
	}
	return Unmarshal(msg)
}

// ReadAll drains r, calling fn for every record in order.
func ReadAll(r io.Reader, fn func(Record) error) error {
	rr := NewReader(r)
	for {
		rec, err := rr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
