package core

import (
	"io"
	"strings"
)

// Format is the on-disk format shared by every input file of a job.
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var supportedFormats = []Format{FormatText, FormatCSV, FormatJSON}

// SupportedFormats lists the input formats the partitioner understands.
func SupportedFormats() []Format {
	return append([]Format(nil), supportedFormats...)
}

// ParseFormat maps a file extension (with or without the leading dot) to a Format.
func ParseFormat(ext string) (Format, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range supportedFormats {
		if string(f) == ext {
			return f, true
		}
	}
	return "", false
}

type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

type Group[K comparable, V any] struct {
	Key    K
	Values []V
}

// Chunk is one partition of an input file handed to a mapper. Reading it
// yields the chunk's raw bytes in the input's own format.
type Chunk struct {
	io.Reader

	File   string
	Index  int
	Format Format

	// Comma is the field delimiter of csv chunks.
	Comma rune
}

// Bucket is the unit of work of one reduce task.
type Bucket[K comparable, V any] struct {
	Index  int
	Groups []Group[K, V]
}

type MapFunc[K comparable, V any] func(chunk Chunk) ([]Pair[K, V], error)

type ReduceFunc[K comparable, V any, R any] func(bucket Bucket[K, V]) (R, error)
