package core

import "encoding/json"

// Codec converts values to and from their intermediate representation.
// Implementations must be deterministic: equal values encode to equal bytes,
// since grouping and shuffling compare encoded keys.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec is the default codec. Its output keeps intermediate artifacts
// readable with a text viewer.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
