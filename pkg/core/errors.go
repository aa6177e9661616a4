package core

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrEmptyInput        = errors.New("at least one input file is required")
	ErrInvalidFunctions  = errors.New("mapper and reducer must both be set")
	ErrMixedFormats      = errors.New("all input files must have the same extension")
	ErrUnsupportedFormat = errors.New("unsupported input format")
	ErrDuplicateBasename = errors.New("input file names must be unique")
	ErrInvalidParameter  = errors.New("invalid job parameter")

	// Partition errors
	ErrEmptyFile = errors.New("input file is empty")

	// Store errors
	ErrArtifactMissing = errors.New("artifact not found")
	ErrArtifactExists  = errors.New("artifact already exists")
)

// ConfigurationError reports a rejected job before any worker starts.
type ConfigurationError struct {
	Rule string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid job configuration (%s): %v", e.Rule, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type PartitionError struct {
	File string
	Err  error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s: %v", e.File, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// WorkerError wraps a failure raised while a stage processes one unit,
// including failures of user mappers and reducers.
type WorkerError struct {
	Stage string
	Unit  string
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s worker %s: %v", e.Stage, e.Unit, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// StoreError means an intermediate unit was missing, duplicated or
// unreadable. It always indicates a broken phase protocol.
type StoreError struct {
	Op      string
	Address string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
