package vamana

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the error kinds of the core. Callers use
// errors.Is against these, never string matching.
var (
	// ErrInvalidArgument covers dimension mismatches, a zero-length vector
	// passed to normalization, and empty corpora. A non-positive degree
	// cap (New) or beam width (NewBuilder) is not rejected: it is
	// replaced by the default value.
	ErrInvalidArgument = errors.New("vamana: invalid argument")

	// ErrIO covers file read/write failures in the on-disk graph.
	ErrIO = errors.New("vamana: io failure")

	// ErrNotFound names the not-found error kind. No function in this
	// package returns it: a search over a graph with no entry point
	// returns an empty result and a nil error.
	ErrNotFound = errors.New("vamana: not found")

	// ErrCorruption covers a serialized graph file whose size does not
	// match its header, or whose node record lists more neighbors than
	// the header's max degree.
	ErrCorruption = errors.New("vamana: corrupt graph file")
)

// invalidArgf wraps a formatted message as ErrInvalidArgument.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

func ioErrf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrIO)...)
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrCorruption)...)
}
