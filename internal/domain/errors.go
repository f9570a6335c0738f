package domain

import (
	"errors"
	"fmt"
)

// ErrNoExecutors indicates the master listed no executors for the application
var ErrNoExecutors = errors.New("no executors found")

// ErrMissingLength indicates the first page of a stream carried no "of N" length marker
var ErrMissingLength = errors.New("log page has no length marker")

// ErrMalformedPage indicates a log page response carried no <pre> content block
var ErrMalformedPage = errors.New("log page has no content block")

// ErrSinkBusy indicates a destination file is already owned by another downloader
var ErrSinkBusy = errors.New("destination already open")

// TransferError is returned when a page of a remote stream cannot be fetched or parsed.
// It is terminal for the stream that produced it.
type TransferError struct {
	Worker     string
	ExecutorID int
	Stream     StreamKind
	Offset     int64
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s executor %d %s at offset %d: %v",
		e.Worker, e.ExecutorID, e.Stream, e.Offset, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// SinkError is returned when a destination file cannot be opened, written or closed.
type SinkError struct {
	Path       string
	Op         string // create, open, write or close
	ExecutorID int
	Stream     StreamKind
	Err        error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s %s (executor %d %s): %v", e.Op, e.Path, e.ExecutorID, e.Stream, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// DirectoryError is returned when an executor's output directory cannot be created.
// Both streams of that executor are skipped.
type DirectoryError struct {
	Path       string
	ExecutorID int
	Err        error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("create directory %s for executor %d: %v", e.Path, e.ExecutorID, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// DiscoveryError is returned when the executors of an application cannot be listed.
// It is fatal for the whole run.
type DiscoveryError struct {
	Master string
	AppID  string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover executors of %s from %s: %v", e.AppID, e.Master, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
