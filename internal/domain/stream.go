package domain

import "fmt"

// StreamKind names one of the two log streams an executor produces.
type StreamKind string

const (
	Stdout StreamKind = "stdout"
	Stderr StreamKind = "stderr"
)

// StreamKinds lists every stream downloaded for an executor, in report order.
var StreamKinds = []StreamKind{Stdout, Stderr}

// Endpoint identifies one remote log stream. Every page request for the
// stream is built from it.
type Endpoint struct {
	Worker     string
	AppID      string
	ExecutorID int
	Stream     StreamKind
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s executor %d %s", e.Worker, e.ExecutorID, e.Stream)
}

// Page is one window of a remote stream. Total is only meaningful when
// HasTotal is set, which the worker guarantees for the page at offset 0.
type Page struct {
	Text     string
	Total    int64
	HasTotal bool
}
