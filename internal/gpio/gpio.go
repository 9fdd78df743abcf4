// Package gpio abstracts the GPIO lines used by the matrix scanner and the
// encoders. OpenCdev binds to a Linux GPIO character device; Sim is an
// in-memory chip for running without hardware and for tests.
package gpio

import (
	"errors"
	"io"
	"time"
)

// Line levels. Inputs are pulled up, so an idle contact reads High.
const (
	Low  = 0
	High = 1
)

// ErrClosed is returned by operations on a closed chip.
var ErrClosed = errors.New("gpio chip closed")

// Edge reports a level change on a watched line.
type Edge struct {
	Offset int
	Level  int
	// Time is monotonic, relative to an arbitrary origin.
	Time time.Duration
}

// EdgeHandler is invoked for every edge on a watched line. Handlers run on
// the chip's event goroutine and must not block.
type EdgeHandler func(Edge)

// Output is a driven line.
type Output interface {
	SetValue(level int) error
	io.Closer
}

// Input is a pulled-up line sampled on demand.
type Input interface {
	Value() (int, error)
	io.Closer
}

// Chip hands out line requests.
type Chip interface {
	// Output requests offset as an output driven to initial.
	Output(offset, initial int) (Output, error)
	// Input requests offset as a pulled-up input.
	Input(offset int) (Input, error)
	// Watch requests offset as a pulled-up input reporting both edges.
	Watch(offset int, handler EdgeHandler) (io.Closer, error)
	Name() string
	io.Closer
}
