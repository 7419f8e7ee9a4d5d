package bench

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"blobbench/internal/database"
)

// Backend identifies one side of a benchmark.
type Backend int

const (
	ObjectStore Backend = iota
	RelationalStore
)

func (b Backend) String() string {
	switch b {
	case ObjectStore:
		return "object store"
	case RelationalStore:
		return "relational store"
	default:
		return "unknown"
	}
}

// Operation is the kind of work that was timed.
type Operation int

const (
	Upload Operation = iota
	Download
)

func (o Operation) String() string {
	switch o {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return "unknown"
	}
}

// File is a payload to upload. It is not modified after construction.
type File struct {
	Name        string
	Data        []byte
	Size        int64
	ContentType string
}

func NewFile(name string, data []byte, contentType string) File {
	return File{
		Name:        name,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}

// Measurement is the outcome of one timed call. Elapsed is only meaningful
// when Err is nil. Payload holds the bytes read by a download.
type Measurement struct {
	Backend Backend
	Elapsed time.Duration
	Err     error
	Payload []byte
}

// Result is the outcome of a single benchmark run.
type Result struct {
	RunID     uuid.UUID
	Operation Operation
	Name      string
	Size      int64
	StartedAt time.Time

	Object     Measurement
	Relational Measurement
}

// RelationalFailed reports whether the relational path produced no timing.
func (r Result) RelationalFailed() bool {
	return r.Relational.Err != nil
}

// RelationalNotFound reports whether a download found no row for the name.
func (r Result) RelationalNotFound() bool {
	return errors.Is(r.Relational.Err, database.ErrNotFound)
}

// Winner returns the backend with the strictly smaller duration. The
// relational store takes ties, and the object store wins by default when
// the relational path failed.
func (r Result) Winner() Backend {
	if r.RelationalFailed() {
		return ObjectStore
	}
	if r.Object.Elapsed < r.Relational.Elapsed {
		return ObjectStore
	}
	return RelationalStore
}

// Ratio returns how many times faster the winner was. ok is false when the
// relational path failed or the faster duration is zero.
func (r Result) Ratio() (ratio float64, ok bool) {
	if r.RelationalFailed() {
		return 0, false
	}

	lo, hi := r.Object.Elapsed, r.Relational.Elapsed
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return 0, false
	}

	return float64(hi) / float64(lo), true
}

// DeleteReport summarizes a DeleteByName call.
type DeleteReport struct {
	Name          string
	RowsDeleted   int64
	ObjectDeleted bool
	ObjectErr     error
}
