// Package bench times the same upload or download against an object store
// and a relational table and reports which one was faster.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"blobbench/internal/database"
	"blobbench/pkg/storage"
)

// BlobTable is the relational side of a benchmark.
type BlobTable interface {
	Insert(ctx context.Context, name string, data []byte) (int64, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
	DeleteByName(ctx context.Context, name string) (int64, error)
	Names(ctx context.Context) ([]string, error)
	Search(ctx context.Context, substr string) ([]database.Record, error)
}

// Observer receives every completed run.
type Observer interface {
	ObserveRun(Result)
}

// Benchmarker drives both stores. It holds no mutable state and is safe for
// concurrent use.
type Benchmarker struct {
	objects  storage.ObjectStore
	table    BlobTable
	now      func() time.Time
	observer Observer
	logger   *slog.Logger
}

type Option func(*Benchmarker)

// WithClock replaces time.Now as the source of timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(b *Benchmarker) {
		b.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(b *Benchmarker) {
		b.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Benchmarker) {
		b.logger = logger
	}
}

func New(objects storage.ObjectStore, table BlobTable, opts ...Option) *Benchmarker {
	b := &Benchmarker{
		objects: objects,
		table:   table,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Benchmarker) newResult(op Operation, name string) Result {
	return Result{
		RunID:      uuid.New(),
		Operation:  op,
		Name:       name,
		StartedAt:  b.now().UTC(),
		Object:     Measurement{Backend: ObjectStore},
		Relational: Measurement{Backend: RelationalStore},
	}
}

func (b *Benchmarker) finish(res Result) Result {
	if b.observer != nil {
		b.observer.ObserveRun(res)
	}

	attrs := []any{
		"run", res.RunID,
		"op", res.Operation.String(),
		"name", res.Name,
		"size", res.Size,
		"object", res.Object.Elapsed,
		"winner", res.Winner().String(),
	}
	if res.RelationalFailed() {
		attrs = append(attrs, "relational_err", res.Relational.Err)
	} else {
		attrs = append(attrs, "relational", res.Relational.Elapsed)
	}
	b.logger.Info("Benchmark complete", attrs...)

	return res
}

// RunUpload writes f to the object store and then to the relational table,
// timing each call. An object-store failure aborts the run. A relational
// failure is recorded in the result. The object is not removed when the
// relational write fails.
func (b *Benchmarker) RunUpload(ctx context.Context, f File) (Result, error) {
	if strings.TrimSpace(f.Name) == "" {
		return Result{}, ErrInvalidName
	}

	res := b.newResult(Upload, f.Name)
	res.Size = int64(len(f.Data))

	start := b.now()
	if err := b.objects.Put(ctx, f.Name, f.Data, f.ContentType); err != nil {
		return Result{}, &ObjectStoreError{Op: "put", Key: f.Name, Err: err}
	}
	res.Object.Elapsed = b.now().Sub(start)

	start = b.now()
	if _, err := b.table.Insert(ctx, f.Name, f.Data); err != nil {
		res.Relational.Err = &RelationalStoreError{Op: "insert", Name: f.Name, Err: err}
	} else {
		res.Relational.Elapsed = b.now().Sub(start)
	}

	return b.finish(res), nil
}

// RunDownload reads name from both stores, timing each call. Both payloads
// are returned in the result.
func (b *Benchmarker) RunDownload(ctx context.Context, name string) (Result, error) {
	if strings.TrimSpace(name) == "" {
		return Result{}, ErrInvalidName
	}

	res := b.newResult(Download, name)

	start := b.now()
	data, err := b.objects.Get(ctx, name)
	if err != nil {
		return Result{}, &ObjectStoreError{Op: "get", Key: name, Err: err}
	}
	res.Object.Elapsed = b.now().Sub(start)
	res.Object.Payload = data
	res.Size = int64(len(data))

	start = b.now()
	rowData, err := b.table.Fetch(ctx, name)
	if err != nil {
		res.Relational.Err = &RelationalStoreError{Op: "fetch", Name: name, Err: err}
	} else {
		res.Relational.Elapsed = b.now().Sub(start)
		res.Relational.Payload = rowData
	}

	return b.finish(res), nil
}

// Fetch returns the payload stored under name in a single backend. It is not
// timed and is never reported to the observer.
func (b *Benchmarker) Fetch(ctx context.Context, backend Backend, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	switch backend {
	case ObjectStore:
		data, err := b.objects.Get(ctx, name)
		if err != nil {
			return nil, &ObjectStoreError{Op: "get", Key: name, Err: err}
		}
		return data, nil
	case RelationalStore:
		data, err := b.table.Fetch(ctx, name)
		if err != nil {
			return nil, &RelationalStoreError{Op: "fetch", Name: name, Err: err}
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown backend %d", backend)
	}
}

// DeleteByName removes every relational row named name, then the object with
// the same key. Object-store failures are reported, not returned.
func (b *Benchmarker) DeleteByName(ctx context.Context, name string) (DeleteReport, error) {
	if strings.TrimSpace(name) == "" {
		return DeleteReport{}, ErrInvalidName
	}

	report := DeleteReport{Name: name}

	removed, err := b.table.DeleteByName(ctx, name)
	if err != nil {
		return report, &RelationalStoreError{Op: "delete", Name: name, Err: err}
	}
	report.RowsDeleted = removed

	if err := b.objects.Delete(ctx, name); err != nil {
		report.ObjectErr = &ObjectStoreError{Op: "delete", Key: name, Err: err}
		if errors.Is(err, storage.ErrObjectNotFound) {
			b.logger.Info("Object already absent", "name", name)
		} else {
			b.logger.Warn("Failed to delete object", "name", name, "err", err)
		}
	} else {
		report.ObjectDeleted = true
	}

	b.logger.Info("Deleted", "name", name, "rows", report.RowsDeleted, "object", report.ObjectDeleted)
	return report, nil
}

// ListAvailable returns the sorted union of object keys and relational names.
func (b *Benchmarker) ListAvailable(ctx context.Context) ([]string, error) {
	var keys, names []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keys, err = b.objects.List(gctx)
		if err != nil {
			return &ObjectStoreError{Op: "list", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		names, err = b.table.Names(gctx)
		if err != nil {
			return &RelationalStoreError{Op: "list", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keys)+len(names))
	union := make([]string, 0, len(keys)+len(names))
	for _, list := range [][]string{keys, names} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			union = append(union, name)
		}
	}

	sort.Strings(union)
	return union, nil
}

// SearchByName returns relational rows whose name contains substr.
func (b *Benchmarker) SearchByName(ctx context.Context, substr string) ([]database.Record, error) {
	records, err := b.table.Search(ctx, substr)
	if err != nil {
		return nil, &RelationalStoreError{Op: "search", Name: substr, Err: err}
	}
	return records, nil
}
