package storage

import (
	"context"
	"io"
	"time"

	"stash/internal/metrics"
)

// Instrument wraps b so every call is recorded under label. The wrapper
// implements Deleter only when b does.
func Instrument(b Backend, label string) Backend {
	in := &instrumented{next: b, label: label}
	if d, ok := b.(Deleter); ok {
		return &instrumentedDeleter{instrumented: in, deleter: d}
	}
	return in
}

type instrumented struct {
	next  Backend
	label string
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordBackendOp(i.label, op, time.Since(start), err)
}

func (i *instrumented) Path(name string) string { return i.next.Path(name) }

func (i *instrumented) Exists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	ok, err := i.next.Exists(ctx, name)
	i.observe("exists", start, err)
	return ok, err
}

func (i *instrumented) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	start := time.Now()
	saved, err := i.next.Save(ctx, name, r)
	i.observe("save", start, err)
	return saved, err
}

func (i *instrumented) Size(ctx context.Context, name string) (int64, error) {
	start := time.Now()
	n, err := i.next.Size(ctx, name)
	i.observe("size", start, err)
	return n, err
}

func (i *instrumented) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := i.next.Open(ctx, name)
	i.observe("open", start, err)
	return rc, err
}

type instrumentedDeleter struct {
	*instrumented
	deleter Deleter
}

func (i *instrumentedDeleter) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := i.deleter.Delete(ctx, name)
	i.observe("delete", start, err)
	return err
}
