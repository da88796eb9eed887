package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
)

// Sink receives the records of one transaction at a time.
type Sink interface {
	SaveTraces(ctx context.Context, records []logtrace.Record) error
}

// WriterSink prints each trace in the same layout as mango-logtrace,
// preceded by a header naming the transaction.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) SaveTraces(_ context.Context, records []logtrace.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		header := fmt.Sprintf("# %s slot=%d seq=%d", r.Signature, r.Slot, r.Seq)
		if r.Failed {
			header += " failed"
			if r.ErrorName != "" {
				header += " error=" + r.ErrorName
			}
		}
		if _, err := fmt.Fprintf(s.w, "%s\n%s\n", header, r.Trace.String()); err != nil {
			return err
		}
	}
	return nil
}

// MultiSink fans records out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) SaveTraces(ctx context.Context, records []logtrace.Record) error {
	var errs []error
	for _, sink := range m {
		if err := sink.SaveTraces(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
