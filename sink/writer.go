package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/pevans/historybrief/record"
)

// WriterSink prints one line per record. It backs dry runs.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink printing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Prepare(ctx context.Context) (Destination, error) {
	return Destination{ID: "stdout", Name: "stdout"}, nil
}

func (s *WriterSink) Publish(ctx context.Context, dest Destination, records []record.Record) Result {
	var res Result
	for _, r := range records {
		date := "----------"
		if r.Date != nil {
			date = r.Date.Format("2006-01-02")
		}
		if _, err := fmt.Fprintf(s.w, "%s  %-24s  %s\n            %s\n", date, r.Source, r.Title, r.URL); err != nil {
			res.ErrorCount++
			continue
		}
		res.SuccessCount++
	}
	return res
}
