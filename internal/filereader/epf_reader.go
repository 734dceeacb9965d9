// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package filereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/epfrunner/internal/epf"
	"github.com/cardinalhq/epfrunner/internal/rejects"
	"github.com/cardinalhq/epfrunner/internal/schema"
)

// Stats counts the per-feed row outcomes. Every data record lands in
// exactly one bucket.
type Stats struct {
	Accepted             int64
	EncodingErrors       int64
	FieldCountMismatches int64
	TypeCoercionErrors   int64
}

// Rejected returns the total number of rejected records.
func (s Stats) Rejected() int64 {
	return s.EncodingErrors + s.FieldCountMismatches + s.TypeCoercionErrors
}

// EPFReaderOptions configures an EPFReader.
type EPFReaderOptions struct {
	Dialect epf.Dialect
	Schema  *schema.TableSchema
	Decoder *FieldDecoder

	// Rejects receives every rejected record. Defaults to NullSink.
	Rejects rejects.Sink

	// BatchSize is the maximum number of rows per Next call.
	BatchSize int

	// Pending is a data record that was already consumed from the scanner
	// while reading the feed header, with its stream offset. It is
	// processed before any further scanning.
	Pending       []byte
	PendingOffset int64
}

// EPFReader turns a record stream into batches of typed rows. Records that
// fail arity checks, encoding decode, or non-nullable coercion go to the
// reject sink with their raw bytes preserved; the stream keeps going.
type EPFReader struct {
	scanner *epf.Scanner
	opts    EPFReaderOptions

	batch       *Batch
	fieldBuf    []byte
	recordIndex int64
	totalRows   int64
	stats       Stats
	closed      bool
	pendingDone bool
}

var _ Reader = (*EPFReader)(nil)

// NewEPFReader creates a reader over an already-positioned scanner. The
// scanner should be past the feed header; use opts.Pending for the first
// data record if header parsing consumed it.
func NewEPFReader(scanner *epf.Scanner, opts EPFReaderOptions) (*EPFReader, error) {
	if opts.Schema == nil || opts.Schema.Len() == 0 {
		return nil, errors.New("EPF reader requires a non-empty schema")
	}
	if err := opts.Dialect.Validate(); err != nil {
		return nil, err
	}
	if opts.Decoder == nil {
		d, err := NewFieldDecoder("")
		if err != nil {
			return nil, err
		}
		opts.Decoder = d
	}
	if opts.Rejects == nil {
		opts.Rejects = rejects.NullSink{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &EPFReader{
		scanner: scanner,
		opts:    opts,
	}, nil
}

func (r *EPFReader) Next(ctx context.Context) (*Batch, error) {
	if r.closed {
		return nil, io.EOF
	}

	batch := &Batch{rows: make([]Row, 0, r.opts.BatchSize)}

	for len(batch.rows) < r.opts.BatchSize {
		rec, offset, err := r.nextRecord()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		// Empty records, stray metadata records, and tar padding blocks
		// (when the stream is a raw decompressed archive) are framing
		// noise, not data rows.
		if len(rec) == 0 || r.opts.Dialect.IsComment(rec) || isPadding(rec) {
			continue
		}

		rowsInCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("reader", "EPFReader"),
		))
		idx := r.recordIndex
		r.recordIndex++

		if err := r.processRecord(ctx, batch, rec, idx, offset); err != nil {
			return nil, err
		}
	}

	if len(batch.rows) == 0 {
		r.closed = true
		return nil, io.EOF
	}

	r.totalRows += int64(len(batch.rows))
	rowsOutCounter.Add(ctx, int64(len(batch.rows)), otelmetric.WithAttributes(
		attribute.String("reader", "EPFReader"),
	))
	return batch, nil
}

// isPadding reports whether a record is entirely NUL bytes.
func isPadding(rec []byte) bool {
	for _, b := range rec {
		if b != 0 {
			return false
		}
	}
	return true
}

func (r *EPFReader) nextRecord() ([]byte, int64, error) {
	if !r.pendingDone {
		r.pendingDone = true
		if r.opts.Pending != nil {
			return r.opts.Pending, r.opts.PendingOffset, nil
		}
	}
	return r.scanner.Next()
}

// processRecord decodes one data record into the batch, or routes it to the
// reject sink. Only sink failures and context cancellation are returned as
// errors.
func (r *EPFReader) processRecord(ctx context.Context, batch *Batch, rec []byte, idx, offset int64) error {
	cols := r.opts.Schema.Columns
	fields := r.opts.Dialect.SplitFields(rec)

	if len(fields) != len(cols) {
		return r.reject(ctx, rec, idx, offset, rejects.ReasonFieldCountMismatch,
			fmt.Sprintf("expected %d fields, got %d", len(cols), len(fields)))
	}

	row := batch.addRow(len(cols))
	for i, raw := range fields {
		r.fieldBuf = r.fieldBuf[:0]
		unescaped, err := r.opts.Dialect.Unescape(r.fieldBuf, raw)
		if err != nil {
			batch.rows = batch.rows[:len(batch.rows)-1]
			return r.reject(ctx, rec, idx, offset, rejects.ReasonEncodingError,
				fmt.Sprintf("column %q: %v", cols[i].Name, err))
		}
		r.fieldBuf = unescaped

		value, err := r.opts.Decoder.Decode(unescaped)
		if err != nil {
			batch.rows = batch.rows[:len(batch.rows)-1]
			return r.reject(ctx, rec, idx, offset, rejects.ReasonEncodingError,
				fmt.Sprintf("column %q: %v", cols[i].Name, err))
		}

		typed, err := cols[i].Coerce(value)
		if err != nil {
			if !cols[i].Nullable {
				batch.rows = batch.rows[:len(batch.rows)-1]
				return r.reject(ctx, rec, idx, offset, rejects.ReasonTypeCoercionError, err.Error())
			}
			// Nullable column: a bad value demotes to null, the row stands.
			typed = nil
		}
		if typed == nil && !cols[i].Nullable {
			batch.rows = batch.rows[:len(batch.rows)-1]
			return r.reject(ctx, rec, idx, offset, rejects.ReasonTypeCoercionError,
				fmt.Sprintf("column %q: null value in non-nullable column", cols[i].Name))
		}
		row[cols[i].Name] = typed
	}

	r.stats.Accepted++
	return nil
}

// reject records one rejected row. The raw bytes are copied since the
// scanner reuses its buffer.
func (r *EPFReader) reject(ctx context.Context, rec []byte, idx, offset int64, reason rejects.Reason, detail string) error {
	raw := make([]byte, len(rec))
	copy(raw, rec)

	switch reason {
	case rejects.ReasonEncodingError:
		r.stats.EncodingErrors++
	case rejects.ReasonFieldCountMismatch:
		r.stats.FieldCountMismatches++
	case rejects.ReasonTypeCoercionError:
		r.stats.TypeCoercionErrors++
	}

	rowsRejectedCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("reader", "EPFReader"),
		attribute.String("reason", string(reason)),
	))
	slog.Debug("rejected record",
		slog.String("table", r.opts.Schema.Table),
		slog.String("reason", string(reason)),
		slog.Int64("record_index", idx),
		slog.Int64("offset", offset),
		slog.String("detail", detail),
		slog.String("raw", fmt.Sprintf("%q", raw)))

	if err := r.opts.Rejects.Write(rejects.Row{
		RecordIndex: idx,
		Offset:      offset,
		Reason:      reason,
		Raw:         raw,
		Detail:      detail,
	}); err != nil {
		return fmt.Errorf("write rejected row: %w", err)
	}
	return nil
}

// Stats returns the row outcome counts so far.
func (r *EPFReader) Stats() Stats {
	return r.stats
}

// TotalRowsReturned returns the total number of rows returned via Next.
func (r *EPFReader) TotalRowsReturned() int64 {
	return r.totalRows
}

// Close marks the reader as exhausted. The underlying stream is owned by
// the caller and is not closed here.
func (r *EPFReader) Close() error {
	r.closed = true
	return nil
}
