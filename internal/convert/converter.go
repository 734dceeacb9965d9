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

// Package convert wires the record parser to the columnar writer: one call
// converts one feed stream into one table directory of parquet partitions,
// with rejected rows accounted for on the side.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cardinalhq/epfrunner/internal/epf"
	"github.com/cardinalhq/epfrunner/internal/filereader"
	"github.com/cardinalhq/epfrunner/internal/parquetwriter"
	"github.com/cardinalhq/epfrunner/internal/rejects"
	"github.com/cardinalhq/epfrunner/internal/schema"
)

// RejectsSidecarName is the file written next to the partitions when the
// rejected-row sidecar is enabled.
const RejectsSidecarName = "rejects.cbor"

// ErrStorageWrite marks a conversion that failed while persisting a
// partition. Partitions completed before the failure are left in place.
var ErrStorageWrite = errors.New("convert: storage write failed")

// ErrNoSchema is returned when neither the feed header nor the catalog can
// supply a table schema.
var ErrNoSchema = errors.New("convert: no schema available for table")

// Options configures one feed conversion.
type Options struct {
	// Dialect is the EPF framing variant. Zero value is not usable; use
	// epf.DialectFull() or epf.DialectTab().
	Dialect epf.Dialect

	// Encoding is the fixed text encoding of field values. Empty means
	// UTF-8.
	Encoding string

	// OutDir is the table's output directory.
	OutDir string

	// TableName overrides the table name when the stream's header does not
	// carry one (headerless feeds, stdin without archive context).
	TableName string

	// NoHeader skips feed header parsing; the schema must then come from
	// the catalog.
	NoHeader bool

	// Catalog optionally predeclares table schemas. An observed header
	// always wins; disagreements are logged as warnings.
	Catalog *schema.Catalog

	// BatchSize is the reader batch size. Zero means the reader default.
	BatchSize int

	// RecordsPerFile / BytesPerFile / Compression configure partition
	// splitting; see parquetwriter.WriterConfig.
	RecordsPerFile int64
	BytesPerFile   int64
	Compression    string

	// RejectsSidecar writes rejected rows to a CBOR sidecar in OutDir.
	RejectsSidecar bool
}

// Summary reports the outcome of one feed conversion.
type Summary struct {
	Table      string
	Group      string
	ExportDate time.Time
	ExportMode string

	Stats      filereader.Stats
	Partitions []parquetwriter.Result
	Duration   time.Duration
}

// Accepted returns the number of rows that made it into partitions.
func (s *Summary) Accepted() int64 {
	return s.Stats.Accepted
}

// Rejected returns the number of rows routed to the side channel.
func (s *Summary) Rejected() int64 {
	return s.Stats.Rejected()
}

// Convert runs the full pipeline over one decompressed feed stream. Row
// rejections are normal and never fail the conversion; stream corruption
// and storage failures do, and partitions already completed stay on disk.
func Convert(ctx context.Context, src io.Reader, opts Options) (*Summary, error) {
	start := time.Now()
	if err := opts.Dialect.Validate(); err != nil {
		return nil, err
	}

	scanner := epf.NewScanner(src, opts.Dialect)

	var (
		header  *epf.Header
		pending []byte
		offset  int64
	)
	if !opts.NoHeader {
		var err error
		header, pending, offset, err = epf.ReadHeader(scanner, opts.Dialect)
		if err != nil {
			return nil, err
		}
	}

	summary := &Summary{Table: opts.TableName}
	if header != nil {
		summary.Group = header.Group
		summary.ExportDate = header.ExportDate
		summary.ExportMode = header.ExportMode
		if header.Table != "" {
			summary.Table = header.Table
		}
	}
	if summary.Table == "" {
		return nil, errors.New("convert: table name not present in stream and not configured")
	}

	tableSchema, err := deriveSchema(header, opts.Catalog, summary.Table)
	if err != nil {
		return nil, err
	}

	decoder, err := filereader.NewFieldDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	// The sidecar lives next to the partitions, so the table directory has
	// to exist before the sink opens its file there.
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create table directory: %w", err)
	}

	var sink rejects.Sink = rejects.NullSink{}
	if opts.RejectsSidecar {
		fs, err := rejects.NewFileSink(filepath.Join(opts.OutDir, RejectsSidecarName))
		if err != nil {
			return nil, err
		}
		sink = fs
	}
	defer sink.Close()

	reader, err := filereader.NewEPFReader(scanner, filereader.EPFReaderOptions{
		Dialect:       opts.Dialect,
		Schema:        tableSchema,
		Decoder:       decoder,
		Rejects:       sink,
		BatchSize:     opts.BatchSize,
		Pending:       pending,
		PendingOffset: offset,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	writer, err := parquetwriter.NewTableWriter(parquetwriter.WriterConfig{
		Dir:            opts.OutDir,
		Schema:         tableSchema,
		RecordsPerFile: opts.RecordsPerFile,
		BytesPerFile:   opts.BytesPerFile,
		Compression:    opts.Compression,
	})
	if err != nil {
		return nil, err
	}

	if err := pump(ctx, reader, writer); err != nil {
		writer.Abort()
		summary.Stats = reader.Stats()
		return summary, err
	}

	results, err := writer.Close(ctx)
	summary.Partitions = results
	summary.Stats = reader.Stats()
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := sink.Close(); err != nil {
		return summary, fmt.Errorf("close rejects sidecar: %w", err)
	}

	slog.Info("feed converted",
		slog.String("table", summary.Table),
		slog.String("group", summary.Group),
		slog.Int64("accepted", summary.Accepted()),
		slog.Int64("rejected", summary.Rejected()),
		slog.Int("partitions", len(summary.Partitions)),
		slog.Duration("elapsed", summary.Duration))
	return summary, nil
}

// pump drains the reader into the writer, one batch at a time, so memory
// stays bounded by a batch plus the writer's open partition.
func pump(ctx context.Context, reader filereader.Reader, writer parquetwriter.ParquetWriter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		for i := 0; i < batch.Len(); i++ {
			if err := writer.Write(batch.Get(i)); err != nil {
				return fmt.Errorf("%w: %v", ErrStorageWrite, err)
			}
		}
	}
}

// deriveSchema picks the table schema: the observed header is
// authoritative; the catalog is the fallback and the cross-check. A
// disagreement between the two is an operator warning, never fatal.
func deriveSchema(header *epf.Header, catalog *schema.Catalog, table string) (*schema.TableSchema, error) {
	declared, declaredOK := catalog.Lookup(table)

	if header == nil || len(header.Columns) == 0 {
		if !declaredOK {
			return nil, fmt.Errorf("%w: %q", ErrNoSchema, table)
		}
		return declared, nil
	}

	observed, err := schema.FromHeader(header)
	if err != nil {
		return nil, err
	}
	if observed.Table == "" {
		observed.Table = table
	}
	if declaredOK {
		for _, diff := range schema.Diff(declared, observed) {
			slog.Warn("schema conflict between catalog and feed header",
				slog.String("table", table),
				slog.String("diff", diff))
		}
	}
	return observed, nil
}
