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

package parquetwriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/parquet-go/parquet-go"
)

// TableWriter writes one table's accepted rows as numbered parquet
// partition files. Partitions are written to a temporary name and renamed
// into place when complete, so a reader listing the directory never sees a
// half-written partition.
type TableWriter struct {
	config  WriterConfig
	pschema *parquet.Schema

	file         *os.File
	pw           *parquet.GenericWriter[map[string]any]
	partIndex    int
	currentRows  int64
	currentBytes int64

	results []Result
	closed  bool
}

var _ ParquetWriter = (*TableWriter)(nil)

// NewTableWriter creates a writer for the given table configuration,
// creating the output directory if needed.
func NewTableWriter(config WriterConfig) (*TableWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ps, err := parquetSchema(config.Schema)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create table directory: %w", err)
	}
	return &TableWriter{
		config:  config,
		pschema: ps,
		results: make([]Result, 0),
	}, nil
}

// partitionName returns the final file name for partition i.
func partitionName(i int) string {
	return fmt.Sprintf("part-%05d.parquet", i)
}

// Write adds a single row to the current partition, rolling to a new
// partition first when a threshold would be exceeded.
func (w *TableWriter) Write(row map[string]any) error {
	if w.closed {
		return ErrWriterClosed
	}
	if row == nil {
		return fmt.Errorf("%w: row cannot be nil", ErrInvalidRow)
	}

	size := estimateRowSize(row)
	if w.pw != nil && w.overThreshold(size) {
		if err := w.finishCurrentFile(); err != nil {
			return err
		}
	}
	if w.pw == nil {
		if err := w.startNewFile(); err != nil {
			return err
		}
	}

	if _, err := w.pw.Write([]map[string]any{normalizeRow(row)}); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	w.currentRows++
	w.currentBytes += size
	return nil
}

// overThreshold reports whether adding a row of the given size would push
// the current partition past a configured limit.
func (w *TableWriter) overThreshold(size int64) bool {
	if max := w.config.GetRecordsPerFile(); max > 0 && w.currentRows+1 > max {
		return true
	}
	if max := w.config.GetBytesPerFile(); max > 0 && w.currentRows > 0 && w.currentBytes+size > max {
		return true
	}
	return false
}

// startNewFile opens the next partition under a temporary name.
func (w *TableWriter) startNewFile() error {
	tmp := filepath.Join(w.config.Dir,
		fmt.Sprintf(".%s.%s.tmp", partitionName(w.partIndex), newULID()))
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create partition file: %w", err)
	}

	opts, err := writerOptions(&w.config, w.pschema)
	if err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	wc, err := parquet.NewWriterConfig(opts...)
	if err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("create writer config: %w", err)
	}

	w.file = file
	w.pw = parquet.NewGenericWriter[map[string]any](file, wc)
	w.currentRows = 0
	w.currentBytes = 0
	return nil
}

// finishCurrentFile closes the open partition, renames it into place, and
// records its result.
func (w *TableWriter) finishCurrentFile() error {
	if w.pw == nil {
		return nil
	}

	if err := w.pw.Close(); err != nil {
		w.cleanupCurrentFile()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		w.cleanupCurrentFile()
		return fmt.Errorf("close partition file: %w", err)
	}

	final := filepath.Join(w.config.Dir, partitionName(w.partIndex))
	if err := os.Rename(w.file.Name(), final); err != nil {
		w.cleanupCurrentFile()
		return fmt.Errorf("rename partition into place: %w", err)
	}

	var fileSize int64 = -1
	if info, err := os.Stat(final); err == nil {
		fileSize = info.Size()
	}

	w.results = append(w.results, Result{
		FileName:    final,
		Index:       w.partIndex,
		RecordCount: w.currentRows,
		FileSize:    fileSize,
	})

	w.partIndex++
	w.file = nil
	w.pw = nil
	w.currentRows = 0
	w.currentBytes = 0
	return nil
}

// cleanupCurrentFile removes the in-progress temporary file and resets
// state. Completed partitions are untouched.
func (w *TableWriter) cleanupCurrentFile() {
	if w.file != nil {
		name := w.file.Name()
		w.file.Close()
		os.Remove(name)
		w.file = nil
	}
	w.pw = nil
	w.currentRows = 0
	w.currentBytes = 0
}

// Close flushes the tail partition, even below threshold, and returns
// metadata for every partition written.
func (w *TableWriter) Close(ctx context.Context) ([]Result, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true

	if w.currentRows > 0 {
		if err := w.finishCurrentFile(); err != nil {
			return w.results, err
		}
	} else {
		w.cleanupCurrentFile()
	}
	return w.results, nil
}

// Abort discards the in-progress partition. Completed partitions stay on
// disk; cleaning those up after a failed conversion is the caller's call.
func (w *TableWriter) Abort() {
	w.closed = true
	w.cleanupCurrentFile()
}

// normalizeRow drops null fields and lowers time values to epoch
// milliseconds to match the Timestamp(Millisecond) column type.
func normalizeRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		switch t := v.(type) {
		case nil:
			continue
		case time.Time:
			out[k] = t.UnixMilli()
		default:
			out[k] = v
		}
	}
	return out
}

// estimateRowSize approximates a row's in-memory size for the byte-split
// threshold. Exact accounting is not needed; the estimate just has to be
// monotone in row size.
func estimateRowSize(row map[string]any) int64 {
	var n int64
	for k, v := range row {
		n += int64(len(k))
		switch t := v.(type) {
		case string:
			n += int64(len(t))
		case []byte:
			n += int64(len(t))
		case nil:
			n++
		default:
			n += 8
		}
	}
	return n
}

// newULID returns a ULID string for temp file uniqueness.
func newULID() string {
	return ulid.Make().String()
}
