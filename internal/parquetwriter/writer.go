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

// Package parquetwriter persists typed rows as numbered parquet partition
// files, splitting on row-count and byte-size thresholds so that a table's
// dataset is a directory of independently readable partitions sharing one
// schema.
package parquetwriter

import (
	"context"
	"errors"
)

// ParquetWriter defines the common interface for writing a table's
// partition files.
type ParquetWriter interface {
	// Write adds a single row. The row will be routed to the current
	// partition, rolling to a new one when a threshold is reached.
	Write(row map[string]any) error

	// Close finalizes processing, flushes the tail partition, and returns
	// metadata about the created files. After Close the writer cannot be
	// used for further writes.
	Close(ctx context.Context) ([]Result, error)

	// Abort stops processing and removes the in-progress partition.
	// Partitions that were already completed are left in place.
	Abort()
}

// Result contains metadata about a single output partition file.
type Result struct {
	// FileName is the absolute path of the partition file.
	FileName string

	// Index is the partition number, starting at 0.
	Index int

	// RecordCount is the number of rows written to this partition.
	RecordCount int64

	// FileSize is the size of the partition file in bytes.
	FileSize int64
}

// Common errors returned by writers.
var (
	ErrWriterClosed = errors.New("parquetwriter: writer is already closed")
	ErrInvalidRow   = errors.New("parquetwriter: row contains invalid data")
	ErrWriteFailed  = errors.New("parquetwriter: failed to write data")
)
