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

// Package filereader provides streaming row readers for feed data. Readers
// return batches of typed rows; malformed records go to a rejection side
// channel and never abort the stream.
package filereader

import "context"

// Row represents a single row of data as a map of column names to values.
type Row map[string]any

// Reader is the core interface for reading rows from a feed stream.
type Reader interface {
	// Next returns the next batch of rows.
	// Returns io.EOF when there are no more rows.
	// Returns error for any read failures.
	Next(ctx context.Context) (*Batch, error)

	// Close releases any resources held by the reader.
	Close() error

	// TotalRowsReturned returns the number of rows successfully returned
	// via Next so far.
	TotalRowsReturned() int64
}

// Batch holds a bounded number of rows produced by one Next call.
// The rows are owned by the reader and are only valid until the following
// call to Next.
type Batch struct {
	rows []Row
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.rows)
}

// Get returns the row at index i.
func (b *Batch) Get(i int) Row {
	return b.rows[i]
}

// addRow appends a fresh row to the batch and returns it for filling.
func (b *Batch) addRow(capacity int) Row {
	row := make(Row, capacity)
	b.rows = append(b.rows, row)
	return row
}
