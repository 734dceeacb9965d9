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

// Package rejects is the side channel for rows that failed parsing. Every
// rejected row is recorded with its raw bytes and a reason code so that no
// row disappears untracked, and so independent runs over the same feed can
// be compared bit for bit.
package rejects

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cardinalhq/epfrunner/internal/cbor"
)

// Reason classifies why a row was rejected.
type Reason string

const (
	ReasonEncodingError      Reason = "encoding_error"
	ReasonFieldCountMismatch Reason = "field_count_mismatch"
	ReasonTypeCoercionError  Reason = "type_coercion_error"
)

// Row is one rejected record: the raw bytes exactly as they appeared in the
// stream, plus enough position context to locate them again.
type Row struct {
	// RecordIndex is the zero-based index of the record among all data
	// records in the feed, accepted and rejected alike.
	RecordIndex int64 `cbor:"record_index"`

	// Offset is the byte offset of the record's first byte in the
	// decompressed stream.
	Offset int64 `cbor:"offset"`

	// Reason is the rejection reason code.
	Reason Reason `cbor:"reason"`

	// Raw is the record's raw bytes, without the record delimiter.
	Raw []byte `cbor:"raw"`

	// Detail is an optional human-readable explanation, e.g. which column
	// failed coercion.
	Detail string `cbor:"detail,omitempty"`
}

// Sink receives rejected rows.
type Sink interface {
	Write(row Row) error
	Close() error
}

// NullSink discards rejected rows. Counting still happens at the reader.
type NullSink struct{}

func (NullSink) Write(Row) error { return nil }
func (NullSink) Close() error    { return nil }

// FileSink persists rejected rows as a CBOR stream, one Row per item.
type FileSink struct {
	f       *os.File
	enc     interface{ Encode(any) error }
	written int64
}

// NewFileSink creates (or truncates) a rejected-row sidecar file at path.
func NewFileSink(path string) (*FileSink, error) {
	cfg, err := cbor.NewConfig()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create rejects sidecar: %w", err)
	}
	return &FileSink{f: f, enc: cfg.NewEncoder(f)}, nil
}

// Write appends one rejected row to the sidecar.
func (s *FileSink) Write(row Row) error {
	if s.f == nil {
		return errors.New("rejects sink is closed")
	}
	if err := s.enc.Encode(row); err != nil {
		return fmt.Errorf("encode rejected row: %w", err)
	}
	s.written++
	return nil
}

// Written returns the number of rows written so far.
func (s *FileSink) Written() int64 {
	return s.written
}

// Close flushes and closes the sidecar. If no rows were written the file is
// removed so an empty feed leaves no sidecar behind.
func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	name := s.f.Name()
	err := s.f.Close()
	s.f = nil
	if s.written == 0 {
		_ = os.Remove(name)
	}
	return err
}

// ReadAll decodes every rejected row from a sidecar stream.
func ReadAll(r io.Reader) ([]Row, error) {
	cfg, err := cbor.NewConfig()
	if err != nil {
		return nil, err
	}
	dec := cfg.NewDecoder(r)
	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return rows, fmt.Errorf("decode rejected row: %w", err)
		}
		rows = append(rows, row)
	}
}
