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

package epf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxRecordSizeBytes caps the size of a single raw record. A record that
// grows past this without a record delimiter indicates a corrupt stream.
const MaxRecordSizeBytes = 4 * 1024 * 1024

// ErrRecordTooLarge is returned when a record exceeds MaxRecordSizeBytes.
var ErrRecordTooLarge = errors.New("epf: record exceeds maximum size")

// Scanner splits a byte stream into raw records according to a Dialect.
// Splitting is escape-aware: a delimiter byte that is part of an escape
// sequence never terminates a record. Raw records are returned with their
// escape sequences intact; use SplitFields and Dialect.Unescape to decode.
type Scanner struct {
	br     *bufio.Reader
	d      Dialect
	buf    []byte
	offset int64
	done   bool
}

// NewScanner creates a Scanner over r using the given dialect.
func NewScanner(r io.Reader, d Dialect) *Scanner {
	return &Scanner{
		br:  bufio.NewReaderSize(r, 64*1024),
		d:   d,
		buf: make([]byte, 0, 4096),
	}
}

// Next returns the next raw record without its record delimiter, along with
// the byte offset of the record's first byte in the stream. The returned
// slice is only valid until the following call to Next. Returns io.EOF when
// the stream is exhausted; a final record without a trailing delimiter is
// still returned.
func (s *Scanner) Next() ([]byte, int64, error) {
	if s.done {
		return nil, s.offset, io.EOF
	}

	s.buf = s.buf[:0]
	start := s.offset
	escaped := false
	delim := s.d.RecordDelim

	for {
		b, err := s.br.ReadByte()
		if err != nil {
			if err == io.EOF {
				s.done = true
				if len(s.buf) > 0 {
					return s.buf, start, nil
				}
				return nil, start, io.EOF
			}
			return nil, start, fmt.Errorf("epf scan at offset %d: %w", s.offset, err)
		}
		s.offset++
		s.buf = append(s.buf, b)

		if escaped {
			escaped = false
			continue
		}
		if s.d.EscapeByte != 0 && b == s.d.EscapeByte {
			escaped = true
			continue
		}
		if b == delim[len(delim)-1] && hasSuffix(s.buf, delim) {
			return s.buf[:len(s.buf)-len(delim)], start, nil
		}
		if len(s.buf) > MaxRecordSizeBytes {
			return nil, start, fmt.Errorf("%w: started at offset %d", ErrRecordTooLarge, start)
		}
	}
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	tail := b[len(b)-len(suffix):]
	for i := range suffix {
		if tail[i] != suffix[i] {
			return false
		}
	}
	return true
}

// IsComment reports whether a raw record is a feed metadata record rather
// than data.
func (d *Dialect) IsComment(rec []byte) bool {
	return len(rec) > 0 && rec[0] == d.CommentByte
}

// SplitFields splits a raw record into raw fields on the dialect's field
// delimiter, honoring escape sequences. The returned slices alias rec and
// still carry their escape sequences.
func (d *Dialect) SplitFields(rec []byte) [][]byte {
	fields := make([][]byte, 0, 16)
	start := 0
	escaped := false
	for i := 0; i < len(rec); i++ {
		b := rec[i]
		if escaped {
			escaped = false
			continue
		}
		if d.EscapeByte != 0 && b == d.EscapeByte {
			escaped = true
			continue
		}
		if b == d.FieldDelim {
			fields = append(fields, rec[start:i])
			start = i + 1
		}
	}
	return append(fields, rec[start:])
}
