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

// Package epf defines the EPF wire format: delimiter dialects, the in-band
// escape convention, and the feed header carried at the top of every export.
package epf

import (
	"errors"
	"fmt"
)

// UnknownEscapePolicy controls what happens when the escape byte precedes a
// byte that is not in the dialect's escapable set. The format documentation
// is silent on this case, so it is an explicit configuration choice rather
// than a hardcoded behavior.
type UnknownEscapePolicy int

const (
	// UnknownEscapeLiteral keeps the escape byte and the following byte
	// unchanged in the output.
	UnknownEscapeLiteral UnknownEscapePolicy = iota

	// UnknownEscapeReject treats an unrecognized escape sequence as a
	// malformed field.
	UnknownEscapeReject
)

func (p UnknownEscapePolicy) String() string {
	switch p {
	case UnknownEscapeLiteral:
		return "literal"
	case UnknownEscapeReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseUnknownEscapePolicy parses a policy name as used in configuration.
func ParseUnknownEscapePolicy(s string) (UnknownEscapePolicy, error) {
	switch s {
	case "", "literal":
		return UnknownEscapeLiteral, nil
	case "reject":
		return UnknownEscapeReject, nil
	default:
		return UnknownEscapeLiteral, fmt.Errorf("unknown escape policy %q", s)
	}
}

// Dialect describes the fixed byte-level framing of one EPF variant.
// The delimiters are format constants recognized up front, never sniffed
// from the data.
type Dialect struct {
	// Name identifies the dialect in configuration and logs.
	Name string

	// FieldDelim separates fields within a record.
	FieldDelim byte

	// RecordDelim terminates a record. May be more than one byte.
	RecordDelim []byte

	// EscapeByte introduces an escaped delimiter inside a field value.
	// Zero means the dialect has no in-band escaping.
	EscapeByte byte

	// Escapable is the set of bytes that may legally follow EscapeByte.
	Escapable []byte

	// CommentByte marks metadata records that are part of the feed header
	// rather than data.
	CommentByte byte

	// UnknownEscape selects the handling of an escape byte followed by a
	// byte outside Escapable.
	UnknownEscape UnknownEscapePolicy
}

// DialectFull is the classic full-export EPF framing: \x01 between fields,
// \x02\n after each record. Control bytes cannot appear in field values, so
// the escape set is empty.
func DialectFull() Dialect {
	return Dialect{
		Name:        "full",
		FieldDelim:  0x01,
		RecordDelim: []byte{0x02, '\n'},
		CommentByte: '#',
	}
}

// DialectTab is the tab-separated EPF variant: \t between fields, \n after
// each record, with \x01 escaping embedded tabs, newlines, and escape bytes.
func DialectTab() Dialect {
	return Dialect{
		Name:        "tab",
		FieldDelim:  '\t',
		RecordDelim: []byte{'\n'},
		EscapeByte:  0x01,
		Escapable:   []byte{'\t', '\n', 0x01},
		CommentByte: '#',
	}
}

// ParseDialect resolves a dialect name as used in configuration.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "", "full":
		return DialectFull(), nil
	case "tab":
		return DialectTab(), nil
	default:
		return Dialect{}, fmt.Errorf("unknown EPF dialect %q", name)
	}
}

// Validate checks that the dialect is internally consistent.
func (d *Dialect) Validate() error {
	if len(d.RecordDelim) == 0 {
		return errors.New("epf dialect: RecordDelim cannot be empty")
	}
	if d.EscapeByte == 0 && len(d.Escapable) > 0 {
		return errors.New("epf dialect: Escapable set requires an EscapeByte")
	}
	for _, b := range d.Escapable {
		if b == d.CommentByte {
			return fmt.Errorf("epf dialect: comment byte %#x cannot be escapable", b)
		}
	}
	return nil
}

// escapable reports whether b may follow the escape byte.
func (d *Dialect) escapable(b byte) bool {
	for _, e := range d.Escapable {
		if e == b {
			return true
		}
	}
	return false
}

// ErrBadEscape is returned by Unescape when the dialect's policy is
// UnknownEscapeReject and an unrecognized escape sequence is found.
var ErrBadEscape = errors.New("epf: unrecognized escape sequence")

// Unescape reverses the dialect's in-band escape convention on one raw
// field, appending the decoded bytes to dst and returning the result.
// A trailing escape byte with nothing after it is treated the same way as
// an unrecognized sequence. Fields with no escape byte are copied as-is.
func (d *Dialect) Unescape(dst, src []byte) ([]byte, error) {
	if d.EscapeByte == 0 {
		return append(dst, src...), nil
	}
	for i := 0; i < len(src); i++ {
		b := src[i]
		if b != d.EscapeByte {
			dst = append(dst, b)
			continue
		}
		if i+1 < len(src) && d.escapable(src[i+1]) {
			dst = append(dst, src[i+1])
			i++
			continue
		}
		switch d.UnknownEscape {
		case UnknownEscapeLiteral:
			dst = append(dst, b)
		case UnknownEscapeReject:
			return dst, fmt.Errorf("%w at offset %d", ErrBadEscape, i)
		}
	}
	return dst, nil
}
