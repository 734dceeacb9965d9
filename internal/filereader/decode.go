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
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// FieldDecoder converts raw field bytes to a string under one fixed text
// encoding. A decode failure is reported as an error, never papered over
// with replacement characters, so the caller can reject the row and keep
// the original bytes.
type FieldDecoder struct {
	name    string
	charmap *charmap.Charmap
}

// NewFieldDecoder resolves an encoding name from configuration. UTF-8 is
// the default and the only multi-byte encoding supported; the single-byte
// charmaps cover legacy feeds.
func NewFieldDecoder(name string) (*FieldDecoder, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return &FieldDecoder{name: "utf-8"}, nil
	case "latin1", "iso-8859-1":
		return &FieldDecoder{name: "iso-8859-1", charmap: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return &FieldDecoder{name: "windows-1252", charmap: charmap.Windows1252}, nil
	case "macroman", "macintosh":
		return &FieldDecoder{name: "macintosh", charmap: charmap.Macintosh}, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// Name returns the canonical encoding name.
func (d *FieldDecoder) Name() string {
	return d.name
}

// Decode converts raw bytes to a string, failing on any byte sequence that
// is invalid for the encoding. For charmap encodings a byte that maps to no
// code point decodes to U+FFFD, which is reported as a failure since the
// replacement would not round-trip.
func (d *FieldDecoder) Decode(raw []byte) (string, error) {
	if d.charmap == nil {
		if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
			return "", fmt.Errorf("invalid UTF-8: %w", err)
		}
		return string(raw), nil
	}

	out, _, err := transform.Bytes(d.charmap.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", d.name, err)
	}
	if strings.ContainsRune(string(out), utf8.RuneError) {
		return "", fmt.Errorf("decode %s: byte maps to no code point", d.name)
	}
	return string(out), nil
}
