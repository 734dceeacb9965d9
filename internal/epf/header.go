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
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"time"
)

// Header is the feed metadata carried at the top of every EPF export.
// The first record embeds the archive member path and the column names;
// the records after it carry key:value metadata until the first data record.
type Header struct {
	// Group is the feed group from the archive member path, e.g. "itunes".
	Group string

	// Table is the logical table name, e.g. "application".
	Table string

	// ExportDate is the feed date from the archive member path. Zero if the
	// member path did not match the expected shape.
	ExportDate time.Time

	// Columns are the column names in feed order.
	Columns []string

	// DBTypes are the declared storage types, aligned with Columns.
	// Empty if the feed did not carry a dbTypes record.
	DBTypes []string

	// PrimaryKeys are the columns the feed declares as its primary key.
	PrimaryKeys []string

	// ExportMode is "FULL" or "INCREMENTAL".
	ExportMode string
}

// memberPathPat matches the archive member path prefixed to the column name
// record, e.g. "itunes20250107/application".
var memberPathPat = regexp.MustCompile(`^([a-z]+)([0-9]{4})([0-9]{2})([0-9]{2})/([a-z_]+)`)

// ParseMemberPath extracts the feed group, export date, and table name from
// an archive member path like "itunes20250107/application". ok is false if
// the path does not have that shape.
func ParseMemberPath(path string) (group, table string, date time.Time, ok bool) {
	m := memberPathPat.FindStringSubmatch(path)
	if m == nil {
		return "", "", time.Time{}, false
	}
	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	return m[1], m[5], time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// ErrNoHeader is returned when the stream ends before a header record is
// found.
var ErrNoHeader = errors.New("epf: no feed header found")

// Metadata keys recognized in the feed header.
const (
	metaPrimaryKey = "primaryKey"
	metaDBTypes    = "dbTypes"
	metaExportMode = "exportMode"
)

// ReadHeader consumes the feed header from the scanner. It returns the
// parsed header plus the first data record, if one was read while looking
// for the end of the header, together with that record's stream offset.
// The returned record is a copy and stays valid across further scans.
func ReadHeader(s *Scanner, d Dialect) (*Header, []byte, int64, error) {
	h := &Header{}

	// The column name record is the first record containing the comment
	// byte: "<member-path>#name<FD>name...". Records before it are noise
	// and are skipped.
	for {
		rec, _, err := s.Next()
		if err != nil {
			if err == io.EOF {
				return nil, nil, 0, ErrNoHeader
			}
			return nil, nil, 0, err
		}
		idx := bytes.IndexByte(rec, d.CommentByte)
		if idx < 0 {
			continue
		}
		if group, table, date, ok := ParseMemberPath(string(rec[:idx])); ok {
			h.Group = group
			h.Table = table
			h.ExportDate = date
		}
		for _, f := range d.SplitFields(rec[idx+1:]) {
			h.Columns = append(h.Columns, string(f))
		}
		break
	}

	// Metadata records follow until the first data record.
	for {
		rec, offset, err := s.Next()
		if err != nil {
			if err == io.EOF {
				return h, nil, 0, nil
			}
			return nil, nil, 0, err
		}
		if !d.IsComment(rec) {
			first := make([]byte, len(rec))
			copy(first, rec)
			return h, first, offset, nil
		}

		key, value, ok := bytes.Cut(rec[1:], []byte{':'})
		if !ok {
			continue
		}
		switch string(key) {
		case metaPrimaryKey:
			for _, f := range d.SplitFields(value) {
				h.PrimaryKeys = append(h.PrimaryKeys, string(f))
			}
		case metaDBTypes:
			for _, f := range d.SplitFields(value) {
				h.DBTypes = append(h.DBTypes, string(f))
			}
		case metaExportMode:
			h.ExportMode = string(value)
		}
	}
}
