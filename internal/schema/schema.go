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

// Package schema models a table's column layout and the coercion of raw
// field text into typed values. A TableSchema is derived once per feed,
// either from the feed header or from a predeclared catalog, and is
// immutable afterward.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cardinalhq/epfrunner/internal/epf"
)

// DataType represents the type of data in a column.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeString
	DataTypeInt64
	DataTypeFloat64
	DataTypeBool
	DataTypeDate
	DataTypeBytes
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeString:
		return "string"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeBool:
		return "bool"
	case DataTypeDate:
		return "date"
	case DataTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ParseDataType resolves a type name as used in catalog files.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "string":
		return DataTypeString, nil
	case "int64", "integer", "int":
		return DataTypeInt64, nil
	case "float64", "float", "double":
		return DataTypeFloat64, nil
	case "bool", "boolean":
		return DataTypeBool, nil
	case "date", "datetime":
		return DataTypeDate, nil
	case "bytes", "binary":
		return DataTypeBytes, nil
	default:
		return DataTypeUnknown, fmt.Errorf("unknown data type %q", s)
	}
}

// ColumnSchema describes a single column.
type ColumnSchema struct {
	Name     string
	Type     DataType
	Nullable bool
}

// TableSchema is the ordered column layout of one table.
type TableSchema struct {
	Table   string
	Columns []ColumnSchema
}

// Len returns the number of columns.
func (s *TableSchema) Len() int {
	return len(s.Columns)
}

// ColumnNames returns the column names in schema order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// dbTypeToDataType maps the storage types declared in a feed's dbTypes
// record. Sized types like VARCHAR(1000) or DECIMAL(9,3) match on their
// base name.
func dbTypeToDataType(dbType string) DataType {
	base := strings.ToUpper(dbType)
	if idx := strings.IndexByte(base, '('); idx >= 0 {
		base = base[:idx]
	}
	switch base {
	case "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		return DataTypeInt64
	case "REAL", "DOUBLE", "FLOAT", "DECIMAL":
		return DataTypeFloat64
	case "BOOLEAN":
		return DataTypeBool
	case "DATE", "DATETIME", "TIMESTAMP":
		return DataTypeDate
	case "BLOB", "LONGBLOB", "VARBINARY":
		return DataTypeBytes
	default:
		return DataTypeString
	}
}

// FromHeader derives a table schema from a parsed feed header. Columns
// without a declared dbType default to string. Primary key columns are
// non-nullable; everything else is nullable.
func FromHeader(h *epf.Header) (*TableSchema, error) {
	if len(h.Columns) == 0 {
		return nil, fmt.Errorf("feed header for table %q has no columns", h.Table)
	}
	if len(h.DBTypes) > 0 && len(h.DBTypes) != len(h.Columns) {
		return nil, fmt.Errorf("feed header for table %q declares %d dbTypes for %d columns",
			h.Table, len(h.DBTypes), len(h.Columns))
	}

	s := &TableSchema{
		Table:   h.Table,
		Columns: make([]ColumnSchema, len(h.Columns)),
	}
	for i, name := range h.Columns {
		dt := DataTypeString
		if len(h.DBTypes) > 0 {
			dt = dbTypeToDataType(h.DBTypes[i])
		}
		s.Columns[i] = ColumnSchema{
			Name:     name,
			Type:     dt,
			Nullable: !slices.Contains(h.PrimaryKeys, name),
		}
	}
	return s, nil
}

// Diff compares two schemas for the same table and returns a human-readable
// list of disagreements. An empty result means the schemas agree.
func Diff(declared, observed *TableSchema) []string {
	var diffs []string
	if declared.Len() != observed.Len() {
		diffs = append(diffs, fmt.Sprintf("column count: declared %d, observed %d",
			declared.Len(), observed.Len()))
	}
	n := min(declared.Len(), observed.Len())
	for i := 0; i < n; i++ {
		d, o := declared.Columns[i], observed.Columns[i]
		if d.Name != o.Name {
			diffs = append(diffs, fmt.Sprintf("column %d: declared name %q, observed %q", i, d.Name, o.Name))
			continue
		}
		if d.Type != o.Type {
			diffs = append(diffs, fmt.Sprintf("column %q: declared type %s, observed %s", d.Name, d.Type, o.Type))
		}
		if d.Nullable != o.Nullable {
			diffs = append(diffs, fmt.Sprintf("column %q: declared nullable=%t, observed nullable=%t", d.Name, d.Nullable, o.Nullable))
		}
	}
	return diffs
}
