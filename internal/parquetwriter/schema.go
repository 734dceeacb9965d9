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
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/epfrunner/internal/schema"
)

// parquetSchema builds the parquet schema for a table. Every column is
// optional at the parquet level so a null from a demoted field is always
// representable; nullability enforcement happens upstream in the reader.
func parquetSchema(s *schema.TableSchema) (*parquet.Schema, error) {
	nodes := make(map[string]parquet.Node, s.Len())
	for _, col := range s.Columns {
		node, err := parquetNodeForColumn(col)
		if err != nil {
			return nil, err
		}
		nodes[col.Name] = node
	}
	return parquet.NewSchema(s.Table, parquet.Group(nodes)), nil
}

// parquetNodeForColumn maps a column type to a parquet node. Leaf nodes use
// dictionary encoding, which pays off on the highly repetitive feed data.
func parquetNodeForColumn(col schema.ColumnSchema) (parquet.Node, error) {
	enc := func(n parquet.Node) parquet.Node {
		return parquet.Encoded(n, &parquet.RLEDictionary)
	}
	switch col.Type {
	case schema.DataTypeString, schema.DataTypeUnknown:
		return parquet.Optional(enc(parquet.String())), nil
	case schema.DataTypeInt64:
		return parquet.Optional(enc(parquet.Int(64))), nil
	case schema.DataTypeFloat64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType)), nil
	case schema.DataTypeBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType)), nil
	case schema.DataTypeDate:
		return parquet.Optional(parquet.Timestamp(parquet.Millisecond)), nil
	case schema.DataTypeBytes:
		return parquet.Optional(parquet.Leaf(parquet.ByteArrayType)), nil
	default:
		return nil, fmt.Errorf("column %q: unsupported type %s", col.Name, col.Type)
	}
}

// writerOptions returns the parquet writer options for one partition file.
func writerOptions(cfg *WriterConfig, s *parquet.Schema) ([]parquet.WriterOption, error) {
	codec, err := cfg.codec()
	if err != nil {
		return nil, err
	}
	return []parquet.WriterOption{
		s,
		codec,
		parquet.PageBufferSize(32 * 1024),
		parquet.MaxRowsPerRowGroup(80_000),
	}, nil
}
