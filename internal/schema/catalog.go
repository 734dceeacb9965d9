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

package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is a predeclared mapping of table name to column layout, loaded
// from a YAML file. It serves two purposes: supplying a schema for feeds
// without a usable header, and cross-checking observed headers against what
// the operator expects.
type Catalog struct {
	tables map[string]*TableSchema
}

// catalogFile is the YAML shape of a catalog file:
//
//	tables:
//	  application:
//	    columns:
//	      - name: application_id
//	        type: int64
//	        nullable: false
type catalogFile struct {
	Tables map[string]catalogTable `yaml:"tables"`
}

type catalogTable struct {
	Columns []catalogColumn `yaml:"columns"`
}

type catalogColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable"`
}

// LoadCatalog reads a schema catalog from a YAML file. Columns default to
// nullable and type string when unspecified.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}

	c := &Catalog{tables: make(map[string]*TableSchema, len(f.Tables))}
	for name, t := range f.Tables {
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("schema catalog: table %q has no columns", name)
		}
		ts := &TableSchema{Table: name, Columns: make([]ColumnSchema, len(t.Columns))}
		for i, col := range t.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("schema catalog: table %q column %d has no name", name, i)
			}
			dt := DataTypeString
			if col.Type != "" {
				var err error
				if dt, err = ParseDataType(col.Type); err != nil {
					return nil, fmt.Errorf("schema catalog: table %q column %q: %w", name, col.Name, err)
				}
			}
			nullable := true
			if col.Nullable != nil {
				nullable = *col.Nullable
			}
			ts.Columns[i] = ColumnSchema{Name: col.Name, Type: dt, Nullable: nullable}
		}
		c.tables[name] = ts
	}
	return c, nil
}

// Lookup returns the declared schema for a table, if any.
func (c *Catalog) Lookup(table string) (*TableSchema, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.tables[table]
	return s, ok
}

// Tables returns the number of tables in the catalog.
func (c *Catalog) Tables() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}
