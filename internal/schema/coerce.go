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
	"strconv"
	"time"
)

// Date layouts seen in feeds, tried in order.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006 01 02",
}

// Coerce converts one raw field value to the column's type. An empty string
// is null for every type. A conversion failure returns a non-nil error; the
// caller decides whether that demotes the field to null or rejects the row,
// based on the column's nullability.
func (c *ColumnSchema) Coerce(value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	switch c.Type {
	case DataTypeString, DataTypeUnknown:
		return value, nil
	case DataTypeInt64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %q is not an integer", c.Name, value)
		}
		return v, nil
	case DataTypeFloat64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %q is not a float", c.Name, value)
		}
		return v, nil
	case DataTypeBool:
		// Feeds encode booleans as 0/1.
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %q is not a boolean", c.Name, value)
		}
		return v != 0, nil
	case DataTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("column %q: %q is not a date", c.Name, value)
	case DataTypeBytes:
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("column %q: unsupported type %s", c.Name, c.Type)
	}
}
