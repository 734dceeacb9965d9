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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceEmptyIsNull(t *testing.T) {
	for _, dt := range []DataType{DataTypeString, DataTypeInt64, DataTypeFloat64, DataTypeBool, DataTypeDate, DataTypeBytes} {
		c := &ColumnSchema{Name: "c", Type: dt, Nullable: true}
		v, err := c.Coerce("")
		require.NoError(t, err, "type %s", dt)
		assert.Nil(t, v, "type %s", dt)
	}
}

func TestCoerceInt64(t *testing.T) {
	c := &ColumnSchema{Name: "n", Type: DataTypeInt64}

	v, err := c.Coerce("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = c.Coerce("-7")
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	_, err = c.Coerce("abc")
	assert.Error(t, err)

	_, err = c.Coerce("3.5")
	assert.Error(t, err)
}

func TestCoerceFloat64(t *testing.T) {
	c := &ColumnSchema{Name: "price", Type: DataTypeFloat64}

	v, err := c.Coerce("3.99")
	require.NoError(t, err)
	assert.Equal(t, 3.99, v)

	_, err = c.Coerce("free")
	assert.Error(t, err)
}

func TestCoerceBool(t *testing.T) {
	c := &ColumnSchema{Name: "flag", Type: DataTypeBool}

	v, err := c.Coerce("1")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = c.Coerce("0")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = c.Coerce("yes")
	assert.Error(t, err)
}

func TestCoerceDate(t *testing.T) {
	c := &ColumnSchema{Name: "release_date", Type: DataTypeDate}

	v, err := c.Coerce("2025-01-07 13:45:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 13, 45, 0, 0, time.UTC), v)

	v, err = c.Coerce("2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), v)

	v, err = c.Coerce("2025 01 07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), v)

	_, err = c.Coerce("January 7, 2025")
	assert.Error(t, err)
}

func TestCoerceBytes(t *testing.T) {
	c := &ColumnSchema{Name: "blob", Type: DataTypeBytes}

	v, err := c.Coerce("payload")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), v)
}

func TestCoerceString(t *testing.T) {
	c := &ColumnSchema{Name: "title", Type: DataTypeString}

	v, err := c.Coerce("Widget\tDeluxe")
	require.NoError(t, err)
	assert.Equal(t, "Widget\tDeluxe", v)
}
