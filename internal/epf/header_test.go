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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeaderFull(t *testing.T) {
	feed := strings.Join([]string{
		"itunes20250107/application#application_id\x01title\x01seller_name\x02\n",
		"#primaryKey:application_id\x02\n",
		"#dbTypes:BIGINT\x01VARCHAR(1000)\x01VARCHAR(1000)\x02\n",
		"#exportMode:FULL\x02\n",
		"1\x01Widget\x01Acme\x02\n",
	}, "")

	s := NewScanner(strings.NewReader(feed), DialectFull())
	h, first, offset, err := ReadHeader(s, DialectFull())
	require.NoError(t, err)

	assert.Equal(t, "itunes", h.Group)
	assert.Equal(t, "application", h.Table)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), h.ExportDate)
	assert.Equal(t, []string{"application_id", "title", "seller_name"}, h.Columns)
	assert.Equal(t, []string{"application_id"}, h.PrimaryKeys)
	assert.Equal(t, []string{"BIGINT", "VARCHAR(1000)", "VARCHAR(1000)"}, h.DBTypes)
	assert.Equal(t, "FULL", h.ExportMode)

	assert.Equal(t, "1\x01Widget\x01Acme", string(first))
	assert.Greater(t, offset, int64(0))
}

func TestReadHeaderSkipsLeadingNoise(t *testing.T) {
	// A raw tar stream carries member headers before the column record.
	feed := "\x00\x00junk\x02\n" +
		"itunes20250107/genre#genre_id\x01name\x02\n" +
		"#exportMode:INCREMENTAL\x02\n" +
		"10\x01Music\x02\n"

	s := NewScanner(strings.NewReader(feed), DialectFull())
	h, first, _, err := ReadHeader(s, DialectFull())
	require.NoError(t, err)

	assert.Equal(t, "genre", h.Table)
	assert.Equal(t, []string{"genre_id", "name"}, h.Columns)
	assert.Equal(t, "INCREMENTAL", h.ExportMode)
	assert.Equal(t, "10\x01Music", string(first))
}

func TestReadHeaderNoDataRecords(t *testing.T) {
	feed := "itunes20250107/genre#genre_id\x01name\x02\n" +
		"#exportMode:FULL\x02\n"

	s := NewScanner(strings.NewReader(feed), DialectFull())
	h, first, _, err := ReadHeader(s, DialectFull())
	require.NoError(t, err)
	assert.Nil(t, first)
	assert.Equal(t, []string{"genre_id", "name"}, h.Columns)
}

func TestReadHeaderUnrecognizedMemberPath(t *testing.T) {
	feed := "something-else#a\x01b\x02\n" +
		"1\x012\x02\n"

	s := NewScanner(strings.NewReader(feed), DialectFull())
	h, _, _, err := ReadHeader(s, DialectFull())
	require.NoError(t, err)
	assert.Empty(t, h.Group)
	assert.Empty(t, h.Table)
	assert.True(t, h.ExportDate.IsZero())
	assert.Equal(t, []string{"a", "b"}, h.Columns)
}

func TestReadHeaderEmptyStream(t *testing.T) {
	s := NewScanner(strings.NewReader(""), DialectFull())
	_, _, _, err := ReadHeader(s, DialectFull())
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadHeaderTabDialect(t *testing.T) {
	feed := "itunes20250107/application#application_id\ttitle\n" +
		"#primaryKey:application_id\n" +
		"1\tWidget\n"

	s := NewScanner(strings.NewReader(feed), DialectTab())
	h, first, _, err := ReadHeader(s, DialectTab())
	require.NoError(t, err)
	assert.Equal(t, []string{"application_id", "title"}, h.Columns)
	assert.Equal(t, []string{"application_id"}, h.PrimaryKeys)
	assert.Equal(t, "1\tWidget", string(first))
}

func TestParseMemberPath(t *testing.T) {
	group, table, date, ok := ParseMemberPath("itunes20250107/application_detail")
	require.True(t, ok)
	assert.Equal(t, "itunes", group)
	assert.Equal(t, "application_detail", table)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), date)

	_, _, _, ok = ParseMemberPath("not a member path")
	assert.False(t, ok)

	_, _, _, ok = ParseMemberPath("itunes2025/application")
	assert.False(t, ok)
}
