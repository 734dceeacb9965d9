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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scanAll drains a scanner, copying each record.
func scanAll(t *testing.T, s *Scanner) ([]string, []int64) {
	t.Helper()
	var recs []string
	var offsets []int64
	for {
		rec, offset, err := s.Next()
		if err == io.EOF {
			return recs, offsets
		}
		require.NoError(t, err)
		recs = append(recs, string(rec))
		offsets = append(offsets, offset)
	}
}

func TestScannerFullDialect(t *testing.T) {
	input := "a\x01b\x02\nc\x01d\x02\n"
	s := NewScanner(strings.NewReader(input), DialectFull())

	recs, offsets := scanAll(t, s)
	assert.Equal(t, []string{"a\x01b", "c\x01d"}, recs)
	assert.Equal(t, []int64{0, 5}, offsets)
}

func TestScannerFullDialectLoneNewlineDoesNotSplit(t *testing.T) {
	input := "a\nb\x02\n"
	s := NewScanner(strings.NewReader(input), DialectFull())

	recs, _ := scanAll(t, s)
	assert.Equal(t, []string{"a\nb"}, recs)
}

func TestScannerTabDialectEscapedNewlineDoesNotSplit(t *testing.T) {
	input := "1\tGadget\x01\ns\n2\tWidget\n"
	s := NewScanner(strings.NewReader(input), DialectTab())

	recs, _ := scanAll(t, s)
	assert.Equal(t, []string{"1\tGadget\x01\ns", "2\tWidget"}, recs)
}

func TestScannerFinalRecordWithoutDelimiter(t *testing.T) {
	input := "a\x02\nb"
	s := NewScanner(strings.NewReader(input), DialectFull())

	recs, _ := scanAll(t, s)
	assert.Equal(t, []string{"a", "b"}, recs)
}

func TestScannerEmptyStream(t *testing.T) {
	s := NewScanner(strings.NewReader(""), DialectFull())

	_, _, err := s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestScannerEOFIsSticky(t *testing.T) {
	s := NewScanner(strings.NewReader("a\x02\n"), DialectFull())

	_, _, err := s.Next()
	require.NoError(t, err)
	_, _, err = s.Next()
	assert.Equal(t, io.EOF, err)
	_, _, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSplitFieldsTabDialect(t *testing.T) {
	d := DialectTab()

	fields := d.SplitFields([]byte("1\x01\tWidget\t3.5"))
	require.Len(t, fields, 2)
	assert.Equal(t, "1\x01\tWidget", string(fields[0]))
	assert.Equal(t, "3.5", string(fields[1]))
}

func TestSplitFieldsEmptyTrailingField(t *testing.T) {
	d := DialectFull()

	fields := d.SplitFields([]byte("a\x01b\x01"))
	require.Len(t, fields, 3)
	assert.Equal(t, "", string(fields[2]))
}

func TestSplitFieldsSingleField(t *testing.T) {
	d := DialectFull()

	fields := d.SplitFields([]byte("abc"))
	require.Len(t, fields, 1)
	assert.Equal(t, "abc", string(fields[0]))
}

func TestIsComment(t *testing.T) {
	d := DialectFull()
	assert.True(t, d.IsComment([]byte("#primaryKey:id")))
	assert.False(t, d.IsComment([]byte("data")))
	assert.False(t, d.IsComment(nil))
}
