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

package convert

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/epfrunner/internal/epf"
	"github.com/cardinalhq/epfrunner/internal/rejects"
	"github.com/cardinalhq/epfrunner/internal/schema"
)

// applicationFeed is a small full-dialect feed with a complete header.
const applicationFeed = "itunes20250107/application#application_id\x01title\x02\n" +
	"#primaryKey:application_id\x02\n" +
	"#dbTypes:BIGINT\x01VARCHAR(1000)\x02\n" +
	"#exportMode:FULL\x02\n" +
	"1\x01Widget\x02\n" +
	"2\x01Gadget\x02\n" +
	"3\x01Gizmo\x02\n"

func readParquet(t *testing.T, filename string) []map[string]any {
	t.Helper()
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.OpenFile(f, st.Size())
	require.NoError(t, err)

	pr := parquet.NewGenericReader[map[string]any](f, pf.Schema())
	defer func() { _ = pr.Close() }()

	var rows []map[string]any
	for {
		buf := make([]map[string]any, 100)
		for i := range buf {
			buf[i] = make(map[string]any)
		}
		n, err := pr.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
	}
}

func readTable(t *testing.T, s *Summary) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, p := range s.Partitions {
		rows = append(rows, readParquet(t, p.FileName)...)
	}
	return rows
}

func TestConvertEndToEnd(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "application")

	summary, err := Convert(context.Background(), strings.NewReader(applicationFeed), Options{
		Dialect: epf.DialectFull(),
		OutDir:  outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, "application", summary.Table)
	assert.Equal(t, "itunes", summary.Group)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), summary.ExportDate)
	assert.Equal(t, "FULL", summary.ExportMode)
	assert.Equal(t, int64(3), summary.Accepted())
	assert.Equal(t, int64(0), summary.Rejected())
	require.Len(t, summary.Partitions, 1)

	rows := readTable(t, summary)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["application_id"])
	assert.Equal(t, "Widget", rows[0]["title"])
	assert.Equal(t, "Gizmo", rows[2]["title"])
}

func TestConvertPartitionSplit(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "application")

	summary, err := Convert(context.Background(), strings.NewReader(applicationFeed), Options{
		Dialect:        epf.DialectFull(),
		OutDir:         outDir,
		RecordsPerFile: 2,
	})
	require.NoError(t, err)
	require.Len(t, summary.Partitions, 2)
	assert.Equal(t, int64(2), summary.Partitions[0].RecordCount)
	assert.Equal(t, int64(1), summary.Partitions[1].RecordCount)

	// Feed order survives the partition boundary.
	rows := readTable(t, summary)
	require.Len(t, rows, 3)
	for i, want := range []string{"Widget", "Gadget", "Gizmo"} {
		assert.Equal(t, want, rows[i]["title"])
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "application")
	opts := Options{Dialect: epf.DialectFull(), OutDir: outDir, RecordsPerFile: 2}

	first, err := Convert(context.Background(), strings.NewReader(applicationFeed), opts)
	require.NoError(t, err)
	second, err := Convert(context.Background(), strings.NewReader(applicationFeed), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Stats, second.Stats)
	require.Equal(t, len(first.Partitions), len(second.Partitions))
	for i := range first.Partitions {
		assert.Equal(t, first.Partitions[i].FileName, second.Partitions[i].FileName)
		assert.Equal(t, first.Partitions[i].RecordCount, second.Partitions[i].RecordCount)
	}
	assert.Equal(t, readTable(t, first), readTable(t, second))
}

func TestConvertRejectsSidecar(t *testing.T) {
	feed := "itunes20250107/application#application_id\x01title\x02\n" +
		"#primaryKey:application_id\x02\n" +
		"#dbTypes:BIGINT\x01VARCHAR(1000)\x02\n" +
		"abc\x01Broken\x02\n" +
		"2\x01Fine\x02\n"
	outDir := filepath.Join(t.TempDir(), "application")

	summary, err := Convert(context.Background(), strings.NewReader(feed), Options{
		Dialect:        epf.DialectFull(),
		OutDir:         outDir,
		RejectsSidecar: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Accepted())
	assert.Equal(t, int64(1), summary.Rejected())

	f, err := os.Open(filepath.Join(outDir, RejectsSidecarName))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rejected, err := rejects.ReadAll(f)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, rejects.ReasonTypeCoercionError, rejected[0].Reason)
	assert.Equal(t, "abc\x01Broken", string(rejected[0].Raw))
}

func TestConvertCreatesOutDirForSidecar(t *testing.T) {
	// The output directory does not exist yet when the sidecar opens; the
	// default configuration enables the sidecar, so a fresh directory must
	// work without any pre-created path.
	outDir := filepath.Join(t.TempDir(), "out", "itunes", "application")

	summary, err := Convert(context.Background(), strings.NewReader(applicationFeed), Options{
		Dialect:        epf.DialectFull(),
		OutDir:         outDir,
		RejectsSidecar: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Accepted())
	assert.FileExists(t, filepath.Join(outDir, "part-00000.parquet"))
}

func TestConvertNoSidecarWhenCleanFeed(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "application")

	_, err := Convert(context.Background(), strings.NewReader(applicationFeed), Options{
		Dialect:        epf.DialectFull(),
		OutDir:         outDir,
		RejectsSidecar: true,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, RejectsSidecarName))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertHeaderlessWithCatalog(t *testing.T) {
	catalog, err := schema.ParseCatalog([]byte(`
tables:
  genre:
    columns:
      - name: genre_id
        type: int64
        nullable: false
      - name: name
`))
	require.NoError(t, err)

	feed := "10\x01Music\x02\n11\x01Podcasts\x02\n"
	outDir := filepath.Join(t.TempDir(), "genre")

	summary, err := Convert(context.Background(), strings.NewReader(feed), Options{
		Dialect:   epf.DialectFull(),
		OutDir:    outDir,
		TableName: "genre",
		NoHeader:  true,
		Catalog:   catalog,
	})
	require.NoError(t, err)
	assert.Equal(t, "genre", summary.Table)
	assert.Equal(t, int64(2), summary.Accepted())
}

func TestConvertHeaderlessWithoutCatalogFails(t *testing.T) {
	_, err := Convert(context.Background(), strings.NewReader("10\x01Music\x02\n"), Options{
		Dialect:   epf.DialectFull(),
		OutDir:    filepath.Join(t.TempDir(), "genre"),
		TableName: "genre",
		NoHeader:  true,
	})
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestConvertHeaderWinsOverCatalog(t *testing.T) {
	// The catalog declares title as int64; the feed header says VARCHAR.
	// The header is authoritative, so "Widget" converts cleanly.
	catalog, err := schema.ParseCatalog([]byte(`
tables:
  application:
    columns:
      - name: application_id
        type: int64
        nullable: false
      - name: title
        type: int64
`))
	require.NoError(t, err)

	outDir := filepath.Join(t.TempDir(), "application")
	summary, err := Convert(context.Background(), strings.NewReader(applicationFeed), Options{
		Dialect: epf.DialectFull(),
		OutDir:  outDir,
		Catalog: catalog,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Accepted())
	assert.Equal(t, int64(0), summary.Rejected())
}

func TestConvertEmptyStreamFails(t *testing.T) {
	_, err := Convert(context.Background(), strings.NewReader(""), Options{
		Dialect: epf.DialectFull(),
		OutDir:  filepath.Join(t.TempDir(), "x"),
	})
	assert.ErrorIs(t, err, epf.ErrNoHeader)
}

func TestConvertCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Convert(ctx, strings.NewReader(applicationFeed), Options{
		Dialect: epf.DialectFull(),
		OutDir:  filepath.Join(t.TempDir(), "application"),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertTabDialect(t *testing.T) {
	feed := "itunes20250107/application#application_id\ttitle\n" +
		"#primaryKey:application_id\n" +
		"#dbTypes:BIGINT\tVARCHAR(1000)\n" +
		"1\tWidget\x01\tDeluxe\n" +
		"2\tGadget\x01\ns\n"
	outDir := filepath.Join(t.TempDir(), "application")

	summary, err := Convert(context.Background(), strings.NewReader(feed), Options{
		Dialect: epf.DialectTab(),
		OutDir:  outDir,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Accepted())

	rows := readTable(t, summary)
	require.Len(t, rows, 2)
	assert.Equal(t, "Widget\tDeluxe", rows[0]["title"])
	assert.Equal(t, "Gadget\ns", rows[1]["title"])
}
