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
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/cardinalhq/epfrunner/internal/epf"
)

// Source is an opened feed input: a decompressed byte stream plus whatever
// identity could be learned from the container before reading it.
type Source struct {
	io.ReadCloser

	// Table is the table name from the archive member path, if known.
	Table string

	// Group and ExportDate come from the archive member path too.
	Group      string
	ExportDate time.Time
}

// multiCloser closes a chain of resources in order.
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenSource opens a feed input by path. "-" or "" reads the already
// decompressed stream from stdin, matching the driver contract where an
// external decompressor pipes into us. File paths are dispatched on
// extension: .tbz/.tbz2/.tar.bz2 and .tgz/.tar.gz are opened through the
// archive to the first regular member, .bz2/.gz/.zst are plain compressed
// streams, anything else is read as-is.
func OpenSource(path string) (*Source, error) {
	if path == "" || path == "-" {
		return &Source{ReadCloser: io.NopCloser(os.Stdin)}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tbz"), strings.HasSuffix(lower, ".tbz2"),
		strings.HasSuffix(lower, ".tar.bz2"):
		return tarSource(bzip2.NewReader(f), f)

	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return tarSource(zr, f, zr)

	case strings.HasSuffix(lower, ".bz2"):
		return &Source{ReadCloser: &multiCloser{Reader: bzip2.NewReader(f), closers: []io.Closer{f}}}, nil

	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &Source{ReadCloser: &multiCloser{Reader: zr, closers: []io.Closer{zr, f}}}, nil

	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return &Source{ReadCloser: &multiCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), f}}}, nil

	default:
		return &Source{ReadCloser: f}, nil
	}
}

// tarSource advances a tar stream to its first regular member and exposes
// that member's contents. Feed archives carry exactly one member.
func tarSource(r io.Reader, closers ...io.Closer) (*Source, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			if err == io.EOF {
				return nil, fmt.Errorf("archive has no regular members")
			}
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		src := &Source{ReadCloser: &multiCloser{Reader: tr, closers: closers}}
		if group, table, date, ok := epf.ParseMemberPath(hdr.Name); ok {
			src.Group = group
			src.Table = table
			src.ExportDate = date
		}
		return src, nil
	}
}

// TableNameFromPath guesses a table name from a feed file path by stripping
// directories and known extensions; used when neither the stream nor the
// archive names the table.
func TableNameFromPath(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".tbz2", ".tbz", ".tgz", ".bz2", ".gz", ".zst", ".tar", ".epf", ".txt"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
