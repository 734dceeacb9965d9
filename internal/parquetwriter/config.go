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

const (
	// DefaultRecordsPerFile bounds a partition's row count.
	DefaultRecordsPerFile = int64(50_000)

	// DefaultBytesPerFile bounds a partition by estimated input bytes.
	DefaultBytesPerFile = int64(100 * 1024 * 1024)

	// NoRecordLimitPerFile disables row-count splitting.
	NoRecordLimitPerFile = int64(-1)

	// NoByteLimitPerFile disables byte-size splitting.
	NoByteLimitPerFile = int64(-1)
)

// WriterConfig contains all configuration options for creating a
// TableWriter.
type WriterConfig struct {
	// Dir is the table's output directory. Created if missing.
	Dir string

	// Schema is the table's column layout. All partitions written by one
	// writer share it.
	Schema *schema.TableSchema

	// RecordsPerFile caps the rows per partition. Zero means
	// DefaultRecordsPerFile; NoRecordLimitPerFile disables the cap.
	RecordsPerFile int64

	// BytesPerFile caps the estimated uncompressed bytes per partition.
	// Zero means DefaultBytesPerFile; NoByteLimitPerFile disables the cap.
	BytesPerFile int64

	// Compression is the parquet codec name: "snappy" (default), "zstd",
	// or "none".
	Compression string
}

// Validate checks that the configuration is valid and returns an error if
// not.
func (c *WriterConfig) Validate() error {
	if c.Dir == "" {
		return &ConfigError{Field: "Dir", Message: "cannot be empty"}
	}
	if c.Schema == nil || c.Schema.Len() == 0 {
		return &ConfigError{Field: "Schema", Message: "must have at least one column"}
	}
	if _, err := c.codec(); err != nil {
		return &ConfigError{Field: "Compression", Message: err.Error()}
	}
	return nil
}

// GetRecordsPerFile returns the effective row cap, or -1 when disabled.
func (c *WriterConfig) GetRecordsPerFile() int64 {
	if c.RecordsPerFile == 0 {
		return DefaultRecordsPerFile
	}
	return c.RecordsPerFile
}

// GetBytesPerFile returns the effective byte cap, or -1 when disabled.
func (c *WriterConfig) GetBytesPerFile() int64 {
	if c.BytesPerFile == 0 {
		return DefaultBytesPerFile
	}
	return c.BytesPerFile
}

func (c *WriterConfig) codec() (parquet.WriterOption, error) {
	switch c.Compression {
	case "", "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", c.Compression)
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "parquetwriter config: " + e.Field + " " + e.Message
}
