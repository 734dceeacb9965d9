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

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
type Config struct {
	Ingest IngestConfig `mapstructure:"ingest"`
	Writer WriterConfig `mapstructure:"writer"`
	Sweep  SweepConfig  `mapstructure:"sweep"`

	// SchemaCatalog is the path of a YAML file predeclaring table schemas.
	// Optional; feeds with headers do not need it.
	SchemaCatalog string `mapstructure:"schema_catalog"`
}

// IngestConfig controls the record parser.
type IngestConfig struct {
	// Dialect is "full" or "tab".
	Dialect string `mapstructure:"dialect"`

	// Encoding is the fixed field text encoding, e.g. "utf-8" or "latin1".
	Encoding string `mapstructure:"encoding"`

	// UnknownEscape is "literal" or "reject".
	UnknownEscape string `mapstructure:"unknown_escape"`

	// BatchSize is the reader batch size in rows.
	BatchSize int `mapstructure:"batch_size"`

	// RejectsSidecar writes rejected rows to a CBOR sidecar per table.
	RejectsSidecar bool `mapstructure:"rejects_sidecar"`
}

// WriterConfig controls partition splitting and encoding.
type WriterConfig struct {
	RecordsPerFile int64  `mapstructure:"records_per_file"`
	BytesPerFile   int64  `mapstructure:"bytes_per_file"`
	Compression    string `mapstructure:"compression"`
}

// SweepConfig controls the multi-file driver.
type SweepConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			Dialect:        "full",
			Encoding:       "utf-8",
			UnknownEscape:  "literal",
			BatchSize:      1000,
			RejectsSidecar: true,
		},
		Writer: WriterConfig{
			Compression: "snappy",
		},
		Sweep: SweepConfig{
			Parallelism: 4,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "EPFRUNNER" and the dot character in
// keys is replaced by an underscore. For example, "writer.compression"
// becomes "EPFRUNNER_WRITER_COMPRESSION".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("EPFRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
