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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/epfrunner/config"
	"github.com/cardinalhq/epfrunner/internal/convert"
	"github.com/cardinalhq/epfrunner/internal/epf"
	"github.com/cardinalhq/epfrunner/internal/schema"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert one feed stream into a table directory of parquet partitions",
	Long: `Convert reads one decompressed EPF feed, from stdin or from an archive
file, and writes numbered parquet partitions plus a rejected-row sidecar
into the output table directory.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("input", "i", "-", "Feed file path, or - for a decompressed stream on stdin")
	convertCmd.Flags().StringP("out", "o", "", "Output table directory")
	_ = convertCmd.MarkFlagRequired("out")
	convertCmd.Flags().String("table", "", "Table name override when the stream does not carry one")
	convertCmd.Flags().Bool("no-header", false, "Stream has no feed header; schema must come from the catalog")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	out, _ := cmd.Flags().GetString("out")
	table, _ := cmd.Flags().GetString("table")
	noHeader, _ := cmd.Flags().GetBool("no-header")

	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}
	opts.OutDir = out
	opts.TableName = table
	opts.NoHeader = noHeader

	ctx, cancel := setupTelemetry("epfrunner-convert")
	defer cancel()

	src, err := convert.OpenSource(input)
	if err != nil {
		return err
	}
	defer src.Close()
	if opts.TableName == "" {
		opts.TableName = src.Table
	}

	summary, err := convert.Convert(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("convert %s: %w", input, err)
	}
	printSummary(cmd, summary)
	return nil
}

// buildOptions translates configuration into conversion options shared by
// the convert and sweep commands.
func buildOptions(cfg *config.Config) (convert.Options, error) {
	dialect, err := epf.ParseDialect(cfg.Ingest.Dialect)
	if err != nil {
		return convert.Options{}, err
	}
	policy, err := epf.ParseUnknownEscapePolicy(cfg.Ingest.UnknownEscape)
	if err != nil {
		return convert.Options{}, err
	}
	dialect.UnknownEscape = policy

	var catalog *schema.Catalog
	if cfg.SchemaCatalog != "" {
		if catalog, err = schema.LoadCatalog(cfg.SchemaCatalog); err != nil {
			return convert.Options{}, err
		}
	}

	return convert.Options{
		Dialect:        dialect,
		Encoding:       cfg.Ingest.Encoding,
		Catalog:        catalog,
		BatchSize:      cfg.Ingest.BatchSize,
		RecordsPerFile: cfg.Writer.RecordsPerFile,
		BytesPerFile:   cfg.Writer.BytesPerFile,
		Compression:    cfg.Writer.Compression,
		RejectsSidecar: cfg.Ingest.RejectsSidecar,
	}, nil
}

func printSummary(cmd *cobra.Command, s *convert.Summary) {
	cmd.Printf("table %s: %d rows accepted, %d rejected, %d partitions\n",
		s.Table, s.Accepted(), s.Rejected(), len(s.Partitions))
	if s.Rejected() > 0 {
		cmd.Printf("  rejected: %d encoding_error, %d field_count_mismatch, %d type_coercion_error\n",
			s.Stats.EncodingErrors, s.Stats.FieldCountMismatches, s.Stats.TypeCoercionErrors)
	}
	for _, p := range s.Partitions {
		cmd.Printf("  %s: %d rows, %d bytes\n", p.FileName, p.RecordCount, p.FileSize)
	}
}
