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
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/epfrunner/config"
	"github.com/cardinalhq/epfrunner/internal/convert"
	"github.com/cardinalhq/epfrunner/internal/epf"
)

var headerCmd = &cobra.Command{
	Use:   "header",
	Short: "Print the parsed feed header of one archive or stream",
	RunE:  runHeader,
}

func init() {
	headerCmd.Flags().StringP("input", "i", "-", "Feed file path, or - for a decompressed stream on stdin")
	rootCmd.AddCommand(headerCmd)
}

func runHeader(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dialect, err := epf.ParseDialect(cfg.Ingest.Dialect)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	src, err := convert.OpenSource(input)
	if err != nil {
		return err
	}
	defer src.Close()

	scanner := epf.NewScanner(src, dialect)
	h, _, _, err := epf.ReadHeader(scanner, dialect)
	if err != nil {
		return err
	}

	cmd.Printf("table:       %s\n", h.Table)
	cmd.Printf("group:       %s\n", h.Group)
	if !h.ExportDate.IsZero() {
		cmd.Printf("export date: %s\n", h.ExportDate.Format("2006-01-02"))
	}
	cmd.Printf("export mode: %s\n", h.ExportMode)
	cmd.Printf("columns:     %d\n", len(h.Columns))
	for i, name := range h.Columns {
		dbType := ""
		if i < len(h.DBTypes) {
			dbType = h.DBTypes[i]
		}
		cmd.Printf("  %-32s %s\n", name, dbType)
	}
	if len(h.PrimaryKeys) > 0 {
		cmd.Printf("primary key: %s\n", strings.Join(h.PrimaryKeys, ", "))
	}
	return nil
}
