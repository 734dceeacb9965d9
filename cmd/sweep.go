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
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Convert every feed archive under an input root",
	Long: `Sweep walks an input root for feed archives and converts each one into
a table directory under the output root. Conversions run in parallel, and
one file's failure does not stop the remaining files.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().String("input-root", "", "Directory to walk for feed archives")
	_ = sweepCmd.MarkFlagRequired("input-root")
	sweepCmd.Flags().StringP("out", "o", "", "Output root; one table directory is created per feed")
	_ = sweepCmd.MarkFlagRequired("out")
	sweepCmd.Flags().Int("parallelism", 0, "Concurrent conversions (default from configuration)")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	inputRoot, _ := cmd.Flags().GetString("input-root")
	out, _ := cmd.Flags().GetString("out")
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	if parallelism <= 0 {
		parallelism = cfg.Sweep.Parallelism
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := setupTelemetry("epfrunner-sweep")
	defer cancel()

	summary, sweepErr := convert.Sweep(ctx, inputRoot, out, opts, parallelism)
	if summary != nil {
		for _, f := range summary.Files {
			if f.Err != nil {
				cmd.Printf("FAILED %s: %v\n", f.Path, f.Err)
				continue
			}
			printSummary(cmd, f.Summary)
		}
		cmd.Printf("sweep %s: %d converted, %d failed\n", summary.RunID, summary.Converted, summary.Failed)
	}
	if sweepErr != nil {
		return fmt.Errorf("sweep completed with failures: %w", sweepErr)
	}
	return nil
}
