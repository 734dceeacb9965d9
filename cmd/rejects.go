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
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/epfrunner/internal/rejects"
)

var rejectsCmd = &cobra.Command{
	Use:   "rejects <sidecar>",
	Short: "Dump a rejected-row sidecar as text",
	Args:  cobra.ExactArgs(1),
	RunE:  runRejects,
}

func init() {
	rootCmd.AddCommand(rejectsCmd)
}

func runRejects(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := rejects.ReadAll(f)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cmd.Printf("record %d at offset %d: %s", row.RecordIndex, row.Offset, row.Reason)
		if row.Detail != "" {
			cmd.Printf(" (%s)", row.Detail)
		}
		cmd.Printf("\n  raw: %q\n", row.Raw)
	}
	cmd.Printf("%d rejected rows\n", len(rows))
	return nil
}
