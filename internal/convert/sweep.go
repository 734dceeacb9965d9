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
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// feedExtensions are the file suffixes recognized as feed archives during a
// sweep.
var feedExtensions = []string{".tbz", ".tbz2", ".tar.bz2", ".tgz", ".tar.gz", ".bz2", ".gz", ".zst", ".epf"}

// FileResult is the outcome of converting one feed file during a sweep.
type FileResult struct {
	Path    string
	Table   string
	Summary *Summary
	Err     error
}

// SweepSummary aggregates a whole sweep run.
type SweepSummary struct {
	RunID     string
	Files     []FileResult
	Converted int
	Failed    int
}

// Sweep finds every feed archive under root and converts each into a table
// directory under outRoot, running up to parallelism conversions at once.
// One file's failure never stops the others; all failures are aggregated
// into the returned error alongside the summary.
func Sweep(ctx context.Context, root, outRoot string, opts Options, parallelism int) (*SweepSummary, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	paths, err := findFeeds(root)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{RunID: uuid.NewString()}
	logger := slog.With(slog.String("run_id", summary.RunID))
	logger.Info("sweep starting",
		slog.String("root", root),
		slog.Int("files", len(paths)),
		slog.Int("parallelism", parallelism))

	var (
		mu   sync.Mutex
		merr *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, path := range paths {
		g.Go(func() error {
			result := convertOne(gctx, path, outRoot, opts)
			mu.Lock()
			defer mu.Unlock()
			summary.Files = append(summary.Files, result)
			if result.Err != nil {
				summary.Failed++
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", path, result.Err))
				logger.Error("feed conversion failed",
					slog.String("path", path),
					slog.Any("error", result.Err))
				// A per-file failure is recorded, not returned, so the
				// group keeps converting the remaining files.
				return nil
			}
			summary.Converted++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Path < summary.Files[j].Path })
	logger.Info("sweep finished",
		slog.Int("converted", summary.Converted),
		slog.Int("failed", summary.Failed))
	return summary, merr.ErrorOrNil()
}

// convertOne opens one feed file and converts it into its table directory.
func convertOne(ctx context.Context, path, outRoot string, opts Options) FileResult {
	src, err := OpenSource(path)
	if err != nil {
		return FileResult{Path: path, Err: err}
	}
	defer src.Close()

	fileOpts := opts
	fileOpts.TableName = src.Table
	if fileOpts.TableName == "" {
		fileOpts.TableName = TableNameFromPath(path)
	}
	fileOpts.OutDir = filepath.Join(outRoot, fileOpts.TableName)

	summary, err := Convert(ctx, src, fileOpts)
	return FileResult{Path: path, Table: fileOpts.TableName, Summary: summary, Err: err}
}

// findFeeds walks root and returns the sorted paths of all feed archives.
func findFeeds(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(path)
		for _, ext := range feedExtensions {
			if strings.HasSuffix(lower, ext) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input root: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
