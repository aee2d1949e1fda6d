// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the code-impact-analyzer CLI: given a
// workspace and a patch, it reports the blast radius of the patch
// across intra-service call graphs and cross-service resource edges.
//
// Usage:
//
//	cia -w <workspace> -d <diff> [-o dot|json|mermaid] [-m max-depth]
//	cia -w <workspace> --index-info
//	cia -w <workspace> --clear-index
//	cia -w <workspace> --verify-index
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/code-impact-analyzer/internal/bootstrap"
	"github.com/kraklabs/code-impact-analyzer/internal/errors"
	"github.com/kraklabs/code-impact-analyzer/internal/metrics"
	"github.com/kraklabs/code-impact-analyzer/internal/output"
	"github.com/kraklabs/code-impact-analyzer/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		workspace    = flag.StringP("workspace", "w", "", "Workspace root to index (required)")
		diff         = flag.StringP("diff", "d", "", "Patch file or directory of .patch files (required for analysis)")
		outputFormat = flag.StringP("output-format", "o", "dot", "Output format: dot, json, mermaid")
		maxDepth     = flag.IntP("max-depth", "m", 10, "Maximum traversal depth per direction")
		logLevel     = flag.StringP("log-level", "l", "info", "Log level: trace, debug, info, warn, error")
		rebuildIndex = flag.Bool("rebuild-index", false, "Force a full index rebuild before analysis")
		clearIndex   = flag.Bool("clear-index", false, "Delete the persisted index and exit")
		indexInfo    = flag.Bool("index-info", false, "Print persisted index metadata and exit")
		verifyIndex  = flag.Bool("verify-index", false, "Check whether the persisted index is still valid and exit")
		noColor      = flag.Bool("no-color", false, "Disable colored output")
		jsonMode     = flag.Bool("json", false, "Emit fatal errors and the --index-info report as JSON")
		metricsAddr  = flag.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
		showVersion  = flag.Bool("version", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `code-impact-analyzer - trace the blast radius of a patch across a polyglot workspace

Usage:
  cia -w <workspace> -d <diff> [options]
  cia -w <workspace> --index-info | --clear-index | --verify-index

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cia version %s (commit %s)\n", version, commit)
		os.Exit(errors.ExitSuccess)
	}

	ui.InitColors(*noColor || os.Getenv("NO_COLOR") != "")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	metrics.Serve(*metricsAddr, logger)

	managementFlags := countTrue(*clearIndex, *indexInfo, *verifyIndex)
	if managementFlags > 1 {
		errors.FatalError(errors.NewInputError(
			"Conflicting index-management flags",
			"--clear-index, --index-info, and --verify-index are mutually exclusive",
			"Pass exactly one of --clear-index, --index-info, --verify-index",
		), *jsonMode)
	}
	if managementFlags == 1 && *diff != "" {
		errors.FatalError(errors.NewInputError(
			"Conflicting flags",
			"--clear-index/--index-info/--verify-index are mutually exclusive with -d/--diff",
			"Run an index-management flag on its own, or pass -d/--diff without it",
		), *jsonMode)
	}

	if *workspace == "" {
		errors.FatalError(errors.NewInputError(
			"Missing required flag",
			"-w/--workspace is required",
			"Pass -w /path/to/workspace",
		), *jsonMode)
	}

	if info, err := os.Stat(*workspace); err != nil || !info.IsDir() {
		errors.FatalError(errors.NewNetworkError(
			"Workspace path does not exist",
			fmt.Sprintf("%s is not a readable directory", *workspace),
			"Check the -w/--workspace path",
			err,
		), *jsonMode)
	}

	orch, _, err := bootstrap.NewAnalyzer(bootstrap.AnalyzerConfig{
		WorkspacePath: *workspace,
		MaxDepth:      *maxDepth,
		RebuildIndex:  *rebuildIndex,
	}, logger)
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Failed to construct analyzer",
			err.Error(),
			"This is unexpected; please report it",
			err,
		), *jsonMode)
	}

	if managementFlags == 1 {
		runIndexManagement(context.Background(), orch, *clearIndex, *indexInfo, *verifyIndex, *jsonMode)
		return
	}

	if *diff == "" {
		errors.FatalError(errors.NewInputError(
			"Missing required flag",
			"-d/--diff is required for analysis",
			"Pass -d /path/to/patch (or a directory of .patch files)",
		), *jsonMode)
	}
	if _, err := os.Stat(*diff); err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Diff path does not exist",
			fmt.Sprintf("%s could not be read", *diff),
			"Check the -d/--diff path",
			err,
		), *jsonMode)
	}

	result, err := orch.Analyze(context.Background(), *diff)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Analysis failed",
			err.Error(),
			"Check the workspace and diff paths, or re-run with --rebuild-index",
			err,
		), *jsonMode)
	}

	renderResult(result, *outputFormat)

	for _, w := range result.Warnings {
		ui.Warning(w)
	}
	logger.Info("analysis.done",
		"methods", result.Statistics.TotalMethods,
		"seeds", result.Statistics.TracedChains,
		"nodes", result.ImpactGraph.NodeCount(),
		"edges", result.ImpactGraph.EdgeCount(),
		"duration_ms", result.Statistics.DurationMillis,
	)
}

func countTrue(vs ...bool) int {
	n := 0
	for _, v := range vs {
		if v {
			n++
		}
	}
	return n
}

func parseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelDebug - 1
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
