// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kraklabs/code-impact-analyzer/internal/errors"
	"github.com/kraklabs/code-impact-analyzer/internal/output"
	"github.com/kraklabs/code-impact-analyzer/internal/ui"
	"github.com/kraklabs/code-impact-analyzer/pkg/orchestrator"
)

// runIndexManagement handles --clear-index / --index-info / --verify-index,
// which are mutually exclusive with running an analysis (spec.md section 6).
func runIndexManagement(ctx context.Context, orch *orchestrator.Orchestrator, clear, info, verify, jsonMode bool) {
	switch {
	case clear:
		if err := orch.ClearIndex(); err != nil {
			errors.FatalError(errors.NewDatabaseError(
				"Failed to clear index",
				err.Error(),
				"Check filesystem permissions on the workspace's .code-impact-analyzer directory",
				err,
			), jsonMode)
		}
		ui.Success("Index cleared")

	case info:
		meta, ok, err := orch.IndexInfo()
		if err != nil {
			errors.FatalError(errors.NewDatabaseError("Failed to read index metadata", err.Error(), "", err), jsonMode)
		}
		if !ok {
			fmt.Println("No index found")
			return
		}
		counts, countsOK, err := orch.IndexRelationCounts(ctx)
		if err != nil {
			errors.FatalError(errors.NewDatabaseError("Failed to read index relations", err.Error(), "", err), jsonMode)
		}
		if jsonMode {
			type infoOutput struct {
				Metadata       any            `json:"metadata"`
				RelationCounts map[string]int `json:"relation_counts,omitempty"`
			}
			out := infoOutput{Metadata: meta}
			if countsOK {
				out.RelationCounts = counts
			}
			_ = output.JSON(out)
			return
		}
		fmt.Println("Index Information:")
		fmt.Printf("  Version: %s\n", meta.Version)
		fmt.Printf("  Workspace: %s\n", meta.WorkspacePath)
		fmt.Printf("  Created: %s\n", meta.CreatedAt)
		fmt.Printf("  Updated: %s\n", meta.UpdatedAt)
		fmt.Printf("  Files: %d\n", meta.FileCount)
		fmt.Printf("  Methods: %d\n", meta.MethodCount)
		fmt.Printf("  Checksum: %s\n", meta.Checksum)
		if countsOK {
			fmt.Println("  Relations:")
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("    %s: %d\n", k, counts[k])
			}
		}

	case verify:
		valid, meta, err := orch.VerifyIndex()
		if err != nil {
			errors.FatalError(errors.NewDatabaseError("Failed to verify index", err.Error(), "", err), jsonMode)
		}
		if meta == nil {
			fmt.Println("No index found")
			return
		}
		if valid {
			ui.Success("Index is valid")
		} else {
			ui.Warning("Index is invalid or outdated")
		}
	}
}

// renderResult writes the impact graph in the requested format. Per
// spec.md section 6, an unimplemented output format falls back to DOT
// with a warning; every format here is genuinely implemented, so the
// fallback path only guards against an unrecognized -o value.
func renderResult(result *orchestrator.Result, format string) {
	switch format {
	case "json":
		if err := output.JSON(result.ImpactGraph.ToJSON()); err != nil {
			slog.Default().Warn("render.json.error", "err", err)
		}
	case "mermaid":
		fmt.Println(result.ImpactGraph.RenderMermaid())
	case "dot":
		fmt.Println(result.ImpactGraph.RenderDOT())
	default:
		slog.Default().Warn("render.format.unknown.fallback", "format", format)
		fmt.Println(result.ImpactGraph.RenderDOT())
	}
}
