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

// Package bootstrap constructs an orchestrator.Orchestrator from parsed
// CLI flags: validating the workspace path, defaulting the trace
// configuration, and wiring the extractor/store/tracer stack.
package bootstrap

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kraklabs/code-impact-analyzer/pkg/orchestrator"
	"github.com/kraklabs/code-impact-analyzer/pkg/trace"
)

// AnalyzerConfig holds the parameters needed to construct an analyzer
// for one run (mirrors the CLI flag table in SPEC_FULL.md).
type AnalyzerConfig struct {
	WorkspacePath     string
	MaxDepth          int
	RebuildIndex      bool
	ExtraExcludeGlobs []string
}

// AnalyzerInfo describes the constructed orchestrator, for logging.
type AnalyzerInfo struct {
	WorkspacePath string
	MaxDepth      int
}

// NewAnalyzer validates config and constructs an orchestrator ready to
// run Analyze. It is idempotent: calling it repeatedly with the same
// config is always safe, since it performs no I/O beyond path
// validation.
func NewAnalyzer(config AnalyzerConfig, logger *slog.Logger) (*orchestrator.Orchestrator, *AnalyzerInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.WorkspacePath == "" {
		return nil, nil, fmt.Errorf("workspace path is required")
	}
	abs, err := filepath.Abs(config.WorkspacePath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace path: %w", err)
	}
	config.WorkspacePath = abs

	if config.MaxDepth <= 0 {
		config.MaxDepth = 10
	}

	logger.Info("bootstrap.orchestrator.init.start",
		"workspace", config.WorkspacePath,
		"max_depth", config.MaxDepth,
	)

	traceConfig := trace.Config{
		MaxDepth:          config.MaxDepth,
		TraceUpstream:     true,
		TraceDownstream:   true,
		TraceCrossService: true,
	}

	orch := orchestrator.New(config.WorkspacePath, traceConfig, logger)
	orch.SetForceRebuild(config.RebuildIndex)
	orch.SetExtraExcludeGlobs(config.ExtraExcludeGlobs)

	logger.Info("bootstrap.orchestrator.init.success", "workspace", config.WorkspacePath)

	return orch, &AnalyzerInfo{WorkspacePath: config.WorkspacePath, MaxDepth: config.MaxDepth}, nil
}
