// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator wires the language extractors, code index,
// persistent store, patch parser, and impact tracer into the single
// analysis pipeline spec.md 4.H describes.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kraklabs/code-impact-analyzer/pkg/configscan"
	"github.com/kraklabs/code-impact-analyzer/pkg/fswalk"
	"github.com/kraklabs/code-impact-analyzer/pkg/index"
	"github.com/kraklabs/code-impact-analyzer/pkg/lang"
	"github.com/kraklabs/code-impact-analyzer/pkg/patch"
	"github.com/kraklabs/code-impact-analyzer/pkg/store"
	"github.com/kraklabs/code-impact-analyzer/pkg/trace"
)

// Options configures one analysis run.
type Options struct {
	WorkspacePath     string
	DiffPath          string
	RebuildIndex      bool
	TraceConfig       trace.Config
	ExtraExcludeGlobs []string
}

// Statistics mirrors the original's AnalysisResult.statistics block,
// reported in logs after a run.
type Statistics struct {
	TotalFiles    int
	ParsedFiles   int
	FailedFiles   int
	TotalMethods  int
	TracedChains  int
	DurationMillis int64
}

// Result is the outcome of one analysis run.
type Result struct {
	ImpactGraph *trace.Graph
	Warnings    []string
	Statistics  Statistics
}

// Orchestrator ties the pipeline together for one workspace.
type Orchestrator struct {
	workspacePath string
	traceConfig   trace.Config
	extraExcludes []string
	forceRebuild  bool
	registry      *lang.Registry
	logger        *slog.Logger
}

// New constructs an orchestrator over workspacePath.
func New(workspacePath string, traceConfig trace.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		workspacePath: workspacePath,
		traceConfig:   traceConfig,
		logger:        logger,
		registry:      lang.NewRegistry(lang.NewJavaExtractor(), lang.NewRustExtractor()),
	}
}

// SetForceRebuild mirrors the original's set_force_rebuild.
func (o *Orchestrator) SetForceRebuild(v bool) { o.forceRebuild = v }

// SetExtraExcludeGlobs allows callers to widen the default exclusion set.
func (o *Orchestrator) SetExtraExcludeGlobs(globs []string) { o.extraExcludes = globs }

// ClearIndex implements --clear-index.
func (o *Orchestrator) ClearIndex() error {
	return store.Clear(o.workspacePath)
}

// IndexInfo implements --index-info.
func (o *Orchestrator) IndexInfo() (*store.Metadata, bool, error) {
	return store.Info(o.workspacePath)
}

// VerifyIndex implements --verify-index.
func (o *Orchestrator) VerifyIndex() (bool, *store.Metadata, error) {
	return store.Verify(o.workspacePath, o.extraExcludes)
}

// IndexRelationCounts loads the persisted index and reports its
// per-relation edge counts, for --index-info's extended output.
func (o *Orchestrator) IndexRelationCounts(ctx context.Context) (map[string]int, bool, error) {
	idx, _, ok, err := store.Load(ctx, o.workspacePath, o.extraExcludes)
	if err != nil || !ok {
		return nil, ok, err
	}
	return idx.RelationCounts(), true, nil
}

// acquireIndex implements spec.md 4.H step 2: load-validate-or-rebuild.
func (o *Orchestrator) acquireIndex(ctx context.Context) (*index.CodeIndex, error) {
	if !o.forceRebuild {
		idx, _, ok, err := store.Load(ctx, o.workspacePath, o.extraExcludes)
		if err != nil {
			return nil, fmt.Errorf("load persisted index: %w", err)
		}
		if ok {
			o.logger.Info("orchestrator.index.loaded", "workspace", o.workspacePath)
			return idx, nil
		}
	}

	o.logger.Info("orchestrator.index.building", "workspace", o.workspacePath)
	idx, diags, err := index.IndexWorkspace(ctx, o.workspacePath, o.registry, index.BuildOptions{ExtraExcludeGlobs: o.extraExcludes}, o.logger)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	for _, d := range diags {
		o.logger.Warn("orchestrator.index.diagnostic", "message", d.Message)
	}

	if err := o.associateConfig(idx); err != nil {
		o.logger.Warn("orchestrator.config.scan.error", "err", err)
	}

	if _, err := store.Save(o.workspacePath, idx, o.extraExcludes, time.Now().UTC()); err != nil {
		o.logger.Warn("orchestrator.index.save.error", "err", err)
	}
	return idx, nil
}

func (o *Orchestrator) associateConfig(idx *index.CodeIndex) error {
	var allErr error
	err := fswalk.Walk(o.workspacePath, o.extraExcludes, func(f fswalk.File) error {
		ext := filepath.Ext(f.RelPath)
		var cd configscan.ConfigData
		var err error
		switch ext {
		case ".yaml", ".yml":
			content, readErr := readFileOrEmpty(f.AbsPath)
			if readErr != nil {
				return nil
			}
			cd, err = configscan.ScanYAML(content)
		case ".xml":
			content, readErr := readFileOrEmpty(f.AbsPath)
			if readErr != nil {
				return nil
			}
			cd, err = configscan.ScanXML(content)
		default:
			return nil
		}
		if err != nil {
			o.logger.Warn("orchestrator.config.parse.error", "path", f.RelPath, "err", err)
			return nil
		}
		idx.AssociateConfigData(cd)
		return nil
	})
	if err != nil {
		allErr = err
	}
	return allErr
}

// Analyze runs the full pipeline against a patch file or directory of
// patch files at diffPath (spec.md 4.H).
func (o *Orchestrator) Analyze(ctx context.Context, diffPath string) (*Result, error) {
	start := time.Now()

	changes, err := readPatch(diffPath)
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}

	idx, err := o.acquireIndex(ctx)
	if err != nil {
		return nil, err
	}

	seeds := make(map[string]bool)
	var warnings []string
	for _, fc := range changes {
		if fc.ChangeType == patch.Deleted {
			warnings = append(warnings, fmt.Sprintf("skipping deleted file referenced by patch: %s", fc.FilePath))
			continue
		}
		absPath := filepath.Join(o.workspacePath, fc.FilePath)
		for _, hunk := range fc.Hunks {
			start, end := hunk.NewRange()
			for _, qn := range idx.MethodsInFile(absPath, start, end) {
				seeds[qn] = true
			}
		}
	}

	var seedList []string
	for qn := range seeds {
		seedList = append(seedList, qn)
	}

	tracer := trace.New(idx, o.traceConfig)
	graph, diags := tracer.TraceImpact(seedList)
	for _, d := range diags {
		warnings = append(warnings, d.Message)
	}

	return &Result{
		ImpactGraph: graph,
		Warnings:    warnings,
		Statistics: Statistics{
			TotalMethods:   idx.MethodCount(),
			TracedChains:   len(seedList),
			DurationMillis: time.Since(start).Milliseconds(),
		},
	}, nil
}

func readPatch(diffPath string) ([]patch.FileChange, error) {
	info, err := statPath(diffPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return patch.ParseDir(diffPath)
	}
	return patch.ParseFile(diffPath)
}
