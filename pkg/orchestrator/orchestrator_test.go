// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/code-impact-analyzer/pkg/index"
	"github.com/kraklabs/code-impact-analyzer/pkg/lang"
	"github.com/kraklabs/code-impact-analyzer/pkg/store"
	"github.com/kraklabs/code-impact-analyzer/pkg/trace"
)

// seedPersistedIndex writes a source file and a matching persisted index
// to ws, so acquireIndex's store.Load hits rather than invoking the real
// tree-sitter extractors (pkg/lang's own tests cover only its regex and
// string helpers, not the extractors).
func seedPersistedIndex(t *testing.T, ws, relPath string, methods ...lang.MethodInfo) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(ws, relPath)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, relPath), []byte("// placeholder\n"), 0o644))

	idx := index.New()
	for _, m := range methods {
		idx.IndexMethod(m)
	}
	_, err := store.Save(ws, idx, nil, time.Now())
	require.NoError(t, err)
}

func writePatchFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScenario_S1_AnalyzeTracesSeedFromModifiedFile(t *testing.T) {
	ws := t.TempDir()
	seedPersistedIndex(t, ws, "svc/Handler.java", lang.MethodInfo{
		QualifiedName: "Svc.Handler::handle",
		FilePath:      filepath.Join(ws, "svc/Handler.java"),
		LineRange:     lang.LineRange{Start: 10, End: 14},
	}, lang.MethodInfo{
		QualifiedName: "Svc.Caller::invoke",
		FilePath:      filepath.Join(ws, "svc/Caller.java"),
		Calls:         []lang.Call{{Target: "Svc.Handler::handle"}},
	})

	diffPath := filepath.Join(t.TempDir(), "change.patch")
	writePatchFile(t, diffPath, `diff --git a/svc/Handler.java b/svc/Handler.java
--- a/svc/Handler.java
+++ b/svc/Handler.java
@@ -10,5 +10,6 @@
 class Handler {
+  // comment
   void handle() {}
 }
`)

	o := New(ws, trace.Config{MaxDepth: 10, TraceUpstream: true, TraceDownstream: true}, nil)
	result, err := o.Analyze(context.Background(), diffPath)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Statistics.TracedChains)
	assert.True(t, result.ImpactGraph.HasNode(trace.MethodNodeID("Svc.Handler::handle")))
	assert.True(t, result.ImpactGraph.HasNode(trace.MethodNodeID("Svc.Caller::invoke")))
	assert.Empty(t, result.Warnings)
}

func TestScenario_S2_AnalyzeSkipsDeletedFileWithWarning(t *testing.T) {
	ws := t.TempDir()
	seedPersistedIndex(t, ws, "svc/Old.java", lang.MethodInfo{
		QualifiedName: "Svc.Old::run",
		FilePath:      filepath.Join(ws, "svc/Old.java"),
		LineRange:     lang.LineRange{Start: 1, End: 5},
	})

	diffPath := filepath.Join(t.TempDir(), "change.patch")
	writePatchFile(t, diffPath, `diff --git a/svc/Old.java b/svc/Old.java
--- a/svc/Old.java
+++ /dev/null
@@ -1,5 +0,0 @@
-class Old {
-  void run() {}
-}
`)

	o := New(ws, trace.DefaultConfig(), nil)
	result, err := o.Analyze(context.Background(), diffPath)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "skipping deleted file")
	assert.Equal(t, 0, result.Statistics.TracedChains)
}

func TestBoundary_B2_AnalyzeWithNoMatchingMethodsYieldsEmptyGraph(t *testing.T) {
	ws := t.TempDir()
	seedPersistedIndex(t, ws, "svc/Handler.java", lang.MethodInfo{
		QualifiedName: "Svc.Handler::handle",
		FilePath:      filepath.Join(ws, "svc/Handler.java"),
		LineRange:     lang.LineRange{Start: 100, End: 104},
	})

	diffPath := filepath.Join(t.TempDir(), "change.patch")
	writePatchFile(t, diffPath, `diff --git a/svc/Handler.java b/svc/Handler.java
--- a/svc/Handler.java
+++ b/svc/Handler.java
@@ -1,2 +1,3 @@
 class Handler {
+  // unrelated edit far from any indexed method
 }
`)

	o := New(ws, trace.DefaultConfig(), nil)
	result, err := o.Analyze(context.Background(), diffPath)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ImpactGraph.NodeCount())
	assert.Equal(t, 0, result.Statistics.TracedChains)
}

func TestIndexManagement_ClearInfoVerify(t *testing.T) {
	ws := t.TempDir()
	seedPersistedIndex(t, ws, "svc/Handler.java", lang.MethodInfo{
		QualifiedName: "Svc.Handler::handle",
		FilePath:      filepath.Join(ws, "svc/Handler.java"),
	})

	o := New(ws, trace.DefaultConfig(), nil)

	meta, ok, err := o.IndexInfo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, meta.MethodCount)

	valid, _, err := o.VerifyIndex()
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, o.ClearIndex())
	_, ok, err = o.IndexInfo()
	require.NoError(t, err)
	assert.False(t, ok)
}
