// SPDX-License-Identifier: AGPL-3.0-or-later

package store

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
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRoundtrip_R2_SaveThenLoadRestoresIndex(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")

	idx := index.New()
	idx.IndexMethod(lang.MethodInfo{QualifiedName: "Svc::a", Calls: []lang.Call{{Target: "Svc::b"}}})
	idx.IndexMethod(lang.MethodInfo{QualifiedName: "Svc::b"})

	_, err := Save(ws, idx, nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	loaded, meta, ok, err := Load(context.Background(), ws, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.MethodCount())
	assert.Equal(t, 2, meta.MethodCount)
	assert.ElementsMatch(t, []string{"Svc::b"}, loaded.FindCallees("Svc::a"))
}

func TestWriteOrdering_DataFileWrittenBeforeMetadata(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")

	idx := index.New()
	idx.IndexMethod(lang.MethodInfo{QualifiedName: "Svc::a"})

	_, err := Save(ws, idx, nil, time.Now())
	require.NoError(t, err)

	dataInfo, err := os.Stat(dataPath(ws))
	require.NoError(t, err)
	metaInfo, err := os.Stat(metaPath(ws))
	require.NoError(t, err)

	assert.False(t, dataInfo.ModTime().After(metaInfo.ModTime()),
		"data file must not be written after metadata file")
}

func TestInvariant_ChecksumInvalidatedByFileSetChange(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")

	idx := index.New()
	_, err := Save(ws, idx, nil, time.Now())
	require.NoError(t, err)

	_, _, ok, err := Load(context.Background(), ws, nil)
	require.NoError(t, err)
	require.True(t, ok)

	writeSourceFile(t, ws, "b.go", "package a")

	_, _, ok, err = Load(context.Background(), ws, nil)
	require.NoError(t, err)
	assert.False(t, ok, "adding a file must invalidate the persisted checksum")
}

func TestInvariant_ChecksumInvalidatedByMtimeChange(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")

	idx := index.New()
	_, err := Save(ws, idx, nil, time.Now())
	require.NoError(t, err)

	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(ws, "a.go"), future, future))

	_, _, ok, err := Load(context.Background(), ws, nil)
	require.NoError(t, err)
	assert.False(t, ok, "an mtime change must invalidate the persisted checksum")
}

func TestLoad_MissingIndexReturnsOkFalseNotError(t *testing.T) {
	ws := t.TempDir()
	_, _, ok, err := Load(context.Background(), ws, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_WorkspacePathMismatchIsTreatedAsMiss(t *testing.T) {
	wsA := t.TempDir()
	wsB := t.TempDir()
	writeSourceFile(t, wsA, "a.go", "package a")

	idx := index.New()
	_, err := Save(wsA, idx, nil, time.Now())
	require.NoError(t, err)

	// Copy the persisted files under a different workspace root.
	require.NoError(t, os.MkdirAll(Dir(wsB), 0o755))
	data, err := os.ReadFile(dataPath(wsA))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dataPath(wsB), data, 0o644))
	meta, err := os.ReadFile(metaPath(wsA))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath(wsB), meta, 0o644))

	_, _, ok, err := Load(context.Background(), wsB, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear_RemovesIndexDirectory(t *testing.T) {
	ws := t.TempDir()
	idx := index.New()
	_, err := Save(ws, idx, nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, Clear(ws))

	_, ok, err := Info(ws)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ValidAfterSaveInvalidAfterChange(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")
	idx := index.New()
	_, err := Save(ws, idx, nil, time.Now())
	require.NoError(t, err)

	valid, meta, err := Verify(ws, nil)
	require.NoError(t, err)
	assert.True(t, valid)
	require.NotNil(t, meta)

	writeSourceFile(t, ws, "b.go", "package a")
	valid, _, err = Verify(ws, nil)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSave_PreservesCreatedAtAcrossRewrites(t *testing.T) {
	ws := t.TempDir()
	writeSourceFile(t, ws, "a.go", "package a")
	idx := index.New()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta1, err := Save(ws, idx, nil, first)
	require.NoError(t, err)

	second := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	meta2, err := Save(ws, idx, nil, second)
	require.NoError(t, err)

	assert.Equal(t, meta1.CreatedAt, meta2.CreatedAt)
	assert.NotEqual(t, meta1.UpdatedAt, meta2.UpdatedAt)
}
