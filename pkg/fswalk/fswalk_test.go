// SPDX-License-Identifier: AGPL-3.0-or-later

package fswalk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcluded_HiddenAndBuildDirsAreSkipped(t *testing.T) {
	assert.True(t, Excluded(".git/HEAD", nil))
	assert.True(t, Excluded("svc/target/classes/Foo.class", nil))
	assert.True(t, Excluded("frontend/node_modules/pkg/index.js", nil))
	assert.False(t, Excluded("svc/src/main/java/Foo.java", nil))
}

func TestExcluded_ExtraGlobsAreApplied(t *testing.T) {
	assert.True(t, Excluded("vendor/lib/thing.go", []string{"**/vendor/**"}))
	assert.False(t, Excluded("src/thing.go", []string{"**/vendor/**"}))
}

func TestWalk_SkipsExcludedDirectoriesEntirely(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target", "classes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "classes", "Foo.class"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "Main.java"), []byte("x"), 0o644))

	var seen []string
	err := Walk(root, nil, func(f File) error {
		seen = append(seen, f.RelPath)
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"src/Main.java"}, seen)
}

func TestWalk_ReturnsAbsAndRelPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0o644))

	var got File
	err := Walk(root, nil, func(f File) error {
		got = f
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "a.go", got.RelPath)
	assert.Equal(t, filepath.Join(root, "a.go"), got.AbsPath)
	assert.NotZero(t, got.ModTime)
}
