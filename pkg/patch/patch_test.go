// SPDX-License-Identifier: AGPL-3.0-or-later

package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simplePatch = `diff --git a/src/main.go b/src/main.go
--- a/src/main.go
+++ b/src/main.go
@@ -1,3 +1,4 @@
 package main

+import "fmt"
 func main() {}
`

func TestScenario_SimplePatchSingleFile(t *testing.T) {
	changes, err := Parse(simplePatch)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	fc := changes[0]
	assert.Equal(t, "src/main.go", fc.FilePath)
	assert.Equal(t, Modified, fc.ChangeType)
	require.Len(t, fc.Hunks, 1)
	assert.Equal(t, 1, fc.Hunks[0].OldStart)
	assert.Equal(t, 1, fc.Hunks[0].NewStart)
	assert.Equal(t, 4, fc.Hunks[0].NewLines)
}

const multiFilePatch = `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,2 +1,3 @@
 package a
+var X int

diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1,1 +1,2 @@
 package b
+var Y int
`

func TestScenario_MultiFilePatch(t *testing.T) {
	changes, err := Parse(multiFilePatch)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "a.go", changes[0].FilePath)
	assert.Equal(t, "b.go", changes[1].FilePath)
}

const addedFilePatch = `diff --git a/new.go b/new.go
--- /dev/null
+++ b/new.go
@@ -0,0 +1,2 @@
+package new
+func Hello() {}
`

func TestScenario_AddedFile(t *testing.T) {
	changes, err := Parse(addedFilePatch)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Added, changes[0].ChangeType)
	assert.Equal(t, "new.go", changes[0].FilePath)
}

const deletedFilePatch = `diff --git a/old.go b/old.go
--- a/old.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package old
-func Bye() {}
`

func TestScenario_DeletedFile(t *testing.T) {
	changes, err := Parse(deletedFilePatch)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Deleted, changes[0].ChangeType)
	assert.Equal(t, "old.go", changes[0].FilePath)
}

const binaryPatch = `diff --git a/image.png b/image.png
Binary files a/image.png and b/image.png differ
`

func TestBoundary_BinaryPatchIsSkippedNotError(t *testing.T) {
	changes, err := Parse(binaryPatch)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestHunkLineTypes(t *testing.T) {
	changes, err := Parse(simplePatch)
	require.NoError(t, err)
	lines := changes[0].Hunks[0].Lines

	var kinds []LineType
	for _, l := range lines {
		kinds = append(kinds, l.Type)
	}
	assert.Equal(t, []LineType{Context, Context, AddLine, Context}, kinds)
}

func TestTrailingContent_SeparatorWithVersionLineIsStripped(t *testing.T) {
	content := simplePatch + "-- \n2.43.0\n"
	cleaned := removeTrailingContent(content)
	assert.Contains(t, cleaned, "-- ")
	assert.NotContains(t, cleaned, "2.43.0")
}

func TestTrailingContent_SeparatorFollowedByBlankLineIsKept(t *testing.T) {
	content := simplePatch + "-- \n\nsome other diff content\n"
	cleaned := removeTrailingContent(content)
	assert.Contains(t, cleaned, "some other diff content")
}

func TestTrailingContent_MultipleTrailingLinesAllStripped(t *testing.T) {
	content := simplePatch + "-- \nGenerated-by: tool\nDate: today\n"
	cleaned := removeTrailingContent(content)
	assert.NotContains(t, cleaned, "Generated-by")
	assert.NotContains(t, cleaned, "Date: today")
}

func TestNewRange_ReflectsPostChangeLineSpan(t *testing.T) {
	h := Hunk{NewStart: 10, NewLines: 5}
	start, end := h.NewRange()
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)
}

func TestParseDir_OrdersFilesByNameAndConcatenates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20-second.patch"), []byte(multiFilePatch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-first.patch"), []byte(simplePatch), 0o644))

	changes, err := ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	// 10-first.patch sorts before 20-second.patch.
	assert.Equal(t, "10-first/src/main.go", changes[0].FilePath)
	assert.Equal(t, "20-second/a.go", changes[1].FilePath)
	assert.Equal(t, "20-second/b.go", changes[2].FilePath)
}

func TestParseDir_PrefixesEachFilesChangesWithPatchStem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders-svc.patch"), []byte(simplePatch), 0o644))

	changes, err := ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "orders-svc/src/main.go", changes[0].FilePath)
}

func TestParseFile_MissingFileReturnsError(t *testing.T) {
	_, err := ParseFile("/nonexistent/path.patch")
	assert.Error(t, err)
}
