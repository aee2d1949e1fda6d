// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fswalk provides the single workspace file-walking routine
// shared by indexing, config scanning, and checksum computation — all
// three apply the same exclusion rules (spec.md 4.C, 4.G, section 6).
package fswalk

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludedDirs are skipped outright, matching spec.md 4.C: "skipping
// hidden directories and common build outputs (target, build,
// node_modules)".
var excludedDirs = map[string]bool{
	"target":       true,
	"build":        true,
	"node_modules": true,
}

// DefaultExcludeGlobs are doublestar patterns applied in addition to the
// excludedDirs set, for finer-grained exclusions operators may want
// (e.g. vendored directories) without hand-rolling path matching in
// three different packages.
var DefaultExcludeGlobs = []string{
	"**/target/**",
	"**/build/**",
	"**/node_modules/**",
	"**/.git/**",
}

// Excluded reports whether a workspace-relative path should be skipped.
func Excluded(relPath string, extraGlobs []string) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	for _, p := range parts {
		if strings.HasPrefix(p, ".") && p != "." {
			return true
		}
		if excludedDirs[p] {
			return true
		}
	}
	slash := filepath.ToSlash(relPath)
	for _, g := range DefaultExcludeGlobs {
		if ok, _ := doublestar.Match(g, slash); ok {
			return true
		}
	}
	for _, g := range extraGlobs {
		if ok, _ := doublestar.Match(g, slash); ok {
			return true
		}
	}
	return false
}

// File is one discovered workspace file.
type File struct {
	AbsPath string
	RelPath string
	ModTime int64 // unix seconds
}

// Walk recursively scans root, invoking visit for every non-excluded
// regular file. Errors from the underlying filesystem walk abort the
// scan (spec.md section 7: "I/O failure on workspace root... fatal").
func Walk(root string, extraGlobs []string, visit func(File) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if Excluded(rel, extraGlobs) {
				return filepath.SkipDir
			}
			return nil
		}
		if Excluded(rel, extraGlobs) {
			return nil
		}
		return visit(File{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			ModTime: info.ModTime().Unix(),
		})
	})
}
