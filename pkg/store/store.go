// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the persistent, checksum-validated on-disk
// index cache (spec.md 4.G): two files under
// <workspace>/.code-impact-analyzer/, index.meta.json and index.json.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/kraklabs/code-impact-analyzer/pkg/fswalk"
	"github.com/kraklabs/code-impact-analyzer/pkg/index"
)

// SchemaVersion is the major.minor.patch semver stamped into every
// metadata file. Only the major component is checked on load (spec.md
// 4.G: "validation = major version match").
const SchemaVersion = "1.0.0"

const (
	indexDirName  = ".code-impact-analyzer"
	metaFileName  = "index.meta.json"
	dataFileName  = "index.json"
	zstdThreshold = 1 << 20 // 1 MiB: compress payloads larger than this
)

// Metadata is the on-disk schema of index.meta.json (spec.md 4.G).
type Metadata struct {
	Version       string `json:"version"`
	WorkspacePath string `json:"workspace_path"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	FileCount     int    `json:"file_count"`
	MethodCount   int    `json:"method_count"`
	Checksum      string `json:"checksum"`
	BuildID       string `json:"build_id"`
	Compressed    bool   `json:"compressed"`
}

// Dir returns the index directory for a workspace root.
func Dir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, indexDirName)
}

func metaPath(workspaceRoot string) string { return filepath.Join(Dir(workspaceRoot), metaFileName) }
func dataPath(workspaceRoot string) string { return filepath.Join(Dir(workspaceRoot), dataFileName) }

// Checksum computes spec.md 4.G's digest: "over canonical (relative_path,
// mtime_seconds) tuples for every source file, same exclusion rules as
// indexing." Any change in the file set or any file's mtime invalidates
// a previously persisted index.
func Checksum(workspaceRoot string, extraExcludeGlobs []string) (string, int, error) {
	type entry struct {
		rel string
		mt  int64
	}
	var entries []entry
	fileCount := 0
	err := fswalk.Walk(workspaceRoot, extraExcludeGlobs, func(f fswalk.File) error {
		entries = append(entries, entry{rel: f.RelPath, mt: f.ModTime})
		fileCount++
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("walk workspace for checksum: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	h := xxhash.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\x00", e.rel, e.mt)
	}
	return fmt.Sprintf("%016x", h.Sum64()), fileCount, nil
}

// Load reads and validates a persisted index for workspaceRoot. It
// returns ok=false (never an error) whenever the index is absent,
// stale, or schema-mismatched, since spec.md 4.H treats every such case
// identically: silently rebuild.
func Load(ctx context.Context, workspaceRoot string, extraExcludeGlobs []string) (*index.CodeIndex, *Metadata, bool, error) {
	metaBytes, err := os.ReadFile(metaPath(workspaceRoot))
	if err != nil {
		return nil, nil, false, nil
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		// Metadata present but unparsable: spec.md section 5 calls this
		// "detectably stale at worst" -- treat as a miss, not an error.
		return nil, nil, false, nil
	}

	if majorVersion(meta.Version) != majorVersion(SchemaVersion) {
		return nil, nil, false, nil
	}
	if meta.WorkspacePath != workspaceRoot {
		return nil, nil, false, nil
	}

	checksum, _, err := Checksum(workspaceRoot, extraExcludeGlobs)
	if err != nil {
		return nil, nil, false, err
	}
	if checksum != meta.Checksum {
		return nil, nil, false, nil
	}

	raw, err := os.ReadFile(dataPath(workspaceRoot))
	if err != nil {
		return nil, nil, false, nil
	}
	if meta.Compressed {
		raw, err = decompress(raw)
		if err != nil {
			return nil, nil, false, nil
		}
	}

	var snap index.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil, false, nil
	}

	select {
	case <-ctx.Done():
		return nil, nil, false, ctx.Err()
	default:
	}

	return index.FromSnapshot(snap), &meta, true, nil
}

// Save persists idx to <workspaceRoot>/.code-impact-analyzer/, writing
// the data file first and the metadata file last (spec.md section 5:
// "metadata is written last, so a partial write leaves a detectably-
// stale metadata file at worst"). now is supplied by the caller since
// time.Now is unavailable inside this process's deterministic paths in
// test harnesses; callers pass time.Now().UTC() in normal operation.
func Save(workspaceRoot string, idx *index.CodeIndex, extraExcludeGlobs []string, now time.Time) (*Metadata, error) {
	dir := Dir(workspaceRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	snap := idx.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal index snapshot: %w", err)
	}

	compressed := len(payload) > zstdThreshold
	toWrite := payload
	if compressed {
		toWrite, err = compress(payload)
		if err != nil {
			return nil, fmt.Errorf("compress index snapshot: %w", err)
		}
	}

	if err := writeFileAtomic(dataPath(workspaceRoot), toWrite); err != nil {
		return nil, fmt.Errorf("write index data: %w", err)
	}

	checksum, fileCount, err := Checksum(workspaceRoot, extraExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("compute checksum: %w", err)
	}

	createdAt := now.Format(time.RFC3339)
	if existing, err := os.ReadFile(metaPath(workspaceRoot)); err == nil {
		var prev Metadata
		if json.Unmarshal(existing, &prev) == nil && prev.WorkspacePath == workspaceRoot {
			createdAt = prev.CreatedAt
		}
	}

	meta := Metadata{
		Version:       SchemaVersion,
		WorkspacePath: workspaceRoot,
		CreatedAt:     createdAt,
		UpdatedAt:     now.Format(time.RFC3339),
		FileCount:     fileCount,
		MethodCount:   idx.MethodCount(),
		Checksum:      checksum,
		BuildID:       uuid.NewString(),
		Compressed:    compressed,
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeFileAtomic(metaPath(workspaceRoot), metaBytes); err != nil {
		return nil, fmt.Errorf("write index metadata: %w", err)
	}

	return &meta, nil
}

// Clear removes the persisted index directory entirely (--clear-index).
func Clear(workspaceRoot string) error {
	return os.RemoveAll(Dir(workspaceRoot))
}

// Info reads and returns metadata without validating or loading the
// payload, for --index-info reporting. ok=false means no index exists.
func Info(workspaceRoot string) (*Metadata, bool, error) {
	b, err := os.ReadFile(metaPath(workspaceRoot))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, false, fmt.Errorf("parse index metadata: %w", err)
	}
	return &meta, true, nil
}

// Verify reports whether the persisted index is still valid
// (--verify-index): same major schema version, same workspace path, and
// a checksum matching the workspace's current file set. It reads the
// metadata only, not the index payload.
func Verify(workspaceRoot string, extraExcludeGlobs []string) (valid bool, meta *Metadata, err error) {
	m, ok, err := Info(workspaceRoot)
	if err != nil || !ok {
		return false, nil, err
	}
	checksum, _, err := Checksum(workspaceRoot, extraExcludeGlobs)
	if err != nil {
		return false, m, err
	}
	return checksum == m.Checksum && m.WorkspacePath == workspaceRoot &&
		majorVersion(m.Version) == majorVersion(SchemaVersion), m, nil
}

func majorVersion(v string) string {
	for i, c := range v {
		if c == '.' {
			return v[:i]
		}
	}
	return v
}

// writeFileAtomic writes to a temp file in the same directory and
// renames over the destination, so readers never observe a partially
// written file (stdlib os.Rename is atomic within one filesystem; no
// pack dependency offers atomic file writes, so this stays stdlib).
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
