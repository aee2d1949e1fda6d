// SPDX-License-Identifier: AGPL-3.0-or-later

// Package patch parses unified-diff patch files (spec.md section 6
// patch format, 4.H step 1): diff --git headers, hunks, trailing
// format-patch footers, and binary-file detection.
package patch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ChangeType classifies a file's change in a patch.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// LineType classifies one line within a hunk.
type LineType string

const (
	Context LineType = "context"
	AddLine LineType = "added"
	RemLine LineType = "removed"
)

// HunkLine is one line of a hunk's body.
type HunkLine struct {
	Type    LineType
	Content string
}

// Hunk is one @@ ... @@ change block.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []HunkLine
}

// FileChange is the set of hunks applied to one file.
type FileChange struct {
	FilePath   string
	ChangeType ChangeType
	Hunks      []Hunk
}

var (
	diffGitRe = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	minusRe   = regexp.MustCompile(`^--- (.+)$`)
	plusRe    = regexp.MustCompile(`^\+\+\+ (.+)$`)
	hunkRe    = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// ParseFile reads and parses one patch file.
func ParseFile(path string) ([]FileChange, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch file: %w", err)
	}
	return Parse(string(content))
}

// Parse parses unified-diff content that may contain multiple
// "diff --git" sections, after stripping any format-patch trailer.
func Parse(content string) ([]FileChange, error) {
	cleaned := removeTrailingContent(content)
	lines := strings.Split(cleaned, "\n")

	var changes []FileChange
	var cur *FileChange
	var curHunk *Hunk
	var oldSeen, newSeen int
	var oldPath, newPath string

	flushHunk := func() {
		if cur != nil && curHunk != nil {
			cur.Hunks = append(cur.Hunks, *curHunk)
			curHunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			if len(cur.Hunks) == 0 {
				slog.Warn("patch.skip.binary", "path", cur.FilePath)
			} else {
				changes = append(changes, *cur)
			}
			cur = nil
		}
	}

	for _, line := range lines {
		if m := diffGitRe.FindStringSubmatch(line); m != nil {
			flushFile()
			cur = &FileChange{}
			oldPath, newPath = "a/"+m[1], "b/"+m[2]
			continue
		}
		if cur == nil {
			continue
		}
		if m := minusRe.FindStringSubmatch(line); m != nil {
			oldPath = strings.TrimSpace(m[1])
			continue
		}
		if m := plusRe.FindStringSubmatch(line); m != nil {
			newPath = strings.TrimSpace(m[1])
			continue
		}
		if m := hunkRe.FindStringSubmatch(line); m != nil {
			flushHunk()
			cur.FilePath, cur.ChangeType = resolvePath(oldPath, newPath)
			curHunk = &Hunk{
				OldStart: atoiOr(m[1], 0),
				OldLines: atoiOr(m[2], 1),
				NewStart: atoiOr(m[3], 0),
				NewLines: atoiOr(m[4], 1),
			}
			oldSeen, newSeen = 0, 0
			continue
		}
		if curHunk == nil {
			continue
		}
		if line == "" {
			// A blank context line whose leading space was stripped, as
			// long as the hunk header still expects more lines.
			if oldSeen < curHunk.OldLines || newSeen < curHunk.NewLines {
				curHunk.Lines = append(curHunk.Lines, HunkLine{Type: Context})
				oldSeen++
				newSeen++
			}
			continue
		}
		switch line[0] {
		case '+':
			curHunk.Lines = append(curHunk.Lines, HunkLine{Type: AddLine, Content: line[1:]})
			newSeen++
		case '-':
			curHunk.Lines = append(curHunk.Lines, HunkLine{Type: RemLine, Content: line[1:]})
			oldSeen++
		case ' ':
			curHunk.Lines = append(curHunk.Lines, HunkLine{Type: Context, Content: line[1:]})
			oldSeen++
			newSeen++
		case '\\':
			// "\ No newline at end of file" -- not a content line.
		}
	}
	flushFile()

	return changes, nil
}

// ParseDir iterates every *.patch file in dir (sorted by name for
// deterministic ordering), prefixing each file's changes with the
// patch's stem so multi-patch directories don't collide across
// services (spec.md 4.H step 1).
func ParseDir(dir string) ([]FileChange, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read patch directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".patch") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []FileChange
	for _, name := range names {
		changes, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("patch.parse.error", "file", name, "err", err)
			continue
		}
		stem := strings.TrimSuffix(name, ".patch")
		for i := range changes {
			changes[i].FilePath = stem + "/" + changes[i].FilePath
		}
		all = append(all, changes...)
	}
	return all, nil
}

func resolvePath(oldPath, newPath string) (string, ChangeType) {
	switch {
	case oldPath == "/dev/null":
		return stripPrefix(newPath), Added
	case newPath == "/dev/null":
		return stripPrefix(oldPath), Deleted
	default:
		return stripPrefix(newPath), Modified
	}
}

func stripPrefix(p string) string {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// removeTrailingContent strips everything after a "-- " format-patch
// separator followed by a non-blank line (version string, signature),
// ported from original_source's remove_trailing_content: the "-- "
// line itself is always kept since it may be load-bearing diff syntax,
// and a blank line right after it is not treated as trailing content.
func removeTrailingContent(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	for i, line := range lines {
		out = append(out, line)
		if line == "--" || strings.HasPrefix(line, "-- ") {
			if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				slog.Debug("patch.trailer.removed")
				break
			}
		}
	}
	return strings.Join(out, "\n")
}

// NewRange reports the half-open line range [start, end) (spec.md 4.H
// step 3: "line-range intersection") a hunk covers in the post-change file.
func (h Hunk) NewRange() (start, end int) {
	return h.NewStart, h.NewStart + h.NewLines
}
