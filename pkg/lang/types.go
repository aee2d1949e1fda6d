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
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lang parses source files into the uniform symbolic model shared
// by every language extractor: classes, methods, calls, and resource
// operations (HTTP, Kafka, SQL, Redis).
package lang

// LineRange is an inclusive, 1-based line span.
type LineRange struct {
	Start int
	End   int
}

// Intersects reports whether r overlaps the half-open range [start, end).
func (r LineRange) Intersects(start, end int) bool {
	return r.Start < end && start <= r.End
}

// HTTPVerb enumerates the verbs the extractors recognize.
type HTTPVerb string

const (
	VerbGET    HTTPVerb = "GET"
	VerbPOST   HTTPVerb = "POST"
	VerbPUT    HTTPVerb = "PUT"
	VerbDELETE HTTPVerb = "DELETE"
	VerbPATCH  HTTPVerb = "PATCH"
)

// HTTPInfo describes a method's role as an HTTP endpoint provider or client.
type HTTPInfo struct {
	Verb       HTTPVerb
	Path       string
	PathParams []string
	IsClient   bool
}

// KafkaOpKind distinguishes producing from consuming.
type KafkaOpKind string

const (
	KafkaProduce KafkaOpKind = "produce"
	KafkaConsume KafkaOpKind = "consume"
)

// KafkaOp is one Kafka produce/consume site.
type KafkaOp struct {
	Kind  KafkaOpKind
	Topic string
	Line  int
}

// DBOpKind enumerates the four SQL operation shapes the extractor regexes
// recognize (spec.md 4.A: SELECT/INSERT/UPDATE/DELETE).
type DBOpKind string

const (
	DBSelect DBOpKind = "select"
	DBInsert DBOpKind = "insert"
	DBUpdate DBOpKind = "update"
	DBDelete DBOpKind = "delete"
)

// DBOp is one SQL operation site.
type DBOp struct {
	Kind  DBOpKind
	Table string
	Line  int
}

// RedisOpKind enumerates get/set/delete cache operations.
type RedisOpKind string

const (
	RedisGet    RedisOpKind = "get"
	RedisSet    RedisOpKind = "set"
	RedisDelete RedisOpKind = "delete"
)

// RedisOp is one Redis key operation site.
type RedisOp struct {
	Kind       RedisOpKind
	KeyPattern string
	Line       int
}

// Call is one call site within a method body: the (best-effort) resolved
// target qualified name and the line it occurs on.
type Call struct {
	Target string
	Line   int
}

// MethodInfo is the central extraction record (spec.md section 3).
type MethodInfo struct {
	QualifiedName string
	SimpleName    string
	FilePath      string
	LineRange     LineRange

	Calls    []Call
	HTTP     *HTTPInfo
	KafkaOps []KafkaOp
	DBOps    []DBOp
	RedisOps []RedisOp
}

// ClassInfo describes one class, interface, or module (spec.md section 3).
type ClassInfo struct {
	QualifiedName string
	IsInterface   bool
	Implements    []string
	Methods       []MethodInfo
}

// ParsedFile is one extractor's output for one source file.
type ParsedFile struct {
	FilePath string
	Language string
	Package  string
	Classes  []ClassInfo
	// Imports maps a simple name to its fully-qualified form, as resolved
	// from the file's import table (spec.md 4.A step 2).
	Imports map[string]string
}

// AllMethods flattens every method across every class in the file,
// including free functions recorded as methods of a pseudo-class with an
// empty QualifiedName (the Rust extractor's single class; each function's
// own QualifiedName carries its module::function form).
func (p *ParsedFile) AllMethods() []MethodInfo {
	var out []MethodInfo
	for _, c := range p.Classes {
		out = append(out, c.Methods...)
	}
	return out
}
