// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import (
	"path"
	"regexp"
	"strings"
)

// These patterns are shared verbatim across every language extractor:
// spec.md 4.A specifies the SQL regexes language-independently, and the
// original Rust implementation applies the same Kafka/Redis client-identifier
// gating strategy in both its Java and Rust extractors.
var (
	sqlSelect = regexp.MustCompile(`(?i)SELECT\s+.*?\s+FROM\s+(\w+)`)
	sqlInsert = regexp.MustCompile(`(?i)INSERT\s+INTO\s+(\w+)`)
	sqlUpdate = regexp.MustCompile(`(?i)UPDATE\s+(\w+)\s+SET`)
	sqlDelete = regexp.MustCompile(`(?i)DELETE\s+FROM\s+(\w+)`)

	redisGetRe = regexp.MustCompile(`\.get\s*\(\s*"([^"]+)"`)
	redisSetRe = regexp.MustCompile(`\.set\s*\(\s*"([^"]+)"`)
	redisDelRe = regexp.MustCompile(`\.del(?:ete)?\s*\(\s*"([^"]+)"`)

	pathParamBrace = regexp.MustCompile(`\{(\w+)\}`)
	pathParamColon = regexp.MustCompile(`:(\w+)`)
)

// extractDBOps scans a method body (case-insensitive) for the four SQL
// shapes named in spec.md 4.A. lineOf maps a byte offset within body to a
// 1-based source line, accounting for the method's starting line.
func extractDBOps(body string, lineOf func(offset int) int) []DBOp {
	var ops []DBOp
	for _, m := range sqlSelect.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, DBOp{Kind: DBSelect, Table: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	for _, m := range sqlInsert.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, DBOp{Kind: DBInsert, Table: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	for _, m := range sqlUpdate.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, DBOp{Kind: DBUpdate, Table: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	for _, m := range sqlDelete.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, DBOp{Kind: DBDelete, Table: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	return ops
}

// extractRedisOps recognizes .get("key")/.set("key")/.del("key") call
// shapes, gated by the body mentioning a cache-client identifier — the
// same heuristic original_source/rust_parser.rs applies
// (text.contains("redis") || text.contains("Commands")).
func extractRedisOps(body string, lineOf func(offset int) int) []RedisOp {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "redis") && !strings.Contains(body, "Commands") {
		return nil
	}
	var ops []RedisOp
	for _, m := range redisGetRe.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, RedisOp{Kind: RedisGet, KeyPattern: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	for _, m := range redisSetRe.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, RedisOp{Kind: RedisSet, KeyPattern: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	for _, m := range redisDelRe.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, RedisOp{Kind: RedisDelete, KeyPattern: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	return ops
}

// joinPath concatenates path segments with "/" and collapses duplicate
// slashes, per spec.md 4.A's HTTP endpoint composition rule. Placeholder
// syntax ({id} or :id) is preserved literally.
func joinPath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "/"
	}
	return "/" + path.Join(parts...)
}

// extractPathParamsBraces finds {param}-style placeholders (Spring/Java).
func extractPathParamsBraces(p string) []string {
	var out []string
	for _, m := range pathParamBrace.FindAllStringSubmatch(p, -1) {
		out = append(out, m[1])
	}
	return out
}

// extractPathParamsColon finds :param-style placeholders (axum/Rust).
func extractPathParamsColon(p string) []string {
	var out []string
	for _, m := range pathParamColon.FindAllStringSubmatch(p, -1) {
		out = append(out, m[1])
	}
	return out
}

// firstStringLiteral returns the first double-quoted string literal's
// contents found in s, used for pulling a path/topic/key out of an
// annotation-argument or macro-argument text blob.
func firstStringLiteral(s string) (string, bool) {
	re := regexp.MustCompile(`"([^"]*)"`)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
