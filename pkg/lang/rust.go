// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// RustExtractor parses Rust source via tree-sitter, extracting module-
// qualified functions, their call sites, and resource operations (axum
// routes, rdkafka produce/consume, SQL, Redis). Grounded directly on
// original_source/rust_parser.rs.
type RustExtractor struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewRustExtractor constructs a Rust extractor with its own tree-sitter
// parser instance.
func NewRustExtractor() *RustExtractor {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &RustExtractor{parser: p}
}

func (r *RustExtractor) LanguageName() string     { return "rust" }
func (r *RustExtractor) FileExtensions() []string { return []string{"rs"} }

func (r *RustExtractor) ParseFile(content []byte, path string) (*ParsedFile, error) {
	r.mu.Lock()
	tree, err := r.parser.ParseCtx(context.Background(), nil, content)
	r.mu.Unlock()
	if err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("tree-sitter parse: %w", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	// Tree-sitter is error-tolerant; a syntax error does not abort
	// extraction (spec.md 4.A's failure model governs whole-file
	// failures, not individual malformed nodes).
	_ = countErrors(root)

	imports := extractRustImports(root, content)

	var fns []MethodInfo
	walkRustForFunctions(root, "", content, path, &fns)

	pf := &ParsedFile{
		FilePath: path,
		Language: "rust",
		Imports:  imports,
		Classes: []ClassInfo{{
			QualifiedName: "",
			Methods:       fns,
		}},
	}
	return pf, nil
}

func walkRustForFunctions(n *sitter.Node, modulePath string, content []byte, path string, out *[]MethodInfo) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "function_item":
		if fn := extractRustFunctionInfo(n, modulePath, content, path); fn != nil {
			*out = append(*out, *fn)
		}
		return
	case "mod_item":
		nameNode := firstNamedChildOfType(n, "identifier")
		name := ""
		if nameNode != nil {
			name = nodeText(nameNode, content)
		}
		childModule := name
		if modulePath != "" && name != "" {
			childModule = modulePath + "::" + name
		}
		if decls := firstNamedChildOfType(n, "declaration_list"); decls != nil {
			for i := 0; i < int(decls.ChildCount()); i++ {
				walkRustForFunctions(decls.Child(i), childModule, content, path, out)
			}
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkRustForFunctions(n.Child(i), modulePath, content, path, out)
	}
}

func firstNamedChildOfType(n *sitter.Node, t string) *sitter.Node {
	cs := childrenOfType(n, t)
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

func extractRustFunctionInfo(n *sitter.Node, modulePath string, content []byte, path string) *MethodInfo {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = firstNamedChildOfType(n, "identifier")
	}
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	var qualified string
	if modulePath != "" {
		qualified = modulePath + "::" + name
	} else {
		qualified = name
	}

	lr := lineRangeOf(n)
	body := nodeText(n, content)
	bodyStartLine := lr.Start
	lineOf := func(offset int) int {
		return bodyStartLine + strings.Count(body[:offset], "\n")
	}

	mi := &MethodInfo{
		QualifiedName: qualified,
		SimpleName:    name,
		FilePath:      path,
		LineRange:     lr,
		Calls:         extractRustCalls(n, content),
		KafkaOps:      extractRustKafkaOps(body, lineOf),
		DBOps:         extractDBOps(body, lineOf),
		RedisOps:      extractRedisOps(body, lineOf),
	}
	mi.HTTP = extractRustAxumRoute(body, lineOf)
	return mi
}

func extractRustCalls(fnNode *sitter.Node, content []byte) []Call {
	var calls []Call
	walk(fnNode, func(n *sitter.Node) bool {
		if n != fnNode && n.Type() == "function_item" {
			// Calls inside a nested fn are not attributed to the
			// enclosing fn. walkRustForFunctions does not descend into
			// a function_item either, so nested fns are not extracted.
			return false
		}
		switch n.Type() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				calls = append(calls, Call{Target: nodeText(fn, content), Line: startLineOf(n)})
			} else if fn := n.Child(0); fn != nil {
				calls = append(calls, Call{Target: nodeText(fn, content), Line: startLineOf(n)})
			}
		case "macro_invocation":
			if id := firstNamedChildOfType(n, "identifier"); id != nil {
				calls = append(calls, Call{Target: nodeText(id, content) + "!", Line: startLineOf(n)})
			}
		}
		return true
	})
	return calls
}

var (
	axumRouteRe  = regexp.MustCompile(`\.route\s*\(\s*"([^"]+)"\s*,\s*(get|post|put|delete|patch)\s*\(`)
	kafkaSendRe  = regexp.MustCompile(`\.send\s*\(\s*"([^"]+)"`)
	kafkaSubRe   = regexp.MustCompile(`subscribe\s*\(\s*&?\[?"([^"]+)"`)
	consumerHint = []string{"StreamConsumer", ".recv()", ".stream()"}
)

func extractRustAxumRoute(body string, lineOf func(int) int) *HTTPInfo {
	m := axumRouteRe.FindStringSubmatchIndex(body)
	if m == nil {
		return nil
	}
	pathStr := body[m[2]:m[3]]
	verb := strings.ToUpper(body[m[4]:m[5]])
	var v HTTPVerb
	switch verb {
	case "GET":
		v = VerbGET
	case "POST":
		v = VerbPOST
	case "PUT":
		v = VerbPUT
	case "DELETE":
		v = VerbDELETE
	case "PATCH":
		v = VerbPATCH
	default:
		return nil
	}
	return &HTTPInfo{
		Verb:       v,
		Path:       pathStr,
		PathParams: extractPathParamsColon(pathStr),
		IsClient:   false,
	}
}

func extractRustKafkaOps(body string, lineOf func(int) int) []KafkaOp {
	var ops []KafkaOp
	for _, m := range kafkaSendRe.FindAllStringSubmatchIndex(body, -1) {
		ops = append(ops, KafkaOp{Kind: KafkaProduce, Topic: body[m[2]:m[3]], Line: lineOf(m[0])})
	}
	isConsumer := false
	for _, hint := range consumerHint {
		if strings.Contains(body, hint) {
			isConsumer = true
			break
		}
	}
	if isConsumer {
		for _, m := range kafkaSubRe.FindAllStringSubmatchIndex(body, -1) {
			ops = append(ops, KafkaOp{Kind: KafkaConsume, Topic: body[m[2]:m[3]], Line: lineOf(m[0])})
		}
	}
	return ops
}

func extractRustImports(root *sitter.Node, content []byte) map[string]string {
	imports := make(map[string]string)
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "use_declaration" {
			return true
		}
		text := nodeText(n, content)
		text = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "use")), ";")
		text = strings.TrimSpace(text)
		addRustImportPath(text, imports)
		return false
	})
	return imports
}

// addRustImportPath handles both plain paths (a::b::c) and grouped
// imports (a::b::{c, d}), recording the simple name -> fully-qualified
// path mapping used by call-target resolution.
func addRustImportPath(p string, imports map[string]string) {
	if strings.Contains(p, "{") {
		open := strings.Index(p, "{")
		close := strings.LastIndex(p, "}")
		if close < open {
			return
		}
		prefix := strings.TrimSuffix(strings.TrimSpace(p[:open]), "::")
		items := strings.Split(p[open+1:close], ",")
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			full := item
			if prefix != "" {
				full = prefix + "::" + item
			}
			simple := item
			if idx := strings.LastIndex(item, "::"); idx >= 0 {
				simple = item[idx+2:]
			}
			imports[simple] = full
		}
		return
	}
	parts := strings.Split(p, "::")
	if len(parts) == 0 || p == "" {
		return
	}
	simple := parts[len(parts)-1]
	if simple == "" || simple == "*" {
		return
	}
	imports[simple] = p
}
