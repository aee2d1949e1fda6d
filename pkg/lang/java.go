// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/smacker/go-tree-sitter/java"

	sitter "github.com/smacker/go-tree-sitter"
)

// JavaExtractor parses Java source via tree-sitter, extracting classes,
// interfaces, their implements/extends relations, methods with resolved
// call targets, Spring HTTP annotations, Feign client detection, and
// Kafka/SQL/Redis resource operations. Grounded on
// original_source/java_parser.rs (fully read for class/method walking
// and HTTP-annotation dispatch; Kafka/DB/Redis extraction inferred by
// direct analogy to the fully-read rust_parser.rs, since both parsers
// share a tree-sitter-for-structure, regex-for-resource-literals design).
type JavaExtractor struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewJavaExtractor constructs a Java extractor with its own parser.
func NewJavaExtractor() *JavaExtractor {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &JavaExtractor{parser: p}
}

func (j *JavaExtractor) LanguageName() string     { return "java" }
func (j *JavaExtractor) FileExtensions() []string { return []string{"java"} }

func (j *JavaExtractor) ParseFile(content []byte, path string) (*ParsedFile, error) {
	j.mu.Lock()
	tree, err := j.parser.ParseCtx(context.Background(), nil, content)
	j.mu.Unlock()
	if err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("tree-sitter parse: %w", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	_ = countErrors(root)

	pkg := extractJavaPackage(root, content)
	imports := extractJavaImports(root, content)

	var classes []ClassInfo
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "class_declaration", "interface_declaration":
			if c := extractJavaClassInfo(n, pkg, imports, content, path); c != nil {
				classes = append(classes, *c)
			}
			return false
		}
		return true
	})

	return &ParsedFile{
		FilePath: path,
		Language: "java",
		Package:  pkg,
		Imports:  imports,
		Classes:  classes,
	}, nil
}

func extractJavaPackage(root *sitter.Node, content []byte) string {
	pkgNode := firstNamedChildOfType(root, "package_declaration")
	if pkgNode == nil {
		return ""
	}
	for i := 0; i < int(pkgNode.ChildCount()); i++ {
		c := pkgNode.Child(i)
		if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
			return nodeText(c, content)
		}
	}
	return ""
}

func extractJavaImports(root *sitter.Node, content []byte) map[string]string {
	imports := make(map[string]string)
	for i := 0; i < int(root.ChildCount()); i++ {
		c := root.Child(i)
		if c.Type() != "import_declaration" {
			continue
		}
		var full string
		for j := 0; j < int(c.ChildCount()); j++ {
			gc := c.Child(j)
			if gc.Type() == "scoped_identifier" || gc.Type() == "identifier" {
				full = nodeText(gc, content)
			}
		}
		if full == "" || strings.HasSuffix(full, "*") {
			continue
		}
		simple := full
		if idx := strings.LastIndex(full, "."); idx >= 0 {
			simple = full[idx+1:]
		}
		imports[simple] = full
	}
	return imports
}

func extractJavaClassInfo(n *sitter.Node, pkg string, imports map[string]string, content []byte, path string) *ClassInfo {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	className := nodeText(nameNode, content)
	isInterface := n.Type() == "interface_declaration"

	qualifiedClass := className
	if pkg != "" {
		qualifiedClass = pkg + "." + className
	}

	implements := extractJavaImplements(n, imports, pkg, content)

	mods := childrenOfType(n, "modifiers")
	var classMod *sitter.Node
	if len(mods) > 0 {
		classMod = mods[0]
	}
	isClient, serviceName, clientBasePath := extractFeignClient(classMod, content)
	classPrefix := extractClassRoutePrefix(classMod, content)

	fields := extractJavaFields(n, imports, pkg, content)

	body := firstNamedChildOfType(n, "class_body")
	if body == nil {
		body = firstNamedChildOfType(n, "interface_body")
	}

	var methods []MethodInfo
	if body != nil {
		for _, m := range childrenOfType(body, "method_declaration") {
			if mi := extractJavaMethodInfo(m, qualifiedClass, className, classPrefix, isClient, serviceName, clientBasePath, imports, fields, pkg, content, path); mi != nil {
				methods = append(methods, *mi)
			}
		}
	}

	return &ClassInfo{
		QualifiedName: qualifiedClass,
		IsInterface:   isInterface,
		Implements:    implements,
		Methods:       methods,
	}
}

func extractJavaImplements(n *sitter.Node, imports map[string]string, pkg string, content []byte) []string {
	var names []string
	collect := func(listNode *sitter.Node) {
		if listNode == nil {
			return
		}
		walk(listNode, func(tn *sitter.Node) bool {
			if tn.Type() == "type_identifier" {
				names = append(names, resolveTypeName(nodeText(tn, content), imports, pkg))
			}
			return true
		})
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "super_interfaces" || c.Type() == "extends_interfaces" {
			collect(c)
		}
	}
	return names
}

func extractJavaFields(classNode *sitter.Node, imports map[string]string, pkg string, content []byte) map[string]string {
	fields := make(map[string]string)
	body := firstNamedChildOfType(classNode, "class_body")
	if body == nil {
		return fields
	}
	for _, fd := range childrenOfType(body, "field_declaration") {
		typeNode := fd.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		typeName := nodeText(typeNode, content)
		for _, decl := range childrenOfType(fd, "variable_declarator") {
			if nameNode := decl.ChildByFieldName("name"); nameNode != nil {
				fields[nodeText(nameNode, content)] = typeName
			}
		}
	}
	return fields
}

func resolveTypeName(simple string, imports map[string]string, pkg string) string {
	simple = strings.TrimSpace(simple)
	if idx := strings.Index(simple, "<"); idx >= 0 {
		simple = simple[:idx]
	}
	if full, ok := imports[simple]; ok {
		return full
	}
	if pkg != "" {
		return pkg + "." + simple
	}
	return simple
}

var (
	feignNameRe = regexp.MustCompile(`(?:name|value)\s*=\s*"([^"]+)"`)
	feignPathRe = regexp.MustCompile(`path\s*=\s*"([^"]+)"`)
)

func extractFeignClient(modifiers *sitter.Node, content []byte) (isClient bool, serviceName, basePath string) {
	ann := findAnnotation(modifiers, "FeignClient", content)
	if ann == nil {
		return false, "", ""
	}
	argsText := annotationArgsText(ann, content)
	if m := feignNameRe.FindStringSubmatch(argsText); m != nil {
		serviceName = m[1]
	} else if v, ok := firstStringLiteral(argsText); ok {
		serviceName = v
	}
	if m := feignPathRe.FindStringSubmatch(argsText); m != nil {
		basePath = m[1]
	}
	return true, serviceName, basePath
}

func extractClassRoutePrefix(modifiers *sitter.Node, content []byte) string {
	ann := findAnnotation(modifiers, "RequestMapping", content)
	if ann == nil {
		return ""
	}
	argsText := annotationArgsText(ann, content)
	if v, ok := firstStringLiteral(argsText); ok {
		return v
	}
	return ""
}

// findAnnotation returns the marker_annotation/annotation node under
// modifiers whose name contains nameSubstr.
func findAnnotation(modifiers *sitter.Node, nameSubstr string, content []byte) *sitter.Node {
	if modifiers == nil {
		return nil
	}
	for _, ann := range childrenOfType(modifiers, "marker_annotation", "annotation") {
		nameNode := ann.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if strings.Contains(name, nameSubstr) {
			return ann
		}
	}
	return nil
}

func annotationArgsText(ann *sitter.Node, content []byte) string {
	if args := ann.ChildByFieldName("arguments"); args != nil {
		return nodeText(args, content)
	}
	return ""
}

var httpMappingVerbs = map[string]HTTPVerb{
	"GetMapping":    VerbGET,
	"PostMapping":   VerbPOST,
	"PutMapping":    VerbPUT,
	"DeleteMapping": VerbDELETE,
	"PatchMapping":  VerbPATCH,
}

var requestMethodRe = regexp.MustCompile(`method\s*=\s*RequestMethod\.(\w+)`)

func extractJavaHTTPAnnotation(modifiers *sitter.Node, content []byte) *HTTPInfo {
	if modifiers == nil {
		return nil
	}
	for _, ann := range childrenOfType(modifiers, "marker_annotation", "annotation") {
		nameNode := ann.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		argsText := annotationArgsText(ann, content)

		var verb HTTPVerb
		if v, ok := httpMappingVerbs[name]; ok {
			verb = v
		} else if strings.Contains(name, "RequestMapping") {
			verb = VerbGET
			if m := requestMethodRe.FindStringSubmatch(argsText); m != nil {
				if v, ok := httpMappingVerbs[m[1]+"Mapping"]; ok {
					verb = v
				} else {
					switch strings.ToUpper(m[1]) {
					case "POST":
						verb = VerbPOST
					case "PUT":
						verb = VerbPUT
					case "DELETE":
						verb = VerbDELETE
					case "PATCH":
						verb = VerbPATCH
					}
				}
			}
		} else {
			continue
		}

		path := ""
		if v, ok := firstStringLiteral(argsText); ok {
			path = v
		}
		return &HTTPInfo{Verb: verb, Path: path, PathParams: extractPathParamsBraces(path)}
	}
	return nil
}

var kafkaListenerTopicRe = regexp.MustCompile(`topics\s*=\s*"([^"]+)"`)

func extractJavaMethodInfo(n *sitter.Node, qualifiedClass, className, classPrefix string, isClient bool, serviceName, clientBasePath string, imports, fields map[string]string, pkg string, content []byte, path string) *MethodInfo {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	methodName := nodeText(nameNode, content)
	qualified := qualifiedClass + "::" + methodName
	lr := lineRangeOf(n)

	mods := childrenOfType(n, "modifiers")
	var methodMod *sitter.Node
	if len(mods) > 0 {
		methodMod = mods[0]
	}

	mi := &MethodInfo{
		QualifiedName: qualified,
		SimpleName:    methodName,
		FilePath:      path,
		LineRange:     lr,
	}

	bodyNode := n.ChildByFieldName("body")
	var bodyText string
	lineOf := func(offset int) int { return lr.Start }
	if bodyNode != nil {
		bodyText = nodeText(bodyNode, content)
		bodyStart := startLineOf(bodyNode)
		lineOf = func(offset int) int { return bodyStart + strings.Count(bodyText[:offset], "\n") }

		locals := extractJavaLocals(bodyNode, content)
		mi.Calls = extractJavaCalls(bodyNode, locals, fields, imports, pkg, qualifiedClass, content)
		mi.DBOps = extractDBOps(bodyText, lineOf)
		mi.RedisOps = extractRedisOps(bodyText, lineOf)
		mi.KafkaOps = extractJavaKafkaOps(bodyText, lineOf)
	}

	if isClient {
		methodPath := ""
		if methodMod != nil {
			if httpInfo := extractJavaHTTPAnnotation(methodMod, content); httpInfo != nil {
				methodPath = httpInfo.Path
			}
		}
		full := joinPath(serviceName, clientBasePath, methodPath)
		mi.HTTP = &HTTPInfo{Verb: VerbGET, Path: full, PathParams: extractPathParamsBraces(full), IsClient: true}
		if methodMod != nil {
			if h := extractJavaHTTPAnnotation(methodMod, content); h != nil {
				mi.HTTP.Verb = h.Verb
			}
		}
	} else if methodMod != nil {
		if h := extractJavaHTTPAnnotation(methodMod, content); h != nil {
			full := joinPath(classPrefix, h.Path)
			h.Path = full
			h.PathParams = extractPathParamsBraces(full)
			mi.HTTP = h
		}
		if ann := findAnnotation(methodMod, "KafkaListener", content); ann != nil {
			argsText := annotationArgsText(ann, content)
			topic := ""
			if m := kafkaListenerTopicRe.FindStringSubmatch(argsText); m != nil {
				topic = m[1]
			} else if v, ok := firstStringLiteral(argsText); ok {
				topic = v
			}
			if topic != "" {
				mi.KafkaOps = append(mi.KafkaOps, KafkaOp{Kind: KafkaConsume, Topic: topic, Line: lr.Start})
			}
		}
	}

	return mi
}

func extractJavaLocals(body *sitter.Node, content []byte) map[string]string {
	locals := make(map[string]string)
	walk(body, func(n *sitter.Node) bool {
		if n.Type() == "local_variable_declaration" {
			typeNode := n.ChildByFieldName("type")
			if typeNode == nil {
				return true
			}
			typeName := nodeText(typeNode, content)
			for _, decl := range childrenOfType(n, "variable_declarator") {
				if nameNode := decl.ChildByFieldName("name"); nameNode != nil {
					locals[nodeText(nameNode, content)] = typeName
				}
			}
		}
		return true
	})
	return locals
}

func extractJavaCalls(body *sitter.Node, locals, fields, imports map[string]string, pkg, qualifiedClass string, content []byte) []Call {
	var calls []Call
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "method_invocation" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		methodName := nodeText(nameNode, content)
		objNode := n.ChildByFieldName("object")
		target := resolveJavaCallTarget(objNode, methodName, locals, fields, imports, pkg, qualifiedClass, content)
		calls = append(calls, Call{Target: target, Line: startLineOf(n)})
		return true
	})
	return calls
}

// resolveJavaCallTarget implements spec.md 4.A's call-target resolution
// for obj.method(...) call sites.
func resolveJavaCallTarget(objNode *sitter.Node, methodName string, locals, fields, imports map[string]string, pkg, qualifiedClass string, content []byte) string {
	if objNode == nil {
		return methodName
	}
	objText := nodeText(objNode, content)
	if objNode.Type() != "identifier" {
		// Chained call (e.g. a.b.method()); best-effort bare name
		// per spec.md 4.A rule 3.
		return methodName
	}
	if objText == "this" {
		return qualifiedClass + "::" + methodName
	}
	if t, ok := locals[objText]; ok {
		return resolveTypeName(t, imports, pkg) + "::" + methodName
	}
	if t, ok := fields[objText]; ok {
		return resolveTypeName(t, imports, pkg) + "::" + methodName
	}
	if full, ok := imports[objText]; ok {
		return full + "::" + methodName
	}
	return methodName
}

func extractJavaKafkaOps(body string, lineOf func(int) int) []KafkaOp {
	var ops []KafkaOp
	if strings.Contains(body, "KafkaTemplate") {
		for _, m := range kafkaSendRe.FindAllStringSubmatchIndex(body, -1) {
			ops = append(ops, KafkaOp{Kind: KafkaProduce, Topic: body[m[2]:m[3]], Line: lineOf(m[0])})
		}
	}
	return ops
}
