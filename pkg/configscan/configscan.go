// SPDX-License-Identifier: AGPL-3.0-or-later

// Package configscan discovers HTTP endpoints, Kafka topics, database
// tables, and Redis key prefixes declared in YAML/XML configuration
// files (spec.md section 6, "Config discovery").
package configscan

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigData is the external contract spec.md section 1 names: a value
// yielded by configuration scanning that the code index associates with
// methods (spec.md 4.C's associate_config_data).
type ConfigData struct {
	Endpoints []string
	Topics    []string
	Tables    []string
	Prefixes  []string
}

var (
	endpointKeyRe = regexp.MustCompile(`(?i)url|endpoint|api|http`)
	kafkaKeyRe    = regexp.MustCompile(`(?i)topic|kafka`)
	tableKeyRe    = regexp.MustCompile(`(?i)table|entity|database`)
	redisKeyRe    = regexp.MustCompile(`(?i)redis|cache|key`)
)

// ScanYAML parses YAML content and extracts a ConfigData by matching key
// names case-insensitively against the keyword sets in spec.md section 6.
func ScanYAML(content []byte) (ConfigData, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return ConfigData{}, fmt.Errorf("parse yaml: %w", err)
	}
	var cd ConfigData
	if len(root.Content) == 0 {
		return cd, nil
	}
	walkYAML(root.Content[0], "", &cd)
	dedup(&cd)
	return cd, nil
}

// walkYAML recurses through every mapping/sequence node regardless of
// whether the current key matched, so nested structures are always fully
// explored (spec.md 4.C: "recursive structural walk").
func walkYAML(n *yaml.Node, key string, cd *ConfigData) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			v := n.Content[i+1]
			classifyAndCollect(k.Value, v, cd)
			walkYAML(v, k.Value, cd)
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			walkYAML(item, key, cd)
		}
	case yaml.DocumentNode:
		for _, c := range n.Content {
			walkYAML(c, key, cd)
		}
	}
}

func classifyAndCollect(key string, v *yaml.Node, cd *ConfigData) {
	var leaf []string
	switch v.Kind {
	case yaml.ScalarNode:
		leaf = []string{v.Value}
	case yaml.SequenceNode:
		for _, item := range v.Content {
			if item.Kind == yaml.ScalarNode {
				leaf = append(leaf, item.Value)
			}
		}
	default:
		return
	}
	if len(leaf) == 0 {
		return
	}
	if endpointKeyRe.MatchString(key) {
		cd.Endpoints = append(cd.Endpoints, leaf...)
	}
	if kafkaKeyRe.MatchString(key) {
		cd.Topics = append(cd.Topics, leaf...)
	}
	if tableKeyRe.MatchString(key) {
		cd.Tables = append(cd.Tables, leaf...)
	}
	if redisKeyRe.MatchString(key) {
		cd.Prefixes = append(cd.Prefixes, leaf...)
	}
}

// xmlNode is a generic XML tree used for the same keyword-in-key walk
// YAML gets, since Go's encoding/xml has no built-in generic-node type.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// ScanXML parses XML content and extracts a ConfigData using the same
// keyword heuristic as ScanYAML.
func ScanXML(content []byte) (ConfigData, error) {
	var root xmlNode
	if err := xml.Unmarshal(content, &root); err != nil {
		return ConfigData{}, fmt.Errorf("parse xml: %w", err)
	}
	var cd ConfigData
	walkXML(&root, &cd)
	dedup(&cd)
	return cd, nil
}

func walkXML(n *xmlNode, cd *ConfigData) {
	if n == nil {
		return
	}
	key := n.XMLName.Local
	leaf := strings.TrimSpace(n.Content)
	if leaf != "" {
		node := yamlLeafNode(leaf)
		classifyAndCollect(key, &node, cd)
	}
	for _, attr := range n.Attrs {
		v := strings.TrimSpace(attr.Value)
		if v != "" {
			node := yamlLeafNode(v)
			classifyAndCollect(attr.Name.Local, &node, cd)
		}
	}
	for i := range n.Children {
		walkXML(&n.Children[i], cd)
	}
}

func yamlLeafNode(s string) yaml.Node {
	return yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

func dedup(cd *ConfigData) {
	cd.Endpoints = dedupSlice(cd.Endpoints)
	cd.Topics = dedupSlice(cd.Topics)
	cd.Tables = dedupSlice(cd.Tables)
	cd.Prefixes = dedupSlice(cd.Prefixes)
}

// dedupSlice removes duplicates while preserving first-occurrence order
// (spec.md 4.C's "retain + HashSet::insert" idiom, carried from
// original_source/config_parser.rs).
func dedupSlice(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
