// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import "github.com/kraklabs/code-impact-analyzer/pkg/lang"

// Snapshot is the serializable mirror of CodeIndex's relations (spec.md
// 4.G/9: "the serialized form mirrors in-memory maps exactly"). It is the
// on-disk schema pkg/store reads and writes.
type Snapshot struct {
	Methods map[string]lang.MethodInfo `json:"methods"`

	ForwardCalls map[string][]string `json:"forward_calls"`
	ReverseCalls map[string][]string `json:"reverse_calls"`

	HTTPProviders map[string]string   `json:"http_providers"`
	HTTPConsumers map[string][]string `json:"http_consumers"`

	KafkaProducers map[string][]string `json:"kafka_producers"`
	KafkaConsumers map[string][]string `json:"kafka_consumers"`

	DBReaders map[string][]string `json:"db_readers"`
	DBWriters map[string][]string `json:"db_writers"`

	RedisReaders map[string][]string `json:"redis_readers"`
	RedisWriters map[string][]string `json:"redis_writers"`

	InterfaceImplementations map[string][]string `json:"interface_implementations"`
	ClassInterfaces          map[string][]string  `json:"class_interfaces"`

	ConfigAssociations map[string][]string `json:"config_associations"`
}

// Snapshot captures the index's current state for serialization (R2).
func (c *CodeIndex) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Methods:                  cloneMethodMap(c.methods),
		ForwardCalls:             cloneMap(c.forwardCalls),
		ReverseCalls:             cloneMap(c.reverseCalls),
		HTTPProviders:            cloneStringMap(c.httpProviders),
		HTTPConsumers:            cloneMap(c.httpConsumers),
		KafkaProducers:           cloneMap(c.kafkaProducers),
		KafkaConsumers:           cloneMap(c.kafkaConsumers),
		DBReaders:                cloneMap(c.dbReaders),
		DBWriters:                cloneMap(c.dbWriters),
		RedisReaders:             cloneMap(c.redisReaders),
		RedisWriters:             cloneMap(c.redisWriters),
		InterfaceImplementations: cloneMap(c.interfaceImplementations),
		ClassInterfaces:          cloneMap(c.classInterfaces),
		ConfigAssociations:       cloneMap(c.configAssociations),
	}
}

// FromSnapshot rebuilds a CodeIndex from a previously captured Snapshot
// (the "loaded-from-disk" lifecycle in spec.md section 3).
func FromSnapshot(s Snapshot) *CodeIndex {
	c := New()
	if s.Methods != nil {
		c.methods = s.Methods
	}
	assign := func(dst *map[string][]string, src map[string][]string) {
		if src != nil {
			*dst = src
		}
	}
	assign(&c.forwardCalls, s.ForwardCalls)
	assign(&c.reverseCalls, s.ReverseCalls)
	if s.HTTPProviders != nil {
		c.httpProviders = s.HTTPProviders
	}
	assign(&c.httpConsumers, s.HTTPConsumers)
	assign(&c.kafkaProducers, s.KafkaProducers)
	assign(&c.kafkaConsumers, s.KafkaConsumers)
	assign(&c.dbReaders, s.DBReaders)
	assign(&c.dbWriters, s.DBWriters)
	assign(&c.redisReaders, s.RedisReaders)
	assign(&c.redisWriters, s.RedisWriters)
	assign(&c.interfaceImplementations, s.InterfaceImplementations)
	assign(&c.classInterfaces, s.ClassInterfaces)
	assign(&c.configAssociations, s.ConfigAssociations)
	return c
}

func cloneMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = cloneSlice(v)
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMethodMap(m map[string]lang.MethodInfo) map[string]lang.MethodInfo {
	out := make(map[string]lang.MethodInfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MethodsInFile returns every method whose FilePath equals filePath and
// whose LineRange intersects [startLine, endLine) — used by the
// orchestrator's changed-method computation (spec.md 4.H step 3).
func (c *CodeIndex) MethodsInFile(filePath string, startLine, endLine int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for qn, m := range c.methods {
		if m.FilePath != filePath {
			continue
		}
		if m.LineRange.Intersects(startLine, endLine) {
			out = append(out, qn)
		}
	}
	return out
}

// AllMethodQualifiedNames returns every indexed qualified name.
func (c *CodeIndex) AllMethodQualifiedNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.methods))
	for qn := range c.methods {
		out = append(out, qn)
	}
	return out
}

// RelationCounts reports the edge count of every relation, for
// --index-info reporting (SPEC_FULL.md's supplemented feature).
func (c *CodeIndex) RelationCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := func(m map[string][]string) int {
		n := 0
		for _, v := range m {
			n += len(v)
		}
		return n
	}
	return map[string]int{
		"methods":                    len(c.methods),
		"forward_calls":              count(c.forwardCalls),
		"http_providers":             len(c.httpProviders),
		"http_consumers":             count(c.httpConsumers),
		"kafka_producers":            count(c.kafkaProducers),
		"kafka_consumers":            count(c.kafkaConsumers),
		"db_readers":                 count(c.dbReaders),
		"db_writers":                 count(c.dbWriters),
		"redis_readers":              count(c.redisReaders),
		"redis_writers":              count(c.redisWriters),
		"interface_implementations":  count(c.interfaceImplementations),
		"class_interfaces":           count(c.classInterfaces),
	}
}
