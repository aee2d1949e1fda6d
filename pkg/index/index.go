// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index aggregates parsed files into the cross-service relational
// store spec.md section 3 defines, and resolves interface-dispatch calls
// to concrete implementations (spec.md 4.D).
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/code-impact-analyzer/pkg/configscan"
	"github.com/kraklabs/code-impact-analyzer/pkg/fswalk"
	"github.com/kraklabs/code-impact-analyzer/pkg/lang"
)

// CodeIndex is the in-memory relational store described by spec.md
// section 3. All cross-maps are value-typed (qualified-name strings
// only) so the index has a single owner of MethodInfo records and is
// trivially serializable (spec.md 3 "Ownership").
type CodeIndex struct {
	mu sync.RWMutex

	methods map[string]lang.MethodInfo

	forwardCalls map[string][]string
	reverseCalls map[string][]string

	httpProviders map[string]string
	httpConsumers map[string][]string

	kafkaProducers map[string][]string
	kafkaConsumers map[string][]string

	dbReaders map[string][]string
	dbWriters map[string][]string

	redisReaders map[string][]string
	redisWriters map[string][]string

	interfaceImplementations map[string][]string
	classInterfaces          map[string][]string

	configAssociations map[string][]string
}

// New creates an empty index.
func New() *CodeIndex {
	return &CodeIndex{
		methods:                  make(map[string]lang.MethodInfo),
		forwardCalls:             make(map[string][]string),
		reverseCalls:             make(map[string][]string),
		httpProviders:            make(map[string]string),
		httpConsumers:            make(map[string][]string),
		kafkaProducers:           make(map[string][]string),
		kafkaConsumers:           make(map[string][]string),
		dbReaders:                make(map[string][]string),
		dbWriters:                make(map[string][]string),
		redisReaders:             make(map[string][]string),
		redisWriters:             make(map[string][]string),
		interfaceImplementations: make(map[string][]string),
		classInterfaces:          make(map[string][]string),
		configAssociations:       make(map[string][]string),
	}
}

func endpointKey(verb lang.HTTPVerb, path string) string {
	return string(verb) + " " + path
}

// IndexMethod registers one method and all of its derived edges
// (spec.md 4.C). Re-indexing a qualified name that is already present is
// a no-op (R3): the first MethodInfo registered under that name is kept
// and no derived edge is added again. Derived relation slices are
// appended with appendUnique, so they hold no duplicate entries.
func (c *CodeIndex) IndexMethod(m lang.MethodInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexMethodLocked(m)
}

func (c *CodeIndex) indexMethodLocked(m lang.MethodInfo) {
	if _, exists := c.methods[m.QualifiedName]; exists {
		// Keyed insert is idempotent (R3): re-inserting the same
		// qualified name must not duplicate derived edges.
		return
	}
	c.methods[m.QualifiedName] = m

	for _, call := range m.Calls {
		c.forwardCalls[m.QualifiedName] = appendUnique(c.forwardCalls[m.QualifiedName], call.Target)
		c.reverseCalls[call.Target] = appendUnique(c.reverseCalls[call.Target], m.QualifiedName)
	}

	if m.HTTP != nil {
		key := endpointKey(m.HTTP.Verb, m.HTTP.Path)
		if m.HTTP.IsClient {
			c.httpConsumers[key] = appendUnique(c.httpConsumers[key], m.QualifiedName)
		} else {
			// "last writer wins" per spec.md invariant 3.
			c.httpProviders[key] = m.QualifiedName
		}
	}

	for _, op := range m.KafkaOps {
		switch op.Kind {
		case lang.KafkaProduce:
			c.kafkaProducers[op.Topic] = appendUnique(c.kafkaProducers[op.Topic], m.QualifiedName)
		case lang.KafkaConsume:
			c.kafkaConsumers[op.Topic] = appendUnique(c.kafkaConsumers[op.Topic], m.QualifiedName)
		}
	}

	for _, op := range m.DBOps {
		switch op.Kind {
		case lang.DBSelect:
			c.dbReaders[op.Table] = appendUnique(c.dbReaders[op.Table], m.QualifiedName)
		case lang.DBInsert, lang.DBUpdate, lang.DBDelete:
			c.dbWriters[op.Table] = appendUnique(c.dbWriters[op.Table], m.QualifiedName)
		}
	}

	for _, op := range m.RedisOps {
		switch op.Kind {
		case lang.RedisGet:
			c.redisReaders[op.KeyPattern] = appendUnique(c.redisReaders[op.KeyPattern], m.QualifiedName)
		case lang.RedisSet, lang.RedisDelete:
			c.redisWriters[op.KeyPattern] = appendUnique(c.redisWriters[op.KeyPattern], m.QualifiedName)
		}
	}
}

func (c *CodeIndex) indexClassLocked(cls lang.ClassInfo) {
	for _, m := range cls.Methods {
		c.indexMethodLocked(m)
	}
	if cls.IsInterface || len(cls.Implements) == 0 {
		return
	}
	// A class's Implements lists interfaces; register the symmetric pair
	// (interface_implementations, class_interfaces) per spec.md 3/P3.
	for _, iface := range cls.Implements {
		c.interfaceImplementations[iface] = appendUnique(c.interfaceImplementations[iface], cls.QualifiedName)
		c.classInterfaces[cls.QualifiedName] = appendUnique(c.classInterfaces[cls.QualifiedName], iface)
	}
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// BuildOptions configures IndexWorkspace.
type BuildOptions struct {
	ExtraExcludeGlobs []string
}

// IndexWorkspace recursively scans root, parses every file whose
// extension is registered with reg in parallel, and merges the results
// into the index sequentially (spec.md 4.C: "Parallelism is over files;
// merging is serial to avoid map contention"). Grounded on the worker-pool
// shape of kraklabs-cie's pkg/ingestion/resolver.go.
func IndexWorkspace(ctx context.Context, root string, reg *lang.Registry, opts BuildOptions, logger *slog.Logger) (*CodeIndex, []Diagnostic, error) {
	if logger == nil {
		logger = slog.Default()
	}

	type job struct {
		abs string
		rel string
	}
	var jobs []job
	err := fswalk.Walk(root, opts.ExtraExcludeGlobs, func(f fswalk.File) error {
		if reg.For(f.AbsPath) == nil {
			return nil
		}
		jobs = append(jobs, job{abs: f.AbsPath, rel: f.RelPath})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		pf   *lang.ParsedFile
		path string
		err  error
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobCh := make(chan job, len(jobs))
	resultCh := make(chan result, len(jobs))
	cache := lang.NewParseCache()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				pf, perr := cache.GetOrParse(j.abs, func(path string) (*lang.ParsedFile, error) {
					content, readErr := os.ReadFile(path)
					if readErr != nil {
						return nil, readErr
					}
					ext := reg.For(path)
					abs, absErr := filepath.Abs(path)
					if absErr != nil {
						abs = path
					}
					return ext.ParseFile(content, abs)
				})
				resultCh <- result{pf: pf, path: j.rel, err: perr}
			}
		}()
	}
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	idx := New()
	var diags []Diagnostic
	fileCount, methodCount := 0, 0
	for r := range resultCh {
		if r.err != nil {
			diags = append(diags, Diagnostic{Severity: SeverityWarn, Message: "source parse failed: " + r.path + ": " + r.err.Error()})
			logger.Warn("lang.parse.error", "path", r.path, "err", r.err)
			continue
		}
		fileCount++
		idx.mu.Lock()
		for _, cls := range r.pf.Classes {
			idx.indexClassLocked(cls)
			methodCount += len(cls.Methods)
		}
		idx.mu.Unlock()
	}

	logger.Info("index.build.done", "files", fileCount, "methods", methodCount)
	return idx, diags, nil
}

// Diagnostic is a recoverable, accumulated problem (spec.md section 7).
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

type Diagnostic struct {
	Severity Severity
	Message  string
}

// AssociateConfigData implements spec.md 4.C's associate_config_data: for
// every declared endpoint/topic/table/prefix, scan all methods for likely
// usages and append them to the consumer/reader/writer relations, and add
// a "domain:key" entry to config_associations.
func (c *CodeIndex) AssociateConfigData(cd configscan.ConfigData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ep := range cd.Endpoints {
		for qn, m := range c.methods {
			if httpClientMatch(m, ep) {
				c.httpConsumers[ep] = appendUnique(c.httpConsumers[ep], qn)
				c.configAssociations["http:"+ep] = appendUnique(c.configAssociations["http:"+ep], qn)
			}
		}
	}

	for _, topic := range cd.Topics {
		for qn, m := range c.methods {
			for _, op := range m.KafkaOps {
				if op.Topic == topic {
					if op.Kind == lang.KafkaProduce {
						c.kafkaProducers[topic] = appendUnique(c.kafkaProducers[topic], qn)
					} else {
						c.kafkaConsumers[topic] = appendUnique(c.kafkaConsumers[topic], qn)
					}
					c.configAssociations["kafka:"+topic] = appendUnique(c.configAssociations["kafka:"+topic], qn)
				}
			}
		}
	}

	for _, table := range cd.Tables {
		for qn, m := range c.methods {
			for _, op := range m.DBOps {
				if op.Table == table {
					if op.Kind == lang.DBSelect {
						c.dbReaders[table] = appendUnique(c.dbReaders[table], qn)
					} else {
						c.dbWriters[table] = appendUnique(c.dbWriters[table], qn)
					}
					c.configAssociations["db:"+table] = appendUnique(c.configAssociations["db:"+table], qn)
				}
			}
		}
	}

	for _, prefix := range cd.Prefixes {
		for qn, m := range c.methods {
			for _, op := range m.RedisOps {
				if redisKeyMatches(prefix, op.KeyPattern) {
					if op.Kind == lang.RedisGet {
						c.redisReaders[prefix] = appendUnique(c.redisReaders[prefix], qn)
					} else {
						c.redisWriters[prefix] = appendUnique(c.redisWriters[prefix], qn)
					}
					c.configAssociations["redis:"+prefix] = appendUnique(c.configAssociations["redis:"+prefix], qn)
				}
			}
		}
	}
}

// httpClientIdentifiers are substrings whose presence in a call's target
// text marks the call as HTTP-client traffic (spec.md 4.C).
var httpClientIdentifiers = []string{"RestTemplate", "WebClient", "reqwest", "hyper"}

// httpClientMatch implements spec.md 4.C's HTTP consumer inference: a
// method is a consumer of a configured endpoint if one of its call
// targets contains a recognized HTTP-client identifier AND every
// non-placeholder path segment of the endpoint.
func httpClientMatch(m lang.MethodInfo, endpoint string) bool {
	for _, call := range m.Calls {
		hasClientID := false
		for _, id := range httpClientIdentifiers {
			if strings.Contains(call.Target, id) {
				hasClientID = true
				break
			}
		}
		if !hasClientID {
			continue
		}
		if callMatchesEndpoint(call.Target, endpoint) {
			return true
		}
	}
	return false
}

func callMatchesEndpoint(target, endpoint string) bool {
	for _, seg := range strings.Split(endpoint, "/") {
		if seg == "" || isPlaceholder(seg) {
			continue
		}
		if !strings.Contains(target, seg) {
			return false
		}
	}
	return true
}

func isPlaceholder(seg string) bool {
	return strings.HasPrefix(seg, "{") || strings.HasPrefix(seg, ":")
}

// redisKeyMatches implements spec.md 4.C's wildcard matching: a
// wildcard-ended pattern "prefix*" matches any key beginning with
// "prefix"; otherwise match is exact. Matching is symmetric in which
// side carries the wildcard.
func redisKeyMatches(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasSuffix(a, "*") && strings.HasPrefix(b, strings.TrimSuffix(a, "*")) {
		return true
	}
	if strings.HasSuffix(b, "*") && strings.HasPrefix(a, strings.TrimSuffix(b, "*")) {
		return true
	}
	return false
}
