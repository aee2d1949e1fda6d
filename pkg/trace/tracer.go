// SPDX-License-Identifier: AGPL-3.0-or-later

package trace

import (
	"github.com/kraklabs/code-impact-analyzer/pkg/index"
	"github.com/kraklabs/code-impact-analyzer/pkg/lang"
)

// Config configures the impact tracer (spec.md 4.E).
type Config struct {
	MaxDepth          int
	TraceUpstream     bool
	TraceDownstream   bool
	TraceCrossService bool
}

// DefaultConfig matches spec.md 4.E's defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: 10, TraceUpstream: true, TraceDownstream: true, TraceCrossService: true}
}

// Diagnostic mirrors index.Diagnostic's shape to keep pkg/trace free of
// an import-cycle-prone dependency on the orchestrator's diagnostic type.
type Diagnostic struct {
	Severity string
	Message  string
}

// Tracer implements spec.md 4.E's bidirectional bounded DFS.
type Tracer struct {
	idx    *index.CodeIndex
	config Config
}

// New creates a tracer over idx with the given configuration.
func New(idx *index.CodeIndex, config Config) *Tracer {
	return &Tracer{idx: idx, config: config}
}

// TraceImpact runs the tracer over every seed (spec.md "Algorithm"): one
// seed node per changed method, each explored by independent bounded DFS
// traversals in both directions.
func (t *Tracer) TraceImpact(seeds []string) (*Graph, []Diagnostic) {
	g := NewGraph()
	var diags []Diagnostic

	for _, seed := range seeds {
		g.AddNode(Node{ID: MethodNodeID(seed), Kind: NodeMethod, Label: seed})

		if _, ok := t.idx.Method(seed); !ok {
			// Seed method not found: warning, seed stays as isolated
			// node (spec.md section 7).
			diags = append(diags, Diagnostic{Severity: "warn", Message: "seed method not found in index: " + seed})
			continue
		}

		if t.config.TraceUpstream {
			visited := map[string]bool{seed: true}
			t.upstream(g, seed, 0, visited)
		}
		if t.config.TraceDownstream {
			visited := map[string]bool{seed: true}
			t.downstream(g, seed, 0, visited)
		}
	}

	return g, diags
}

// upstream implements spec.md 4.E's upstream traversal: at node m with
// depth d < max_depth, collect callers (direct plus, for every interface
// the class implements, callers of I::simple_name(m)), apply interface
// resolution, recurse.
func (t *Tracer) upstream(g *Graph, m string, depth int, visited map[string]bool) {
	if depth >= t.config.MaxDepth {
		return
	}

	callers := append([]string{}, t.idx.FindCallers(m)...)
	simpleName := index.SimpleNameOf(m)
	for _, iface := range t.idx.InterfacesImplementedBy(m) {
		callers = append(callers, t.idx.FindCallers(iface+"::"+simpleName)...)
	}

	for _, caller := range callers {
		resolved := t.idx.ResolveInterfaceCall(caller)
		if _, ok := t.idx.Method(resolved); !ok {
			continue
		}
		if visited[resolved] {
			continue
		}
		visited[resolved] = true

		g.AddNode(Node{ID: MethodNodeID(resolved), Kind: NodeMethod, Label: resolved})
		g.AddNode(Node{ID: MethodNodeID(m), Kind: NodeMethod, Label: m})
		g.AddEdge(MethodNodeID(resolved), MethodNodeID(m), EdgeMethodCall, Upstream)

		t.upstream(g, resolved, depth+1, visited)
	}

	if t.config.TraceCrossService {
		t.expandResourcesUpstream(g, m, visited)
	}
}

// downstream is symmetric to upstream, walking forward_calls.
func (t *Tracer) downstream(g *Graph, m string, depth int, visited map[string]bool) {
	if depth >= t.config.MaxDepth {
		return
	}

	callees := t.idx.FindCallees(m)
	for _, callee := range callees {
		resolved := t.idx.ResolveInterfaceCall(callee)
		target := resolved
		if _, ok := t.idx.Method(resolved); !ok {
			target = callee
			if _, ok := t.idx.Method(target); !ok {
				continue
			}
		}
		if visited[target] {
			continue
		}
		visited[target] = true

		g.AddNode(Node{ID: MethodNodeID(m), Kind: NodeMethod, Label: m})
		g.AddNode(Node{ID: MethodNodeID(target), Kind: NodeMethod, Label: target})
		g.AddEdge(MethodNodeID(m), MethodNodeID(target), EdgeMethodCall, Downstream)

		t.downstream(g, target, depth+1, visited)
	}

	if t.config.TraceCrossService {
		t.expandResourcesDownstream(g, m, visited)
	}
}

// expandResourcesDownstream implements the "m is an http client / kafka
// producer / db writer / redis writer" half of spec.md 4.E's
// resource-edge expansion.
func (t *Tracer) expandResourcesDownstream(g *Graph, m string, visited map[string]bool) {
	mi, ok := t.idx.Method(m)
	if !ok {
		return
	}

	if mi.HTTP != nil && mi.HTTP.IsClient {
		epID := HTTPNodeID(string(mi.HTTP.Verb), mi.HTTP.Path)
		g.AddNode(Node{ID: epID, Kind: NodeHTTPEndpoint, Label: string(mi.HTTP.Verb) + " " + mi.HTTP.Path})
		g.AddEdge(MethodNodeID(m), epID, EdgeHTTPCall, Downstream)

		if provider, ok := t.idx.FindHTTPProvider(mi.HTTP.Verb, mi.HTTP.Path); ok {
			g.AddNode(Node{ID: MethodNodeID(provider), Kind: NodeMethod, Label: provider})
			g.AddEdge(epID, MethodNodeID(provider), EdgeHTTPCall, Downstream)
			if !visited[provider] {
				fresh := map[string]bool{provider: true}
				t.downstream(g, provider, 0, fresh)
			}
		}
	}

	for _, op := range mi.KafkaOps {
		if op.Kind != lang.KafkaProduce {
			continue
		}
		topicID := KafkaNodeID(op.Topic)
		g.AddNode(Node{ID: topicID, Kind: NodeKafkaTopic, Label: op.Topic})
		g.AddEdge(MethodNodeID(m), topicID, EdgeKafkaProduceConsume, Downstream)
		for _, consumer := range t.idx.FindKafkaConsumers(op.Topic) {
			g.AddNode(Node{ID: MethodNodeID(consumer), Kind: NodeMethod, Label: consumer})
			g.AddEdge(topicID, MethodNodeID(consumer), EdgeKafkaProduceConsume, Downstream)
			if !visited[consumer] {
				fresh := map[string]bool{consumer: true}
				t.downstream(g, consumer, 0, fresh)
			}
		}
	}

	for _, op := range mi.DBOps {
		if op.Kind == lang.DBSelect {
			continue
		}
		tableID := DBNodeID(op.Table)
		g.AddNode(Node{ID: tableID, Kind: NodeDBTable, Label: op.Table})
		g.AddEdge(MethodNodeID(m), tableID, EdgeDatabaseReadWrite, Downstream)
		for _, reader := range t.idx.FindDBReaders(op.Table) {
			g.AddNode(Node{ID: MethodNodeID(reader), Kind: NodeMethod, Label: reader})
			g.AddEdge(tableID, MethodNodeID(reader), EdgeDatabaseReadWrite, Downstream)
			if !visited[reader] {
				fresh := map[string]bool{reader: true}
				t.downstream(g, reader, 0, fresh)
			}
		}
	}

	for _, op := range mi.RedisOps {
		if op.Kind == lang.RedisGet {
			continue
		}
		keyID := RedisNodeID(op.KeyPattern)
		g.AddNode(Node{ID: keyID, Kind: NodeRedisPrefix, Label: op.KeyPattern})
		g.AddEdge(MethodNodeID(m), keyID, EdgeRedisReadWrite, Downstream)
		for _, reader := range t.idx.FindRedisReaders(op.KeyPattern) {
			g.AddNode(Node{ID: MethodNodeID(reader), Kind: NodeMethod, Label: reader})
			g.AddEdge(keyID, MethodNodeID(reader), EdgeRedisReadWrite, Downstream)
			if !visited[reader] {
				fresh := map[string]bool{reader: true}
				t.downstream(g, reader, 0, fresh)
			}
		}
	}
}

// expandResourcesUpstream is symmetric: m as an http provider / kafka
// consumer / db reader / redis reader.
func (t *Tracer) expandResourcesUpstream(g *Graph, m string, visited map[string]bool) {
	mi, ok := t.idx.Method(m)
	if !ok {
		return
	}

	if mi.HTTP != nil && !mi.HTTP.IsClient {
		epID := HTTPNodeID(string(mi.HTTP.Verb), mi.HTTP.Path)
		g.AddNode(Node{ID: epID, Kind: NodeHTTPEndpoint, Label: string(mi.HTTP.Verb) + " " + mi.HTTP.Path})
		g.AddEdge(epID, MethodNodeID(m), EdgeHTTPCall, Upstream)

		for _, consumer := range t.idx.FindHTTPConsumers(mi.HTTP.Verb, mi.HTTP.Path) {
			g.AddNode(Node{ID: MethodNodeID(consumer), Kind: NodeMethod, Label: consumer})
			g.AddEdge(MethodNodeID(consumer), epID, EdgeHTTPCall, Upstream)
			if !visited[consumer] {
				fresh := map[string]bool{consumer: true}
				t.upstream(g, consumer, 0, fresh)
			}
		}
	}

	for _, op := range mi.KafkaOps {
		if op.Kind != lang.KafkaConsume {
			continue
		}
		topicID := KafkaNodeID(op.Topic)
		g.AddNode(Node{ID: topicID, Kind: NodeKafkaTopic, Label: op.Topic})
		g.AddEdge(topicID, MethodNodeID(m), EdgeKafkaProduceConsume, Upstream)
		for _, producer := range t.idx.FindKafkaProducers(op.Topic) {
			g.AddNode(Node{ID: MethodNodeID(producer), Kind: NodeMethod, Label: producer})
			g.AddEdge(MethodNodeID(producer), topicID, EdgeKafkaProduceConsume, Upstream)
			if !visited[producer] {
				fresh := map[string]bool{producer: true}
				t.upstream(g, producer, 0, fresh)
			}
		}
	}

	for _, op := range mi.DBOps {
		if op.Kind != lang.DBSelect {
			continue
		}
		tableID := DBNodeID(op.Table)
		g.AddNode(Node{ID: tableID, Kind: NodeDBTable, Label: op.Table})
		g.AddEdge(tableID, MethodNodeID(m), EdgeDatabaseReadWrite, Upstream)
		for _, writer := range t.idx.FindDBWriters(op.Table) {
			g.AddNode(Node{ID: MethodNodeID(writer), Kind: NodeMethod, Label: writer})
			g.AddEdge(MethodNodeID(writer), tableID, EdgeDatabaseReadWrite, Upstream)
			if !visited[writer] {
				fresh := map[string]bool{writer: true}
				t.upstream(g, writer, 0, fresh)
			}
		}
	}

	for _, op := range mi.RedisOps {
		if op.Kind != lang.RedisGet {
			continue
		}
		keyID := RedisNodeID(op.KeyPattern)
		g.AddNode(Node{ID: keyID, Kind: NodeRedisPrefix, Label: op.KeyPattern})
		g.AddEdge(keyID, MethodNodeID(m), EdgeRedisReadWrite, Upstream)
		for _, writer := range t.idx.FindRedisWriters(op.KeyPattern) {
			g.AddNode(Node{ID: MethodNodeID(writer), Kind: NodeMethod, Label: writer})
			g.AddEdge(MethodNodeID(writer), keyID, EdgeRedisReadWrite, Upstream)
			if !visited[writer] {
				fresh := map[string]bool{writer: true}
				t.upstream(g, writer, 0, fresh)
			}
		}
	}
}
