// SPDX-License-Identifier: AGPL-3.0-or-later

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvariant_P4_AddNodeIdempotent(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a-again"})

	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "a", g.Nodes()[0].Label)
}

func TestInvariant_P4_AddEdgeDropsUnknownEndpoints(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})

	g.AddEdge("method:a", "method:ghost", EdgeMethodCall, Downstream)

	assert.Equal(t, 0, g.EdgeCount())
}

func TestInvariant_P4_AddEdgeDeduplicates(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "method:b", Kind: NodeMethod, Label: "b"})

	g.AddEdge("method:a", "method:b", EdgeMethodCall, Downstream)
	g.AddEdge("method:a", "method:b", EdgeMethodCall, Downstream)

	assert.Equal(t, 1, g.EdgeCount())
}

func TestRoundtrip_R2_ToJSONMatchesGraphShape(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "http:GET:/x", Kind: NodeHTTPEndpoint, Label: "GET /x"})
	g.AddEdge("method:a", "http:GET:/x", EdgeHTTPCall, Downstream)

	out := g.ToJSON()

	require.Len(t, out.Nodes, 2)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, 2, out.NodeCount)
	assert.Equal(t, 1, out.EdgeCount)
	assert.Equal(t, "method", out.Nodes[0].Type["kind"])
	assert.Equal(t, "http", out.Nodes[1].Type["kind"])
	assert.Equal(t, "HttpCall", out.Edges[0].Type)
	assert.Equal(t, "Downstream", out.Edges[0].Direction)
}

func TestInvariant_P6_DetectCyclesFindsSelfSustainingLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "method:b", Kind: NodeMethod, Label: "b"})
	g.AddNode(Node{ID: "method:c", Kind: NodeMethod, Label: "c"})
	g.AddEdge("method:a", "method:b", EdgeMethodCall, Downstream)
	g.AddEdge("method:b", "method:a", EdgeMethodCall, Downstream)
	g.AddEdge("method:a", "method:c", EdgeMethodCall, Downstream)

	cycles := g.DetectCycles()

	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"method:a", "method:b"}, cycles[0])
}

func TestInvariant_P6_DetectCyclesEmptyForAcyclicGraph(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "method:b", Kind: NodeMethod, Label: "b"})
	g.AddEdge("method:a", "method:b", EdgeMethodCall, Downstream)

	assert.Empty(t, g.DetectCycles())
}

func TestRenderDOT_ContainsNodesAndEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "db:orders", Kind: NodeDBTable, Label: "orders"})
	g.AddEdge("method:a", "db:orders", EdgeDatabaseReadWrite, Downstream)

	dot := g.RenderDOT()

	assert.Contains(t, dot, "digraph impact {")
	assert.Contains(t, dot, `"method:a"`)
	assert.Contains(t, dot, "shape=cylinder")
	assert.Contains(t, dot, `"method:a" -> "db:orders"`)
}

func TestRenderMermaid_ContainsNodesAndEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "method:a", Kind: NodeMethod, Label: "a"})
	g.AddNode(Node{ID: "kafka:orders.created", Kind: NodeKafkaTopic, Label: "orders.created"})
	g.AddEdge("method:a", "kafka:orders.created", EdgeKafkaProduceConsume, Downstream)

	out := g.RenderMermaid()

	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "nmethod_a")
	assert.Contains(t, out, "-->|")
}
