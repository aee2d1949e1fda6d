// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/code-impact-analyzer/pkg/configscan"
	"github.com/kraklabs/code-impact-analyzer/pkg/lang"
)

func TestInvariant_P1_ForwardAndReverseCallsAreSymmetric(t *testing.T) {
	idx := New()
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::a",
		Calls:         []lang.Call{{Target: "Svc::b"}},
	})
	idx.IndexMethod(lang.MethodInfo{QualifiedName: "Svc::b"})

	assert.ElementsMatch(t, []string{"Svc::b"}, idx.FindCallees("Svc::a"))
	assert.ElementsMatch(t, []string{"Svc::a"}, idx.FindCallers("Svc::b"))
}

func TestInvariant_R3_ReIndexingSameMethodIsIdempotent(t *testing.T) {
	idx := New()
	m := lang.MethodInfo{QualifiedName: "Svc::a", Calls: []lang.Call{{Target: "Svc::b"}}}
	idx.IndexMethod(m)
	idx.IndexMethod(m)

	assert.Equal(t, 1, idx.MethodCount())
	assert.Equal(t, []string{"Svc::b"}, idx.FindCallees("Svc::a"))
}

func TestInvariant_P2_HTTPProviderLastWriterWins(t *testing.T) {
	idx := New()
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::first",
		HTTP:          &lang.HTTPInfo{Verb: lang.VerbGET, Path: "/orders"},
	})
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::second",
		HTTP:          &lang.HTTPInfo{Verb: lang.VerbGET, Path: "/orders"},
	})

	provider, ok := idx.FindHTTPProvider(lang.VerbGET, "/orders")
	require.True(t, ok)
	assert.Equal(t, "Svc::second", provider)
}

func TestInvariant_P5_ResourceOpsSplitReadersFromWriters(t *testing.T) {
	idx := New()
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::reader",
		DBOps:         []lang.DBOp{{Kind: lang.DBSelect, Table: "orders"}},
	})
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::writer",
		DBOps:         []lang.DBOp{{Kind: lang.DBInsert, Table: "orders"}},
	})

	assert.Equal(t, []string{"Svc::reader"}, idx.FindDBReaders("orders"))
	assert.Equal(t, []string{"Svc::writer"}, idx.FindDBWriters("orders"))
}

func TestQueries_ClassOfAndSimpleNameOf(t *testing.T) {
	assert.Equal(t, "Pkg.Class", ClassOf("Pkg.Class::method"))
	assert.Equal(t, "method", SimpleNameOf("Pkg.Class::method"))
	assert.Equal(t, "module", ClassOf("module::function"))
	assert.Equal(t, "function", SimpleNameOf("module::function"))
	assert.Equal(t, "bare", SimpleNameOf("bare"))
}

func TestBoundary_B3_B4_InterfaceResolutionRequiresExactlyOneImplementation(t *testing.T) {
	idx := New()
	snap := idx.Snapshot()
	snap.InterfaceImplementations = map[string][]string{
		"Handler":  {"Impl"},
		"Multiple": {"ImplA", "ImplB"},
	}
	idx = FromSnapshot(snap)

	assert.Equal(t, "Impl::handle", idx.ResolveInterfaceCall("Handler::handle"))
	// Ambiguous (more than one implementation): left unresolved (B4).
	assert.Equal(t, "Multiple::handle", idx.ResolveInterfaceCall("Multiple::handle"))
	// Unregistered interface: left unresolved (B3).
	assert.Equal(t, "Unknown::handle", idx.ResolveInterfaceCall("Unknown::handle"))
}

func TestRoundtrip_R2_SnapshotAndFromSnapshot(t *testing.T) {
	idx := New()
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::a",
		FilePath:      "svc.go",
		LineRange:     lang.LineRange{Start: 1, End: 10},
		Calls:         []lang.Call{{Target: "Svc::b"}},
	})
	idx.IndexMethod(lang.MethodInfo{QualifiedName: "Svc::b"})

	snap := idx.Snapshot()
	restored := FromSnapshot(snap)

	assert.Equal(t, idx.MethodCount(), restored.MethodCount())
	assert.ElementsMatch(t, idx.FindCallees("Svc::a"), restored.FindCallees("Svc::a"))
	assert.ElementsMatch(t, idx.AllMethodQualifiedNames(), restored.AllMethodQualifiedNames())
}

func TestMethodsInFile_IntersectsLineRange(t *testing.T) {
	idx := New()
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::a",
		FilePath:      "svc.go",
		LineRange:     lang.LineRange{Start: 10, End: 20},
	})
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::b",
		FilePath:      "svc.go",
		LineRange:     lang.LineRange{Start: 30, End: 40},
	})

	assert.Equal(t, []string{"Svc::a"}, idx.MethodsInFile("svc.go", 5, 15))
	assert.Empty(t, idx.MethodsInFile("svc.go", 21, 29))
	assert.Empty(t, idx.MethodsInFile("other.go", 1, 100))
}

func TestAssociateConfigData_HTTPConsumerInferredFromCallTargetNotOwnEndpoint(t *testing.T) {
	idx := New()
	// Svc::caller has no HTTP annotation of its own; it calls out to a
	// REST client whose call-target text mentions the configured endpoint.
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::caller",
		Calls:         []lang.Call{{Target: "RestTemplate.getForObject(/orders/{id})"}},
	})
	// A method with an unrelated HTTP annotation must not be swept in.
	idx.IndexMethod(lang.MethodInfo{
		QualifiedName: "Svc::unrelated",
		HTTP:          &lang.HTTPInfo{Verb: lang.VerbGET, Path: "/other"},
	})

	idx.AssociateConfigData(configscan.ConfigData{Endpoints: []string{"/orders/{id}"}})

	snap := idx.Snapshot()
	assert.Equal(t, []string{"Svc::caller"}, snap.HTTPConsumers["/orders/{id}"])
	assert.Equal(t, []string{"Svc::caller"}, snap.ConfigAssociations["http:/orders/{id}"])
}

func TestRedisKeyMatches_WildcardIsSymmetric(t *testing.T) {
	assert.True(t, redisKeyMatches("session:*", "session:abc"))
	assert.True(t, redisKeyMatches("session:abc", "session:*"))
	assert.True(t, redisKeyMatches("session:abc", "session:abc"))
	assert.False(t, redisKeyMatches("session:*", "cart:abc"))
}
