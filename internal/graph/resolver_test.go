package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

func newTestResolver(t *testing.T, store *fakeRelationalStore, g *fakeGraphStore) *Resolver {
	t.Helper()
	r, err := NewResolver(store, g, ResolverConfig{}, nil)
	require.NoError(t, err)
	return r
}

func TestResolveOnce_EmitsEdgeAndDeletesResolvedRow(t *testing.T) {
	store := newFakeRelationalStore()
	repositoryID := uuid.New()
	store.entityByFQN["pkg.Caller"] = "e1"
	store.entityByFQN["pkg.Callee"] = "e2"
	pending := relational.PendingRelationship{
		PendingID: uuid.New(),
		SourceFQN: "pkg.Caller",
		TargetFQN: "pkg.Callee",
		Kind:      relational.RelationshipCalls,
	}
	store.pending = append(store.pending, pending)

	g := newFakeGraphStore()
	r := newTestResolver(t, store, g)

	n, err := r.ResolveOnce(context.Background(), repositoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, g.edges, 1)
	assert.Equal(t, "e1", g.edges[0].SourceEntityID)
	assert.Equal(t, "e2", g.edges[0].TargetEntityID)
	assert.Equal(t, relational.RelationshipCalls, g.edges[0].Kind)
	assert.True(t, store.deleted[pending.PendingID])
}

func TestResolveOnce_ExternalTargetNeverProducesEdgeAndRowStaysPending(t *testing.T) {
	store := newFakeRelationalStore()
	repositoryID := uuid.New()
	store.entityByFQN["pkg.Caller"] = "e1"
	pending := relational.PendingRelationship{
		PendingID: uuid.New(),
		SourceFQN: "pkg.Caller",
		TargetFQN: "external::thirdparty::Func",
		Kind:      relational.RelationshipCalls,
	}
	store.pending = append(store.pending, pending)

	g := newFakeGraphStore()
	r := newTestResolver(t, store, g)

	n, err := r.ResolveOnce(context.Background(), repositoryID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, g.edges)
	assert.False(t, store.deleted[pending.PendingID])
}

func TestResolveOnce_UnresolvedTargetLeavesRowPendingForFuturePass(t *testing.T) {
	store := newFakeRelationalStore()
	repositoryID := uuid.New()
	store.entityByFQN["pkg.Caller"] = "e1"
	pending := relational.PendingRelationship{
		PendingID: uuid.New(),
		SourceFQN: "pkg.Caller",
		TargetFQN: "pkg.NotYetIndexed",
		Kind:      relational.RelationshipCalls,
	}
	store.pending = append(store.pending, pending)

	g := newFakeGraphStore()
	r := newTestResolver(t, store, g)

	n, err := r.ResolveOnce(context.Background(), repositoryID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, store.deleted[pending.PendingID])
}

func TestResolveOnce_TraitImplShortFormMatchesDirectMethodCall(t *testing.T) {
	store := newFakeRelationalStore()
	repositoryID := uuid.New()
	store.entityByFQN["pkg.Caller"] = "e1"
	store.entityByFQN["pkg::Widget::render"] = "e2"
	pending := relational.PendingRelationship{
		PendingID: uuid.New(),
		SourceFQN: "pkg.Caller",
		TargetFQN: "<pkg::Widget as pkg::Renderable>::render",
		Kind:      relational.RelationshipCalls,
	}
	store.pending = append(store.pending, pending)

	g := newFakeGraphStore()
	r := newTestResolver(t, store, g)

	n, err := r.ResolveOnce(context.Background(), repositoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, g.edges, 1)
	assert.Equal(t, "e2", g.edges[0].TargetEntityID)
}

func TestResolveOnce_NoPendingRowsIsNoop(t *testing.T) {
	store := newFakeRelationalStore()
	g := newFakeGraphStore()
	r := newTestResolver(t, store, g)

	n, err := r.ResolveOnce(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, g.edges)
}

func TestCandidateTargets(t *testing.T) {
	assert.Nil(t, candidateTargets("external::foo::Bar"))
	assert.Equal(t, []string{"pkg.Thing"}, candidateTargets("pkg.Thing"))
	assert.Equal(t,
		[]string{"<pkg::Widget as pkg::Renderable>::render", "pkg::Widget::render"},
		candidateTargets("<pkg::Widget as pkg::Renderable>::render"))
}

func TestTraitImplShortForm(t *testing.T) {
	short, ok := traitImplShortForm("<pkg::Widget as pkg::Renderable>::render")
	assert.True(t, ok)
	assert.Equal(t, "pkg::Widget::render", short)

	_, ok = traitImplShortForm("pkg::Widget::render")
	assert.False(t, ok)
}
