package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

func formingGroupRecord(id string, founders []string) graph.Record {
	return graph.Record{
		"groupId":   id,
		"score":     0.0,
		"founders":  founders,
		"state":     "forming",
		"seed":      false,
		"timestamp": int64(1000),
	}
}

func establishedGroupRecord(id string, founders []string) graph.Record {
	rec := formingGroupRecord(id, founders)
	rec["state"] = "established"
	return rec
}

func TestCreateGroup(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	// No duplicate founder triple, creator connected to both cofounders.
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"linked": int64(2)}}})

	g := domain.Group{
		ID:        "g-1",
		Founders:  domain.SortedFounders("alice", "bob", "carol"),
		Stage:     domain.StageForming,
		CreatedAt: 1000,
	}
	require.NoError(t, repo.CreateGroup(context.Background(), g, "alice"))

	calls := mem.TxCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, groupByFoundersCypher, calls[0].Query)
	assert.Equal(t, creatorLinksCypher, calls[1].Query)
	assert.Equal(t, createGroupCypher, calls[2].Query)
	assert.Equal(t, "alice", calls[2].Params["creator"])
	assert.Equal(t, []string{"alice", "bob", "carol"}, calls[2].Params["founders"])
	assert.ElementsMatch(t, []string{"bob", "carol"}, calls[1].Params["cofounders"])
}

func TestCreateGroup_DuplicateFounderTriple(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(1)}}})

	g := domain.Group{
		ID:        "g-1",
		Founders:  domain.SortedFounders("alice", "bob", "carol"),
		CreatedAt: 1000,
	}
	err := repo.CreateGroup(context.Background(), g, "alice")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 1)
}

func TestCreateGroup_CreatorNotConnectedToCofounders(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"linked": int64(1)}}})

	g := domain.Group{
		ID:        "g-1",
		Founders:  domain.SortedFounders("alice", "bob", "carol"),
		CreatedAt: 1000,
	}
	err := repo.CreateGroup(context.Background(), g, "alice")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestJoin_FormingFounderRecordedWithoutPromotion(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{formingGroupRecord("g-1", founders)}})
	mem.PushTxResult(graph.Result{}) // pending membership upsert
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"keys": []string{"alice", "bob"}},
	}})

	res, err := repo.Join(context.Background(), "g-1", "bob", 2000)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Equal(t, domain.StageForming, res.Stage)

	calls := mem.TxCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, upsertPendingMembershipCypher, calls[1].Query)
	assert.Equal(t, pendingMemberKeysCypher, calls[2].Query)
}

func TestJoin_LastFounderPromotesGroup(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{formingGroupRecord("g-1", founders)}})
	mem.PushTxResult(graph.Result{})
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"keys": []string{"alice", "bob", "carol"}},
	}})

	res, err := repo.Join(context.Background(), "g-1", "carol", 3000)
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Equal(t, domain.StageEstablished, res.Stage)

	calls := mem.TxCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, promoteGroupCypher, calls[3].Query)
	assert.Equal(t, "established", calls[3].Params["established"])
}

func TestJoin_FormingRejectsNonFounder(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{formingGroupRecord("g-1", founders)}})

	_, err := repo.Join(context.Background(), "g-1", "mallory", 2000)
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 1)
}

func TestJoin_EstablishedEligibleUserJoins(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{establishedGroupRecord("g-1", founders)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"members": int64(4), "matching": int64(3), "already": false},
	}})

	res, err := repo.Join(context.Background(), "g-1", "dave", 4000)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Equal(t, domain.StageEstablished, res.Stage)

	calls := mem.TxCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, upsertMembershipCypher, calls[2].Query)
}

func TestJoin_EstablishedHalfIsNotEnough(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{establishedGroupRecord("g-1", founders)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"members": int64(4), "matching": int64(2), "already": false},
	}})

	_, err := repo.Join(context.Background(), "g-1", "dave", 4000)
	require.Error(t, err)
	assert.Equal(t, domain.KindEligibility, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 2)
}

func TestJoin_EstablishedRejoinIsNoOp(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{establishedGroupRecord("g-1", founders)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"members": int64(4), "matching": int64(0), "already": true},
	}})

	_, err := repo.Join(context.Background(), "g-1", "alice", 4000)
	require.NoError(t, err)
	assert.Len(t, mem.TxCalls(), 2)
}

func TestJoin_UnknownGroup(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{})

	_, err := repo.Join(context.Background(), "missing", "alice", 1000)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDissolve_FormingGroupByFounder(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{formingGroupRecord("g-1", founders)}})

	require.NoError(t, repo.Dissolve(context.Background(), "g-1", "alice"))

	calls := mem.TxCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, dissolveGroupCypher, calls[1].Query)
}

func TestDissolve_EstablishedGroupIsRefused(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{establishedGroupRecord("g-1", founders)}})

	err := repo.Dissolve(context.Background(), "g-1", "alice")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 1)
}

func TestDissolve_NonFounderIsRefused(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushTxResult(graph.Result{Records: []graph.Record{formingGroupRecord("g-1", founders)}})

	err := repo.Dissolve(context.Background(), "g-1", "mallory")
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))
}

func TestLeave(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	require.NoError(t, repo.Leave(context.Background(), "g-1", "alice"))

	calls := mem.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, leaveGroupCypher, calls[0].Query)
}

func TestGroupByID_NotFound(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	_, err := repo.GroupByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGroupByID(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	founders := domain.SortedFounders("alice", "bob", "carol")
	mem.PushReadResult(graph.Result{Records: []graph.Record{establishedGroupRecord("g-1", founders)}})

	g, err := repo.GroupByID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", g.ID)
	assert.Equal(t, domain.StageEstablished, g.Stage)
	assert.Equal(t, founders, g.Founders)
}

func TestEligibleCandidates(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"groupId": "g-1", "matching": int64(3), "members": int64(4)},
		{"groupId": "g-2", "matching": int64(2), "members": int64(4)},
	}})

	candidates, err := repo.EligibleCandidates(context.Background(), "alice", []string{"g-9"})
	require.NoError(t, err)
	assert.Equal(t, []domain.GroupCandidate{
		{GroupID: "g-1", Matching: 3, Members: 4},
		{GroupID: "g-2", Matching: 2, Members: 4},
	}, candidates)

	calls := mem.ReadCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, eligibleCandidatesCypher, calls[0].Query)
	assert.Equal(t, []string{"g-9"}, calls[0].Params["exclude"])
	assert.Equal(t, domain.MinCandidateMatches, calls[0].Params["minMatches"])
}
