package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

func contextRecord(id string, total, used int64) graph.Record {
	return graph.Record{
		"contextId":         id,
		"collection":        id + "-accounts",
		"verification":      "BrightID",
		"totalSponsorships": total,
		"usedSponsorships":  used,
	}
}

func TestGetContext(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{contextRecord("app", 10, 4)}})

	c, err := repo.GetContext(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, "app", c.ID)
	assert.Equal(t, 10, c.TotalSponsorships)
	assert.Equal(t, 4, c.UsedSponsorships)
	assert.Equal(t, 6, c.UnusedSponsorshipSlots())
}

func TestGetContext_NotFound(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	_, err := repo.GetContext(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestSponsor(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{contextRecord("app", 10, 4)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})

	require.NoError(t, repo.Sponsor(context.Background(), "alice", "app"))

	calls := mem.TxCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, createSponsorshipCypher, calls[2].Query)
	assert.Equal(t, "alice", calls[2].Params["key"])
}

func TestSponsor_AlreadySponsoredSpendsNothing(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{contextRecord("app", 10, 10)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(1)}}})

	// No slots left, but the duplicate short-circuits before the capacity
	// check.
	require.NoError(t, repo.Sponsor(context.Background(), "alice", "app"))
	assert.Len(t, mem.TxCalls(), 2)
}

func TestSponsor_CapacityExhausted(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{contextRecord("app", 10, 10)}})
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})

	err := repo.Sponsor(context.Background(), "alice", "app")
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 2)
}

func TestSponsor_UnknownContext(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{})

	err := repo.Sponsor(context.Background(), "alice", "missing")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestIsSponsored(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{{"total": int64(1)}}})

	sponsored, err := repo.IsSponsored(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, sponsored)
}

func TestLinkAccount(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(1)}}})

	require.NoError(t, repo.LinkAccount(context.Background(), "alice", "app", "acct-1", 1000))

	calls := mem.TxCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, createAccountLinkCypher, calls[1].Query)
	assert.Equal(t, "acct-1", calls[1].Params["accountId"])
	assert.Equal(t, int64(1000), calls[1].Params["timestamp"])
}

func TestLinkAccount_UnknownContext(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})

	err := repo.LinkAccount(context.Background(), "alice", "missing", "acct-1", 1000)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Len(t, mem.TxCalls(), 1)
}

func TestContextLinks(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"key": "alice", "accountId": "acct-1", "timestamp": int64(10)},
		{"key": "bob", "accountId": "acct-2", "timestamp": int64(20)},
	}})

	links, err := repo.ContextLinks(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountLink{
		{UserKey: "alice", AccountID: "acct-1", Timestamp: 10},
		{UserKey: "bob", AccountID: "acct-2", Timestamp: 20},
	}, links)
}
