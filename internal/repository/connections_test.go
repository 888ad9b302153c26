package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

func TestReplaceConnection_AcceptedReplacesExistingRecord(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	// One older CONNECTED record exists for the pair.
	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"kind": "CONNECTED", "timestamp": int64(100)},
	}})

	applied, err := repo.ReplaceConnection(context.Background(), "bob", "alice", domain.KindRemoved, 200)
	require.NoError(t, err)
	assert.True(t, applied)

	calls := mem.TxCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, pairRecordsCypher, calls[0].Query)
	assert.Equal(t, deletePairRecordsCypher, calls[1].Query)
	assert.Equal(t, fmt.Sprintf(insertPairRecordCypherTemplate, relRemoved), calls[2].Query)

	// The unordered pair is stored in canonical direction.
	assert.Equal(t, "alice", calls[0].Params["a"])
	assert.Equal(t, "bob", calls[0].Params["b"])
	assert.Equal(t, int64(200), calls[2].Params["timestamp"])
}

func TestReplaceConnection_EmptyPairSkipsDelete(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	applied, err := repo.ReplaceConnection(context.Background(), "alice", "bob", domain.KindConnected, 100)
	require.NoError(t, err)
	assert.True(t, applied)

	calls := mem.TxCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, pairRecordsCypher, calls[0].Query)
	assert.Equal(t, fmt.Sprintf(insertPairRecordCypherTemplate, relConnected), calls[1].Query)
}

func TestReplaceConnection_StaleWriteIsSilentNoOp(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"kind": "REMOVED", "timestamp": int64(500)},
	}})

	applied, err := repo.ReplaceConnection(context.Background(), "alice", "bob", domain.KindConnected, 400)
	require.NoError(t, err)
	assert.False(t, applied)

	// Only the read ran; nothing was deleted or inserted.
	assert.Len(t, mem.TxCalls(), 1)
}

func TestReplaceConnection_EqualTimestampLoses(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"kind": "CONNECTED", "timestamp": int64(300)},
	}})

	applied, err := repo.ReplaceConnection(context.Background(), "alice", "bob", domain.KindRemoved, 300)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestReplaceConnection_UnknownKind(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	_, err := repo.ReplaceConnection(context.Background(), "alice", "bob", domain.ConnectionKind("bogus"), 100)
	require.Error(t, err)
	assert.Empty(t, mem.TxCalls())
}

func TestConnectionsOf(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"key": "bob"},
		{"key": "carol"},
	}})

	peers, err := repo.ConnectionsOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, peers)

	calls := mem.ReadCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, connectionsOfCypher, calls[0].Query)
	assert.Equal(t, "alice", calls[0].Params["key"])
}

func TestConnectionsOf_RequiresKey(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	_, err := repo.ConnectionsOf(context.Background(), "")
	require.Error(t, err)
}

func TestAllConnections(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"a": "alice", "b": "bob"},
		{"a": "bob", "b": "carol"},
	}})

	pairs, err := repo.AllConnections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"alice", "bob"}, {"bob", "carol"}}, pairs)
}
