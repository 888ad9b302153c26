package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
)

type stubScoreStore struct {
	mu          sync.Mutex
	users       []domain.User
	pairs       [][2]string
	memberships []repository.GroupMembership
	userScores  map[string]float64
	groupScores map[string]float64
}

func (s *stubScoreStore) AllUsers(context.Context) ([]domain.User, error) {
	return s.users, nil
}

func (s *stubScoreStore) AllConnections(context.Context) ([][2]string, error) {
	return s.pairs, nil
}

func (s *stubScoreStore) AllMemberships(context.Context) ([]repository.GroupMembership, error) {
	return s.memberships, nil
}

func (s *stubScoreStore) UpdateUserScore(_ context.Context, key string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userScores == nil {
		s.userScores = make(map[string]float64)
	}
	s.userScores[key] = score
	return nil
}

func (s *stubScoreStore) UpdateGroupScore(_ context.Context, groupID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupScores == nil {
		s.groupScores = make(map[string]float64)
	}
	s.groupScores[groupID] = score
	return nil
}

func userSet(keys ...string) []domain.User {
	users := make([]domain.User, 0, len(keys))
	for _, key := range keys {
		users = append(users, domain.User{Key: key})
	}
	return users
}

func TestPropagateRank_SeedNeighborhoodOutranksStrangers(t *testing.T) {
	users := userSet("seed", "friend1", "friend2", "stranger1", "stranger2")
	adjacency := buildAdjacency([][2]string{
		{"seed", "friend1"},
		{"seed", "friend2"},
		{"friend1", "friend2"},
		{"stranger1", "stranger2"},
	})
	seeds := map[string]struct{}{"seed": {}}

	scores := PropagateRank(users, adjacency, seeds, 10)

	assert.Greater(t, scores["friend1"], scores["stranger1"])
	assert.Greater(t, scores["friend2"], scores["stranger1"])
	assert.Greater(t, scores["seed"], scores["stranger1"])
	assert.Zero(t, scores["stranger1"])
	assert.Zero(t, scores["stranger2"])
}

func TestPropagateRank_ScoresAreBounded(t *testing.T) {
	users := userSet("a", "b", "c", "d")
	adjacency := buildAdjacency([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"},
	})
	seeds := map[string]struct{}{"a": {}}

	scores := PropagateRank(users, adjacency, seeds, 20)

	top := 0.0
	for _, score := range scores {
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
		if score > top {
			top = score
		}
	}
	assert.Equal(t, 100.0, top, "the best-ranked user pins the scale")
}

func TestPropagateRank_NoSeeds(t *testing.T) {
	users := userSet("a", "b")
	adjacency := buildAdjacency([][2]string{{"a", "b"}})

	scores := PropagateRank(users, adjacency, nil, 10)

	assert.Zero(t, scores["a"])
	assert.Zero(t, scores["b"])
}

func TestPropagateRank_IsolatedUserScoresZero(t *testing.T) {
	users := userSet("seed", "loner")
	adjacency := buildAdjacency(nil)
	seeds := map[string]struct{}{"seed": {}}

	scores := PropagateRank(users, adjacency, seeds, 10)

	assert.Zero(t, scores["loner"])
}

func TestScorerRun_WritesUserAndGroupScores(t *testing.T) {
	store := &stubScoreStore{
		users: userSet("alice", "bob", "carol", "dave"),
		pairs: [][2]string{
			{"alice", "bob"},
			{"bob", "carol"},
			{"carol", "alice"},
			{"carol", "dave"},
		},
		memberships: []repository.GroupMembership{
			{UserKey: "alice", GroupID: "g-seed", Seed: true},
			{UserKey: "bob", GroupID: "g-seed", Seed: true},
			{UserKey: "carol", GroupID: "g-other"},
		},
	}
	scorer := NewScorer(store, testLogger(), 10, 2)

	report, err := scorer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Users)
	assert.Equal(t, 2, report.Groups)
	assert.Equal(t, 2, report.Seeds)
	assert.Len(t, store.userScores, 4)
	assert.Len(t, store.groupScores, 2)

	// The seed group's score is the mean of its members' scores.
	expected := (store.userScores["alice"] + store.userScores["bob"]) / 2
	assert.InDelta(t, expected, store.groupScores["g-seed"], 1e-9)
	assert.InDelta(t, store.userScores["carol"], store.groupScores["g-other"], 1e-9)
}

func TestScorerRun_EmptyGraph(t *testing.T) {
	scorer := NewScorer(&stubScoreStore{}, testLogger(), 5, 1)

	report, err := scorer.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Users)
	assert.Zero(t, report.Groups)
	assert.Zero(t, report.Seeds)
}
