package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
)

// ScoreStore is the storage contract required by the scorer.
type ScoreStore interface {
	AllUsers(ctx context.Context) ([]domain.User, error)
	AllConnections(ctx context.Context) ([][2]string, error)
	AllMemberships(ctx context.Context) ([]repository.GroupMembership, error)
	UpdateUserScore(ctx context.Context, key string, score float64) error
	UpdateGroupScore(ctx context.Context, groupID string, score float64) error
}

// Scorer recomputes user and group scores from the full trust graph. Rank
// mass starts on the members of seed groups and propagates along live
// connections for a fixed number of iterations; final per-user ranks are
// degree-normalized and scaled to [0,100]. A group's score is the mean of
// its members' scores.
type Scorer struct {
	store      ScoreStore
	logger     *slog.Logger
	iterations int
	workers    int
}

// NewScorer constructs a Scorer.
func NewScorer(store ScoreStore, logger *slog.Logger, iterations, workers int) *Scorer {
	if iterations <= 0 {
		iterations = 10
	}
	return &Scorer{
		store:      store,
		logger:     logger,
		iterations: iterations,
		workers:    workers,
	}
}

// ScoreReport summarizes one scoring run.
type ScoreReport struct {
	Users  int
	Groups int
	Seeds  int
	Max    float64
	Min    float64
}

// Run loads the graph, propagates rank, and writes scores back through a
// bounded worker pool.
func (s *Scorer) Run(ctx context.Context) (ScoreReport, error) {
	users, err := s.store.AllUsers(ctx)
	if err != nil {
		return ScoreReport{}, fmt.Errorf("load users: %w", err)
	}
	pairs, err := s.store.AllConnections(ctx)
	if err != nil {
		return ScoreReport{}, fmt.Errorf("load connections: %w", err)
	}
	memberships, err := s.store.AllMemberships(ctx)
	if err != nil {
		return ScoreReport{}, fmt.Errorf("load memberships: %w", err)
	}

	adjacency := buildAdjacency(pairs)
	seeds := seedUsers(memberships)

	scores := PropagateRank(users, adjacency, seeds, s.iterations)
	groupScores := groupAverages(memberships, scores)

	report := ScoreReport{
		Users:  len(scores),
		Groups: len(groupScores),
		Seeds:  len(seeds),
	}
	first := true
	for _, score := range scores {
		if first || score > report.Max {
			report.Max = score
		}
		if first || score < report.Min {
			report.Min = score
		}
		first = false
	}

	keys := sortedKeys(scores)
	if err := parallelRun(ctx, len(keys), s.workers, func(idx int) error {
		key := keys[idx]
		return s.store.UpdateUserScore(ctx, key, scores[key])
	}); err != nil {
		return report, fmt.Errorf("write user scores: %w", err)
	}

	groupIDs := sortedKeys(groupScores)
	if err := parallelRun(ctx, len(groupIDs), s.workers, func(idx int) error {
		id := groupIDs[idx]
		return s.store.UpdateGroupScore(ctx, id, groupScores[id])
	}); err != nil {
		return report, fmt.Errorf("write group scores: %w", err)
	}

	s.logger.Info("scoring run completed",
		"users", report.Users, "groups", report.Groups, "seeds", report.Seeds,
		"max", report.Max, "min", report.Min)
	return report, nil
}

// PropagateRank runs the seed-based rank propagation over the connection
// graph and returns per-user scores in [0,100]. Users outside the connected
// component of any seed score zero.
func PropagateRank(users []domain.User, adjacency map[string][]string, seeds map[string]struct{}, iterations int) map[string]float64 {
	rank := make(map[string]float64, len(users))
	if len(seeds) > 0 {
		share := 1.0 / float64(len(seeds))
		for seed := range seeds {
			rank[seed] = share
		}
	}

	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, len(rank))
		for node, mass := range rank {
			neighbors := adjacency[node]
			if len(neighbors) == 0 {
				next[node] += mass
				continue
			}
			share := mass / float64(len(neighbors))
			for _, peer := range neighbors {
				next[peer] += share
			}
		}
		rank = next
	}

	// Degree normalization keeps high-degree honest users from dominating
	// purely by edge count.
	maxNorm := 0.0
	normalized := make(map[string]float64, len(users))
	for _, u := range users {
		degree := len(adjacency[u.Key])
		if degree == 0 {
			normalized[u.Key] = 0
			continue
		}
		norm := rank[u.Key] / float64(degree)
		normalized[u.Key] = norm
		if norm > maxNorm {
			maxNorm = norm
		}
	}

	scores := make(map[string]float64, len(normalized))
	for key, norm := range normalized {
		if maxNorm == 0 {
			scores[key] = 0
			continue
		}
		scores[key] = 100 * norm / maxNorm
	}
	return scores
}

func buildAdjacency(pairs [][2]string) map[string][]string {
	adjacency := make(map[string][]string)
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		if a == "" || b == "" || a == b {
			continue
		}
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}
	return adjacency
}

func seedUsers(memberships []repository.GroupMembership) map[string]struct{} {
	seeds := make(map[string]struct{})
	for _, m := range memberships {
		if m.Seed {
			seeds[m.UserKey] = struct{}{}
		}
	}
	return seeds
}

func groupAverages(memberships []repository.GroupMembership, scores map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, m := range memberships {
		sums[m.GroupID] += scores[m.UserKey]
		counts[m.GroupID]++
	}

	averages := make(map[string]float64, len(sums))
	for id, sum := range sums {
		averages[id] = sum / float64(counts[id])
	}
	return averages
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
