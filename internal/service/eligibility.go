package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// EligibilityStore is the storage contract required by the eligibility
// engine.
type EligibilityStore interface {
	IsEligibleCounts(ctx context.Context, groupID, key string) (matching, members int, err error)
	EligibleCandidates(ctx context.Context, key string, exclude []string) ([]domain.GroupCandidate, error)
	CurrentGroups(ctx context.Context, key string) ([]string, error)
	SetEligibleGroups(ctx context.Context, key string, groups []string, timestamp int64) error
}

// EligibilityService computes which established groups a user may join.
// Single join decisions always use the exact membership-ratio rule; the
// discovery path prefilters candidates by connection adjacency before
// verifying each against the same rule.
type EligibilityService struct {
	store  EligibilityStore
	logger *slog.Logger
	// staleness window gating eligible-group recomputation; a tunable
	// caching policy, not part of the eligibility rule.
	recheckInterval time.Duration
	nowFn           func() time.Time
}

// NewEligibilityService constructs an EligibilityService.
func NewEligibilityService(store EligibilityStore, logger *slog.Logger, recheckInterval time.Duration) *EligibilityService {
	return &EligibilityService{
		store:           store,
		logger:          logger,
		recheckInterval: recheckInterval,
		nowFn:           time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *EligibilityService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// IsEligibleToJoin applies the exact rule against the group's member set at
// evaluation time.
func (s *EligibilityService) IsEligibleToJoin(ctx context.Context, groupID, key string) (bool, error) {
	if err := requireKey("group id", groupID); err != nil {
		return false, err
	}
	if err := requireKey("user key", key); err != nil {
		return false, err
	}

	matching, members, err := s.store.IsEligibleCounts(ctx, groupID, key)
	if err != nil {
		return false, err
	}
	return domain.Eligible(matching, members), nil
}

// DiscoverEligibleGroups returns the established groups the user may join,
// ranked by descending matching-connection count. Groups the user already
// belongs to are excluded.
func (s *EligibilityService) DiscoverEligibleGroups(ctx context.Context, key string) ([]domain.GroupCandidate, error) {
	if err := requireKey("user key", key); err != nil {
		return nil, err
	}

	exclude, err := s.store.CurrentGroups(ctx, key)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.EligibleCandidates(ctx, key, exclude)
	if err != nil {
		return nil, err
	}
	return domain.RankEligible(candidates), nil
}

// EligibleGroupsFor returns the user's eligible-group list, recomputing it
// only once the cached list is older than the recheck interval. The cached
// copy and its timestamp live on the user record.
func (s *EligibilityService) EligibleGroupsFor(ctx context.Context, user domain.User) ([]string, error) {
	now := s.nowFn()
	age := now.Sub(time.UnixMilli(user.EligibleTimestamp))
	if user.EligibleTimestamp > 0 && age < s.recheckInterval {
		return user.EligibleGroups, nil
	}

	candidates, err := s.DiscoverEligibleGroups(ctx, user.Key)
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, len(candidates))
	for _, c := range candidates {
		groups = append(groups, c.GroupID)
	}

	if err := s.store.SetEligibleGroups(ctx, user.Key, groups, now.UnixMilli()); err != nil {
		// Losing the cache write is tolerable; serve the fresh result.
		s.logger.Warn("caching eligible groups failed", "key", user.Key, "error", err)
	}
	return groups, nil
}
