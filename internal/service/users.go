package service

import (
	"context"
	"log/slog"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// UserStore is the storage contract required by the user read-model.
type UserStore interface {
	EnsureUser(ctx context.Context, key string, timestamp int64) error
	GetUser(ctx context.Context, key string) (domain.User, error)
	CurrentGroups(ctx context.Context, key string) ([]string, error)
}

// UserService serves the read-only user surface exposed to the request
// layer and handles first registration.
type UserService struct {
	store       UserStore
	eligibility *EligibilityService
	logger      *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store UserStore, eligibility *EligibilityService, logger *slog.Logger) *UserService {
	return &UserService{
		store:       store,
		eligibility: eligibility,
		logger:      logger,
	}
}

// Register creates the user on first sight; repeated registrations are
// no-ops.
func (s *UserService) Register(ctx context.Context, key string, timestamp int64) error {
	if err := requireKey("user key", key); err != nil {
		return err
	}
	if err := requireTimestamp(timestamp); err != nil {
		return err
	}
	return s.store.EnsureUser(ctx, key, timestamp)
}

// GetUser fetches a user record.
func (s *UserService) GetUser(ctx context.Context, key string) (domain.User, error) {
	if err := requireKey("user key", key); err != nil {
		return domain.User{}, err
	}
	return s.store.GetUser(ctx, key)
}

// GetUserSummary assembles the score, current groups, and eligible groups
// of a user. Eligible groups come from the eligibility engine's cached
// discovery.
func (s *UserService) GetUserSummary(ctx context.Context, key string) (domain.UserSummary, error) {
	user, err := s.GetUser(ctx, key)
	if err != nil {
		return domain.UserSummary{}, err
	}

	current, err := s.store.CurrentGroups(ctx, key)
	if err != nil {
		return domain.UserSummary{}, err
	}
	eligible, err := s.eligibility.EligibleGroupsFor(ctx, user)
	if err != nil {
		return domain.UserSummary{}, err
	}

	return domain.UserSummary{
		Key:            user.Key,
		Score:          user.Score,
		CurrentGroups:  current,
		EligibleGroups: eligible,
	}, nil
}

// HasVerification reports whether the user carries the named verification.
func (s *UserService) HasVerification(ctx context.Context, key, name string) (bool, error) {
	if err := requireKey("user key", key); err != nil {
		return false, err
	}
	if err := requireKey("verification name", name); err != nil {
		return false, err
	}

	user, err := s.store.GetUser(ctx, key)
	if err != nil {
		return false, err
	}
	return user.HasVerification(name), nil
}
