package service

import (
	"context"
	"log/slog"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// IdentityStore is the storage contract required by the identity linking
// ledger.
type IdentityStore interface {
	LinkAccount(ctx context.Context, key, contextID, accountID string, timestamp int64) error
	ContextLinks(ctx context.Context, contextID string) ([]domain.AccountLink, error)
}

// IdentityService manages per-context account links. Linking is append-only
// and history is never deleted; the service only ever reports which old
// account ids are safe for an application to revoke.
type IdentityService struct {
	store  IdentityStore
	logger *slog.Logger
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(store IdentityStore, logger *slog.Logger) *IdentityService {
	return &IdentityService{store: store, logger: logger}
}

// LinkAccount records a new account link for the user within the context.
func (s *IdentityService) LinkAccount(ctx context.Context, key, contextID, accountID string, timestamp int64) error {
	if err := requireKey("user key", key); err != nil {
		return err
	}
	if err := requireKey("context id", contextID); err != nil {
		return err
	}
	if err := requireKey("account id", accountID); err != nil {
		return err
	}
	if err := requireTimestamp(timestamp); err != nil {
		return err
	}
	return s.store.LinkAccount(ctx, key, contextID, accountID, timestamp)
}

// RevocableLinks lists the user's superseded account ids within the context
// that no other user currently relies on.
func (s *IdentityService) RevocableLinks(ctx context.Context, key, contextID string) ([]string, error) {
	if err := requireKey("user key", key); err != nil {
		return nil, err
	}
	if err := requireKey("context id", contextID); err != nil {
		return nil, err
	}

	links, err := s.store.ContextLinks(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return domain.RevocableAccountIDs(key, links), nil
}
