package service

import (
	"context"
	"log/slog"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// SponsorshipStore is the storage contract required by the sponsorship
// ledger.
type SponsorshipStore interface {
	Sponsor(ctx context.Context, key, contextID string) error
	IsSponsored(ctx context.Context, key string) (bool, error)
	GetContext(ctx context.Context, contextID string) (domain.Context, error)
	UpsertContext(ctx context.Context, c domain.Context) error
}

// SponsorshipService accounts for per-context sponsorship capacity. There
// is no removal operation; slots are only ever spent.
type SponsorshipService struct {
	store   SponsorshipStore
	logger  *slog.Logger
	metrics Collector
}

// NewSponsorshipService constructs a SponsorshipService.
func NewSponsorshipService(store SponsorshipStore, logger *slog.Logger, metrics Collector) *SponsorshipService {
	return &SponsorshipService{
		store:   store,
		logger:  logger,
		metrics: orNoop(metrics),
	}
}

// Sponsor spends one of the context's sponsorship slots on the user, failing
// once the capacity is exhausted.
func (s *SponsorshipService) Sponsor(ctx context.Context, key, contextID string) error {
	if err := requireKey("user key", key); err != nil {
		return err
	}
	if err := requireKey("context id", contextID); err != nil {
		return err
	}

	if err := s.store.Sponsor(ctx, key, contextID); err != nil {
		s.metrics.RecordOperation("sponsor", outcomeFor(err))
		return err
	}
	s.metrics.RecordOperation("sponsor", OutcomeApplied)
	return nil
}

// IsSponsored reports whether any context sponsors the user.
func (s *SponsorshipService) IsSponsored(ctx context.Context, key string) (bool, error) {
	if err := requireKey("user key", key); err != nil {
		return false, err
	}
	return s.store.IsSponsored(ctx, key)
}

// GetContext fetches a context including its unused sponsorship slots.
func (s *SponsorshipService) GetContext(ctx context.Context, contextID string) (domain.Context, error) {
	if err := requireKey("context id", contextID); err != nil {
		return domain.Context{}, err
	}
	return s.store.GetContext(ctx, contextID)
}

// UpsertContext seeds or refreshes an application context.
func (s *SponsorshipService) UpsertContext(ctx context.Context, c domain.Context) error {
	if err := requireKey("context id", c.ID); err != nil {
		return err
	}
	if c.TotalSponsorships < 0 {
		return domain.Validationf(domain.CodeInvalidKey, "total sponsorships cannot be negative")
	}
	return s.store.UpsertContext(ctx, c)
}
