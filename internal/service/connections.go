package service

import (
	"context"
	"log/slog"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// ConnectionStore is the storage contract required by the connection ledger.
type ConnectionStore interface {
	ReplaceConnection(ctx context.Context, a, b string, kind domain.ConnectionKind, timestamp int64) (bool, error)
	ConnectionsOf(ctx context.Context, key string) ([]string, error)
}

// ConnectionService is the connection ledger: a last-writer-wins register
// per unordered user pair, with the edge kind as the register's value.
type ConnectionService struct {
	store   ConnectionStore
	logger  *slog.Logger
	metrics Collector
}

// NewConnectionService constructs a ConnectionService.
func NewConnectionService(store ConnectionStore, logger *slog.Logger, metrics Collector) *ConnectionService {
	return &ConnectionService{
		store:   store,
		logger:  logger,
		metrics: orNoop(metrics),
	}
}

// AddConnection records a connection claim between two users. A claim older
// than the pair's newest record loses arbitration and succeeds as a no-op.
func (s *ConnectionService) AddConnection(ctx context.Context, a, b string, timestamp int64) error {
	return s.write(ctx, "addConnection", a, b, domain.KindConnected, timestamp)
}

// RemoveConnection records a removal claim between two users under the same
// arbitration rule as AddConnection.
func (s *ConnectionService) RemoveConnection(ctx context.Context, a, b string, timestamp int64) error {
	return s.write(ctx, "removeConnection", a, b, domain.KindRemoved, timestamp)
}

func (s *ConnectionService) write(ctx context.Context, op, a, b string, kind domain.ConnectionKind, timestamp int64) error {
	if err := requireKey("first user key", a); err != nil {
		return err
	}
	if err := requireKey("second user key", b); err != nil {
		return err
	}
	if a == b {
		return domain.Validationf(domain.CodeInvalidKey, "cannot connect a user to itself")
	}
	if err := requireTimestamp(timestamp); err != nil {
		return err
	}

	applied, err := s.store.ReplaceConnection(ctx, a, b, kind, timestamp)
	if err != nil {
		s.metrics.RecordOperation(op, OutcomeError)
		return err
	}
	if !applied {
		s.metrics.RecordArbitrationNoOp(string(kind))
		s.metrics.RecordOperation(op, OutcomeNoOp)
		s.logger.Debug("stale pair write dropped",
			"kind", kind, "a", a, "b", b, "timestamp", timestamp)
		return nil
	}
	s.metrics.RecordOperation(op, OutcomeApplied)
	return nil
}

// ConnectionsOf returns the user's current connection set.
func (s *ConnectionService) ConnectionsOf(ctx context.Context, key string) ([]string, error) {
	if err := requireKey("user key", key); err != nil {
		return nil, err
	}
	return s.store.ConnectionsOf(ctx, key)
}
