package service

import (
	"github.com/spsina/BrightID-Aura-Node/internal/domain"
)

// Collector is the metrics sink consumed by the engines. A nil collector is
// replaced with a no-op so services never have to guard their calls.
type Collector interface {
	RecordOperation(op string, outcome string)
	RecordArbitrationNoOp(kind string)
	RecordGroupPromotion()
}

type noopCollector struct{}

func (noopCollector) RecordOperation(string, string) {}
func (noopCollector) RecordArbitrationNoOp(string)   {}
func (noopCollector) RecordGroupPromotion()          {}

func orNoop(c Collector) Collector {
	if c == nil {
		return noopCollector{}
	}
	return c
}

// Operation outcomes reported to the collector.
const (
	OutcomeApplied  = "applied"
	OutcomeNoOp     = "noop"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

func requireKey(field, key string) error {
	if key == "" {
		return domain.Validationf(domain.CodeInvalidKey, "%s is required", field)
	}
	return nil
}

func requireTimestamp(timestamp int64) error {
	if timestamp <= 0 {
		return domain.Validationf(domain.CodeInvalidTimestamp, "timestamp must be positive")
	}
	return nil
}
