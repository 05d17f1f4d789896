package ports

import (
	"context"

	"github.com/aretw0/raysim/pkg/domain"
)

// RunLedger persists records of served simulation requests.
type RunLedger interface {
	// Put creates or replaces the record with the record's ID.
	Put(ctx context.Context, record domain.RunRecord) error

	// Get returns the record for id.
	// Returns domain.ErrRunNotFound if the record does not exist.
	Get(ctx context.Context, id string) (domain.RunRecord, error)

	// List returns the known records, most recently started first.
	List(ctx context.Context) ([]domain.RunRecord, error)

	// Delete removes the record for id.
	Delete(ctx context.Context, id string) error
}
