// Package store persists agreements with optimistic versioning.
package store

import (
	"context"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

// AgreementStore holds the committed state of every agreement.
//
// Save succeeds only when the stored version equals ag.Version; it then
// stores the agreement with the version incremented and updates
// ag.Version. A mismatch fails with ErrConcurrentModification.
type AgreementStore interface {
	Create(ctx context.Context, ag *model.Agreement) error
	Get(ctx context.Context, id uuid.UUID) (*model.Agreement, error)
	Save(ctx context.Context, ag *model.Agreement) error
	List(ctx context.Context) ([]*model.Agreement, error)
	Close() error
}

func notFound(id uuid.UUID) error {
	return model.ErrAgreementNotFound.Wrap(id.String())
}

func conflict(id uuid.UUID, expected uint64) error {
	return model.ErrConcurrentModification.Wrapf("agreement %s is no longer at version %d", id, expected)
}
