package db

import (
	"context"

	"eventline/internal/types"
)

// StatusRepository persists lifecycle status changes. It satisfies the
// scheduler's StatusApplier interface.
type StatusRepository struct {
	db DBTX
}

// NewStatusRepository creates a StatusRepository backed by the given database
// connection (pool or transaction).
func NewStatusRepository(db DBTX) *StatusRepository {
	return &StatusRepository{db: db}
}

// Apply writes the event's (category, sub_status) pair. The write is
// idempotent: applying a state the row already holds succeeds and changes
// nothing observable except updated_at.
func (r *StatusRepository) Apply(ctx context.Context, eventID string, category types.StatusCategory, subStatus types.SubStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET category = $2, sub_status = $3, updated_at = NOW()
		 WHERE id = $1`,
		eventID,
		string(category),
		string(subStatus),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
	}
	return nil
}
