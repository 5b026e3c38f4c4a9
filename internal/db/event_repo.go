package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"eventline/internal/types"
)

// eventColumns is the canonical column list scanned into a types.Event.
const eventColumns = `id, name, description,
	registration_start, registration_end, start_time, end_time, certificate_deadline,
	category, sub_status, created_at, updated_at`

// EventRepository provides data access for the events table. It satisfies the
// scheduler's EventSource interface and the events API's CRUD needs.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates an EventRepository backed by the given database
// connection (pool or transaction).
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. The initial lifecycle state is the implicit
// pre-registration state; the scheduler's rebuild advances it immediately if
// any timestamp is already in the past.
func (r *EventRepository) Create(ctx context.Context, ev *types.Event) error {
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Category == "" {
		ev.Category = types.CategoryUpcoming
	}
	if ev.SubStatus == "" {
		ev.SubStatus = types.SubStatusNotYetOpen
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events
		 (id, name, description,
		  registration_start, registration_end, start_time, end_time, certificate_deadline,
		  category, sub_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.ID,
		ev.Name,
		ev.Description,
		ev.RegistrationStart,
		ev.RegistrationEnd,
		ev.StartTime,
		ev.EndTime,
		ev.CertificateDeadline,
		string(ev.Category),
		string(ev.SubStatus),
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create event", err)
	}
	return nil
}

// GetEvent returns one event, or (nil, nil) when it does not exist. This is
// the not-found convention the scheduler's EventSource expects.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query event", err)
	}
	return ev, nil
}

// ListEventsWithLifecycleFields returns every event with its lifecycle
// timestamps and current status, ordered by creation time. Used by the
// scheduler's startup rebuild.
func (r *EventRepository) ListEventsWithLifecycleFields(ctx context.Context) ([]*types.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list events", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating events", err)
	}
	return events, nil
}

// Update persists the event's mutable fields (name, description, lifecycle
// timestamps). The (category, sub_status) pair is deliberately excluded: it
// is written only through the StatusRepository.
func (r *EventRepository) Update(ctx context.Context, ev *types.Event) error {
	ev.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET name = $2, description = $3,
		     registration_start = $4, registration_end = $5,
		     start_time = $6, end_time = $7, certificate_deadline = $8,
		     updated_at = $9
		 WHERE id = $1`,
		ev.ID,
		ev.Name,
		ev.Description,
		ev.RegistrationStart,
		ev.RegistrationEnd,
		ev.StartTime,
		ev.EndTime,
		ev.CertificateDeadline,
		ev.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
	}
	return nil
}

// Delete removes an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
	}
	return nil
}

// scanEvent scans one row into a types.Event. Works for both pgx.Row and
// pgx.Rows.
func scanEvent(row pgx.Row) (*types.Event, error) {
	var (
		ev       types.Event
		category string
		sub      string
	)
	err := row.Scan(
		&ev.ID,
		&ev.Name,
		&ev.Description,
		&ev.RegistrationStart,
		&ev.RegistrationEnd,
		&ev.StartTime,
		&ev.EndTime,
		&ev.CertificateDeadline,
		&category,
		&sub,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Category = types.StatusCategory(category)
	ev.SubStatus = types.SubStatus(sub)
	return &ev, nil
}
