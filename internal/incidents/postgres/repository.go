// Package postgres provides PostgreSQL implementation of incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const incidentColumns = `
	id, title, description, priority, status,
	created_at, updated_at, resolved_at, resolved_by, resolution_notes`

// scanner is implemented by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateIncident inserts the incident and its created event in one transaction.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident, event *domain.TimelineEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `
		INSERT INTO incidents (
			id, title, description, priority, status,
			created_at, updated_at, resolved_at, resolved_by, resolution_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, query,
		incident.ID,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.Status,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
		incident.ResolvedBy,
		incident.ResolutionNotes,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}

	if err := appendEvents(ctx, tx, []*domain.TimelineEvent{event}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, id)
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, id)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents retrieves incidents matching the filter.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.ActiveOnly {
		query += fmt.Sprintf(" AND status <> $%d", argNum)
		args = append(args, domain.StatusResolved)
		argNum++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.ResolvedSince != nil {
		query += fmt.Sprintf(" AND resolved_at >= $%d", argNum)
		args = append(args, *filter.ResolvedSince)
		argNum++
	}

	if filter.OrdersByResolution() {
		query += " ORDER BY resolved_at DESC, created_at DESC, id"
	} else {
		query += " ORDER BY created_at DESC, id"
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return result, nil
}

// CountIncidents returns the number of stored incidents.
func (r *Repository) CountIncidents(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}

// UpdateIncident stores the new incident state and appends events in one transaction.
// The row is locked first so concurrent updates of one incident serialize.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident, from domain.Status, events []*domain.TimelineEvent) error {
	if _, err := uuid.Parse(incident.ID); err != nil {
		return fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, incident.ID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	var stored domain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM incidents WHERE id = $1 FOR UPDATE`, incident.ID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, incident.ID)
	}
	if err != nil {
		return fmt.Errorf("lock incident: %w", err)
	}
	if stored != from {
		return incidents.StaleStatusError(incident.ID, from, stored)
	}

	query := `
		UPDATE incidents
		SET title = $2, description = $3, priority = $4, status = $5, updated_at = $6,
		    resolved_at = $7, resolved_by = $8, resolution_notes = $9
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		incident.ID,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.Status,
		incident.UpdatedAt,
		incident.ResolvedAt,
		incident.ResolvedBy,
		incident.ResolutionNotes,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, incident.ID)
	}

	if err := appendEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListTimeline returns the incident's events in append order.
func (r *Repository) ListTimeline(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	if _, err := uuid.Parse(incidentID); err != nil {
		return make([]*domain.TimelineEvent, 0), nil
	}
	query := `
		SELECT seq, id, incident_id, event_type, old_value, new_value, note, created_at
		FROM incident_timeline
		WHERE incident_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.TimelineEvent, 0)
	for rows.Next() {
		var e domain.TimelineEvent
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&e.IncidentID,
			&e.Type,
			&e.OldValue,
			&e.NewValue,
			&e.Note,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}

	return events, nil
}

// appendEvents inserts events in slice order and writes the assigned seq back.
func appendEvents(ctx context.Context, tx pgx.Tx, events []*domain.TimelineEvent) error {
	query := `
		INSERT INTO incident_timeline (id, incident_id, event_type, old_value, new_value, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	for _, e := range events {
		err := tx.QueryRow(ctx, query,
			e.ID,
			e.IncidentID,
			e.Type,
			e.OldValue,
			e.NewValue,
			e.Note,
			e.CreatedAt,
		).Scan(&e.Seq)
		if err != nil {
			return fmt.Errorf("append %s event: %w", e.Type, err)
		}
	}
	return nil
}

func scanIncident(row scanner) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Priority,
		&incident.Status,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
		&incident.ResolvedBy,
		&incident.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	incident.CreatedAt = incident.CreatedAt.UTC()
	incident.UpdatedAt = incident.UpdatedAt.UTC()
	if incident.ResolvedAt != nil {
		t := incident.ResolvedAt.UTC()
		incident.ResolvedAt = &t
	}
	return &incident, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
