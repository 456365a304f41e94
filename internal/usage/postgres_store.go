package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists usage events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed usage event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, e *Event) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, organization_id, customer_id, event_type,
			feature, session_duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrganizationID, e.CustomerID, string(e.EventType),
		e.Feature, e.SessionDuration, e.CreatedAt,
	)
	return err
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Event, error) {
	query := `
		SELECT id, organization_id, customer_id, event_type, feature, session_duration, created_at
		FROM usage_events WHERE organization_id = $1`
	args := []any{orgID}

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.EventType != "" {
		args = append(args, string(f.EventType))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if f.Feature != "" {
		args = append(args, f.Feature)
		query += fmt.Sprintf(" AND feature = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", MaxListResults)

	return p.queryEvents(ctx, query, args...)
}

func (p *PostgresStore) RecentByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*Event, error) {
	return p.queryEvents(ctx, `
		SELECT id, organization_id, customer_id, event_type, feature, session_duration, created_at
		FROM usage_events WHERE organization_id = $1 AND customer_id = $2
		ORDER BY created_at DESC LIMIT $3`, orgID, customerID, limit)
}

func (p *PostgresStore) SessionSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	format := `'YYYY-MM-DD'`
	if groupBy == "month" {
		format = `'YYYY-MM'`
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', `+format+`) AS bucket, COUNT(*)
		FROM usage_events
		WHERE organization_id = $1 AND event_type = 'session'
		AND created_at >= $2 AND created_at <= $3
		GROUP BY bucket`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	series := make(map[string]float64)
	for rows.Next() {
		var bucket string
		var count float64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		series[bucket] = count
	}
	return series, rows.Err()
}

func (p *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var eventType string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.CustomerID, &eventType,
			&e.Feature, &e.SessionDuration, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
