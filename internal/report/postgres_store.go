package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists reports in PostgreSQL. Summary is stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed report store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, r *Report) error {
	summary, err := marshalSummary(r.Summary)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO reports (id, organization_id, type, status, period_start, period_end,
			summary, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.OrganizationID, string(r.Type), string(r.Status),
		r.PeriodStart, r.PeriodEnd, summary, r.CreatedAt, r.CompletedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orgID, id string) (*Report, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, organization_id, type, status, period_start, period_end,
			summary, created_at, completed_at
		FROM reports WHERE organization_id = $1 AND id = $2`, orgID, id)
	return scanReport(row)
}

func (p *PostgresStore) Update(ctx context.Context, r *Report) error {
	summary, err := marshalSummary(r.Summary)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE reports SET status = $3, summary = $4, completed_at = $5
		WHERE organization_id = $1 AND id = $2`,
		r.OrganizationID, r.ID, string(r.Status), summary, r.CompletedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Report, error) {
	where := " WHERE organization_id = $1"
	args := []any{orgID}

	if f.Type != "" {
		args = append(args, string(f.Type))
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, type, status, period_start, period_end,
			summary, created_at, completed_at
		FROM reports`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reports []*Report
	for rows.Next() {
		r, err := scanReportRows(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func marshalSummary(s *Summary) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func scanReport(row *sql.Row) (*Report, error) {
	r := &Report{}
	var typ, status string
	var summary []byte
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.OrganizationID, &typ, &status,
		&r.PeriodStart, &r.PeriodEnd, &summary, &r.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return finishReport(r, typ, status, summary, completedAt)
}

func scanReportRows(rows *sql.Rows) (*Report, error) {
	r := &Report{}
	var typ, status string
	var summary []byte
	var completedAt sql.NullTime
	if err := rows.Scan(&r.ID, &r.OrganizationID, &typ, &status,
		&r.PeriodStart, &r.PeriodEnd, &summary, &r.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	return finishReport(r, typ, status, summary, completedAt)
}

func finishReport(r *Report, typ, status string, summary []byte, completedAt sql.NullTime) (*Report, error) {
	r.Type = Type(typ)
	r.Status = Status(status)
	if len(summary) > 0 {
		r.Summary = &Summary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return nil, err
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return r, nil
}

var _ Store = (*PostgresStore)(nil)
