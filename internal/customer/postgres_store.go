package customer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// PostgresStore persists customers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed customer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const customerColumns = `id, organization_id, name, email, status, region,
	signup_date, last_active_at, created_at, updated_at`

// sortColumns maps API sort keys to columns; anything else falls back to
// signup_date to keep ORDER BY injection-proof.
var sortColumns = map[string]string{
	"signupDate":   "signup_date",
	"lastActiveAt": "last_active_at",
	"name":         "name",
	"email":        "email",
	"status":       "status",
	"region":       "region",
	"createdAt":    "created_at",
}

func (p *PostgresStore) Create(ctx context.Context, c *Customer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO customers (id, organization_id, name, email, status, region,
			signup_date, last_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.OrganizationID, c.Name, c.Email, string(c.Status), c.Region,
		c.SignupDate, c.LastActiveAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, orgID, id string) (*Customer, error) {
	return scanCustomer(p.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers WHERE id = $1 AND organization_id = $2`, id, orgID))
}

func (p *PostgresStore) Update(ctx context.Context, c *Customer) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE customers SET name = $1, email = $2, status = $3, region = $4,
			last_active_at = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8`,
		c.Name, c.Email, string(c.Status), c.Region,
		c.LastActiveAt, c.UpdatedAt, c.ID, c.OrganizationID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter, pg pagination.Params) ([]*Customer, int64, error) {
	where := " WHERE organization_id = $1"
	args := []any{orgID}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Region != "" {
		args = append(args, f.Region)
		where += fmt.Sprintf(" AND region = $%d", len(args))
	}

	var total int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "signup_date"
	}
	direction := "DESC"
	if f.SortOrder == "asc" {
		direction = "ASC"
	}

	args = append(args, pg.PageSize, pg.Offset())
	query := fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		customerColumns, where, column, direction, len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var customers []*Customer
	for rows.Next() {
		c, err := scanCustomerRows(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (p *PostgresStore) TouchLastActive(ctx context.Context, orgID, id string, t time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE customers SET last_active_at = $1, updated_at = $1
		WHERE id = $2 AND organization_id = $3`, t, id, orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Count(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers WHERE organization_id = $1`, orgID).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountActiveSince(ctx context.Context, orgID string, since time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers
		WHERE organization_id = $1 AND last_active_at >= $2`, orgID, since).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountSignedUpBefore(ctx context.Context, orgID string, before time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers
		WHERE organization_id = $1 AND signup_date <= $2`, orgID, before).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountActiveBetween(ctx context.Context, orgID string, from, to time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers
		WHERE organization_id = $1 AND last_active_at >= $2 AND last_active_at <= $3`,
		orgID, from, to).Scan(&count)
	return count, err
}

func (p *PostgresStore) SignupSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT to_char(signup_date AT TIME ZONE 'UTC', `+bucketFormat(groupBy)+`) AS bucket, COUNT(*)
		FROM customers
		WHERE organization_id = $1 AND signup_date >= $2 AND signup_date <= $3
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

func (p *PostgresStore) Cohorts(ctx context.Context, orgID string, activeSince time.Time) ([]Cohort, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT to_char(signup_date AT TIME ZONE 'UTC', 'YYYY-MM') AS cohort,
			COUNT(*),
			COUNT(*) FILTER (WHERE last_active_at >= $2)
		FROM customers
		WHERE organization_id = $1
		GROUP BY cohort
		ORDER BY cohort`, orgID, activeSince)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cohorts []Cohort
	for rows.Next() {
		var c Cohort
		if err := rows.Scan(&c.Month, &c.SignedUp, &c.Returning); err != nil {
			return nil, err
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}

// bucketFormat returns the to_char format literal for a validated groupBy.
// Callers validate groupBy at the API boundary; this defaults to day.
func bucketFormat(groupBy string) string {
	if groupBy == "month" {
		return `'YYYY-MM'`
	}
	return `'YYYY-MM-DD'`
}

func scanCustomer(row *sql.Row) (*Customer, error) {
	c := &Customer{}
	var status string
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email, &status, &c.Region,
		&c.SignupDate, &c.LastActiveAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return c, nil
}

func scanCustomerRows(rows *sql.Rows) (*Customer, error) {
	c := &Customer{}
	var status string
	err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email, &status, &c.Region,
		&c.SignupDate, &c.LastActiveAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return c, nil
}

var _ Store = (*PostgresStore)(nil)
