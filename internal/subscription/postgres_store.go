package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subscriptionColumns = `id, organization_id, customer_id, plan, price_per_month, status,
	start_date, end_date, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, organization_id, customer_id, plan, price_per_month,
			status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.OrganizationID, s.CustomerID, string(s.Plan), s.PricePerMonth,
		string(s.Status), s.StartDate, s.EndDate, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orgID, id string) (*Subscription, error) {
	return scanSubscription(p.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = $1 AND organization_id = $2`, id, orgID))
}

func (p *PostgresStore) Update(ctx context.Context, s *Subscription) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET plan = $1, price_per_month = $2, status = $3,
			start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8`,
		string(s.Plan), s.PricePerMonth, string(s.Status),
		s.StartDate, s.EndDate, s.UpdatedAt, s.ID, s.OrganizationID,
	)
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

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE organization_id = $1`
	args := []any{orgID}

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Plan != "" {
		args = append(args, string(f.Plan))
		query += fmt.Sprintf(" AND plan = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	return p.querySubscriptions(ctx, query, args...)
}

func (p *PostgresStore) ListByCustomer(ctx context.Context, orgID, customerID string) ([]*Subscription, error) {
	return p.querySubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE organization_id = $1 AND customer_id = $2
		ORDER BY created_at DESC`, orgID, customerID)
}

func (p *PostgresStore) FindActiveByCustomer(ctx context.Context, orgID, customerID string) (*Subscription, error) {
	s, err := scanSubscription(p.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE organization_id = $1 AND customer_id = $2 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`, orgID, customerID))
	if err == ErrNotFound {
		return nil, nil
	}
	return s, err
}

func (p *PostgresStore) CancelActiveByCustomer(ctx context.Context, orgID, customerID string, endDate time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', end_date = $1, updated_at = $1
		WHERE organization_id = $2 AND customer_id = $3 AND status = 'active'`,
		endDate, orgID, customerID,
	)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func (p *PostgresStore) ReplaceActive(ctx context.Context, orgID, customerID string, newSub *Subscription) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := newSub.StartDate
	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', end_date = $1, updated_at = $1
		WHERE organization_id = $2 AND customer_id = $3 AND status = 'active'`,
		now, orgID, customerID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, organization_id, customer_id, plan, price_per_month,
			status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		newSub.ID, newSub.OrganizationID, newSub.CustomerID, string(newSub.Plan),
		newSub.PricePerMonth, string(newSub.Status), newSub.StartDate, newSub.EndDate,
		newSub.CreatedAt, newSub.UpdatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *PostgresStore) ActivePlansByCustomer(ctx context.Context, orgID string, customerIDs []string) (map[string]Plan, error) {
	plans := make(map[string]Plan)
	if len(customerIDs) == 0 {
		return plans, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT customer_id, plan FROM subscriptions
		WHERE organization_id = $1 AND status = 'active' AND customer_id = ANY($2)`,
		orgID, pq.Array(customerIDs),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var customerID, plan string
		if err := rows.Scan(&customerID, &plan); err != nil {
			return nil, err
		}
		plans[customerID] = Plan(plan)
	}
	return plans, rows.Err()
}

func (p *PostgresStore) SumActiveMonthlyPrice(ctx context.Context, orgID string) (float64, error) {
	var sum float64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(price_per_month), 0) FROM subscriptions
		WHERE organization_id = $1 AND status = 'active'`, orgID).Scan(&sum)
	return sum, err
}

func (p *PostgresStore) CountDistinctPaidCustomers(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT customer_id) FROM subscriptions
		WHERE organization_id = $1 AND status = 'active' AND price_per_month > 0`, orgID).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountCancelledBetween(ctx context.Context, orgID string, from, to time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscriptions
		WHERE organization_id = $1 AND status = 'cancelled'
		AND end_date >= $2 AND end_date <= $3`, orgID, from, to).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountAll(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscriptions WHERE organization_id = $1`, orgID).Scan(&count)
	return count, err
}

func (p *PostgresStore) querySubscriptions(ctx context.Context, query string, args ...any) ([]*Subscription, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSubscriptionRows(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func scanSubscription(row *sql.Row) (*Subscription, error) {
	s := &Subscription{}
	var (
		plan, status string
		endDate      sql.NullTime
	)
	err := row.Scan(&s.ID, &s.OrganizationID, &s.CustomerID, &plan, &s.PricePerMonth,
		&status, &s.StartDate, &endDate, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Plan = Plan(plan)
	s.Status = Status(status)
	if endDate.Valid {
		t := endDate.Time.UTC()
		s.EndDate = &t
	}
	return s, nil
}

func scanSubscriptionRows(rows *sql.Rows) (*Subscription, error) {
	s := &Subscription{}
	var (
		plan, status string
		endDate      sql.NullTime
	)
	err := rows.Scan(&s.ID, &s.OrganizationID, &s.CustomerID, &plan, &s.PricePerMonth,
		&status, &s.StartDate, &endDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Plan = Plan(plan)
	s.Status = Status(status)
	if endDate.Valid {
		t := endDate.Time.UTC()
		s.EndDate = &t
	}
	return s, nil
}

var _ Store = (*PostgresStore)(nil)
