package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// PostgresStore persists transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (id, organization_id, customer_id, subscription_id,
			amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.OrganizationID, t.CustomerID, t.SubscriptionID,
		t.Amount, t.Currency, string(t.Status), t.CreatedAt,
	)
	return err
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter, pg pagination.Params) ([]*Transaction, int64, error) {
	where := " WHERE organization_id = $1"
	args := []any{orgID}

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.SubscriptionID != "" {
		args = append(args, f.SubscriptionID)
		where += fmt.Sprintf(" AND subscription_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, pg.PageSize, pg.Offset())
	query := fmt.Sprintf(`
		SELECT id, organization_id, customer_id, subscription_id, amount, currency, status, created_at
		FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var txns []*Transaction
	for rows.Next() {
		t := &Transaction{}
		var status string
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.CustomerID, &t.SubscriptionID,
			&t.Amount, &t.Currency, &status, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		t.Status = Status(status)
		txns = append(txns, t)
	}
	return txns, total, rows.Err()
}

func (p *PostgresStore) SumSucceededBetween(ctx context.Context, orgID string, from, to time.Time) (float64, error) {
	var sum float64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE organization_id = $1 AND status = 'success'
		AND created_at >= $2 AND created_at <= $3`, orgID, from, to).Scan(&sum)
	return sum, err
}

func (p *PostgresStore) RevenueSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	format := `'YYYY-MM-DD'`
	if groupBy == "month" {
		format = `'YYYY-MM'`
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', `+format+`) AS bucket, SUM(amount)
		FROM transactions
		WHERE organization_id = $1 AND status = 'success'
		AND created_at >= $2 AND created_at <= $3
		GROUP BY bucket`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	series := make(map[string]float64)
	for rows.Next() {
		var bucket string
		var sum float64
		if err := rows.Scan(&bucket, &sum); err != nil {
			return nil, err
		}
		series[bucket] = sum
	}
	return series, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
