package org

import (
	"context"
	"database/sql"
)

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed organization store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, o *Organization) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, industry, timezone, currency, website, address,
			phone, description, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.Name, string(o.Industry), o.Timezone, string(o.Currency),
		o.Website, o.Address, o.Phone, o.Description, nullIfEmpty(o.StripeCustomerID),
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, industry, timezone, currency, website, address,
			phone, description, stripe_customer_id, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, o *Organization) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE organizations SET name = $1, industry = $2, timezone = $3, currency = $4,
			website = $5, address = $6, phone = $7, description = $8,
			stripe_customer_id = $9, updated_at = $10
		WHERE id = $11`,
		o.Name, string(o.Industry), o.Timezone, string(o.Currency),
		o.Website, o.Address, o.Phone, o.Description,
		nullIfEmpty(o.StripeCustomerID), o.UpdatedAt, o.ID,
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

func (p *PostgresStore) scanOrg(row *sql.Row) (*Organization, error) {
	o := &Organization{}
	var (
		industry, currency string
		stripeID           sql.NullString
	)
	err := row.Scan(&o.ID, &o.Name, &industry, &o.Timezone, &currency,
		&o.Website, &o.Address, &o.Phone, &o.Description, &stripeID,
		&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Industry = Industry(industry)
	o.Currency = Currency(currency)
	if stripeID.Valid {
		o.StripeCustomerID = stripeID.String
	}
	return o, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*PostgresStore)(nil)
