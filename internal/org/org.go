// Package org provides the organization (tenant) entity for the Pulseboard platform.
package org

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("org: not found")
)

// Industry identifies the organization's business vertical.
type Industry string

const (
	IndustrySaaS      Industry = "SaaS"
	IndustryEcommerce Industry = "Ecommerce"
	IndustryFintech   Industry = "Fintech"
)

// ValidIndustry reports whether ind is a known industry.
func ValidIndustry(ind Industry) bool {
	switch ind {
	case IndustrySaaS, IndustryEcommerce, IndustryFintech:
		return true
	}
	return false
}

// Currency identifies the organization's reporting currency.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyINR Currency = "INR"
)

// ValidCurrency reports whether cur is a known currency.
func ValidCurrency(cur Currency) bool {
	switch cur {
	case CurrencyUSD, CurrencyEUR, CurrencyINR:
		return true
	}
	return false
}

// Organization is the tenant boundary. Every other entity carries its ID.
type Organization struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Industry         Industry  `json:"industry"`
	Timezone         string    `json:"timezone"`
	Currency         Currency  `json:"currency"`
	Website          string    `json:"website,omitempty"`
	Address          string    `json:"address,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Description      string    `json:"description,omitempty"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
