// Package analytics computes dashboard metrics across customers,
// subscriptions, transactions, and usage events. It is read-only: all
// numbers are derived from the underlying stores at request time.
package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/traces"
	"github.com/pulseboard/pulseboard/internal/usage"
)

// Errors
var (
	ErrUnknownMetric  = errors.New("analytics: unknown metric")
	ErrUnknownGroupBy = errors.New("analytics: unknown groupBy")
)

// activeWindow is how far back lastActiveAt may be for a customer to count
// as active.
const activeWindow = 7 * 24 * time.Hour

// Overview is the dashboard headline block.
type Overview struct {
	TotalUsers     int64   `json:"totalUsers"`
	ActiveUsers    int64   `json:"activeUsers"`
	MRR            float64 `json:"mrr"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	ConversionRate float64 `json:"conversionRate"`
}

// Point is one bucket of a trend series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// CohortRetention is one signup-month cohort with its retention rate.
type CohortRetention struct {
	Month         string  `json:"month"`
	SignedUp      int64   `json:"signedUp"`
	Returning     int64   `json:"returning"`
	RetentionRate float64 `json:"retentionRate"`
}

// Service computes analytics for one organization at a time.
type Service struct {
	customers customer.Store
	subs      subscription.Store
	txns      ledger.Store
	events    usage.Store
}

// NewService creates an analytics service over the domain stores.
func NewService(customers customer.Store, subs subscription.Store, txns ledger.Store, events usage.Store) *Service {
	return &Service{customers: customers, subs: subs, txns: txns, events: events}
}

// Overview returns the headline metrics. Revenue is summed over [from, to];
// active users always use the fixed trailing window regardless of the range.
func (s *Service) Overview(ctx context.Context, orgID string, from, to time.Time) (*Overview, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.Overview", traces.OrgID(orgID))
	defer span.End()

	total, err := s.customers.Count(ctx, orgID)
	if err != nil {
		return nil, err
	}
	active, err := s.customers.CountActiveSince(ctx, orgID, time.Now().Add(-activeWindow))
	if err != nil {
		return nil, err
	}
	mrr, err := s.subs.SumActiveMonthlyPrice(ctx, orgID)
	if err != nil {
		return nil, err
	}
	revenue, err := s.txns.SumSucceededBetween(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}
	paid, err := s.subs.CountDistinctPaidCustomers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var conversion float64
	if total > 0 {
		conversion = round2(float64(paid) / float64(total))
	}

	return &Overview{
		TotalUsers:     total,
		ActiveUsers:    active,
		MRR:            round2(mrr),
		MonthlyRevenue: round2(revenue),
		ConversionRate: conversion,
	}, nil
}

// Trends returns a time series for one metric bucketed by day or month.
// Buckets with no data are absent rather than zero-filled.
func (s *Service) Trends(ctx context.Context, orgID, metric, groupBy string, from, to time.Time) ([]Point, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.Trends", traces.OrgID(orgID))
	defer span.End()

	if groupBy != "day" && groupBy != "month" {
		return nil, ErrUnknownGroupBy
	}

	var (
		series map[string]float64
		err    error
	)
	switch metric {
	case "users":
		series, err = s.customers.SignupSeries(ctx, orgID, groupBy, from, to)
	case "revenue":
		series, err = s.txns.RevenueSeries(ctx, orgID, groupBy, from, to)
	case "sessions":
		series, err = s.events.SessionSeries(ctx, orgID, groupBy, from, to)
	default:
		return nil, ErrUnknownMetric
	}
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(series))
	for date, value := range series {
		points = append(points, Point{Date: date, Value: round2(value)})
	}
	// Bucket keys are zero-padded dates, so lexicographic order is
	// chronological order.
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// Retention groups customers by signup month and reports how many were
// active within the trailing window.
func (s *Service) Retention(ctx context.Context, orgID string) ([]CohortRetention, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.Retention", traces.OrgID(orgID))
	defer span.End()

	cohorts, err := s.customers.Cohorts(ctx, orgID, time.Now().Add(-activeWindow))
	if err != nil {
		return nil, err
	}

	out := make([]CohortRetention, len(cohorts))
	for i, c := range cohorts {
		var rate float64
		if c.SignedUp > 0 {
			rate = round2(float64(c.Returning) / float64(c.SignedUp))
		}
		out[i] = CohortRetention{
			Month:         c.Month,
			SignedUp:      c.SignedUp,
			Returning:     c.Returning,
			RetentionRate: rate,
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
