// Package report provides generated business reports for the Pulseboard
// platform. Generation runs in a background worker; the HTTP handlers only
// create pending rows and serve finished ones.
package report

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("report: not found")
)

// Type classifies the reporting period.
type Type string

const (
	TypeMonthly Type = "monthly"
	TypeYearly  Type = "yearly"
	TypeCustom  Type = "custom"
)

// ValidType reports whether t is a known report type.
func ValidType(t Type) bool {
	switch t {
	case TypeMonthly, TypeYearly, TypeCustom:
		return true
	}
	return false
}

// Status tracks a report through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Summary holds the aggregated numbers of a completed report.
type Summary struct {
	TotalUsers  int64   `json:"totalUsers"`
	ActiveUsers int64   `json:"activeUsers"`
	Revenue     float64 `json:"revenue"`
	ChurnRate   float64 `json:"churnRate"`
	MRR         float64 `json:"mrr"`
	ARR         float64 `json:"arr"`
}

// Report is one requested report. Summary is nil until generation completes.
type Report struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Type           Type       `json:"type"`
	Status         Status     `json:"status"`
	PeriodStart    time.Time  `json:"periodStart"`
	PeriodEnd      time.Time  `json:"periodEnd"`
	Summary        *Summary   `json:"summary,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}
