package models

import (
	"time"

	"github.com/google/uuid"
)

// PlanType distinguishes self-funded plans from backed plans
type PlanType string

const (
	PlanTypeSelf   PlanType = "SELF"
	PlanTypeBacked PlanType = "BACKED"
)

// PlanHealth is the externally assigned health tier of a plan
type PlanHealth string

const (
	PlanHealthExcellent PlanHealth = "EXCELLENT"
	PlanHealthGood      PlanHealth = "GOOD"
	PlanHealthFair      PlanHealth = "FAIR"
	PlanHealthPoor      PlanHealth = "POOR"
)

// PlanStatus is the derived lifecycle status of a plan
type PlanStatus string

const (
	PlanStatusActive     PlanStatus = "ACTIVE"
	PlanStatusHold       PlanStatus = "HOLD"
	PlanStatusDelinquent PlanStatus = "DELINQUENT"
	PlanStatusPaid       PlanStatus = "PAID"
)

// RiskLevel classifies how overdue a plan's worst payment is
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Plan represents a payment plan and the terms it was created with.
// All currency fields are integer minor units (cents); rates are basis points.
type Plan struct {
	ID               uuid.UUID  `db:"id"`
	PatientID        uuid.UUID  `db:"patient_id"`
	PrincipalCents   int64      `db:"principal_cents"`
	DownPaymentCents int64      `db:"down_payment_cents"`
	TermMonths       int        `db:"term_months"`
	AprBps           int64      `db:"apr_bps"`
	BillingDay       int        `db:"billing_day"`
	StartDate        time.Time  `db:"start_date"`
	PlanType         PlanType   `db:"plan_type"`
	Health           PlanHealth `db:"health"`
	OnHold           bool       `db:"on_hold"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// FinancedCents returns the amount financed after the down payment
func (p *Plan) FinancedCents() int64 {
	return p.PrincipalCents - p.DownPaymentCents
}
