package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the bookkeeping state of a scheduled payment
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusHold    PaymentStatus = "HOLD"
)

// Payment represents a single scheduled installment of a plan.
// PaidAt is set iff Status is PAID.
type Payment struct {
	ID           uuid.UUID     `db:"id"`
	PlanID       uuid.UUID     `db:"plan_id"`
	AmountCents  int64         `db:"amount_cents"`
	DueDate      time.Time     `db:"due_date"`
	Status       PaymentStatus `db:"status"`
	PaidAt       *time.Time    `db:"paid_at"`
	LateFeeCents int64         `db:"late_fee_cents"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

// EffectiveDate is the date a payment counts toward for time bucketing:
// the actual payment time when paid, otherwise the due date.
func (p *Payment) EffectiveDate() time.Time {
	if p.Status == PaymentStatusPaid && p.PaidAt != nil {
		return *p.PaidAt
	}
	return p.DueDate
}
