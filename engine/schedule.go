package engine

import (
	"fmt"
	"time"

	"planbook/models"
)

// Terms holds the inputs to schedule generation. Currency values are integer
// cents, the APR is basis points.
type Terms struct {
	PrincipalCents   int64
	DownPaymentCents int64
	TermMonths       int
	AprBps           int64
	StartDate        time.Time
	BillingDay       int
}

// InvalidTermsError reports plan terms that cannot produce a valid schedule
type InvalidTermsError struct {
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return fmt.Sprintf("invalid plan terms: %s", e.Reason)
}

// Validate checks the terms against the schedule generation contract
func (t Terms) Validate() error {
	switch {
	case t.TermMonths < 1:
		return &InvalidTermsError{Reason: "term must be at least 1 month"}
	case t.PrincipalCents < 0:
		return &InvalidTermsError{Reason: "principal cannot be negative"}
	case t.DownPaymentCents < 0:
		return &InvalidTermsError{Reason: "down payment cannot be negative"}
	case t.DownPaymentCents > t.PrincipalCents:
		return &InvalidTermsError{Reason: "down payment cannot exceed principal"}
	case t.AprBps < 0:
		return &InvalidTermsError{Reason: "apr cannot be negative"}
	case t.BillingDay < 1 || t.BillingDay > 31:
		return &InvalidTermsError{Reason: "billing day must be between 1 and 31"}
	}
	return nil
}

// TotalInterestCents computes simple interest over the whole term, truncating
// toward zero. Sub-cent remainders are redistributed by the installment split,
// never lost.
func TotalInterestCents(financedCents, aprBps int64) int64 {
	return financedCents * aprBps / 10000
}

// splitEven divides total into n equal installments plus a remainder that the
// final installment absorbs.
func splitEven(total int64, n int) (base, remainder int64) {
	base = total / int64(n)
	remainder = total - base*int64(n)
	return base, remainder
}

// GenerateSchedule produces the full installment series for the given terms:
// one PENDING payment per calendar month starting at the start month, due on
// the billing day clamped to each month's length. The first installment carries
// the whole down payment, the last absorbs the rounding remainder, so the
// amounts always sum to financed + interest + down payment exactly.
func GenerateSchedule(t Terms) ([]models.Payment, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	financed := t.PrincipalCents - t.DownPaymentCents
	interest := TotalInterestCents(financed, t.AprBps)
	repayable := financed + interest
	base, remainder := splitEven(repayable, t.TermMonths)

	payments := make([]models.Payment, 0, t.TermMonths)
	for i := 0; i < t.TermMonths; i++ {
		amount := base
		if i == 0 {
			amount += t.DownPaymentCents
		}
		if i == t.TermMonths-1 {
			amount += remainder
		}
		payments = append(payments, models.Payment{
			AmountCents: amount,
			DueDate:     dueDateFor(t.StartDate, i, t.BillingDay),
			Status:      models.PaymentStatusPending,
		})
	}

	return payments, nil
}

// dueDateFor places an installment on the billing day of the offset-th month
// after the start month.
func dueDateFor(start time.Time, monthOffset, billingDay int) time.Time {
	year, month, _ := start.Date()
	monthStart := time.Date(year, month+time.Month(monthOffset), 1, 0, 0, 0, 0, start.Location())
	return time.Date(monthStart.Year(), monthStart.Month(), clampDay(billingDay, monthStart), 0, 0, 0, 0, start.Location())
}

// clampDay caps the requested day to the last valid day of the month
// containing monthStart, so billing day 31 lands on Feb 28 in a non-leap year.
func clampDay(day int, monthStart time.Time) int {
	last := monthStart.AddDate(0, 1, -1).Day()
	if day < 1 {
		return 1
	}
	if day > last {
		return last
	}
	return day
}
