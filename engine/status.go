package engine

import (
	"time"

	"planbook/models"
)

// Delinquency thresholds in days overdue
const (
	highRiskDays   = 45
	mediumRiskDays = 15
)

// DeriveStatus classifies a plan from its payment set at a reference instant.
// Precedence is fixed: PAID, then HOLD, then DELINQUENT, then ACTIVE — a plan
// that is both overdue and on hold reports HOLD.
func DeriveStatus(plan *models.Plan, payments []models.Payment, asOf time.Time) models.PlanStatus {
	if len(payments) > 0 {
		allPaid := true
		for i := range payments {
			if payments[i].Status != models.PaymentStatusPaid {
				allPaid = false
				break
			}
		}
		if allPaid {
			return models.PlanStatusPaid
		}
	}

	if plan != nil && plan.OnHold {
		return models.PlanStatusHold
	}
	for i := range payments {
		if payments[i].Status == models.PaymentStatusHold {
			return models.PlanStatusHold
		}
	}

	for i := range payments {
		p := &payments[i]
		if p.Status != models.PaymentStatusPaid && p.DueDate.Before(asOf) {
			return models.PlanStatusDelinquent
		}
	}

	return models.PlanStatusActive
}

// ProgressPct returns the rounded percentage of payments already paid,
// 0 for an empty set.
func ProgressPct(payments []models.Payment) int {
	total := len(payments)
	if total == 0 {
		return 0
	}
	paid := 0
	for i := range payments {
		if payments[i].Status == models.PaymentStatusPaid {
			paid++
		}
	}
	return int((int64(paid)*200 + int64(total)) / (2 * int64(total)))
}

// OutstandingCents sums the amounts of all payments not yet paid
func OutstandingCents(payments []models.Payment) int64 {
	var outstanding int64
	for i := range payments {
		if payments[i].Status != models.PaymentStatusPaid {
			outstanding += payments[i].AmountCents
		}
	}
	return outstanding
}

// DaysOverdue returns how many whole days a payment is past due at asOf.
// Paid and held payments are never overdue.
func DaysOverdue(p *models.Payment, asOf time.Time) int {
	if p.Status == models.PaymentStatusPaid || p.Status == models.PaymentStatusHold {
		return 0
	}
	if !p.DueDate.Before(asOf) {
		return 0
	}
	return int(asOf.Sub(p.DueDate) / (24 * time.Hour))
}

// MaxDaysOverdue returns the worst overdue age across a plan's payments,
// 0 when nothing qualifies.
func MaxDaysOverdue(payments []models.Payment, asOf time.Time) int {
	max := 0
	for i := range payments {
		if d := DaysOverdue(&payments[i], asOf); d > max {
			max = d
		}
	}
	return max
}

// ClassifyRisk maps a plan's worst overdue age to a risk tier
func ClassifyRisk(maxDaysOverdue int) models.RiskLevel {
	switch {
	case maxDaysOverdue >= highRiskDays:
		return models.RiskLevelHigh
	case maxDaysOverdue >= mediumRiskDays:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// BadgeFor derives the display badge for a payment relative to today's date
func BadgeFor(p *models.Payment, today time.Time) models.PaymentBadge {
	switch p.Status {
	case models.PaymentStatusHold:
		return models.PaymentBadgeHold
	case models.PaymentStatusPaid:
		return models.PaymentBadgePaid
	}
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if !p.DueDate.Before(dayStart) && p.DueDate.Before(dayStart.AddDate(0, 0, 1)) {
		return models.PaymentBadgeDueToday
	}
	return models.PaymentBadgePending
}
