package engine

import (
	"time"

	"planbook/models"
)

// Summarize computes the headline revenue figures in a single pass over the
// payment snapshot. Revenue counts amount plus late fee for PAID payments; the
// YTD window is [start of the current year, now] and the prior-year window is
// the same span shifted back twelve months. The YoY delta is 0 when the prior
// year had no revenue.
func Summarize(payments []models.Payment, now time.Time) models.RevenueSummary {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	priorStart := yearStart.AddDate(-1, 0, 0)
	priorEnd := now.AddDate(-1, 0, 0)

	var s models.RevenueSummary
	for i := range payments {
		p := &payments[i]
		if p.Status != models.PaymentStatusPaid {
			continue
		}
		revenue := p.AmountCents + p.LateFeeCents
		s.AllTimeRevenueCents += revenue
		if p.PaidAt == nil {
			continue
		}
		paidAt := *p.PaidAt
		if !paidAt.Before(yearStart) && !paidAt.After(now) {
			s.YTDRevenueCents += revenue
		}
		if !paidAt.Before(priorStart) && !paidAt.After(priorEnd) {
			s.PriorYTDRevenueCents += revenue
		}
	}

	if s.PriorYTDRevenueCents > 0 {
		s.YoYDeltaPct = float64(s.YTDRevenueCents-s.PriorYTDRevenueCents) / float64(s.PriorYTDRevenueCents) * 100
	}

	return s
}

// RepaymentRate converts on-time and due totals into a 0-100 percentage,
// capped at 100 so retroactive amount changes never report above full
// repayment. Returns 0 when nothing was due.
func RepaymentRate(onTimeCents, dueCents int64) float64 {
	if dueCents == 0 {
		return 0
	}
	rate := float64(onTimeCents) / float64(dueCents) * 100
	if rate > 100 {
		rate = 100
	}
	return rate
}

// RepaymentRatePct is the share of amounts due in [periodStart, periodEnd)
// that were paid on or before their due date.
func RepaymentRatePct(payments []models.Payment, periodStart, periodEnd time.Time) float64 {
	var dueCents, onTimeCents int64
	for i := range payments {
		p := &payments[i]
		if p.DueDate.Before(periodStart) || !p.DueDate.Before(periodEnd) {
			continue
		}
		dueCents += p.AmountCents
		if p.Status == models.PaymentStatusPaid && p.PaidAt != nil && !p.PaidAt.After(p.DueDate) {
			onTimeCents += p.AmountCents
		}
	}
	return RepaymentRate(onTimeCents, dueCents)
}

// PlatformFeeCents computes the platform's cut of an interest amount at the
// configured fee rate, rounded half-up. The fee applies to interest only,
// never gross revenue.
func PlatformFeeCents(interestCents, feeBps int64) int64 {
	return (interestCents*feeBps + 5000) / 10000
}

// HealthBreakdown counts plans by health tier and totals their principal
func HealthBreakdown(plans []*models.Plan) models.AccountHealthSummary {
	s := models.AccountHealthSummary{
		ByHealth: map[models.PlanHealth]int{
			models.PlanHealthExcellent: 0,
			models.PlanHealthGood:      0,
			models.PlanHealthFair:      0,
			models.PlanHealthPoor:      0,
		},
	}
	for _, p := range plans {
		s.TotalPlans++
		s.TotalPrincipalCents += p.PrincipalCents
		s.ByHealth[p.Health]++
	}
	return s
}
