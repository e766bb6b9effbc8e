package engine

import (
	"sort"

	"github.com/google/uuid"

	"planbook/models"
)

// InterestComponent returns the share of a plan's total interest attributed to
// one payment, re-derived from the stored plan terms alone. The split mirrors
// the schedule generator: an even base per installment in due-date order, with
// the final installment absorbing the remainder. Returns 0 when the payment id
// is not part of the plan's set, which indicates inconsistent stored data and
// should be logged by the caller.
func InterestComponent(plan *models.Plan, payments []models.Payment, paymentID uuid.UUID) int64 {
	if plan == nil || plan.TermMonths < 1 || len(payments) == 0 {
		return 0
	}

	interest := TotalInterestCents(plan.FinancedCents(), plan.AprBps)
	base, remainder := splitEven(interest, plan.TermMonths)

	ordered := make([]models.Payment, len(payments))
	copy(ordered, payments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})

	for i := range ordered {
		if ordered[i].ID == paymentID {
			if i == len(ordered)-1 {
				return base + remainder
			}
			return base
		}
	}

	return 0
}

// PlanInterestCents returns the total interest charged on a plan, recomputed
// from its stored terms.
func PlanInterestCents(plan *models.Plan) int64 {
	return TotalInterestCents(plan.FinancedCents(), plan.AprBps)
}

// CollectedInterestCents sums the interest attributed to a plan's PAID
// payments, using the same split as InterestComponent but in one pass.
func CollectedInterestCents(plan *models.Plan, payments []models.Payment) int64 {
	if plan == nil || plan.TermMonths < 1 || len(payments) == 0 {
		return 0
	}

	base, remainder := splitEven(PlanInterestCents(plan), plan.TermMonths)

	ordered := make([]models.Payment, len(payments))
	copy(ordered, payments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})

	var collected int64
	for i := range ordered {
		if ordered[i].Status != models.PaymentStatusPaid {
			continue
		}
		collected += base
		if i == len(ordered)-1 {
			collected += remainder
		}
	}
	return collected
}
