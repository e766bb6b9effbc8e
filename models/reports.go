package models

import (
	"time"

	"github.com/google/uuid"
)

// PlanTypeFilter selects which plan types a report covers
type PlanTypeFilter string

const (
	PlanTypeFilterAll    PlanTypeFilter = "ALL"
	PlanTypeFilterSelf   PlanTypeFilter = "SELF"
	PlanTypeFilterBacked PlanTypeFilter = "BACKED"
)

// Matches reports whether a plan type passes the filter
func (f PlanTypeFilter) Matches(t PlanType) bool {
	switch f {
	case PlanTypeFilterSelf:
		return t == PlanTypeSelf
	case PlanTypeFilterBacked:
		return t == PlanTypeBacked
	default:
		return true
	}
}

// PlanStatusRow is one classified plan in a status report
type PlanStatusRow struct {
	Plan             *Plan
	Status           PlanStatus
	Risk             RiskLevel
	ProgressPct      int
	OutstandingCents int64
	MaxDaysOverdue   int
	PaidCount        int
	TotalCount       int
}

// RevenueBucket is one time bucket of a revenue series.
// Amounts are whole currency units, keyed by plan type.
type RevenueBucket struct {
	Start   time.Time
	Amounts map[PlanType]int64
}

// Total returns the bucket sum across plan types
func (b *RevenueBucket) Total() int64 {
	var total int64
	for _, v := range b.Amounts {
		total += v
	}
	return total
}

// RevenueSummary holds the headline revenue scalars
type RevenueSummary struct {
	AllTimeRevenueCents  int64
	YTDRevenueCents      int64
	PriorYTDRevenueCents int64
	YoYDeltaPct          float64
	PlatformFeeCents     int64
}

// AccountHealthSummary breaks plans down by health tier
type AccountHealthSummary struct {
	TotalPlans          int
	TotalPrincipalCents int64
	ByHealth            map[PlanHealth]int
}

// UpcomingPaymentJoin pairs a payment with its patient's display name, as
// fetched for the upcoming payments card
type UpcomingPaymentJoin struct {
	Payment     Payment
	PatientName string
}

// PaymentBadge is the display state of an upcoming payment
type PaymentBadge string

const (
	PaymentBadgeHold     PaymentBadge = "Hold"
	PaymentBadgePaid     PaymentBadge = "Paid"
	PaymentBadgeDueToday PaymentBadge = "Due Today"
	PaymentBadgePending  PaymentBadge = "Pending"
)

// UpcomingPaymentRow is one entry in the upcoming payments card
type UpcomingPaymentRow struct {
	PaymentID   uuid.UUID
	PlanID      uuid.UUID
	PatientName string
	Badge       PaymentBadge
	AmountCents int64
	DueDate     time.Time
}
