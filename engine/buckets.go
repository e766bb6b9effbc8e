package engine

import (
	"time"

	"github.com/google/uuid"

	"planbook/models"
)

// BucketKind selects the granularity of a revenue series
type BucketKind string

const (
	BucketWeek  BucketKind = "WEEK"
	BucketMonth BucketKind = "MONTH"
)

// BucketRevenue accumulates payment amounts into a fixed number of
// chronological time buckets keyed by plan type. A payment lands in the bucket
// of its effective date (paidAt when paid, otherwise dueDate); payments outside
// the window are dropped. Weekly buckets start on Monday and truncate each
// payment to whole currency units; monthly buckets start on the 1st and round
// half-up. The result always has exactly bucketCount entries, zero-valued when
// empty, built in a single pass over the payments.
func BucketRevenue(plans []*models.Plan, payments []models.Payment, kind BucketKind, windowStart time.Time, bucketCount int) []models.RevenueBucket {
	if bucketCount < 0 {
		bucketCount = 0
	}

	origin := bucketOrigin(kind, windowStart)
	buckets := make([]models.RevenueBucket, bucketCount)
	for i := range buckets {
		buckets[i] = models.RevenueBucket{
			Start:   bucketStart(kind, origin, i),
			Amounts: make(map[models.PlanType]int64),
		}
	}

	typeByPlan := make(map[uuid.UUID]models.PlanType, len(plans))
	for _, p := range plans {
		typeByPlan[p.ID] = p.PlanType
	}

	for i := range payments {
		p := &payments[i]
		planType, ok := typeByPlan[p.PlanID]
		if !ok {
			continue
		}
		idx := bucketIndex(kind, origin, p.EffectiveDate())
		if idx < 0 || idx >= bucketCount {
			continue
		}
		buckets[idx].Amounts[planType] += wholeUnits(kind, p.AmountCents)
	}

	return buckets
}

// wholeUnits converts cents to whole currency units. Weekly series truncate,
// monthly series round half-up; the asymmetry is preserved from the source
// behavior rather than unified.
func wholeUnits(kind BucketKind, cents int64) int64 {
	if kind == BucketMonth {
		return (cents + 50) / 100
	}
	return cents / 100
}

// bucketOrigin normalizes the window start to the first bucket boundary:
// the preceding Monday for weeks, the 1st of the month for months.
func bucketOrigin(kind BucketKind, windowStart time.Time) time.Time {
	year, month, day := windowStart.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, windowStart.Location())
	if kind == BucketMonth {
		return time.Date(year, month, 1, 0, 0, 0, 0, windowStart.Location())
	}
	sinceMonday := (int(dayStart.Weekday()) + 6) % 7
	return dayStart.AddDate(0, 0, -sinceMonday)
}

// bucketStart returns the boundary of the i-th bucket after the origin
func bucketStart(kind BucketKind, origin time.Time, i int) time.Time {
	if kind == BucketMonth {
		return origin.AddDate(0, i, 0)
	}
	return origin.AddDate(0, 0, i*7)
}

// bucketIndex maps an effective date to its bucket offset from the origin.
// Dates before the origin yield a negative index.
func bucketIndex(kind BucketKind, origin time.Time, at time.Time) int {
	if at.Before(origin) {
		return -1
	}
	if kind == BucketMonth {
		return (at.Year()-origin.Year())*12 + int(at.Month()) - int(origin.Month())
	}
	return int(at.Sub(origin)/(24*time.Hour)) / 7
}
