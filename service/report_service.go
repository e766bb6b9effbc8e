package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"planbook/engine"
	"planbook/models"
)

// reportCacheTTL bounds how stale a cached dashboard series may be
const reportCacheTTL = 5 * time.Minute

type reportService struct {
	uowFactory     UnitOfWorkFactory
	cache          ReportCache // nil disables caching
	platformFeeBps int64
}

// NewReportService creates a new report service. A nil cache disables the
// read-through layer; reports are then always computed from a fresh snapshot.
func NewReportService(uowFactory UnitOfWorkFactory, cache ReportCache, platformFeeBps int64) ReportService {
	return &reportService{
		uowFactory:     uowFactory,
		cache:          cache,
		platformFeeBps: platformFeeBps,
	}
}

func (s *reportService) PlanStatusReport(ctx context.Context, asOf time.Time, filter PlanFilter) ([]*models.PlanStatusRow, error) {
	plans, payments, err := s.fetchSnapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	byPlan := groupByPlan(payments)

	rows := make([]*models.PlanStatusRow, 0, len(plans))
	for _, plan := range plans {
		planPayments := byPlan[plan.ID]

		paid := 0
		for i := range planPayments {
			if planPayments[i].Status == models.PaymentStatusPaid {
				paid++
			}
		}

		maxOverdue := engine.MaxDaysOverdue(planPayments, asOf)
		rows = append(rows, &models.PlanStatusRow{
			Plan:             plan,
			Status:           engine.DeriveStatus(plan, planPayments, asOf),
			Risk:             engine.ClassifyRisk(maxOverdue),
			ProgressPct:      engine.ProgressPct(planPayments),
			OutstandingCents: engine.OutstandingCents(planPayments),
			MaxDaysOverdue:   maxOverdue,
			PaidCount:        paid,
			TotalCount:       len(planPayments),
		})
	}

	return rows, nil
}

func (s *reportService) RevenueBuckets(ctx context.Context, kind engine.BucketKind, windowStart time.Time, bucketCount int, planType models.PlanTypeFilter) ([]models.RevenueBucket, error) {
	cacheKey := fmt.Sprintf("reports:buckets:%s:%s:%d:%s", kind, windowStart.Format("2006-01-02"), bucketCount, planType)

	var cached []models.RevenueBucket
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	plans, payments, err := s.fetchSnapshot(ctx, PlanFilter{PlanType: planType})
	if err != nil {
		return nil, err
	}

	buckets := engine.BucketRevenue(plans, payments, kind, windowStart, bucketCount)
	s.cacheSet(ctx, cacheKey, buckets)
	return buckets, nil
}

func (s *reportService) RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error) {
	cacheKey := fmt.Sprintf("reports:summary:%s", now.Format("2006-01-02"))

	var cached models.RevenueSummary
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	plans, payments, err := s.fetchSnapshot(ctx, PlanFilter{PlanType: models.PlanTypeFilterAll})
	if err != nil {
		return nil, err
	}

	summary := engine.Summarize(payments, now)

	// Platform fee applies to interest actually collected, recomputed from
	// plan terms rather than any stored interest column
	byPlan := groupByPlan(payments)
	var interestCollected int64
	for _, plan := range plans {
		interestCollected += engine.CollectedInterestCents(plan, byPlan[plan.ID])
	}
	summary.PlatformFeeCents = engine.PlatformFeeCents(interestCollected, s.platformFeeBps)

	s.cacheSet(ctx, cacheKey, &summary)
	return &summary, nil
}

func (s *reportService) RepaymentRate(ctx context.Context, periodStart, periodEnd time.Time) (float64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	payments, err := uow.PaymentRepository().GetByDueDateRange(ctx, periodStart, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to get payments for period: %w", err)
	}

	return engine.RepaymentRatePct(payments, periodStart, periodEnd), nil
}

func (s *reportService) AccountHealth(ctx context.Context) (*models.AccountHealthSummary, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	plans, err := uow.PlanRepository().GetAll(ctx, PlanFilter{PlanType: models.PlanTypeFilterAll})
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}

	summary := engine.HealthBreakdown(plans)
	return &summary, nil
}

func (s *reportService) UpcomingPayments(ctx context.Context, limit int, today time.Time) ([]*models.UpcomingPaymentRow, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	joins, err := uow.PaymentRepository().GetUpcoming(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming payments: %w", err)
	}

	rows := make([]*models.UpcomingPaymentRow, 0, len(joins))
	for i := range joins {
		j := &joins[i]
		rows = append(rows, &models.UpcomingPaymentRow{
			PaymentID:   j.Payment.ID,
			PlanID:      j.Payment.PlanID,
			PatientName: j.PatientName,
			Badge:       engine.BadgeFor(&j.Payment, today),
			AmountCents: j.Payment.AmountCents,
			DueDate:     j.Payment.DueDate,
		})
	}

	return rows, nil
}

// fetchSnapshot loads the plan and payment population for a report in one
// transaction, so every metric computes over a consistent view.
func (s *reportService) fetchSnapshot(ctx context.Context, filter PlanFilter) ([]*models.Plan, []models.Payment, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	plans, err := uow.PlanRepository().GetAll(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get plans: %w", err)
	}

	payments, err := uow.PaymentRepository().GetAll(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payments: %w", err)
	}

	return plans, payments, nil
}

func groupByPlan(payments []models.Payment) map[uuid.UUID][]models.Payment {
	byPlan := make(map[uuid.UUID][]models.Payment)
	for i := range payments {
		byPlan[payments[i].PlanID] = append(byPlan[payments[i].PlanID], payments[i])
	}
	return byPlan
}

func (s *reportService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("Discarding undecodable cached report")
		return false
	}
	return true
}

func (s *reportService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("Failed to encode report for cache")
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), reportCacheTTL); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("Failed to cache report")
	}
}
