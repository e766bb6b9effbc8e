package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"planbook/engine"
	"planbook/events"
	"planbook/models"
)

type planService struct {
	uowFactory UnitOfWorkFactory
}

// NewPlanService creates a new plan service
func NewPlanService(uowFactory UnitOfWorkFactory) PlanService {
	return &planService{
		uowFactory: uowFactory,
	}
}

func (s *planService) CreatePlan(ctx context.Context, params CreatePlanParams) (*models.Plan, []models.Payment, error) {
	terms := engine.Terms{
		PrincipalCents:   params.PrincipalCents,
		DownPaymentCents: params.DownPaymentCents,
		TermMonths:       params.TermMonths,
		AprBps:           params.AprBps,
		StartDate:        params.StartDate,
		BillingDay:       params.BillingDay,
	}

	// Generate before touching storage so invalid terms never open a transaction
	payments, err := engine.GenerateSchedule(terms)
	if err != nil {
		return nil, nil, err
	}

	planType := params.PlanType
	if planType == "" {
		planType = models.PlanTypeSelf
	}
	health := params.Health
	if health == "" {
		health = models.PlanHealthGood
	}

	plan := &models.Plan{
		ID:               uuid.New(),
		PatientID:        params.PatientID,
		PrincipalCents:   params.PrincipalCents,
		DownPaymentCents: params.DownPaymentCents,
		TermMonths:       params.TermMonths,
		AprBps:           params.AprBps,
		BillingDay:       params.BillingDay,
		StartDate:        params.StartDate,
		PlanType:         planType,
		Health:           health,
		OnHold:           params.OnHold,
	}
	for i := range payments {
		payments[i].ID = uuid.New()
		payments[i].PlanID = plan.ID
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	patient, err := uow.PatientRepository().GetByID(ctx, params.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if patient == nil {
		return nil, nil, fmt.Errorf("patient not found")
	}

	if err := uow.PlanRepository().CreateWithPayments(ctx, plan, payments); err != nil {
		return nil, nil, fmt.Errorf("failed to create plan with schedule: %w", err)
	}

	uow.EventBus().Publish(events.PlanCreatedEvent{
		PlanID:         plan.ID,
		PatientID:      plan.PatientID,
		PrincipalCents: plan.PrincipalCents,
		TermMonths:     plan.TermMonths,
	})

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return plan, payments, nil
}

func (s *planService) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, []models.Payment, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	plan, err := uow.PlanRepository().GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, nil, fmt.Errorf("plan not found")
	}

	payments, err := uow.PaymentRepository().GetByPlan(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payments for plan %s: %w", id, err)
	}

	return plan, payments, nil
}

func (s *planService) ListPlans(ctx context.Context, filter PlanFilter) ([]*models.Plan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	plans, err := uow.PlanRepository().GetAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return plans, nil
}
