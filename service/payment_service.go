package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"planbook/events"
	"planbook/models"
)

type paymentService struct {
	uowFactory UnitOfWorkFactory
}

// NewPaymentService creates a new payment service
func NewPaymentService(uowFactory UnitOfWorkFactory) PaymentService {
	return &paymentService{
		uowFactory: uowFactory,
	}
}

func (s *paymentService) MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, lateFeeCents int64) (*models.Payment, error) {
	if lateFeeCents < 0 {
		return nil, fmt.Errorf("late fee cannot be negative")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	payment, err := uow.PaymentRepository().GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment not found")
	}
	if payment.Status == models.PaymentStatusPaid {
		return nil, fmt.Errorf("payment %s is already paid", paymentID)
	}

	if err := uow.PaymentRepository().MarkPaid(ctx, paymentID, paidAt, lateFeeCents); err != nil {
		return nil, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	payment.Status = models.PaymentStatusPaid
	payment.PaidAt = &paidAt
	payment.LateFeeCents = lateFeeCents

	uow.EventBus().Publish(events.PaymentPaidEvent{
		PaymentID:    payment.ID,
		PlanID:       payment.PlanID,
		AmountCents:  payment.AmountCents,
		LateFeeCents: lateFeeCents,
		PaidAt:       paidAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payment, nil
}

func (s *paymentService) PlaceHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.setHold(ctx, paymentID, true)
}

func (s *paymentService) ReleaseHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.setHold(ctx, paymentID, false)
}

func (s *paymentService) setHold(ctx context.Context, paymentID uuid.UUID, hold bool) (*models.Payment, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	payment, err := uow.PaymentRepository().GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment not found")
	}
	if payment.Status == models.PaymentStatusPaid {
		return nil, fmt.Errorf("payment %s is already paid", paymentID)
	}

	target := models.PaymentStatusPending
	if hold {
		target = models.PaymentStatusHold
	}
	if payment.Status == target {
		return payment, nil
	}

	if err := uow.PaymentRepository().SetStatus(ctx, paymentID, target); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	payment.Status = target

	uow.EventBus().Publish(events.PaymentHoldChangedEvent{
		PaymentID: payment.ID,
		PlanID:    payment.PlanID,
		OnHold:    hold,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payment, nil
}
