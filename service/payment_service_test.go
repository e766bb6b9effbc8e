package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbook/events"
	"planbook/models"
)

func newPaymentServiceFixture() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockPaymentRepository, *MockEventPublisher) {
	factory := new(MockUnitOfWorkFactory)
	uow := new(MockUnitOfWork)
	paymentRepo := new(MockPaymentRepository)
	publisher := new(MockEventPublisher)
	uow.SetRepositories(new(MockPatientRepository), new(MockPlanRepository), paymentRepo, publisher)
	return factory, uow, paymentRepo, publisher
}

func TestPaymentService_MarkPaid_Success(t *testing.T) {
	factory, uow, paymentRepo, publisher := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	planID := uuid.New()
	paidAt := time.Date(2025, 3, 16, 9, 30, 0, 0, time.UTC)
	stored := &models.Payment{
		ID:          paymentID,
		PlanID:      planID,
		AmountCents: 46666,
		DueDate:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:      models.PaymentStatusPending,
	}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)
	paymentRepo.On("MarkPaid", mock.Anything, paymentID, paidAt, int64(500)).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.PaymentPaidEvent) bool {
		return e.PaymentID == paymentID && e.PlanID == planID && e.AmountCents == 46666 && e.LateFeeCents == 500
	})).Return()

	payment, err := svc.MarkPaid(context.Background(), paymentID, paidAt, 500)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaidAt)
	assert.Equal(t, paidAt, *payment.PaidAt)
	assert.Equal(t, int64(500), payment.LateFeeCents)

	uow.AssertExpectations(t)
	paymentRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPaymentService_MarkPaid_NegativeLateFee(t *testing.T) {
	factory, _, _, _ := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	_, err := svc.MarkPaid(context.Background(), uuid.New(), time.Now(), -100)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "late fee cannot be negative")
	factory.AssertNotCalled(t, "Create")
}

func TestPaymentService_MarkPaid_AlreadyPaid(t *testing.T) {
	factory, uow, paymentRepo, publisher := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	paidAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	stored := &models.Payment{ID: paymentID, Status: models.PaymentStatusPaid, PaidAt: &paidAt}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)

	_, err := svc.MarkPaid(context.Background(), paymentID, time.Now(), 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already paid")
	paymentRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
	uow.AssertNotCalled(t, "Commit")
}

func TestPaymentService_MarkPaid_NotFound(t *testing.T) {
	factory, uow, paymentRepo, _ := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(nil, nil)

	_, err := svc.MarkPaid(context.Background(), paymentID, time.Now(), 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payment not found")
}

func TestPaymentService_PlaceHold_Success(t *testing.T) {
	factory, uow, paymentRepo, publisher := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	planID := uuid.New()
	stored := &models.Payment{ID: paymentID, PlanID: planID, Status: models.PaymentStatusPending}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)
	paymentRepo.On("SetStatus", mock.Anything, paymentID, models.PaymentStatusHold).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.PaymentHoldChangedEvent) bool {
		return e.PaymentID == paymentID && e.OnHold
	})).Return()

	payment, err := svc.PlaceHold(context.Background(), paymentID)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusHold, payment.Status)
	uow.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPaymentService_PlaceHold_AlreadyOnHold_NoOp(t *testing.T) {
	factory, uow, paymentRepo, publisher := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	stored := &models.Payment{ID: paymentID, Status: models.PaymentStatusHold}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)

	payment, err := svc.PlaceHold(context.Background(), paymentID)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusHold, payment.Status)

	// Writing the same status again would be wasted work
	paymentRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestPaymentService_ReleaseHold_Success(t *testing.T) {
	factory, uow, paymentRepo, publisher := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	stored := &models.Payment{ID: paymentID, Status: models.PaymentStatusHold}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)
	paymentRepo.On("SetStatus", mock.Anything, paymentID, models.PaymentStatusPending).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.PaymentHoldChangedEvent) bool {
		return e.PaymentID == paymentID && !e.OnHold
	})).Return()

	payment, err := svc.ReleaseHold(context.Background(), paymentID)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	uow.AssertExpectations(t)
}

func TestPaymentService_PlaceHold_PaidPayment_Rejected(t *testing.T) {
	factory, uow, paymentRepo, _ := newPaymentServiceFixture()
	svc := NewPaymentService(factory)

	paymentID := uuid.New()
	paidAt := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	stored := &models.Payment{ID: paymentID, Status: models.PaymentStatusPaid, PaidAt: &paidAt}

	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	paymentRepo.On("GetByID", mock.Anything, paymentID).Return(stored, nil)

	_, err := svc.PlaceHold(context.Background(), paymentID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already paid")
	paymentRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}
