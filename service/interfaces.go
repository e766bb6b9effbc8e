package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"planbook/engine"
	"planbook/events"
	"planbook/models"
)

// PlanFilter narrows plan queries
type PlanFilter struct {
	PlanType  models.PlanTypeFilter
	PatientID *uuid.UUID
	OnHold    *bool
}

// PatientRepository defines the interface for patient data access
type PatientRepository interface {
	// Create creates a new patient
	Create(ctx context.Context, patient *models.Patient) error

	// GetByID retrieves a patient by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)

	// GetAll returns all patients
	GetAll(ctx context.Context) ([]*models.Patient, error)
}

// PlanRepository defines the interface for payment plan data access
type PlanRepository interface {
	// CreateWithPayments persists a plan and its full payment schedule as one
	// atomic unit; a plan is never visible with a partial schedule
	CreateWithPayments(ctx context.Context, plan *models.Plan, payments []models.Payment) error

	// GetByID retrieves a plan by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)

	// GetAll returns plans matching the filter
	GetAll(ctx context.Context, filter PlanFilter) ([]*models.Plan, error)
}

// PaymentRepository defines the interface for payment data access
type PaymentRepository interface {
	// GetByID retrieves a payment by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)

	// GetByPlan returns a plan's payments ordered by due date
	GetByPlan(ctx context.Context, planID uuid.UUID) ([]models.Payment, error)

	// GetAll returns all payments, optionally restricted to plans matching the filter
	GetAll(ctx context.Context, filter PlanFilter) ([]models.Payment, error)

	// GetByDueDateRange returns payments due within [from, to)
	GetByDueDateRange(ctx context.Context, from, to time.Time) ([]models.Payment, error)

	// MarkPaid transitions a payment to PAID, setting paidAt and the late fee
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, lateFeeCents int64) error

	// SetStatus updates a payment's status, clearing paidAt for non-PAID states
	SetStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error

	// GetUpcoming returns payments with their patient names for the overview
	// card, held and pending first, soonest due date first
	GetUpcoming(ctx context.Context, limit int) ([]models.UpcomingPaymentJoin, error)
}

// PlanService defines the interface for plan lifecycle operations
type PlanService interface {
	// CreatePlan validates the terms, generates the amortization schedule, and
	// persists the plan with its full payment series in one transaction
	CreatePlan(ctx context.Context, params CreatePlanParams) (*models.Plan, []models.Payment, error)

	// GetPlan retrieves a plan together with its payment schedule
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, []models.Payment, error)

	// ListPlans returns plans matching the filter
	ListPlans(ctx context.Context, filter PlanFilter) ([]*models.Plan, error)
}

// CreatePlanParams are the caller-supplied terms for a new plan
type CreatePlanParams struct {
	PatientID        uuid.UUID
	PrincipalCents   int64
	DownPaymentCents int64
	TermMonths       int
	AprBps           int64
	StartDate        time.Time
	BillingDay       int
	PlanType         models.PlanType
	Health           models.PlanHealth
	OnHold           bool
}

// PaymentService defines the interface for payment bookkeeping transitions
type PaymentService interface {
	// MarkPaid transitions a PENDING payment to PAID
	MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, lateFeeCents int64) (*models.Payment, error)

	// PlaceHold moves a payment to HOLD
	PlaceHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)

	// ReleaseHold returns a held payment to PENDING
	ReleaseHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

// ReportService defines the read-side analytics operations. Implementations
// fetch a snapshot and compute; they never mutate.
type ReportService interface {
	// PlanStatusReport classifies every matching plan at the reference instant
	PlanStatusReport(ctx context.Context, asOf time.Time, filter PlanFilter) ([]*models.PlanStatusRow, error)

	// RevenueBuckets returns a fixed-length bucketed revenue series
	RevenueBuckets(ctx context.Context, kind engine.BucketKind, windowStart time.Time, bucketCount int, planType models.PlanTypeFilter) ([]models.RevenueBucket, error)

	// RevenueSummary returns the headline revenue scalars including the platform fee
	RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error)

	// RepaymentRate returns the on-time repayment percentage for a period
	RepaymentRate(ctx context.Context, periodStart, periodEnd time.Time) (float64, error)

	// AccountHealth breaks plans down by health tier
	AccountHealth(ctx context.Context) (*models.AccountHealthSummary, error)

	// UpcomingPayments returns the overview card rows with display badges
	UpcomingPayments(ctx context.Context, limit int, today time.Time) ([]*models.UpcomingPaymentRow, error)
}

// ReportCache defines the interface for the optional read-through report cache
type ReportCache interface {
	// Get returns the cached value for key, if present
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key for the given TTL
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	PatientRepository() PatientRepository
	PlanRepository() PlanRepository
	PaymentRepository() PaymentRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
