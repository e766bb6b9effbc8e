package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"planbook/database"
	"planbook/models"
	"planbook/service"
)

// PaymentRepository implements the PaymentRepository interface
type PaymentRepository struct {
	q queryable
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{q: db.Pool}
}

// newPaymentRepositoryWithTx creates a new payment repository with a transaction
func newPaymentRepositoryWithTx(tx queryable) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, plan_id, amount_cents, due_date, status, paid_at,
		late_fee_cents, created_at, updated_at`

// GetByID retrieves a payment by id
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)

	var payment models.Payment
	err := scanPayment(r.q.QueryRow(ctx, query, id), &payment)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}

	return &payment, nil
}

// GetByPlan returns a plan's payments ordered by due date
func (r *PaymentRepository) GetByPlan(ctx context.Context, planID uuid.UUID) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE plan_id = $1 ORDER BY due_date`, paymentColumns)

	rows, err := r.q.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for plan %s: %w", planID, err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// GetAll returns all payments, restricted to plans matching the filter
func (r *PaymentRepository) GetAll(ctx context.Context, filter service.PlanFilter) ([]models.Payment, error) {
	where, args := planFilterClause(filter, "pl.")
	query := fmt.Sprintf(`
		SELECT p.id, p.plan_id, p.amount_cents, p.due_date, p.status, p.paid_at,
			p.late_fee_cents, p.created_at, p.updated_at
		FROM payments p
		JOIN payment_plans pl ON pl.id = p.plan_id%s
		ORDER BY p.due_date
	`, where)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// GetByDueDateRange returns payments due within [from, to)
func (r *PaymentRepository) GetByDueDateRange(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE due_date >= $1 AND due_date < $2
		ORDER BY due_date
	`, paymentColumns)

	rows, err := r.q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by due date range: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// MarkPaid transitions a payment to PAID, setting paidAt and the late fee
func (r *PaymentRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, lateFeeCents int64) error {
	query := `
		UPDATE payments
		SET status = 'PAID', paid_at = $1, late_fee_cents = $2, updated_at = NOW()
		WHERE id = $3 AND status != 'PAID'
	`

	result, err := r.q.Exec(ctx, query, paidAt, lateFeeCents, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment %s paid: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found or already paid", id)
	}

	return nil
}

// SetStatus updates a payment's status, clearing paidAt for non-PAID states
func (r *PaymentRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $1, paid_at = CASE WHEN $1 = 'PAID' THEN paid_at ELSE NULL END, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to set status for payment %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", id)
	}

	return nil
}

// GetUpcoming returns payments with their patient names for the overview card,
// unpaid ones first, soonest due date first
func (r *PaymentRepository) GetUpcoming(ctx context.Context, limit int) ([]models.UpcomingPaymentJoin, error) {
	query := `
		SELECT p.id, p.plan_id, p.amount_cents, p.due_date, p.status, p.paid_at,
			p.late_fee_cents, p.created_at, p.updated_at,
			pt.first_name || ' ' || pt.last_name AS patient_name
		FROM payments p
		JOIN payment_plans pl ON pl.id = p.plan_id
		JOIN patients pt ON pt.id = pl.patient_id
		ORDER BY (p.status = 'PAID'), p.due_date
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming payments: %w", err)
	}
	defer rows.Close()

	var joins []models.UpcomingPaymentJoin
	for rows.Next() {
		var j models.UpcomingPaymentJoin
		err := rows.Scan(
			&j.Payment.ID,
			&j.Payment.PlanID,
			&j.Payment.AmountCents,
			&j.Payment.DueDate,
			&j.Payment.Status,
			&j.Payment.PaidAt,
			&j.Payment.LateFeeCents,
			&j.Payment.CreatedAt,
			&j.Payment.UpdatedAt,
			&j.PatientName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upcoming payment: %w", err)
		}
		joins = append(joins, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upcoming payments: %w", err)
	}

	return joins, nil
}

func scanPayment(row pgx.Row, payment *models.Payment) error {
	return row.Scan(
		&payment.ID,
		&payment.PlanID,
		&payment.AmountCents,
		&payment.DueDate,
		&payment.Status,
		&payment.PaidAt,
		&payment.LateFeeCents,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
}

func collectPayments(rows pgx.Rows) ([]models.Payment, error) {
	var payments []models.Payment
	for rows.Next() {
		var payment models.Payment
		if err := scanPayment(rows, &payment); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}
