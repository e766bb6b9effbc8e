package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"planbook/database"
	"planbook/models"
	"planbook/service"
)

// PlanRepository implements the PlanRepository interface
type PlanRepository struct {
	q queryable
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{q: db.Pool}
}

// newPlanRepositoryWithTx creates a new plan repository with a transaction
func newPlanRepositoryWithTx(tx queryable) *PlanRepository {
	return &PlanRepository{q: tx}
}

const planColumns = `id, patient_id, principal_cents, down_payment_cents, term_months,
		apr_bps, billing_day, start_date, plan_type, health, on_hold, created_at, updated_at`

// CreateWithPayments persists a plan and its payment schedule. Callers must
// run this inside a transaction so the plan never appears without its schedule.
func (r *PlanRepository) CreateWithPayments(ctx context.Context, plan *models.Plan, payments []models.Payment) error {
	planQuery := `
		INSERT INTO payment_plans (id, patient_id, principal_cents, down_payment_cents,
			term_months, apr_bps, billing_day, start_date, plan_type, health, on_hold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, planQuery,
		plan.ID,
		plan.PatientID,
		plan.PrincipalCents,
		plan.DownPaymentCents,
		plan.TermMonths,
		plan.AprBps,
		plan.BillingDay,
		plan.StartDate,
		plan.PlanType,
		plan.Health,
		plan.OnHold,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan %s: %w", plan.ID, err)
	}

	paymentQuery := `
		INSERT INTO payments (id, plan_id, amount_cents, due_date, status, late_fee_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for i := range payments {
		p := &payments[i]
		if _, err := r.q.Exec(ctx, paymentQuery,
			p.ID, p.PlanID, p.AmountCents, p.DueDate, p.Status, p.LateFeeCents,
		); err != nil {
			return fmt.Errorf("failed to create payment %d of plan %s: %w", i+1, plan.ID, err)
		}
	}

	return nil
}

// GetByID retrieves a plan by id
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_plans WHERE id = $1`, planColumns)

	plan, err := scanPlan(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}

	return plan, nil
}

// GetAll returns plans matching the filter, newest first
func (r *PlanRepository) GetAll(ctx context.Context, filter service.PlanFilter) ([]*models.Plan, error) {
	where, args := planFilterClause(filter, "")
	query := fmt.Sprintf(`SELECT %s FROM payment_plans%s ORDER BY created_at DESC`, planColumns, where)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	return plans, nil
}

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var plan models.Plan
	err := row.Scan(
		&plan.ID,
		&plan.PatientID,
		&plan.PrincipalCents,
		&plan.DownPaymentCents,
		&plan.TermMonths,
		&plan.AprBps,
		&plan.BillingDay,
		&plan.StartDate,
		&plan.PlanType,
		&plan.Health,
		&plan.OnHold,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// planFilterClause builds a WHERE clause for the filter over the payment_plans
// table. Placeholders start at $1; prefix qualifies columns when the table is
// aliased in a join.
func planFilterClause(filter service.PlanFilter, prefix string) (string, []any) {
	var conds []string
	var args []any

	if filter.PlanType != "" && filter.PlanType != models.PlanTypeFilterAll {
		args = append(args, string(filter.PlanType))
		conds = append(conds, fmt.Sprintf("%splan_type = $%d", prefix, len(args)))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, fmt.Sprintf("%spatient_id = $%d", prefix, len(args)))
	}
	if filter.OnHold != nil {
		args = append(args, *filter.OnHold)
		conds = append(conds, fmt.Sprintf("%son_hold = $%d", prefix, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}

	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}
