package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"planbook/database"
	"planbook/models"
)

// PatientRepository implements the PatientRepository interface
type PatientRepository struct {
	q queryable
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *database.DB) *PatientRepository {
	return &PatientRepository{q: db.Pool}
}

// newPatientRepositoryWithTx creates a new patient repository with a transaction
func newPatientRepositoryWithTx(tx queryable) *PatientRepository {
	return &PatientRepository{q: tx}
}

// Create creates a new patient
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	query := `
		INSERT INTO patients (id, first_name, last_name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, patient.ID, patient.FirstName, patient.LastName).Scan(
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient %s: %w", patient.ID, err)
	}

	return nil
}

// GetByID retrieves a patient by id
func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	query := `
		SELECT id, first_name, last_name, created_at, updated_at
		FROM patients
		WHERE id = $1
	`

	var patient models.Patient
	err := r.q.QueryRow(ctx, query, id).Scan(
		&patient.ID,
		&patient.FirstName,
		&patient.LastName,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %s: %w", id, err)
	}

	return &patient, nil
}

// GetAll returns all patients ordered by last name
func (r *PatientRepository) GetAll(ctx context.Context) ([]*models.Patient, error) {
	query := `
		SELECT id, first_name, last_name, created_at, updated_at
		FROM patients
		ORDER BY last_name, first_name
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all patients: %w", err)
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		var patient models.Patient
		err := rows.Scan(
			&patient.ID,
			&patient.FirstName,
			&patient.LastName,
			&patient.CreatedAt,
			&patient.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, &patient)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}

	return patients, nil
}
