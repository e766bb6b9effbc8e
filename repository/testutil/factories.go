package testutil

import (
	"time"

	"github.com/google/uuid"

	"planbook/models"
)

// CreateTestPatient creates a test patient with default values
func CreateTestPatient(firstName, lastName string) *models.Patient {
	return &models.Patient{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
	}
}

// CreateTestPlan creates a test plan for the patient with default terms
func CreateTestPlan(patientID uuid.UUID) *models.Plan {
	return &models.Plan{
		ID:               uuid.New(),
		PatientID:        patientID,
		PrincipalCents:   500000,
		DownPaymentCents: 0,
		TermMonths:       12,
		AprBps:           1200,
		BillingDay:       15,
		StartDate:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		PlanType:         models.PlanTypeSelf,
		Health:           models.PlanHealthGood,
	}
}

// CreateTestPayment creates a PENDING test payment for the plan
func CreateTestPayment(planID uuid.UUID, amountCents int64, dueDate time.Time) models.Payment {
	return models.Payment{
		ID:          uuid.New(),
		PlanID:      planID,
		AmountCents: amountCents,
		DueDate:     dueDate,
		Status:      models.PaymentStatusPending,
	}
}

// CreateTestSchedule creates a run of monthly PENDING payments for the plan
func CreateTestSchedule(planID uuid.UUID, count int, amountCents int64, firstDue time.Time) []models.Payment {
	payments := make([]models.Payment, 0, count)
	for i := 0; i < count; i++ {
		payments = append(payments, CreateTestPayment(planID, amountCents, firstDue.AddDate(0, i, 0)))
	}
	return payments
}
