package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbook/engine"
	"planbook/models"
	"planbook/service"
)

type mockPlanService struct {
	mock.Mock
}

func (m *mockPlanService) CreatePlan(ctx context.Context, params service.CreatePlanParams) (*models.Plan, []models.Payment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Plan), args.Get(1).([]models.Payment), args.Error(2)
}

func (m *mockPlanService) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, []models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Plan), args.Get(1).([]models.Payment), args.Error(2)
}

func (m *mockPlanService) ListPlans(ctx context.Context, filter service.PlanFilter) ([]*models.Plan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, lateFeeCents int64) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, paidAt, lateFeeCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentService) PlaceHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentService) ReleaseHold(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

type mockReportService struct {
	mock.Mock
}

func (m *mockReportService) PlanStatusReport(ctx context.Context, asOf time.Time, filter service.PlanFilter) ([]*models.PlanStatusRow, error) {
	args := m.Called(ctx, asOf, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlanStatusRow), args.Error(1)
}

func (m *mockReportService) RevenueBuckets(ctx context.Context, kind engine.BucketKind, windowStart time.Time, bucketCount int, planType models.PlanTypeFilter) ([]models.RevenueBucket, error) {
	args := m.Called(ctx, kind, windowStart, bucketCount, planType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RevenueBucket), args.Error(1)
}

func (m *mockReportService) RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RevenueSummary), args.Error(1)
}

func (m *mockReportService) RepaymentRate(ctx context.Context, periodStart, periodEnd time.Time) (float64, error) {
	args := m.Called(ctx, periodStart, periodEnd)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockReportService) AccountHealth(ctx context.Context) (*models.AccountHealthSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountHealthSummary), args.Error(1)
}

func (m *mockReportService) UpcomingPayments(ctx context.Context, limit int, today time.Time) ([]*models.UpcomingPaymentRow, error) {
	args := m.Called(ctx, limit, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UpcomingPaymentRow), args.Error(1)
}

func newTestServer() (*Server, *mockPlanService, *mockPaymentService, *mockReportService) {
	plans := new(mockPlanService)
	payments := new(mockPaymentService)
	reports := new(mockReportService)
	return NewServer(plans, payments, reports), plans, payments, reports
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestServer_CreatePlan_Success(t *testing.T) {
	server, plans, _, _ := newTestServer()

	patientID := uuid.New()
	plan := &models.Plan{
		ID:         uuid.New(),
		PatientID:  patientID,
		TermMonths: 12,
		StartDate:  time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		PlanType:   models.PlanTypeSelf,
		Health:     models.PlanHealthGood,
	}
	schedule := []models.Payment{
		{ID: uuid.New(), PlanID: plan.ID, AmountCents: 46666, DueDate: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), Status: models.PaymentStatusPending},
	}

	plans.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p service.CreatePlanParams) bool {
		return p.PatientID == patientID && p.PrincipalCents == 500000 && p.StartDate.Equal(plan.StartDate)
	})).Return(plan, schedule, nil)

	rec := doRequest(t, server, "POST", "/plans", map[string]any{
		"patientId":      patientID,
		"principalCents": 500000,
		"termMonths":     12,
		"aprBps":         1200,
		"billingDay":     15,
		"startDate":      "2025-01-10",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp planWithScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, plan.ID, resp.Plan.ID)
	assert.Len(t, resp.Payments, 1)
	assert.Equal(t, "2025-02-15", resp.Payments[0].DueDate)
	plans.AssertExpectations(t)
}

func TestServer_CreatePlan_InvalidTerms(t *testing.T) {
	server, plans, _, _ := newTestServer()

	plans.On("CreatePlan", mock.Anything, mock.Anything).
		Return(nil, nil, &engine.InvalidTermsError{Reason: "term must be at least 1 month"})

	rec := doRequest(t, server, "POST", "/plans", map[string]any{
		"patientId":      uuid.New(),
		"principalCents": 500000,
		"termMonths":     0,
		"startDate":      "2025-01-10",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid plan terms")
}

func TestServer_CreatePlan_BadStartDate(t *testing.T) {
	server, plans, _, _ := newTestServer()

	rec := doRequest(t, server, "POST", "/plans", map[string]any{
		"patientId": uuid.New(),
		"startDate": "01/10/2025",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	plans.AssertNotCalled(t, "CreatePlan", mock.Anything, mock.Anything)
}

func TestServer_GetPlan_NotFound(t *testing.T) {
	server, plans, _, _ := newTestServer()

	id := uuid.New()
	plans.On("GetPlan", mock.Anything, id).Return(nil, nil, fmt.Errorf("plan not found"))

	rec := doRequest(t, server, "GET", "/plans/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetPlan_InvalidID(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/plans/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListPlans_FilterFromQuery(t *testing.T) {
	server, plans, _, _ := newTestServer()

	plans.On("ListPlans", mock.Anything, mock.MatchedBy(func(f service.PlanFilter) bool {
		return f.PlanType == models.PlanTypeFilterBacked
	})).Return([]*models.Plan{}, nil)

	rec := doRequest(t, server, "GET", "/plans?planType=backed", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	plans.AssertExpectations(t)
}

func TestServer_ListPlans_InvalidPlanType(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/plans?planType=WEIRD", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Pay_Success(t *testing.T) {
	server, _, payments, _ := newTestServer()

	id := uuid.New()
	paidAt := time.Date(2025, 3, 16, 9, 30, 0, 0, time.UTC)
	paid := &models.Payment{
		ID:           id,
		PlanID:       uuid.New(),
		AmountCents:  46666,
		DueDate:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:       models.PaymentStatusPaid,
		PaidAt:       &paidAt,
		LateFeeCents: 500,
	}

	payments.On("MarkPaid", mock.Anything, id, paidAt, int64(500)).Return(paid, nil)

	rec := doRequest(t, server, "POST", "/payments/"+id.String()+"/pay", map[string]any{
		"paidAt":       paidAt.Format(time.RFC3339),
		"lateFeeCents": 500,
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PAID", resp.Status)
	assert.Equal(t, int64(500), resp.LateFeeCents)
	payments.AssertExpectations(t)
}

func TestServer_Pay_AlreadyPaid_Conflict(t *testing.T) {
	server, _, payments, _ := newTestServer()

	id := uuid.New()
	payments.On("MarkPaid", mock.Anything, id, mock.Anything, int64(0)).
		Return(nil, fmt.Errorf("payment %s is already paid", id))

	rec := doRequest(t, server, "POST", "/payments/"+id.String()+"/pay", map[string]any{})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_HoldAndRelease(t *testing.T) {
	server, _, payments, _ := newTestServer()

	id := uuid.New()
	held := &models.Payment{ID: id, Status: models.PaymentStatusHold, DueDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)}
	released := &models.Payment{ID: id, Status: models.PaymentStatusPending, DueDate: held.DueDate}

	payments.On("PlaceHold", mock.Anything, id).Return(held, nil)
	payments.On("ReleaseHold", mock.Anything, id).Return(released, nil)

	rec := doRequest(t, server, "POST", "/payments/"+id.String()+"/hold", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HOLD")

	rec = doRequest(t, server, "POST", "/payments/"+id.String()+"/release", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PENDING")
}

func TestServer_StatusReport(t *testing.T) {
	server, _, _, reports := newTestServer()

	row := &models.PlanStatusRow{
		Plan:             &models.Plan{ID: uuid.New(), StartDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		Status:           models.PlanStatusDelinquent,
		Risk:             models.RiskLevelHigh,
		ProgressPct:      25,
		OutstandingCents: 150000,
		MaxDaysOverdue:   61,
		PaidCount:        3,
		TotalCount:       12,
	}

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	reports.On("PlanStatusReport", mock.Anything, asOf, mock.Anything).Return([]*models.PlanStatusRow{row}, nil)

	rec := doRequest(t, server, "GET", "/reports/status?asOf=2025-06-01", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []statusRowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "DELINQUENT", resp[0].Status)
	assert.Equal(t, "HIGH", resp[0].Risk)
	assert.Equal(t, 61, resp[0].MaxDaysOverdue)
}

func TestServer_StatusReport_RiskFilter(t *testing.T) {
	server, _, _, reports := newTestServer()

	rows := []*models.PlanStatusRow{
		{Plan: &models.Plan{ID: uuid.New()}, Status: models.PlanStatusActive, Risk: models.RiskLevelLow},
		{Plan: &models.Plan{ID: uuid.New()}, Status: models.PlanStatusDelinquent, Risk: models.RiskLevelHigh},
	}
	reports.On("PlanStatusReport", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	rec := doRequest(t, server, "GET", "/reports/status?asOf=2025-06-01&risk=high", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []statusRowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "HIGH", resp[0].Risk)
}

func TestServer_StatusReport_InvalidRisk(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/reports/status?risk=EXTREME", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RevenueBuckets(t *testing.T) {
	server, _, _, reports := newTestServer()

	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := []models.RevenueBucket{
		{Start: windowStart, Amounts: map[models.PlanType]int64{models.PlanTypeSelf: 120, models.PlanTypeBacked: 80}},
	}

	reports.On("RevenueBuckets", mock.Anything, engine.BucketWeek, windowStart, 6, models.PlanTypeFilterAll).
		Return(buckets, nil)

	rec := doRequest(t, server, "GET", "/reports/revenue?kind=WEEK&windowStart=2025-01-01&buckets=6", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []revenueBucketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int64(200), resp[0].Total)
	assert.Equal(t, int64(120), resp[0].Amounts["SELF"])
}

func TestServer_RevenueBuckets_BadKind(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/reports/revenue?kind=DAY&windowStart=2025-01-01", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RepaymentRate(t *testing.T) {
	server, _, _, reports := newTestServer()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	reports.On("RepaymentRate", mock.Anything, start, end).Return(66.6667, nil)

	rec := doRequest(t, server, "GET", "/reports/repayment-rate?start=2025-01-01&end=2025-04-01", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "66.6667")
}

func TestServer_RepaymentRate_EndBeforeStart(t *testing.T) {
	server, _, _, _ := newTestServer()

	rec := doRequest(t, server, "GET", "/reports/repayment-rate?start=2025-04-01&end=2025-01-01", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AccountHealth(t *testing.T) {
	server, _, _, reports := newTestServer()

	reports.On("AccountHealth", mock.Anything).Return(&models.AccountHealthSummary{
		TotalPlans:          3,
		TotalPrincipalCents: 900000,
		ByHealth: map[models.PlanHealth]int{
			models.PlanHealthGood: 2,
			models.PlanHealthPoor: 1,
		},
	}, nil)

	rec := doRequest(t, server, "GET", "/reports/account-health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp accountHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalPlans)
	assert.Equal(t, 2, resp.ByHealth["GOOD"])
}

func TestServer_UpcomingPayments(t *testing.T) {
	server, _, _, reports := newTestServer()

	rows := []*models.UpcomingPaymentRow{
		{
			PaymentID:   uuid.New(),
			PlanID:      uuid.New(),
			PatientName: "Ada Lovelace",
			Badge:       models.PaymentBadgeDueToday,
			AmountCents: 46666,
			DueDate:     time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	reports.On("UpcomingPayments", mock.Anything, 5, mock.Anything).Return(rows, nil)

	rec := doRequest(t, server, "GET", "/reports/upcoming?limit=5", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []upcomingPaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Due Today", resp[0].Badge)
	assert.Equal(t, "Ada Lovelace", resp[0].PatientName)
	reports.AssertExpectations(t)
}
