package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"planbook/engine"
	"planbook/models"
	"planbook/service"
)

const dateLayout = "2006-01-02"

// Server exposes the plan, payment and report services over HTTP
type Server struct {
	plans    service.PlanService
	payments service.PaymentService
	reports  service.ReportService
}

// NewServer creates a new API server
func NewServer(plans service.PlanService, payments service.PaymentService, reports service.ReportService) *Server {
	return &Server{
		plans:    plans,
		payments: payments,
		reports:  reports,
	}
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	router.HandleFunc("/plans", s.createPlanHandler).Methods("POST")
	router.HandleFunc("/plans", s.listPlansHandler).Methods("GET")
	router.HandleFunc("/plans/{id}", s.getPlanHandler).Methods("GET")

	router.HandleFunc("/payments/{id}/pay", s.payHandler).Methods("POST")
	router.HandleFunc("/payments/{id}/hold", s.holdHandler).Methods("POST")
	router.HandleFunc("/payments/{id}/release", s.releaseHandler).Methods("POST")

	router.HandleFunc("/reports/status", s.statusReportHandler).Methods("GET")
	router.HandleFunc("/reports/revenue", s.revenueBucketsHandler).Methods("GET")
	router.HandleFunc("/reports/summary", s.revenueSummaryHandler).Methods("GET")
	router.HandleFunc("/reports/repayment-rate", s.repaymentRateHandler).Methods("GET")
	router.HandleFunc("/reports/account-health", s.accountHealthHandler).Methods("GET")
	router.HandleFunc("/reports/upcoming", s.upcomingPaymentsHandler).Methods("GET")

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createPlanRequest struct {
	PatientID        uuid.UUID `json:"patientId"`
	PrincipalCents   int64     `json:"principalCents"`
	DownPaymentCents int64     `json:"downPaymentCents"`
	TermMonths       int       `json:"termMonths"`
	AprBps           int64     `json:"aprBps"`
	BillingDay       int       `json:"billingDay"`
	StartDate        string    `json:"startDate"`
	PlanType         string    `json:"planType"`
	Health           string    `json:"health"`
	OnHold           bool      `json:"onHold"`
}

type planResponse struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patientId"`
	PrincipalCents   int64     `json:"principalCents"`
	DownPaymentCents int64     `json:"downPaymentCents"`
	TermMonths       int       `json:"termMonths"`
	AprBps           int64     `json:"aprBps"`
	BillingDay       int       `json:"billingDay"`
	StartDate        string    `json:"startDate"`
	PlanType         string    `json:"planType"`
	Health           string    `json:"health"`
	OnHold           bool      `json:"onHold"`
}

type paymentResponse struct {
	ID           uuid.UUID  `json:"id"`
	PlanID       uuid.UUID  `json:"planId"`
	AmountCents  int64      `json:"amountCents"`
	DueDate      string     `json:"dueDate"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paidAt,omitempty"`
	LateFeeCents int64      `json:"lateFeeCents"`
}

type planWithScheduleResponse struct {
	Plan     planResponse      `json:"plan"`
	Payments []paymentResponse `json:"payments"`
}

func toPlanResponse(plan *models.Plan) planResponse {
	return planResponse{
		ID:               plan.ID,
		PatientID:        plan.PatientID,
		PrincipalCents:   plan.PrincipalCents,
		DownPaymentCents: plan.DownPaymentCents,
		TermMonths:       plan.TermMonths,
		AprBps:           plan.AprBps,
		BillingDay:       plan.BillingDay,
		StartDate:        plan.StartDate.Format(dateLayout),
		PlanType:         string(plan.PlanType),
		Health:           string(plan.Health),
		OnHold:           plan.OnHold,
	}
}

func toPaymentResponses(payments []models.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		out = append(out, paymentResponse{
			ID:           p.ID,
			PlanID:       p.PlanID,
			AmountCents:  p.AmountCents,
			DueDate:      p.DueDate.Format(dateLayout),
			Status:       string(p.Status),
			PaidAt:       p.PaidAt,
			LateFeeCents: p.LateFeeCents,
		})
	}
	return out
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		http.Error(w, "invalid startDate, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	plan, payments, err := s.plans.CreatePlan(r.Context(), service.CreatePlanParams{
		PatientID:        req.PatientID,
		PrincipalCents:   req.PrincipalCents,
		DownPaymentCents: req.DownPaymentCents,
		TermMonths:       req.TermMonths,
		AprBps:           req.AprBps,
		BillingDay:       req.BillingDay,
		StartDate:        startDate,
		PlanType:         models.PlanType(req.PlanType),
		Health:           models.PlanHealth(req.Health),
		OnHold:           req.OnHold,
	})
	if err != nil {
		var invalid *engine.InvalidTermsError
		if errors.As(err, &invalid) {
			http.Error(w, invalid.Error(), http.StatusBadRequest)
			return
		}
		if isNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.WithError(err).Error("Failed to create plan")
		http.Error(w, "failed to create plan", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, planWithScheduleResponse{
		Plan:     toPlanResponse(plan),
		Payments: toPaymentResponses(payments),
	})
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := planFilterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plans, err := s.plans.ListPlans(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to list plans")
		http.Error(w, "failed to list plans", http.StatusInternalServerError)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, toPlanResponse(plan))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid plan id", http.StatusBadRequest)
		return
	}

	plan, payments, err := s.plans.GetPlan(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("Failed to get plan")
		http.Error(w, "failed to get plan", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, planWithScheduleResponse{
		Plan:     toPlanResponse(plan),
		Payments: toPaymentResponses(payments),
	})
}

type payRequest struct {
	PaidAt       string `json:"paidAt"`
	LateFeeCents int64  `json:"lateFeeCents"`
}

func (s *Server) payHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != "" {
		paidAt, err = time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			http.Error(w, "invalid paidAt, expected RFC 3339", http.StatusBadRequest)
			return
		}
	}

	payment, err := s.payments.MarkPaid(r.Context(), id, paidAt, req.LateFeeCents)
	if err != nil {
		s.writePaymentError(w, err, "Failed to mark payment paid")
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponses([]models.Payment{*payment})[0])
}

func (s *Server) holdHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(w, r, s.payments.PlaceHold, "Failed to place hold")
}

func (s *Server) releaseHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(w, r, s.payments.ReleaseHold, "Failed to release hold")
}

func (s *Server) transitionHandler(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*models.Payment, error), logMsg string) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	payment, err := fn(r.Context(), id)
	if err != nil {
		s.writePaymentError(w, err, logMsg)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponses([]models.Payment{*payment})[0])
}

func (s *Server) writePaymentError(w http.ResponseWriter, err error, logMsg string) {
	if isNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if strings.Contains(err.Error(), "already paid") || strings.Contains(err.Error(), "cannot be negative") {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	log.WithError(err).Error(logMsg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

type statusRowResponse struct {
	Plan             planResponse `json:"plan"`
	Status           string       `json:"status"`
	Risk             string       `json:"risk"`
	ProgressPct      int          `json:"progressPct"`
	OutstandingCents int64        `json:"outstandingCents"`
	MaxDaysOverdue   int          `json:"maxDaysOverdue"`
	PaidCount        int          `json:"paidCount"`
	TotalCount       int          `json:"totalCount"`
}

func (s *Server) statusReportHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := planFilterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("asOf"); v != "" {
		asOf, err = time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "invalid asOf, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	// Status and risk are derived per plan, so those filters apply after
	// classification rather than in the storage query
	statusFilter, err := statusFilterFromQuery(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	riskFilter, err := riskFilterFromQuery(r.URL.Query().Get("risk"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.reports.PlanStatusReport(r.Context(), asOf, filter)
	if err != nil {
		log.WithError(err).Error("Failed to build status report")
		http.Error(w, "failed to build status report", http.StatusInternalServerError)
		return
	}

	out := make([]statusRowResponse, 0, len(rows))
	for _, row := range rows {
		if statusFilter != "" && row.Status != statusFilter {
			continue
		}
		if riskFilter != "" && row.Risk != riskFilter {
			continue
		}
		out = append(out, statusRowResponse{
			Plan:             toPlanResponse(row.Plan),
			Status:           string(row.Status),
			Risk:             string(row.Risk),
			ProgressPct:      row.ProgressPct,
			OutstandingCents: row.OutstandingCents,
			MaxDaysOverdue:   row.MaxDaysOverdue,
			PaidCount:        row.PaidCount,
			TotalCount:       row.TotalCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type revenueBucketResponse struct {
	Start   string           `json:"start"`
	Amounts map[string]int64 `json:"amounts"`
	Total   int64            `json:"total"`
}

func (s *Server) revenueBucketsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := engine.BucketMonth
	if v := q.Get("kind"); v != "" {
		switch engine.BucketKind(strings.ToUpper(v)) {
		case engine.BucketWeek:
			kind = engine.BucketWeek
		case engine.BucketMonth:
			kind = engine.BucketMonth
		default:
			http.Error(w, "invalid kind, expected WEEK or MONTH", http.StatusBadRequest)
			return
		}
	}

	windowStart, err := time.Parse(dateLayout, q.Get("windowStart"))
	if err != nil {
		http.Error(w, "invalid windowStart, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	bucketCount := 12
	if v := q.Get("buckets"); v != "" {
		bucketCount, err = strconv.Atoi(v)
		if err != nil || bucketCount < 1 {
			http.Error(w, "invalid buckets", http.StatusBadRequest)
			return
		}
	}

	planType, err := planTypeFilterFromQuery(q.Get("planType"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := s.reports.RevenueBuckets(r.Context(), kind, windowStart, bucketCount, planType)
	if err != nil {
		log.WithError(err).Error("Failed to build revenue buckets")
		http.Error(w, "failed to build revenue buckets", http.StatusInternalServerError)
		return
	}

	out := make([]revenueBucketResponse, 0, len(buckets))
	for i := range buckets {
		b := &buckets[i]
		amounts := make(map[string]int64, len(b.Amounts))
		for planType, amount := range b.Amounts {
			amounts[string(planType)] = amount
		}
		out = append(out, revenueBucketResponse{
			Start:   b.Start.Format(dateLayout),
			Amounts: amounts,
			Total:   b.Total(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type revenueSummaryResponse struct {
	AllTimeRevenueCents  int64   `json:"allTimeRevenueCents"`
	YTDRevenueCents      int64   `json:"ytdRevenueCents"`
	PriorYTDRevenueCents int64   `json:"priorYtdRevenueCents"`
	YoYDeltaPct          float64 `json:"yoyDeltaPct"`
	PlatformFeeCents     int64   `json:"platformFeeCents"`
}

func (s *Server) revenueSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.RevenueSummary(r.Context(), time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to build revenue summary")
		http.Error(w, "failed to build revenue summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, revenueSummaryResponse{
		AllTimeRevenueCents:  summary.AllTimeRevenueCents,
		YTDRevenueCents:      summary.YTDRevenueCents,
		PriorYTDRevenueCents: summary.PriorYTDRevenueCents,
		YoYDeltaPct:          summary.YoYDeltaPct,
		PlatformFeeCents:     summary.PlatformFeeCents,
	})
}

func (s *Server) repaymentRateHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(dateLayout, q.Get("start"))
	if err != nil {
		http.Error(w, "invalid start, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(dateLayout, q.Get("end"))
	if err != nil {
		http.Error(w, "invalid end, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end must be after start", http.StatusBadRequest)
		return
	}

	rate, err := s.reports.RepaymentRate(r.Context(), start, end)
	if err != nil {
		log.WithError(err).Error("Failed to compute repayment rate")
		http.Error(w, "failed to compute repayment rate", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"repaymentRatePct": rate})
}

type accountHealthResponse struct {
	TotalPlans          int            `json:"totalPlans"`
	TotalPrincipalCents int64          `json:"totalPrincipalCents"`
	ByHealth            map[string]int `json:"byHealth"`
}

func (s *Server) accountHealthHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.AccountHealth(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to build account health summary")
		http.Error(w, "failed to build account health summary", http.StatusInternalServerError)
		return
	}

	byHealth := make(map[string]int, len(summary.ByHealth))
	for health, count := range summary.ByHealth {
		byHealth[string(health)] = count
	}
	writeJSON(w, http.StatusOK, accountHealthResponse{
		TotalPlans:          summary.TotalPlans,
		TotalPrincipalCents: summary.TotalPrincipalCents,
		ByHealth:            byHealth,
	})
}

type upcomingPaymentResponse struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	PlanID      uuid.UUID `json:"planId"`
	PatientName string    `json:"patientName"`
	Badge       string    `json:"badge"`
	AmountCents int64     `json:"amountCents"`
	DueDate     string    `json:"dueDate"`
}

func (s *Server) upcomingPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	rows, err := s.reports.UpcomingPayments(r.Context(), limit, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to get upcoming payments")
		http.Error(w, "failed to get upcoming payments", http.StatusInternalServerError)
		return
	}

	out := make([]upcomingPaymentResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, upcomingPaymentResponse{
			PaymentID:   row.PaymentID,
			PlanID:      row.PlanID,
			PatientName: row.PatientName,
			Badge:       string(row.Badge),
			AmountCents: row.AmountCents,
			DueDate:     row.DueDate.Format(dateLayout),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func planFilterFromQuery(r *http.Request) (service.PlanFilter, error) {
	q := r.URL.Query()

	planType, err := planTypeFilterFromQuery(q.Get("planType"))
	if err != nil {
		return service.PlanFilter{}, err
	}
	filter := service.PlanFilter{PlanType: planType}

	if v := q.Get("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return service.PlanFilter{}, fmt.Errorf("invalid patientId")
		}
		filter.PatientID = &id
	}

	if v := q.Get("onHold"); v != "" {
		onHold, err := strconv.ParseBool(v)
		if err != nil {
			return service.PlanFilter{}, fmt.Errorf("invalid onHold")
		}
		filter.OnHold = &onHold
	}

	return filter, nil
}

func statusFilterFromQuery(v string) (models.PlanStatus, error) {
	switch models.PlanStatus(strings.ToUpper(v)) {
	case "":
		return "", nil
	case models.PlanStatusActive, models.PlanStatusHold, models.PlanStatusDelinquent, models.PlanStatusPaid:
		return models.PlanStatus(strings.ToUpper(v)), nil
	default:
		return "", fmt.Errorf("invalid status, expected ACTIVE, HOLD, DELINQUENT or PAID")
	}
}

func riskFilterFromQuery(v string) (models.RiskLevel, error) {
	switch models.RiskLevel(strings.ToUpper(v)) {
	case "":
		return "", nil
	case models.RiskLevelLow, models.RiskLevelMedium, models.RiskLevelHigh:
		return models.RiskLevel(strings.ToUpper(v)), nil
	default:
		return "", fmt.Errorf("invalid risk, expected LOW, MEDIUM or HIGH")
	}
}

func planTypeFilterFromQuery(v string) (models.PlanTypeFilter, error) {
	switch models.PlanTypeFilter(strings.ToUpper(v)) {
	case "", models.PlanTypeFilterAll:
		return models.PlanTypeFilterAll, nil
	case models.PlanTypeFilterSelf:
		return models.PlanTypeFilterSelf, nil
	case models.PlanTypeFilterBacked:
		return models.PlanTypeFilterBacked, nil
	default:
		return "", fmt.Errorf("invalid planType, expected ALL, SELF or BACKED")
	}
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}
