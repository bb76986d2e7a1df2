package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/notify"
	"plotwaitlist-backend/internal/security"
	"plotwaitlist-backend/internal/service"
)

// StatsSource reports notification delivery counters.
type StatsSource interface {
	Stats() notify.Stats
}

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	waitlist     service.WaitlistService
	applicants   service.ApplicantService
	plots        service.PlotService
	tokenManager security.TokenManager
	stats        StatsSource
}

func NewAdminHandler(
	waitlist service.WaitlistService,
	applicants service.ApplicantService,
	plots service.PlotService,
	tokenManager security.TokenManager,
	stats StatsSource,
) *AdminHandler {
	return &AdminHandler{
		waitlist:     waitlist,
		applicants:   applicants,
		plots:        plots,
		tokenManager: tokenManager,
		stats:        stats,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login handles POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, expires, err := h.tokenManager.Login(req.Email, req.Password)
	if err != nil {
		logger.Warn("Admin login rejected", "email", req.Email)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: expires})
}

type applicantRow struct {
	domain.Applicant
	StatusLabel string `json:"status_label"`
}

// ListApplicants handles GET /api/v1/admin/applicants
func (h *AdminHandler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	list, err := h.applicants.ListApplicants(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]applicantRow, 0, len(list))
	for _, a := range list {
		rows = append(rows, applicantRow{Applicant: a, StatusLabel: a.Status.Label()})
	}
	writeJSON(w, http.StatusOK, rows)
}

// RemoveApplicant handles DELETE /api/v1/admin/applicants/{id}
func (h *AdminHandler) RemoveApplicant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, &domain.ValidationError{Fields: []domain.FieldError{{Field: "id", Rule: "numeric"}}})
		return
	}

	res, err := h.waitlist.RemoveApplicant(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("Applicant removed by admin", "applicantID", id, "admin", AdminEmail(r.Context()))
	writeJSON(w, http.StatusOK, res)
}

type offerNextRequest struct {
	PlotID *int64 `json:"plot_id"`
}

// OfferNext handles POST /api/v1/admin/offers/next
func (h *AdminHandler) OfferNext(w http.ResponseWriter, r *http.Request) {
	var req offerNextRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	res, err := h.waitlist.OfferNext(r.Context(), req.PlotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.NoEligibleApplicant {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// ListPlots handles GET /api/v1/admin/plots
func (h *AdminHandler) ListPlots(w http.ResponseWriter, r *http.Request) {
	plots, err := h.plots.ListPlots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if plots == nil {
		plots = []domain.Plot{}
	}
	writeJSON(w, http.StatusOK, plots)
}

// CreatePlot handles POST /api/v1/admin/plots
func (h *AdminHandler) CreatePlot(w http.ResponseWriter, r *http.Request) {
	var plot domain.Plot
	if err := decodeJSON(r, &plot); err != nil {
		writeError(w, r, err)
		return
	}
	plot.ID = 0
	if err := h.plots.CreatePlot(r.Context(), &plot); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plot)
}

type expireResponse struct {
	Expired []int64 `json:"expired_applicant_ids"`
	Errors  string  `json:"errors,omitempty"`
}

// RunExpireOffers handles POST /api/v1/admin/jobs/expire-offers. Per-offer
// failures are reported alongside the offers that did expire.
func (h *AdminHandler) RunExpireOffers(w http.ResponseWriter, r *http.Request) {
	expired, err := h.waitlist.ExpireOffers(r.Context())
	resp := expireResponse{Expired: expired}
	if resp.Expired == nil {
		resp.Expired = []int64{}
	}
	if err != nil {
		if len(expired) == 0 && !isJoined(err) {
			writeError(w, r, err)
			return
		}
		resp.Errors = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func isJoined(err error) bool {
	var joined interface{ Unwrap() []error }
	return errors.As(err, &joined)
}

// RunMonthlyReport handles POST /api/v1/admin/jobs/monthly-report
func (h *AdminHandler) RunMonthlyReport(w http.ResponseWriter, r *http.Request) {
	n, err := h.waitlist.SendMonthlyReminders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reminders": n})
}

// NotificationStats handles GET /api/v1/admin/notifications/stats
func (h *AdminHandler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusOK, notify.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}
