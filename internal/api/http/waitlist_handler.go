package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/service"
)

// WaitlistHandler serves the applicant self-service endpoints.
type WaitlistHandler struct {
	waitlist   service.WaitlistService
	applicants service.ApplicantService
}

func NewWaitlistHandler(waitlist service.WaitlistService, applicants service.ApplicantService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist, applicants: applicants}
}

// Apply handles POST /api/v1/applicants
func (h *WaitlistHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var in service.ApplicationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.applicants.Apply(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type statusLinkRequest struct {
	Email string `json:"email"`
}

// RequestStatusLink handles POST /api/v1/status-links
func (h *WaitlistHandler) RequestStatusLink(w http.ResponseWriter, r *http.Request) {
	var req statusLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.applicants.RequestStatusLink(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "status link sent"})
}

// Status handles GET /api/v1/status?token=
func (h *WaitlistHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.applicants.GetStatus(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Token links act for one applicant only. Their responses leave out the
// cascaded offer, which belongs to whoever is next in line.
type offerOutcome struct {
	Offer     domain.Offer     `json:"offer"`
	Applicant domain.Applicant `json:"applicant"`
}

type leaveOutcome struct {
	Applicant     domain.Applicant `json:"applicant"`
	DeclinedOffer *domain.Offer    `json:"declined_offer,omitempty"`
}

type leaveRequest struct {
	Token string `json:"token"`
}

// Leave handles POST /api/v1/leave
func (h *WaitlistHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.waitlist.LeaveWaitlist(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaveOutcome{Applicant: res.Applicant, DeclinedOffer: res.DeclinedOffer})
}

// AcceptOffer handles /api/v1/offers/{token}/accept
func (h *WaitlistHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, domain.DecisionAccepted)
}

// DeclineOffer handles /api/v1/offers/{token}/decline
func (h *WaitlistHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, domain.DecisionDeclined)
}

func (h *WaitlistHandler) respond(w http.ResponseWriter, r *http.Request, decision domain.Decision) {
	token := mux.Vars(r)["token"]
	res, err := h.waitlist.RespondToOffer(r.Context(), token, decision)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offerOutcome{Offer: res.Offer, Applicant: res.Applicant})
}
