package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every waitlist route. Route names key the security
// levels in config.RouteSecurityConfig.
func NewRouter(wh *WaitlistHandler, ah *AdminHandler, auth *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(auth.Handler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet).Name("health")
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Applicant self-service
	api.HandleFunc("/applicants", wh.Apply).Methods(http.MethodPost).Name("apply")
	api.HandleFunc("/status-links", wh.RequestStatusLink).Methods(http.MethodPost).Name("requestLink")
	api.HandleFunc("/status", wh.Status).Methods(http.MethodGet).Name("status")
	api.HandleFunc("/leave", wh.Leave).Methods(http.MethodPost).Name("leave")
	// GET is allowed so the links in offer emails work when clicked.
	api.HandleFunc("/offers/{token}/accept", wh.AcceptOffer).Methods(http.MethodGet, http.MethodPost).Name("acceptOffer")
	api.HandleFunc("/offers/{token}/decline", wh.DeclineOffer).Methods(http.MethodGet, http.MethodPost).Name("declineOffer")

	// Administration
	api.HandleFunc("/admin/login", ah.Login).Methods(http.MethodPost).Name("adminLogin")
	api.HandleFunc("/admin/applicants", ah.ListApplicants).Methods(http.MethodGet).Name("listApplicants")
	api.HandleFunc("/admin/applicants/{id:[0-9]+}", ah.RemoveApplicant).Methods(http.MethodDelete).Name("removeApplicant")
	api.HandleFunc("/admin/offers/next", ah.OfferNext).Methods(http.MethodPost).Name("offerNext")
	api.HandleFunc("/admin/plots", ah.ListPlots).Methods(http.MethodGet).Name("listPlots")
	api.HandleFunc("/admin/plots", ah.CreatePlot).Methods(http.MethodPost).Name("createPlot")
	api.HandleFunc("/admin/jobs/expire-offers", ah.RunExpireOffers).Methods(http.MethodPost).Name("runExpireOffers")
	api.HandleFunc("/admin/jobs/monthly-report", ah.RunMonthlyReport).Methods(http.MethodPost).Name("runMonthlyReport")
	api.HandleFunc("/admin/notifications/stats", ah.NotificationStats).Methods(http.MethodGet).Name("notificationStats")

	return router
}
