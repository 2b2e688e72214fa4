/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the front-desk UI

ROUTE GROUPS:
  /api/patients/*       Patient records and per-patient history
  /api/treatments/*     Treatment plans and balances
  /api/consultations/*  Consultations and fee-policy decisions
  /api/payments/*       Payment ledger mutations and audit history
  /api/appointments/*   Slot booking and conflict checks
  /api/admin/*          Integrity sweep report
  /health               Liveness probe

SECURITY NOTE:
  No authentication middleware. Actor identity arrives via X-Actor-Id /
  X-Actor-Role headers set by an upstream gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Patient routes
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.ListPatients)
			r.Post("/", h.CreatePatient)
			r.Get("/{id}", h.GetPatient)
			r.Get("/{id}/payments", h.ListPatientPayments)
			r.Get("/{id}/treatments", h.ListPatientTreatments)
			r.Get("/{id}/appointments", h.ListPatientAppointments)
		})

		// Treatment routes
		r.Route("/treatments", func(r chi.Router) {
			r.Post("/", h.CreateTreatment)
			r.Get("/{id}", h.GetTreatment)
			r.Put("/{id}", h.UpdateTreatment)
			r.Get("/{id}/balance", h.GetTreatmentBalance)
		})

		// Consultation routes
		r.Route("/consultations", func(r chi.Router) {
			r.Post("/", h.CreateConsultation)
			r.Get("/{id}", h.GetConsultation)
			r.Get("/{id}/balance", h.GetConsultationBalance)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.AmendPayment)
			r.Delete("/{id}", h.DeletePayment)
			r.Post("/{id}/paid", h.MarkPaymentPaid)
			r.Get("/{id}/audit", h.GetPaymentAudit)
		})

		// Appointment routes
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.CreateAppointment)
			r.Get("/conflict", h.CheckSlot)
			r.Get("/{id}", h.GetAppointment)
			r.Put("/{id}", h.UpdateAppointment)
		})

		// Admin routes
		r.Get("/admin/integrity", h.IntegrityReport)
	})

	return r
}
