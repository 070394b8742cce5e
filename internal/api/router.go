package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wakala/settlement/internal/ingestion"
	"github.com/wakala/settlement/internal/orchestration"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	repos orchestration.Repos,
	syncSvc *orchestration.Service,
	ingestionSvc *ingestion.Service,
) http.Handler {
	h := &Handlers{
		repos:        repos,
		syncSvc:      syncSvc,
		ingestionSvc: ingestionSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion.
		r.Post("/transactions", h.IngestTransactions)

		// Reconciliation.
		r.Post("/reconciliation/sync", h.SyncReconciliation)
		r.Get("/reconciliation", h.ListReconciliation)

		// Deposits.
		r.Post("/deposits/sync", h.SyncDeposits)
		r.Get("/deposits", h.ListDeposits)

		// Ledgers.
		r.Get("/ledgers/summary", h.GetLedgerSummary)
		r.Post("/ledgers/{type}/sync", h.SyncLedger)
		r.Get("/ledgers/{type}", h.ListLedger)

		// Holidays.
		r.Get("/holidays/add-on", h.ListAddOnHolidays)
		r.Put("/holidays/add-on", h.ReplaceAddOnHolidays)
	})

	return r
}
