package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/ingestion"
	"github.com/wakala/settlement/internal/ledger"
	"github.com/wakala/settlement/internal/orchestration"
	"github.com/wakala/settlement/internal/repository"
)

// maxBodyBytes bounds request bodies, transaction batches included.
const maxBodyBytes = 32 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	repos        orchestration.Repos
	syncSvc      *orchestration.Service
	ingestionSvc *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps validation errors to 400 and anything else to 500.
func writeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeSync answers a sync: 422 with the fault report when the batch was
// aborted, 200 otherwise.
func writeSync(w http.ResponseWriter, report domain.Report, v any) {
	status := http.StatusOK
	if report.Aborted() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, v)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.Join(domain.ErrValidation, err)
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD value. Empty means unset; anything
// else malformed is a validation error naming the field.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a YYYY-MM-DD date, got %q", domain.ErrValidation, field, s)
	}
	return &t, nil
}

// dateRange reads the optional from and to query parameters.
func dateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if from, err = parseDate("from", q.Get("from")); err != nil {
		return nil, nil, err
	}
	if to, err = parseDate("to", q.Get("to")); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- IngestTransactions ---

func (h *Handlers) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestBatch(r.Context(), data)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// syncBody is the request body of every sync endpoint. Reconciliation reads
// From and To; the others read Period and an optional entity.
type syncBody struct {
	From       string                  `json:"from"`
	To         string                  `json:"to"`
	Period     string                  `json:"period"`
	EntityID   string                  `json:"entity_id"`
	MerchantID string                  `json:"merchant_id"`
	Overrides  []domain.ManualOverride `json:"overrides"`
}

func (b syncBody) request() (orchestration.SyncRequest, error) {
	p, err := domain.ParsePeriod(b.Period)
	if err != nil {
		return orchestration.SyncRequest{}, errors.Join(domain.ErrValidation, err)
	}
	entity := b.EntityID
	if entity == "" {
		entity = b.MerchantID
	}
	return orchestration.SyncRequest{Period: p, EntityID: entity, Overrides: b.Overrides}, nil
}

// --- Reconciliation ---

func (h *Handlers) SyncReconciliation(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	from, err := parseDate("from", body.From)
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := parseDate("to", body.To)
	if err != nil {
		writeErr(w, err)
		return
	}
	if from == nil || to == nil {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD dates")
		return
	}

	res, err := h.syncSvc.SyncReconciliation(r.Context(), *from, *to, body.Overrides)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSync(w, res.Report, res)
}

func (h *Handlers) ListReconciliation(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	q := r.URL.Query()
	filter := repository.ReconciliationFilter{
		AccountID: q.Get("account_id"),
		Channel:   q.Get("channel"),
		From:      from,
		To:        to,
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	records, total, err := h.repos.Reconciliation.List(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// --- Deposits ---

func (h *Handlers) SyncDeposits(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	req, err := body.request()
	if err != nil {
		writeErr(w, err)
		return
	}

	res, err := h.syncSvc.SyncDeposits(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSync(w, res.Report, res)
}

func (h *Handlers) ListDeposits(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	records, err := h.repos.Deposits.List(r.Context(), repository.DepositFilter{
		MerchantID: r.URL.Query().Get("merchant_id"),
		From:       from,
		To:         to,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   len(records),
	})
}

// --- Ledgers ---

func ledgerType(r *http.Request) (domain.LedgerType, bool) {
	switch t := domain.LedgerType(chi.URLParam(r, "type")); t {
	case domain.LedgerMerchant, domain.LedgerAgent:
		return t, true
	}
	return "", false
}

func (h *Handlers) SyncLedger(w http.ResponseWriter, r *http.Request) {
	t, ok := ledgerType(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger type")
		return
	}

	var body syncBody
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	req, err := body.request()
	if err != nil {
		writeErr(w, err)
		return
	}

	if t == domain.LedgerMerchant {
		res, err := h.syncSvc.SyncMerchantLedger(r.Context(), req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeSync(w, res.Report, res)
		return
	}

	res, err := h.syncSvc.SyncAgentLedger(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeSync(w, res.Report, res)
}

func (h *Handlers) ListLedger(w http.ResponseWriter, r *http.Request) {
	t, ok := ledgerType(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger type")
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	filter := repository.LedgerFilter{
		EntityID: r.URL.Query().Get("entity_id"),
		From:     from,
		To:       to,
	}

	var rows any
	var n int
	if t == domain.LedgerMerchant {
		var merchant []domain.MerchantLedgerRow
		merchant, err = h.repos.Ledgers.ListMerchant(r.Context(), filter)
		rows, n = merchant, len(merchant)
	} else {
		var agent []domain.AgentLedgerRow
		agent, err = h.repos.Ledgers.ListAgent(r.Context(), filter)
		rows, n = agent, len(agent)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ledger": t,
		"rows":   rows,
		"total":  n,
	})
}

func (h *Handlers) GetLedgerSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := ledger.ParseView(q.Get("view"))
	if err != nil {
		writeErr(w, err)
		return
	}
	year := parseIntDefault(q.Get("year"), time.Now().Year())

	summary, err := h.syncSvc.Summary(r.Context(), view, year)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Holidays ---

func (h *Handlers) ListAddOnHolidays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"holidays": h.syncSvc.AddOnHolidays(),
	})
}

func (h *Handlers) ReplaceAddOnHolidays(w http.ResponseWriter, r *http.Request) {
	var entries []calendar.HolidayEntry
	if err := decodeBody(r, &entries); err != nil {
		writeErr(w, err)
		return
	}

	res, err := h.syncSvc.ReplaceAddOnHolidays(r.Context(), entries)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
