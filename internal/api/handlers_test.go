package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/ingestion"
	"github.com/wakala/settlement/internal/orchestration"
	"github.com/wakala/settlement/internal/repository"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := orchestration.Repos{
		Transactions:   repository.NewTransactionRepo(db),
		Reconciliation: repository.NewReconciliationRepo(db),
		Deposits:       repository.NewDepositRepo(db),
		Ledgers:        repository.NewLedgerRepo(db),
		Holidays:       repository.NewHolidayRepo(db),
	}
	svc := orchestration.NewService(repos, calendar.NewHolidaySet(calendar.FixedHolidays(), nil), orchestration.Options{})
	srv := httptest.NewServer(NewRouter(repos, svc, ingestion.NewService(repos.Transactions, time.UTC)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestIngestAndReconcile(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/v1/transactions", `{
		"source": "kira",
		"transactions": [{"id": "k1", "account_id": "acc-1", "transaction_date": "2026-01-05", "channel": "FPX", "amount": 110}]
	}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["records_ingested"])

	status, _ = do(t, srv, http.MethodPost, "/api/v1/transactions", `{
		"source": "pg",
		"transactions": [{"id": "p1", "account_id": "acc-1", "transaction_date": "2026-01-05", "channel": "fpx", "amount": 100}]
	}`)
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, srv, http.MethodPost, "/api/v1/reconciliation/sync", `{"from": "2026-01-01", "to": "2026-01-31"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["persisted"])

	status, body = do(t, srv, http.MethodGet, "/api/v1/reconciliation?account_id=acc-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total"])
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, 10.0, records[0].(map[string]any)["daily_variance"])
}

func TestIngestRejectsUnknownSource(t *testing.T) {
	srv := newTestServer(t)
	status, body := do(t, srv, http.MethodPost, "/api/v1/transactions", `{"source": "bank", "transactions": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown source")
}

func TestSyncValidation(t *testing.T) {
	srv := newTestServer(t)

	status, _ := do(t, srv, http.MethodPost, "/api/v1/reconciliation/sync", `{"from": "2026-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/deposits/sync", `{"period": "2026/02"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/ledgers/merchant/sync", `{"period": "2026-02", "overrides": [{"row_id": "x", "fields": {}}]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/ledgers/broker/sync", `{"period": "2026-02"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListRejectsMalformedDates(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/v1/reconciliation?from=05-01-2026",
		"/api/v1/deposits?to=2026-13-01",
		"/api/v1/ledgers/merchant?from=yesterday",
	} {
		status, body := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Contains(t, body["error"], "YYYY-MM-DD", path)
	}

	status, _ := do(t, srv, http.MethodGet, "/api/v1/reconciliation?from=2026-01-01&to=2026-01-31", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestLedgerSyncDataGapIsUnprocessable(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/v1/ledgers/agent/sync", `{"period": "2026-02", "entity_id": "a1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	faults := body["report"].(map[string]any)["faults"].([]any)
	require.Len(t, faults, 1)
	assert.Equal(t, "DATA_GAP", faults[0].(map[string]any)["kind"])
	assert.Equal(t, "BATCH", faults[0].(map[string]any)["scope"])
}

func TestAddOnHolidays(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPut, "/api/v1/holidays/add-on", `[
		{"date": "2026-01-09", "description": "state holiday"},
		{"date": "9 Jan", "description": "bad"}
	]`)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["accepted"], 1)
	assert.Len(t, body["report"].(map[string]any)["faults"], 1)

	status, body = do(t, srv, http.MethodGet, "/api/v1/holidays/add-on", "")
	require.Equal(t, http.StatusOK, status)
	holidays := body["holidays"].([]any)
	require.Len(t, holidays, 1)
	assert.Equal(t, "state holiday", holidays[0].(map[string]any)["description"])
}

func TestLedgerSummary(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/api/v1/ledgers/summary?view=payout_pool&year=2026", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2026.0, body["year"])
	assert.Equal(t, "payout_pool", body["view"])

	status, _ = do(t, srv, http.MethodGet, "/api/v1/ledgers/summary?view=banks", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
