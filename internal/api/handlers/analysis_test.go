package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wonny/oracle/internal/analysis"
	"github.com/wonny/oracle/internal/analysis/prompt"
	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/analysis/runner"
	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/analysis/store"
	"github.com/wonny/oracle/internal/analysis/translate"
	"github.com/wonny/oracle/internal/api"
	"github.com/wonny/oracle/internal/api/handlers"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

const testToken = "test-token"

type stubProvider struct {
	name     string
	model    string
	response string
	err      error
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.model }

func (s *stubProvider) Complete(ctx context.Context, p string) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

func newTestServer(t *testing.T, primary, secondary *stubProvider) (http.Handler, *store.MemoryStore) {
	t.Helper()

	reg := schema.NewRegistry()
	log := logger.NewNop()

	providers := map[string]provider.Provider{
		primary.name:   primary,
		secondary.name: secondary,
	}
	run := runner.New(reg, providers, primary.name, secondary.name, log)
	translator := translate.New(nil, reg, "Korean", false, log)

	st := store.NewMemoryStore()
	svc := analysis.NewService(prompt.NewBuilder(reg), run, translator, st, nil, contracts.PolicyAuto, log)
	query := analysis.NewQueryService(st, log)

	handler := handlers.NewAnalysisHandler(svc, query, nil, nil, log)
	router := api.NewRouter(handler, nil, nil, nil, testToken, log)
	return router, st
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const etfFlowsResponse = `{"as_of":"2025-01-15","items":[{"ticker":"QQQ","net_flow_musd":1250.5,"flow_trend":"inflow"}]}`

func TestCreateThenRetrieveEndToEnd(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := postJSON(t, router, "/api/analysis/etf-flows", map[string]interface{}{
		"target_date": "2025-01-15",
		"tickers":     []string{"QQQ"},
		"llm_policy":  "FALLBACK",
	}, testToken)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Records []contracts.AnalysisRecord `json:"records"`
		Count   int                        `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Count != 1 {
		t.Fatalf("Expected 1 record, got %d", created.Count)
	}
	if created.Records[0].Name != contracts.KindETFFlowsWeekly {
		t.Errorf("Slug etf-flows must map to etf_flows_weekly, got %s", created.Records[0].Name)
	}

	items := created.Records[0].Value["items"].([]interface{})
	first := items[0].(map[string]interface{})
	if first["ticker"] != "QQQ" {
		t.Errorf("Expected QQQ item, got %v", first)
	}

	// Retrieval with ticker filter
	rec = get(t, router, "/api/analysis/etf-flows?target_date=2025-01-15&tickers=QQQ")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var env analysis.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.FilteredCount != 1 {
		t.Errorf("Expected filtered_count 1, got %d", env.FilteredCount)
	}
	if !env.IsExactDateMatch {
		t.Error("Expected exact date match")
	}
	if env.ActualDate != "2025-01-15" {
		t.Errorf("Expected actual_date 2025-01-15, got %s", env.ActualDate)
	}
}

func TestCreateRequiresAuth(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, st := newTestServer(t, primary, secondary)

	rec := postJSON(t, router, "/api/analysis/etf-flows", map[string]interface{}{
		"target_date": "2025-01-15",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/api/analysis/etf-flows", map[string]interface{}{
		"target_date": "2025-01-15",
	}, "wrong-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 with wrong token, got %d", rec.Code)
	}

	records, _ := st.Read(context.Background(),
		contracts.KindETFFlowsWeekly,
		contracts.DateOnly(mustDate(t, "2025-01-15")), "")
	if len(records) != 0 {
		t.Error("Rejected requests must not persist anything")
	}
}

func TestRetrievalIsPublic(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := get(t, router, "/api/analysis/etf-flows?target_date=2025-01-15")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET must not require auth, got %d", rec.Code)
	}
}

func TestUnknownKindIsBadRequest(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := get(t, router, "/api/analysis/astrology?target_date=2025-01-15")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown kind, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/api/analysis/astrology", map[string]interface{}{
		"target_date": "2025-01-15",
	}, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown kind on POST, got %d", rec.Code)
	}
}

func TestMalformedDateIsBadRequest(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := get(t, router, "/api/analysis/etf-flows?target_date=01-15-2025")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestNearestExhaustedIsNotFound(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := get(t, router, "/api/analysis/liquidity/nearest?target_date=2025-01-15")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 past the scan bound, got %d", rec.Code)
	}
}

func TestNearestResolvesBackward(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, st := newTestServer(t, primary, secondary)

	st.Write(context.Background(), contracts.KindLiquidity,
		mustDate(t, "2025-01-12"),
		map[string]interface{}{"stance": "ample"})

	rec := get(t, router, "/api/analysis/liquidity/nearest?target_date=2025-01-15")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var env analysis.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.IsExactDateMatch {
		t.Error("Expected is_exact_date_match=false")
	}
	if env.ActualDate != "2025-01-12" {
		t.Errorf("Expected actual_date 2025-01-12, got %s", env.ActualDate)
	}
}

func TestCreateProviderFailureIsBadGateway(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini",
		err: provider.NewError("openai", provider.ErrTimeout, context.DeadlineExceeded)}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash",
		err: provider.NewError("gemini", provider.ErrRateLimit, context.DeadlineExceeded)}
	router, _ := newTestServer(t, primary, secondary)

	rec := postJSON(t, router, "/api/analysis/market-forecast", map[string]interface{}{
		"target_date": "2025-01-15",
		"llm_policy":  "FALLBACK",
	}, testToken)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 when all providers fail, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	primary := &stubProvider{name: "openai", model: "gpt-4o-mini", response: etfFlowsResponse}
	secondary := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: etfFlowsResponse}
	router, _ := newTestServer(t, primary, secondary)

	rec := get(t, router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}
