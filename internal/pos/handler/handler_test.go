package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/pos/handler"
	"github.com/jmerrifield20/SecurePOS/internal/pos/service"
	"go.uber.org/zap"
)

type testEnv struct {
	router *gin.Engine
	anchor *anchor.MemoryClient
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemoryStore()
	ac := anchor.NewMemoryClient()
	svc := service.NewSaleService(store, ac, zap.NewNop())
	svc.SetMetricsRecorder(handler.Recorder{})

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewSaleHandler(svc, zap.NewNop()).Register(v1)
	handler.NewAuditHandler(svc, zap.NewNop()).Register(v1)
	handler.NewLedgerHandler(store, svc, zap.NewNop()).Register(v1)
	return &testEnv{router: r, anchor: ac}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func saleBody(id string) map[string]any {
	return map[string]any{
		"id":             id,
		"timestamp":      1700000000000,
		"payment_method": "cash",
		"operator_id":    "op-1",
		"items": []map[string]any{
			{"id": "1", "name": "Coffee", "price_cents": 350, "quantity": 2},
			{"id": "2", "name": "Muffin", "price_cents": 225, "quantity": 1},
		},
	}
}

func (e *testEnv) recordSale(t *testing.T, id string) map[string]any {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/sales", saleBody(id))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return resp
}

func TestRecordSale_201(t *testing.T) {
	env := setupRouter(t)
	resp := env.recordSale(t, "sale-1")

	tx := resp["transaction"].(map[string]any)
	if tx["fingerprint"] != "a35fe0777b3c89088255d34fa442a7b5cddff7f0c7e2451a784ec832a392bb1c" {
		t.Errorf("unexpected fingerprint %v", tx["fingerprint"])
	}
	if tx["anchor"] == nil {
		t.Error("expected anchor reference")
	}
	if _, ok := resp["anchor_error"]; ok {
		t.Errorf("unexpected anchor_error %v", resp["anchor_error"])
	}
}

func TestRecordSale_201_anchorDown(t *testing.T) {
	env := setupRouter(t)
	env.anchor.SetAvailable(false)

	resp := env.recordSale(t, "sale-1")
	if resp["anchor_error"] == nil {
		t.Error("expected anchor_error while anchor is down")
	}
}

func TestRecordSale_400_invalid(t *testing.T) {
	env := setupRouter(t)
	body := saleBody("sale-1")
	body["items"] = []map[string]any{}

	w, _ := env.do(t, http.MethodPost, "/api/v1/sales", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRecordSale_400_malformed(t *testing.T) {
	env := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRecordSale_409_duplicate(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, _ := env.do(t, http.MethodPost, "/api/v1/sales", saleBody("sale-1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListAndGetSale_200(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")
	env.recordSale(t, "sale-2")

	w, resp := env.do(t, http.MethodGet, "/api/v1/sales", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if int(resp["count"].(float64)) != 2 {
		t.Errorf("expected 2 sales, got %v", resp["count"])
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/sales/sale-2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	rec := resp["sale"].(map[string]any)["record"].(map[string]any)
	if rec["id"] != "sale-2" {
		t.Errorf("unexpected sale %v", rec["id"])
	}
}

func TestGetSale_404(t *testing.T) {
	env := setupRouter(t)
	w, _ := env.do(t, http.MethodGet, "/api/v1/sales/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestVerifySale_200(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/sales/sale-1/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["match"] != true || resp["verified"] != true {
		t.Errorf("expected verified sale, got %v", resp)
	}
	if resp["anchor_status"] != "match" {
		t.Errorf("expected anchor_status=match, got %v", resp["anchor_status"])
	}
}

func TestVerifySale_200_anchorUnavailable(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")
	env.anchor.SetAvailable(false)

	w, resp := env.do(t, http.MethodGet, "/api/v1/sales/sale-1/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["match"] != true || resp["anchor_status"] != "unavailable" {
		t.Errorf("unexpected verification %v", resp)
	}
}

func TestAnchorSale(t *testing.T) {
	env := setupRouter(t)
	env.anchor.SetAvailable(false)
	env.recordSale(t, "sale-1")

	w, _ := env.do(t, http.MethodPost, "/api/v1/sales/sale-1/anchor", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while anchor is down, got %d", w.Code)
	}

	env.anchor.SetAvailable(true)
	w, resp := env.do(t, http.MethodPost, "/api/v1/sales/sale-1/anchor", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["sale"].(map[string]any)["anchor"] == nil {
		t.Error("expected anchor reference after resubmission")
	}
}

func TestRunAudit_422_empty(t *testing.T) {
	env := setupRouter(t)
	w, _ := env.do(t, http.MethodPost, "/api/v1/audits", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestAuditAndProof(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")
	env.recordSale(t, "sale-2")

	// Same content as sale-2 but a different operator, to keep leaves distinct.
	body := saleBody("sale-3")
	body["operator_id"] = "op-3"
	w, _ := env.do(t, http.MethodPost, "/api/v1/sales", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	w, resp := env.do(t, http.MethodPost, "/api/v1/audits", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	audit := resp["audit"].(map[string]any)
	auditID := audit["id"].(string)
	if int(audit["count"].(float64)) != 3 {
		t.Errorf("expected count 3, got %v", audit["count"])
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/audits/"+auditID+"/proof/sale-3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["valid"] != true || resp["root_matches"] != true {
		t.Errorf("expected valid proof, got %v", resp)
	}
	if resp["root"] != audit["root"] {
		t.Errorf("proof root %v != audit root %v", resp["root"], audit["root"])
	}

	body = saleBody("sale-4")
	body["operator_id"] = "op-4"
	env.do(t, http.MethodPost, "/api/v1/sales", body)
	w, _ = env.do(t, http.MethodGet, "/api/v1/audits/"+auditID+"/proof/sale-4", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for sale outside the audit, got %d", w.Code)
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/audits", nil)
	if w.Code != http.StatusOK || int(resp["count"].(float64)) != 1 {
		t.Fatalf("unexpected audit list %d: %v", w.Code, resp)
	}
	w, _ = env.do(t, http.MethodGet, "/api/v1/audits/"+auditID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w, _ = env.do(t, http.MethodPost, "/api/v1/audits/"+auditID+"/anchor", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReport_200(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if int(resp["totalSales"].(float64)) != 1 || int(resp["totalAmountCents"].(float64)) != 925 {
		t.Errorf("unexpected report %v", resp)
	}
	if int(resp["salesVerified"].(float64)) != 1 {
		t.Errorf("expected 1 verified sale, got %v", resp["salesVerified"])
	}
}

func TestLedgerOverview_200(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if entries := int(resp["entries"].(float64)); entries != 2 { // sale + anchor receipt
		t.Errorf("expected 2 entries, got %d", entries)
	}
}

func TestLedgerVerify_200(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestLedgerGetEntry(t *testing.T) {
	env := setupRouter(t)
	env.recordSale(t, "sale-1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger/entries/0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["prev_hash"] != ledger.GenesisHash || resp["kind"] != "transaction" {
		t.Errorf("unexpected first entry %v", resp)
	}

	w, _ = env.do(t, http.MethodGet, "/api/v1/ledger/entries/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w, _ = env.do(t, http.MethodGet, "/api/v1/ledger/entries/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
