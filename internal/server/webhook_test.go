package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
	eventlogdomain "github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
	reconciledomain "github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
)

type stubReconciler struct {
	mu       sync.Mutex
	outcome  reconciledomain.Outcome
	byID     map[string]reconciledomain.Outcome
	replayed []string
	calls    int
}

func (s *stubReconciler) Process(_ context.Context, event platform.PaymentEvent, _ []byte) reconciledomain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if outcome, ok := s.byID[event.PaymentID()]; ok {
		return outcome
	}
	return s.outcome
}

func (s *stubReconciler) Replay(_ context.Context, paymentID string) (reconciledomain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayed = append(s.replayed, paymentID)
	return s.outcome, nil
}

func (s *stubReconciler) ReplayFailed(_ context.Context, _ int) ([]reconciledomain.Outcome, error) {
	return []reconciledomain.Outcome{s.outcome}, nil
}

type stubLedger struct {
	stats   eventlogdomain.Stats
	removed int64
}

func (s *stubLedger) InsertPending(context.Context, *eventlogdomain.EventRecord) (bool, error) {
	return true, nil
}
func (s *stubLedger) Get(context.Context, string) (*eventlogdomain.EventRecord, error) {
	return nil, eventlogdomain.ErrNotFound
}
func (s *stubLedger) MarkProcessing(context.Context, string) error { return nil }
func (s *stubLedger) MarkResult(context.Context, string, eventlogdomain.Result) error {
	return nil
}
func (s *stubLedger) BumpRetry(context.Context, string) error { return nil }
func (s *stubLedger) IsProcessed(context.Context, string) (bool, error) {
	return false, nil
}
func (s *stubLedger) ListFailed(context.Context, int) ([]eventlogdomain.EventRecord, error) {
	return nil, nil
}
func (s *stubLedger) Stats(context.Context) (eventlogdomain.Stats, error) {
	return s.stats, nil
}
func (s *stubLedger) Cleanup(context.Context, time.Time) (int64, error) {
	return s.removed, nil
}

func newTestServer(t *testing.T, reconciler reconciledomain.Service, ledger eventlogdomain.Repository, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		HTTP: config.HTTPConfig{
			WebhookSecret:    secret,
			BatchLimit:       3,
			BatchConcurrency: 2,
		},
	}
	srv := New(ServerParam{
		Config:     cfg,
		Log:        zap.NewNop(),
		Reconciler: reconciler,
		Ledger:     ledger,
	})
	engine := gin.New()
	srv.RegisterRoutes(engine)
	return engine
}

func eventBody(t *testing.T, paymentID string) []byte {
	t.Helper()
	event := platform.PaymentEvent{Order: platform.Order{
		Status:    platform.OrderStatusConfirmed,
		PaymentID: paymentID,
	}}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookAcceptsSignedBody(t *testing.T) {
	stub := &stubReconciler{outcome: reconciledomain.Outcome{Status: reconciledomain.OutcomeSuccess}}
	engine := newTestServer(t, stub, &stubLedger{}, "top-secret")

	body := eventBody(t, "p-1")
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
	req.Header.Set(signatureHeader, signBody(body, "top-secret"))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", w.Code, w.Body.String())
	}
	if stub.calls != 1 {
		t.Fatalf("reconciler calls = %d, want 1", stub.calls)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	stub := &stubReconciler{outcome: reconciledomain.Outcome{Status: reconciledomain.OutcomeSuccess}}
	engine := newTestServer(t, stub, &stubLedger{}, "top-secret")

	body := eventBody(t, "p-1")
	for name, header := range map[string]string{
		"raw secret":      "top-secret",
		"wrong signature": signBody(body, "other-key"),
		"empty":           "",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
			req.Header.Set(signatureHeader, header)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
	if stub.calls != 0 {
		t.Fatal("reconciler must not run on a bad signature")
	}
}

func TestWebhookOutcomeStatusMapping(t *testing.T) {
	cases := []struct {
		outcome reconciledomain.OutcomeStatus
		want    int
	}{
		{reconciledomain.OutcomeSuccess, http.StatusOK},
		{reconciledomain.OutcomeDuplicate, http.StatusConflict},
		{reconciledomain.OutcomeSkipped, http.StatusAccepted},
		{reconciledomain.OutcomeContactNotFound, http.StatusNotFound},
		{reconciledomain.OutcomeLeadNotFound, http.StatusNotFound},
		{reconciledomain.OutcomeFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			stub := &stubReconciler{outcome: reconciledomain.Outcome{Status: tc.outcome}}
			engine := newTestServer(t, stub, &stubLedger{}, "s")

			body := eventBody(t, "p-1")
			req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
			req.Header.Set(signatureHeader, signBody(body, "s"))
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	stub := &stubReconciler{}
	engine := newTestServer(t, stub, &stubLedger{}, "")

	for name, body := range map[string][]byte{
		"not json":   []byte("{broken"),
		"missing id": eventBody(t, ""),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
	if stub.calls != 0 {
		t.Fatal("reconciler must not see malformed events")
	}
}

func TestBatchEnforcesLimit(t *testing.T) {
	stub := &stubReconciler{outcome: reconciledomain.Outcome{Status: reconciledomain.OutcomeSuccess}}
	engine := newTestServer(t, stub, &stubLedger{}, "")

	batch := make([]json.RawMessage, 4) // limit in tests is 3
	for i := range batch {
		batch[i] = eventBody(t, fmt.Sprintf("p-%d", i))
	}
	raw, _ := json.Marshal(batch)

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment-batch", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}

func TestBatchAggregatesOutcomesInOrder(t *testing.T) {
	stub := &stubReconciler{
		outcome: reconciledomain.Outcome{Status: reconciledomain.OutcomeSuccess},
		byID: map[string]reconciledomain.Outcome{
			"p-1": {Status: reconciledomain.OutcomeDuplicate},
		},
	}
	engine := newTestServer(t, stub, &stubLedger{}, "")

	batch := []json.RawMessage{
		eventBody(t, "p-0"),
		eventBody(t, "p-1"),
		eventBody(t, "p-2"),
	}
	raw, _ := json.Marshal(batch)

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment-batch", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("total = %d", resp.Total)
	}
	if resp.ByStatus["success"] != 2 || resp.ByStatus["duplicate"] != 1 {
		t.Fatalf("by_status = %v", resp.ByStatus)
	}
	if resp.Results[1]["status"] != "duplicate" {
		t.Fatalf("results out of order: %v", resp.Results)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ledger := &stubLedger{stats: eventlogdomain.Stats{
		Total:    5,
		ByStatus: map[eventlogdomain.Status]int64{eventlogdomain.StatusSuccess: 5},
	}}
	engine := newTestServer(t, &stubReconciler{}, ledger, "")

	req := httptest.NewRequest(http.MethodGet, "/ops/stats", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats eventlogdomain.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 5 {
		t.Fatalf("total = %d", stats.Total)
	}
}

func TestReplayByPaymentID(t *testing.T) {
	stub := &stubReconciler{outcome: reconciledomain.Outcome{Status: reconciledomain.OutcomeSuccess}}
	engine := newTestServer(t, stub, &stubLedger{}, "")

	req := httptest.NewRequest(http.MethodPost, "/ops/replay?payment_id=pay-9", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(stub.replayed) != 1 || stub.replayed[0] != "pay-9" {
		t.Fatalf("replayed = %v", stub.replayed)
	}
}

func TestCleanupValidatesRetention(t *testing.T) {
	engine := newTestServer(t, &stubReconciler{}, &stubLedger{removed: 7}, "")

	req := httptest.NewRequest(http.MethodPost, "/ops/cleanup?older_than_days=nope", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ops/cleanup?older_than_days=30", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["removed"] != 7 {
		t.Fatalf("removed = %d", resp["removed"])
	}
}
