package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
	reconciledomain "github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
)

const signatureHeader = "X-WEBHOOK-SECRET"

// requireSecret verifies the HMAC-SHA256 body signature the platform puts
// in the signature header. With no secret configured (local development)
// the check is off. The body is re-buffered for the handler.
func (s *Server) requireSecret(c *gin.Context) {
	secret := s.cfg.HTTP.WebhookSecret
	if secret == "" {
		c.Next()
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	presented := c.GetHeader(signatureHeader)
	if !signatureValid(body, secret, presented) {
		s.log.Warn("webhook signature mismatch", zap.String("ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		return
	}
	c.Next()
}

func signatureValid(body []byte, secret, presented string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(presented))
}

// HandlePayment processes one webhook delivery synchronously and maps the
// outcome onto the response status.
func (s *Server) HandlePayment(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var event platform.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payment event"})
		return
	}
	if event.PaymentID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_id is required"})
		return
	}

	outcome := s.reconciler.Process(c.Request.Context(), event, payload)
	c.JSON(outcomeStatus(outcome), outcomeBody(outcome))
}

type batchResponse struct {
	Total    int              `json:"total"`
	ByStatus map[string]int   `json:"by_status"`
	Results  []map[string]any `json:"results"`
}

// HandlePaymentBatch accepts a bounded array of events and reconciles them
// with limited concurrency. Per-event outcomes come back in input order.
func (s *Server) HandlePaymentBatch(c *gin.Context) {
	var raw []json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected an array of payment events"})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}
	if limit := s.cfg.HTTP.BatchLimit; len(raw) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "batch too large",
			"limit": limit,
		})
		return
	}

	outcomes := make([]reconciledomain.Outcome, len(raw))
	group, ctx := errgroup.WithContext(c.Request.Context())
	group.SetLimit(s.batchConcurrency())
	for i, payload := range raw {
		group.Go(func() error {
			var event platform.PaymentEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				outcomes[i] = reconciledomain.Outcome{
					Status: reconciledomain.OutcomeFailed,
					Reason: "malformed payment event",
				}
				return nil
			}
			outcomes[i] = s.reconciler.Process(ctx, event, payload)
			return nil
		})
	}
	_ = group.Wait()

	resp := batchResponse{
		Total:    len(outcomes),
		ByStatus: make(map[string]int),
		Results:  make([]map[string]any, 0, len(outcomes)),
	}
	for _, outcome := range outcomes {
		resp.ByStatus[string(outcome.Status)]++
		resp.Results = append(resp.Results, outcomeBody(outcome))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) batchConcurrency() int {
	if n := s.cfg.HTTP.BatchConcurrency; n > 0 {
		return n
	}
	return 1
}
