package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultCleanupRetention = 90 * 24 * time.Hour

// Stats returns ledger counts by status and refreshes the backlog gauges.
func (s *Server) Stats(c *gin.Context) {
	stats, err := s.ledger.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for status, count := range stats.ByStatus {
		s.syncMetrics.SetLedgerBacklog(string(status), count)
	}
	c.JSON(http.StatusOK, stats)
}

// Replay reprocesses failed records: one payment when payment_id is given,
// otherwise up to limit failed records, oldest first.
func (s *Server) Replay(c *gin.Context) {
	if paymentID := trimmedQuery(c, "payment_id"); paymentID != "" {
		outcome, err := s.reconciler.Replay(c.Request.Context(), paymentID)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(outcomeStatus(outcome), outcomeBody(outcome))
		return
	}

	limit := 100
	if raw := trimmedQuery(c, "limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	outcomes, err := s.reconciler.ReplayFailed(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	byStatus := make(map[string]int, len(outcomes))
	for _, outcome := range outcomes {
		byStatus[string(outcome.Status)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"replayed":  len(outcomes),
		"by_status": byStatus,
	})
}

// Cleanup deletes terminal ledger records older than the retention window.
// Failed records always survive, they are the replay queue.
func (s *Server) Cleanup(c *gin.Context) {
	retention := defaultCleanupRetention
	if raw := trimmedQuery(c, "older_than_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be a positive integer"})
			return
		}
		retention = time.Duration(days) * 24 * time.Hour
	}

	removed, err := s.ledger.Cleanup(c.Request.Context(), time.Now().Add(-retention))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
