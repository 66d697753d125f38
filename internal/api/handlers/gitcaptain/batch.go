package gitcaptain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/batch"
	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/wsrelay"
)

// maxConcurrency caps the opt-in concurrent batch variant.
const maxConcurrency = 8

// RunBatch applies one operation to a list of repositories and answers with
// every row and the summary. Rows are in repository order.
func (h *Handler) RunBatch(c *gin.Context) {
	var req batch.Request
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationFailed(c, []fieldError{{Field: "body", Message: "Request body could not be parsed"}})
		return
	}
	fields := logFields(opBatch, "", req.Branch, req.Token)
	ctx := outboundContext(c)

	var (
		summary batch.Summary
		rows    []batch.Row
		err     error
	)
	if req.Concurrency > 1 {
		summary, rows, err = h.driver.RunConcurrent(ctx, req, min(req.Concurrency, maxConcurrency))
	} else {
		summary, err = h.driver.Run(ctx, req, func(row batch.Row) { rows = append(rows, row) })
	}
	if err != nil {
		writeError(c, opBatch, fields, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"rows":    rows,
	})
}

// StreamBatch runs a batch received over websocket, sending each row as soon
// as it is classified. It is the wsrelay.RunFunc of the batch stream.
func (h *Handler) StreamBatch(ctx context.Context, payload json.RawMessage, send func(wsrelay.Message) error) error {
	var req batch.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		_ = send(wsrelay.Message{Type: wsrelay.MessageTypeError, Payload: gin.H{
			"error":   "Validation failed",
			"message": "Batch request could not be parsed",
		}})
		return fmt.Errorf("decode batch request: %w", interfaces.ErrValidationFailed)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var errSend error
	summary, err := h.driver.Run(ctx, req, func(row batch.Row) {
		if errSend != nil {
			return
		}
		if errSend = send(wsrelay.Message{Type: wsrelay.MessageTypeRow, Payload: row}); errSend != nil {
			cancel()
		}
	})
	if errSend != nil {
		return errSend
	}
	if err != nil {
		_ = send(wsrelay.Message{Type: wsrelay.MessageTypeError, Payload: streamError(err)})
		return err
	}
	return send(wsrelay.Message{Type: wsrelay.MessageTypeSummary, Payload: summary})
}

func streamError(err error) gin.H {
	var upstream *interfaces.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode >= http.StatusBadRequest {
		return gin.H{"error": "GitHub error", "statusCode": upstream.StatusCode, "message": err.Error()}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return gin.H{"error": "Batch cancelled", "message": "The batch was stopped and must be restarted from the beginning"}
	case errors.Is(err, interfaces.ErrValidationFailed):
		return gin.H{"error": "Validation failed", "message": err.Error()}
	case errors.Is(err, interfaces.ErrRateLimitExceeded):
		return gin.H{"error": "Rate limit exceeded", "message": "Too many GitHub requests, please try again later"}
	}
	return gin.H{"error": opBatch.title + " error", "message": "An error occurred during " + opBatch.activity}
}
