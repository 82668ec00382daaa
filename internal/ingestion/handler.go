package ingestion

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ocerrors "github.com/ordercore-lab/order-core/internal/core/errors"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"

	defaultDLQLimit = 50
	maxDLQLimit     = 500
)

// IngestHandler handles HTTP POST requests for event ingestion.
// Accepted events return 202 with the normalization details; dead-lettered
// events return 422 with the failure Result so the producer sees the dlq id.
func (s *Service) IngestHandler(c *gin.Context) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		c.JSON(http.StatusInternalServerError, ocerrors.ErrorResponse{
			ErrorType: ocerrors.HttpInternalError,
			Message:   msgReadBodyFailed,
		})
		return
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		c.JSON(http.StatusRequestEntityTooLarge, ocerrors.ErrorResponse{
			ErrorType: ocerrors.HttpInvalidJsonError,
			Message:   "Request body exceeds maximum allowed size",
			Details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		})
		return
	}

	if !json.Valid(bodyBytes) {
		slog.Warn("Invalid JSON body received", "payload_size", len(bodyBytes))
		c.JSON(http.StatusBadRequest, ocerrors.ErrorResponse{
			ErrorType: ocerrors.HttpInvalidJsonError,
			Message:   msgInvalidJSON,
		})
		return
	}

	result := s.Ingest(c.Request.Context(), bodyBytes)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// ListDeadLettersHandler handles GET /v1/dlq?limit= for DLQ inspection.
func (s *Service) ListDeadLettersHandler(c *gin.Context) {
	limit := defaultDLQLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxDLQLimit {
			c.JSON(http.StatusBadRequest, ocerrors.ErrorResponse{
				ErrorType: ocerrors.HttpInvalidQuery,
				Message:   "limit must be an integer between 1 and 500",
			})
			return
		}
		limit = parsed
	}

	records, err := s.repo.ListDeadLetters(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to list dead letters", "error", err)
		c.JSON(http.StatusInternalServerError, ocerrors.ErrorResponse{
			ErrorType: ocerrors.HttpInternalError,
			Message:   "Failed to list dead letters",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dead_letters": records,
		"count":        len(records),
	})
}
