// Package ingestion normalizes heterogeneous producer events into the
// append-only fact store. Events enter raw, are validated fail-closed,
// canonicalized, enriched with engine-assigned identity and version fields,
// and persisted. Anything that cannot be normalized is dead-lettered.
package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/ordercore-lab/order-core/internal/core/storage"
)

type Service struct {
	repo             storage.Repository
	maxBodySizeBytes int
}

func NewService(repo storage.Repository, maxBodySizeMB int) *Service {
	if repo == nil {
		panic("ingestion: repository must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		repo:             repo,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
	r.GET("/v1/dlq", s.ListDeadLettersHandler)
}
