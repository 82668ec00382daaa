package projection

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	ocerrors "github.com/ordercore-lab/order-core/internal/core/errors"
)

// RegisterRoutes registers the read-only query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/orders", s.ListOrdersHandler)
	r.GET("/v1/orders/:order_id/pricing/latest", s.PricingLatestHandler)
	r.GET("/v1/orders/:order_id/pricing/history", s.PricingHistoryHandler)
	r.GET("/v1/components/:semantic_id/lineage", s.ComponentLineageHandler)
	r.GET("/v1/orders/:order_id/payments", s.PaymentTimelineHandler)
	r.GET("/v1/orders/:order_id/details/:order_detail_id/suppliers", s.SupplierTimelineHandler)
	r.GET("/v1/orders/:order_id/payables/effective", s.EffectivePayablesHandler)
	r.GET("/v1/orders/:order_id/payables/status", s.PayablesStatusHandler)
	r.GET("/v1/orders/:order_id/summary", s.OrderSummaryHandler)
}

func (s *Service) ListOrdersHandler(c *gin.Context) {
	orders, err := s.ListOrders(c.Request.Context())
	if err != nil {
		writeQueryError(c, err)
		return
	}
	if orders == nil {
		orders = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Service) PricingLatestHandler(c *gin.Context) {
	latest, err := s.PricingLatest(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Service) PricingHistoryHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	entries, err := s.PricingHistory(c.Request.Context(), orderID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"versions": entries,
		"count":    len(entries),
	})
}

func (s *Service) ComponentLineageHandler(c *gin.Context) {
	semanticID := c.Param("semantic_id")
	lineage, err := s.ComponentLineage(c.Request.Context(), semanticID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"component_semantic_id": semanticID,
		"original":              lineage.Original,
		"refunds":               lineage.Refunds,
	})
}

func (s *Service) PaymentTimelineHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	records, err := s.PaymentTimeline(c.Request.Context(), orderID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"timeline": records,
		"count":    len(records),
	})
}

func (s *Service) SupplierTimelineHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	orderDetailID := c.Param("order_detail_id")
	records, err := s.SupplierTimeline(c.Request.Context(), orderID, orderDetailID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":        orderID,
		"order_detail_id": orderDetailID,
		"timeline":        records,
		"count":           len(records),
	})
}

func (s *Service) EffectivePayablesHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	payables, err := s.EffectivePayables(c.Request.Context(), orderID, c.Query("order_detail_id"))
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"payables": payables,
		"count":    len(payables),
	})
}

func (s *Service) PayablesStatusHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	statuses, err := s.PayablesStatus(c.Request.Context(), orderID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":  orderID,
		"suppliers": statuses,
		"count":     len(statuses),
	})
}

func (s *Service) OrderSummaryHandler(c *gin.Context) {
	summary, err := s.OrderSummary(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func writeQueryError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, ocerrors.ErrorResponse{
			ErrorType: ocerrors.HttpInvalidQuery,
			Message:   err.Error(),
		})
		return
	}

	slog.Error("Query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ocerrors.ErrorResponse{
		ErrorType: ocerrors.HttpInternalError,
		Message:   "Failed to execute query",
	})
}
