// Package projection is the read layer: every view it serves is computed at
// query time from the append-only fact tables, never materialized.
package projection

import (
	"time"

	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// PricingLatest is the current price breakdown of an order: the
// highest-version row per semantic id plus the integer and display totals.
type PricingLatest struct {
	OrderID        string                             `json:"order_id"`
	Components     []*storage.PricingComponentRecord  `json:"components"`
	ComponentCount int                                `json:"component_count"`
	TotalAmount    int64                              `json:"total_amount"`
	Currency       string                             `json:"currency,omitempty"`
	DisplayTotal   string                             `json:"display_total,omitempty"`
}

// EffectivePayable is the status-resolved obligation toward one supplier
// instance (supplier id + supplier reference) on one order detail.
type EffectivePayable struct {
	SupplierID              string    `json:"supplier_id"`
	SupplierReferenceID     string    `json:"supplier_reference_id,omitempty"`
	Status                  string    `json:"status,omitempty"`
	EffectivePayable        int64     `json:"effective_payable"`
	Currency                string    `json:"currency,omitempty"`
	OrderID                 string    `json:"order_id"`
	OrderDetailID           string    `json:"order_detail_id"`
	SupplierTimelineVersion int       `json:"supplier_timeline_version"`
	EventID                 string    `json:"event_id"`
	EmittedAt               time.Time `json:"emitted_at"`
}

// PayableStatus pairs one supplier instance's effective obligation with the
// breakdown lines derived at its latest timeline version.
type PayableStatus struct {
	SupplierInstance *EffectivePayable            `json:"supplier_instance"`
	BreakdownLines   []*storage.PayableLineRecord `json:"breakdown_lines"`
}

// OrderSummary is the order explorer view: all four timelines of one order
// in a single response.
type OrderSummary struct {
	OrderID   string                            `json:"order_id"`
	Pricing   *PricingLatest                    `json:"pricing"`
	Payments  []*storage.PaymentTimelineRecord  `json:"payments"`
	Suppliers []*EffectivePayable               `json:"suppliers"`
	Refunds   []*storage.RefundTimelineRecord   `json:"refunds"`
}
