// Package storage defines the normalized record types persisted by the
// engine and the Repository interface the normalization router and the query
// surface program against. All fact tables are append-only: records are
// inserted once and never updated or deleted; a newer version supersedes an
// older one logically, never physically.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that require a row to exist.
var ErrNotFound = errors.New("record not found")

// PricingComponentRecord is one normalized pricing fact row.
// (order id, semantic id, version) is unique; (semantic id, snapshot id)
// deterministically produces the instance id.
type PricingComponentRecord struct {
	SemanticID         string                 `json:"component_semantic_id"`
	InstanceID         string                 `json:"component_instance_id"`
	OrderID            string                 `json:"order_id"`
	SnapshotID         string                 `json:"pricing_snapshot_id"`
	Version            int                    `json:"version"`
	ComponentType      string                 `json:"component_type"`
	Amount             int64                  `json:"amount"`
	Currency           string                 `json:"currency"`
	Dimensions         map[string]string      `json:"dimensions"`
	Description        string                 `json:"description,omitempty"`
	IsRefund           bool                   `json:"is_refund"`
	RefundOfSemanticID string                 `json:"refund_of_component_semantic_id,omitempty"`
	EmitterService     string                 `json:"emitter_service"`
	IngestedAt         time.Time              `json:"ingested_at"`
	EmittedAt          time.Time              `json:"emitted_at"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentTimelineRecord is one normalized payment timeline entry.
type PaymentTimelineRecord struct {
	EventID             string                 `json:"event_id"`
	OrderID             string                 `json:"order_id"`
	TimelineVersion     int                    `json:"timeline_version"`
	EventType           string                 `json:"event_type"`
	Status              string                 `json:"status"`
	PaymentMethod       string                 `json:"payment_method"`
	PaymentIntentID     string                 `json:"payment_intent_id,omitempty"`
	AuthorizedAmount    *int64                 `json:"authorized_amount,omitempty"`
	CapturedAmount      *int64                 `json:"captured_amount,omitempty"`
	CapturedAmountTotal *int64                 `json:"captured_amount_total,omitempty"`
	Amount              int64                  `json:"amount"`
	Currency            string                 `json:"currency"`
	InstrumentJSON      string                 `json:"instrument_json,omitempty"`
	PGReferenceID       string                 `json:"pg_reference_id,omitempty"`
	EmitterService      string                 `json:"emitter_service"`
	IngestedAt          time.Time              `json:"ingested_at"`
	EmittedAt           time.Time              `json:"emitted_at"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// SupplierTimelineRecord is one normalized supplier timeline entry.
type SupplierTimelineRecord struct {
	EventID                 string                 `json:"event_id"`
	OrderID                 string                 `json:"order_id"`
	OrderDetailID           string                 `json:"order_detail_id"`
	SupplierTimelineVersion int                    `json:"supplier_timeline_version"`
	EventType               string                 `json:"event_type"`
	SupplierID              string                 `json:"supplier_id"`
	BookingCode             string                 `json:"booking_code,omitempty"`
	SupplierReferenceID     string                 `json:"supplier_reference_id,omitempty"`
	Amount                  *int64                 `json:"amount,omitempty"`
	Currency                string                 `json:"currency,omitempty"`
	Status                  string                 `json:"status,omitempty"`
	CancellationFeeAmount   *int64                 `json:"cancellation_fee_amount,omitempty"`
	CancellationFeeCurrency string                 `json:"cancellation_fee_currency,omitempty"`
	EmitterService          string                 `json:"emitter_service"`
	IngestedAt              time.Time              `json:"ingested_at"`
	EmittedAt               time.Time              `json:"emitted_at"`
	Metadata                map[string]interface{} `json:"metadata,omitempty"`
}

// Obligation types for payable lines.
const (
	ObligationSupplier            = "SUPPLIER"
	ObligationAffiliateCommission = "AFFILIATE_COMMISSION"
	ObligationTaxWithholding      = "TAX_WITHHOLDING"
)

// PayableLineRecord is one derived multi-party obligation row, tied to the
// supplier timeline entry (and version) it was derived from.
type PayableLineRecord struct {
	LineID                  string    `json:"line_id"`
	EventID                 string    `json:"event_id"`
	OrderID                 string    `json:"order_id"`
	OrderDetailID           string    `json:"order_detail_id"`
	SupplierTimelineVersion int       `json:"supplier_timeline_version"`
	ObligationType          string    `json:"obligation_type"`
	PartyID                 string    `json:"party_id"`
	PartyName               string    `json:"party_name,omitempty"`
	Amount                  int64     `json:"amount"`
	Currency                string    `json:"currency"`
	CalculationBasis        string    `json:"calculation_basis,omitempty"`
	CalculationRate         *float64  `json:"calculation_rate,omitempty"`
	CalculationDescription  string    `json:"calculation_description,omitempty"`
	IngestedAt              time.Time `json:"ingested_at"`
}

// RefundTimelineRecord is one refund timeline entry. Its version is
// caller-supplied, not engine-assigned.
type RefundTimelineRecord struct {
	EventID               string                 `json:"event_id"`
	OrderID               string                 `json:"order_id"`
	RefundID              string                 `json:"refund_id"`
	RefundTimelineVersion int                    `json:"refund_timeline_version"`
	EventType             string                 `json:"event_type"`
	RefundAmount          int64                  `json:"refund_amount"`
	Currency              string                 `json:"currency"`
	RefundReason          string                 `json:"refund_reason,omitempty"`
	EmitterService        string                 `json:"emitter_service"`
	IngestedAt            time.Time              `json:"ingested_at"`
	EmittedAt             time.Time              `json:"emitted_at"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

// DeadLetterRecord preserves a rejected event with enough of the original
// payload for manual or automated replay.
type DeadLetterRecord struct {
	DLQID        string    `json:"dlq_id"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	OrderID      string    `json:"order_id,omitempty"`
	RawEvent     string    `json:"raw_event"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	FailedAt     time.Time `json:"failed_at"`
	RetryCount   int       `json:"retry_count"`
}

// PricingHistoryEntry is one row of the per-version rollup.
type PricingHistoryEntry struct {
	Version        int       `json:"version"`
	SnapshotID     string    `json:"pricing_snapshot_id"`
	ComponentCount int       `json:"component_count"`
	TotalAmount    int64     `json:"total_amount"`
	Currency       string    `json:"currency"`
	EmittedAt      time.Time `json:"emitted_at"`
}

// Lineage groups the occurrences of one semantic id with the refund rows
// that reverse it (linked by reversal pointer, never by id equality —
// refund semantic ids embed the refund id and so never collide).
type Lineage struct {
	Original []*PricingComponentRecord `json:"original"`
	Refunds  []*PricingComponentRecord `json:"refunds"`
}

// Repository is the storage engine surface. Writes are insert-only; every
// multi-row write is atomic per event. Version-assigning writes run the
// read-max-then-insert sequence inside one transaction under a per-scope
// advisory lock, which keeps version families monotonic under concurrent
// writers.
type Repository interface {
	// InsertPricingSnapshot assigns version = max(order)+1, stamps it on all
	// rows, and inserts them in one transaction. Used by both pricing-update
	// and refund-issuance normalization (shared per-order counter).
	InsertPricingSnapshot(ctx context.Context, orderID string, rows []*PricingComponentRecord) (version int, err error)

	// InsertPaymentEntry assigns timeline_version = max(order)+1 and inserts.
	InsertPaymentEntry(ctx context.Context, entry *PaymentTimelineRecord) (timelineVersion int, err error)

	// InsertSupplierEntry assigns supplier_timeline_version =
	// max(order, order detail)+1, stamps it on the entry and every derived
	// payable line, and inserts all rows in one transaction.
	InsertSupplierEntry(ctx context.Context, entry *SupplierTimelineRecord, lines []*PayableLineRecord) (version int, err error)

	// InsertRefundEntry persists a refund timeline entry with its
	// caller-supplied version.
	InsertRefundEntry(ctx context.Context, entry *RefundTimelineRecord) error

	InsertDeadLetter(ctx context.Context, entry *DeadLetterRecord) error
	ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetterRecord, error)

	// LatestPricingComponents returns the rows holding the maximum version
	// per (order, semantic id) — the latest breakdown projection.
	LatestPricingComponents(ctx context.Context, orderID string) ([]*PricingComponentRecord, error)

	// PricingHistory returns per-version rollups, newest first.
	PricingHistory(ctx context.Context, orderID string) ([]*PricingHistoryEntry, error)

	// ComponentLineage returns original occurrences of a semantic id plus
	// the refund rows pointing back at it.
	ComponentLineage(ctx context.Context, semanticID string) (*Lineage, error)

	PaymentTimeline(ctx context.Context, orderID string) ([]*PaymentTimelineRecord, error)
	SupplierTimeline(ctx context.Context, orderID, orderDetailID string) ([]*SupplierTimelineRecord, error)

	// SupplierRows returns every supplier timeline row for an order,
	// optionally narrowed to one order detail (empty string means all).
	// Status resolution happens in the projection layer, not in SQL.
	SupplierRows(ctx context.Context, orderID, orderDetailID string) ([]*SupplierTimelineRecord, error)

	// PayableLines returns the breakdown lines derived from one supplier
	// timeline version.
	PayableLines(ctx context.Context, orderID, orderDetailID string, version int) ([]*PayableLineRecord, error)

	RefundTimeline(ctx context.Context, orderID string) ([]*RefundTimelineRecord, error)
	ListOrders(ctx context.Context) ([]string, error)
}
