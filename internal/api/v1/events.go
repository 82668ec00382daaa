// Package v1 defines the producer event documents accepted by the ingestion
// entry point, one set of shapes per event kind, together with the structural
// validation each kind requires. Producer events never carry enrichment
// fields (snapshot id, version numbers) — those are assigned during
// normalization.
package v1

import (
	"fmt"
	"time"
)

// Event type discriminators. Producers historically emitted both a dotted
// family ("pricing.updated") and a Pascal-case family ("PricingUpdated");
// both remain valid.
const (
	TypePricingUpdated          = "pricing.updated"
	TypePricingUpdatedAlias     = "PricingUpdated"
	TypePaymentCheckout         = "payment.checkout"
	TypePaymentAuthorized       = "payment.authorized"
	TypePaymentCaptured         = "payment.captured"
	TypePaymentRefunded         = "payment.refunded"
	TypePaymentSettled          = "payment.settled"
	TypePaymentLifecycleAlias   = "PaymentLifecycle"
	TypeRefundInitiated         = "refund.initiated"
	TypeRefundIssued            = "refund.issued"
	TypeRefundIssuedAlias       = "RefundIssued"
	TypeRefundClosed            = "refund.closed"
	TypeSupplierOrderConfirmed  = "supplier.order.confirmed"
	TypeSupplierOrderIssued     = "supplier.order.issued"
	TypeSupplierInvoiceReceived = "supplier.invoice.received"
	TypeSupplierLifecycleAlias  = "IssuanceSupplierLifecycle"
)

// Kind classifies a discriminator into the handler family it dispatches to.
type Kind int

const (
	KindUnknown Kind = iota
	KindPricingUpdate
	KindRefundIssuance
	KindPaymentLifecycle
	KindSupplierLifecycle
	KindRefundTimeline
)

// KindOf maps an event_type discriminator to its kind.
// Unrecognized discriminators map to KindUnknown.
func KindOf(eventType string) Kind {
	switch eventType {
	case TypePricingUpdated, TypePricingUpdatedAlias:
		return KindPricingUpdate
	case TypeRefundIssued, TypeRefundIssuedAlias:
		return KindRefundIssuance
	case TypePaymentCheckout, TypePaymentAuthorized, TypePaymentCaptured,
		TypePaymentRefunded, TypePaymentSettled, TypePaymentLifecycleAlias:
		return KindPaymentLifecycle
	case TypeSupplierOrderConfirmed, TypeSupplierOrderIssued,
		TypeSupplierInvoiceReceived, TypeSupplierLifecycleAlias:
		return KindSupplierLifecycle
	case TypeRefundInitiated, TypeRefundClosed:
		return KindRefundTimeline
	default:
		return KindUnknown
	}
}

// ComponentType enumerates the commerce component vocabulary. The set is
// closed for dispatch purposes but open on the wire: unknown producer strings
// pass through unchanged rather than failing validation.
type ComponentType string

const (
	ComponentBaseFare           ComponentType = "BaseFare"
	ComponentRoomRate           ComponentType = "RoomRate"
	ComponentTax                ComponentType = "Tax"
	ComponentSubsidy            ComponentType = "Subsidy"
	ComponentDiscount           ComponentType = "Discount"
	ComponentFee                ComponentType = "Fee"
	ComponentMarkup             ComponentType = "Markup"
	ComponentCancellationFee    ComponentType = "CancellationFee"
	ComponentAmendmentFee       ComponentType = "AmendmentFee"
	ComponentRefund             ComponentType = "Refund"
	ComponentCompensation       ComponentType = "Compensation"
	ComponentAffiliateShareback ComponentType = "AffiliateShareback"
	ComponentVAT                ComponentType = "VAT"
)

var knownComponentTypes = map[ComponentType]struct{}{
	ComponentBaseFare: {}, ComponentRoomRate: {}, ComponentTax: {},
	ComponentSubsidy: {}, ComponentDiscount: {}, ComponentFee: {},
	ComponentMarkup: {}, ComponentCancellationFee: {}, ComponentAmendmentFee: {},
	ComponentRefund: {}, ComponentCompensation: {}, ComponentAffiliateShareback: {},
	ComponentVAT: {},
}

// Known reports whether the component type belongs to the closed enumeration.
// Unknown types are still valid — they persist as passthrough strings.
func (c ComponentType) Known() bool {
	_, ok := knownComponentTypes[c]
	return ok
}

// emittedAtLayouts are the timestamp shapes producers actually send.
var emittedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseEmittedAt parses a producer emission timestamp. Fails closed on
// anything that is not one of the accepted layouts.
func ParseEmittedAt(s string) (time.Time, error) {
	for _, layout := range emittedAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable emitted_at %q", s)
}

// PricingComponent is one line of a pricing or refund-issuance event.
type PricingComponent struct {
	ComponentType ComponentType     `json:"component_type"`
	Amount        *int64            `json:"amount"`
	Currency      string            `json:"currency"`
	Dimensions    map[string]string `json:"dimensions"`
	Description   string            `json:"description,omitempty"`

	// IsRefund may be set explicitly by the producer; absent it is inferred
	// from the reversal pointer.
	IsRefund *bool `json:"is_refund,omitempty"`

	// Meta and Metadata are aliases; Meta wins when both are present.
	Meta     map[string]interface{} `json:"meta,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	RefundOfComponentSemanticID string `json:"refund_of_component_semantic_id,omitempty"`
}

// EffectiveMetadata resolves the meta/metadata alias pair.
func (c *PricingComponent) EffectiveMetadata() map[string]interface{} {
	if len(c.Meta) > 0 {
		return c.Meta
	}
	return c.Metadata
}

// RefundFlag reports whether this component is a refund: explicitly flagged,
// or carrying a reversal pointer. Whichever arm is true, the flag is true
// after normalization.
func (c *PricingComponent) RefundFlag() bool {
	if c.IsRefund != nil {
		return *c.IsRefund
	}
	return c.RefundOfComponentSemanticID != ""
}

func (c *PricingComponent) validate(i int) error {
	if c.ComponentType == "" {
		return fmt.Errorf("components[%d]: component_type is required", i)
	}
	if c.Amount == nil {
		return fmt.Errorf("components[%d]: amount is required", i)
	}
	if c.Currency == "" {
		return fmt.Errorf("components[%d]: currency is required", i)
	}
	if c.Dimensions == nil {
		return fmt.Errorf("components[%d]: dimensions is required (may be empty)", i)
	}
	return nil
}

// CustomerContext identifies the reseller for B2B scenarios.
type CustomerContext struct {
	ResellerTypeName string `json:"reseller_type_name,omitempty"`
	ResellerID       string `json:"reseller_id,omitempty"`
	ResellerName     string `json:"reseller_name,omitempty"`
}

// EntityContext carries legal-entity attribution.
type EntityContext struct {
	EntityCode       string `json:"entity_code,omitempty"`
	MerchantOfRecord string `json:"merchant_of_record,omitempty"`
	SupplierEntity   string `json:"supplier_entity,omitempty"`
	CustomerEntity   string `json:"customer_entity,omitempty"`
}

// FXContext carries the exchange-rate facts for multi-currency orders.
type FXContext struct {
	TimestampFXRate       string  `json:"timestamp_fx_rate,omitempty"`
	AsOf                  string  `json:"as_of,omitempty"`
	PaymentCurrency       string  `json:"payment_currency"`
	SupplyCurrency        string  `json:"supply_currency"`
	RecordCurrency        string  `json:"record_currency"`
	GBVCurrency           string  `json:"gbv_currency"`
	PaymentValue          int64   `json:"payment_value"`
	SupplyToPaymentFXRate float64 `json:"supply_to_payment_fx_rate"`
	SupplyToRecordFXRate  float64 `json:"supply_to_record_fx_rate"`
	PaymentToGBVFXRate    float64 `json:"payment_to_gbv_fx_rate"`
	Source                string  `json:"source"`
}

// DetailContext scopes entity/FX facts to one order detail.
type DetailContext struct {
	OrderDetailID string         `json:"order_detail_id"`
	EntityContext *EntityContext `json:"entity_context,omitempty"`
	FXContext     *FXContext     `json:"fx_context,omitempty"`
}

// Totals is a producer-side validation aid; the engine stores it untouched.
type Totals struct {
	CustomerTotal int64  `json:"customer_total"`
	Currency      string `json:"currency"`
}

// PricingUpdatedEvent is the raw pricing-change producer event.
// Two historical context shapes both validate: the legacy singular
// detail_context and the current detail_contexts array. When both appear the
// array takes precedence.
type PricingUpdatedEvent struct {
	EventID         string                 `json:"event_id,omitempty"`
	EventType       string                 `json:"event_type"`
	SchemaVersion   string                 `json:"schema_version,omitempty"`
	OrderID         string                 `json:"order_id"`
	Vertical        string                 `json:"vertical,omitempty"`
	Components      []PricingComponent     `json:"components"`
	EmittedAt       string                 `json:"emitted_at"`
	EmitterService  string                 `json:"emitter_service,omitempty"`
	CustomerContext *CustomerContext       `json:"customer_context,omitempty"`
	DetailContext   *DetailContext         `json:"detail_context,omitempty"`
	DetailContexts  []DetailContext        `json:"detail_contexts,omitempty"`
	Totals          *Totals                `json:"totals,omitempty"`
	Meta            map[string]interface{} `json:"meta,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Validate fail-closed checks the pricing event shape.
func (e *PricingUpdatedEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if len(e.Components) == 0 {
		return fmt.Errorf("components must not be empty")
	}
	if e.EmittedAt == "" {
		return fmt.Errorf("emitted_at is required")
	}
	if _, err := ParseEmittedAt(e.EmittedAt); err != nil {
		return err
	}
	for i := range e.Components {
		if err := e.Components[i].validate(i); err != nil {
			return err
		}
	}
	for i, ctx := range e.DetailContexts {
		if ctx.OrderDetailID == "" {
			return fmt.Errorf("detail_contexts[%d]: order_detail_id is required", i)
		}
	}
	if e.DetailContext != nil && e.DetailContext.OrderDetailID == "" {
		return fmt.Errorf("detail_context: order_detail_id is required")
	}
	return nil
}

// ContextMap builds the order-detail-id → context lookup used during
// enrichment. The detail_contexts array takes precedence over the legacy
// singular form.
func (e *PricingUpdatedEvent) ContextMap() map[string]DetailContext {
	m := make(map[string]DetailContext)
	if len(e.DetailContexts) > 0 {
		for _, ctx := range e.DetailContexts {
			m[ctx.OrderDetailID] = ctx
		}
		return m
	}
	if e.DetailContext != nil {
		m[e.DetailContext.OrderDetailID] = *e.DetailContext
	}
	return m
}

// RefundIssuedEvent is the raw refund-issuance producer event. Its components
// reverse prior pricing components; their semantic ids embed the refund id.
type RefundIssuedEvent struct {
	EventID        string                 `json:"event_id,omitempty"`
	EventType      string                 `json:"event_type"`
	SchemaVersion  string                 `json:"schema_version,omitempty"`
	OrderID        string                 `json:"order_id"`
	RefundID       string                 `json:"refund_id"`
	Components     []PricingComponent     `json:"components"`
	EmittedAt      string                 `json:"emitted_at"`
	EmitterService string                 `json:"emitter_service,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func (e *RefundIssuedEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if e.RefundID == "" {
		return fmt.Errorf("refund_id is required")
	}
	if len(e.Components) == 0 {
		return fmt.Errorf("components must not be empty")
	}
	if e.EmittedAt == "" {
		return fmt.Errorf("emitted_at is required")
	}
	if _, err := ParseEmittedAt(e.EmittedAt); err != nil {
		return err
	}
	for i := range e.Components {
		if err := e.Components[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

// RefundLifecycleEvent is a refund timeline entry (initiated, closed).
// Its version number is caller-supplied — the one version family the engine
// does not assign.
type RefundLifecycleEvent struct {
	EventID               string                 `json:"event_id,omitempty"`
	EventType             string                 `json:"event_type"`
	SchemaVersion         string                 `json:"schema_version,omitempty"`
	OrderID               string                 `json:"order_id"`
	RefundID              string                 `json:"refund_id"`
	RefundTimelineVersion int                    `json:"refund_timeline_version"`
	RefundAmount          *int64                 `json:"refund_amount"`
	Currency              string                 `json:"currency"`
	RefundReason          string                 `json:"refund_reason,omitempty"`
	EmittedAt             string                 `json:"emitted_at"`
	EmitterService        string                 `json:"emitter_service,omitempty"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

func (e *RefundLifecycleEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if e.RefundID == "" {
		return fmt.Errorf("refund_id is required")
	}
	if e.RefundTimelineVersion < 1 {
		return fmt.Errorf("refund_timeline_version must be >= 1")
	}
	if e.RefundAmount == nil {
		return fmt.Errorf("refund_amount is required")
	}
	if e.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if e.EmittedAt == "" {
		return fmt.Errorf("emitted_at is required")
	}
	if _, err := ParseEmittedAt(e.EmittedAt); err != nil {
		return err
	}
	return nil
}
