package v1

import "fmt"

// AffiliateShareback is the commission owed to a B2B reseller.
// Amounts and rates arrive as decimals and are truncated to integer minor
// units during payable derivation.
type AffiliateShareback struct {
	ComponentType string  `json:"component_type,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Rate          float64 `json:"rate"`
	Basis         string  `json:"basis"`
}

// AffiliateTax is a withholding tax levied on the shareback.
type AffiliateTax struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
	Basis    string  `json:"basis"`
}

// Affiliate carries the B2B reseller obligations attached to a supplier event.
type Affiliate struct {
	ResellerID       string                 `json:"reseller_id,omitempty"`
	ResellerName     string                 `json:"reseller_name,omitempty"`
	PartnerShareback AffiliateShareback     `json:"partnerShareback"`
	Taxes            []AffiliateTax         `json:"taxes"`
	Meta             map[string]interface{} `json:"meta,omitempty"`
}

// Cancellation carries the fee retained when a supplier order is cancelled.
type Cancellation struct {
	FeeAmount   *int64 `json:"fee_amount,omitempty"`
	FeeCurrency string `json:"fee_currency,omitempty"`
}

// Supplier is the nested supplier object carried by current producer events.
type Supplier struct {
	Status        string         `json:"status"`
	SupplierID    string         `json:"supplier_id"`
	BookingCode   string         `json:"booking_code,omitempty"`
	SupplierRef   string         `json:"supplier_ref,omitempty"`
	AmountDue     *int64         `json:"amount_due,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	FXContext     *FXContext     `json:"fx_context,omitempty"`
	EntityContext *EntityContext `json:"entity_context,omitempty"`
	Affiliate     *Affiliate     `json:"affiliate,omitempty"`
	Cancellation  *Cancellation  `json:"cancellation,omitempty"`
}

// SupplierLifecycleEvent is the raw supplier timeline producer event. Two
// shapes validate: the nested supplier object (preferred) and the legacy flat
// supplier fields directly on the event.
type SupplierLifecycleEvent struct {
	EventID        string                 `json:"event_id,omitempty"`
	EventType      string                 `json:"event_type"`
	SchemaVersion  string                 `json:"schema_version,omitempty"`
	OrderID        string                 `json:"order_id"`
	OrderDetailID  string                 `json:"order_detail_id"`
	EmittedAt      string                 `json:"emitted_at"`
	Supplier       *Supplier              `json:"supplier,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	EmitterService string                 `json:"emitter_service,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`

	// Legacy flat shape (deprecated).
	SupplierIDFlat  string                 `json:"supplier_id,omitempty"`
	SupplierRefFlat string                 `json:"supplier_reference_id,omitempty"`
	AmountFlat      *int64                 `json:"amount,omitempty"`
	CurrencyFlat    string                 `json:"currency,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

func (e *SupplierLifecycleEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if e.OrderDetailID == "" {
		return fmt.Errorf("order_detail_id is required")
	}
	if e.EmittedAt == "" {
		return fmt.Errorf("emitted_at is required")
	}
	if _, err := ParseEmittedAt(e.EmittedAt); err != nil {
		return err
	}

	if e.Supplier != nil {
		if e.Supplier.Status == "" {
			return fmt.Errorf("supplier.status is required")
		}
		if e.Supplier.SupplierID == "" {
			return fmt.Errorf("supplier.supplier_id is required")
		}
		return nil
	}

	if e.SupplierIDFlat == "" {
		return fmt.Errorf("supplier object or legacy supplier_id is required")
	}
	return nil
}

// CanonicalSupplier is the single internal supplier representation every wire
// variant collapses into before any business rule runs.
type CanonicalSupplier struct {
	SupplierID              string
	BookingCode             string
	SupplierReferenceID     string
	AmountDue               *int64
	Currency                string
	Status                  string
	CancellationFeeAmount   *int64
	CancellationFeeCurrency string
	Metadata                map[string]interface{}

	// Affiliate is only carried by the nested shape; payable derivation
	// depends on it.
	Affiliate *Affiliate

	// Nested records which shape produced this value. Payable lines are
	// derived only from nested events.
	Nested bool
}

// Canonical maps either accepted shape into the canonical representation.
// Call only after Validate.
func (e *SupplierLifecycleEvent) Canonical() CanonicalSupplier {
	if e.Supplier == nil {
		return CanonicalSupplier{
			SupplierID:          e.SupplierIDFlat,
			SupplierReferenceID: e.SupplierRefFlat,
			AmountDue:           e.AmountFlat,
			Currency:            e.CurrencyFlat,
			Metadata:            e.Metadata,
		}
	}

	s := e.Supplier
	cs := CanonicalSupplier{
		SupplierID:          s.SupplierID,
		BookingCode:         s.BookingCode,
		SupplierReferenceID: s.SupplierRef,
		AmountDue:           s.AmountDue,
		Currency:            s.Currency,
		Status:              s.Status,
		Affiliate:           s.Affiliate,
		Nested:              true,
	}
	if s.Cancellation != nil {
		cs.CancellationFeeAmount = s.Cancellation.FeeAmount
		cs.CancellationFeeCurrency = s.Cancellation.FeeCurrency
	}

	// Rich supplier facts travel in the normalized metadata column.
	meta := map[string]interface{}{}
	if s.EntityContext != nil {
		meta["entity_code"] = s.EntityContext.EntityCode
	}
	if s.Affiliate != nil {
		meta["affiliate"] = s.Affiliate
	}
	if len(meta) > 0 {
		cs.Metadata = meta
	}
	return cs
}
