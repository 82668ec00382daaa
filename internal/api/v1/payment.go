package v1

import (
	"encoding/json"
	"fmt"
)

// StatusCaptured is the status implied by legacy flat payment events, which
// predate the status field and were only ever emitted on capture.
const StatusCaptured = "Captured"

// PaymentInstrument is the masked instrument block. Only the member matching
// Type should be populated.
type PaymentInstrument struct {
	Type        string                 `json:"type"`
	VA          map[string]interface{} `json:"va,omitempty"`
	Card        map[string]interface{} `json:"card,omitempty"`
	EWallet     map[string]interface{} `json:"ewallet,omitempty"`
	BNPL        map[string]interface{} `json:"bnpl,omitempty"`
	DisplayHint string                 `json:"display_hint,omitempty"`
	PSPRef      string                 `json:"psp_ref,omitempty"`
	PSPTraceID  string                 `json:"psp_trace_id,omitempty"`
}

// PaymentMethod describes how the payment was made.
type PaymentMethod struct {
	Channel  string `json:"channel"`
	Provider string `json:"provider,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// Payment is the nested payment object carried by current producer events.
type Payment struct {
	Status              string                 `json:"status"`
	PaymentID           string                 `json:"payment_id,omitempty"`
	PGReferenceID       string                 `json:"pg_reference_id,omitempty"`
	PaymentMethod       PaymentMethod          `json:"payment_method"`
	Currency            string                 `json:"currency"`
	AuthorizedAmount    *int64                 `json:"authorized_amount,omitempty"`
	AuthorizedAt        string                 `json:"authorized_at,omitempty"`
	CapturedAmount      *int64                 `json:"captured_amount,omitempty"`
	CapturedAmountTotal *int64                 `json:"captured_amount_total,omitempty"`
	CapturedAt          string                 `json:"captured_at,omitempty"`
	Instrument          *PaymentInstrument     `json:"instrument,omitempty"`
	BNPLPlan            map[string]interface{} `json:"bnpl_plan,omitempty"`
}

// PaymentLifecycleEvent is the raw payment timeline producer event. Two
// shapes validate: the nested payment object (preferred) and the legacy flat
// method/amount/currency fields directly on the event.
type PaymentLifecycleEvent struct {
	EventID        string                 `json:"event_id,omitempty"`
	EventType      string                 `json:"event_type"`
	SchemaVersion  string                 `json:"schema_version,omitempty"`
	OrderID        string                 `json:"order_id"`
	EmittedAt      string                 `json:"emitted_at"`
	Payment        *Payment               `json:"payment,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	EmitterService string                 `json:"emitter_service,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`

	// Legacy flat shape (deprecated).
	PaymentMethodFlat string                 `json:"payment_method,omitempty"`
	AmountFlat        *int64                 `json:"amount,omitempty"`
	CurrencyFlat      string                 `json:"currency,omitempty"`
	PGReferenceIDFlat string                 `json:"pg_reference_id,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

func (e *PaymentLifecycleEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if e.EmittedAt == "" {
		return fmt.Errorf("emitted_at is required")
	}
	if _, err := ParseEmittedAt(e.EmittedAt); err != nil {
		return err
	}

	if e.Payment != nil {
		if e.Payment.Status == "" {
			return fmt.Errorf("payment.status is required")
		}
		if e.Payment.PaymentMethod.Channel == "" {
			return fmt.Errorf("payment.payment_method.channel is required")
		}
		if e.Payment.Currency == "" {
			return fmt.Errorf("payment.currency is required")
		}
		return nil
	}

	// Legacy flat shape: the full triple is required.
	if e.PaymentMethodFlat == "" {
		return fmt.Errorf("payment object or legacy payment_method is required")
	}
	if e.AmountFlat == nil {
		return fmt.Errorf("amount is required for legacy payment events")
	}
	if e.CurrencyFlat == "" {
		return fmt.Errorf("currency is required for legacy payment events")
	}
	return nil
}

// EffectiveMetadata resolves the meta/metadata alias pair.
func (e *PaymentLifecycleEvent) EffectiveMetadata() map[string]interface{} {
	if len(e.Meta) > 0 {
		return e.Meta
	}
	return e.Metadata
}

// CanonicalPayment is the single internal payment representation every wire
// variant collapses into before any business rule runs.
type CanonicalPayment struct {
	Status              string
	Method              string
	IntentID            string
	AuthorizedAmount    *int64
	CapturedAmount      *int64
	CapturedAmountTotal *int64

	// LegacyAmount is the backward-compatible amount field: captured if
	// present, else authorized, else zero.
	LegacyAmount int64

	Currency       string
	InstrumentJSON string
	PGReferenceID  string
}

// Canonical maps either accepted shape into the canonical representation.
// Legacy flat events are treated as captures. Call only after Validate.
func (e *PaymentLifecycleEvent) Canonical() (CanonicalPayment, error) {
	if e.Payment == nil {
		amt := *e.AmountFlat
		return CanonicalPayment{
			Status:              StatusCaptured,
			Method:              e.PaymentMethodFlat,
			CapturedAmount:      &amt,
			CapturedAmountTotal: &amt,
			LegacyAmount:        amt,
			Currency:            e.CurrencyFlat,
			PGReferenceID:       e.PGReferenceIDFlat,
		}, nil
	}

	p := e.Payment
	cp := CanonicalPayment{
		Status:              p.Status,
		Method:              p.PaymentMethod.Channel,
		IntentID:            p.PaymentID,
		AuthorizedAmount:    p.AuthorizedAmount,
		CapturedAmount:      p.CapturedAmount,
		CapturedAmountTotal: p.CapturedAmountTotal,
		Currency:            p.Currency,
		PGReferenceID:       p.PGReferenceID,
	}

	// Exactly one amount-resolution rule for the legacy field.
	switch {
	case p.CapturedAmount != nil:
		cp.LegacyAmount = *p.CapturedAmount
	case p.AuthorizedAmount != nil:
		cp.LegacyAmount = *p.AuthorizedAmount
	}

	if p.Instrument != nil {
		raw, err := json.Marshal(p.Instrument)
		if err != nil {
			return CanonicalPayment{}, fmt.Errorf("serializing payment instrument: %w", err)
		}
		cp.InstrumentJSON = string(raw)
	}
	return cp, nil
}
