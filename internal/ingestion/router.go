package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	v1 "github.com/ordercore-lab/order-core/internal/api/v1"
	ocerrors "github.com/ordercore-lab/order-core/internal/core/errors"
	"github.com/ordercore-lab/order-core/internal/core/identity"
	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// Result reports one ingestion attempt. Details carries the per-kind
// normalization facts (assigned snapshot id, version, counts).
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// probe extracts just enough of any payload to route it, and to attribute a
// dead letter when routing or validation fails.
type probe struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}

// Ingest routes a raw producer event to its kind handler. Every failure path
// writes a dead letter and returns a failure Result; there is no automatic
// retry.
func (s *Service) Ingest(ctx context.Context, raw []byte) Result {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to parse event envelope: %v", err))
	}

	if p.EventType == "" {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQMissingEventType,
			"Event missing event_type field")
	}

	switch v1.KindOf(p.EventType) {
	case v1.KindPricingUpdate:
		return s.ingestPricingUpdate(ctx, raw, p)
	case v1.KindRefundIssuance:
		return s.ingestRefundIssued(ctx, raw, p)
	case v1.KindPaymentLifecycle:
		return s.ingestPaymentLifecycle(ctx, raw, p)
	case v1.KindSupplierLifecycle:
		return s.ingestSupplierLifecycle(ctx, raw, p)
	case v1.KindRefundTimeline:
		return s.ingestRefundLifecycle(ctx, raw, p)
	default:
		return s.deadLetter(ctx, raw, p, ocerrors.DLQUnknownEventType,
			fmt.Sprintf("Unknown event_type: %s", p.EventType))
	}
}

// ingestPricingUpdate normalizes a pricing change: mints the snapshot id,
// assigns dual identifiers per component, matches each component to its
// detail context, and persists all rows atomically. The version number is
// assigned inside the storage transaction.
func (s *Service) ingestPricingUpdate(ctx context.Context, raw []byte, p probe) Result {
	var event v1.PricingUpdatedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("failed to parse pricing event: %v", err))
	}
	if err := event.Validate(); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("Validation failed: %v", err))
	}

	snapshotID := uuid.NewString()
	contextMap := event.ContextMap()
	emittedAt, _ := v1.ParseEmittedAt(event.EmittedAt)
	ingestedAt := time.Now().UTC()

	emitter := event.EmitterService
	if emitter == "" {
		emitter = "pricing-service"
	}

	rows := make([]*storage.PricingComponentRecord, 0, len(event.Components))
	for i := range event.Components {
		component := &event.Components[i]
		semanticID, instanceID := identity.DualIDs(
			event.OrderID, string(component.ComponentType), component.Dimensions, snapshotID, "")

		metadata := enrichComponentMetadata(component, contextMap)

		rows = append(rows, &storage.PricingComponentRecord{
			SemanticID:         semanticID,
			InstanceID:         instanceID,
			OrderID:            event.OrderID,
			SnapshotID:         snapshotID,
			ComponentType:      string(component.ComponentType),
			Amount:             *component.Amount,
			Currency:           component.Currency,
			Dimensions:         component.Dimensions,
			Description:        component.Description,
			IsRefund:           component.RefundFlag(),
			RefundOfSemanticID: component.RefundOfComponentSemanticID,
			EmitterService:     emitter,
			IngestedAt:         ingestedAt,
			EmittedAt:          emittedAt,
			Metadata:           metadata,
		})
	}

	version, err := s.repo.InsertPricingSnapshot(ctx, event.OrderID, rows)
	if err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to persist pricing snapshot: %v", err))
	}

	slog.Info("Ingested pricing snapshot",
		"order_id", event.OrderID,
		"pricing_snapshot_id", snapshotID,
		"version", version,
		"component_count", len(rows))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Ingested %d components (v%d)", len(rows), version),
		Details: map[string]interface{}{
			"event_id":            event.EventID,
			"order_id":            event.OrderID,
			"pricing_snapshot_id": snapshotID,
			"version":             version,
			"component_count":     len(rows),
			"context_count":       len(contextMap),
		},
	}
}

// enrichComponentMetadata resolves the component metadata and merges in the
// entity and FX context matched by the component's own order_detail_id
// dimension. The producer map is never mutated.
func enrichComponentMetadata(component *v1.PricingComponent, contextMap map[string]v1.DetailContext) map[string]interface{} {
	base := component.EffectiveMetadata()

	matched, ok := contextMap[component.Dimensions["order_detail_id"]]
	if !ok || (matched.EntityContext == nil && matched.FXContext == nil) {
		return base
	}

	metadata := make(map[string]interface{}, len(base)+2)
	for k, v := range base {
		metadata[k] = v
	}
	if matched.EntityContext != nil {
		metadata["entity_context"] = matched.EntityContext
	}
	if matched.FXContext != nil {
		metadata["fx_context"] = matched.FXContext
	}
	return metadata
}

// ingestRefundIssued normalizes refund issuance. It shares the pricing
// version counter, and semantic ids embed the refund id so refund components
// never collide with the components they reverse.
func (s *Service) ingestRefundIssued(ctx context.Context, raw []byte, p probe) Result {
	var event v1.RefundIssuedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("failed to parse refund event: %v", err))
	}
	if err := event.Validate(); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("Validation failed: %v", err))
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	snapshotID := uuid.NewString()
	emittedAt, _ := v1.ParseEmittedAt(event.EmittedAt)
	ingestedAt := time.Now().UTC()

	emitter := event.EmitterService
	if emitter == "" {
		emitter = "refund-service"
	}

	rows := make([]*storage.PricingComponentRecord, 0, len(event.Components))
	for i := range event.Components {
		component := &event.Components[i]
		semanticID, instanceID := identity.DualIDs(
			event.OrderID, string(component.ComponentType), component.Dimensions, snapshotID, event.RefundID)

		rows = append(rows, &storage.PricingComponentRecord{
			SemanticID:         semanticID,
			InstanceID:         instanceID,
			OrderID:            event.OrderID,
			SnapshotID:         snapshotID,
			ComponentType:      string(component.ComponentType),
			Amount:             *component.Amount,
			Currency:           component.Currency,
			Dimensions:         component.Dimensions,
			Description:        component.Description,
			IsRefund:           component.RefundFlag(),
			RefundOfSemanticID: component.RefundOfComponentSemanticID,
			EmitterService:     emitter,
			IngestedAt:         ingestedAt,
			EmittedAt:          emittedAt,
			Metadata:           component.EffectiveMetadata(),
		})
	}

	version, err := s.repo.InsertPricingSnapshot(ctx, event.OrderID, rows)
	if err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to persist refund snapshot: %v", err))
	}

	slog.Info("Ingested refund issuance",
		"order_id", event.OrderID,
		"refund_id", event.RefundID,
		"version", version,
		"component_count", len(rows))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Ingested refund with %d components (v%d)", len(rows), version),
		Details: map[string]interface{}{
			"event_id":            eventID,
			"order_id":            event.OrderID,
			"refund_id":           event.RefundID,
			"pricing_snapshot_id": snapshotID,
			"version":             version,
			"component_count":     len(rows),
		},
	}
}

// ingestPaymentLifecycle normalizes a payment timeline entry from either wire
// shape. The timeline version is assigned inside the storage transaction.
func (s *Service) ingestPaymentLifecycle(ctx context.Context, raw []byte, p probe) Result {
	var event v1.PaymentLifecycleEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("failed to parse payment event: %v", err))
	}
	if err := event.Validate(); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("Validation failed: %v", err))
	}

	canonical, err := event.Canonical()
	if err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to canonicalize payment: %v", err))
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	emittedAt, _ := v1.ParseEmittedAt(event.EmittedAt)

	emitter := event.EmitterService
	if emitter == "" {
		emitter = "payment-core"
	}

	entry := &storage.PaymentTimelineRecord{
		EventID:             eventID,
		OrderID:             event.OrderID,
		EventType:           event.EventType,
		Status:              canonical.Status,
		PaymentMethod:       canonical.Method,
		PaymentIntentID:     canonical.IntentID,
		AuthorizedAmount:    canonical.AuthorizedAmount,
		CapturedAmount:      canonical.CapturedAmount,
		CapturedAmountTotal: canonical.CapturedAmountTotal,
		Amount:              canonical.LegacyAmount,
		Currency:            canonical.Currency,
		InstrumentJSON:      canonical.InstrumentJSON,
		PGReferenceID:       canonical.PGReferenceID,
		EmitterService:      emitter,
		IngestedAt:          time.Now().UTC(),
		EmittedAt:           emittedAt,
		Metadata:            event.EffectiveMetadata(),
	}

	version, err := s.repo.InsertPaymentEntry(ctx, entry)
	if err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to persist payment entry: %v", err))
	}

	slog.Info("Ingested payment event",
		"order_id", event.OrderID,
		"event_type", event.EventType,
		"timeline_version", version,
		"status", canonical.Status)

	return Result{
		Success: true,
		Message: fmt.Sprintf("Ingested payment event: %s (v%d)", event.EventType, version),
		Details: map[string]interface{}{
			"event_id":         eventID,
			"order_id":         event.OrderID,
			"timeline_version": version,
			"status":           canonical.Status,
			"payment_method":   canonical.Method,
			"amount":           canonical.LegacyAmount,
		},
	}
}

// ingestSupplierLifecycle normalizes a supplier timeline entry and derives
// its payable obligation lines. Lines exist only for nested-shape events
// that carry a due amount; pure cancellation events produce none.
func (s *Service) ingestSupplierLifecycle(ctx context.Context, raw []byte, p probe) Result {
	var event v1.SupplierLifecycleEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("failed to parse supplier event: %v", err))
	}
	if err := event.Validate(); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("Validation failed: %v", err))
	}

	canonical := event.Canonical()

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	emittedAt, _ := v1.ParseEmittedAt(event.EmittedAt)
	ingestedAt := time.Now().UTC()

	emitter := event.EmitterService
	if emitter == "" {
		emitter = "supplier-service"
	}

	entry := &storage.SupplierTimelineRecord{
		EventID:                 eventID,
		OrderID:                 event.OrderID,
		OrderDetailID:           event.OrderDetailID,
		EventType:               event.EventType,
		SupplierID:              canonical.SupplierID,
		BookingCode:             canonical.BookingCode,
		SupplierReferenceID:     canonical.SupplierReferenceID,
		Amount:                  canonical.AmountDue,
		Currency:                canonical.Currency,
		Status:                  canonical.Status,
		CancellationFeeAmount:   canonical.CancellationFeeAmount,
		CancellationFeeCurrency: canonical.CancellationFeeCurrency,
		EmitterService:          emitter,
		IngestedAt:              ingestedAt,
		EmittedAt:               emittedAt,
		Metadata:                canonical.Metadata,
	}

	lines := derivePayableLines(eventID, &event, canonical, ingestedAt)

	version, err := s.repo.InsertSupplierEntry(ctx, entry, lines)
	if err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to persist supplier entry: %v", err))
	}

	slog.Info("Ingested supplier event",
		"order_id", event.OrderID,
		"order_detail_id", event.OrderDetailID,
		"supplier_timeline_version", version,
		"payable_lines", len(lines))

	message := fmt.Sprintf("Ingested supplier event: %s", event.EventType)
	if len(lines) > 0 {
		message += fmt.Sprintf(" with %d payable lines", len(lines))
	}

	details := map[string]interface{}{
		"event_id":        eventID,
		"order_id":        event.OrderID,
		"order_detail_id": event.OrderDetailID,
		"supplier_id":     canonical.SupplierID,
		"payable_lines":   len(lines),
	}
	if canonical.AmountDue != nil {
		details["amount"] = *canonical.AmountDue
	}

	return Result{Success: true, Message: message, Details: details}
}

// derivePayableLines expands a supplier event into its obligation lines: the
// supplier cost itself, the affiliate commission when a B2B reseller is
// attached, and one withholding line per tax. Decimal shareback and tax
// amounts are truncated to integer minor units.
func derivePayableLines(eventID string, event *v1.SupplierLifecycleEvent, canonical v1.CanonicalSupplier, ingestedAt time.Time) []*storage.PayableLineRecord {
	if !canonical.Nested || canonical.AmountDue == nil {
		return nil
	}

	lines := []*storage.PayableLineRecord{
		{
			LineID:         eventID + "_SUPPLIER",
			EventID:        eventID,
			OrderID:        event.OrderID,
			OrderDetailID:  event.OrderDetailID,
			ObligationType: storage.ObligationSupplier,
			PartyID:        canonical.SupplierID,
			PartyName:      canonical.SupplierID,
			Amount:         *canonical.AmountDue,
			Currency:       canonical.Currency,
			IngestedAt:     ingestedAt,
		},
	}

	affiliate := canonical.Affiliate
	if affiliate == nil {
		return lines
	}

	shareback := affiliate.PartnerShareback
	resellerID := affiliate.ResellerID
	if resellerID == "" {
		resellerID = "UNKNOWN"
	}
	resellerName := affiliate.ResellerName
	if resellerName == "" {
		resellerName = "Affiliate Partner"
	}

	sharebackRate := shareback.Rate
	lines = append(lines, &storage.PayableLineRecord{
		LineID:                 eventID + "_AFFILIATE",
		EventID:                eventID,
		OrderID:                event.OrderID,
		OrderDetailID:          event.OrderDetailID,
		ObligationType:         storage.ObligationAffiliateCommission,
		PartyID:                resellerID,
		PartyName:              resellerName,
		Amount:                 decimal.NewFromFloat(shareback.Amount).IntPart(),
		Currency:               shareback.Currency,
		CalculationBasis:       shareback.Basis,
		CalculationRate:        &sharebackRate,
		CalculationDescription: fmt.Sprintf("%.0f%% of %s", shareback.Rate*100, shareback.Basis),
		IngestedAt:             ingestedAt,
	})

	for i := range affiliate.Taxes {
		tax := &affiliate.Taxes[i]
		taxRate := tax.Rate
		lines = append(lines, &storage.PayableLineRecord{
			LineID:                 fmt.Sprintf("%s_TAX_%d", eventID, i),
			EventID:                eventID,
			OrderID:                event.OrderID,
			OrderDetailID:          event.OrderDetailID,
			ObligationType:         storage.ObligationTaxWithholding,
			PartyID:                "TAX_" + tax.Type,
			PartyName:              tax.Type + " Tax",
			Amount:                 decimal.NewFromFloat(tax.Amount).IntPart(),
			Currency:               tax.Currency,
			CalculationBasis:       tax.Basis,
			CalculationRate:        &taxRate,
			CalculationDescription: fmt.Sprintf("%.0f%% %s on %s", tax.Rate*100, tax.Type, tax.Basis),
			IngestedAt:             ingestedAt,
		})
	}
	return lines
}

// ingestRefundLifecycle persists a refund timeline entry. The version number
// is caller-supplied, the one family the engine does not assign.
func (s *Service) ingestRefundLifecycle(ctx context.Context, raw []byte, p probe) Result {
	var event v1.RefundLifecycleEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("failed to parse refund lifecycle event: %v", err))
	}
	if err := event.Validate(); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQValidationError,
			fmt.Sprintf("Validation failed: %v", err))
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	emittedAt, _ := v1.ParseEmittedAt(event.EmittedAt)

	emitter := event.EmitterService
	if emitter == "" {
		emitter = "refund-service"
	}

	entry := &storage.RefundTimelineRecord{
		EventID:               eventID,
		OrderID:               event.OrderID,
		RefundID:              event.RefundID,
		RefundTimelineVersion: event.RefundTimelineVersion,
		EventType:             event.EventType,
		RefundAmount:          *event.RefundAmount,
		Currency:              event.Currency,
		RefundReason:          event.RefundReason,
		EmitterService:        emitter,
		IngestedAt:            time.Now().UTC(),
		EmittedAt:             emittedAt,
		Metadata:              event.Metadata,
	}

	if err := s.repo.InsertRefundEntry(ctx, entry); err != nil {
		return s.deadLetter(ctx, raw, p, ocerrors.DLQPipelineError,
			fmt.Sprintf("failed to persist refund lifecycle entry: %v", err))
	}

	slog.Info("Ingested refund lifecycle event",
		"order_id", event.OrderID,
		"refund_id", event.RefundID,
		"refund_timeline_version", event.RefundTimelineVersion)

	return Result{
		Success: true,
		Message: fmt.Sprintf("Ingested refund event: %s", event.EventType),
		Details: map[string]interface{}{
			"event_id":  eventID,
			"order_id":  event.OrderID,
			"refund_id": event.RefundID,
		},
	}
}

// deadLetter records a rejected event and returns the failure Result. A DLQ
// write failure is logged but does not mask the original rejection.
func (s *Service) deadLetter(ctx context.Context, raw []byte, p probe, errorType, message string) Result {
	eventID := p.EventID
	if eventID == "" {
		eventID = "unknown"
	}
	eventType := p.EventType
	if eventType == "" {
		eventType = "unknown"
	}

	entry := &storage.DeadLetterRecord{
		DLQID:        uuid.NewString(),
		EventID:      eventID,
		EventType:    eventType,
		OrderID:      p.OrderID,
		RawEvent:     string(raw),
		ErrorType:    errorType,
		ErrorMessage: message,
		FailedAt:     time.Now().UTC(),
		RetryCount:   0,
	}

	if err := s.repo.InsertDeadLetter(ctx, entry); err != nil {
		slog.Error("Failed to write dead letter", "error", err, "dlq_id", entry.DLQID)
	}

	slog.Warn("Event dead-lettered",
		"dlq_id", entry.DLQID,
		"event_type", eventType,
		"error_type", errorType,
		"error", message)

	return Result{
		Success: false,
		Message: fmt.Sprintf("Event sent to DLQ: %s", message),
		Details: map[string]interface{}{
			"dlq_id":     entry.DLQID,
			"error_type": errorType,
		},
	}
}
