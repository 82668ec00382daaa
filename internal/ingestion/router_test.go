package ingestion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// fakeRepository is an in-memory storage.Repository with the same version
// assignment behavior as the postgres adapter.
type fakeRepository struct {
	pricing     []*storage.PricingComponentRecord
	payments    []*storage.PaymentTimelineRecord
	suppliers   []*storage.SupplierTimelineRecord
	payables    []*storage.PayableLineRecord
	refunds     []*storage.RefundTimelineRecord
	deadLetters []*storage.DeadLetterRecord

	failWrites bool
}

func (f *fakeRepository) InsertPricingSnapshot(_ context.Context, orderID string, rows []*storage.PricingComponentRecord) (int, error) {
	if f.failWrites {
		return 0, fmt.Errorf("storage unavailable")
	}
	max := 0
	for _, rec := range f.pricing {
		if rec.OrderID == orderID && rec.Version > max {
			max = rec.Version
		}
	}
	version := max + 1
	for _, rec := range rows {
		rec.Version = version
		f.pricing = append(f.pricing, rec)
	}
	return version, nil
}

func (f *fakeRepository) InsertPaymentEntry(_ context.Context, entry *storage.PaymentTimelineRecord) (int, error) {
	if f.failWrites {
		return 0, fmt.Errorf("storage unavailable")
	}
	max := 0
	for _, rec := range f.payments {
		if rec.OrderID == entry.OrderID && rec.TimelineVersion > max {
			max = rec.TimelineVersion
		}
	}
	entry.TimelineVersion = max + 1
	f.payments = append(f.payments, entry)
	return entry.TimelineVersion, nil
}

func (f *fakeRepository) InsertSupplierEntry(_ context.Context, entry *storage.SupplierTimelineRecord, lines []*storage.PayableLineRecord) (int, error) {
	if f.failWrites {
		return 0, fmt.Errorf("storage unavailable")
	}
	max := 0
	for _, rec := range f.suppliers {
		if rec.OrderID == entry.OrderID && rec.OrderDetailID == entry.OrderDetailID && rec.SupplierTimelineVersion > max {
			max = rec.SupplierTimelineVersion
		}
	}
	entry.SupplierTimelineVersion = max + 1
	f.suppliers = append(f.suppliers, entry)
	for _, line := range lines {
		line.SupplierTimelineVersion = entry.SupplierTimelineVersion
		f.payables = append(f.payables, line)
	}
	return entry.SupplierTimelineVersion, nil
}

func (f *fakeRepository) InsertRefundEntry(_ context.Context, entry *storage.RefundTimelineRecord) error {
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	f.refunds = append(f.refunds, entry)
	return nil
}

func (f *fakeRepository) InsertDeadLetter(_ context.Context, entry *storage.DeadLetterRecord) error {
	f.deadLetters = append(f.deadLetters, entry)
	return nil
}

func (f *fakeRepository) ListDeadLetters(_ context.Context, limit int) ([]*storage.DeadLetterRecord, error) {
	if limit > len(f.deadLetters) {
		limit = len(f.deadLetters)
	}
	return f.deadLetters[:limit], nil
}

func (f *fakeRepository) LatestPricingComponents(_ context.Context, orderID string) ([]*storage.PricingComponentRecord, error) {
	latest := map[string]*storage.PricingComponentRecord{}
	for _, rec := range f.pricing {
		if rec.OrderID != orderID {
			continue
		}
		if cur, ok := latest[rec.SemanticID]; !ok || rec.Version > cur.Version {
			latest[rec.SemanticID] = rec
		}
	}
	if len(latest) == 0 {
		return nil, storage.ErrNotFound
	}
	out := make([]*storage.PricingComponentRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepository) PricingHistory(context.Context, string) ([]*storage.PricingHistoryEntry, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeRepository) ComponentLineage(context.Context, string) (*storage.Lineage, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeRepository) PaymentTimeline(_ context.Context, orderID string) ([]*storage.PaymentTimelineRecord, error) {
	var out []*storage.PaymentTimelineRecord
	for _, rec := range f.payments {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

func (f *fakeRepository) SupplierTimeline(_ context.Context, orderID, orderDetailID string) ([]*storage.SupplierTimelineRecord, error) {
	rows, _ := f.SupplierRows(context.Background(), orderID, orderDetailID)
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows, nil
}

func (f *fakeRepository) SupplierRows(_ context.Context, orderID, orderDetailID string) ([]*storage.SupplierTimelineRecord, error) {
	var out []*storage.SupplierTimelineRecord
	for _, rec := range f.suppliers {
		if rec.OrderID == orderID && (orderDetailID == "" || rec.OrderDetailID == orderDetailID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepository) PayableLines(_ context.Context, orderID, orderDetailID string, version int) ([]*storage.PayableLineRecord, error) {
	var out []*storage.PayableLineRecord
	for _, line := range f.payables {
		if line.OrderID == orderID && line.OrderDetailID == orderDetailID && line.SupplierTimelineVersion == version {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeRepository) RefundTimeline(_ context.Context, orderID string) ([]*storage.RefundTimelineRecord, error) {
	var out []*storage.RefundTimelineRecord
	for _, rec := range f.refunds {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

func (f *fakeRepository) ListOrders(context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range f.pricing {
		if _, ok := seen[rec.OrderID]; !ok {
			seen[rec.OrderID] = struct{}{}
			out = append(out, rec.OrderID)
		}
	}
	return out, nil
}

func newTestService() (*Service, *fakeRepository) {
	repo := &fakeRepository{}
	return NewService(repo, 1), repo
}

func TestIngest_MissingEventType(t *testing.T) {
	svc, repo := newTestService()

	result := svc.Ingest(context.Background(), []byte(`{"order_id":"ORD-1"}`))
	require.False(t, result.Success)
	require.Len(t, repo.deadLetters, 1)
	require.Equal(t, "MISSING_EVENT_TYPE", repo.deadLetters[0].ErrorType)
	require.Equal(t, "unknown", repo.deadLetters[0].EventID)
	require.Equal(t, "ORD-1", repo.deadLetters[0].OrderID)
}

func TestIngest_UnknownEventType(t *testing.T) {
	svc, repo := newTestService()

	result := svc.Ingest(context.Background(), []byte(`{"event_type":"order.telemetry","order_id":"ORD-1"}`))
	require.False(t, result.Success)
	require.Len(t, repo.deadLetters, 1)
	require.Equal(t, "UNKNOWN_EVENT_TYPE", repo.deadLetters[0].ErrorType)
	require.Contains(t, result.Message, "order.telemetry")
}

func TestIngest_ValidationFailurePersistsOnlyDeadLetter(t *testing.T) {
	svc, repo := newTestService()

	// Components missing entirely.
	raw := []byte(`{
		"event_type": "pricing.updated",
		"order_id": "ORD-1",
		"components": [],
		"emitted_at": "2026-03-01T10:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.False(t, result.Success)
	require.Empty(t, repo.pricing)
	require.Len(t, repo.deadLetters, 1)
	require.Equal(t, "VALIDATION_ERROR", repo.deadLetters[0].ErrorType)
	require.Contains(t, repo.deadLetters[0].ErrorMessage, "components")
	require.JSONEq(t, string(raw), repo.deadLetters[0].RawEvent)
}

func pricingEventORD1() []byte {
	return []byte(`{
		"event_type": "pricing.updated",
		"event_id": "evt-price-1",
		"order_id": "ORD-1",
		"components": [
			{"component_type": "BaseFare", "amount": 1500000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-1"}},
			{"component_type": "Tax", "amount": 165000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-1"}},
			{"component_type": "Fee", "amount": 50000, "currency": "IDR",
			 "dimensions": {}}
		],
		"emitted_at": "2026-03-01T10:00:00Z",
		"emitter_service": "flight-service"
	}`)
}

func TestIngest_PricingUpdateEndToEnd(t *testing.T) {
	svc, repo := newTestService()

	result := svc.Ingest(context.Background(), pricingEventORD1())
	require.True(t, result.Success, result.Message)
	require.Len(t, repo.pricing, 3)

	var total int64
	bySemantic := map[string]*storage.PricingComponentRecord{}
	for _, rec := range repo.pricing {
		total += rec.Amount
		bySemantic[rec.SemanticID] = rec
		require.Equal(t, 1, rec.Version)
		require.Equal(t, "ORD-1", rec.OrderID)
		require.Equal(t, "flight-service", rec.EmitterService)
	}
	require.Equal(t, int64(1715000), total)

	// Detail-scoped components carry the OD marker, order-scoped ones ORDER.
	require.Contains(t, bySemantic, "cs-ORD-1-OD-OD-1-BaseFare")
	require.Contains(t, bySemantic, "cs-ORD-1-OD-OD-1-Tax")
	require.Contains(t, bySemantic, "cs-ORD-1-ORDER-Fee")

	require.Equal(t, 1, result.Details["version"])
	require.Equal(t, 3, result.Details["component_count"])
	require.NotEmpty(t, result.Details["pricing_snapshot_id"])
}

func TestIngest_DuplicateEventCreatesNewVersion(t *testing.T) {
	svc, repo := newTestService()

	first := svc.Ingest(context.Background(), pricingEventORD1())
	second := svc.Ingest(context.Background(), pricingEventORD1())
	require.True(t, first.Success)
	require.True(t, second.Success)

	// No dedup: the duplicate becomes version 2 under a fresh snapshot with
	// identical semantic ids and diverging instance ids.
	require.Equal(t, 1, first.Details["version"])
	require.Equal(t, 2, second.Details["version"])
	require.NotEqual(t, first.Details["pricing_snapshot_id"], second.Details["pricing_snapshot_id"])
	require.Len(t, repo.pricing, 6)

	v1Instances := map[string]string{}
	for _, rec := range repo.pricing {
		if rec.Version == 1 {
			v1Instances[rec.SemanticID] = rec.InstanceID
		}
	}
	for _, rec := range repo.pricing {
		if rec.Version == 2 {
			require.Contains(t, v1Instances, rec.SemanticID)
			require.NotEqual(t, v1Instances[rec.SemanticID], rec.InstanceID)
		}
	}
}

func TestIngest_PricingContextEnrichment(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "PricingUpdated",
		"order_id": "ORD-2",
		"components": [
			{"component_type": "RoomRate", "amount": 800000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-7"}, "meta": {"room": "deluxe"}},
			{"component_type": "Fee", "amount": 20000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-8"}}
		],
		"detail_contexts": [
			{"order_detail_id": "OD-7",
			 "entity_context": {"entity_code": "ID-ENT"},
			 "fx_context": {"payment_currency": "IDR", "supply_currency": "USD",
			  "record_currency": "IDR", "gbv_currency": "IDR", "payment_value": 800000,
			  "supply_to_payment_fx_rate": 15600, "supply_to_record_fx_rate": 15600,
			  "payment_to_gbv_fx_rate": 1, "source": "treasury"}}
		],
		"emitted_at": "2026-03-01T10:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	require.Equal(t, 1, result.Details["context_count"])

	var matched, unmatched *storage.PricingComponentRecord
	for _, rec := range repo.pricing {
		switch rec.Dimensions["order_detail_id"] {
		case "OD-7":
			matched = rec
		case "OD-8":
			unmatched = rec
		}
	}
	require.NotNil(t, matched)
	require.NotNil(t, unmatched)

	// Matched component keeps its own meta and gains both contexts.
	require.Equal(t, "deluxe", matched.Metadata["room"])
	require.Contains(t, matched.Metadata, "entity_context")
	require.Contains(t, matched.Metadata, "fx_context")

	// The unmatched component is untouched.
	require.NotContains(t, unmatched.Metadata, "entity_context")
}

func TestIngest_RefundIssuanceSharesPricingCounter(t *testing.T) {
	svc, repo := newTestService()

	require.True(t, svc.Ingest(context.Background(), pricingEventORD1()).Success)

	refund := []byte(`{
		"event_type": "refund.issued",
		"order_id": "ORD-1",
		"refund_id": "REF-9",
		"components": [
			{"component_type": "BaseFare", "amount": -1500000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-1"},
			 "refund_of_component_semantic_id": "cs-ORD-1-OD-OD-1-BaseFare"}
		],
		"emitted_at": "2026-03-02T10:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), refund)
	require.True(t, result.Success, result.Message)
	require.Equal(t, 2, result.Details["version"])
	require.Equal(t, "REF-9", result.Details["refund_id"])
	require.NotEmpty(t, result.Details["event_id"])

	var refundRec *storage.PricingComponentRecord
	for _, rec := range repo.pricing {
		if rec.Version == 2 {
			refundRec = rec
		}
	}
	require.NotNil(t, refundRec)
	require.Equal(t, "cs-ORD-1-REF-9-OD-OD-1-BaseFare", refundRec.SemanticID)
	require.True(t, refundRec.IsRefund)
	require.Equal(t, "cs-ORD-1-OD-OD-1-BaseFare", refundRec.RefundOfSemanticID)
	require.Equal(t, "refund-service", refundRec.EmitterService)
}

func TestIngest_PaymentLegacyFlat(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "payment.captured",
		"order_id": "ORD-3",
		"payment_method": "bank_transfer",
		"amount": 420000,
		"currency": "IDR",
		"pg_reference_id": "PG-77",
		"emitted_at": "2026-03-01T12:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	require.Len(t, repo.payments, 1)

	entry := repo.payments[0]
	require.Equal(t, 1, entry.TimelineVersion)
	require.Equal(t, "Captured", entry.Status)
	require.Equal(t, "bank_transfer", entry.PaymentMethod)
	require.Equal(t, int64(420000), entry.Amount)
	require.NotNil(t, entry.CapturedAmount)
	require.Equal(t, int64(420000), *entry.CapturedAmount)
	require.Equal(t, "PG-77", entry.PGReferenceID)
	require.Equal(t, "payment-core", entry.EmitterService)
}

func TestIngest_PaymentNestedAuthorizedOnly(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "payment.authorized",
		"order_id": "ORD-3",
		"payment": {
			"status": "Authorized",
			"payment_id": "pi_123",
			"payment_method": {"channel": "card", "provider": "midtrans"},
			"currency": "IDR",
			"authorized_amount": 420000,
			"instrument": {"type": "card", "display_hint": "**** 4242"}
		},
		"emitted_at": "2026-03-01T11:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)

	entry := repo.payments[0]
	require.Equal(t, "Authorized", entry.Status)
	require.Equal(t, "card", entry.PaymentMethod)
	require.Equal(t, "pi_123", entry.PaymentIntentID)
	require.Nil(t, entry.CapturedAmount)
	// Legacy amount falls back to the authorized amount.
	require.Equal(t, int64(420000), entry.Amount)
	require.Contains(t, entry.InstrumentJSON, "4242")
}

func TestIngest_SupplierNestedDerivesPayables(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "supplier.order.confirmed",
		"event_id": "evt-sup-77",
		"order_id": "ORD-4",
		"order_detail_id": "OD-2",
		"supplier": {
			"status": "Confirmed",
			"supplier_id": "SUP-GARUDA",
			"booking_code": "PNR999",
			"amount_due": 900000,
			"currency": "IDR",
			"entity_context": {"entity_code": "ID-ENT"},
			"affiliate": {
				"reseller_id": "AFF-1",
				"reseller_name": "Partner One",
				"partnerShareback": {"amount": 22500.75, "currency": "IDR", "rate": 0.025, "basis": "amount_due"},
				"taxes": [
					{"type": "VAT", "amount": 2475.5, "currency": "IDR", "rate": 0.11, "basis": "commission"}
				]
			}
		},
		"emitted_at": "2026-03-01T13:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	require.Len(t, repo.suppliers, 1)
	require.Len(t, repo.payables, 3)
	require.Equal(t, 3, result.Details["payable_lines"])

	byID := map[string]*storage.PayableLineRecord{}
	for _, line := range repo.payables {
		byID[line.LineID] = line
		require.Equal(t, 1, line.SupplierTimelineVersion)
	}

	supplierLine := byID["evt-sup-77_SUPPLIER"]
	require.NotNil(t, supplierLine)
	require.Equal(t, storage.ObligationSupplier, supplierLine.ObligationType)
	require.Equal(t, int64(900000), supplierLine.Amount)
	require.Equal(t, "SUP-GARUDA", supplierLine.PartyID)

	affiliateLine := byID["evt-sup-77_AFFILIATE"]
	require.NotNil(t, affiliateLine)
	require.Equal(t, storage.ObligationAffiliateCommission, affiliateLine.ObligationType)
	// Decimal shareback truncated to integer minor units.
	require.Equal(t, int64(22500), affiliateLine.Amount)
	require.Equal(t, "Partner One", affiliateLine.PartyName)
	require.Equal(t, "2% of amount_due", affiliateLine.CalculationDescription)

	taxLine := byID["evt-sup-77_TAX_0"]
	require.NotNil(t, taxLine)
	require.Equal(t, storage.ObligationTaxWithholding, taxLine.ObligationType)
	require.Equal(t, int64(2475), taxLine.Amount)
	require.Equal(t, "TAX_VAT", taxLine.PartyID)
	require.Equal(t, "VAT Tax", taxLine.PartyName)
	require.Equal(t, "11% VAT on commission", taxLine.CalculationDescription)

	// Rich supplier facts land in the timeline row metadata.
	require.Equal(t, "ID-ENT", repo.suppliers[0].Metadata["entity_code"])
	require.Contains(t, repo.suppliers[0].Metadata, "affiliate")
}

func TestIngest_SupplierCancellationNoPayables(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "supplier.order.confirmed",
		"order_id": "ORD-4",
		"order_detail_id": "OD-2",
		"supplier": {
			"status": "CancelledWithFee",
			"supplier_id": "SUP-GARUDA",
			"cancellation": {"fee_amount": 150000, "fee_currency": "IDR"}
		},
		"emitted_at": "2026-03-02T13:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	require.Empty(t, repo.payables)
	require.NotNil(t, repo.suppliers[0].CancellationFeeAmount)
	require.Equal(t, int64(150000), *repo.suppliers[0].CancellationFeeAmount)
}

func TestIngest_SupplierLegacyFlatNoPayables(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "IssuanceSupplierLifecycle",
		"order_id": "ORD-4",
		"order_detail_id": "OD-3",
		"supplier_id": "SUP-LION",
		"supplier_reference_id": "REF-XYZ",
		"amount": 300000,
		"currency": "IDR",
		"emitted_at": "2026-03-01T14:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	// Legacy flat events never derive payable lines, even with an amount.
	require.Empty(t, repo.payables)
	require.Equal(t, "SUP-LION", repo.suppliers[0].SupplierID)
	require.Equal(t, "REF-XYZ", repo.suppliers[0].SupplierReferenceID)
	require.Equal(t, "supplier-service", repo.suppliers[0].EmitterService)
}

func TestIngest_RefundLifecycleKeepsCallerVersion(t *testing.T) {
	svc, repo := newTestService()

	raw := []byte(`{
		"event_type": "refund.initiated",
		"order_id": "ORD-6",
		"refund_id": "REF-2",
		"refund_timeline_version": 4,
		"refund_amount": 250000,
		"currency": "IDR",
		"refund_reason": "schedule change",
		"emitted_at": "2026-03-03T09:00:00Z"
	}`)

	result := svc.Ingest(context.Background(), raw)
	require.True(t, result.Success, result.Message)
	require.Len(t, repo.refunds, 1)
	require.Equal(t, 4, repo.refunds[0].RefundTimelineVersion)
	require.Equal(t, "refund-service", repo.refunds[0].EmitterService)
}

func TestIngest_StorageFailureDeadLettersAsPipelineError(t *testing.T) {
	svc, repo := newTestService()
	repo.failWrites = true

	result := svc.Ingest(context.Background(), pricingEventORD1())
	require.False(t, result.Success)
	require.Len(t, repo.deadLetters, 1)
	require.Equal(t, "PIPELINE_ERROR", repo.deadLetters[0].ErrorType)
	require.Equal(t, "evt-price-1", repo.deadLetters[0].EventID)
}
