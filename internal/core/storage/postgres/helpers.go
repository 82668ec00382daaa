package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// nullString converts "" to SQL NULL so optional text columns stay NULL
// instead of holding empty strings.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 converts a nil pointer to SQL NULL.
func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullFloat64 converts a nil pointer to SQL NULL.
func nullFloat64(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// marshalMetadata marshals an open metadata mapping to JSONB bytes.
// Nil or empty metadata produces SQL NULL rather than the JSON literal "null".
func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return raw, nil
}

// marshalDimensions marshals the dimension mapping. Dimensions are required
// but may be empty; an empty map persists as "{}" so the column stays NOT NULL.
func marshalDimensions(d map[string]string) ([]byte, error) {
	if d == nil {
		d = map[string]string{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dimensions: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPricingComponentRow scans one pricing fact row.
// Compatible with both sql.Row and sql.Rows.
func scanPricingComponentRow(row scanner) (*storage.PricingComponentRecord, error) {
	var (
		rec            storage.PricingComponentRecord
		description    sql.NullString
		refundOf       sql.NullString
		dimensionsJSON []byte
		metadataJSON   []byte
	)

	err := row.Scan(
		&rec.SemanticID,
		&rec.InstanceID,
		&rec.OrderID,
		&rec.SnapshotID,
		&rec.Version,
		&rec.ComponentType,
		&rec.Amount,
		&rec.Currency,
		&dimensionsJSON,
		&description,
		&rec.IsRefund,
		&refundOf,
		&rec.EmitterService,
		&rec.IngestedAt,
		&rec.EmittedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pricing component row: %w", err)
	}

	rec.Description = description.String
	rec.RefundOfSemanticID = refundOf.String

	if err := json.Unmarshal(dimensionsJSON, &rec.Dimensions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dimensions: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// scanPaymentRow scans one payment timeline row.
func scanPaymentRow(row scanner) (*storage.PaymentTimelineRecord, error) {
	var (
		rec            storage.PaymentTimelineRecord
		intentID       sql.NullString
		authorized     sql.NullInt64
		captured       sql.NullInt64
		capturedTotal  sql.NullInt64
		instrumentJSON sql.NullString
		pgReference    sql.NullString
		metadataJSON   []byte
	)

	err := row.Scan(
		&rec.EventID,
		&rec.OrderID,
		&rec.TimelineVersion,
		&rec.EventType,
		&rec.Status,
		&rec.PaymentMethod,
		&intentID,
		&authorized,
		&captured,
		&capturedTotal,
		&rec.Amount,
		&rec.Currency,
		&instrumentJSON,
		&pgReference,
		&rec.EmitterService,
		&rec.IngestedAt,
		&rec.EmittedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment row: %w", err)
	}

	rec.PaymentIntentID = intentID.String
	rec.InstrumentJSON = instrumentJSON.String
	rec.PGReferenceID = pgReference.String
	if authorized.Valid {
		rec.AuthorizedAmount = &authorized.Int64
	}
	if captured.Valid {
		rec.CapturedAmount = &captured.Int64
	}
	if capturedTotal.Valid {
		rec.CapturedAmountTotal = &capturedTotal.Int64
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// scanSupplierRow scans one supplier timeline row.
func scanSupplierRow(row scanner) (*storage.SupplierTimelineRecord, error) {
	var (
		rec          storage.SupplierTimelineRecord
		bookingCode  sql.NullString
		supplierRef  sql.NullString
		amount       sql.NullInt64
		currency     sql.NullString
		status       sql.NullString
		cancelFee    sql.NullInt64
		cancelFeeCur sql.NullString
		metadataJSON []byte
	)

	err := row.Scan(
		&rec.EventID,
		&rec.OrderID,
		&rec.OrderDetailID,
		&rec.SupplierTimelineVersion,
		&rec.EventType,
		&rec.SupplierID,
		&bookingCode,
		&supplierRef,
		&amount,
		&currency,
		&status,
		&cancelFee,
		&cancelFeeCur,
		&rec.EmitterService,
		&rec.IngestedAt,
		&rec.EmittedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan supplier row: %w", err)
	}

	rec.BookingCode = bookingCode.String
	rec.SupplierReferenceID = supplierRef.String
	rec.Currency = currency.String
	rec.Status = status.String
	rec.CancellationFeeCurrency = cancelFeeCur.String
	if amount.Valid {
		rec.Amount = &amount.Int64
	}
	if cancelFee.Valid {
		rec.CancellationFeeAmount = &cancelFee.Int64
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// scanPayableLineRow scans one payable line row.
func scanPayableLineRow(row scanner) (*storage.PayableLineRecord, error) {
	var (
		rec       storage.PayableLineRecord
		partyName sql.NullString
		basis     sql.NullString
		rate      sql.NullFloat64
		desc      sql.NullString
	)

	err := row.Scan(
		&rec.LineID,
		&rec.EventID,
		&rec.OrderID,
		&rec.OrderDetailID,
		&rec.SupplierTimelineVersion,
		&rec.ObligationType,
		&rec.PartyID,
		&partyName,
		&rec.Amount,
		&rec.Currency,
		&basis,
		&rate,
		&desc,
		&rec.IngestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payable line row: %w", err)
	}

	rec.PartyName = partyName.String
	rec.CalculationBasis = basis.String
	rec.CalculationDescription = desc.String
	if rate.Valid {
		rec.CalculationRate = &rate.Float64
	}
	return &rec, nil
}

// scanRefundRow scans one refund timeline row.
func scanRefundRow(row scanner) (*storage.RefundTimelineRecord, error) {
	var (
		rec          storage.RefundTimelineRecord
		reason       sql.NullString
		metadataJSON []byte
	)

	err := row.Scan(
		&rec.EventID,
		&rec.OrderID,
		&rec.RefundID,
		&rec.RefundTimelineVersion,
		&rec.EventType,
		&rec.RefundAmount,
		&rec.Currency,
		&reason,
		&rec.EmitterService,
		&rec.IngestedAt,
		&rec.EmittedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan refund row: %w", err)
	}

	rec.RefundReason = reason.String
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// scanDeadLetterRow scans one dead-letter row.
func scanDeadLetterRow(row scanner) (*storage.DeadLetterRecord, error) {
	var (
		rec     storage.DeadLetterRecord
		orderID sql.NullString
	)

	err := row.Scan(
		&rec.DLQID,
		&rec.EventID,
		&rec.EventType,
		&orderID,
		&rec.RawEvent,
		&rec.ErrorType,
		&rec.ErrorMessage,
		&rec.FailedAt,
		&rec.RetryCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
	}

	rec.OrderID = orderID.String
	return &rec, nil
}
