package postgres

// SQL for the append-only fact tables. Inserts only — fact rows are never
// updated or deleted, so the "latest" projections below are plain read-time
// aggregations over the whole history.

const (
	// queryAdvisoryLock serializes read-max-then-insert version assignment
	// per lock key within the surrounding transaction.
	queryAdvisoryLock = `SELECT pg_advisory_xact_lock($1)`

	queryMaxPricingVersion = `
		SELECT COALESCE(MAX(version), 0)
		FROM pricing_components_fact
		WHERE order_id = $1
	`

	queryInsertPricingComponent = `
		INSERT INTO pricing_components_fact (
			component_semantic_id, component_instance_id, order_id,
			pricing_snapshot_id, version, component_type, amount, currency,
			dimensions, description, is_refund, refund_of_component_semantic_id,
			emitter_service, ingested_at, emitted_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	queryMaxPaymentVersion = `
		SELECT COALESCE(MAX(timeline_version), 0)
		FROM payment_timeline
		WHERE order_id = $1
	`

	queryInsertPaymentEntry = `
		INSERT INTO payment_timeline (
			event_id, order_id, timeline_version, event_type, status,
			payment_method, payment_intent_id, authorized_amount,
			captured_amount, captured_amount_total, amount, currency,
			instrument_json, pg_reference_id, emitter_service,
			ingested_at, emitted_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	queryMaxSupplierVersion = `
		SELECT COALESCE(MAX(supplier_timeline_version), 0)
		FROM supplier_timeline
		WHERE order_id = $1 AND order_detail_id = $2
	`

	queryInsertSupplierEntry = `
		INSERT INTO supplier_timeline (
			event_id, order_id, order_detail_id, supplier_timeline_version,
			event_type, supplier_id, booking_code, supplier_reference_id,
			amount, currency, status, cancellation_fee_amount,
			cancellation_fee_currency, emitter_service, ingested_at,
			emitted_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	queryInsertPayableLine = `
		INSERT INTO supplier_payable_lines (
			line_id, event_id, order_id, order_detail_id,
			supplier_timeline_version, obligation_type, party_id, party_name,
			amount, currency, calculation_basis, calculation_rate,
			calculation_description, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	queryInsertRefundEntry = `
		INSERT INTO refund_timeline (
			event_id, order_id, refund_id, refund_timeline_version,
			event_type, refund_amount, currency, refund_reason,
			emitter_service, ingested_at, emitted_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	queryInsertDeadLetter = `
		INSERT INTO dlq (
			dlq_id, event_id, event_type, order_id, raw_event,
			error_type, error_message, failed_at, retry_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	queryListDeadLetters = `
		SELECT
			dlq_id, event_id, event_type, order_id, raw_event,
			error_type, error_message, failed_at, retry_count
		FROM dlq
		ORDER BY failed_at DESC
		LIMIT $1
	`

	pricingComponentColumns = `
		component_semantic_id, component_instance_id, order_id,
		pricing_snapshot_id, version, component_type, amount, currency,
		dimensions, description, is_refund, refund_of_component_semantic_id,
		emitter_service, ingested_at, emitted_at, metadata
	`

	// queryLatestPricingComponents is the latest-breakdown projection: the
	// rows holding the maximum version per (order, semantic id).
	queryLatestPricingComponents = `
		SELECT ` + pricingComponentColumns + `
		FROM pricing_components_fact
		WHERE order_id = $1
		  AND (component_semantic_id, version) IN (
			SELECT component_semantic_id, MAX(version)
			FROM pricing_components_fact
			WHERE order_id = $1
			GROUP BY component_semantic_id
		  )
		ORDER BY component_type, component_semantic_id
	`

	queryPricingHistory = `
		SELECT
			version, pricing_snapshot_id, COUNT(*) AS component_count,
			SUM(amount) AS total_amount, currency, emitted_at
		FROM pricing_components_fact
		WHERE order_id = $1
		GROUP BY version, pricing_snapshot_id, currency, emitted_at
		ORDER BY version DESC
	`

	queryLineageOriginal = `
		SELECT ` + pricingComponentColumns + `
		FROM pricing_components_fact
		WHERE component_semantic_id = $1 AND is_refund = FALSE
		ORDER BY version ASC
	`

	queryLineageRefunds = `
		SELECT ` + pricingComponentColumns + `
		FROM pricing_components_fact
		WHERE refund_of_component_semantic_id = $1 AND is_refund = TRUE
		ORDER BY version ASC
	`

	paymentColumns = `
		event_id, order_id, timeline_version, event_type, status,
		payment_method, payment_intent_id, authorized_amount,
		captured_amount, captured_amount_total, amount, currency,
		instrument_json, pg_reference_id, emitter_service,
		ingested_at, emitted_at, metadata
	`

	queryPaymentTimeline = `
		SELECT ` + paymentColumns + `
		FROM payment_timeline
		WHERE order_id = $1
		ORDER BY timeline_version ASC
	`

	supplierColumns = `
		event_id, order_id, order_detail_id, supplier_timeline_version,
		event_type, supplier_id, booking_code, supplier_reference_id,
		amount, currency, status, cancellation_fee_amount,
		cancellation_fee_currency, emitter_service, ingested_at,
		emitted_at, metadata
	`

	querySupplierTimeline = `
		SELECT ` + supplierColumns + `
		FROM supplier_timeline
		WHERE order_id = $1 AND order_detail_id = $2
		ORDER BY supplier_timeline_version ASC
	`

	querySupplierRowsForOrder = `
		SELECT ` + supplierColumns + `
		FROM supplier_timeline
		WHERE order_id = $1
		ORDER BY order_detail_id, supplier_timeline_version ASC
	`

	queryPayableLines = `
		SELECT
			line_id, event_id, order_id, order_detail_id,
			supplier_timeline_version, obligation_type, party_id, party_name,
			amount, currency, calculation_basis, calculation_rate,
			calculation_description, ingested_at
		FROM supplier_payable_lines
		WHERE order_id = $1 AND order_detail_id = $2 AND supplier_timeline_version = $3
		ORDER BY obligation_type
	`

	queryRefundTimeline = `
		SELECT
			event_id, order_id, refund_id, refund_timeline_version,
			event_type, refund_amount, currency, refund_reason,
			emitter_service, ingested_at, emitted_at, metadata
		FROM refund_timeline
		WHERE order_id = $1
		ORDER BY refund_id, refund_timeline_version ASC
	`

	queryListOrders = `
		SELECT DISTINCT order_id
		FROM pricing_components_fact
		ORDER BY order_id
	`
)
