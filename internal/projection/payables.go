package projection

import (
	"sort"

	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// supplierInstanceKey identifies one supplier engagement. A rebooking with
// the same supplier under a new reference is a distinct instance, so the old
// booking's cancellation and the new booking's confirmation never collapse
// into one row.
type supplierInstanceKey struct {
	orderID       string
	orderDetailID string
	supplierID    string
	supplierRef   string
}

// ResolveEffectivePayables maps raw supplier timeline rows to the effective
// obligation per supplier instance. Pure function: the latest row per
// instance (highest version, then latest emission) decides, and its status
// selects the obligation amount:
//
//	Confirmed, ISSUED, Invoiced, Settled -> amount due
//	CancelledWithFee                     -> cancellation fee
//	CancelledNoFee, Voided               -> 0
//	anything else                        -> 0
func ResolveEffectivePayables(rows []*storage.SupplierTimelineRecord) []*EffectivePayable {
	latest := make(map[supplierInstanceKey]*storage.SupplierTimelineRecord)
	for _, row := range rows {
		key := supplierInstanceKey{row.OrderID, row.OrderDetailID, row.SupplierID, row.SupplierReferenceID}
		cur, ok := latest[key]
		if !ok || rowRanksAbove(row, cur) {
			latest[key] = row
		}
	}

	payables := make([]*EffectivePayable, 0, len(latest))
	for _, row := range latest {
		payables = append(payables, &EffectivePayable{
			SupplierID:              row.SupplierID,
			SupplierReferenceID:     row.SupplierReferenceID,
			Status:                  row.Status,
			EffectivePayable:        effectiveAmount(row),
			Currency:                row.Currency,
			OrderID:                 row.OrderID,
			OrderDetailID:           row.OrderDetailID,
			SupplierTimelineVersion: row.SupplierTimelineVersion,
			EventID:                 row.EventID,
			EmittedAt:               row.EmittedAt,
		})
	}

	sort.Slice(payables, func(i, j int) bool {
		if payables[i].OrderDetailID != payables[j].OrderDetailID {
			return payables[i].OrderDetailID < payables[j].OrderDetailID
		}
		return payables[i].SupplierID < payables[j].SupplierID
	})
	return payables
}

func rowRanksAbove(a, b *storage.SupplierTimelineRecord) bool {
	if a.SupplierTimelineVersion != b.SupplierTimelineVersion {
		return a.SupplierTimelineVersion > b.SupplierTimelineVersion
	}
	return a.EmittedAt.After(b.EmittedAt)
}

func effectiveAmount(row *storage.SupplierTimelineRecord) int64 {
	switch row.Status {
	case "Confirmed", "ISSUED", "Invoiced", "Settled":
		if row.Amount != nil {
			return *row.Amount
		}
	case "CancelledWithFee":
		if row.CancellationFeeAmount != nil {
			return *row.CancellationFeeAmount
		}
	}
	return 0
}
