package partition

import "hash/fnv"

// LockKeyFor returns the advisory-lock key for an order's version counters.
// Stable and deterministic: same order always maps to the same key, so any
// two writers assigning a version for the same order serialize on the same
// pg_advisory_xact_lock. Uses FNV-64a (stdlib, fast, well-distributed).
func LockKeyFor(orderID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(orderID))
	return int64(h.Sum64())
}

// LockKeyForDetail returns the advisory-lock key for a (order, order-detail)
// scoped counter. The supplier timeline versions per order detail, not per
// order, so its lock key carries both.
func LockKeyForDetail(orderID, orderDetailID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(orderID))
	h.Write([]byte{0})
	h.Write([]byte(orderDetailID))
	return int64(h.Sum64())
}
