// Package identity derives the dual identifiers carried by every pricing
// component: a semantic id that stays constant across repricing, and an
// instance id unique to one occurrence within one pricing snapshot.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// orderScopeMarker replaces the dimension string for components that carry no
// dimensions at all. It lets callers tell order-scoped ids apart from
// order-detail-scoped ids by shape alone.
const orderScopeMarker = "ORDER"

// instanceIDPrefix marks content-derived instance ids.
const instanceIDPrefix = "ci_"

// instanceIDHexLen is the number of hex characters kept from the digest.
const instanceIDHexLen = 16

// dimensionAbbrev maps well-known dimension keys to their short forms.
// Unknown keys fall back to their first three letters, uppercased.
var dimensionAbbrev = map[string]string{
	"order_detail_id": "OD",
	"pax_id":          "P",
	"leg_id":          "L",
	"night_id":        "N",
	"room_id":         "R",
	"segment_id":      "S",
}

// SemanticID builds the stable logical identity of a pricing component.
//
// Format (regular): cs-{order}-{dims in canonical order}-{type}
// Format (refund):  cs-{order}-{refund}-{dims in canonical order}-{type}
//
// Dimensions are sorted by key and rendered as abbrevKey-value pairs; a
// component with no dimensions gets the literal ORDER marker instead. The
// refund id, when present, sits immediately after the order id so a refund
// component can never collide with the component it reverses. Pure and
// deterministic: same inputs produce the same id in any run.
func SemanticID(orderID, componentType string, dimensions map[string]string, refundID string) string {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dimParts := make([]string, 0, len(keys))
	for _, k := range keys {
		abbrev, ok := dimensionAbbrev[k]
		if !ok {
			abbrev = strings.ToUpper(k)
			if len(abbrev) > 3 {
				abbrev = abbrev[:3]
			}
		}
		dimParts = append(dimParts, abbrev+"-"+dimensions[k])
	}

	dimensionStr := orderScopeMarker
	if len(dimParts) > 0 {
		dimensionStr = strings.Join(dimParts, "-")
	}

	if refundID != "" {
		return fmt.Sprintf("cs-%s-%s-%s-%s", orderID, refundID, dimensionStr, componentType)
	}
	return fmt.Sprintf("cs-%s-%s-%s", orderID, dimensionStr, componentType)
}

// InstanceID derives the snapshot-scoped identity of one component occurrence.
// Same (semantic id, snapshot id) pair always yields the same instance id, so
// redelivery of an identical event is safe; a different snapshot id always
// yields a different instance id.
func InstanceID(semanticID, snapshotID string) string {
	sum := sha256.Sum256([]byte(semanticID + "|" + snapshotID))
	return instanceIDPrefix + hex.EncodeToString(sum[:])[:instanceIDHexLen]
}

// DualIDs returns both identifiers for one component occurrence.
func DualIDs(orderID, componentType string, dimensions map[string]string, snapshotID, refundID string) (semanticID, instanceID string) {
	semanticID = SemanticID(orderID, componentType, dimensions, refundID)
	instanceID = InstanceID(semanticID, snapshotID)
	return semanticID, instanceID
}
