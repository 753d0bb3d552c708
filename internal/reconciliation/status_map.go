package reconciliation

import "github.com/epic1st/execengine/internal/domain/order"

// mapBrokerStatus normalizes a broker status string — venue spelling
// varies (e.g. "cancelled" vs "canceled") — to the local Status the
// comparison is keyed on.
func mapBrokerStatus(brokerStatus string) (order.Status, bool) {
	switch brokerStatus {
	case "accepted", "new", "pending_new":
		return order.Accepted, true
	case "partially_filled", "partially filled":
		return order.PartiallyFilled, true
	case "filled":
		return order.Filled, true
	case "canceled", "cancelled":
		return order.Canceled, true
	case "rejected":
		return order.Rejected, true
	case "expired":
		return order.Expired, true
	case "pending_cancel":
		return order.PendingCancel, true
	default:
		return "", false
	}
}

// statusesEquivalent reports whether a local status and a raw broker
// status string describe the same lifecycle state.
func statusesEquivalent(local order.Status, brokerStatus string) bool {
	mapped, ok := mapBrokerStatus(brokerStatus)
	if !ok {
		return false
	}
	return mapped == local
}
