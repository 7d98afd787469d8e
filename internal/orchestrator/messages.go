// README: Human-readable status wording shared by realtime events and push notifications.
package orchestrator

import "leafline/internal/modules/order"

// statusMessages is the single source of customer-facing wording per
// status, so the socket event and the push notification never disagree.
var statusMessages = map[order.Status]string{
	order.StatusPending:        "Your order has been received and is awaiting confirmation.",
	order.StatusConfirmed:      "Your order has been confirmed.",
	order.StatusPreparing:      "Your order is being prepared.",
	order.StatusReadyForPickup: "Your order is packed and waiting for a driver.",
	order.StatusAssigned:       "A driver has been assigned to your order.",
	order.StatusAccepted:       "Your driver is heading to the store.",
	order.StatusPickedUp:       "Your driver has picked up your order.",
	order.StatusInTransit:      "Your order is on the way.",
	order.StatusDelivered:      "Your order has been delivered. Enjoy!",
	order.StatusCancelled:      "Your order has been cancelled.",
}

// StatusMessage returns the customer-facing message for a status.
func StatusMessage(s order.Status) string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return "Your order status has been updated."
}
