package ledger

import "context"

// GiftReceivedEvent is broadcast to a room's subscribers after a purchase commits.
type GiftReceivedEvent struct {
	EventType        string `json:"eventType"`
	TransactionID    string `json:"transactionId"`
	RoomID           string `json:"roomId"`
	BuyerDisplayName string `json:"buyerDisplayName"`
	GiftName         string `json:"giftName"`
	Quantity         int64  `json:"quantity"`
	TotalAmount      int64  `json:"totalAmount"`
	Message          string `json:"message,omitempty"`
	TimestampUnixUTC int64  `json:"timestamp"`
}

// EventSink delivers room events. Delivery is best-effort: no persistence, no replay.
type EventSink interface {
	Publish(ctx context.Context, event GiftReceivedEvent) error
}
