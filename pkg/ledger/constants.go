package ledger

// Operation names and statuses reported to an OperationLogger.
const (
	OperationPurchaseGift      = "purchase_gift"
	OperationTopUp             = "top_up"
	OperationOpenAccount       = "open_account"
	OperationDeactivateAccount = "deactivate_account"
	OperationRegisterStreamer  = "register_streamer"
	OperationOpenRoom          = "open_room"
	OperationCloseRoom         = "close_room"
	OperationUpsertGift        = "upsert_gift"
	OperationPublishEvent      = "publish_gift_received"

	OperationStatusOK       = "ok"
	OperationStatusReplayed = "replayed"
	OperationStatusError    = "error"
)

const (
	// EventTypeGiftReceived tags events emitted after a committed purchase.
	EventTypeGiftReceived = "gift-received"

	maxGiftMessageRunes   = 255
	maxIdempotencyKeyLen  = 128
	maxDisplayNameRunes   = 64
	maxGiftNameRunes      = 64
	defaultListLimit      = 50
	maxListLimit          = 200
	errorOperationService = "service"
)
