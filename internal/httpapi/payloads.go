package httpapi

import "github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"

type purchaseGiftRequest struct {
	GiftID         string `json:"gift_id"`
	Quantity       *int64 `json:"quantity"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key"`
}

type purchaseGiftResponse struct {
	TransactionID string               `json:"transaction_id"`
	Gift          purchasedGiftPayload `json:"gift"`
	Balance       int64                `json:"balance"`
	Replayed      bool                 `json:"replayed"`
}

type purchasedGiftPayload struct {
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
	TotalAmount int64  `json:"total_amount"`
}

type topUpRequest struct {
	Tokens           int64          `json:"tokens"`
	PaymentReference string         `json:"payment_reference"`
	Metadata         map[string]any `json:"metadata"`
}

type registerStreamerRequest struct {
	StreamerID string `json:"streamer_id"`
}

type openRoomRequest struct {
	RoomID     string `json:"room_id"`
	StreamerID string `json:"streamer_id"`
}

type giftPayload struct {
	GiftID string `json:"gift_id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
}

type accountPayload struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	Active      bool   `json:"active"`
}

func newAccountPayload(account ledger.Account) accountPayload {
	return accountPayload{
		AccountID:   account.ID.String(),
		DisplayName: account.DisplayName.String(),
		Balance:     account.TokenBalance.Int64(),
		Active:      account.Active,
	}
}

type streamerPayload struct {
	StreamerID    string `json:"streamer_id"`
	AccountID     string `json:"account_id"`
	TotalEarnings int64  `json:"total_earnings"`
}

func newStreamerPayload(streamer ledger.StreamerAccount) streamerPayload {
	return streamerPayload{
		StreamerID:    streamer.ID.String(),
		AccountID:     streamer.AccountID.String(),
		TotalEarnings: streamer.TotalEarnings.Int64(),
	}
}

type roomPayload struct {
	RoomID     string `json:"room_id"`
	StreamerID string `json:"streamer_id"`
	TotalTips  int64  `json:"total_tips"`
	Status     string `json:"status"`
}

func newRoomPayload(room ledger.Room) roomPayload {
	return roomPayload{
		RoomID:     room.ID.String(),
		StreamerID: room.StreamerID.String(),
		TotalTips:  room.TotalTips.Int64(),
		Status:     room.Status.String(),
	}
}

type transactionPayload struct {
	TransactionID  string `json:"transaction_id"`
	RoomID         string `json:"room_id"`
	StreamerID     string `json:"streamer_id"`
	GiftID         string `json:"gift_id"`
	GiftName       string `json:"gift_name"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int64  `json:"quantity"`
	TotalAmount    int64  `json:"total_amount"`
	Message        string `json:"message,omitempty"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

func newTransactionPayload(transaction ledger.Transaction) transactionPayload {
	return transactionPayload{
		TransactionID:  transaction.ID.String(),
		RoomID:         transaction.RoomID.String(),
		StreamerID:     transaction.StreamerID.String(),
		GiftID:         transaction.GiftID.String(),
		GiftName:       transaction.GiftName,
		UnitPrice:      transaction.UnitPrice.Int64(),
		Quantity:       transaction.Quantity.Int64(),
		TotalAmount:    transaction.TotalAmount.Int64(),
		Message:        transaction.Message.String(),
		CreatedUnixUTC: transaction.CreatedUnixUTC,
	}
}
