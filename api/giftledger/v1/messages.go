package giftledgerv1

type PurchaseGiftRequest struct {
	BuyerId        string `json:"buyer_id"`
	RoomId         string `json:"room_id"`
	GiftId         string `json:"gift_id"`
	Quantity       int64  `json:"quantity"`
	Message        string `json:"message,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (request *PurchaseGiftRequest) GetBuyerId() string {
	if request == nil {
		return ""
	}
	return request.BuyerId
}

func (request *PurchaseGiftRequest) GetRoomId() string {
	if request == nil {
		return ""
	}
	return request.RoomId
}

func (request *PurchaseGiftRequest) GetGiftId() string {
	if request == nil {
		return ""
	}
	return request.GiftId
}

func (request *PurchaseGiftRequest) GetQuantity() int64 {
	if request == nil {
		return 0
	}
	return request.Quantity
}

func (request *PurchaseGiftRequest) GetMessage() string {
	if request == nil {
		return ""
	}
	return request.Message
}

func (request *PurchaseGiftRequest) GetIdempotencyKey() string {
	if request == nil {
		return ""
	}
	return request.IdempotencyKey
}

type PurchaseGiftResponse struct {
	TransactionId string `json:"transaction_id"`
	GiftName      string `json:"gift_name"`
	Quantity      int64  `json:"quantity"`
	TotalAmount   int64  `json:"total_amount"`
	BalanceAfter  int64  `json:"balance_after"`
	Replayed      bool   `json:"replayed"`
}

func (response *PurchaseGiftResponse) GetTransactionId() string {
	if response == nil {
		return ""
	}
	return response.TransactionId
}

func (response *PurchaseGiftResponse) GetGiftName() string {
	if response == nil {
		return ""
	}
	return response.GiftName
}

func (response *PurchaseGiftResponse) GetQuantity() int64 {
	if response == nil {
		return 0
	}
	return response.Quantity
}

func (response *PurchaseGiftResponse) GetTotalAmount() int64 {
	if response == nil {
		return 0
	}
	return response.TotalAmount
}

func (response *PurchaseGiftResponse) GetBalanceAfter() int64 {
	if response == nil {
		return 0
	}
	return response.BalanceAfter
}

func (response *PurchaseGiftResponse) GetReplayed() bool {
	if response == nil {
		return false
	}
	return response.Replayed
}

type BalanceRequest struct {
	AccountId string `json:"account_id"`
}

func (request *BalanceRequest) GetAccountId() string {
	if request == nil {
		return ""
	}
	return request.AccountId
}

type BalanceResponse struct {
	AccountId    string `json:"account_id"`
	TokenBalance int64  `json:"token_balance"`
	Active       bool   `json:"active"`
}

func (response *BalanceResponse) GetAccountId() string {
	if response == nil {
		return ""
	}
	return response.AccountId
}

func (response *BalanceResponse) GetTokenBalance() int64 {
	if response == nil {
		return 0
	}
	return response.TokenBalance
}

func (response *BalanceResponse) GetActive() bool {
	if response == nil {
		return false
	}
	return response.Active
}

type TopUpRequest struct {
	AccountId        string `json:"account_id"`
	Tokens           int64  `json:"tokens"`
	PaidAmount       string `json:"paid_amount"`
	Currency         string `json:"currency"`
	PaymentReference string `json:"payment_reference"`
	MetadataJson     string `json:"metadata_json,omitempty"`
}

func (request *TopUpRequest) GetAccountId() string {
	if request == nil {
		return ""
	}
	return request.AccountId
}

func (request *TopUpRequest) GetTokens() int64 {
	if request == nil {
		return 0
	}
	return request.Tokens
}

func (request *TopUpRequest) GetPaidAmount() string {
	if request == nil {
		return ""
	}
	return request.PaidAmount
}

func (request *TopUpRequest) GetCurrency() string {
	if request == nil {
		return ""
	}
	return request.Currency
}

func (request *TopUpRequest) GetPaymentReference() string {
	if request == nil {
		return ""
	}
	return request.PaymentReference
}

func (request *TopUpRequest) GetMetadataJson() string {
	if request == nil {
		return ""
	}
	return request.MetadataJson
}

type TopUpResponse struct {
	TopUpId      string `json:"top_up_id"`
	Tokens       int64  `json:"tokens"`
	BalanceAfter int64  `json:"balance_after"`
	Replayed     bool   `json:"replayed"`
}

func (response *TopUpResponse) GetTopUpId() string {
	if response == nil {
		return ""
	}
	return response.TopUpId
}

func (response *TopUpResponse) GetTokens() int64 {
	if response == nil {
		return 0
	}
	return response.Tokens
}

func (response *TopUpResponse) GetBalanceAfter() int64 {
	if response == nil {
		return 0
	}
	return response.BalanceAfter
}

func (response *TopUpResponse) GetReplayed() bool {
	if response == nil {
		return false
	}
	return response.Replayed
}

type ListGiftsRequest struct {
	IncludeInactive bool `json:"include_inactive,omitempty"`
}

func (request *ListGiftsRequest) GetIncludeInactive() bool {
	if request == nil {
		return false
	}
	return request.IncludeInactive
}

type Gift struct {
	GiftId string `json:"gift_id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Active bool   `json:"active"`
}

func (gift *Gift) GetGiftId() string {
	if gift == nil {
		return ""
	}
	return gift.GiftId
}

func (gift *Gift) GetName() string {
	if gift == nil {
		return ""
	}
	return gift.Name
}

func (gift *Gift) GetPrice() int64 {
	if gift == nil {
		return 0
	}
	return gift.Price
}

func (gift *Gift) GetActive() bool {
	if gift == nil {
		return false
	}
	return gift.Active
}

type ListGiftsResponse struct {
	Gifts []*Gift `json:"gifts"`
}

func (response *ListGiftsResponse) GetGifts() []*Gift {
	if response == nil {
		return nil
	}
	return response.Gifts
}

type ListTransactionsRequest struct {
	AccountId     string `json:"account_id"`
	BeforeUnixUtc int64  `json:"before_unix_utc,omitempty"`
	Limit         int32  `json:"limit,omitempty"`
}

func (request *ListTransactionsRequest) GetAccountId() string {
	if request == nil {
		return ""
	}
	return request.AccountId
}

func (request *ListTransactionsRequest) GetBeforeUnixUtc() int64 {
	if request == nil {
		return 0
	}
	return request.BeforeUnixUtc
}

func (request *ListTransactionsRequest) GetLimit() int32 {
	if request == nil {
		return 0
	}
	return request.Limit
}

type Transaction struct {
	TransactionId  string `json:"transaction_id"`
	BuyerId        string `json:"buyer_id"`
	StreamerId     string `json:"streamer_id"`
	RoomId         string `json:"room_id"`
	GiftId         string `json:"gift_id"`
	GiftName       string `json:"gift_name"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int64  `json:"quantity"`
	TotalAmount    int64  `json:"total_amount"`
	Message        string `json:"message,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedUnixUtc int64  `json:"created_unix_utc"`
}

func (transaction *Transaction) GetTransactionId() string {
	if transaction == nil {
		return ""
	}
	return transaction.TransactionId
}

func (transaction *Transaction) GetBuyerId() string {
	if transaction == nil {
		return ""
	}
	return transaction.BuyerId
}

func (transaction *Transaction) GetStreamerId() string {
	if transaction == nil {
		return ""
	}
	return transaction.StreamerId
}

func (transaction *Transaction) GetRoomId() string {
	if transaction == nil {
		return ""
	}
	return transaction.RoomId
}

func (transaction *Transaction) GetGiftId() string {
	if transaction == nil {
		return ""
	}
	return transaction.GiftId
}

func (transaction *Transaction) GetGiftName() string {
	if transaction == nil {
		return ""
	}
	return transaction.GiftName
}

func (transaction *Transaction) GetUnitPrice() int64 {
	if transaction == nil {
		return 0
	}
	return transaction.UnitPrice
}

func (transaction *Transaction) GetQuantity() int64 {
	if transaction == nil {
		return 0
	}
	return transaction.Quantity
}

func (transaction *Transaction) GetTotalAmount() int64 {
	if transaction == nil {
		return 0
	}
	return transaction.TotalAmount
}

func (transaction *Transaction) GetMessage() string {
	if transaction == nil {
		return ""
	}
	return transaction.Message
}

func (transaction *Transaction) GetIdempotencyKey() string {
	if transaction == nil {
		return ""
	}
	return transaction.IdempotencyKey
}

func (transaction *Transaction) GetCreatedUnixUtc() int64 {
	if transaction == nil {
		return 0
	}
	return transaction.CreatedUnixUtc
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

func (response *ListTransactionsResponse) GetTransactions() []*Transaction {
	if response == nil {
		return nil
	}
	return response.Transactions
}
