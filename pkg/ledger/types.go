package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// TokenAmount is a non-negative count of platform tokens.
type TokenAmount int64

// PositiveTokenAmount is a strictly positive count of platform tokens.
type PositiveTokenAmount int64

// Quantity is the number of gift units in one purchase.
type Quantity int64

// AccountID identifies a viewer account.
type AccountID struct {
	value string
}

// StreamerID identifies a streamer earnings account.
type StreamerID struct {
	value string
}

// RoomID identifies a live room.
type RoomID struct {
	value string
}

// GiftID identifies a catalog entry.
type GiftID struct {
	value string
}

// TransactionID identifies an appended gift transaction.
type TransactionID struct {
	value string
}

// TopUpID identifies an appended top-up record.
type TopUpID struct {
	value string
}

// IdempotencyKey scopes duplicate detection. The zero value means "no key".
type IdempotencyKey struct {
	value string
}

// GiftMessage is the optional note attached to a gift.
type GiftMessage struct {
	value string
}

// DisplayName is the public name shown to room participants.
type DisplayName struct {
	value string
}

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// RoomStatus defines the room lifecycle.
type RoomStatus string

const (
	RoomStatusLive   RoomStatus = "live"
	RoomStatusClosed RoomStatus = "closed"
)

// NewTokenAmount validates a non-negative token count.
func NewTokenAmount(raw int64) (TokenAmount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidTokenAmount)
	}
	return TokenAmount(raw), nil
}

// Int64 returns the raw token count.
func (amount TokenAmount) Int64() int64 {
	return int64(amount)
}

// NewPositiveTokenAmount validates a strictly positive token count.
func NewPositiveTokenAmount(raw int64) (PositiveTokenAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidTokenAmount)
	}
	return PositiveTokenAmount(raw), nil
}

// Int64 returns the raw token count.
func (amount PositiveTokenAmount) Int64() int64 {
	return int64(amount)
}

// ToTokenAmount widens the positive amount.
func (amount PositiveTokenAmount) ToTokenAmount() TokenAmount {
	return TokenAmount(amount)
}

// NewQuantity validates a purchase quantity.
func NewQuantity(raw int64) (Quantity, error) {
	if raw < 1 {
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidQuantity)
	}
	return Quantity(raw), nil
}

// Int64 returns the raw quantity.
func (quantity Quantity) Int64() int64 {
	return int64(quantity)
}

// TotalPrice multiplies a unit price by a quantity, rejecting overflow.
func TotalPrice(price PositiveTokenAmount, quantity Quantity) (PositiveTokenAmount, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidQuantity)
	}
	if price.Int64() > math.MaxInt64/quantity.Int64() {
		return 0, fmt.Errorf("%w: total price overflows", ErrInvalidQuantity)
	}
	return NewPositiveTokenAmount(price.Int64() * quantity.Int64())
}

func normalizeIdentifier(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", sentinel)
	}
	return trimmed, nil
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidAccountID)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{value: value}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewStreamerID validates and normalizes a streamer id.
func NewStreamerID(raw string) (StreamerID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidStreamerID)
	if err != nil {
		return StreamerID{}, err
	}
	return StreamerID{value: value}, nil
}

// String returns the normalized identifier.
func (id StreamerID) String() string {
	return id.value
}

// NewRoomID validates and normalizes a room id.
func NewRoomID(raw string) (RoomID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidRoomID)
	if err != nil {
		return RoomID{}, err
	}
	return RoomID{value: value}, nil
}

// String returns the normalized identifier.
func (id RoomID) String() string {
	return id.value
}

// NewGiftID validates and normalizes a gift id.
func NewGiftID(raw string) (GiftID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidGiftID)
	if err != nil {
		return GiftID{}, err
	}
	return GiftID{value: value}, nil
}

// String returns the normalized identifier.
func (id GiftID) String() string {
	return id.value
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidTransactionID)
	if err != nil {
		return TransactionID{}, err
	}
	return TransactionID{value: value}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// NewTopUpID validates and normalizes a top-up id.
func NewTopUpID(raw string) (TopUpID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidTopUpID)
	if err != nil {
		return TopUpID{}, err
	}
	return TopUpID{value: value}, nil
}

// String returns the normalized identifier.
func (id TopUpID) String() string {
	return id.value
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidIdempotencyKey)
	if err != nil {
		return IdempotencyKey{}, err
	}
	if len(value) > maxIdempotencyKeyLen {
		return IdempotencyKey{}, fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdempotencyKey, maxIdempotencyKeyLen)
	}
	return IdempotencyKey{value: value}, nil
}

// NewOptionalIdempotencyKey returns the zero key for blank input.
func NewOptionalIdempotencyKey(raw string) (IdempotencyKey, error) {
	if strings.TrimSpace(raw) == "" {
		return IdempotencyKey{}, nil
	}
	return NewIdempotencyKey(raw)
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// IsZero reports whether no key was supplied.
func (key IdempotencyKey) IsZero() bool {
	return key.value == ""
}

// NewGiftMessage trims and bounds an optional gift message.
func NewGiftMessage(raw string) (GiftMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) > maxGiftMessageRunes {
		return GiftMessage{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidMessage, maxGiftMessageRunes)
	}
	return GiftMessage{value: trimmed}, nil
}

// String returns the message text (possibly empty).
func (message GiftMessage) String() string {
	return message.value
}

// NewDisplayName validates a display name.
func NewDisplayName(raw string) (DisplayName, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidDisplayName)
	if err != nil {
		return DisplayName{}, err
	}
	if utf8.RuneCountInString(value) > maxDisplayNameRunes {
		return DisplayName{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidDisplayName, maxDisplayNameRunes)
	}
	return DisplayName{value: value}, nil
}

// String returns the display name.
func (name DisplayName) String() string {
	return name.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// ParseRoomStatus validates a stored room status.
func ParseRoomStatus(raw string) (RoomStatus, error) {
	switch RoomStatus(raw) {
	case RoomStatusLive, RoomStatusClosed:
		return RoomStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomStatus, raw)
	}
}

// String returns the status text.
func (status RoomStatus) String() string {
	return string(status)
}

// Account is a viewer's spendable balance.
type Account struct {
	ID           AccountID
	DisplayName  DisplayName
	TokenBalance TokenAmount
	Active       bool
}

// StreamerAccount accumulates earnings for a streamer.
type StreamerAccount struct {
	ID            StreamerID
	AccountID     AccountID
	TotalEarnings TokenAmount
}

// GiftDefinition is a catalog entry.
type GiftDefinition struct {
	ID     GiftID
	Name   string
	Price  PositiveTokenAmount
	Active bool
}

// NewGiftDefinition validates a catalog entry.
func NewGiftDefinition(giftID GiftID, name string, price PositiveTokenAmount, active bool) (GiftDefinition, error) {
	if giftID.String() == "" {
		return GiftDefinition{}, fmt.Errorf("%w: empty value", ErrInvalidGiftID)
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" || utf8.RuneCountInString(trimmedName) > maxGiftNameRunes {
		return GiftDefinition{}, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidGiftDefinition, maxGiftNameRunes)
	}
	if price <= 0 {
		return GiftDefinition{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidTokenAmount)
	}
	return GiftDefinition{ID: giftID, Name: trimmedName, Price: price, Active: active}, nil
}

// Room is a live session aggregate.
type Room struct {
	ID         RoomID
	StreamerID StreamerID
	TotalTips  TokenAmount
	Status     RoomStatus
}

// TransactionRecord is the input for appending a gift transaction.
type TransactionRecord struct {
	BuyerAccountID AccountID
	StreamerID     StreamerID
	RoomID         RoomID
	GiftID         GiftID
	GiftName       string
	UnitPrice      PositiveTokenAmount
	Quantity       Quantity
	TotalAmount    PositiveTokenAmount
	Message        GiftMessage
	IdempotencyKey IdempotencyKey
	CreatedUnixUTC int64
}

// Transaction is an immutable, stored gift transaction.
type Transaction struct {
	ID TransactionID
	TransactionRecord
}

// TopUpRecord is the input for appending a token top-up.
type TopUpRecord struct {
	AccountID        AccountID
	Tokens           PositiveTokenAmount
	PaidAmount       decimal.Decimal
	Currency         string
	PaymentReference IdempotencyKey
	Metadata         MetadataJSON
	CreatedUnixUTC   int64
}

// TopUp is an immutable, stored token top-up.
type TopUp struct {
	ID TopUpID
	TopUpRecord
}

// PurchaseRequest carries the validated inputs of a gift purchase.
// Quantity is kept raw so its validation happens in the documented precondition order.
type PurchaseRequest struct {
	BuyerID        AccountID
	RoomID         RoomID
	GiftID         GiftID
	Quantity       int64
	Message        GiftMessage
	IdempotencyKey IdempotencyKey
}

// PurchaseReceipt is returned for a committed (or replayed) purchase.
type PurchaseReceipt struct {
	TransactionID TransactionID
	GiftName      string
	Quantity      Quantity
	TotalAmount   PositiveTokenAmount
	BalanceAfter  TokenAmount
	Replayed      bool
}

// TopUpRequest carries the validated inputs of a top-up.
type TopUpRequest struct {
	AccountID        AccountID
	Tokens           PositiveTokenAmount
	PaidAmount       decimal.Decimal
	Currency         string
	PaymentReference IdempotencyKey
	Metadata         MetadataJSON
}

// TopUpReceipt is returned for a committed (or replayed) top-up.
type TopUpReceipt struct {
	TopUpID      TopUpID
	Tokens       PositiveTokenAmount
	BalanceAfter TokenAmount
	Replayed     bool
}

// Store is the persistence contract used by Service.
// Every mutating method is expected to run on the store handed to WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	Debit(ctx context.Context, accountID AccountID, amount PositiveTokenAmount) error
	Credit(ctx context.Context, accountID AccountID, amount PositiveTokenAmount) error
	DeactivateAccount(ctx context.Context, accountID AccountID) error

	CreateStreamer(ctx context.Context, streamer StreamerAccount) error
	GetStreamer(ctx context.Context, streamerID StreamerID) (StreamerAccount, error)
	CreditEarnings(ctx context.Context, streamerID StreamerID, amount PositiveTokenAmount) error

	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, roomID RoomID) (Room, error)
	GetRoomOwner(ctx context.Context, roomID RoomID) (StreamerID, error)
	AddTip(ctx context.Context, roomID RoomID, amount PositiveTokenAmount) error
	CloseRoom(ctx context.Context, roomID RoomID) error

	UpsertGift(ctx context.Context, gift GiftDefinition) error
	GetActiveGift(ctx context.Context, giftID GiftID) (GiftDefinition, error)
	ListGifts(ctx context.Context, activeOnly bool) ([]GiftDefinition, error)

	AppendTransaction(ctx context.Context, record TransactionRecord) (TransactionID, error)
	FindTransactionByIdempotencyKey(ctx context.Context, buyerID AccountID, key IdempotencyKey) (Transaction, error)
	ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error)

	AppendTopUp(ctx context.Context, record TopUpRecord) (TopUpID, error)
	FindTopUpByPaymentReference(ctx context.Context, reference IdempotencyKey) (TopUp, error)
}
