package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table.
type Account struct {
	AccountID    string    `gorm:"primaryKey"`
	DisplayName  string    `gorm:"not null"`
	TokenBalance int64     `gorm:"not null;check:chk_accounts_token_balance,token_balance >= 0"`
	Active       bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// StreamerAccount mirrors the streamer_accounts table.
type StreamerAccount struct {
	StreamerID    string    `gorm:"primaryKey"`
	AccountID     string    `gorm:"not null;index:idx_streamer_accounts_account"`
	TotalEarnings int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (StreamerAccount) TableName() string { return "streamer_accounts" }

// Room mirrors the rooms table.
type Room struct {
	RoomID     string    `gorm:"primaryKey"`
	StreamerID string    `gorm:"not null;index:idx_rooms_streamer"`
	TotalTips  int64     `gorm:"not null"`
	Status     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Room) TableName() string { return "rooms" }

// Gift mirrors the gifts catalog table.
type Gift struct {
	GiftID    string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Price     int64     `gorm:"not null"`
	Active    bool      `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Gift) TableName() string { return "gifts" }

// GiftTransaction mirrors the append-only gift_transactions table.
type GiftTransaction struct {
	TransactionID  string    `gorm:"type:uuid;primaryKey"`
	BuyerAccountID string    `gorm:"not null;index:uniq_gift_transactions_buyer_idem,unique,priority:1;index:idx_gift_transactions_buyer_created,priority:1"`
	StreamerID     string    `gorm:"not null"`
	RoomID         string    `gorm:"not null;index:idx_gift_transactions_room"`
	GiftID         string    `gorm:"not null"`
	GiftName       string    `gorm:"not null"`
	UnitPrice      int64     `gorm:"not null"`
	Quantity       int64     `gorm:"not null"`
	TotalAmount    int64     `gorm:"not null"`
	Message        string    `gorm:"not null"`
	IdempotencyKey *string   `gorm:"index:uniq_gift_transactions_buyer_idem,unique,priority:2"`
	CreatedAt      time.Time `gorm:"not null;index:idx_gift_transactions_buyer_created,priority:2"`
}

func (GiftTransaction) TableName() string { return "gift_transactions" }

func (transaction *GiftTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// TokenTopUp mirrors the append-only token_top_ups table.
type TokenTopUp struct {
	TopUpID          string          `gorm:"type:uuid;primaryKey"`
	AccountID        string          `gorm:"not null;index:idx_token_top_ups_account"`
	Tokens           int64           `gorm:"not null"`
	PaidAmount       decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Currency         string          `gorm:"not null"`
	PaymentReference string          `gorm:"not null;uniqueIndex:uniq_token_top_ups_payment_reference"`
	Metadata         datatypes.JSON  `gorm:"type:jsonb;not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (TokenTopUp) TableName() string { return "token_top_ups" }

func (topUp *TokenTopUp) BeforeCreate(tx *gorm.DB) error {
	if topUp.TopUpID == "" {
		topUp.TopUpID = uuid.NewString()
	}
	return nil
}

// Models lists every table the store owns, in dependency order.
func Models() []interface{} {
	return []interface{}{&Account{}, &StreamerAccount{}, &Room{}, &Gift{}, &GiftTransaction{}, &TokenTopUp{}}
}
