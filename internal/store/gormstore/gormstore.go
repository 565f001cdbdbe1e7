package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintAccountsPrimary       = "accounts_pkey"
	constraintStreamersPrimary      = "streamer_accounts_pkey"
	constraintRoomsPrimary          = "rooms_pkey"
	constraintTransactionIdempotent = "uniq_gift_transactions_buyer_idem"
	constraintTopUpReference        = "uniq_token_top_ups_payment_reference"
	defaultMetadataJSON             = "{}"
	pgUniqueViolationCode           = "23505"
	sqliteConstraintCode            = 19
	errorOperationStore             = "store"
	errorSubjectAccount             = "account"
	errorSubjectStreamer            = "streamer"
	errorSubjectRoom                = "room"
	errorSubjectGift                = "gift"
	errorSubjectTransaction         = "transaction"
	errorSubjectTopUp               = "top_up"
	errorCodeCreate                 = "create"
	errorCodeCredit                 = "credit"
	errorCodeDebit                  = "debit"
	errorCodeDuplicate              = "duplicate"
	errorCodeGet                    = "get"
	errorCodeInsert                 = "insert"
	errorCodeInvalid                = "invalid"
	errorCodeList                   = "list"
	errorCodeLookup                 = "lookup"
	errorCodeUpdate                 = "update"
	errorCodeUpsert                 = "upsert"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table the store owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	now := time.Now().UTC()
	model := Account{
		AccountID:    account.ID.String(),
		DisplayName:  account.DisplayName.String(),
		TokenBalance: account.TokenBalance.Int64(),
		Active:       account.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintAccountsPrimary) {
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
		}
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	account, err := mapAccount(model)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

// Debit subtracts amount only while the balance covers it; the row is locked by the UPDATE.
func (store *Store) Debit(ctx context.Context, accountID ledger.AccountID, amount ledger.PositiveTokenAmount) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND active = ? AND token_balance >= ?", accountID.String(), true, amount.Int64()).
		Updates(map[string]interface{}{
			"token_balance": gorm.Expr("token_balance - ?", amount.Int64()),
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeDebit, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.explainMissedUpdate(ctx, accountID, errorCodeDebit, ledger.ErrInsufficientFunds)
	}
	return nil
}

func (store *Store) Credit(ctx context.Context, accountID ledger.AccountID, amount ledger.PositiveTokenAmount) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND active = ?", accountID.String(), true).
		Updates(map[string]interface{}{
			"token_balance": gorm.Expr("token_balance + ?", amount.Int64()),
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCredit, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeCredit, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) explainMissedUpdate(ctx context.Context, accountID ledger.AccountID, code string, fallback error) error {
	account, err := store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return wrapStoreError(errorSubjectAccount, code, ledger.ErrAccountNotFound)
	}
	return wrapStoreError(errorSubjectAccount, code, fallback)
}

func (store *Store) DeactivateAccount(ctx context.Context, accountID ledger.AccountID) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ?", accountID.String()).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) CreateStreamer(ctx context.Context, streamer ledger.StreamerAccount) error {
	now := time.Now().UTC()
	model := StreamerAccount{
		StreamerID:    streamer.ID.String(),
		AccountID:     streamer.AccountID.String(),
		TotalEarnings: streamer.TotalEarnings.Int64(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintStreamersPrimary) {
		return wrapStoreError(errorSubjectStreamer, errorCodeDuplicate, ledger.ErrStreamerExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectStreamer, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetStreamer(ctx context.Context, streamerID ledger.StreamerID) (ledger.StreamerAccount, error) {
	var model StreamerAccount
	err := store.db.WithContext(ctx).Where("streamer_id = ?", streamerID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeGet, ledger.ErrStreamerNotFound)
		}
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeGet, err)
	}
	streamer, err := mapStreamer(model)
	if err != nil {
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeInvalid, err)
	}
	return streamer, nil
}

// CreditEarnings increments the streamer's earnings. A missing streamer means the room
// no longer resolves to a payable owner.
func (store *Store) CreditEarnings(ctx context.Context, streamerID ledger.StreamerID, amount ledger.PositiveTokenAmount) error {
	result := store.db.WithContext(ctx).
		Model(&StreamerAccount{}).
		Where("streamer_id = ?", streamerID.String()).
		Updates(map[string]interface{}{
			"total_earnings": gorm.Expr("total_earnings + ?", amount.Int64()),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectStreamer, errorCodeCredit, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectStreamer, errorCodeCredit, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CreateRoom(ctx context.Context, room ledger.Room) error {
	now := time.Now().UTC()
	model := Room{
		RoomID:     room.ID.String(),
		StreamerID: room.StreamerID.String(),
		TotalTips:  room.TotalTips.Int64(),
		Status:     room.Status.String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintRoomsPrimary) {
		return wrapStoreError(errorSubjectRoom, errorCodeDuplicate, ledger.ErrRoomExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetRoom(ctx context.Context, roomID ledger.RoomID) (ledger.Room, error) {
	var model Room
	err := store.db.WithContext(ctx).Where("room_id = ?", roomID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, ledger.ErrRoomNotFound)
		}
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, err)
	}
	room, err := mapRoom(model)
	if err != nil {
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return room, nil
}

// GetRoomOwner resolves a live room to a registered streamer.
func (store *Store) GetRoomOwner(ctx context.Context, roomID ledger.RoomID) (ledger.StreamerID, error) {
	var owners []string
	err := store.db.WithContext(ctx).
		Model(&Room{}).
		Joins("JOIN streamer_accounts ON streamer_accounts.streamer_id = rooms.streamer_id").
		Where("rooms.room_id = ? AND rooms.status = ?", roomID.String(), ledger.RoomStatusLive.String()).
		Limit(1).
		Pluck("rooms.streamer_id", &owners).Error
	if err != nil {
		return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeLookup, err)
	}
	if len(owners) == 0 {
		return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeLookup, ledger.ErrRoomNotFound)
	}
	streamerID, err := ledger.NewStreamerID(owners[0])
	if err != nil {
		return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return streamerID, nil
}

func (store *Store) AddTip(ctx context.Context, roomID ledger.RoomID, amount ledger.PositiveTokenAmount) error {
	result := store.db.WithContext(ctx).
		Model(&Room{}).
		Where("room_id = ? AND status = ?", roomID.String(), ledger.RoomStatusLive.String()).
		Updates(map[string]interface{}{
			"total_tips": gorm.Expr("total_tips + ?", amount.Int64()),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CloseRoom(ctx context.Context, roomID ledger.RoomID) error {
	result := store.db.WithContext(ctx).
		Model(&Room{}).
		Where("room_id = ?", roomID.String()).
		Updates(map[string]interface{}{"status": ledger.RoomStatusClosed.String(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) UpsertGift(ctx context.Context, gift ledger.GiftDefinition) error {
	model := Gift{
		GiftID:    gift.ID.String(),
		Name:      gift.Name,
		Price:     gift.Price.Int64(),
		Active:    gift.Active,
		UpdatedAt: time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gift_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "active", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectGift, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) GetActiveGift(ctx context.Context, giftID ledger.GiftID) (ledger.GiftDefinition, error) {
	var model Gift
	err := store.db.WithContext(ctx).Where("gift_id = ? AND active = ?", giftID.String(), true).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.GiftDefinition{}, wrapStoreError(errorSubjectGift, errorCodeGet, ledger.ErrGiftNotFound)
		}
		return ledger.GiftDefinition{}, wrapStoreError(errorSubjectGift, errorCodeGet, err)
	}
	gift, err := mapGift(model)
	if err != nil {
		return ledger.GiftDefinition{}, wrapStoreError(errorSubjectGift, errorCodeInvalid, err)
	}
	return gift, nil
}

func (store *Store) ListGifts(ctx context.Context, activeOnly bool) ([]ledger.GiftDefinition, error) {
	query := store.db.WithContext(ctx).Model(&Gift{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []Gift
	if err := query.Order("price ASC, gift_id ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectGift, errorCodeList, err)
	}
	gifts := make([]ledger.GiftDefinition, 0, len(rows))
	for _, row := range rows {
		gift, err := mapGift(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectGift, errorCodeInvalid, err)
		}
		gifts = append(gifts, gift)
	}
	return gifts, nil
}

func (store *Store) AppendTransaction(ctx context.Context, record ledger.TransactionRecord) (ledger.TransactionID, error) {
	var idempotencyKey *string
	if !record.IdempotencyKey.IsZero() {
		value := record.IdempotencyKey.String()
		idempotencyKey = &value
	}
	model := GiftTransaction{
		BuyerAccountID: record.BuyerAccountID.String(),
		StreamerID:     record.StreamerID.String(),
		RoomID:         record.RoomID.String(),
		GiftID:         record.GiftID.String(),
		GiftName:       record.GiftName,
		UnitPrice:      record.UnitPrice.Int64(),
		Quantity:       record.Quantity.Int64(),
		TotalAmount:    record.TotalAmount.Int64(),
		Message:        record.Message.String(),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      unixOrNow(record.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintTransactionIdempotent) {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	transactionID, err := ledger.NewTransactionID(model.TransactionID)
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactionID, nil
}

func (store *Store) FindTransactionByIdempotencyKey(ctx context.Context, buyerID ledger.AccountID, key ledger.IdempotencyKey) (ledger.Transaction, error) {
	var model GiftTransaction
	err := store.db.WithContext(ctx).
		Where("buyer_account_id = ? AND idempotency_key = ?", buyerID.String(), key.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeLookup, ledger.ErrUnknownTransaction)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	transaction, err := mapTransaction(model)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}

	var rows []GiftTransaction
	err := store.db.WithContext(ctx).
		Where("buyer_account_id = ? AND created_at < ?", accountID.String(), before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) AppendTopUp(ctx context.Context, record ledger.TopUpRecord) (ledger.TopUpID, error) {
	model := TokenTopUp{
		AccountID:        record.AccountID.String(),
		Tokens:           record.Tokens.Int64(),
		PaidAmount:       record.PaidAmount,
		Currency:         record.Currency,
		PaymentReference: record.PaymentReference.String(),
		Metadata:         datatypesJSON(record.Metadata.String()),
		CreatedAt:        unixOrNow(record.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintTopUpReference) {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeDuplicate, ledger.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeInsert, err)
	}
	topUpID, err := ledger.NewTopUpID(model.TopUpID)
	if err != nil {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeInvalid, err)
	}
	return topUpID, nil
}

func (store *Store) FindTopUpByPaymentReference(ctx context.Context, reference ledger.IdempotencyKey) (ledger.TopUp, error) {
	var model TokenTopUp
	err := store.db.WithContext(ctx).Where("payment_reference = ?", reference.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeLookup, ledger.ErrUnknownTopUp)
		}
		return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeLookup, err)
	}
	topUp, err := mapTopUp(model)
	if err != nil {
		return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeInvalid, err)
	}
	return topUp, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapAccount(row Account) (ledger.Account, error) {
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.Account{}, err
	}
	displayName, err := ledger.NewDisplayName(row.DisplayName)
	if err != nil {
		return ledger.Account{}, err
	}
	balance, err := ledger.NewTokenAmount(row.TokenBalance)
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{ID: accountID, DisplayName: displayName, TokenBalance: balance, Active: row.Active}, nil
}

func mapStreamer(row StreamerAccount) (ledger.StreamerAccount, error) {
	streamerID, err := ledger.NewStreamerID(row.StreamerID)
	if err != nil {
		return ledger.StreamerAccount{}, err
	}
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.StreamerAccount{}, err
	}
	earnings, err := ledger.NewTokenAmount(row.TotalEarnings)
	if err != nil {
		return ledger.StreamerAccount{}, err
	}
	return ledger.StreamerAccount{ID: streamerID, AccountID: accountID, TotalEarnings: earnings}, nil
}

func mapRoom(row Room) (ledger.Room, error) {
	roomID, err := ledger.NewRoomID(row.RoomID)
	if err != nil {
		return ledger.Room{}, err
	}
	streamerID, err := ledger.NewStreamerID(row.StreamerID)
	if err != nil {
		return ledger.Room{}, err
	}
	tips, err := ledger.NewTokenAmount(row.TotalTips)
	if err != nil {
		return ledger.Room{}, err
	}
	status, err := ledger.ParseRoomStatus(row.Status)
	if err != nil {
		return ledger.Room{}, err
	}
	return ledger.Room{ID: roomID, StreamerID: streamerID, TotalTips: tips, Status: status}, nil
}

func mapGift(row Gift) (ledger.GiftDefinition, error) {
	giftID, err := ledger.NewGiftID(row.GiftID)
	if err != nil {
		return ledger.GiftDefinition{}, err
	}
	price, err := ledger.NewPositiveTokenAmount(row.Price)
	if err != nil {
		return ledger.GiftDefinition{}, err
	}
	return ledger.NewGiftDefinition(giftID, row.Name, price, row.Active)
}

func mapTransaction(row GiftTransaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	buyerID, err := ledger.NewAccountID(row.BuyerAccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	streamerID, err := ledger.NewStreamerID(row.StreamerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	roomID, err := ledger.NewRoomID(row.RoomID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	giftID, err := ledger.NewGiftID(row.GiftID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	unitPrice, err := ledger.NewPositiveTokenAmount(row.UnitPrice)
	if err != nil {
		return ledger.Transaction{}, err
	}
	quantity, err := ledger.NewQuantity(row.Quantity)
	if err != nil {
		return ledger.Transaction{}, err
	}
	totalAmount, err := ledger.NewPositiveTokenAmount(row.TotalAmount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	message, err := ledger.NewGiftMessage(row.Message)
	if err != nil {
		return ledger.Transaction{}, err
	}
	var idempotencyKey ledger.IdempotencyKey
	if row.IdempotencyKey != nil {
		idempotencyKey, err = ledger.NewIdempotencyKey(*row.IdempotencyKey)
		if err != nil {
			return ledger.Transaction{}, err
		}
	}
	return ledger.Transaction{
		ID: transactionID,
		TransactionRecord: ledger.TransactionRecord{
			BuyerAccountID: buyerID,
			StreamerID:     streamerID,
			RoomID:         roomID,
			GiftID:         giftID,
			GiftName:       row.GiftName,
			UnitPrice:      unitPrice,
			Quantity:       quantity,
			TotalAmount:    totalAmount,
			Message:        message,
			IdempotencyKey: idempotencyKey,
			CreatedUnixUTC: row.CreatedAt.Unix(),
		},
	}, nil
}

func mapTopUp(row TokenTopUp) (ledger.TopUp, error) {
	topUpID, err := ledger.NewTopUpID(row.TopUpID)
	if err != nil {
		return ledger.TopUp{}, err
	}
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.TopUp{}, err
	}
	tokens, err := ledger.NewPositiveTokenAmount(row.Tokens)
	if err != nil {
		return ledger.TopUp{}, err
	}
	reference, err := ledger.NewIdempotencyKey(row.PaymentReference)
	if err != nil {
		return ledger.TopUp{}, err
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.TopUp{}, err
	}
	return ledger.TopUp{
		ID: topUpID,
		TopUpRecord: ledger.TopUpRecord{
			AccountID:        accountID,
			Tokens:           tokens,
			PaidAmount:       row.PaidAmount,
			Currency:         row.Currency,
			PaymentReference: reference,
			Metadata:         metadata,
			CreatedUnixUTC:   row.CreatedAt.Unix(),
		},
	}, nil
}

func unixOrNow(unixUTC int64) time.Time {
	if unixUTC == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

// isUniqueViolation reports whether err is a unique-constraint failure. Postgres errors are
// matched on the constraint name; SQLite only reports the primary constraint class.
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
