package pgstore

import (
	"context"
	_ "embed"
	"errors"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	constraintAccountsPrimary       = "accounts_pkey"
	constraintStreamersPrimary      = "streamer_accounts_pkey"
	constraintRoomsPrimary          = "rooms_pkey"
	constraintTransactionIdempotent = "uniq_gift_transactions_buyer_idem"
	constraintTopUpReference        = "uniq_token_top_ups_payment_reference"
	pgUniqueViolationCode           = "23505"
	errorOperationStore             = "store"
	errorSubjectAccount             = "account"
	errorSubjectStreamer            = "streamer"
	errorSubjectRoom                = "room"
	errorSubjectGift                = "gift"
	errorSubjectTransaction         = "transaction"
	errorSubjectTopUp               = "top_up"
	errorSubjectSchema              = "schema"
	errorCodeBegin                  = "begin"
	errorCodeCommit                 = "commit"
	errorCodeCreate                 = "create"
	errorCodeCredit                 = "credit"
	errorCodeDebit                  = "debit"
	errorCodeDuplicate              = "duplicate"
	errorCodeGet                    = "get"
	errorCodeInsert                 = "insert"
	errorCodeInvalid                = "invalid"
	errorCodeList                   = "list"
	errorCodeLookup                 = "lookup"
	errorCodeMigrate                = "migrate"
	errorCodeUpdate                 = "update"
	errorCodeUpsert                 = "upsert"

	sqlInsertAccount = `
		insert into accounts(account_id, display_name, token_balance, active)
		values ($1, $2, $3, $4)
	`

	sqlSelectAccount = `
		select account_id, display_name, token_balance, active
		from accounts
		where account_id = $1
	`

	sqlDebitAccount = `
		update accounts
		set token_balance = token_balance - $2, updated_at = now()
		where account_id = $1 and active and token_balance >= $2
	`

	sqlCreditAccount = `
		update accounts
		set token_balance = token_balance + $2, updated_at = now()
		where account_id = $1 and active
	`

	sqlDeactivateAccount = `
		update accounts set active = false, updated_at = now() where account_id = $1
	`

	sqlInsertStreamer = `
		insert into streamer_accounts(streamer_id, account_id, total_earnings)
		values ($1, $2, $3)
	`

	sqlSelectStreamer = `
		select streamer_id, account_id, total_earnings
		from streamer_accounts
		where streamer_id = $1
	`

	sqlCreditEarnings = `
		update streamer_accounts
		set total_earnings = total_earnings + $2, updated_at = now()
		where streamer_id = $1
	`

	sqlInsertRoom = `
		insert into rooms(room_id, streamer_id, total_tips, status)
		values ($1, $2, $3, $4)
	`

	sqlSelectRoom = `
		select room_id, streamer_id, total_tips, status
		from rooms
		where room_id = $1
	`

	sqlSelectRoomOwner = `
		select rooms.streamer_id
		from rooms
		join streamer_accounts on streamer_accounts.streamer_id = rooms.streamer_id
		where rooms.room_id = $1 and rooms.status = 'live'
	`

	sqlAddTip = `
		update rooms
		set total_tips = total_tips + $2, updated_at = now()
		where room_id = $1 and status = 'live'
	`

	sqlCloseRoom = `
		update rooms set status = 'closed', updated_at = now() where room_id = $1
	`

	sqlUpsertGift = `
		insert into gifts(gift_id, name, price, active)
		values ($1, $2, $3, $4)
		on conflict (gift_id) do update
		set name = excluded.name, price = excluded.price, active = excluded.active, updated_at = now()
	`

	sqlSelectActiveGift = `
		select gift_id, name, price, active
		from gifts
		where gift_id = $1 and active
	`

	sqlListGifts = `
		select gift_id, name, price, active
		from gifts
		where active or not $1
		order by price asc, gift_id asc
	`

	sqlInsertTransaction = `
		insert into gift_transactions(
			buyer_account_id, streamer_id, room_id, gift_id, gift_name,
			unit_price, quantity, total_amount, message, idempotency_key, created_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, nullif($10, ''), to_timestamp($11))
		returning transaction_id::text
	`

	sqlTransactionColumns = `
		select
			transaction_id::text,
			buyer_account_id,
			streamer_id,
			room_id,
			gift_id,
			gift_name,
			unit_price,
			quantity,
			total_amount,
			message,
			coalesce(idempotency_key, ''),
			extract(epoch from created_at)::bigint
		from gift_transactions
	`

	sqlSelectTransactionByKey = sqlTransactionColumns + `
		where buyer_account_id = $1 and idempotency_key = $2
	`

	sqlListTransactionsBefore = sqlTransactionColumns + `
		where buyer_account_id = $1 and created_at < to_timestamp($2)
		order by created_at desc
		limit $3
	`

	sqlInsertTopUp = `
		insert into token_top_ups(account_id, tokens, paid_amount, currency, payment_reference, metadata, created_at)
		values ($1, $2, $3::numeric, $4, $5, coalesce(nullif($6, ''), '{}')::jsonb, to_timestamp($7))
		returning top_up_id::text
	`

	sqlSelectTopUpByReference = `
		select
			top_up_id::text,
			account_id,
			tokens,
			paid_amount::text,
			currency,
			payment_reference,
			metadata::text,
			extract(epoch from created_at)::bigint
		from token_top_ups
		where payment_reference = $1
	`
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool. Inside WithTx the same type
// runs against the open transaction.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &Store{pool: store.pool, db: tx, inTx: true}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	_, err := store.db.Exec(ctx, sqlInsertAccount, account.ID.String(), account.DisplayName.String(), account.TokenBalance.Int64(), account.Active)
	if isUniqueViolation(err, constraintAccountsPrimary) {
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var (
		accountIDValue string
		displayName    string
		balance        int64
		active         bool
	)
	err := store.db.QueryRow(ctx, sqlSelectAccount, accountID.String()).Scan(&accountIDValue, &displayName, &balance, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
		}
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	parsedAccountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	parsedDisplayName, err := ledger.NewDisplayName(displayName)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	tokenBalance, err := ledger.NewTokenAmount(balance)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{ID: parsedAccountID, DisplayName: parsedDisplayName, TokenBalance: tokenBalance, Active: active}, nil
}

func (store *Store) Debit(ctx context.Context, accountID ledger.AccountID, amount ledger.PositiveTokenAmount) error {
	tag, err := store.db.Exec(ctx, sqlDebitAccount, accountID.String(), amount.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeDebit, err)
	}
	if tag.RowsAffected() == 0 {
		account, err := store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return wrapStoreError(errorSubjectAccount, errorCodeDebit, ledger.ErrAccountNotFound)
		}
		return wrapStoreError(errorSubjectAccount, errorCodeDebit, ledger.ErrInsufficientFunds)
	}
	return nil
}

func (store *Store) Credit(ctx context.Context, accountID ledger.AccountID, amount ledger.PositiveTokenAmount) error {
	tag, err := store.db.Exec(ctx, sqlCreditAccount, accountID.String(), amount.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCredit, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeCredit, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) DeactivateAccount(ctx context.Context, accountID ledger.AccountID) error {
	tag, err := store.db.Exec(ctx, sqlDeactivateAccount, accountID.String())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) CreateStreamer(ctx context.Context, streamer ledger.StreamerAccount) error {
	_, err := store.db.Exec(ctx, sqlInsertStreamer, streamer.ID.String(), streamer.AccountID.String(), streamer.TotalEarnings.Int64())
	if isUniqueViolation(err, constraintStreamersPrimary) {
		return wrapStoreError(errorSubjectStreamer, errorCodeDuplicate, ledger.ErrStreamerExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectStreamer, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetStreamer(ctx context.Context, streamerID ledger.StreamerID) (ledger.StreamerAccount, error) {
	var (
		streamerIDValue string
		accountIDValue  string
		earnings        int64
	)
	err := store.db.QueryRow(ctx, sqlSelectStreamer, streamerID.String()).Scan(&streamerIDValue, &accountIDValue, &earnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeGet, ledger.ErrStreamerNotFound)
		}
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeGet, err)
	}
	parsedStreamerID, err := ledger.NewStreamerID(streamerIDValue)
	if err != nil {
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeInvalid, err)
	}
	parsedAccountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeInvalid, err)
	}
	totalEarnings, err := ledger.NewTokenAmount(earnings)
	if err != nil {
		return ledger.StreamerAccount{}, wrapStoreError(errorSubjectStreamer, errorCodeInvalid, err)
	}
	return ledger.StreamerAccount{ID: parsedStreamerID, AccountID: parsedAccountID, TotalEarnings: totalEarnings}, nil
}

func (store *Store) CreditEarnings(ctx context.Context, streamerID ledger.StreamerID, amount ledger.PositiveTokenAmount) error {
	tag, err := store.db.Exec(ctx, sqlCreditEarnings, streamerID.String(), amount.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectStreamer, errorCodeCredit, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectStreamer, errorCodeCredit, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CreateRoom(ctx context.Context, room ledger.Room) error {
	_, err := store.db.Exec(ctx, sqlInsertRoom, room.ID.String(), room.StreamerID.String(), room.TotalTips.Int64(), room.Status.String())
	if isUniqueViolation(err, constraintRoomsPrimary) {
		return wrapStoreError(errorSubjectRoom, errorCodeDuplicate, ledger.ErrRoomExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetRoom(ctx context.Context, roomID ledger.RoomID) (ledger.Room, error) {
	var (
		roomIDValue     string
		streamerIDValue string
		tips            int64
		statusValue     string
	)
	err := store.db.QueryRow(ctx, sqlSelectRoom, roomID.String()).Scan(&roomIDValue, &streamerIDValue, &tips, &statusValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, ledger.ErrRoomNotFound)
		}
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, err)
	}
	parsedRoomID, err := ledger.NewRoomID(roomIDValue)
	if err != nil {
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	parsedStreamerID, err := ledger.NewStreamerID(streamerIDValue)
	if err != nil {
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	totalTips, err := ledger.NewTokenAmount(tips)
	if err != nil {
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	status, err := ledger.ParseRoomStatus(statusValue)
	if err != nil {
		return ledger.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return ledger.Room{ID: parsedRoomID, StreamerID: parsedStreamerID, TotalTips: totalTips, Status: status}, nil
}

func (store *Store) GetRoomOwner(ctx context.Context, roomID ledger.RoomID) (ledger.StreamerID, error) {
	var streamerIDValue string
	err := store.db.QueryRow(ctx, sqlSelectRoomOwner, roomID.String()).Scan(&streamerIDValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeLookup, ledger.ErrRoomNotFound)
		}
		return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeLookup, err)
	}
	streamerID, err := ledger.NewStreamerID(streamerIDValue)
	if err != nil {
		return ledger.StreamerID{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return streamerID, nil
}

func (store *Store) AddTip(ctx context.Context, roomID ledger.RoomID, amount ledger.PositiveTokenAmount) error {
	tag, err := store.db.Exec(ctx, sqlAddTip, roomID.String(), amount.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CloseRoom(ctx context.Context, roomID ledger.RoomID) error {
	tag, err := store.db.Exec(ctx, sqlCloseRoom, roomID.String())
	if err != nil {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeUpdate, ledger.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) UpsertGift(ctx context.Context, gift ledger.GiftDefinition) error {
	if _, err := store.db.Exec(ctx, sqlUpsertGift, gift.ID.String(), gift.Name, gift.Price.Int64(), gift.Active); err != nil {
		return wrapStoreError(errorSubjectGift, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) GetActiveGift(ctx context.Context, giftID ledger.GiftID) (ledger.GiftDefinition, error) {
	gift, err := scanGift(store.db.QueryRow(ctx, sqlSelectActiveGift, giftID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.GiftDefinition{}, wrapStoreError(errorSubjectGift, errorCodeGet, ledger.ErrGiftNotFound)
		}
		return ledger.GiftDefinition{}, wrapStoreError(errorSubjectGift, errorCodeGet, err)
	}
	return gift, nil
}

func (store *Store) ListGifts(ctx context.Context, activeOnly bool) ([]ledger.GiftDefinition, error) {
	rows, err := store.db.Query(ctx, sqlListGifts, activeOnly)
	if err != nil {
		return nil, wrapStoreError(errorSubjectGift, errorCodeList, err)
	}
	defer rows.Close()

	gifts := make([]ledger.GiftDefinition, 0)
	for rows.Next() {
		gift, err := scanGift(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectGift, errorCodeInvalid, err)
		}
		gifts = append(gifts, gift)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectGift, errorCodeList, err)
	}
	return gifts, nil
}

func (store *Store) AppendTransaction(ctx context.Context, record ledger.TransactionRecord) (ledger.TransactionID, error) {
	var transactionIDValue string
	err := store.db.QueryRow(ctx, sqlInsertTransaction,
		record.BuyerAccountID.String(),
		record.StreamerID.String(),
		record.RoomID.String(),
		record.GiftID.String(),
		record.GiftName,
		record.UnitPrice.Int64(),
		record.Quantity.Int64(),
		record.TotalAmount.Int64(),
		record.Message.String(),
		record.IdempotencyKey.String(),
		record.CreatedUnixUTC,
	).Scan(&transactionIDValue)
	if isUniqueViolation(err, constraintTransactionIdempotent) {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	transactionID, err := ledger.NewTransactionID(transactionIDValue)
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactionID, nil
}

func (store *Store) FindTransactionByIdempotencyKey(ctx context.Context, buyerID ledger.AccountID, key ledger.IdempotencyKey) (ledger.Transaction, error) {
	transaction, err := scanTransaction(store.db.QueryRow(ctx, sqlSelectTransactionByKey, buyerID.String(), key.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeLookup, ledger.ErrUnknownTransaction)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	return transaction, nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlListTransactionsBefore, accountID.String(), beforeUnixUTC, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()

	transactions := make([]ledger.Transaction, 0, limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func (store *Store) AppendTopUp(ctx context.Context, record ledger.TopUpRecord) (ledger.TopUpID, error) {
	var topUpIDValue string
	err := store.db.QueryRow(ctx, sqlInsertTopUp,
		record.AccountID.String(),
		record.Tokens.Int64(),
		record.PaidAmount.String(),
		record.Currency,
		record.PaymentReference.String(),
		record.Metadata.String(),
		record.CreatedUnixUTC,
	).Scan(&topUpIDValue)
	if isUniqueViolation(err, constraintTopUpReference) {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeDuplicate, ledger.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeInsert, err)
	}
	topUpID, err := ledger.NewTopUpID(topUpIDValue)
	if err != nil {
		return ledger.TopUpID{}, wrapStoreError(errorSubjectTopUp, errorCodeInvalid, err)
	}
	return topUpID, nil
}

func (store *Store) FindTopUpByPaymentReference(ctx context.Context, reference ledger.IdempotencyKey) (ledger.TopUp, error) {
	var (
		topUpIDValue   string
		accountIDValue string
		tokens         int64
		paidAmount     string
		currency       string
		referenceValue string
		metadataValue  string
		createdUnixUTC int64
	)
	err := store.db.QueryRow(ctx, sqlSelectTopUpByReference, reference.String()).
		Scan(&topUpIDValue, &accountIDValue, &tokens, &paidAmount, &currency, &referenceValue, &metadataValue, &createdUnixUTC)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeLookup, ledger.ErrUnknownTopUp)
		}
		return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeLookup, err)
	}
	topUp, err := buildTopUp(topUpIDValue, accountIDValue, tokens, paidAmount, currency, referenceValue, metadataValue, createdUnixUTC)
	if err != nil {
		return ledger.TopUp{}, wrapStoreError(errorSubjectTopUp, errorCodeInvalid, err)
	}
	return topUp, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func scanGift(row pgx.Row) (ledger.GiftDefinition, error) {
	var (
		giftIDValue string
		name        string
		price       int64
		active      bool
	)
	if err := row.Scan(&giftIDValue, &name, &price, &active); err != nil {
		return ledger.GiftDefinition{}, err
	}
	giftID, err := ledger.NewGiftID(giftIDValue)
	if err != nil {
		return ledger.GiftDefinition{}, err
	}
	unitPrice, err := ledger.NewPositiveTokenAmount(price)
	if err != nil {
		return ledger.GiftDefinition{}, err
	}
	return ledger.NewGiftDefinition(giftID, name, unitPrice, active)
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var (
		transactionIDValue string
		buyerIDValue       string
		streamerIDValue    string
		roomIDValue        string
		giftIDValue        string
		giftName           string
		unitPriceValue     int64
		quantityValue      int64
		totalAmountValue   int64
		messageValue       string
		keyValue           string
		createdUnixUTC     int64
	)
	err := row.Scan(
		&transactionIDValue,
		&buyerIDValue,
		&streamerIDValue,
		&roomIDValue,
		&giftIDValue,
		&giftName,
		&unitPriceValue,
		&quantityValue,
		&totalAmountValue,
		&messageValue,
		&keyValue,
		&createdUnixUTC,
	)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transactionID, err := ledger.NewTransactionID(transactionIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	buyerID, err := ledger.NewAccountID(buyerIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	streamerID, err := ledger.NewStreamerID(streamerIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	roomID, err := ledger.NewRoomID(roomIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	giftID, err := ledger.NewGiftID(giftIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	unitPrice, err := ledger.NewPositiveTokenAmount(unitPriceValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	quantity, err := ledger.NewQuantity(quantityValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	totalAmount, err := ledger.NewPositiveTokenAmount(totalAmountValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	message, err := ledger.NewGiftMessage(messageValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	idempotencyKey, err := ledger.NewOptionalIdempotencyKey(keyValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID: transactionID,
		TransactionRecord: ledger.TransactionRecord{
			BuyerAccountID: buyerID,
			StreamerID:     streamerID,
			RoomID:         roomID,
			GiftID:         giftID,
			GiftName:       giftName,
			UnitPrice:      unitPrice,
			Quantity:       quantity,
			TotalAmount:    totalAmount,
			Message:        message,
			IdempotencyKey: idempotencyKey,
			CreatedUnixUTC: createdUnixUTC,
		},
	}, nil
}

func buildTopUp(topUpIDValue, accountIDValue string, tokens int64, paidAmount, currency, referenceValue, metadataValue string, createdUnixUTC int64) (ledger.TopUp, error) {
	topUpID, err := ledger.NewTopUpID(topUpIDValue)
	if err != nil {
		return ledger.TopUp{}, err
	}
	accountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.TopUp{}, err
	}
	positiveTokens, err := ledger.NewPositiveTokenAmount(tokens)
	if err != nil {
		return ledger.TopUp{}, err
	}
	amount, err := decimal.NewFromString(paidAmount)
	if err != nil {
		return ledger.TopUp{}, errors.Join(ledger.ErrInvalidPaidAmount, err)
	}
	reference, err := ledger.NewIdempotencyKey(referenceValue)
	if err != nil {
		return ledger.TopUp{}, err
	}
	metadata, err := ledger.NewMetadataJSON(metadataValue)
	if err != nil {
		return ledger.TopUp{}, err
	}
	return ledger.TopUp{
		ID: topUpID,
		TopUpRecord: ledger.TopUpRecord{
			AccountID:        accountID,
			Tokens:           positiveTokens,
			PaidAmount:       amount,
			Currency:         currency,
			PaymentReference: reference,
			Metadata:         metadata,
			CreatedUnixUTC:   createdUnixUTC,
		},
	}, nil
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
