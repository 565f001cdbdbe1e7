package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultPublishTimeout = 2 * time.Second

// Service contains the domain logic over a Store.
type Service struct {
	store          Store
	nowFn          func() int64
	logger         OperationLogger
	events         EventSink
	startingGrant  TokenAmount
	publishTimeout time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, publishTimeout: defaultPublishTimeout}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.startingGrant < 0 {
		return nil, fmt.Errorf("%w: starting grant is negative", ErrInvalidServiceConfig)
	}
	return service, nil
}

// PurchaseGift moves price × quantity tokens from the buyer to the room's streamer.
//
// Every precondition is evaluated against state read inside the transaction, and the
// debit itself is conditional on the balance, so concurrent purchases by the same buyer
// can never overdraw. The gift-received event is published only after commit.
func (service *Service) PurchaseGift(ctx context.Context, request PurchaseRequest) (PurchaseReceipt, error) {
	var (
		receipt PurchaseReceipt
		event   GiftReceivedEvent
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if !request.IdempotencyKey.IsZero() {
			existing, err := transactionStore.FindTransactionByIdempotencyKey(ctx, request.BuyerID, request.IdempotencyKey)
			if err == nil {
				receipt, err = replayReceipt(ctx, transactionStore, request, existing)
				return err
			}
			if !errors.Is(err, ErrUnknownTransaction) {
				return err
			}
		}
		gift, err := transactionStore.GetActiveGift(ctx, request.GiftID)
		if err != nil {
			return err
		}
		quantity, err := NewQuantity(request.Quantity)
		if err != nil {
			return err
		}
		totalAmount, err := TotalPrice(gift.Price, quantity)
		if err != nil {
			return err
		}
		buyer, err := transactionStore.GetAccount(ctx, request.BuyerID)
		if err != nil {
			return err
		}
		if !buyer.Active {
			return fmt.Errorf("%w: account is deactivated", ErrAccountNotFound)
		}
		if buyer.TokenBalance.Int64() < totalAmount.Int64() {
			return ErrInsufficientFunds
		}
		streamerID, err := transactionStore.GetRoomOwner(ctx, request.RoomID)
		if err != nil {
			return err
		}
		if err := transactionStore.Debit(ctx, request.BuyerID, totalAmount); err != nil {
			return err
		}
		if err := transactionStore.CreditEarnings(ctx, streamerID, totalAmount); err != nil {
			return err
		}
		if err := transactionStore.AddTip(ctx, request.RoomID, totalAmount); err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		transactionID, err := transactionStore.AppendTransaction(ctx, TransactionRecord{
			BuyerAccountID: request.BuyerID,
			StreamerID:     streamerID,
			RoomID:         request.RoomID,
			GiftID:         gift.ID,
			GiftName:       gift.Name,
			UnitPrice:      gift.Price,
			Quantity:       quantity,
			TotalAmount:    totalAmount,
			Message:        request.Message,
			IdempotencyKey: request.IdempotencyKey,
			CreatedUnixUTC: nowUnixUTC,
		})
		if err != nil {
			return err
		}
		debited, err := transactionStore.GetAccount(ctx, request.BuyerID)
		if err != nil {
			return err
		}
		if debited.TokenBalance < 0 {
			return WrapError(errorOperationService, "balance", "negative_balance", ErrInsufficientFunds)
		}
		receipt = PurchaseReceipt{
			TransactionID: transactionID,
			GiftName:      gift.Name,
			Quantity:      quantity,
			TotalAmount:   totalAmount,
			BalanceAfter:  debited.TokenBalance,
		}
		event = GiftReceivedEvent{
			EventType:        EventTypeGiftReceived,
			TransactionID:    transactionID.String(),
			RoomID:           request.RoomID.String(),
			BuyerDisplayName: buyer.DisplayName.String(),
			GiftName:         gift.Name,
			Quantity:         quantity.Int64(),
			TotalAmount:      totalAmount.Int64(),
			Message:          request.Message.String(),
			TimestampUnixUTC: nowUnixUTC,
		}
		return nil
	})
	if errors.Is(operationError, ErrDuplicateIdempotencyKey) && !request.IdempotencyKey.IsZero() {
		receipt, operationError = service.replayPurchase(ctx, request)
	}
	operationError = classifyError(operationError)
	status := ""
	if operationError == nil && receipt.Replayed {
		status = OperationStatusReplayed
	}
	service.logOperation(ctx, OperationLog{
		Operation:      OperationPurchaseGift,
		AccountID:      request.BuyerID,
		RoomID:         request.RoomID,
		GiftID:         request.GiftID,
		TransactionID:  receipt.TransactionID,
		Amount:         receipt.TotalAmount.ToTokenAmount(),
		IdempotencyKey: request.IdempotencyKey,
		Status:         status,
		Error:          operationError,
	})
	if operationError != nil {
		return PurchaseReceipt{}, operationError
	}
	if !receipt.Replayed {
		service.publish(ctx, event)
	}
	return receipt, nil
}

// replayPurchase resolves a purchase whose idempotency key was committed by a concurrent request.
func (service *Service) replayPurchase(ctx context.Context, request PurchaseRequest) (PurchaseReceipt, error) {
	existing, err := service.store.FindTransactionByIdempotencyKey(ctx, request.BuyerID, request.IdempotencyKey)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	return replayReceipt(ctx, service.store, request, existing)
}

func replayReceipt(ctx context.Context, store Store, request PurchaseRequest, existing Transaction) (PurchaseReceipt, error) {
	if existing.RoomID != request.RoomID || existing.GiftID != request.GiftID || existing.Quantity.Int64() != request.Quantity {
		return PurchaseReceipt{}, ErrIdempotencyKeyMismatch
	}
	buyer, err := store.GetAccount(ctx, request.BuyerID)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	return PurchaseReceipt{
		TransactionID: existing.ID,
		GiftName:      existing.GiftName,
		Quantity:      existing.Quantity,
		TotalAmount:   existing.TotalAmount,
		BalanceAfter:  buyer.TokenBalance,
		Replayed:      true,
	}, nil
}

// TopUp credits purchased tokens and records the payment as its own ledger record.
// The payment reference deduplicates repeated payment callbacks.
func (service *Service) TopUp(ctx context.Context, request TopUpRequest) (TopUpReceipt, error) {
	if request.PaidAmount.IsNegative() {
		return TopUpReceipt{}, fmt.Errorf("%w: must not be negative", ErrInvalidPaidAmount)
	}
	if request.PaymentReference.IsZero() {
		return TopUpReceipt{}, fmt.Errorf("%w: payment reference is required", ErrInvalidIdempotencyKey)
	}
	if request.Tokens <= 0 {
		return TopUpReceipt{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidTokenAmount)
	}
	var receipt TopUpReceipt
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.FindTopUpByPaymentReference(ctx, request.PaymentReference)
		if err == nil {
			receipt, err = replayTopUp(ctx, transactionStore, request, existing)
			return err
		}
		if !errors.Is(err, ErrUnknownTopUp) {
			return err
		}
		account, err := transactionStore.GetAccount(ctx, request.AccountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return fmt.Errorf("%w: account is deactivated", ErrAccountNotFound)
		}
		if err := transactionStore.Credit(ctx, request.AccountID, request.Tokens); err != nil {
			return err
		}
		topUpID, err := transactionStore.AppendTopUp(ctx, TopUpRecord{
			AccountID:        request.AccountID,
			Tokens:           request.Tokens,
			PaidAmount:       request.PaidAmount,
			Currency:         request.Currency,
			PaymentReference: request.PaymentReference,
			Metadata:         request.Metadata,
			CreatedUnixUTC:   service.nowFn(),
		})
		if err != nil {
			return err
		}
		credited, err := transactionStore.GetAccount(ctx, request.AccountID)
		if err != nil {
			return err
		}
		receipt = TopUpReceipt{TopUpID: topUpID, Tokens: request.Tokens, BalanceAfter: credited.TokenBalance}
		return nil
	})
	if errors.Is(operationError, ErrDuplicateIdempotencyKey) {
		var existing TopUp
		existing, operationError = service.store.FindTopUpByPaymentReference(ctx, request.PaymentReference)
		if operationError == nil {
			receipt, operationError = replayTopUp(ctx, service.store, request, existing)
		}
	}
	operationError = classifyError(operationError)
	status := ""
	if operationError == nil && receipt.Replayed {
		status = OperationStatusReplayed
	}
	service.logOperation(ctx, OperationLog{
		Operation:      OperationTopUp,
		AccountID:      request.AccountID,
		Amount:         request.Tokens.ToTokenAmount(),
		IdempotencyKey: request.PaymentReference,
		Status:         status,
		Error:          operationError,
	})
	if operationError != nil {
		return TopUpReceipt{}, operationError
	}
	return receipt, nil
}

func replayTopUp(ctx context.Context, store Store, request TopUpRequest, existing TopUp) (TopUpReceipt, error) {
	if existing.AccountID != request.AccountID || existing.Tokens != request.Tokens {
		return TopUpReceipt{}, ErrIdempotencyKeyMismatch
	}
	account, err := store.GetAccount(ctx, request.AccountID)
	if err != nil {
		return TopUpReceipt{}, err
	}
	return TopUpReceipt{TopUpID: existing.ID, Tokens: existing.Tokens, BalanceAfter: account.TokenBalance, Replayed: true}, nil
}

// OpenAccount creates an account with the starting grant; an existing account is returned unchanged.
func (service *Service) OpenAccount(ctx context.Context, accountID AccountID, displayName DisplayName) (Account, error) {
	var account Account
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.GetAccount(ctx, accountID)
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		account = Account{ID: accountID, DisplayName: displayName, TokenBalance: service.startingGrant, Active: true}
		return transactionStore.CreateAccount(ctx, account)
	})
	if errors.Is(operationError, ErrAccountExists) {
		account, operationError = service.store.GetAccount(ctx, accountID)
	}
	operationError = classifyError(operationError)
	service.logOperation(ctx, OperationLog{
		Operation: OperationOpenAccount,
		AccountID: accountID,
		Amount:    account.TokenBalance,
		Error:     operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

// DeactivateAccount blocks further purchases and top-ups; balances are kept.
func (service *Service) DeactivateAccount(ctx context.Context, accountID AccountID) error {
	operationError := classifyError(service.store.DeactivateAccount(ctx, accountID))
	service.logOperation(ctx, OperationLog{
		Operation: OperationDeactivateAccount,
		AccountID: accountID,
		Error:     operationError,
	})
	return operationError
}

// Balance returns the account's spendable tokens.
func (service *Service) Balance(ctx context.Context, accountID AccountID) (TokenAmount, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, classifyError(err)
	}
	return account.TokenBalance, nil
}

// Account returns the full account view.
func (service *Service) Account(ctx context.Context, accountID AccountID) (Account, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, classifyError(err)
	}
	return account, nil
}

// RegisterStreamer links a streamer earnings account to an existing viewer account.
func (service *Service) RegisterStreamer(ctx context.Context, streamerID StreamerID, accountID AccountID) (StreamerAccount, error) {
	streamer := StreamerAccount{ID: streamerID, AccountID: accountID}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetAccount(ctx, accountID); err != nil {
			return err
		}
		return transactionStore.CreateStreamer(ctx, streamer)
	})
	operationError = classifyError(operationError)
	service.logOperation(ctx, OperationLog{
		Operation:  OperationRegisterStreamer,
		AccountID:  accountID,
		StreamerID: streamerID,
		Error:      operationError,
	})
	if operationError != nil {
		return StreamerAccount{}, operationError
	}
	return streamer, nil
}

// StreamerEarnings returns the streamer's accumulated earnings.
func (service *Service) StreamerEarnings(ctx context.Context, streamerID StreamerID) (StreamerAccount, error) {
	streamer, err := service.store.GetStreamer(ctx, streamerID)
	if err != nil {
		return StreamerAccount{}, classifyError(err)
	}
	return streamer, nil
}

// OpenRoom marks a streamer as live in a new room.
func (service *Service) OpenRoom(ctx context.Context, roomID RoomID, streamerID StreamerID) (Room, error) {
	room := Room{ID: roomID, StreamerID: streamerID, Status: RoomStatusLive}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetStreamer(ctx, streamerID); err != nil {
			return err
		}
		return transactionStore.CreateRoom(ctx, room)
	})
	operationError = classifyError(operationError)
	service.logOperation(ctx, OperationLog{
		Operation:  OperationOpenRoom,
		RoomID:     roomID,
		StreamerID: streamerID,
		Error:      operationError,
	})
	if operationError != nil {
		return Room{}, operationError
	}
	return room, nil
}

// CloseRoom archives a room; later purchases against it fail with ErrRoomNotFound.
func (service *Service) CloseRoom(ctx context.Context, roomID RoomID) error {
	operationError := classifyError(service.store.CloseRoom(ctx, roomID))
	service.logOperation(ctx, OperationLog{
		Operation: OperationCloseRoom,
		RoomID:    roomID,
		Error:     operationError,
	})
	return operationError
}

// Room returns a room aggregate, live or closed.
func (service *Service) Room(ctx context.Context, roomID RoomID) (Room, error) {
	room, err := service.store.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, classifyError(err)
	}
	return room, nil
}

// Catalog lists gift definitions.
func (service *Service) Catalog(ctx context.Context, activeOnly bool) ([]GiftDefinition, error) {
	gifts, err := service.store.ListGifts(ctx, activeOnly)
	if err != nil {
		return nil, classifyError(err)
	}
	return gifts, nil
}

// UpsertGift creates or replaces a catalog entry.
func (service *Service) UpsertGift(ctx context.Context, gift GiftDefinition) error {
	operationError := classifyError(service.store.UpsertGift(ctx, gift))
	service.logOperation(ctx, OperationLog{
		Operation: OperationUpsertGift,
		GiftID:    gift.ID,
		Amount:    gift.Price.ToTokenAmount(),
		Error:     operationError,
	})
	return operationError
}

// ListTransactions lists an account's gift purchases before a cutoff time, newest first.
func (service *Service) ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	normalizedLimit, err := NormalizeListLimit(limit)
	if err != nil {
		return nil, err
	}
	if beforeUnixUTC <= 0 {
		beforeUnixUTC = service.nowFn() + 1
	}
	transactions, err := service.store.ListTransactions(ctx, accountID, beforeUnixUTC, normalizedLimit)
	if err != nil {
		return nil, classifyError(err)
	}
	return transactions, nil
}

// NormalizeListLimit applies the default and rejects limits above the maximum.
func NormalizeListLimit(limit int) (int, error) {
	if limit <= 0 {
		return defaultListLimit, nil
	}
	if limit > maxListLimit {
		return 0, fmt.Errorf("%w: %d > %d", ErrInvalidListLimit, limit, maxListLimit)
	}
	return limit, nil
}

func (service *Service) publish(ctx context.Context, event GiftReceivedEvent) {
	if service.events == nil {
		return
	}
	publishContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.publishTimeout)
	defer cancel()
	if err := service.events.Publish(publishContext, event); err != nil {
		roomID, _ := NewRoomID(event.RoomID)
		transactionID, _ := NewTransactionID(event.TransactionID)
		service.logOperation(ctx, OperationLog{
			Operation:     OperationPublishEvent,
			RoomID:        roomID,
			TransactionID: transactionID,
			Amount:        TokenAmount(event.TotalAmount),
			Error:         err,
		})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = OperationStatusError
		} else {
			entry.Status = OperationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
