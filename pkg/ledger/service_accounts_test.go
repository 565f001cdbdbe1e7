package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil store, got %v", err)
	}
	if _, err := NewService(newStubStore(test), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil clock, got %v", err)
	}
	if _, err := NewService(newStubStore(test), func() int64 { return 0 }, WithStartingGrant(-1)); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for negative grant, got %v", err)
	}
}

func TestOpenAccountAppliesStartingGrantOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithStartingGrant(100), WithOperationLogger(logger))
	accountID := mustAccountID(test, "newcomer")

	account, err := service.OpenAccount(context.Background(), accountID, mustDisplayName(test, "Newcomer"))
	if err != nil {
		test.Fatalf("open account: %v", err)
	}
	if account.TokenBalance != 100 || !account.Active {
		test.Fatalf("unexpected account: %+v", account)
	}
	if _, err := service.PurchaseGift(context.Background(), PurchaseRequest{BuyerID: accountID, RoomID: mustRoomID(test, "r"), GiftID: mustGiftID(test, "g"), Quantity: 1}); !errors.Is(err, ErrGiftNotFound) {
		test.Fatalf("expected ErrGiftNotFound, got %v", err)
	}

	reopened, err := service.OpenAccount(context.Background(), accountID, mustDisplayName(test, "Someone Else"))
	if err != nil {
		test.Fatalf("reopen account: %v", err)
	}
	if reopened.DisplayName.String() != "Newcomer" || reopened.TokenBalance != 100 {
		test.Fatalf("expected existing account, got %+v", reopened)
	}
	entries := logger.operations(OperationOpenAccount)
	if len(entries) != 2 || entries[0].Amount != 100 || entries[0].Status != OperationStatusOK {
		test.Fatalf("unexpected log entries: %+v", entries)
	}
}

func TestDeactivateAccountBlocksPurchases(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 500)
	service := mustNewService(test, fixture.store)

	if err := service.DeactivateAccount(context.Background(), fixture.buyerID); err != nil {
		test.Fatalf("deactivate: %v", err)
	}
	if _, err := service.PurchaseGift(context.Background(), fixture.request(1)); !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	balance, err := service.Balance(context.Background(), fixture.buyerID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance != 500 {
		test.Fatalf("expected balance kept at 500, got %d", balance)
	}
	if err := service.DeactivateAccount(context.Background(), mustAccountID(test, "ghost")); !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRegisterStreamerAndRoomLifecycle(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, WithStartingGrant(300))
	ctx := context.Background()
	ownerID := mustAccountID(test, "owner")
	viewerID := mustAccountID(test, "viewer")
	streamerID := mustStreamerID(test, "streamer")
	roomID := mustRoomID(test, "room")
	giftID := mustGiftID(test, "heart")

	if _, err := service.RegisterStreamer(ctx, streamerID, ownerID); !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound for unknown owner, got %v", err)
	}
	if _, err := service.OpenRoom(ctx, roomID, streamerID); !errors.Is(err, ErrStreamerNotFound) {
		test.Fatalf("expected ErrStreamerNotFound, got %v", err)
	}
	for _, accountID := range []AccountID{ownerID, viewerID} {
		if _, err := service.OpenAccount(ctx, accountID, mustDisplayName(test, accountID.String())); err != nil {
			test.Fatalf("open account: %v", err)
		}
	}
	if _, err := service.RegisterStreamer(ctx, streamerID, ownerID); err != nil {
		test.Fatalf("register streamer: %v", err)
	}
	if _, err := service.RegisterStreamer(ctx, streamerID, ownerID); !errors.Is(err, ErrStreamerExists) {
		test.Fatalf("expected ErrStreamerExists, got %v", err)
	}
	room, err := service.OpenRoom(ctx, roomID, streamerID)
	if err != nil {
		test.Fatalf("open room: %v", err)
	}
	if room.Status != RoomStatusLive {
		test.Fatalf("expected live room, got %s", room.Status)
	}
	gift, err := NewGiftDefinition(giftID, "Heart", 25, true)
	if err != nil {
		test.Fatalf("gift definition: %v", err)
	}
	if err := service.UpsertGift(ctx, gift); err != nil {
		test.Fatalf("upsert gift: %v", err)
	}
	if _, err := service.PurchaseGift(ctx, PurchaseRequest{BuyerID: viewerID, RoomID: roomID, GiftID: giftID, Quantity: 4}); err != nil {
		test.Fatalf("purchase: %v", err)
	}

	earnings, err := service.StreamerEarnings(ctx, streamerID)
	if err != nil {
		test.Fatalf("streamer earnings: %v", err)
	}
	if earnings.TotalEarnings != 100 || earnings.AccountID != ownerID {
		test.Fatalf("unexpected earnings: %+v", earnings)
	}
	if err := service.CloseRoom(ctx, roomID); err != nil {
		test.Fatalf("close room: %v", err)
	}
	closed, err := service.Room(ctx, roomID)
	if err != nil {
		test.Fatalf("room: %v", err)
	}
	if closed.Status != RoomStatusClosed || closed.TotalTips != 100 {
		test.Fatalf("unexpected closed room: %+v", closed)
	}
	if _, err := service.PurchaseGift(ctx, PurchaseRequest{BuyerID: viewerID, RoomID: roomID, GiftID: giftID, Quantity: 1}); !errors.Is(err, ErrRoomNotFound) {
		test.Fatalf("expected ErrRoomNotFound for closed room, got %v", err)
	}
}

func TestCatalogFiltersInactiveGifts(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 0)
	service := mustNewService(test, fixture.store)

	active, err := service.Catalog(context.Background(), true)
	if err != nil {
		test.Fatalf("catalog: %v", err)
	}
	if len(active) != 1 || active[0].ID != fixture.roseID {
		test.Fatalf("expected only the active gift, got %+v", active)
	}
	all, err := service.Catalog(context.Background(), false)
	if err != nil {
		test.Fatalf("catalog: %v", err)
	}
	if len(all) != 2 {
		test.Fatalf("expected 2 gifts, got %d", len(all))
	}
}

func TestListTransactionsNormalizesLimit(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 500)
	service := mustNewService(test, fixture.store)
	for index := 0; index < 3; index++ {
		if _, err := service.PurchaseGift(context.Background(), fixture.request(1)); err != nil {
			test.Fatalf("purchase: %v", err)
		}
	}

	transactions, err := service.ListTransactions(context.Background(), fixture.buyerID, 0, 0)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(transactions) != 3 {
		test.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	limited, err := service.ListTransactions(context.Background(), fixture.buyerID, 0, 2)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != transactions[0].ID {
		test.Fatalf("expected newest two transactions, got %+v", limited)
	}
	if _, err := service.ListTransactions(context.Background(), fixture.buyerID, 0, maxListLimit+1); !errors.Is(err, ErrInvalidListLimit) {
		test.Fatalf("expected ErrInvalidListLimit, got %v", err)
	}
}

func TestTopUpCreditsAndReplays(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 20)
	logger := &recorderLogger{}
	service := mustNewService(test, fixture.store, WithOperationLogger(logger))
	request := TopUpRequest{
		AccountID:        fixture.buyerID,
		Tokens:           500,
		PaidAmount:       decimal.RequireFromString("50.00"),
		Currency:         "USD",
		PaymentReference: mustIdempotencyKey(test, "pay-1"),
	}

	receipt, err := service.TopUp(context.Background(), request)
	if err != nil {
		test.Fatalf("top up: %v", err)
	}
	if receipt.BalanceAfter != 520 || receipt.Replayed {
		test.Fatalf("unexpected receipt: %+v", receipt)
	}
	replayed, err := service.TopUp(context.Background(), request)
	if err != nil {
		test.Fatalf("replayed top up: %v", err)
	}
	if !replayed.Replayed || replayed.TopUpID != receipt.TopUpID || replayed.BalanceAfter != 520 {
		test.Fatalf("expected replay, got %+v", replayed)
	}
	if len(fixture.store.state.topUps) != 1 {
		test.Fatalf("expected a single top-up record, got %d", len(fixture.store.state.topUps))
	}
	stored := fixture.store.state.topUps[0]
	if !stored.PaidAmount.Equal(decimal.RequireFromString("50")) || stored.Currency != "USD" {
		test.Fatalf("unexpected stored top-up: %+v", stored)
	}

	mismatched := request
	mismatched.Tokens = 600
	if _, err := service.TopUp(context.Background(), mismatched); !errors.Is(err, ErrIdempotencyKeyMismatch) {
		test.Fatalf("expected ErrIdempotencyKeyMismatch, got %v", err)
	}
	entries := logger.operations(OperationTopUp)
	if len(entries) != 3 || entries[1].Status != OperationStatusReplayed || entries[2].Status != OperationStatusError {
		test.Fatalf("unexpected log entries: %+v", entries)
	}
}

func TestTopUpValidatesRequest(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 0)
	service := mustNewService(test, fixture.store)
	valid := TopUpRequest{
		AccountID:        fixture.buyerID,
		Tokens:           10,
		PaidAmount:       decimal.RequireFromString("1.00"),
		Currency:         "USD",
		PaymentReference: mustIdempotencyKey(test, "pay-validate"),
	}
	testCases := []struct {
		name   string
		mutate func(request *TopUpRequest)
		want   error
	}{
		{name: "negative paid amount", mutate: func(request *TopUpRequest) { request.PaidAmount = decimal.RequireFromString("-1") }, want: ErrInvalidPaidAmount},
		{name: "missing reference", mutate: func(request *TopUpRequest) { request.PaymentReference = IdempotencyKey{} }, want: ErrInvalidIdempotencyKey},
		{name: "zero tokens", mutate: func(request *TopUpRequest) { request.Tokens = 0 }, want: ErrInvalidTokenAmount},
		{name: "unknown account", mutate: func(request *TopUpRequest) { request.AccountID = AccountID{value: "ghost"} }, want: ErrAccountNotFound},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			request := valid
			testCase.mutate(&request)
			if _, err := service.TopUp(context.Background(), request); !errors.Is(err, testCase.want) {
				test.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
}

func TestTopUpRollsBackOnAppendFailure(test *testing.T) {
	test.Parallel()
	fixture := newGiftFixture(test, 40)
	fixture.store.failOn("AppendTopUp", errDiskFull)
	service := mustNewService(test, fixture.store)

	_, err := service.TopUp(context.Background(), TopUpRequest{
		AccountID:        fixture.buyerID,
		Tokens:           60,
		PaidAmount:       decimal.RequireFromString("6"),
		Currency:         "USD",
		PaymentReference: mustIdempotencyKey(test, "pay-fail"),
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		test.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if balance := fixture.store.account(test, fixture.buyerID).TokenBalance; balance != 40 {
		test.Fatalf("expected balance 40 after rollback, got %d", balance)
	}
}
