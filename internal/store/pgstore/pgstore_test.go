package pgstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresURLEnv = "GIFTLEDGER_TEST_POSTGRES_URL"

func openTestStore(test *testing.T) *Store {
	test.Helper()
	databaseURL := os.Getenv(postgresURLEnv)
	if databaseURL == "" {
		test.Skipf("%s not set", postgresURLEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		test.Fatalf("connect: %v", err)
	}
	test.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return New(pool)
}

// uniqueName keeps parallel runs against a shared database apart.
func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func TestIsUniqueViolationIgnoresOtherErrors(test *testing.T) {
	test.Parallel()
	if isUniqueViolation(nil, constraintAccountsPrimary) {
		test.Fatalf("nil reported as unique violation")
	}
	if isUniqueViolation(errors.New("boom"), constraintAccountsPrimary) {
		test.Fatalf("plain error reported as unique violation")
	}
}

func TestPostgresPurchaseGiftConcurrency(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	service, err := ledger.NewService(store, func() int64 { return 1700000000 }, ledger.WithStartingGrant(1000))
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	buyerID, _ := ledger.NewAccountID(uniqueName("viewer"))
	ownerID, _ := ledger.NewAccountID(uniqueName("owner"))
	streamerID, _ := ledger.NewStreamerID(uniqueName("streamer"))
	roomID, _ := ledger.NewRoomID(uniqueName("room"))
	giftID, _ := ledger.NewGiftID(uniqueName("rose"))
	displayName, _ := ledger.NewDisplayName("Viewer")

	for _, accountID := range []ledger.AccountID{buyerID, ownerID} {
		if _, err := service.OpenAccount(ctx, accountID, displayName); err != nil {
			test.Fatalf("open account: %v", err)
		}
	}
	if _, err := service.RegisterStreamer(ctx, streamerID, ownerID); err != nil {
		test.Fatalf("register streamer: %v", err)
	}
	if _, err := service.OpenRoom(ctx, roomID, streamerID); err != nil {
		test.Fatalf("open room: %v", err)
	}
	gift, err := ledger.NewGiftDefinition(giftID, "Rose", 100, true)
	if err != nil {
		test.Fatalf("gift: %v", err)
	}
	if err := service.UpsertGift(ctx, gift); err != nil {
		test.Fatalf("upsert gift: %v", err)
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		succeeded int
	)
	for index := 0; index < 25; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := service.PurchaseGift(ctx, ledger.PurchaseRequest{BuyerID: buyerID, RoomID: roomID, GiftID: giftID, Quantity: 1})
			if err != nil && !errors.Is(err, ledger.ErrInsufficientFunds) {
				test.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mutex.Lock()
				succeeded++
				mutex.Unlock()
			}
		}()
	}
	waitGroup.Wait()

	if succeeded != 10 {
		test.Fatalf("expected 10 purchases, got %d", succeeded)
	}
	balance, err := service.Balance(ctx, buyerID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		test.Fatalf("expected balance 0, got %d", balance)
	}
	streamer, err := store.GetStreamer(ctx, streamerID)
	if err != nil {
		test.Fatalf("streamer: %v", err)
	}
	room, err := store.GetRoom(ctx, roomID)
	if err != nil {
		test.Fatalf("room: %v", err)
	}
	if streamer.TotalEarnings != 1000 || room.TotalTips != 1000 {
		test.Fatalf("conservation violated: earnings=%d tips=%d", streamer.TotalEarnings, room.TotalTips)
	}
}

func TestPostgresIdempotentTopUp(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	service, err := ledger.NewService(store, func() int64 { return 1700000000 })
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	accountID, _ := ledger.NewAccountID(uniqueName("payer"))
	displayName, _ := ledger.NewDisplayName("Payer")
	if _, err := service.OpenAccount(ctx, accountID, displayName); err != nil {
		test.Fatalf("open account: %v", err)
	}
	reference, _ := ledger.NewIdempotencyKey(uniqueName("payment"))
	request := ledger.TopUpRequest{AccountID: accountID, Tokens: 40, Currency: "USD", PaymentReference: reference}

	first, err := service.TopUp(ctx, request)
	if err != nil {
		test.Fatalf("top up: %v", err)
	}
	second, err := service.TopUp(ctx, request)
	if err != nil {
		test.Fatalf("replayed top up: %v", err)
	}
	if !second.Replayed || second.TopUpID != first.TopUpID || second.BalanceAfter != 40 {
		test.Fatalf("unexpected replay: %+v", second)
	}
}
