package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
)

// memoryState is the full dataset held by stubStore; transactions work on a clone.
type memoryState struct {
	accounts     map[AccountID]Account
	streamers    map[StreamerID]StreamerAccount
	rooms        map[RoomID]Room
	gifts        map[GiftID]GiftDefinition
	transactions []Transaction
	topUps       []TopUp
	sequence     int
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts:  make(map[AccountID]Account),
		streamers: make(map[StreamerID]StreamerAccount),
		rooms:     make(map[RoomID]Room),
		gifts:     make(map[GiftID]GiftDefinition),
	}
}

func (state *memoryState) clone() *memoryState {
	cloned := newMemoryState()
	for key, value := range state.accounts {
		cloned.accounts[key] = value
	}
	for key, value := range state.streamers {
		cloned.streamers[key] = value
	}
	for key, value := range state.rooms {
		cloned.rooms[key] = value
	}
	for key, value := range state.gifts {
		cloned.gifts[key] = value
	}
	cloned.transactions = append([]Transaction(nil), state.transactions...)
	cloned.topUps = append([]TopUp(nil), state.topUps...)
	cloned.sequence = state.sequence
	return cloned
}

// stubStore is a serializing in-memory Store. WithTx holds the lock for the
// whole closure and only publishes the cloned state when the closure succeeds.
type stubStore struct {
	guard    *sync.Mutex
	state    *memoryState
	root     *stubStore
	failures map[string]error
	// findMisses makes the next N idempotency lookups miss, simulating a concurrent writer.
	findMisses int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{guard: &sync.Mutex{}, state: newMemoryState(), failures: make(map[string]error)}
}

func (store *stubStore) lock() func() {
	if store.guard == nil {
		return func() {}
	}
	store.guard.Lock()
	return store.guard.Unlock
}

func (store *stubStore) fail(method string) error {
	root := store
	if store.root != nil {
		root = store.root
	}
	return root.failures[method]
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.guard == nil {
		return fn(ctx, store)
	}
	defer store.lock()()
	if err := store.failures["WithTx"]; err != nil {
		return err
	}
	transactionStore := &stubStore{state: store.state.clone(), root: store}
	if err := fn(ctx, transactionStore); err != nil {
		return err
	}
	store.state = transactionStore.state
	return nil
}

func (store *stubStore) CreateAccount(ctx context.Context, account Account) error {
	defer store.lock()()
	if err := store.fail("CreateAccount"); err != nil {
		return err
	}
	if _, exists := store.state.accounts[account.ID]; exists {
		return ErrAccountExists
	}
	store.state.accounts[account.ID] = account
	return nil
}

func (store *stubStore) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	defer store.lock()()
	if err := store.fail("GetAccount"); err != nil {
		return Account{}, err
	}
	account, ok := store.state.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (store *stubStore) Debit(ctx context.Context, accountID AccountID, amount PositiveTokenAmount) error {
	defer store.lock()()
	if err := store.fail("Debit"); err != nil {
		return err
	}
	account, ok := store.state.accounts[accountID]
	if !ok || !account.Active {
		return ErrAccountNotFound
	}
	if account.TokenBalance.Int64() < amount.Int64() {
		return ErrInsufficientFunds
	}
	account.TokenBalance -= amount.ToTokenAmount()
	store.state.accounts[accountID] = account
	return nil
}

func (store *stubStore) Credit(ctx context.Context, accountID AccountID, amount PositiveTokenAmount) error {
	defer store.lock()()
	if err := store.fail("Credit"); err != nil {
		return err
	}
	account, ok := store.state.accounts[accountID]
	if !ok || !account.Active {
		return ErrAccountNotFound
	}
	account.TokenBalance += amount.ToTokenAmount()
	store.state.accounts[accountID] = account
	return nil
}

func (store *stubStore) DeactivateAccount(ctx context.Context, accountID AccountID) error {
	defer store.lock()()
	account, ok := store.state.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Active = false
	store.state.accounts[accountID] = account
	return nil
}

func (store *stubStore) CreateStreamer(ctx context.Context, streamer StreamerAccount) error {
	defer store.lock()()
	if _, exists := store.state.streamers[streamer.ID]; exists {
		return ErrStreamerExists
	}
	store.state.streamers[streamer.ID] = streamer
	return nil
}

func (store *stubStore) GetStreamer(ctx context.Context, streamerID StreamerID) (StreamerAccount, error) {
	defer store.lock()()
	streamer, ok := store.state.streamers[streamerID]
	if !ok {
		return StreamerAccount{}, ErrStreamerNotFound
	}
	return streamer, nil
}

func (store *stubStore) CreditEarnings(ctx context.Context, streamerID StreamerID, amount PositiveTokenAmount) error {
	defer store.lock()()
	if err := store.fail("CreditEarnings"); err != nil {
		return err
	}
	streamer, ok := store.state.streamers[streamerID]
	if !ok {
		return ErrRoomNotFound
	}
	streamer.TotalEarnings += amount.ToTokenAmount()
	store.state.streamers[streamerID] = streamer
	return nil
}

func (store *stubStore) CreateRoom(ctx context.Context, room Room) error {
	defer store.lock()()
	if _, exists := store.state.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	store.state.rooms[room.ID] = room
	return nil
}

func (store *stubStore) GetRoom(ctx context.Context, roomID RoomID) (Room, error) {
	defer store.lock()()
	room, ok := store.state.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (store *stubStore) GetRoomOwner(ctx context.Context, roomID RoomID) (StreamerID, error) {
	defer store.lock()()
	room, ok := store.state.rooms[roomID]
	if !ok || room.Status != RoomStatusLive {
		return StreamerID{}, ErrRoomNotFound
	}
	return room.StreamerID, nil
}

func (store *stubStore) AddTip(ctx context.Context, roomID RoomID, amount PositiveTokenAmount) error {
	defer store.lock()()
	if err := store.fail("AddTip"); err != nil {
		return err
	}
	room, ok := store.state.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.TotalTips += amount.ToTokenAmount()
	store.state.rooms[roomID] = room
	return nil
}

func (store *stubStore) CloseRoom(ctx context.Context, roomID RoomID) error {
	defer store.lock()()
	room, ok := store.state.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Status = RoomStatusClosed
	store.state.rooms[roomID] = room
	return nil
}

func (store *stubStore) UpsertGift(ctx context.Context, gift GiftDefinition) error {
	defer store.lock()()
	store.state.gifts[gift.ID] = gift
	return nil
}

func (store *stubStore) GetActiveGift(ctx context.Context, giftID GiftID) (GiftDefinition, error) {
	defer store.lock()()
	if err := store.fail("GetActiveGift"); err != nil {
		return GiftDefinition{}, err
	}
	gift, ok := store.state.gifts[giftID]
	if !ok || !gift.Active {
		return GiftDefinition{}, ErrGiftNotFound
	}
	return gift, nil
}

func (store *stubStore) ListGifts(ctx context.Context, activeOnly bool) ([]GiftDefinition, error) {
	defer store.lock()()
	gifts := make([]GiftDefinition, 0, len(store.state.gifts))
	for _, gift := range store.state.gifts {
		if activeOnly && !gift.Active {
			continue
		}
		gifts = append(gifts, gift)
	}
	sort.Slice(gifts, func(left, right int) bool {
		return gifts[left].Price < gifts[right].Price
	})
	return gifts, nil
}

func (store *stubStore) AppendTransaction(ctx context.Context, record TransactionRecord) (TransactionID, error) {
	defer store.lock()()
	if err := store.fail("AppendTransaction"); err != nil {
		return TransactionID{}, err
	}
	if !record.IdempotencyKey.IsZero() {
		for _, existing := range store.state.transactions {
			if existing.BuyerAccountID == record.BuyerAccountID && existing.IdempotencyKey == record.IdempotencyKey {
				return TransactionID{}, ErrDuplicateIdempotencyKey
			}
		}
	}
	store.state.sequence++
	transactionID := TransactionID{value: fmt.Sprintf("tx-%d", store.state.sequence)}
	store.state.transactions = append(store.state.transactions, Transaction{ID: transactionID, TransactionRecord: record})
	return transactionID, nil
}

func (store *stubStore) FindTransactionByIdempotencyKey(ctx context.Context, buyerID AccountID, key IdempotencyKey) (Transaction, error) {
	defer store.lock()()
	root := store
	if store.root != nil {
		root = store.root
	}
	if root.findMisses > 0 {
		root.findMisses--
		return Transaction{}, ErrUnknownTransaction
	}
	for _, existing := range store.state.transactions {
		if existing.BuyerAccountID == buyerID && existing.IdempotencyKey == key {
			return existing, nil
		}
	}
	return Transaction{}, ErrUnknownTransaction
}

func (store *stubStore) ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	defer store.lock()()
	result := make([]Transaction, 0)
	for index := len(store.state.transactions) - 1; index >= 0 && len(result) < limit; index-- {
		existing := store.state.transactions[index]
		if existing.BuyerAccountID == accountID && existing.CreatedUnixUTC < beforeUnixUTC {
			result = append(result, existing)
		}
	}
	return result, nil
}

func (store *stubStore) AppendTopUp(ctx context.Context, record TopUpRecord) (TopUpID, error) {
	defer store.lock()()
	if err := store.fail("AppendTopUp"); err != nil {
		return TopUpID{}, err
	}
	for _, existing := range store.state.topUps {
		if existing.PaymentReference == record.PaymentReference {
			return TopUpID{}, ErrDuplicateIdempotencyKey
		}
	}
	store.state.sequence++
	topUpID := TopUpID{value: fmt.Sprintf("topup-%d", store.state.sequence)}
	store.state.topUps = append(store.state.topUps, TopUp{ID: topUpID, TopUpRecord: record})
	return topUpID, nil
}

func (store *stubStore) FindTopUpByPaymentReference(ctx context.Context, reference IdempotencyKey) (TopUp, error) {
	defer store.lock()()
	for _, existing := range store.state.topUps {
		if existing.PaymentReference == reference {
			return existing, nil
		}
	}
	return TopUp{}, ErrUnknownTopUp
}

func (store *stubStore) failOn(method string, err error) {
	store.failures[method] = err
}

func (store *stubStore) account(test *testing.T, accountID AccountID) Account {
	test.Helper()
	account, err := store.GetAccount(context.Background(), accountID)
	if err != nil {
		test.Fatalf("account %s: %v", accountID, err)
	}
	return account
}

func (store *stubStore) streamer(test *testing.T, streamerID StreamerID) StreamerAccount {
	test.Helper()
	streamer, err := store.GetStreamer(context.Background(), streamerID)
	if err != nil {
		test.Fatalf("streamer %s: %v", streamerID, err)
	}
	return streamer
}

func (store *stubStore) room(test *testing.T, roomID RoomID) Room {
	test.Helper()
	room, err := store.GetRoom(context.Background(), roomID)
	if err != nil {
		test.Fatalf("room %s: %v", roomID, err)
	}
	return room
}

func (store *stubStore) transactionCount() int {
	defer store.lock()()
	return len(store.state.transactions)
}

// giftFixture is a buyer, a streamer live in a room, and a catalog of gifts.
type giftFixture struct {
	store      *stubStore
	buyerID    AccountID
	streamerID StreamerID
	roomID     RoomID
	roseID     GiftID
	retiredID  GiftID
}

func newGiftFixture(test *testing.T, buyerBalance int64) giftFixture {
	test.Helper()
	store := newStubStore(test)
	fixture := giftFixture{
		store:      store,
		buyerID:    mustAccountID(test, "viewer-1"),
		streamerID: mustStreamerID(test, "streamer-1"),
		roomID:     mustRoomID(test, "room-1"),
		roseID:     mustGiftID(test, "rose"),
		retiredID:  mustGiftID(test, "retired"),
	}
	ownerAccountID := mustAccountID(test, "streamer-owner")
	store.state.accounts[fixture.buyerID] = Account{ID: fixture.buyerID, DisplayName: mustDisplayName(test, "Viewer One"), TokenBalance: TokenAmount(buyerBalance), Active: true}
	store.state.accounts[ownerAccountID] = Account{ID: ownerAccountID, DisplayName: mustDisplayName(test, "Streamer"), Active: true}
	store.state.streamers[fixture.streamerID] = StreamerAccount{ID: fixture.streamerID, AccountID: ownerAccountID}
	store.state.rooms[fixture.roomID] = Room{ID: fixture.roomID, StreamerID: fixture.streamerID, Status: RoomStatusLive}
	store.state.gifts[fixture.roseID] = GiftDefinition{ID: fixture.roseID, Name: "Rose", Price: 100, Active: true}
	store.state.gifts[fixture.retiredID] = GiftDefinition{ID: fixture.retiredID, Name: "Retired", Price: 10, Active: false}
	return fixture
}

func (fixture giftFixture) request(quantity int64) PurchaseRequest {
	return PurchaseRequest{BuyerID: fixture.buyerID, RoomID: fixture.roomID, GiftID: fixture.roseID, Quantity: quantity}
}

type recordingSink struct {
	mutex  sync.Mutex
	events []GiftReceivedEvent
	err    error
}

func (sink *recordingSink) Publish(_ context.Context, event GiftReceivedEvent) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.err != nil {
		return sink.err
	}
	sink.events = append(sink.events, event)
	return nil
}

func (sink *recordingSink) published() []GiftReceivedEvent {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	return append([]GiftReceivedEvent(nil), sink.events...)
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) operations(operation string) []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	var matched []OperationLog
	for _, entry := range logger.entries {
		if entry.Operation == operation {
			matched = append(matched, entry)
		}
	}
	return matched
}

var errDiskFull = errors.New("disk full")

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustAccountID(test *testing.T, raw string) AccountID {
	test.Helper()
	accountID, err := NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	return accountID
}

func mustStreamerID(test *testing.T, raw string) StreamerID {
	test.Helper()
	streamerID, err := NewStreamerID(raw)
	if err != nil {
		test.Fatalf("streamer id: %v", err)
	}
	return streamerID
}

func mustRoomID(test *testing.T, raw string) RoomID {
	test.Helper()
	roomID, err := NewRoomID(raw)
	if err != nil {
		test.Fatalf("room id: %v", err)
	}
	return roomID
}

func mustGiftID(test *testing.T, raw string) GiftID {
	test.Helper()
	giftID, err := NewGiftID(raw)
	if err != nil {
		test.Fatalf("gift id: %v", err)
	}
	return giftID
}

func mustIdempotencyKey(test *testing.T, raw string) IdempotencyKey {
	test.Helper()
	key, err := NewIdempotencyKey(raw)
	if err != nil {
		test.Fatalf("idempotency key: %v", err)
	}
	return key
}

func mustDisplayName(test *testing.T, raw string) DisplayName {
	test.Helper()
	name, err := NewDisplayName(raw)
	if err != nil {
		test.Fatalf("display name: %v", err)
	}
	return name
}

func mustGiftMessage(test *testing.T, raw string) GiftMessage {
	test.Helper()
	message, err := NewGiftMessage(raw)
	if err != nil {
		test.Fatalf("gift message: %v", err)
	}
	return message
}
