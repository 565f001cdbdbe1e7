package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/giftledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSigningKey = "secret-key"
	testIssuer     = "tauth"
	testCookieName = "app_session"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type accountEnvelope struct {
	Account accountPayload `json:"account"`
}

type walletEnvelope struct {
	Account      accountPayload       `json:"account"`
	Transactions []transactionPayload `json:"transactions"`
}

type roomEnvelope struct {
	Room roomPayload `json:"room"`
}

type streamerEnvelope struct {
	Streamer streamerPayload `json:"streamer"`
}

type topUpEnvelope struct {
	TopUpID    string `json:"top_up_id"`
	Tokens     int64  `json:"tokens"`
	PaidAmount string `json:"paid_amount"`
	Currency   string `json:"currency"`
	Balance    int64  `json:"balance"`
	Replayed   bool   `json:"replayed"`
}

func testConfig() Config {
	cfg := Config{
		SessionSigningKey: testSigningKey,
		SessionIssuer:     testIssuer,
		SessionCookieName: testCookieName,
		TokenPrice:        decimal.RequireFromString("0.10"),
	}
	return cfg
}

func newTestService(test *testing.T, startingGrant int64) *ledger.Service {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(test.TempDir(), "http.db")), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.AutoMigrate(db); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := ledger.NewService(gormstore.New(db), clock, ledger.WithStartingGrant(ledger.TokenAmount(startingGrant)))
	if err != nil {
		test.Fatalf("ledger service init failed: %v", err)
	}
	for _, seed := range []struct {
		id    string
		name  string
		price int64
	}{
		{id: "rose", name: "Rose", price: 100},
		{id: "castle", name: "Castle", price: 1000},
	} {
		giftID, err := ledger.NewGiftID(seed.id)
		if err != nil {
			test.Fatalf("gift id: %v", err)
		}
		definition, err := ledger.NewGiftDefinition(giftID, seed.name, ledger.PositiveTokenAmount(seed.price), true)
		if err != nil {
			test.Fatalf("gift definition: %v", err)
		}
		if err := service.UpsertGift(context.Background(), definition); err != nil {
			test.Fatalf("upsert gift: %v", err)
		}
	}
	return service
}

func startServer(test *testing.T, ledgerService LedgerService, metricsHandler http.Handler) *httptest.Server {
	test.Helper()
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}
	router, err := NewRouter(cfg, ledgerService, zap.NewNop(), metricsHandler)
	if err != nil {
		test.Fatalf("router init failed: %v", err)
	}
	server := httptest.NewServer(router)
	test.Cleanup(server.Close)
	return server
}

func buildSessionCookie(test *testing.T, userID string, displayName string) *http.Cookie {
	test.Helper()
	claims := &sessionvalidator.Claims{
		UserID:          userID,
		UserEmail:       userID + "@example.com",
		UserDisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSigningKey))
	if err != nil {
		test.Fatalf("token signing failed: %v", err)
	}
	return &http.Cookie{Name: testCookieName, Value: signed}
}

func doRequest(test *testing.T, server *httptest.Server, method string, path string, cookie *http.Cookie, payload any, headers map[string]string) *http.Response {
	test.Helper()
	body := bytes.NewReader(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			test.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, server.URL+path, body)
	if err != nil {
		test.Fatalf("request init failed: %v", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	response, err := server.Client().Do(request)
	if err != nil {
		test.Fatalf("request failed: %v", err)
	}
	test.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func decodeResponse[T any](test *testing.T, response *http.Response, expectedStatus int) T {
	test.Helper()
	var decoded T
	if response.StatusCode != expectedStatus {
		var failure errorEnvelope
		_ = json.NewDecoder(response.Body).Decode(&failure)
		test.Fatalf("expected status %d, got %d (%s: %s)", expectedStatus, response.StatusCode, failure.Error.Code, failure.Error.Message)
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		test.Fatalf("failed to decode response: %v", err)
	}
	return decoded
}

func expectError(test *testing.T, response *http.Response, expectedStatus int, expectedCode string) {
	test.Helper()
	failure := decodeResponse[errorEnvelope](test, response, expectedStatus)
	if failure.Error.Code != expectedCode {
		test.Fatalf("expected error code %s, got %s", expectedCode, failure.Error.Code)
	}
	if failure.Error.Message == "" {
		test.Fatalf("expected a non-empty error message for %s", expectedCode)
	}
}

// goLive opens the owner's account, registers them as a streamer and opens room-1.
func goLive(test *testing.T, server *httptest.Server, ownerCookie *http.Cookie) {
	test.Helper()
	decodeResponse[accountEnvelope](test, doRequest(test, server, http.MethodPost, "/api/accounts", ownerCookie, nil, nil), http.StatusOK)
	streamer := decodeResponse[streamerEnvelope](test, doRequest(test, server, http.MethodPost, "/api/streamers", ownerCookie, nil, nil), http.StatusOK)
	if streamer.Streamer.StreamerID != "streamer-owner" {
		test.Fatalf("expected streamer id to default to the account id, got %s", streamer.Streamer.StreamerID)
	}
	room := decodeResponse[roomEnvelope](test, doRequest(test, server, http.MethodPost, "/api/rooms", ownerCookie, map[string]any{"room_id": "room-1"}, nil), http.StatusOK)
	if room.Room.Status != "live" {
		test.Fatalf("expected live room, got %s", room.Room.Status)
	}
}

func TestGiftPurchaseFlow(test *testing.T) {
	server := startServer(test, newTestService(test, 500), nil)
	ownerCookie := buildSessionCookie(test, "streamer-owner", "Streamer")
	viewerCookie := buildSessionCookie(test, "viewer-1", "Viewer One")
	goLive(test, server, ownerCookie)

	opened := decodeResponse[accountEnvelope](test, doRequest(test, server, http.MethodPost, "/api/accounts", viewerCookie, nil, nil), http.StatusOK)
	if opened.Account.Balance != 500 || opened.Account.DisplayName != "Viewer One" {
		test.Fatalf("unexpected opened account %+v", opened.Account)
	}

	catalog := decodeResponse[struct {
		Gifts []giftPayload `json:"gifts"`
	}](test, doRequest(test, server, http.MethodGet, "/api/gifts", viewerCookie, nil, nil), http.StatusOK)
	if len(catalog.Gifts) != 2 {
		test.Fatalf("expected 2 gifts, got %d", len(catalog.Gifts))
	}

	purchase := decodeResponse[purchaseGiftResponse](test, doRequest(test, server, http.MethodPost, "/api/rooms/room-1/gifts", viewerCookie,
		map[string]any{"gift_id": "rose", "quantity": 2, "message": "hello"},
		map[string]string{idempotencyKeyHeader: "tap-1"},
	), http.StatusOK)
	if purchase.Balance != 300 || purchase.Gift.TotalAmount != 200 || purchase.Gift.Quantity != 2 || purchase.Gift.Name != "Rose" {
		test.Fatalf("unexpected purchase response %+v", purchase)
	}
	if purchase.TransactionID == "" || purchase.Replayed {
		test.Fatalf("expected fresh transaction, got %+v", purchase)
	}

	retry := decodeResponse[purchaseGiftResponse](test, doRequest(test, server, http.MethodPost, "/api/rooms/room-1/gifts", viewerCookie,
		map[string]any{"gift_id": "rose", "quantity": 2, "message": "hello"},
		map[string]string{idempotencyKeyHeader: "tap-1"},
	), http.StatusOK)
	if !retry.Replayed || retry.TransactionID != purchase.TransactionID || retry.Balance != 300 {
		test.Fatalf("expected replayed purchase, got %+v", retry)
	}

	wallet := decodeResponse[walletEnvelope](test, doRequest(test, server, http.MethodGet, "/api/wallet", viewerCookie, nil, nil), http.StatusOK)
	if wallet.Account.Balance != 300 || len(wallet.Transactions) != 1 {
		test.Fatalf("unexpected wallet %+v", wallet)
	}
	if wallet.Transactions[0].Message != "hello" || wallet.Transactions[0].StreamerID != "streamer-owner" {
		test.Fatalf("unexpected transaction %+v", wallet.Transactions[0])
	}

	room := decodeResponse[roomEnvelope](test, doRequest(test, server, http.MethodGet, "/api/rooms/room-1", viewerCookie, nil, nil), http.StatusOK)
	if room.Room.TotalTips != 200 {
		test.Fatalf("expected 200 tips, got %d", room.Room.TotalTips)
	}
	streamer := decodeResponse[streamerEnvelope](test, doRequest(test, server, http.MethodGet, "/api/streamers/streamer-owner", viewerCookie, nil, nil), http.StatusOK)
	if streamer.Streamer.TotalEarnings != 200 {
		test.Fatalf("expected 200 earnings, got %d", streamer.Streamer.TotalEarnings)
	}
}

func TestPurchaseFailuresMapToErrorEnvelope(test *testing.T) {
	server := startServer(test, newTestService(test, 150), nil)
	ownerCookie := buildSessionCookie(test, "streamer-owner", "Streamer")
	viewerCookie := buildSessionCookie(test, "viewer-1", "Viewer One")
	goLive(test, server, ownerCookie)
	decodeResponse[accountEnvelope](test, doRequest(test, server, http.MethodPost, "/api/accounts", viewerCookie, nil, nil), http.StatusOK)

	testCases := []struct {
		name           string
		cookie         *http.Cookie
		path           string
		payload        map[string]any
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "insufficient funds",
			cookie:         viewerCookie,
			path:           "/api/rooms/room-1/gifts",
			payload:        map[string]any{"gift_id": "castle", "quantity": 1},
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   errorInsufficientFunds,
		},
		{
			name:           "unknown gift",
			cookie:         viewerCookie,
			path:           "/api/rooms/room-1/gifts",
			payload:        map[string]any{"gift_id": "unicorn", "quantity": 1},
			expectedStatus: http.StatusNotFound,
			expectedCode:   errorGiftNotFound,
		},
		{
			name:           "zero quantity",
			cookie:         viewerCookie,
			path:           "/api/rooms/room-1/gifts",
			payload:        map[string]any{"gift_id": "rose", "quantity": 0},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   errorInvalidQuantity,
		},
		{
			name:           "unknown room",
			cookie:         viewerCookie,
			path:           "/api/rooms/room-404/gifts",
			payload:        map[string]any{"gift_id": "rose", "quantity": 1},
			expectedStatus: http.StatusNotFound,
			expectedCode:   errorRoomNotFound,
		},
		{
			name:           "account never opened",
			cookie:         buildSessionCookie(test, "ghost", "Ghost"),
			path:           "/api/rooms/room-1/gifts",
			payload:        map[string]any{"gift_id": "rose", "quantity": 1},
			expectedStatus: http.StatusNotFound,
			expectedCode:   errorAccountNotFound,
		},
		{
			name:           "missing gift id",
			cookie:         viewerCookie,
			path:           "/api/rooms/room-1/gifts",
			payload:        map[string]any{"quantity": 1},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   errorInvalidRequest,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			response := doRequest(test, server, http.MethodPost, testCase.path, testCase.cookie, testCase.payload, nil)
			expectError(test, response, testCase.expectedStatus, testCase.expectedCode)
		})
	}

	wallet := decodeResponse[walletEnvelope](test, doRequest(test, server, http.MethodGet, "/api/wallet", viewerCookie, nil, nil), http.StatusOK)
	if wallet.Account.Balance != 150 || len(wallet.Transactions) != 0 {
		test.Fatalf("expected failed purchases to leave the wallet untouched, got %+v", wallet)
	}
}

func TestTopUpCreditsTokensAtConfiguredPrice(test *testing.T) {
	server := startServer(test, newTestService(test, 0), nil)
	viewerCookie := buildSessionCookie(test, "viewer-1", "")
	opened := decodeResponse[accountEnvelope](test, doRequest(test, server, http.MethodPost, "/api/accounts", viewerCookie, nil, nil), http.StatusOK)
	if opened.Account.DisplayName != "viewer-1" {
		test.Fatalf("expected display name to fall back to the user id, got %q", opened.Account.DisplayName)
	}

	payload := map[string]any{"tokens": 50, "payment_reference": "pay-1"}
	first := decodeResponse[topUpEnvelope](test, doRequest(test, server, http.MethodPost, "/api/payments/topups", viewerCookie, payload, nil), http.StatusOK)
	if first.Balance != 50 || first.PaidAmount != "5.00" || first.Currency != "USD" || first.Replayed {
		test.Fatalf("unexpected top-up %+v", first)
	}
	second := decodeResponse[topUpEnvelope](test, doRequest(test, server, http.MethodPost, "/api/payments/topups", viewerCookie, payload, nil), http.StatusOK)
	if !second.Replayed || second.TopUpID != first.TopUpID || second.Balance != 50 {
		test.Fatalf("expected replayed top-up, got %+v", second)
	}

	expectError(test, doRequest(test, server, http.MethodPost, "/api/payments/topups", viewerCookie, map[string]any{"tokens": 0, "payment_reference": "pay-2"}, nil), http.StatusBadRequest, errorInvalidRequest)
}

func TestRoomLifecycleRequiresOwnership(test *testing.T) {
	server := startServer(test, newTestService(test, 500), nil)
	ownerCookie := buildSessionCookie(test, "streamer-owner", "Streamer")
	viewerCookie := buildSessionCookie(test, "viewer-1", "Viewer One")
	goLive(test, server, ownerCookie)
	decodeResponse[accountEnvelope](test, doRequest(test, server, http.MethodPost, "/api/accounts", viewerCookie, nil, nil), http.StatusOK)

	expectError(test, doRequest(test, server, http.MethodPost, "/api/rooms", viewerCookie, map[string]any{"room_id": "room-2", "streamer_id": "streamer-owner"}, nil), http.StatusForbidden, errorForbidden)
	expectError(test, doRequest(test, server, http.MethodPost, "/api/rooms/room-1/close", viewerCookie, nil, nil), http.StatusForbidden, errorForbidden)
	expectError(test, doRequest(test, server, http.MethodPost, "/api/rooms", ownerCookie, map[string]any{"room_id": "room-1"}, nil), http.StatusConflict, errorRoomExists)
	expectError(test, doRequest(test, server, http.MethodPost, "/api/streamers", ownerCookie, nil, nil), http.StatusConflict, errorStreamerExists)

	closed := decodeResponse[roomEnvelope](test, doRequest(test, server, http.MethodPost, "/api/rooms/room-1/close", ownerCookie, nil, nil), http.StatusOK)
	if closed.Room.Status != "closed" {
		test.Fatalf("expected closed room, got %s", closed.Room.Status)
	}
	expectError(test, doRequest(test, server, http.MethodPost, "/api/rooms/room-1/gifts", viewerCookie, map[string]any{"gift_id": "rose"}, nil), http.StatusNotFound, errorRoomNotFound)
}

func TestAPIRequiresSession(test *testing.T) {
	server := startServer(test, newTestService(test, 0), nil)
	response := doRequest(test, server, http.MethodGet, "/api/wallet", nil, nil, nil)
	if response.StatusCode < http.StatusBadRequest {
		test.Fatalf("expected request without session to be rejected, got %d", response.StatusCode)
	}
}

func TestHealthAndMetricsRoutes(test *testing.T) {
	metricsHandler := http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte("giftledger_purchases_total 1\n"))
	})
	server := startServer(test, newTestService(test, 0), metricsHandler)

	health := doRequest(test, server, http.MethodGet, "/healthz", nil, nil, nil)
	if health.StatusCode != http.StatusOK {
		test.Fatalf("expected healthz 200, got %d", health.StatusCode)
	}
	metrics := doRequest(test, server, http.MethodGet, "/metrics", nil, nil, nil)
	if metrics.StatusCode != http.StatusOK {
		test.Fatalf("expected metrics 200, got %d", metrics.StatusCode)
	}
}

type unavailableLedger struct {
	LedgerService
}

func (unavailableLedger) PurchaseGift(context.Context, ledger.PurchaseRequest) (ledger.PurchaseReceipt, error) {
	return ledger.PurchaseReceipt{}, ledger.ErrStoreUnavailable
}

func TestStoreOutageMapsToServiceUnavailable(test *testing.T) {
	server := startServer(test, unavailableLedger{}, nil)
	viewerCookie := buildSessionCookie(test, "viewer-1", "Viewer One")
	response := doRequest(test, server, http.MethodPost, "/api/rooms/room-1/gifts", viewerCookie, map[string]any{"gift_id": "rose", "quantity": 1}, nil)
	expectError(test, response, http.StatusServiceUnavailable, errorStoreUnavailable)
}

func TestConfigValidateAppliesDefaults(test *testing.T) {
	cfg := Config{SessionSigningKey: testSigningKey}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.SessionCookieName != defaultSessionCookie || cfg.Currency != defaultCurrency {
		test.Fatalf("defaults not applied: %+v", cfg)
	}
	if !cfg.TokenPrice.Equal(decimal.RequireFromString(defaultTokenPrice)) {
		test.Fatalf("expected default token price, got %s", cfg.TokenPrice)
	}

	missingKey := Config{}
	if err := missingKey.Validate(); err == nil {
		test.Fatalf("expected missing signing key to fail validation")
	}
	badCurrency := Config{SessionSigningKey: testSigningKey, Currency: "dollars"}
	if err := badCurrency.Validate(); err == nil {
		test.Fatalf("expected invalid currency to fail validation")
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	origins := ParseAllowedOrigins(" http://a.test , ,http://b.test")
	if len(origins) != 2 || origins[0] != "http://a.test" || origins[1] != "http://b.test" {
		test.Fatalf("unexpected origins %v", origins)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected no origins for blank input")
	}
}
