package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const idempotencyKeyHeader = "Idempotency-Key"

// LedgerService is the subset of ledger.Service the HTTP API drives.
type LedgerService interface {
	PurchaseGift(ctx context.Context, request ledger.PurchaseRequest) (ledger.PurchaseReceipt, error)
	TopUp(ctx context.Context, request ledger.TopUpRequest) (ledger.TopUpReceipt, error)
	OpenAccount(ctx context.Context, accountID ledger.AccountID, displayName ledger.DisplayName) (ledger.Account, error)
	Account(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error)
	ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error)
	Catalog(ctx context.Context, activeOnly bool) ([]ledger.GiftDefinition, error)
	RegisterStreamer(ctx context.Context, streamerID ledger.StreamerID, accountID ledger.AccountID) (ledger.StreamerAccount, error)
	StreamerEarnings(ctx context.Context, streamerID ledger.StreamerID) (ledger.StreamerAccount, error)
	OpenRoom(ctx context.Context, roomID ledger.RoomID, streamerID ledger.StreamerID) (ledger.Room, error)
	CloseRoom(ctx context.Context, roomID ledger.RoomID) error
	Room(ctx context.Context, roomID ledger.RoomID) (ledger.Room, error)
}

// NewRouter builds the gin engine serving the ledger API. metricsHandler may be nil.
func NewRouter(cfg Config, ledgerService LedgerService, logger *zap.Logger, metricsHandler http.Handler) (*gin.Engine, error) {
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("session validator: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &httpHandler{
		logger:        logger,
		ledgerService: ledgerService,
		cfg:           cfg,
	}
	return setupRouter(cfg, handler, validator, metricsHandler), nil
}

// Run serves handler on listenAddr until ctx is cancelled.
func Run(ctx context.Context, listenAddr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", listenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator, metricsHandler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(handler.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", idempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(authClaimsKey))

	api.GET("/gifts", handler.handleCatalog)
	api.POST("/accounts", handler.handleOpenAccount)
	api.GET("/wallet", handler.handleWallet)
	api.POST("/payments/topups", handler.handleTopUp)
	api.POST("/streamers", handler.handleRegisterStreamer)
	api.GET("/streamers/:streamerID", handler.handleStreamer)
	api.POST("/rooms", handler.handleOpenRoom)
	api.GET("/rooms/:roomID", handler.handleRoom)
	api.POST("/rooms/:roomID/close", handler.handleCloseRoom)
	api.POST("/rooms/:roomID/gifts", handler.handlePurchaseGift)

	return router
}

type httpHandler struct {
	logger        *zap.Logger
	ledgerService LedgerService
	cfg           Config
}

func (handler *httpHandler) handleCatalog(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	gifts, err := handler.ledgerService.Catalog(requestCtx, true)
	if err != nil {
		handler.respondError(ctx, "catalog", err)
		return
	}
	payload := make([]giftPayload, 0, len(gifts))
	for _, gift := range gifts {
		payload = append(payload, giftPayload{GiftID: gift.ID.String(), Name: gift.Name, Price: gift.Price.Int64()})
	}
	ctx.JSON(http.StatusOK, gin.H{"gifts": payload})
}

func (handler *httpHandler) handleOpenAccount(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorUnauthorized, "missing session"))
		return
	}
	accountID, err := ledger.NewAccountID(claims.GetUserID())
	if err != nil {
		handler.respondError(ctx, "open_account", err)
		return
	}
	displayName, err := ledger.NewDisplayName(sessionDisplayName(claims))
	if err != nil {
		handler.respondError(ctx, "open_account", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, err := handler.ledgerService.OpenAccount(requestCtx, accountID, displayName)
	if err != nil {
		handler.respondError(ctx, "open_account", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	accountID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, err := handler.ledgerService.Account(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, "wallet", err)
		return
	}
	transactions, err := handler.ledgerService.ListTransactions(requestCtx, accountID, 0, handler.cfg.WalletHistoryLimit)
	if err != nil {
		handler.respondError(ctx, "wallet", err)
		return
	}
	entries := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		entries = append(entries, newTransactionPayload(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account":      newAccountPayload(account),
		"transactions": entries,
	})
}

func (handler *httpHandler) handlePurchaseGift(ctx *gin.Context) {
	buyerID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request purchaseGiftRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	roomID, err := ledger.NewRoomID(ctx.Param("roomID"))
	if err != nil {
		handler.respondError(ctx, "purchase_gift", err)
		return
	}
	giftID, err := ledger.NewGiftID(request.GiftID)
	if err != nil {
		handler.respondError(ctx, "purchase_gift", err)
		return
	}
	message, err := ledger.NewGiftMessage(request.Message)
	if err != nil {
		handler.respondError(ctx, "purchase_gift", err)
		return
	}
	rawKey := request.IdempotencyKey
	if strings.TrimSpace(rawKey) == "" {
		rawKey = ctx.GetHeader(idempotencyKeyHeader)
	}
	idempotencyKey, err := ledger.NewOptionalIdempotencyKey(rawKey)
	if err != nil {
		handler.respondError(ctx, "purchase_gift", err)
		return
	}
	quantity := int64(1)
	if request.Quantity != nil {
		quantity = *request.Quantity
	}

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	receipt, err := handler.ledgerService.PurchaseGift(requestCtx, ledger.PurchaseRequest{
		BuyerID:        buyerID,
		RoomID:         roomID,
		GiftID:         giftID,
		Quantity:       quantity,
		Message:        message,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			handler.logger.Warn("suspicious purchase from unknown account",
				zap.String("account_id", buyerID.String()),
				zap.String("room_id", roomID.String()),
				zap.String("client_ip", ctx.ClientIP()),
			)
		}
		handler.respondError(ctx, "purchase_gift", err)
		return
	}
	ctx.JSON(http.StatusOK, purchaseGiftResponse{
		TransactionID: receipt.TransactionID.String(),
		Gift: purchasedGiftPayload{
			Name:        receipt.GiftName,
			Quantity:    receipt.Quantity.Int64(),
			TotalAmount: receipt.TotalAmount.Int64(),
		},
		Balance:  receipt.BalanceAfter.Int64(),
		Replayed: receipt.Replayed,
	})
}

// handleTopUp is the mocked payment callback: tokens are priced at the configured token price.
func (handler *httpHandler) handleTopUp(ctx *gin.Context) {
	accountID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request topUpRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	tokens, err := ledger.NewPositiveTokenAmount(request.Tokens)
	if err != nil {
		handler.respondError(ctx, "top_up", err)
		return
	}
	reference, err := ledger.NewIdempotencyKey(request.PaymentReference)
	if err != nil {
		handler.respondError(ctx, "top_up", err)
		return
	}
	metadata, err := ledger.NewMetadataJSON(marshalMetadata(request.Metadata, map[string]any{"provider": "mock"}))
	if err != nil {
		handler.respondError(ctx, "top_up", err)
		return
	}
	paidAmount := handler.cfg.TokenPrice.Mul(decimal.NewFromInt(tokens.Int64()))

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	receipt, err := handler.ledgerService.TopUp(requestCtx, ledger.TopUpRequest{
		AccountID:        accountID,
		Tokens:           tokens,
		PaidAmount:       paidAmount,
		Currency:         handler.cfg.Currency,
		PaymentReference: reference,
		Metadata:         metadata,
	})
	if err != nil {
		handler.respondError(ctx, "top_up", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"top_up_id":   receipt.TopUpID.String(),
		"tokens":      receipt.Tokens.Int64(),
		"paid_amount": paidAmount.StringFixed(2),
		"currency":    handler.cfg.Currency,
		"balance":     receipt.BalanceAfter.Int64(),
		"replayed":    receipt.Replayed,
	})
}

func (handler *httpHandler) handleRegisterStreamer(ctx *gin.Context) {
	accountID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request registerStreamerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	rawStreamerID := request.StreamerID
	if strings.TrimSpace(rawStreamerID) == "" {
		rawStreamerID = accountID.String()
	}
	streamerID, err := ledger.NewStreamerID(rawStreamerID)
	if err != nil {
		handler.respondError(ctx, "register_streamer", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	streamer, err := handler.ledgerService.RegisterStreamer(requestCtx, streamerID, accountID)
	if err != nil {
		handler.respondError(ctx, "register_streamer", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"streamer": newStreamerPayload(streamer)})
}

func (handler *httpHandler) handleStreamer(ctx *gin.Context) {
	streamerID, err := ledger.NewStreamerID(ctx.Param("streamerID"))
	if err != nil {
		handler.respondError(ctx, "streamer", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	streamer, err := handler.ledgerService.StreamerEarnings(requestCtx, streamerID)
	if err != nil {
		handler.respondError(ctx, "streamer", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"streamer": newStreamerPayload(streamer)})
}

func (handler *httpHandler) handleOpenRoom(ctx *gin.Context) {
	accountID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request openRoomRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected JSON body"))
		return
	}
	roomID, err := ledger.NewRoomID(request.RoomID)
	if err != nil {
		handler.respondError(ctx, "open_room", err)
		return
	}
	rawStreamerID := request.StreamerID
	if strings.TrimSpace(rawStreamerID) == "" {
		rawStreamerID = accountID.String()
	}
	streamerID, err := ledger.NewStreamerID(rawStreamerID)
	if err != nil {
		handler.respondError(ctx, "open_room", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if !handler.ownsStreamer(ctx, requestCtx, accountID, streamerID) {
		return
	}
	room, err := handler.ledgerService.OpenRoom(requestCtx, roomID, streamerID)
	if err != nil {
		handler.respondError(ctx, "open_room", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": newRoomPayload(room)})
}

func (handler *httpHandler) handleRoom(ctx *gin.Context) {
	roomID, err := ledger.NewRoomID(ctx.Param("roomID"))
	if err != nil {
		handler.respondError(ctx, "room", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	room, err := handler.ledgerService.Room(requestCtx, roomID)
	if err != nil {
		handler.respondError(ctx, "room", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": newRoomPayload(room)})
}

func (handler *httpHandler) handleCloseRoom(ctx *gin.Context) {
	accountID, ok := handler.sessionAccountID(ctx)
	if !ok {
		return
	}
	roomID, err := ledger.NewRoomID(ctx.Param("roomID"))
	if err != nil {
		handler.respondError(ctx, "close_room", err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	room, err := handler.ledgerService.Room(requestCtx, roomID)
	if err != nil {
		handler.respondError(ctx, "close_room", err)
		return
	}
	if !handler.ownsStreamer(ctx, requestCtx, accountID, room.StreamerID) {
		return
	}
	if err := handler.ledgerService.CloseRoom(requestCtx, roomID); err != nil {
		handler.respondError(ctx, "close_room", err)
		return
	}
	room.Status = ledger.RoomStatusClosed
	ctx.JSON(http.StatusOK, gin.H{"room": newRoomPayload(room)})
}

// ownsStreamer writes a 403 and returns false unless the streamer belongs to accountID.
func (handler *httpHandler) ownsStreamer(ctx *gin.Context, requestCtx context.Context, accountID ledger.AccountID, streamerID ledger.StreamerID) bool {
	streamer, err := handler.ledgerService.StreamerEarnings(requestCtx, streamerID)
	if err != nil {
		handler.respondError(ctx, "streamer_owner", err)
		return false
	}
	if streamer.AccountID != accountID {
		ctx.JSON(http.StatusForbidden, errorResponse(errorForbidden, "streamer belongs to another account"))
		return false
	}
	return true
}

func (handler *httpHandler) sessionAccountID(ctx *gin.Context) (ledger.AccountID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorUnauthorized, "missing session"))
		return ledger.AccountID{}, false
	}
	accountID, err := ledger.NewAccountID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorUnauthorized, "session has no user"))
		return ledger.AccountID{}, false
	}
	return accountID, true
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, operation string, err error) {
	status, code, message := resolveError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error("ledger request failed", zap.String("operation", operation), zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, message))
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(authClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func sessionDisplayName(claims *sessionvalidator.Claims) string {
	if displayName := strings.TrimSpace(claims.GetUserDisplayName()); displayName != "" {
		return displayName
	}
	return claims.GetUserID()
}

func marshalMetadata(metadata map[string]any, fallback map[string]any) string {
	if len(metadata) == 0 {
		metadata = fallback
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
