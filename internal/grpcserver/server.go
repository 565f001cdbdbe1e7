package grpcserver

import (
	"context"
	"errors"
	"strings"

	giftledgerv1 "github.com/MarkoPoloResearchLab/giftledger/api/giftledger/v1"
	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	errorGiftNotFound            = "gift_not_found"
	errorInvalidQuantity         = "invalid_quantity"
	errorAccountNotFound         = "account_not_found"
	errorInsufficientFunds       = "insufficient_funds"
	errorRoomNotFound            = "room_not_found"
	errorStoreUnavailable        = "store_unavailable"
	errorIdempotencyKeyMismatch  = "idempotency_key_mismatch"
	errorDuplicateIdempotencyKey = "duplicate_idempotency_key"
	errorInvalidAccountID        = "invalid_account_id"
	errorInvalidRoomID           = "invalid_room_id"
	errorInvalidGiftID           = "invalid_gift_id"
	errorInvalidMessage          = "invalid_message"
	errorInvalidIdempotencyKey   = "invalid_idempotency_key"
	errorInvalidTokenAmount      = "invalid_token_amount"
	errorInvalidPaidAmount       = "invalid_paid_amount"
	errorInvalidCurrency         = "invalid_currency"
	errorInvalidMetadata         = "invalid_metadata_json"
	errorInvalidListLimit        = "invalid_list_limit"

	defaultCurrency = "USD"
)

type errorMapping struct {
	source error
	code   codes.Code
	reason string
}

// errorMappings is ordered: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{source: ledger.ErrInvalidAccountID, code: codes.InvalidArgument, reason: errorInvalidAccountID},
	{source: ledger.ErrInvalidRoomID, code: codes.InvalidArgument, reason: errorInvalidRoomID},
	{source: ledger.ErrInvalidGiftID, code: codes.InvalidArgument, reason: errorInvalidGiftID},
	{source: ledger.ErrInvalidMessage, code: codes.InvalidArgument, reason: errorInvalidMessage},
	{source: ledger.ErrInvalidIdempotencyKey, code: codes.InvalidArgument, reason: errorInvalidIdempotencyKey},
	{source: ledger.ErrInvalidTokenAmount, code: codes.InvalidArgument, reason: errorInvalidTokenAmount},
	{source: ledger.ErrInvalidPaidAmount, code: codes.InvalidArgument, reason: errorInvalidPaidAmount},
	{source: ledger.ErrInvalidMetadataJSON, code: codes.InvalidArgument, reason: errorInvalidMetadata},
	{source: ledger.ErrInvalidListLimit, code: codes.InvalidArgument, reason: errorInvalidListLimit},
	{source: ledger.ErrGiftNotFound, code: codes.NotFound, reason: errorGiftNotFound},
	{source: ledger.ErrInvalidQuantity, code: codes.InvalidArgument, reason: errorInvalidQuantity},
	{source: ledger.ErrAccountNotFound, code: codes.NotFound, reason: errorAccountNotFound},
	{source: ledger.ErrInsufficientFunds, code: codes.FailedPrecondition, reason: errorInsufficientFunds},
	{source: ledger.ErrRoomNotFound, code: codes.NotFound, reason: errorRoomNotFound},
	{source: ledger.ErrIdempotencyKeyMismatch, code: codes.AlreadyExists, reason: errorIdempotencyKeyMismatch},
	{source: ledger.ErrDuplicateIdempotencyKey, code: codes.AlreadyExists, reason: errorDuplicateIdempotencyKey},
	{source: ledger.ErrStoreUnavailable, code: codes.Unavailable, reason: errorStoreUnavailable},
}

// GiftLedgerServer exposes the gift ledger over gRPC.
type GiftLedgerServer struct {
	giftledgerv1.UnimplementedGiftLedgerServer
	ledgerService *ledger.Service
}

// NewGiftLedgerServer constructs a gRPC server for the ledger service.
func NewGiftLedgerServer(ledgerService *ledger.Service) *GiftLedgerServer {
	return &GiftLedgerServer{ledgerService: ledgerService}
}

// NewServer builds a grpc.Server serving the ledger and the standard health service.
func NewServer(ledgerService *ledger.Service, options ...grpc.ServerOption) *grpc.Server {
	grpcServer := grpc.NewServer(options...)
	giftledgerv1.RegisterGiftLedgerServer(grpcServer, NewGiftLedgerServer(ledgerService))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(giftledgerv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer
}

func (server *GiftLedgerServer) PurchaseGift(ctx context.Context, request *giftledgerv1.PurchaseGiftRequest) (*giftledgerv1.PurchaseGiftResponse, error) {
	buyerID, err := ledger.NewAccountID(request.GetBuyerId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	roomID, err := ledger.NewRoomID(request.GetRoomId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	giftID, err := ledger.NewGiftID(request.GetGiftId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	message, err := ledger.NewGiftMessage(request.GetMessage())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	idempotencyKey, err := ledger.NewOptionalIdempotencyKey(request.GetIdempotencyKey())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	receipt, operationError := server.ledgerService.PurchaseGift(ctx, ledger.PurchaseRequest{
		BuyerID:        buyerID,
		RoomID:         roomID,
		GiftID:         giftID,
		Quantity:       request.GetQuantity(),
		Message:        message,
		IdempotencyKey: idempotencyKey,
	})
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &giftledgerv1.PurchaseGiftResponse{
		TransactionId: receipt.TransactionID.String(),
		GiftName:      receipt.GiftName,
		Quantity:      receipt.Quantity.Int64(),
		TotalAmount:   receipt.TotalAmount.Int64(),
		BalanceAfter:  receipt.BalanceAfter.Int64(),
		Replayed:      receipt.Replayed,
	}, nil
}

func (server *GiftLedgerServer) GetBalance(ctx context.Context, request *giftledgerv1.BalanceRequest) (*giftledgerv1.BalanceResponse, error) {
	accountID, err := ledger.NewAccountID(request.GetAccountId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	account, operationError := server.ledgerService.Account(ctx, accountID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &giftledgerv1.BalanceResponse{
		AccountId:    account.ID.String(),
		TokenBalance: account.TokenBalance.Int64(),
		Active:       account.Active,
	}, nil
}

func (server *GiftLedgerServer) TopUp(ctx context.Context, request *giftledgerv1.TopUpRequest) (*giftledgerv1.TopUpResponse, error) {
	accountID, err := ledger.NewAccountID(request.GetAccountId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	tokens, err := ledger.NewPositiveTokenAmount(request.GetTokens())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	paidAmount, err := decimal.NewFromString(request.GetPaidAmount())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errorInvalidPaidAmount)
	}
	currency := strings.ToUpper(strings.TrimSpace(request.GetCurrency()))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, status.Error(codes.InvalidArgument, errorInvalidCurrency)
	}
	reference, err := ledger.NewIdempotencyKey(request.GetPaymentReference())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	metadata, err := ledger.NewMetadataJSON(request.GetMetadataJson())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	receipt, operationError := server.ledgerService.TopUp(ctx, ledger.TopUpRequest{
		AccountID:        accountID,
		Tokens:           tokens,
		PaidAmount:       paidAmount,
		Currency:         currency,
		PaymentReference: reference,
		Metadata:         metadata,
	})
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &giftledgerv1.TopUpResponse{
		TopUpId:      receipt.TopUpID.String(),
		Tokens:       receipt.Tokens.Int64(),
		BalanceAfter: receipt.BalanceAfter.Int64(),
		Replayed:     receipt.Replayed,
	}, nil
}

func (server *GiftLedgerServer) ListGifts(ctx context.Context, request *giftledgerv1.ListGiftsRequest) (*giftledgerv1.ListGiftsResponse, error) {
	gifts, operationError := server.ledgerService.Catalog(ctx, !request.GetIncludeInactive())
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &giftledgerv1.ListGiftsResponse{Gifts: make([]*giftledgerv1.Gift, 0, len(gifts))}
	for _, gift := range gifts {
		response.Gifts = append(response.Gifts, &giftledgerv1.Gift{
			GiftId: gift.ID.String(),
			Name:   gift.Name,
			Price:  gift.Price.Int64(),
			Active: gift.Active,
		})
	}
	return response, nil
}

func (server *GiftLedgerServer) ListTransactions(ctx context.Context, request *giftledgerv1.ListTransactionsRequest) (*giftledgerv1.ListTransactionsResponse, error) {
	accountID, err := ledger.NewAccountID(request.GetAccountId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	transactions, operationError := server.ledgerService.ListTransactions(ctx, accountID, request.GetBeforeUnixUtc(), int(request.GetLimit()))
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &giftledgerv1.ListTransactionsResponse{Transactions: make([]*giftledgerv1.Transaction, 0, len(transactions))}
	for _, transaction := range transactions {
		response.Transactions = append(response.Transactions, &giftledgerv1.Transaction{
			TransactionId:  transaction.ID.String(),
			BuyerId:        transaction.BuyerAccountID.String(),
			StreamerId:     transaction.StreamerID.String(),
			RoomId:         transaction.RoomID.String(),
			GiftId:         transaction.GiftID.String(),
			GiftName:       transaction.GiftName,
			UnitPrice:      transaction.UnitPrice.Int64(),
			Quantity:       transaction.Quantity.Int64(),
			TotalAmount:    transaction.TotalAmount.Int64(),
			Message:        transaction.Message.String(),
			IdempotencyKey: transaction.IdempotencyKey.String(),
			CreatedUnixUtc: transaction.CreatedUnixUTC,
		})
	}
	return response, nil
}

func mapToGRPCError(source error) error {
	for _, mapping := range errorMappings {
		if errors.Is(source, mapping.source) {
			return status.Error(mapping.code, mapping.reason)
		}
	}
	return status.Error(codes.Internal, source.Error())
}
