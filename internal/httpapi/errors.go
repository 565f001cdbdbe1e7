package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/gin-gonic/gin"
)

const (
	errorUnauthorized            = "unauthorized"
	errorForbidden               = "forbidden"
	errorInvalidPayload          = "invalid_payload"
	errorGiftNotFound            = "gift_not_found"
	errorInvalidQuantity         = "invalid_quantity"
	errorAccountNotFound         = "account_not_found"
	errorInsufficientFunds       = "insufficient_funds"
	errorRoomNotFound            = "room_not_found"
	errorStoreUnavailable        = "store_unavailable"
	errorStreamerNotFound        = "streamer_not_found"
	errorStreamerExists          = "streamer_exists"
	errorRoomExists              = "room_exists"
	errorIdempotencyKeyMismatch  = "idempotency_key_mismatch"
	errorDuplicateIdempotencyKey = "duplicate_idempotency_key"
	errorInvalidRequest          = "invalid_request"
	errorInternal                = "internal_error"
)

type errorMapping struct {
	source  error
	status  int
	code    string
	message string
}

// errorMappings is ordered: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{source: ledger.ErrGiftNotFound, status: http.StatusNotFound, code: errorGiftNotFound, message: "gift is not available"},
	{source: ledger.ErrInvalidQuantity, status: http.StatusBadRequest, code: errorInvalidQuantity, message: "quantity must be a positive whole number"},
	{source: ledger.ErrAccountNotFound, status: http.StatusNotFound, code: errorAccountNotFound, message: "account not found"},
	{source: ledger.ErrInsufficientFunds, status: http.StatusPaymentRequired, code: errorInsufficientFunds, message: "not enough tokens"},
	{source: ledger.ErrRoomNotFound, status: http.StatusNotFound, code: errorRoomNotFound, message: "room is not live"},
	{source: ledger.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: errorStoreUnavailable, message: "ledger temporarily unavailable"},
	{source: ledger.ErrStreamerNotFound, status: http.StatusNotFound, code: errorStreamerNotFound, message: "streamer not found"},
	{source: ledger.ErrStreamerExists, status: http.StatusConflict, code: errorStreamerExists, message: "streamer already registered"},
	{source: ledger.ErrRoomExists, status: http.StatusConflict, code: errorRoomExists, message: "room already exists"},
	{source: ledger.ErrIdempotencyKeyMismatch, status: http.StatusConflict, code: errorIdempotencyKeyMismatch, message: "idempotency key was used for a different request"},
	{source: ledger.ErrDuplicateIdempotencyKey, status: http.StatusConflict, code: errorDuplicateIdempotencyKey, message: "request is already being processed"},
}

// validationErrors are input failures reported as 400 with the sentinel text as the message.
var validationErrors = []error{
	ledger.ErrInvalidAccountID,
	ledger.ErrInvalidStreamerID,
	ledger.ErrInvalidRoomID,
	ledger.ErrInvalidGiftID,
	ledger.ErrInvalidIdempotencyKey,
	ledger.ErrInvalidMessage,
	ledger.ErrInvalidDisplayName,
	ledger.ErrInvalidTokenAmount,
	ledger.ErrInvalidPaidAmount,
	ledger.ErrInvalidMetadataJSON,
	ledger.ErrInvalidListLimit,
}

func resolveError(err error) (int, string, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.source) {
			return mapping.status, mapping.code, mapping.message
		}
	}
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, errorInvalidRequest, sentinel.Error()
		}
	}
	return http.StatusInternalServerError, errorInternal, "unexpected error"
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
