package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrGiftNotFound            = errors.New("gift not found")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrAccountNotFound         = errors.New("account not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrRoomNotFound            = errors.New("room not found")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrStreamerNotFound        = errors.New("streamer not found")
	ErrUnknownTransaction      = errors.New("unknown transaction")
	ErrUnknownTopUp            = errors.New("unknown top-up")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrAccountExists           = errors.New("account already exists")
	ErrStreamerExists          = errors.New("streamer already exists")
	ErrRoomExists              = errors.New("room already exists")
	ErrInvalidAccountID        = errors.New("invalid account id")
	ErrInvalidStreamerID       = errors.New("invalid streamer id")
	ErrInvalidRoomID           = errors.New("invalid room id")
	ErrInvalidGiftID           = errors.New("invalid gift id")
	ErrInvalidTransactionID    = errors.New("invalid transaction id")
	ErrInvalidTopUpID          = errors.New("invalid top-up id")
	ErrInvalidIdempotencyKey   = errors.New("invalid idempotency key")
	ErrInvalidMessage          = errors.New("invalid gift message")
	ErrInvalidDisplayName      = errors.New("invalid display name")
	ErrInvalidTokenAmount      = errors.New("invalid token amount")
	ErrInvalidPaidAmount       = errors.New("invalid paid amount")
	ErrInvalidGiftDefinition   = errors.New("invalid gift definition")
	ErrInvalidRoomStatus       = errors.New("invalid room status")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidListLimit        = errors.New("invalid list limit")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrIdempotencyKeyMismatch  = errors.New("idempotency key reused with different request")
)

// domainErrors are failures the caller can act on; anything else from the store is infrastructure.
var domainErrors = []error{
	ErrGiftNotFound,
	ErrInvalidQuantity,
	ErrAccountNotFound,
	ErrInsufficientFunds,
	ErrRoomNotFound,
	ErrStreamerNotFound,
	ErrUnknownTransaction,
	ErrUnknownTopUp,
	ErrDuplicateIdempotencyKey,
	ErrIdempotencyKeyMismatch,
	ErrAccountExists,
	ErrStreamerExists,
	ErrRoomExists,
	ErrInvalidAccountID,
	ErrInvalidStreamerID,
	ErrInvalidRoomID,
	ErrInvalidGiftID,
	ErrInvalidTransactionID,
	ErrInvalidTopUpID,
	ErrInvalidIdempotencyKey,
	ErrInvalidMessage,
	ErrInvalidDisplayName,
	ErrInvalidTokenAmount,
	ErrInvalidPaidAmount,
	ErrInvalidGiftDefinition,
	ErrInvalidRoomStatus,
	ErrInvalidMetadataJSON,
	ErrInvalidListLimit,
}

// IsDomainError reports whether err carries one of the ledger's domain failures.
func IsDomainError(err error) bool {
	for _, domainError := range domainErrors {
		if errors.Is(err, domainError) {
			return true
		}
	}
	return false
}

// classifyError tags infrastructure failures as ErrStoreUnavailable and leaves domain failures alone.
func classifyError(err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
