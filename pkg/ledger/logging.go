package ledger

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation      string
	AccountID      AccountID
	StreamerID     StreamerID
	RoomID         RoomID
	GiftID         GiftID
	TransactionID  TransactionID
	Amount         TokenAmount
	IdempotencyKey IdempotencyKey
	Status         string
	Error          error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventSink wires the broadcaster notified after committed purchases.
func WithEventSink(sink EventSink) ServiceOption {
	return func(service *Service) {
		service.events = sink
	}
}

// WithStartingGrant sets the tokens granted to newly opened accounts.
func WithStartingGrant(grant TokenAmount) ServiceOption {
	return func(service *Service) {
		service.startingGrant = grant
	}
}

// MultiOperationLogger fans a log entry out to several loggers.
type MultiOperationLogger []OperationLogger

// LogOperation forwards the entry to every non-nil logger.
func (loggers MultiOperationLogger) LogOperation(ctx context.Context, entry OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
