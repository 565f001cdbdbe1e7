// Package oplog writes ledger operation callbacks to zap.
package oplog

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"go.uber.org/zap"
)

// ZapLogger implements ledger.OperationLogger.
type ZapLogger struct {
	logger *zap.Logger
}

func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger.Named("ledger")}
}

// LogOperation logs successes at info, domain failures at warn and infrastructure failures at error.
// A purchase from an unknown or deactivated account is flagged as suspicious.
func (zapLogger *ZapLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := entryFields(entry)
	switch {
	case entry.Error == nil:
		zapLogger.logger.Info(entry.Operation, fields...)
	case entry.Operation == ledger.OperationPublishEvent:
		zapLogger.logger.Warn("event publish failed", fields...)
	case errors.Is(entry.Error, ledger.ErrAccountNotFound) && entry.Operation == ledger.OperationPurchaseGift:
		zapLogger.logger.Warn("suspicious purchase: unknown account", append(fields, zap.Bool("suspicious", true))...)
	case errors.Is(entry.Error, ledger.ErrStoreUnavailable):
		zapLogger.logger.Error(entry.Operation, fields...)
	default:
		zapLogger.logger.Warn(entry.Operation, fields...)
	}
}

func entryFields(entry ledger.OperationLog) []zap.Field {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	appendString := func(key string, value string) {
		if value != "" {
			fields = append(fields, zap.String(key, value))
		}
	}
	appendString("account_id", entry.AccountID.String())
	appendString("streamer_id", entry.StreamerID.String())
	appendString("room_id", entry.RoomID.String())
	appendString("gift_id", entry.GiftID.String())
	appendString("transaction_id", entry.TransactionID.String())
	appendString("idempotency_key", entry.IdempotencyKey.String())
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	return fields
}
