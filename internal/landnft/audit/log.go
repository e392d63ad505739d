package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the structured log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("operation", e.Operation),
		zap.String("phase", string(e.Phase)),
		zap.String("token_id", e.TokenID),
	}
	if len(e.Serials) > 0 {
		fields = append(fields, zap.Int64s("serials", e.Serials))
	}
	if e.From != "" || e.To != "" {
		fields = append(fields, zap.String("from", e.From), zap.String("to", e.To))
	}
	if e.Reference != "" {
		fields = append(fields, zap.String("reference", e.Reference))
	}
	if e.Phase == PhaseOutcome {
		fields = append(fields,
			zap.String("outcome", e.Outcome),
			zap.String("receipt_status", e.ReceiptStatus),
			zap.String("transaction_id", e.TransactionID))
	}
	if e.ErrorKind != "" {
		fields = append(fields, zap.String("error_kind", e.ErrorKind), zap.String("error", e.Error))
	}
	s.logger.Info("Audit event", fields...)
	return nil
}
