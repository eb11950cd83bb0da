package service

import (
	"context"
	"storecore/internal/metrics"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storecore/internal/service")

// sideEffects runs the work that happens after a commit and must never undo it.
type sideEffects struct {
	notifier       notify.Notifier
	deadLetterRepo repository.DeadLetterRepository
	logger         *zap.Logger
}

func (s *sideEffects) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		s.logger.Warn("enqueue notification",
			zap.String("kind", string(n.Kind())),
			zap.String("key", n.Key()),
			zap.Error(err),
		)
		s.deadLetter(ctx, model.DeadLetterNotification, nil, string(n.Kind())+":"+n.Key(), err)
	}
}

// deadLetter records a failure that cannot be returned to the caller.
func (s *sideEffects) deadLetter(ctx context.Context, kind model.DeadLetterKind, orderID *uint, reference string, cause error) {
	metrics.RecordDeadLetter(string(kind))

	// The request may already be cancelled; the record must still be written.
	ctx = context.WithoutCancel(ctx)
	err := s.deadLetterRepo.Create(ctx, &model.DeadLetter{
		Kind:      kind,
		OrderID:   orderID,
		Reference: reference,
		Error:     cause.Error(),
	})
	if err != nil {
		s.logger.Error("write dead letter",
			zap.String("kind", string(kind)),
			zap.String("reference", reference),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

func (s *sideEffects) stockAlert(ctx context.Context, entry *model.StockEntry) {
	kind := "low"
	if entry.Oversold() {
		kind = "oversold"
	}
	metrics.RecordStockAlert(kind)
	s.logger.Warn("stock alert",
		zap.String("product_id", entry.ProductID),
		zap.String("branch_id", entry.BranchID),
		zap.Int64("quantity", entry.Quantity),
		zap.Int64("threshold", entry.LowStockThreshold),
	)
	s.notify(ctx, notify.StockAlert{
		ProductID: entry.ProductID,
		BranchID:  entry.BranchID,
		Quantity:  entry.Quantity,
		Threshold: entry.LowStockThreshold,
		Oversold:  entry.Oversold(),
	})
}
