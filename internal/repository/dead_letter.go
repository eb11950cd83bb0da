package repository

import (
	"context"
	"storecore/internal/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeadLetterRepository interface {
	Create(ctx context.Context, letter *model.DeadLetter) error
	ListUnresolved(ctx context.Context, limit int) ([]*model.DeadLetter, error)
	ResolveForOrder(ctx context.Context, kind model.DeadLetterKind, orderID uint) error
}

type deadLetterRepoImpl struct {
	db *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &deadLetterRepoImpl{db: db}
}

func (r *deadLetterRepoImpl) Create(ctx context.Context, letter *model.DeadLetter) error {
	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(letter).Error
}

func (r *deadLetterRepoImpl) ListUnresolved(ctx context.Context, limit int) ([]*model.DeadLetter, error) {
	var letters []*model.DeadLetter
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at").
		Limit(limit).
		Find(&letters).Error
	if err != nil {
		return nil, err
	}
	return letters, nil
}

func (r *deadLetterRepoImpl) ResolveForOrder(ctx context.Context, kind model.DeadLetterKind, orderID uint) error {
	return r.db.WithContext(ctx).Model(&model.DeadLetter{}).
		Where("kind = ? AND order_id = ? AND resolved_at IS NULL", kind, orderID).
		Update("resolved_at", time.Now()).Error
}
