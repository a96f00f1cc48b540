package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ステータス変更履歴の保存・取得
type OrderStatusHistoryRepository interface {
	Create(ctx context.Context, h model.OrderStatusHistory) error

	//古い順
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
}
