package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 管理者用の注文一覧の条件
type OrderListFilter struct {
	Limit  int
	Offset int
	Status string
	UserID *int64
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 新しい順（created_at desc, id desc）
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	//管理者用の注文一覧
	List(ctx context.Context, f OrderListFilter) ([]model.Order, error)
}
