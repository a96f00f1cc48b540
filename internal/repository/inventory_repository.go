package repository

import (
	"context"
)

type InventoryRepository interface {
	// 在庫を無条件に減算（マイナス在庫も許す）
	DecreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
