package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品はカタログ側の持ち物。注文処理ではIDで参照するだけ。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
