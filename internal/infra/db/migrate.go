package db

import (
	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

// 注文まわりのテーブルを作成・更新する
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusHistory{},
	)
}
