// Package testutil はテスト用のDBを用意する。
package testutil

import (
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/db"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB はテストごとに独立したインメモリSQLiteを返す（マイグレーション済み）。
// 接続は1本に絞る（:memory: は接続ごとに別DBになるため）。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// SeedProduct は在庫つきの商品を1件作る。
func SeedProduct(t *testing.T, gdb *gorm.DB, name string, price string, stock int64) model.Product {
	t.Helper()

	p := model.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// Stock は商品の現在の在庫数を返す。
func Stock(t *testing.T, gdb *gorm.DB, productID int64) int64 {
	t.Helper()

	var p model.Product
	if err := gdb.Unscoped().First(&p, productID).Error; err != nil {
		t.Fatalf("load product %d: %v", productID, err)
	}
	return p.StockQuantity
}

// Count はテーブルの行数を返す。
func Count(t *testing.T, gdb *gorm.DB, m interface{}) int64 {
	t.Helper()

	var n int64
	if err := gdb.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
