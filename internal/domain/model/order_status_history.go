package model

import "time"

// 注文ステータス変更の履歴。
// 「どの注文が」「何から」「何に」変わったかを残す。
type OrderStatusHistory struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64       `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	CreatedAt  time.Time   `gorm:"not null;index" json:"created_at"`
}
