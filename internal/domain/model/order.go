package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 管理画面から設定できるステータス
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// 終端ステータス（これ以上変更できない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// 配送先（ordersテーブルに shipping_ プレフィックスで展開）
type ShippingInfo struct {
	FirstName string `gorm:"type:varchar(100)" json:"firstName"`
	LastName  string `gorm:"type:varchar(100)" json:"lastName"`
	Email     string `gorm:"type:varchar(255)" json:"email"`
	Phone     string `gorm:"type:varchar(30)" json:"phone"`
	Address   string `gorm:"type:varchar(255)" json:"address"`
	City      string `gorm:"type:varchar(100)" json:"city"`
	State     string `gorm:"type:varchar(100)" json:"state"`
	ZipCode   string `gorm:"type:varchar(20)" json:"zipCode"`
}

// 決済の参照情報。カード番号・CVVは保存しない。
type PaymentRef struct {
	Token          string `gorm:"type:varchar(64)" json:"token"`
	Last4          string `gorm:"type:varchar(4)" json:"last4"`
	ExpiryDate     string `gorm:"type:varchar(10)" json:"expiry_date"`
	CardholderName string `gorm:"type:varchar(255)" json:"cardholder_name"`
}

type Order struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64           `gorm:"not null;index" json:"user_id"`
	OrderNumber  string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	Status       OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_cost"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Shipping     ShippingInfo    `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_info"`
	Payment      PaymentRef      `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	OrderNotes   string          `gorm:"type:text" json:"order_notes"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`

	// 注文削除時は明細もまとめて削除
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}
