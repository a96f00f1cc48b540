package usecase

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// 時刻順に並ぶUUID（v7）。注文番号のトークンにも使う。
type UUIDv7Generator struct{}

func (UUIDv7Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// チェックアウトフォームのカード情報
type PaymentInput struct {
	CardNumber     string
	ExpiryDate     string
	CVV            string
	CardholderName string
}

var ErrInvalidPayment = errors.New("invalid payment info")

// カード情報をトークンに置き換える外部サービス。
// 返り値にはカード番号・CVVを含めない。
type PaymentTokenizer interface {
	Tokenize(ctx context.Context, in PaymentInput) (model.PaymentRef, error)
}

type OrderEventItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedEvent struct {
	EventID     string           `json:"event_id"`
	OrderID     int64            `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	UserID      int64            `json:"user_id"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Items       []OrderEventItem `json:"items"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

type OrderStatusChangedEvent struct {
	EventID    string            `json:"event_id"`
	OrderID    int64             `json:"order_id"`
	FromStatus model.OrderStatus `json:"from_status"`
	ToStatus   model.OrderStatus `json:"to_status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// commit後に呼ばれる。失敗しても注文は取り消さない。
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, e OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, e OrderStatusChangedEvent) error
}
