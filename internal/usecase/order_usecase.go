package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 注文確定時のふるまい（設定から渡す）
type OrderPolicy struct {
	NumberPrefix string
	Stock        config.StockPolicy
	Totals       config.TotalsPolicy
}

func PolicyFromConfig(c config.OrdersConfig) OrderPolicy {
	return OrderPolicy{
		NumberPrefix: c.NumberPrefix,
		Stock:        c.StockPolicy,
		Totals:       c.TotalsPolicy,
	}
}

type OrderUsecase struct {
	tx       repo.TransactionManager
	payments PaymentTokenizer
	events   OrderEventPublisher
	clock    Clock
	ids      IDGenerator
	policy   OrderPolicy
	log      *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	payments PaymentTokenizer,
	events OrderEventPublisher,
	clock Clock,
	ids IDGenerator,
	policy OrderPolicy,
	log *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:       tx,
		payments: payments,
		events:   events,
		clock:    clock,
		ids:      ids,
		policy:   policy,
		log:      log,
	}
}

// 金額は未指定(Valid=false)とゼロを区別する
type PlaceOrderItemInput struct {
	ProductID int64
	Quantity  int64
	Price     decimal.NullDecimal
}

type PlaceOrderInput struct {
	UserID       int64
	Items        []PlaceOrderItemInput
	Subtotal     decimal.NullDecimal
	ShippingCost decimal.NullDecimal
	TaxAmount    decimal.NullDecimal
	TotalAmount  decimal.NullDecimal
	Shipping     model.ShippingInfo
	Payment      *PaymentInput
	OrderNotes   string
}

type PlaceOrderOutput struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

type OrderItemOutput struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type PaymentOutput struct {
	Last4          string `json:"last4"`
	CardholderName string `json:"cardholder_name"`
}

type StatusHistoryOutput struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

type OrderOutput struct {
	ID           int64              `json:"id"`
	OrderNumber  string             `json:"order_number"`
	UserID       int64              `json:"user_id"`
	Status       string             `json:"status"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	ShippingCost decimal.Decimal    `json:"shipping_cost"`
	TaxAmount    decimal.Decimal    `json:"tax_amount"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	ShippingInfo model.ShippingInfo `json:"shipping_info"`
	Payment      PaymentOutput      `json:"payment"`
	OrderNotes   string             `json:"order_notes"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Items        []OrderItemOutput  `json:"items"`
	ItemsSummary string             `json:"items_summary"`

	// 単体取得のときだけ埋める
	History []StatusHistoryOutput `json:"history,omitempty"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	//書き込み前にチェック（Txは開かない）
	if err := u.validatePlaceOrder(in); err != nil {
		return PlaceOrderOutput{}, err
	}

	//カード情報はトークン化してから持つ
	var payment model.PaymentRef
	if in.Payment != nil && strings.TrimSpace(in.Payment.CardNumber) != "" {
		ref, err := u.payments.Tokenize(ctx, *in.Payment)
		if errors.Is(err, ErrInvalidPayment) {
			return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment info")
		}
		if err != nil {
			u.log.Error("payment tokenization failed", zap.Int64("user_id", in.UserID), zap.Error(err))
			return PlaceOrderOutput{}, NewHTTPError(http.StatusBadGateway, "payment service unavailable")
		}
		payment = ref
	}

	now := u.clock.Now()
	orderNumber := NewOrderNumber(u.policy.NumberPrefix, now, u.ids.NewID())

	var out PlaceOrderOutput

	//注文処理はトランザクション（途中で失敗したら全部なかったことにする）
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:       in.UserID,
			OrderNumber:  orderNumber,
			Status:       model.OrderStatusPending,
			Subtotal:     in.Subtotal.Decimal,
			ShippingCost: in.ShippingCost.Decimal,
			TaxAmount:    in.TaxAmount.Decimal,
			TotalAmount:  in.TotalAmount.Decimal,
			Shipping:     in.Shipping,
			Payment:      payment,
			OrderNotes:   in.OrderNotes,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, it := range in.Items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %d not found", it.ProductID))
			}
			if err != nil {
				return fmt.Errorf("find product %d: %w", it.ProductID, err)
			}

			//価格はリクエスト時点の値をそのまま保存
			if _, err := r.OrderItems().Create(ctx, model.OrderItem{
				OrderID:     orderID,
				ProductID:   it.ProductID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				Price:       it.Price.Decimal,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("create order item for product %d: %w", it.ProductID, err)
			}

			if err := u.decreaseStock(ctx, r, it); err != nil {
				return err
			}
		}

		out = PlaceOrderOutput{OrderID: orderID, OrderNumber: orderNumber}
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			u.log.Warn("order rejected",
				zap.String("order_number", orderNumber),
				zap.Int64("user_id", in.UserID),
				zap.String("reason", he.Message))
			return PlaceOrderOutput{}, he
		}
		u.log.Error("failed to create order",
			zap.String("order_number", orderNumber),
			zap.Int64("user_id", in.UserID),
			zap.Error(err))
		return PlaceOrderOutput{}, NewHTTPError(http.StatusInternalServerError, "failed to create order")
	}

	u.publishPlaced(ctx, out, in, now)

	u.log.Info("order created",
		zap.Int64("order_id", out.OrderID),
		zap.String("order_number", out.OrderNumber),
		zap.Int64("user_id", in.UserID),
		zap.String("total_amount", in.TotalAmount.Decimal.StringFixed(2)))

	return out, nil
}

func (u *OrderUsecase) validatePlaceOrder(in PlaceOrderInput) error {
	if in.UserID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}
	if len(in.Items) == 0 {
		return NewHTTPError(http.StatusBadRequest, "items are required")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity <= 0 {
			return NewHTTPError(http.StatusBadRequest, "quantity must be positive")
		}
		if !it.Price.Valid {
			return NewHTTPError(http.StatusBadRequest, "price is required")
		}
		if it.Price.Decimal.IsNegative() || !fitsAmountColumn(it.Price.Decimal) {
			return NewHTTPError(http.StatusBadRequest, "invalid price")
		}
	}

	amounts := []struct {
		name string
		v    decimal.NullDecimal
	}{
		{"subtotal", in.Subtotal},
		{"shipping_cost", in.ShippingCost},
		{"tax_amount", in.TaxAmount},
		{"total_amount", in.TotalAmount},
	}
	for _, a := range amounts {
		if !a.v.Valid {
			return NewHTTPError(http.StatusBadRequest, a.name+" is required")
		}
		if a.v.Decimal.IsNegative() {
			return NewHTTPError(http.StatusBadRequest, "amounts must not be negative")
		}
		if !fitsAmountColumn(a.v.Decimal) {
			return NewHTTPError(http.StatusBadRequest, "invalid "+a.name)
		}
	}
	if u.policy.Totals == config.TotalsPolicyVerify {
		return verifyTotals(in)
	}
	return nil
}

// 在庫減算。STOCK_POLICYで無条件/在庫チェック付きを切り替える。
func (u *OrderUsecase) decreaseStock(ctx context.Context, r repo.TxRepos, it PlaceOrderItemInput) error {
	if u.policy.Stock == config.StockPolicyRejectInsufficient {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrease stock for product %d: %w", it.ProductID, err)
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, fmt.Sprintf("insufficient stock for product %d", it.ProductID))
		}
		return nil
	}

	err := r.Inventory().DecreaseStock(ctx, it.ProductID, it.Quantity)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %d not found", it.ProductID))
	}
	if err != nil {
		return fmt.Errorf("decrease stock for product %d: %w", it.ProductID, err)
	}
	return nil
}

func (u *OrderUsecase) publishPlaced(ctx context.Context, out PlaceOrderOutput, in PlaceOrderInput, now time.Time) {
	items := make([]OrderEventItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price.Decimal})
	}

	if err := u.events.PublishOrderPlaced(ctx, OrderPlacedEvent{
		EventID:     u.ids.NewID(),
		OrderID:     out.OrderID,
		OrderNumber: out.OrderNumber,
		UserID:      in.UserID,
		TotalAmount: in.TotalAmount.Decimal,
		Items:       items,
		OccurredAt:  now,
	}); err != nil {
		u.log.Error("failed to publish order placed event",
			zap.Int64("order_id", out.OrderID),
			zap.Error(err))
	}
}

func (u *OrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "Order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		hist, err := r.StatusHistory().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		out.History = toHistoryOutput(hist)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// ユーザーの注文を新しい順で全部返す（明細つき）
func (u *OrderUsecase) ListUserOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs, err = withItems(ctx, r, orders)
		return err
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// 明細をまとめて取ってOrderOutputにする
func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, itemsByOrder[o.ID]))
	}
	return outs, nil
}

// "2x Teddy Bear, 1x Puzzle"
func itemsSummary(items []model.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.ProductName))
	}
	return strings.Join(parts, ", ")
}

func toHistoryOutput(hist []model.OrderStatusHistory) []StatusHistoryOutput {
	outs := make([]StatusHistoryOutput, 0, len(hist))
	for _, h := range hist {
		outs = append(outs, StatusHistoryOutput{
			FromStatus: string(h.FromStatus),
			ToStatus:   string(h.ToStatus),
			ChangedAt:  h.CreatedAt,
		})
	}
	return outs
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			TotalPrice:  it.LineTotal(),
		})
	}

	return OrderOutput{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		UserID:       o.UserID,
		Status:       string(o.Status),
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		TaxAmount:    o.TaxAmount,
		TotalAmount:  o.TotalAmount,
		ShippingInfo: o.Shipping,
		Payment: PaymentOutput{
			Last4:          o.Payment.Last4,
			CardholderName: o.Payment.CardholderName,
		},
		OrderNotes:   o.OrderNotes,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Items:        outItems,
		ItemsSummary: itemsSummary(items),
	}
}
