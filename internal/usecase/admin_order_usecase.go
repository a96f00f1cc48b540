package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events OrderEventPublisher
	clock  Clock
	ids    IDGenerator
	log    *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events OrderEventPublisher, clock Clock, ids IDGenerator, log *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, events: events, clock: clock, ids: ids, log: log}
}

type AdminListOrdersInput struct {
	Limit  int
	Offset int
	Status string
	UserID *int64
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧（新しい順、limit/offset）
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminListOrdersInput) ([]OrderOutput, error) {
	// limit/offsetの最低限チェック
	if in.Limit < 1 || in.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}
	status := strings.TrimSpace(in.Status)
	if status != "" {
		if _, ok := model.ParseOrderStatus(status); !ok {
			return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().List(ctx, repo.OrderListFilter{
			Limit:  in.Limit,
			Offset: in.Offset,
			Status: status,
			UserID: in.UserID,
		})
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

// ステータス更新（cancelledなら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, orderID int64, in AdminUpdateOrderStatusInput) error {
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var (
		before  model.OrderStatus
		changed bool
	)
	now := u.clock.Now()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "Order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// すでに同じなら何もしない
		if o.Status == newStatus {
			return nil
		}
		// 終端ガード
		if o.Status.IsTerminal() {
			return NewHTTPError(http.StatusConflict, "cannot change "+string(o.Status)+" order")
		}

		// cancelledのときだけ在庫戻し
		if newStatus == model.OrderStatusCancelled {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, it := range items {
				err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity)
				if errors.Is(err, repo.ErrNotFound) {
					//カタログから消えた商品は戻し先がない
					u.log.Warn("skip restock for missing product",
						zap.Int64("order_id", orderID),
						zap.Int64("product_id", it.ProductID))
					continue
				}
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "Order not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.StatusHistory().Create(ctx, model.OrderStatusHistory{
			OrderID:    orderID,
			FromStatus: o.Status,
			ToStatus:   newStatus,
			CreatedAt:  now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		before = o.Status
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		if err := u.events.PublishOrderStatusChanged(ctx, OrderStatusChangedEvent{
			EventID:    u.ids.NewID(),
			OrderID:    orderID,
			FromStatus: before,
			ToStatus:   newStatus,
			OccurredAt: now,
		}); err != nil {
			u.log.Error("failed to publish order status event", zap.Int64("order_id", orderID), zap.Error(err))
		}
		u.log.Info("order status updated",
			zap.Int64("order_id", orderID),
			zap.String("from", string(before)),
			zap.String("to", string(newStatus)))
	}
	return nil
}
