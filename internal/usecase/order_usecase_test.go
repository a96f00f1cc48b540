package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	tx       *TxManagerMock
	orders   *OrderRepoMock
	items    *OrderItemRepoMock
	inv      *InventoryRepoMock
	products *ProductRepoMock
	history  *StatusHistoryRepoMock
	pay      *TokenizerMock
	pub      *PublisherMock
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		tx:       new(TxManagerMock),
		orders:   new(OrderRepoMock),
		items:    new(OrderItemRepoMock),
		inv:      new(InventoryRepoMock),
		products: new(ProductRepoMock),
		history:  new(StatusHistoryRepoMock),
		pay:      new(TokenizerMock),
		pub:      new(PublisherMock),
	}
	f.tx.Repos = &TxReposMock{
		orders:        f.orders,
		orderItems:    f.items,
		inventory:     f.inv,
		products:      f.products,
		statusHistory: f.history,
	}
	return f
}

func (f *orderFixture) usecase(stock config.StockPolicy, totals config.TotalsPolicy) *usecase.OrderUsecase {
	return usecase.NewOrderUsecase(
		f.tx, f.pay, f.pub,
		fixedClock{t: testNow},
		newTestIDs(),
		usecase.OrderPolicy{NumberPrefix: "TTT", Stock: stock, Totals: totals},
		nopLog,
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

// product 1 x2 @9.99 / 19.98 + 5.00 + 1.70 = 26.68
func validInput() usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		UserID: 7,
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 1, Quantity: 2, Price: nd("9.99")},
		},
		Subtotal:     nd("19.98"),
		ShippingCost: nd("5.00"),
		TaxAmount:    nd("1.70"),
		TotalAmount:  nd("26.68"),
		Shipping:     model.ShippingInfo{FirstName: "Jane", LastName: "Doe", City: "Springfield"},
	}
}

// =====================
// PlaceOrder: validation
// =====================

func TestOrderUsecase_PlaceOrder_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *usecase.PlaceOrderInput)
		want   string
	}{
		{"user_id", func(in *usecase.PlaceOrderInput) { in.UserID = 0 }, "invalid user_id"},
		{"empty items", func(in *usecase.PlaceOrderInput) { in.Items = nil }, "items are required"},
		{"product_id", func(in *usecase.PlaceOrderInput) { in.Items[0].ProductID = 0 }, "invalid product_id"},
		{"quantity", func(in *usecase.PlaceOrderInput) { in.Items[0].Quantity = 0 }, "quantity must be positive"},
		{"price", func(in *usecase.PlaceOrderInput) { in.Items[0].Price = nd("-1") }, "invalid price"},
		{"missing price", func(in *usecase.PlaceOrderInput) { in.Items[0].Price = decimal.NullDecimal{} }, "price is required"},
		{"price scale", func(in *usecase.PlaceOrderInput) { in.Items[0].Price = nd("9.999") }, "invalid price"},
		{"price overflow", func(in *usecase.PlaceOrderInput) { in.Items[0].Price = nd("100000000") }, "invalid price"},
		{"amount", func(in *usecase.PlaceOrderInput) { in.TaxAmount = nd("-0.01") }, "amounts must not be negative"},
		{"missing subtotal", func(in *usecase.PlaceOrderInput) { in.Subtotal = decimal.NullDecimal{} }, "subtotal is required"},
		{"missing total", func(in *usecase.PlaceOrderInput) { in.TotalAmount = decimal.NullDecimal{} }, "total_amount is required"},
		{"total scale", func(in *usecase.PlaceOrderInput) { in.TotalAmount = nd("26.685") }, "invalid total_amount"},
		{"total overflow", func(in *usecase.PlaceOrderInput) { in.TotalAmount = nd("123456789.00") }, "invalid total_amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture()
			uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

			in := validInput()
			tc.mutate(&in)

			out, err := uc.PlaceOrder(context.Background(), in)
			assert.Empty(t, out.OrderNumber)
			assertErrContains(t, err, tc.want)
			assertStatus(t, err, http.StatusBadRequest)

			// Txは開かない
			f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
			f.pub.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderUsecase_PlaceOrder_VerifyTotals_Mismatch(t *testing.T) {
	cases := map[string]struct {
		mutate func(in *usecase.PlaceOrderInput)
		want   string
	}{
		"subtotal": {func(in *usecase.PlaceOrderInput) { in.Subtotal = nd("10.00") }, "subtotal does not match items"},
		"total":    {func(in *usecase.PlaceOrderInput) { in.TotalAmount = nd("20.00") }, "total_amount does not match"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrderFixture()
			uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyVerify)

			in := validInput()
			tc.mutate(&in)

			_, err := uc.PlaceOrder(context.Background(), in)
			assertErrContains(t, err, tc.want)
			assertStatus(t, err, http.StatusBadRequest)
			f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
		})
	}
}

func TestOrderUsecase_PlaceOrder_TrustTotals_StoresAsSent(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	in := validInput()
	in.TotalAmount = nd("1.00")

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.TotalAmount.Equal(dec("1.00"))
	})).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.inv.On("DecreaseStock", mock.Anything, int64(1), int64(2)).Return(nil)
	f.pub.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.PlaceOrder(context.Background(), in)
	assert.NoError(t, err)
	f.orders.AssertExpectations(t)
}

// =====================
// PlaceOrder: success
// =====================

func TestOrderUsecase_PlaceOrder_Success(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyVerify)

	in := validInput()
	in.Items = append(in.Items, usecase.PlaceOrderItemInput{ProductID: 2, Quantity: 1, Price: nd("14.50")})
	in.Subtotal = nd("34.48")
	in.TotalAmount = nd("41.18")
	in.OrderNotes = "leave at door"

	wantNumber := "TTT-20261017-019A1F3C7B2E33445566"

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == 7 &&
			o.OrderNumber == wantNumber &&
			o.Status == model.OrderStatusPending &&
			o.Subtotal.Equal(dec("34.48")) &&
			o.ShippingCost.Equal(dec("5.00")) &&
			o.TaxAmount.Equal(dec("1.70")) &&
			o.TotalAmount.Equal(dec("41.18")) &&
			o.Shipping.FirstName == "Jane" &&
			o.OrderNotes == "leave at door" &&
			o.Payment.Token == "" &&
			o.CreatedAt.Equal(testNow)
	})).Return(int64(10), nil)

	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.products.On("FindByID", mock.Anything, int64(2)).Return(model.Product{ID: 2, Name: "Puzzle"}, nil)

	// 商品名はスナップショット、価格はリクエストの値
	f.items.On("Create", mock.Anything, mock.MatchedBy(func(it model.OrderItem) bool {
		return it.OrderID == 10 && it.ProductID == 1 && it.ProductName == "Teddy Bear" && it.Quantity == 2 && it.Price.Equal(dec("9.99"))
	})).Return(int64(100), nil)
	f.items.On("Create", mock.Anything, mock.MatchedBy(func(it model.OrderItem) bool {
		return it.OrderID == 10 && it.ProductID == 2 && it.ProductName == "Puzzle" && it.Quantity == 1 && it.Price.Equal(dec("14.50"))
	})).Return(int64(101), nil)

	f.inv.On("DecreaseStock", mock.Anything, int64(1), int64(2)).Return(nil)
	f.inv.On("DecreaseStock", mock.Anything, int64(2), int64(1)).Return(nil)

	f.pub.On("PublishOrderPlaced", mock.Anything, mock.MatchedBy(func(e usecase.OrderPlacedEvent) bool {
		return e.OrderID == 10 &&
			e.OrderNumber == wantNumber &&
			e.UserID == 7 &&
			e.EventID == "019a1f3c-7b2f-7d5e-8b9c-aabbccddeeff" &&
			len(e.Items) == 2 &&
			e.TotalAmount.Equal(dec("41.18"))
	})).Return(nil)

	out, err := uc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.OrderID)
	assert.Equal(t, wantNumber, out.OrderNumber)

	f.tx.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.items.AssertExpectations(t)
	f.inv.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.pub.AssertExpectations(t)
	f.inv.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_TokenizesPayment(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	in := validInput()
	in.Payment = &usecase.PaymentInput{CardNumber: "4242 4242 4242 4242", ExpiryDate: "12/28", CVV: "123", CardholderName: "Jane Doe"}

	ref := model.PaymentRef{Token: "tok_abc", Last4: "4242", ExpiryDate: "12/28", CardholderName: "Jane Doe"}
	f.pay.On("Tokenize", mock.Anything, *in.Payment).Return(ref, nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Payment == ref
	})).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.inv.On("DecreaseStock", mock.Anything, int64(1), int64(2)).Return(nil)
	f.pub.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	f.pay.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestOrderUsecase_PlaceOrder_PaymentErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		msg    string
	}{
		"invalid card": {usecase.ErrInvalidPayment, http.StatusBadRequest, "invalid payment info"},
		"service down": {errors.New("timeout"), http.StatusBadGateway, "payment service unavailable"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrderFixture()
			uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

			in := validInput()
			in.Payment = &usecase.PaymentInput{CardNumber: "12"}
			f.pay.On("Tokenize", mock.Anything, mock.Anything).Return(model.PaymentRef{}, tc.err)

			_, err := uc.PlaceOrder(context.Background(), in)
			assertErrContains(t, err, tc.msg)
			assertStatus(t, err, tc.status)
			f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
		})
	}
}

func TestOrderUsecase_PlaceOrder_PublishFailure_StillSucceeds(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.inv.On("DecreaseStock", mock.Anything, int64(1), int64(2)).Return(nil)
	f.pub.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	out, err := uc.PlaceOrder(context.Background(), validInput())
	assert.NoError(t, err)
	assert.Equal(t, int64(10), out.OrderID)
}

// =====================
// PlaceOrder: failures inside the transaction
// =====================

func TestOrderUsecase_PlaceOrder_ProductNotFound(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	in := validInput()
	in.Items[0].ProductID = 99999

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(99999)).Return(model.Product{}, repo.ErrNotFound)

	out, err := uc.PlaceOrder(context.Background(), in)
	assert.Equal(t, usecase.PlaceOrderOutput{}, out)
	assertErrContains(t, err, "product 99999 not found")
	assertStatus(t, err, http.StatusNotFound)

	f.items.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.inv.AssertNotCalled(t, "DecreaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_DecreaseStock_ProductGone(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.inv.On("DecreaseStock", mock.Anything, int64(1), int64(2)).Return(repo.ErrNotFound)

	_, err := uc.PlaceOrder(context.Background(), validInput())
	assertStatus(t, err, http.StatusNotFound)
}

func TestOrderUsecase_PlaceOrder_RejectInsufficientStock(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyRejectInsufficient, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(10), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Teddy Bear"}, nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(2)).Return(false, nil)

	_, err := uc.PlaceOrder(context.Background(), validInput())
	assertErrContains(t, err, "insufficient stock for product 1")
	assertStatus(t, err, http.StatusConflict)

	f.inv.AssertNotCalled(t, "DecreaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_PersistenceError_IsGeneric(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("duplicate key value violates unique constraint"))

	_, err := uc.PlaceOrder(context.Background(), validInput())
	assertStatus(t, err, http.StatusInternalServerError)
	assertErrContains(t, err, "failed to create order")
	assert.NotContains(t, err.Error(), "duplicate key")
}

// =====================
// GetOrder / ListUserOrders
// =====================

func TestOrderUsecase_GetOrder_InvalidID(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	_, err := uc.GetOrder(context.Background(), 0)
	assertErrContains(t, err, "invalid id")
}

func TestOrderUsecase_GetOrder_NotFound(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{}, repo.ErrNotFound)

	_, err := uc.GetOrder(context.Background(), 5)
	assertErrContains(t, err, "Order not found")
	assertStatus(t, err, http.StatusNotFound)
}

func TestOrderUsecase_GetOrder_Success(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
		ID:          5,
		OrderNumber: "TTT-20261017-X",
		Status:      model.OrderStatusPending,
		TotalAmount: dec("26.68"),
		Payment:     model.PaymentRef{Token: "tok_secret", Last4: "4242"},
	}, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderItem{
		{ID: 1, OrderID: 5, ProductID: 1, ProductName: "Teddy Bear", Quantity: 2, Price: dec("9.99")},
	}, nil)
	f.history.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderStatusHistory{
		{OrderID: 5, FromStatus: model.OrderStatusPending, ToStatus: model.OrderStatusProcessing, CreatedAt: testNow},
	}, nil)

	out, err := uc.GetOrder(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "TTT-20261017-X", out.OrderNumber)
	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, "4242", out.Payment.Last4)
	assert.Equal(t, "2x Teddy Bear", out.ItemsSummary)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "19.98", out.Items[0].TotalPrice.StringFixed(2))

	require.Len(t, out.History, 1)
	assert.Equal(t, "pending", out.History[0].FromStatus)
	assert.Equal(t, "processing", out.History[0].ToStatus)
	assert.True(t, testNow.Equal(out.History[0].ChangedAt))
}

func TestOrderUsecase_GetOrder_HistoryDBError(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{ID: 5, Status: model.OrderStatusPending}, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderItem{}, nil)
	f.history.On("ListByOrderID", mock.Anything, int64(5)).Return(nil, errors.New("db down"))

	_, err := uc.GetOrder(context.Background(), 5)
	assertErrContains(t, err, "db error")
	assertStatus(t, err, http.StatusInternalServerError)
}

func TestOrderUsecase_ListUserOrders_InvalidUser(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	outs, err := uc.ListUserOrders(context.Background(), 0)
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid user_id")
}

func TestOrderUsecase_ListUserOrders_NewestFirstWithSummary(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	// リポジトリが新しい順で返す
	f.orders.On("ListByUserID", mock.Anything, int64(7)).Return([]model.Order{
		{ID: 2, UserID: 7, Status: model.OrderStatusPending},
		{ID: 1, UserID: 7, Status: model.OrderStatusShipped},
	}, nil)
	f.items.On("ListByOrderIDs", mock.Anything, []int64{2, 1}).Return(map[int64][]model.OrderItem{
		2: {
			{OrderID: 2, ProductID: 1, ProductName: "Teddy Bear", Quantity: 2, Price: dec("9.99")},
			{OrderID: 2, ProductID: 2, ProductName: "Puzzle", Quantity: 1, Price: dec("14.50")},
		},
		1: {
			{OrderID: 1, ProductID: 2, ProductName: "Puzzle", Quantity: 3, Price: dec("14.50")},
		},
	}, nil)

	outs, err := uc.ListUserOrders(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, int64(2), outs[0].ID)
	assert.Equal(t, "2x Teddy Bear, 1x Puzzle", outs[0].ItemsSummary)
	assert.Equal(t, int64(1), outs[1].ID)
	assert.Equal(t, "3x Puzzle", outs[1].ItemsSummary)

	f.items.AssertExpectations(t)
}

func TestOrderUsecase_ListUserOrders_DBError(t *testing.T) {
	f := newOrderFixture()
	uc := f.usecase(config.StockPolicyAllowOversell, config.TotalsPolicyTrust)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("ListByUserID", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

	_, err := uc.ListUserOrders(context.Background(), 7)
	assertErrContains(t, err, "db error")
}
