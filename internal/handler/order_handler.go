package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	uc    *usecase.OrderUsecase
	admin *AdminOrderHandler
}

func NewOrderHandler(uc *usecase.OrderUsecase, admin *AdminOrderHandler) *OrderHandler {
	return &OrderHandler{uc: uc, admin: admin}
}

type OrderItemRequest struct {
	ProductID int64               `json:"product_id"`
	Quantity  int64               `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
}

// チェックアウトフォームのカード情報（そのまま保存はしない）
type PaymentInfoRequest struct {
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
}

// 金額は数値でも文字列でも受け取れる。未指定はValid=falseのまま渡す。
type OrderCreateRequest struct {
	UserID       int64               `json:"user_id"`
	Items        []OrderItemRequest  `json:"items"`
	Subtotal     decimal.NullDecimal `json:"subtotal"`
	ShippingCost decimal.NullDecimal `json:"shipping_cost"`
	TaxAmount    decimal.NullDecimal `json:"tax_amount"`
	TotalAmount  decimal.NullDecimal `json:"total_amount"`
	ShippingInfo model.ShippingInfo  `json:"shipping_info"`
	PaymentInfo  *PaymentInfoRequest `json:"payment_info"`
	OrderNotes   string              `json:"order_notes"`
}

type OrderCreateResponse struct {
	Success     bool   `json:"success"`
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Message     string `json:"message"`
}

type OrderDetailResponse struct {
	Success bool                `json:"success"`
	Order   usecase.OrderOutput `json:"order"`
}

type OrderListResponse struct {
	Success bool                  `json:"success"`
	Orders  []usecase.OrderOutput `json:"orders"`
}

// /api/orders を登録。POSTだけレート制限をかける。
func (h *OrderHandler) RegisterRoutes(e *echo.Echo, createMW ...echo.MiddlewareFunc) {
	g := e.Group("/api/orders")

	g.POST("", h.create, createMW...)
	g.GET("", h.query)
	g.GET("/:id", h.detail)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	in := usecase.PlaceOrderInput{
		UserID:       req.UserID,
		Items:        make([]usecase.PlaceOrderItemInput, 0, len(req.Items)),
		Subtotal:     req.Subtotal,
		ShippingCost: req.ShippingCost,
		TaxAmount:    req.TaxAmount,
		TotalAmount:  req.TotalAmount,
		Shipping:     req.ShippingInfo,
		OrderNotes:   req.OrderNotes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.PlaceOrderItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	if req.PaymentInfo != nil {
		in.Payment = &usecase.PaymentInput{
			CardNumber:     req.PaymentInfo.CardNumber,
			ExpiryDate:     req.PaymentInfo.ExpiryDate,
			CVV:            req.PaymentInfo.CVV,
			CardholderName: req.PaymentInfo.CardholderName,
		}
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, OrderCreateResponse{
		Success:     true,
		OrderID:     out.OrderID,
		OrderNumber: out.OrderNumber,
		Message:     "Order created successfully",
	})
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	return h.writeDetail(c, id)
}

// ?id= / ?user_id= / ?limit=&offset=&status= をクエリで振り分ける
func (h *OrderHandler) query(c echo.Context) error {
	if v := c.QueryParam("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid id")
		}
		return h.writeDetail(c, id)
	}

	if isAdminListQuery(c) {
		return h.admin.list(c)
	}

	if v := c.QueryParam("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid user_id")
		}

		out, err := h.uc.ListUserOrders(c.Request().Context(), userID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, OrderListResponse{Success: true, Orders: out})
	}

	return h.admin.list(c)
}

func (h *OrderHandler) writeDetail(c echo.Context, id int64) error {
	out, err := h.uc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderDetailResponse{Success: true, Order: out})
}

func isAdminListQuery(c echo.Context) bool {
	return c.QueryParam("limit") != "" || c.QueryParam("offset") != "" || c.QueryParam("status") != ""
}
