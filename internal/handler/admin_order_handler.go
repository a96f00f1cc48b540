package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

// idはbody版のみ使う（path版は:idから取る）
type OrderStatusUpdateRequest struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// 一覧は OrderHandler.query から呼ばれる
func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/orders")

	g.PUT("", h.updateStatusFromBody)
	g.PUT("/:id/status", h.updateStatus)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid limit")
		}
		limit = l
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid offset")
		}
		offset = o
	}

	var userID *int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid user_id")
		}
		userID = &id
	}

	out, err := h.uc.List(c.Request().Context(), usecase.AdminListOrdersInput{
		Limit:  limit,
		Offset: offset,
		Status: c.QueryParam("status"),
		UserID: userID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, OrderListResponse{Success: true, Orders: out})
}

// PUT /api/orders {id, status}
func (h *AdminOrderHandler) updateStatusFromBody(c echo.Context) error {
	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.ID == 0 || strings.TrimSpace(req.Status) == "" {
		return fail(c, http.StatusBadRequest, "Missing order ID or status")
	}

	return h.applyStatus(c, req.ID, req.Status)
}

// PUT /api/orders/:id/status {status}
func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Status) == "" {
		return fail(c, http.StatusBadRequest, "Missing order ID or status")
	}

	return h.applyStatus(c, orderID, req.Status)
}

func (h *AdminOrderHandler) applyStatus(c echo.Context, orderID int64, status string) error {
	if err := h.uc.UpdateStatus(
		c.Request().Context(),
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: status},
	); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Status updated"})
}
