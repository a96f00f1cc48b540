package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Orders      *handler.OrderHandler
	AdminOrders *handler.AdminOrderHandler
	Health      *handler.HealthHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)

	//注文作成だけレート制限
	h.Orders.RegisterRoutes(e, middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	h.AdminOrders.RegisterRoutes(e)
}
