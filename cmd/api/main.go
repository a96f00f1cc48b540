package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/messaging"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"go.uber.org/zap"
)

type eventPublisher interface {
	usecase.OrderEventPublisher
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//設定（.envがあれば先に読む）
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	//DB接続
	gormDB, err := db.Connect(cfg.DB, log)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	//イベント送信（ブローカー未設定なら捨てる）
	var events eventPublisher = messaging.NopOrderPublisher{}
	if cfg.KafkaEnabled() {
		events = messaging.NewKafkaOrderPublisher(cfg.Kafka)
		log.Info("kafka publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.OrderTopic))
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	//usecaseに渡す部品
	txm := infraRepo.NewTxManagerGorm(gormDB)
	clock := usecase.SystemClock{}
	idGen := usecase.UUIDv7Generator{}

	orderUC := usecase.NewOrderUsecase(
		txm,
		payment.NewReferenceTokenizer(),
		events,
		clock,
		idGen,
		usecase.PolicyFromConfig(cfg.Orders),
		log,
	)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, events, clock, idGen, log)

	//Handler生成
	adminOrderH := handler.NewAdminOrderHandler(adminOrderUC)
	e := server.New(cfg, log, server.Handlers{
		Orders:      handler.NewOrderHandler(orderUC, adminOrderH),
		AdminOrders: adminOrderH,
		Health:      handler.NewHealthHandler(gormDB),
	})

	log.Info("order policy",
		zap.String("stock_policy", string(cfg.Orders.StockPolicy)),
		zap.String("totals_policy", string(cfg.Orders.TotalsPolicy)),
		zap.String("number_prefix", cfg.Orders.NumberPrefix))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, e, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
