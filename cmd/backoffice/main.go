// cmd/backoffice/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/database"
	"atlas/internal/pkg/httpclient"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/pkg/redis"
	cartinfra "atlas/internal/service/cart/infrastructure"
	cartifaces "atlas/internal/service/cart/interfaces"
	inventoryinfra "atlas/internal/service/inventory/infrastructure"
	orderapp "atlas/internal/service/order/application"
	orderinfra "atlas/internal/service/order/infrastructure"
	"atlas/internal/service/order/infrastructure/adapter"
	orderifaces "atlas/internal/service/order/interfaces"
	pricingapp "atlas/internal/service/pricing/application"
	pricinginfra "atlas/internal/service/pricing/infrastructure"
	"atlas/internal/service/pricing/infrastructure/cache"
	"atlas/internal/service/pricing/infrastructure/rule"
	pricingifaces "atlas/internal/service/pricing/interfaces"
	reportapp "atlas/internal/service/report/application"
	reportinfra "atlas/internal/service/report/infrastructure"
	reportifaces "atlas/internal/service/report/interfaces"
)

const serviceName = "backoffice"

// main 是后台服务的组装根: 建连接、装配各限界上下文、注册路由。
func main() {
	cfg := bootstrap.Init(serviceName)

	db, err := database.Open(cfg.MySQL)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to open mysql")
	}
	if err := db.AutoMigrate(
		&pricinginfra.DiscountModel{},
		&pricinginfra.DiscountEntitlementModel{},
		&inventoryinfra.InventoryModel{},
		&inventoryinfra.InventoryHistoryModel{},
		&inventoryinfra.ReceiveInventoryModel{},
		&inventoryinfra.ReceiveItemModel{},
		&orderinfra.OrderModel{},
		&orderinfra.OrderLineModel{},
		&orderinfra.OrderItemSourceModel{},
		&orderinfra.OrderDiscountModel{},
		&orderinfra.OrderVoucherModel{},
		&orderinfra.OrderEventModel{},
		&cartinfra.CartModel{},
		&cartinfra.CartLineModel{},
	); err != nil {
		logger.L.Fatal().Err(err).Msg("failed to migrate schema")
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to connect redis")
	}

	ruleEngine, err := rule.NewCELRuleEngine()
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to build rule engine")
	}

	notificationWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
	tracer := otel.Tracer(serviceName)

	orderService := orderapp.NewOrderApplicationService(
		orderinfra.NewGormUnitOfWork(db),
		orderinfra.NewGormCatalogReader(db),
		pricingapp.NewEligibility(ruleEngine),
		adapter.NewNotificationKafkaAdapter(notificationWriter),
		adapter.NewPaymentHTTPAdapter(httpclient.NewClient(tracer), cfg.Payment.Endpoint),
		tracer,
		cfg.Order,
	)

	// 只读路径走缓存仓储，写路径在工作单元里直查数据库
	discountReads := cache.NewCachedDiscountRepository(
		pricinginfra.NewGormDiscountRepository(db), redisClient, cfg.Redis.CacheTTL)

	reportService := reportapp.NewReportService(reportinfra.NewGormReportStore(db), tracer)
	cartRepo := cartinfra.NewGormCartRepository(db)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8080,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			orderifaces.NewOrderHandler(orderService).RegisterRoutes(appCtx.Mux)
			pricingifaces.NewDiscountHandler(discountReads).RegisterRoutes(appCtx.Mux)
			reportifaces.NewReportHandler(reportService).RegisterRoutes(appCtx.Mux)
			cartifaces.NewCartHandler(cartRepo).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			if err := notificationWriter.Close(); err != nil {
				logger.L.Error().Err(err).Msg("error closing kafka writer")
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	})
}
