// cmd/order-sweeper/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/database"
	"atlas/internal/pkg/httpclient"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/pkg/zookeeper"
	cartapp "atlas/internal/service/cart/application"
	cartinfra "atlas/internal/service/cart/infrastructure"
	orderapp "atlas/internal/service/order/application"
	orderinfra "atlas/internal/service/order/infrastructure"
	"atlas/internal/service/order/infrastructure/adapter"
	pricingapp "atlas/internal/service/pricing/application"
	"atlas/internal/service/pricing/infrastructure/rule"
)

const serviceName = "order-sweeper"

// main 组装过期订单清扫器。清扫器可以多实例部署，
// 每个清扫周期先抢 ZooKeeper 锁，抢到的实例才执行本轮清扫。
func main() {
	cfg := bootstrap.Init(serviceName)

	db, err := database.Open(cfg.MySQL)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to open mysql")
	}

	zkConn, err := zookeeper.Connect(cfg.Zookeeper)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to connect zookeeper")
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
	cartPurge := cartapp.NewPurgeService(cartinfra.NewGormCartRepository(db))

	ctx, stop := context.WithCancel(context.Background())
	go runSweepLoop(ctx, cfg.Order.SweepInterval, zkConn, orderService, cartPurge)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8085,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
		},
		OnShutdown: func(shutdownCtx context.Context) {
			stop()
			zkConn.Close()
			if err := notificationWriter.Close(); err != nil {
				logger.L.Error().Err(err).Msg("error closing kafka writer")
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	})
}

// runSweepLoop 按固定间隔触发清扫，直到 ctx 取消。
func runSweepLoop(
	ctx context.Context,
	interval time.Duration,
	zkConn *zookeeper.Conn,
	orders *orderapp.OrderApplicationService,
	carts *cartapp.PurgeService,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, zkConn, orders, carts)
		}
	}
}

// sweepOnce 执行一轮清扫。没抢到锁说明别的实例正在扫，直接跳过本轮。
func sweepOnce(
	ctx context.Context,
	zkConn *zookeeper.Conn,
	orders *orderapp.OrderApplicationService,
	carts *cartapp.PurgeService,
) {
	lock, err := zookeeper.NewDistributedLock(zkConn, "order-sweeper")
	if err != nil {
		logger.L.Error().Err(err).Msg("failed to create sweep lock")
		return
	}
	acquired, err := lock.TryLock()
	if err != nil {
		logger.L.Error().Err(err).Msg("failed to acquire sweep lock")
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.L.Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	if swept, err := orders.SweepExpired(ctx); err != nil {
		logger.L.Error().Err(err).Msg("expired order sweep failed")
	} else if swept > 0 {
		logger.L.Info().Int("swept", swept).Msg("expired temp orders reclaimed")
	}

	if _, err := carts.Sweep(ctx); err != nil {
		logger.L.Error().Err(err).Msg("stale cart purge failed")
	}
}
