//go:build wireinject
// +build wireinject

package main

import (
	"treasury/cmd/treasury-service/internal/app"
	"treasury/cmd/treasury-service/internal/biz"
	"treasury/cmd/treasury-service/internal/conf"
	"treasury/cmd/treasury-service/internal/data"
	"treasury/cmd/treasury-service/internal/server"
	"treasury/cmd/treasury-service/internal/service"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// ProviderSet 依赖注入集合
var ProviderSet = wire.NewSet(
	// 配置转换
	provideDBConfig,
	provideRedisConfig,
	provideRegistryConfig,
	provideLedgerConfig,
	provideScalerConfig,
	provideSchedulerConfig,

	// Data层
	data.NewDB,
	data.NewRedis,
	data.NewData,
	data.NewBudgetRepository,
	data.NewTransactionRepository,
	data.NewAdminAuditRepository,
	data.NewBudgetCache,
	data.NewBreakerStore,
	data.NewRecentActivityIndex,

	// Biz层
	biz.NewTransactionLedger,
	biz.NewEmergencyBreaker,
	biz.NewBudgetRegistry,
	biz.NewPerformanceScaler,
	biz.NewResetScheduler,

	// Service层
	service.NewTreasuryService,

	// Server层
	server.NewHTTPServer,

	// 日志适配
	app.NewKratosLogger,

	app.NewApp,
)

// initApp 初始化应用
func initApp(cfg *conf.Config, logger *zap.Logger) (*app.App, func(), error) {
	panic(wire.Build(ProviderSet))
}
