package app

import (
	"treasury/cmd/treasury-service/internal/biz"
	"treasury/cmd/treasury-service/internal/server"

	"go.uber.org/zap"
)

// App 应用程序
type App struct {
	Logger     *zap.Logger
	HTTPServer *server.HTTPServer
	Scheduler  *biz.ResetScheduler
	Ledger     *biz.TransactionLedger
}

// NewApp 创建应用程序
func NewApp(
	logger *zap.Logger,
	httpServer *server.HTTPServer,
	scheduler *biz.ResetScheduler,
	ledger *biz.TransactionLedger,
) *App {
	return &App{
		Logger:     logger,
		HTTPServer: httpServer,
		Scheduler:  scheduler,
		Ledger:     ledger,
	}
}
