package main

import (
	"time"

	"treasury/cmd/treasury-service/internal/biz"
	"treasury/cmd/treasury-service/internal/conf"
	"treasury/cmd/treasury-service/internal/data"
)

// 配置结构到各组件配置的转换提供者

func provideDBConfig(cfg *conf.Config) *data.DBConfig {
	return &cfg.Database
}

func provideRedisConfig(cfg *conf.Config) *data.RedisConfig {
	return &cfg.Redis
}

func provideRegistryConfig(cfg *conf.Config) biz.RegistryConfig {
	c := biz.DefaultRegistryConfig()
	if cfg.Treasury.CAS.MaxRetries > 0 {
		c.CASMaxRetries = cfg.Treasury.CAS.MaxRetries
	}
	if cfg.Treasury.CAS.InitialDelay > 0 {
		c.CASInitialDelay = cfg.Treasury.CAS.InitialDelay
	}
	if cfg.Treasury.CAS.MaxDelay > 0 {
		c.CASMaxDelay = cfg.Treasury.CAS.MaxDelay
	}
	if cfg.Treasury.DefaultBalance > 0 {
		c.DefaultBalance = cfg.Treasury.DefaultBalance
	}
	if cfg.Treasury.DefaultDailyLimit > 0 {
		c.DefaultDailyLimit = cfg.Treasury.DefaultDailyLimit
	}
	if cfg.Treasury.DefaultPerActionLimit > 0 {
		c.DefaultPerActionLimit = cfg.Treasury.DefaultPerActionLimit
	}
	return c
}

func provideLedgerConfig(cfg *conf.Config) biz.LedgerConfig {
	c := biz.DefaultLedgerConfig()
	if cfg.Treasury.Ledger.FlushInterval > 0 {
		c.FlushInterval = cfg.Treasury.Ledger.FlushInterval
	}
	if cfg.Treasury.Ledger.RecentTTL > 0 {
		c.RecentTTL = cfg.Treasury.Ledger.RecentTTL
	}
	if cfg.Treasury.Ledger.RecentLimit > 0 {
		c.RecentLimit = cfg.Treasury.Ledger.RecentLimit
	}
	if cfg.Treasury.Ledger.DegradedThreshold > 0 {
		c.DegradedThreshold = cfg.Treasury.Ledger.DegradedThreshold
	}
	return c
}

func provideScalerConfig(cfg *conf.Config) biz.ScalerConfig {
	c := biz.DefaultScalerConfig()
	if cfg.Treasury.Scaler.WindowDays > 0 {
		c.Window = time.Duration(cfg.Treasury.Scaler.WindowDays) * 24 * time.Hour
	}
	if cfg.Treasury.Scaler.MaxTransactions > 0 {
		c.MaxTransactions = cfg.Treasury.Scaler.MaxTransactions
	}
	if cfg.Treasury.Scaler.FloorDailyLimit > 0 {
		c.FloorDailyLimit = cfg.Treasury.Scaler.FloorDailyLimit
	}
	if cfg.Treasury.Scaler.CeilingDailyLimit > 0 {
		c.CeilingDailyLimit = cfg.Treasury.Scaler.CeilingDailyLimit
	}
	if cfg.Treasury.Scaler.FloorPerActionLimit > 0 {
		c.FloorPerActionLimit = cfg.Treasury.Scaler.FloorPerActionLimit
	}
	if cfg.Treasury.Scaler.CeilingPerActionLimit > 0 {
		c.CeilingPerActionLimit = cfg.Treasury.Scaler.CeilingPerActionLimit
	}
	return c
}

func provideSchedulerConfig(cfg *conf.Config) biz.SchedulerConfig {
	c := biz.DefaultSchedulerConfig()
	if cfg.Treasury.Scheduler.RolloverSpec != "" {
		c.RolloverSpec = cfg.Treasury.Scheduler.RolloverSpec
	}
	if cfg.Treasury.Scheduler.RescaleSpec != "" {
		c.RescaleSpec = cfg.Treasury.Scheduler.RescaleSpec
	}
	if cfg.Treasury.Scheduler.RunTimeout > 0 {
		c.RunTimeout = cfg.Treasury.Scheduler.RunTimeout
	}
	return c
}
