package conf

import (
	"os"
	"time"

	"treasury/cmd/treasury-service/internal/data"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      data.DBConfig       `mapstructure:"database"`
	Redis         data.RedisConfig    `mapstructure:"redis"`
	Treasury      TreasuryConfig      `mapstructure:"treasury"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// TreasuryConfig 预算引擎配置
type TreasuryConfig struct {
	// 开户默认值（最小货币单位）
	DefaultBalance        int64 `mapstructure:"default_balance"`
	DefaultDailyLimit     int64 `mapstructure:"default_daily_limit"`
	DefaultPerActionLimit int64 `mapstructure:"default_per_action_limit"`

	CAS       CASConfig       `mapstructure:"cas"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scaler    ScalerConfig    `mapstructure:"scaler"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// CASConfig 乐观并发重试配置
type CASConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// LedgerConfig 交易账本配置
type LedgerConfig struct {
	FlushInterval     time.Duration `mapstructure:"flush_interval"`
	RecentTTL         time.Duration `mapstructure:"recent_ttl"`
	RecentLimit       int           `mapstructure:"recent_limit"`
	DegradedThreshold int           `mapstructure:"degraded_threshold"`
}

// ScalerConfig 性能伸缩配置
type ScalerConfig struct {
	WindowDays            int   `mapstructure:"window_days"`
	MaxTransactions       int   `mapstructure:"max_transactions"`
	FloorDailyLimit       int64 `mapstructure:"floor_daily_limit"`
	CeilingDailyLimit     int64 `mapstructure:"ceiling_daily_limit"`
	FloorPerActionLimit   int64 `mapstructure:"floor_per_action_limit"`
	CeilingPerActionLimit int64 `mapstructure:"ceiling_per_action_limit"`
}

// SchedulerConfig 周期任务配置
type SchedulerConfig struct {
	RolloverSpec string        `mapstructure:"rollover_spec"`
	RescaleSpec  string        `mapstructure:"rescale_spec"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("treasury-service")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	setDefaults(v)

	// 自动从环境变量读取
	v.SetEnvPrefix("TREASURY")
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// 从环境变量覆盖敏感配置
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 9010)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("treasury.default_balance", 10000)
	v.SetDefault("treasury.default_daily_limit", 5000)
	v.SetDefault("treasury.default_per_action_limit", 2000)

	v.SetDefault("treasury.cas.max_retries", 8)
	v.SetDefault("treasury.cas.initial_delay", "5ms")
	v.SetDefault("treasury.cas.max_delay", "100ms")

	v.SetDefault("treasury.ledger.flush_interval", "2s")
	v.SetDefault("treasury.ledger.recent_ttl", "168h")
	v.SetDefault("treasury.ledger.recent_limit", 100)
	v.SetDefault("treasury.ledger.degraded_threshold", 64)

	v.SetDefault("treasury.scaler.window_days", 30)
	v.SetDefault("treasury.scaler.max_transactions", 500)
	v.SetDefault("treasury.scaler.floor_daily_limit", 500)
	v.SetDefault("treasury.scaler.ceiling_daily_limit", 1000000)
	v.SetDefault("treasury.scaler.floor_per_action_limit", 100)
	v.SetDefault("treasury.scaler.ceiling_per_action_limit", 200000)

	v.SetDefault("treasury.scheduler.rollover_spec", "0 * * * *")
	v.SetDefault("treasury.scheduler.rescale_spec", "10 3 * * *")
	v.SetDefault("treasury.scheduler.run_timeout", "5m")

	v.SetDefault("observability.service_name", "treasury-service")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
}
