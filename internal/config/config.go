package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type DBDriver string

const (
	DBDriverPostgres DBDriver = "postgres"
	DBDriverMySQL    DBDriver = "mysql"
)

// 在庫が足りないときの扱い
type StockPolicy string

const (
	// 在庫チェックなしで減らす（マイナス在庫を許す）
	StockPolicyAllowOversell StockPolicy = "allow_oversell"
	// 在庫が足りなければ注文ごと失敗させる
	StockPolicyRejectInsufficient StockPolicy = "reject_insufficient"
)

// クライアントから送られた金額の扱い
type TotalsPolicy string

const (
	TotalsPolicyTrust  TotalsPolicy = "trust"
	TotalsPolicyVerify TotalsPolicy = "verify"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	GoEnv    string `envconfig:"GO_ENV" default:"dev"` // dev/prod
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	FEURL    string `envconfig:"FE_URL" default:"*"` // フロントURL（CORS、カンマ区切り）

	DB     DBConfig
	Orders OrdersConfig
	Kafka  KafkaConfig

	RateLimitRPS    float64       `envconfig:"RATE_LIMIT_RPS" default:"0"` // 0なら無効
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type DBConfig struct {
	Driver          DBDriver      `envconfig:"DB_DRIVER" default:"postgres"`
	URL             string        `envconfig:"DATABASE_URL"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"onlineshop_user"`
	Password        string        `envconfig:"DB_PASS"`
	Name            string        `envconfig:"DB_NAME" default:"onlineshop"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type OrdersConfig struct {
	NumberPrefix string       `envconfig:"ORDER_NUMBER_PREFIX" default:"TTT"`
	StockPolicy  StockPolicy  `envconfig:"STOCK_POLICY" default:"allow_oversell"`
	TotalsPolicy TotalsPolicy `envconfig:"TOTALS_POLICY" default:"trust"`
}

type KafkaConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"` // 空ならイベント送信しない
	OrderTopic string   `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
}

// Loadは.env（あれば）と環境変数から読む
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnvは環境変数だけから読む
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

// CORSで許可するオリジン
func (c Config) AllowOrigins() []string {
	parts := strings.Split(c.FEURL, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

//必須チェック
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.DB.Driver {
	case DBDriverPostgres, DBDriverMySQL:
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or mysql: %q", c.DB.Driver)
	}
	if c.DB.URL == "" && (c.DB.Host == "" || c.DB.Name == "") {
		return fmt.Errorf("DB_HOST and DB_NAME are required when DATABASE_URL is empty")
	}
	switch c.Orders.StockPolicy {
	case StockPolicyAllowOversell, StockPolicyRejectInsufficient:
	default:
		return fmt.Errorf("STOCK_POLICY must be allow_oversell or reject_insufficient: %q", c.Orders.StockPolicy)
	}
	switch c.Orders.TotalsPolicy {
	case TotalsPolicyTrust, TotalsPolicyVerify:
	default:
		return fmt.Errorf("TOTALS_POLICY must be trust or verify: %q", c.Orders.TotalsPolicy)
	}
	if strings.TrimSpace(c.Orders.NumberPrefix) == "" {
		return fmt.Errorf("ORDER_NUMBER_PREFIX is required")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	if c.KafkaEnabled() && c.Kafka.OrderTopic == "" {
		return fmt.Errorf("KAFKA_ORDER_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
