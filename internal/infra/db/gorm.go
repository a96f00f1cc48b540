package db

import (
	"fmt"
	"net"
	"strconv"

	"storefront/internal/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect はDBに接続して *gorm.DB を返す。
// DB_DRIVER で postgres / mysql を切り替える。
func Connect(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: NewGormLogger(log)}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case config.DBDriverMySQL:
		gdb, err = gorm.Open(mysql.Open(MySQLDSN(cfg)), gcfg)
	default:
		gdb, err = openPostgres(cfg, gcfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return gdb, nil
}

// pgxのstdlibでsql.DBを作ってGORMに渡す
func openPostgres(cfg config.DBConfig, gcfg *gorm.Config) (*gorm.DB, error) {
	connCfg, err := pgx.ParseConfig(PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connCfg)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
}

// DATABASE_URL があれば最優先で使う
func PostgresDSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

func MySQLDSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}
