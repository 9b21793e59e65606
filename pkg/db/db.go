package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/settlement/internal/config"
	obslogger "github.com/smallbiznis/settlement/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterConnectionPool),
)

const (
	connectAttempts = 5
	connectBackoff  = 3 * time.Second
)

type Params struct {
	fx.In

	Cfg       config.Config
	Dialector gorm.Dialector
	Log       *zap.Logger
}

func New(p Params) (*gorm.DB, error) {
	log := p.Log.Named("database")

	loggerCfg := obslogger.DefaultGormLoggerConfig(p.Cfg.DBLogSQL)
	if p.Cfg.DBSlowQueryMS > 0 {
		loggerCfg.SlowThreshold = time.Duration(p.Cfg.DBSlowQueryMS) * time.Millisecond
	}
	gormLogger := obslogger.NewGormLogger(p.Log, loggerCfg)

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(p.Dialector, &gorm.Config{
			Logger:         gormLogger,
			TranslateError: true,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Otel(conn); err != nil {
		return nil, err
	}
	if err := Metric(conn, p.Cfg.DBName); err != nil {
		return nil, err
	}

	log.Info("database connection configured", zap.String("dialect", p.Dialector.Name()))
	return conn, nil
}

type connectionPoolParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Cfg       config.Config
	Log       *zap.Logger
}

func RegisterConnectionPool(p connectionPoolParams) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxIdleConns(p.Cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(p.Cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(p.Cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(p.Cfg.DBConnMaxIdleTime) * time.Second)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Log.Info("closing database connection pool")
			return sqlDB.Close()
		},
	})
	return nil
}

// Otel registers the OpenTelemetry tracing plugin.
func Otel(conn *gorm.DB) error {
	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithoutQueryVariables())); err != nil {
		return fmt.Errorf("register db telemetry: %w", err)
	}
	return nil
}

// Metric exposes connection pool stats on the default prometheus registry,
// which the HTTP server serves on /metrics.
func Metric(conn *gorm.DB, dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		dbName = "unknown"
	}
	if err := conn.Use(prometheus.New(prometheus.Config{
		DBName:          dbName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return fmt.Errorf("register db metrics: %w", err)
	}
	return nil
}

// SetLocalStatementTimeout bounds every statement in the current Postgres
// transaction. Other dialects rely on context deadlines only.
func SetLocalStatementTimeout(ctx context.Context, tx *gorm.DB, timeout time.Duration) error {
	if timeout <= 0 || !IsPostgres(tx) {
		return nil
	}
	return tx.WithContext(ctx).Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())).Error
}
