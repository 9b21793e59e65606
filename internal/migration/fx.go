package migration

import (
	"github.com/smallbiznis/settlement/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply runs SQL migrations on Postgres and AutoMigrate elsewhere.
func Apply(conn *gorm.DB, log *zap.Logger) error {
	if !db.IsPostgres(conn) {
		log.Info("applying auto migrations", zap.String("dialect", conn.Dialector.Name()))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	log.Info("applying sql migrations")
	return RunMigrations(sqlDB)
}
