package main

import (
	"context"
	"errors"

	"github.com/smallbiznis/settlement/internal/migration"
	"github.com/smallbiznis/settlement/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errRollbackUnsupported = errors.New("rollback is only supported on postgres")

func migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long: `Apply schema migrations.

Postgres runs the embedded SQL migrations; other dialects are auto-migrated
from the models. --down rolls back one SQL migration (Postgres only).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				log  *zap.Logger
			)
			app := fx.New(
				infraModules(),
				fx.Populate(&conn, &log),
			)
			return runApp(app, func(ctx context.Context) error {
				if down {
					if !db.IsPostgres(conn) {
						return errRollbackUnsupported
					}
					sqlDB, err := conn.DB()
					if err != nil {
						return err
					}
					if err := migration.RollbackOne(sqlDB); err != nil {
						return err
					}
					return printJSON(map[string]string{"status": "rolled_back"})
				}
				if err := migration.Apply(conn, log); err != nil {
					return err
				}
				return printJSON(map[string]string{"status": "migrated"})
			})
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the last migration")
	return cmd
}
