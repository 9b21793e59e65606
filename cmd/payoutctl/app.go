package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/clock"
	"github.com/smallbiznis/settlement/internal/config"
	"github.com/smallbiznis/settlement/internal/events"
	"github.com/smallbiznis/settlement/internal/ledger"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/locker"
	"github.com/smallbiznis/settlement/internal/marketplace"
	"github.com/smallbiznis/settlement/internal/observability"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	obslogger "github.com/smallbiznis/settlement/internal/observability/logger"
	"github.com/smallbiznis/settlement/internal/observability/obscontext"
	"github.com/smallbiznis/settlement/internal/settlement"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type services struct {
	Config     config.Config
	DB         *gorm.DB
	Settlement settlementdomain.Service
	Ledger     ledgerdomain.Service
}

// infraModules is the graph shared by every command; stdout is kept for results.
func infraModules() fx.Option {
	return fx.Options(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Decorate(func(cfg obslogger.Config) obslogger.Config {
			cfg.OutputPaths = []string{"stderr"}
			return cfg
		}),
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.NodeID)
		}),
		db.Module,
		clock.Module,
	)
}

// runWithServices starts the settlement graph, runs fn and stops the graph.
func runWithServices(fn func(ctx context.Context, svc services) error) error {
	var svc services
	app := fx.New(
		infraModules(),
		locker.Module,
		events.Module,
		marketplace.Module,
		ledger.Module,
		settlement.Module,
		fx.Populate(&svc.Config, &svc.DB, &svc.Settlement, &svc.Ledger),
	)
	return runApp(app, func(ctx context.Context) error {
		runErr := fn(ctx, svc)
		pushMetrics(ctx, svc.Config)
		return runErr
	})
}

// pushMetrics hands the run's counters to a Pushgateway when one is configured.
// Failures are reported but never fail the command.
func pushMetrics(ctx context.Context, cfg config.Config) {
	pusher := obsmetrics.NewPusher(cfg.PushgatewayURL, "payoutctl", map[string]string{
		"command":     commandName,
		"environment": cfg.Environment,
	}, nil)
	if err := pusher.Push(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "metrics push failed: %v\n", err)
	}
}

func runApp(app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}

	d, err := time.ParseDuration(timeout)
	if err != nil {
		return fmt.Errorf("invalid --timeout: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	ctx = obscontext.WithActor(ctx, "cli", actor)

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
