package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/settlement/internal/config"
	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/observability"
	obsmiddleware "github.com/smallbiznis/settlement/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	obstracing "github.com/smallbiznis/settlement/internal/observability/tracing"
	"github.com/smallbiznis/settlement/internal/ratelimit"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAdminRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	settlementSvc settlementdomain.Service
	ledgerSvc     ledgerdomain.Service
	outbox        *events.Outbox
	limiter       *ratelimit.WriteLimiter
	metrics       *obsmetrics.SettlementMetrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	SettlementSvc settlementdomain.Service
	LedgerSvc     ledgerdomain.Service
	Outbox        *events.Outbox                `optional:"true"`
	Limiter       *ratelimit.WriteLimiter       `optional:"true"`
	Metrics       *obsmetrics.SettlementMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("http.server"),
		settlementSvc: p.SettlementSvc,
		ledgerSvc:     p.LedgerSvc,
		outbox:        p.Outbox,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAdminRoutes() {
	s.engine.GET("/ready", s.Ready)

	admin := s.engine.Group("/admin/settlement")
	admin.Use(ActorContext())

	// -------- Eligibility --------
	admin.GET("/merchants/:id/eligibility", s.GetEligibility)
	admin.GET("/merchants/:id/apportionment", s.GetApportionment)
	admin.GET("/merchants/:id/ledger", s.ListLedgerEntries)

	// -------- Batch --------
	admin.GET("/preview", s.PreviewBatch)
	admin.POST("/payouts/batch", s.WriteRateLimit(), s.CreateBatch)

	// -------- Payouts --------
	admin.GET("/payouts", s.ListPayouts)
	admin.POST("/payouts", s.WriteRateLimit(), s.CreatePayout)
	admin.GET("/payouts/:id", s.GetPayout)
	admin.POST("/payouts/:id/reverse", s.ReversePayout)
	admin.POST("/payouts/:id/status", s.TransitionPayout)

	// -------- Ledger --------
	admin.POST("/credits/sync", s.SyncCredits)

	// -------- Outbox relay --------
	if s.outbox != nil {
		admin.GET("/events/pending", s.ListPendingEvents)
		admin.POST("/events/ack", s.AckEvents)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Ready reports whether the database is reachable.
func (s *Server) Ready(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
