package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	"github.com/smallbiznis/entitlement/internal/config"
	entitlementdomain "github.com/smallbiznis/entitlement/internal/entitlement/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	"github.com/smallbiznis/entitlement/internal/observability/tracing"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(tracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
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
	engine          *gin.Engine
	log             *zap.Logger
	accountSvc      accountdomain.Service
	moduleSvc       moduledomain.Service
	tierSvc         tierdomain.Service
	featureSvc      featuredomain.Service
	subscriptionSvc subscriptiondomain.Service
	entitlementSvc  entitlementdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	AccountSvc      accountdomain.Service
	ModuleSvc       moduledomain.Service
	TierSvc         tierdomain.Service
	FeatureSvc      featuredomain.Service
	SubscriptionSvc subscriptiondomain.Service
	EntitlementSvc  entitlementdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http.server"),
		accountSvc:      p.AccountSvc,
		moduleSvc:       p.ModuleSvc,
		tierSvc:         p.TierSvc,
		featureSvc:      p.FeatureSvc,
		subscriptionSvc: p.SubscriptionSvc,
		entitlementSvc:  p.EntitlementSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Entitlements --------
	api.POST("/entitlements/check", s.CheckEntitlement)
	api.POST("/entitlements/peek", s.PeekEntitlement)
	api.POST("/entitlements/consume", s.ConsumeEntitlement)
	api.POST("/entitlements/release", s.ReleaseEntitlement)

	// -------- Accounts --------
	api.POST("/accounts", s.RegisterAccount)
	api.GET("/accounts/:account_id", s.GetAccount)
	api.GET("/accounts/:account_id/modules/:module_id/tier", s.GetCurrentTier)
	api.GET("/accounts/:account_id/modules/:module_id/subscription", s.GetLiveSubscription)
	api.GET("/accounts/:account_id/modules/:module_id/subscriptions", s.ListSubscriptionHistory)

	// -------- Subscriptions --------
	api.POST("/subscriptions", s.ActivateSubscription)
	api.GET("/subscriptions/:id", s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)

	// -------- Catalog --------
	api.GET("/modules", s.ListModules)
	api.GET("/modules/:module_id", s.GetModule)
	api.GET("/modules/:module_id/tiers", s.ListTiers)
	api.GET("/modules/:module_id/tiers/:tier_key/features", s.ListTierFeatures)

	// -------- Billing provider --------
	api.POST("/webhooks/subscription-events", s.HandleSubscriptionEvent)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
