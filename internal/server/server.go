package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tablebill/internal/config"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	obslogger "github.com/smallbiznis/tablebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tablebill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	publicinvoicedomain "github.com/smallbiznis/tablebill/internal/publicinvoice/domain"
	"github.com/smallbiznis/tablebill/internal/ratelimit"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine        *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Pricing       *config.PricingConfigHolder
	RestaurantSvc restaurantdomain.Service
	InvoiceSvc    invoicedomain.Service
	PaymentSvc    paymentdomain.Service
	PublicSvc     publicinvoicedomain.Service
	Scheduler     *scheduler.Scheduler       `optional:"true"`
	Limiter       *ratelimit.PublicLimiter   `optional:"true"`
	Metrics       *obsmetrics.BillingMetrics `optional:"true"`
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	pricing       *config.PricingConfigHolder
	restaurantSvc restaurantdomain.Service
	invoiceSvc    invoicedomain.Service
	paymentSvc    paymentdomain.Service
	publicSvc     publicinvoicedomain.Service
	scheduler     *scheduler.Scheduler
	limiter       *ratelimit.PublicLimiter
	metrics       *obsmetrics.BillingMetrics
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("http.server"),
		pricing:       p.Pricing,
		restaurantSvc: p.RestaurantSvc,
		invoiceSvc:    p.InvoiceSvc,
		paymentSvc:    p.PaymentSvc,
		publicSvc:     p.PublicSvc,
		scheduler:     p.Scheduler,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.RegisterPublicRoutes()
	s.engine.GET("/api/pricing/quote", s.GetPricingQuote)
	s.RegisterAdminRoutes()
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminAuth())

	admin.GET("/restaurants/:id", s.GetRestaurant)
	admin.GET("/restaurants/:id/invoices", s.ListRestaurantInvoices)
	admin.POST("/restaurants/:id/invoices/extra-tables", s.CreateExtraTableInvoice)
	admin.POST("/restaurants/:id/invoices/renewal", s.CreateRenewalInvoice)
	admin.POST("/restaurants/:id/invoices/extension", s.CreateExtensionInvoice)
	admin.GET("/invoices/:id", s.GetInvoiceByID)
	admin.POST("/invoices/:id/cancel", s.CancelInvoice)
	admin.POST("/scheduler/:job/run", s.RunSchedulerJob)
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
