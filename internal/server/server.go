package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/eroom/internal/audit"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/config"
	"github.com/smallbiznis/eroom/internal/contract"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/coupon"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/customdiscount"
	customdiscountdomain "github.com/smallbiznis/eroom/internal/customdiscount/domain"
	"github.com/smallbiznis/eroom/internal/notification"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/observability"
	obsmiddleware "github.com/smallbiznis/eroom/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eroom/internal/observability/metrics"
	obstracing "github.com/smallbiznis/eroom/internal/observability/tracing"
	"github.com/smallbiznis/eroom/internal/pricing"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	"github.com/smallbiznis/eroom/internal/providers"
	"github.com/smallbiznis/eroom/internal/providers/pdf"
	"github.com/smallbiznis/eroom/internal/ratelimit"
	"github.com/smallbiznis/eroom/internal/room"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Domains wires every service the HTTP surface and the scheduler need.
var Domains = fx.Options(
	audit.Module,
	room.Module,
	coupon.Module,
	customdiscount.Module,
	pricing.Module,
	contract.Module,
	notification.Module,
	providers.Module,
	ratelimit.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins))
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

func registerGin(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, cfg, httpMetrics)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", HeaderActorType, HeaderActorID, "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	})
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
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
			log.Info("http server listening", zap.String("addr", addr))
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
	contracts     contractdomain.Service
	pricing       pricingdomain.Service
	coupons       coupondomain.Service
	discounts     customdiscountdomain.Service
	notifications notificationdomain.Service
	history       auditdomain.Sink
	pdf           pdf.Provider
	couponLimiter *ratelimit.CouponValidateLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Contracts     contractdomain.Service
	Pricing       pricingdomain.Service
	Coupons       coupondomain.Service
	Discounts     customdiscountdomain.Service
	Notifications notificationdomain.Service
	History       auditdomain.Sink
	PDF           pdf.Provider
	CouponLimiter *ratelimit.CouponValidateLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics              `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		contracts:     p.Contracts,
		pricing:       p.Pricing,
		coupons:       p.Coupons,
		discounts:     p.Discounts,
		notifications: p.Notifications,
		history:       p.History,
		pdf:           p.PDF,
		couponLimiter: p.CouponLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ActorContext(auditdomain.ActorTypeUser, sourceWeb))

	// -------- Contracts --------
	api.POST("/contracts/quote", s.QuoteContract)
	api.POST("/contracts", s.CreateContract)
	api.GET("/contracts/:id", s.GetContract)
	api.POST("/contracts/:id/termination", s.RequestTermination)
	api.POST("/contracts/:id/extension", s.RequestExtension)

	// -------- Coupons --------
	api.POST("/coupons/validate", s.CouponValidateRateLimit(), s.ValidateCoupon)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", ActorContext(auditdomain.ActorTypeAdmin, sourceAdmin))

	// -------- Contracts --------
	admin.GET("/contracts", s.ListContracts)
	admin.GET("/contracts/unmapped", s.ListUnmappedContracts)
	admin.GET("/contracts/:id", s.GetContract)
	admin.PATCH("/contracts/:id/status", s.TransitionContractStatus)
	admin.GET("/contracts/:id/history", s.ListContractHistory)
	admin.GET("/contracts/:id/requests", s.ListContractRequests)
	admin.GET("/contracts/:id/termination-notice.pdf", s.RenderTerminationNotice)
	admin.POST("/contracts/:id/map", s.MapTenant)
	admin.POST("/tenants/auto-map", s.AutoMapTenant)
	admin.POST("/requests/:id/decision", s.DecideRequest)

	// -------- Custom Discounts --------
	admin.GET("/contracts/:id/discounts", s.ListCustomDiscounts)
	admin.PUT("/contracts/:id/discounts/:month", s.UpsertCustomDiscount)
	admin.DELETE("/contracts/:id/discounts/:month", s.DeleteCustomDiscount)

	// -------- Coupons --------
	admin.GET("/coupons", s.ListCoupons)
	admin.POST("/coupons", s.CreateCoupon)
	admin.GET("/coupons/:id", s.GetCoupon)
	admin.PATCH("/coupons/:id", s.SetCouponActive)
	admin.DELETE("/coupons/:id", s.DeleteCoupon)

	// -------- SMS --------
	admin.GET("/sms/templates", s.ListSMSTemplates)
	admin.PUT("/sms/templates/:type", s.UpdateSMSTemplate)
	admin.POST("/sms/preview", s.PreviewSMS)
	admin.POST("/sms/send", s.SendSMS)
	admin.GET("/sms/logs", s.ListSMSLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
