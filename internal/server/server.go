package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	adcatalogdomain "github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/authorization"
	"github.com/smallbiznis/spotlight/internal/config"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/observability"
	obsmiddleware "github.com/smallbiznis/spotlight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	obstracing "github.com/smallbiznis/spotlight/internal/observability/tracing"
	"github.com/smallbiznis/spotlight/internal/occupancy"
	"github.com/smallbiznis/spotlight/internal/ratelimit"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Authorization", "Content-Type", HeaderAccountID, HeaderAdminID, "X-Request-Id"},
			ExposeHeaders:    []string{"Retry-After", "X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}
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

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	reservationSvc reservationdomain.Service
	ledgerSvc      ledgerdomain.Service
	catalogSvc     slotcatalogdomain.Service
	adSvc          adcatalogdomain.Service
	occupancy      occupancy.Reader
	reserveLimiter *ratelimit.ReserveLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	ReservationSvc reservationdomain.Service
	LedgerSvc      ledgerdomain.Service
	CatalogSvc     slotcatalogdomain.Service
	AdSvc          adcatalogdomain.Service
	Occupancy      occupancy.Reader
	ReserveLimiter *ratelimit.ReserveLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		reservationSvc: p.ReservationSvc,
		ledgerSvc:      p.LedgerSvc,
		catalogSvc:     p.CatalogSvc,
		adSvc:          p.AdSvc,
		occupancy:      p.Occupancy,
		reserveLimiter: p.ReserveLimiter,
		obsMetrics:     p.ObsMetrics,
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
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/catalog", s.SellerRequired(), s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.GetCatalog)

	// -------- Reservations --------
	reservations := api.Group("/reservations", s.SellerRequired())
	{
		reservations.POST("", s.authorize(authorization.ObjectReservation, authorization.ActionReservationCreate), s.ReserveRateLimit(), s.CreateReservation)
		reservations.GET("", s.authorize(authorization.ObjectReservation, authorization.ActionReservationView), s.ListReservations)
		reservations.GET("/:id", s.authorize(authorization.ObjectReservation, authorization.ActionReservationView), s.GetReservation)
		reservations.POST("/:id/cancel", s.authorize(authorization.ObjectReservation, authorization.ActionReservationCancel), s.CancelReservation)
	}

	// -------- Occupancy --------
	api.GET("/occupancy", s.SellerRequired(), s.authorize(authorization.ObjectOccupancy, authorization.ActionOccupancyView), s.GetOccupancy)

	// -------- Accounts --------
	accounts := api.Group("/accounts/:id", s.SellerRequired(), s.authorize(authorization.ObjectLedger, authorization.ActionLedgerView))
	{
		accounts.GET("/balance", s.GetBalance)
		accounts.GET("/entries", s.ListEntries)
	}

	// -------- Webhooks --------
	api.POST("/webhooks/topups", s.TopupSignatureRequired(), s.authorize(authorization.ObjectLedger, authorization.ActionLedgerCredit), s.HandleTopupWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminRequired())

	// -------- Reservations --------
	admin.POST("/reservations", s.authorize(authorization.ObjectReservation, authorization.ActionReservationOverride), s.AdminCreateReservation)
	admin.POST("/reservations/bulk", s.authorize(authorization.ObjectReservation, authorization.ActionReservationBulk), s.BulkAssignReservations)
	admin.GET("/reservations", s.authorize(authorization.ObjectReservation, authorization.ActionReservationView), s.ListReservations)
	admin.GET("/reservations/:id", s.authorize(authorization.ObjectReservation, authorization.ActionReservationView), s.GetReservation)
	admin.PATCH("/reservations/:id", s.authorize(authorization.ObjectReservation, authorization.ActionReservationEdit), s.EditReservation)
	admin.POST("/reservations/:id/cancel", s.authorize(authorization.ObjectReservation, authorization.ActionReservationCancel), s.CancelReservation)

	// -------- Occupancy --------
	admin.GET("/occupancy", s.authorize(authorization.ObjectOccupancy, authorization.ActionOccupancyView), s.GetOccupancy)
	admin.GET("/occupancy/:placement/:date", s.authorize(authorization.ObjectOccupancy, authorization.ActionOccupancyView), s.ListActiveOnDate)

	// -------- Ledger --------
	admin.GET("/accounts/:id/balance", s.authorize(authorization.ObjectLedger, authorization.ActionLedgerView), s.GetBalance)
	admin.GET("/accounts/:id/entries", s.authorize(authorization.ObjectLedger, authorization.ActionLedgerView), s.ListEntries)
	admin.POST("/accounts/:id/credits", s.authorize(authorization.ObjectLedger, authorization.ActionLedgerCredit), s.AdminCreditAccount)

	// -------- Catalog --------
	admin.GET("/catalog", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.GetCatalog)
	admin.PUT("/catalog/placements/:placement", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.SetPlacementCapacity)
	admin.PUT("/catalog/prices", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.SetSlotPrice)
	admin.DELETE("/catalog/prices/:placement/:days", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.DeleteSlotPrice)

	// -------- Ads --------
	admin.PUT("/ads/:id", s.authorize(authorization.ObjectAd, authorization.ActionAdManage), s.UpsertAd)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
