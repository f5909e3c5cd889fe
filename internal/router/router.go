package router

import (
	"net/http"
	"time"

	"hireloop/config"
	"hireloop/internal/domain"
	"hireloop/internal/handler"
	"hireloop/internal/metrics"
	"hireloop/internal/middleware"
	"hireloop/internal/repository"
	"hireloop/internal/service"
	"hireloop/internal/ws"
	"hireloop/pkg/cloudinary"
	"hireloop/pkg/payment"
	"hireloop/pkg/rabbitmq"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the external collaborators built by the entrypoint. Nil Cloud,
// Publisher and Redis disable uploads, event publishing and the shared
// rate limiter respectively.
type Deps struct {
	Gateway   payment.Gateway
	Notifier  *service.NotificationService
	Hub       *ws.Hub
	Cloud     cloudinary.Client
	Publisher rabbitmq.Publisher
	Redis     redis.UniversalClient
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.Instrument())

	var limiter middleware.Limiter = middleware.NewInMemoryRateLimiter(cfg.Redis.RequestsPerMin, time.Minute)
	if deps.Redis != nil {
		limiter = middleware.NewRedisRateLimiter(deps.Redis, cfg.Redis.RateLimitPrefix, cfg.Redis.RequestsPerMin, time.Minute, limiter)
	}

	// Repositories
	contractRepo := repository.NewContractRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	deliverableRepo := repository.NewDeliverableRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	// Services
	guard := service.NewAccessGuard(profileRepo)
	auditSvc := service.NewAuditService(auditRepo, deps.Publisher)
	escrowSvc := service.NewEscrowService(contractRepo, guard, deps.Gateway, auditSvc, deps.Notifier, cfg.Escrow, cfg.Payment)
	deliverableSvc := service.NewDeliverableService(contractRepo, guard, deliverableRepo, deps.Cloud, auditSvc, deps.Notifier)

	// Handlers
	contractHandler := handler.NewContractHandler(escrowSvc, auditSvc)
	deliverableHandler := handler.NewDeliverableHandler(deliverableSvc)
	notificationHandler := handler.NewNotificationHandler(deps.Notifier)
	webhookHandler := handler.NewPaymentWebhookHandler(deps.Gateway, escrowSvc, webhookRepo, cfg.Payment.SignatureHeader)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter))
	{
		api.POST("/webhooks/payments", webhookHandler.Handle)
		api.GET("/fees/quote", contractHandler.FeeQuote)

		contracts := api.Group("/contracts")
		contracts.Use(authMw)
		{
			contracts.POST("", middleware.RequireRole(domain.RoleBusiness), contractHandler.Create)
			contracts.GET("", contractHandler.List)
			contracts.GET("/:id", contractHandler.Get)
			contracts.GET("/:id/audit", contractHandler.AuditTrail)
			contracts.POST("/:id/checkout", contractHandler.Checkout)
			contracts.POST("/:id/request-release", contractHandler.RequestRelease)
			contracts.POST("/:id/release", contractHandler.Release)
			contracts.POST("/:id/dispute", contractHandler.Dispute)
			contracts.POST("/:id/complete", contractHandler.Complete)
			contracts.GET("/:id/deliverables", deliverableHandler.List)
			contracts.POST("/:id/deliverables", deliverableHandler.Upload)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", notificationHandler.RegisterFCMToken)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/contracts", contractHandler.List)
			admin.POST("/contracts/:id/refund", contractHandler.Refund)
			admin.POST("/contracts/:id/resolve-dispute", contractHandler.ResolveDispute)
		}
	}

	r.GET("/ws/notifications", ws.UpgradeNotificationWS(&cfg.JWT, deps.Hub))

	return r
}
