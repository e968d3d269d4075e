// Package main runs the admin console HTTP server with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atriumhq/console/config"
	"github.com/atriumhq/console/internal/apps"
	"github.com/atriumhq/console/internal/auth"
	"github.com/atriumhq/console/internal/billing"
	"github.com/atriumhq/console/internal/chat"
	"github.com/atriumhq/console/internal/links"
	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/internal/organizations"
	"github.com/atriumhq/console/internal/profiles"
	"github.com/atriumhq/console/internal/realtime"
	"github.com/atriumhq/console/internal/settings"
	"github.com/atriumhq/console/internal/teams"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/database"
	"github.com/atriumhq/console/pkg/queue"
	"github.com/atriumhq/console/pkg/redis"
	"github.com/atriumhq/console/pkg/response"
	"github.com/atriumhq/console/pkg/storage"
)

// tenantEvents fans a tenant switch out to dependent features: live chat
// sessions are invalidated and connected clients are told to re-fetch.
type tenantEvents struct {
	registry *chat.Registry
	hub      *realtime.Hub
}

func (e *tenantEvents) TenantSwitched(userID, organizationID uuid.UUID) {
	if e.registry != nil {
		e.registry.InvalidateUser(userID)
	}
	if e.hub != nil {
		e.hub.NotifyUser(userID, realtime.EventTenantSwitched, map[string]string{
			"organization_id": organizationID.String(),
		})
	}
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			LogosBucket:          cfg.AWS.LogosBucket,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations and memberships
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, s3Client, logger)

	// Tenant resolution. The event sink is filled in once the chat registry
	// exists; switches before that only touch the selection store.
	events := &tenantEvents{hub: hub}
	selectionStore := tenant.NewRedisSelectionStore(rdb.Client)
	resolver := tenant.NewResolver(orgRepo, selectionStore, events, logger)
	tenantHandler := tenant.NewHandler(resolver, logger)

	// Billing
	billingRepo := billing.NewRepository(pool)
	stripeClient := billing.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	billingHandler := billing.NewHandler(billingRepo, stripeClient, jobQueue,
		cfg.Stripe.PriceID, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, logger)

	// Chat
	chatRepo := chat.NewRepository(pool)
	streamClient := chat.NewStreamClient(time.Duration(cfg.Chat.RequestTimeoutSec)*time.Second, logger)
	chatRegistry := chat.NewRegistry(chatRepo, chatRepo, billingRepo, streamClient, resolver.ActiveOrganization, logger)
	events.registry = chatRegistry
	chatHandler := chat.NewHandler(chatRegistry, chatRepo, jobQueue, cfg.Chat.DefaultDisclaimer, logger)

	// Teams
	teamRepo := teams.NewRepository(pool)
	teamHandler := teams.NewHandler(teamRepo, logger)

	// Links and top bar
	linkRepo := links.NewRepository(pool)
	linkHandler := links.NewHandler(linkRepo, logger)

	// Profiles
	profileRepo := profiles.NewRepository(pool)
	profileHandler := profiles.NewHandler(profileRepo, s3Client, logger)

	// Site branding
	settingsRepo := settings.NewRepository(pool)
	settingsHandler := settings.NewHandler(settingsRepo, s3Client, logger)

	// App catalog and activations
	appRepo := apps.NewRepository(pool)
	appHandler := apps.NewHandler(appRepo, logger)

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (global admin; for membership assignment)
		api.GET("/users", middleware.RequireGlobalAdmin(), authHandler.List)

		// Tenant context
		api.GET("/tenant", tenantHandler.Resolve)
		api.POST("/tenant/switch", tenantHandler.Switch)
		api.GET("/tenant/navigation", tenantHandler.Navigation)

		// Profile (self)
		api.GET("/profile", profileHandler.Me)
		api.PUT("/profile", profileHandler.Update)
		api.POST("/profile/avatar", profileHandler.UploadAvatar)

		// Site branding and top bar (read)
		api.GET("/settings", settingsHandler.Get)
		api.GET("/topbar-links", linkHandler.ListTopBar)

		// App catalog
		api.GET("/apps", appHandler.ListAvailable)

		// Billing
		api.GET("/billing/subscription", billingHandler.GetSubscription)
		api.POST("/billing/checkout-session", billingHandler.CreateCheckoutSession)

		// Global admin surface
		admin := api.Group("/admin", middleware.RequireGlobalAdmin())
		{
			admin.GET("/profiles", profileHandler.List)
			admin.PUT("/profiles/:userId", profileHandler.AdminUpdate)
			admin.PUT("/settings", settingsHandler.Update)
			admin.POST("/settings/logo", settingsHandler.UploadLogo)
			admin.POST("/topbar-links", linkHandler.CreateTopBar)
			admin.PUT("/topbar-links/:linkId", linkHandler.UpdateTopBar)
			admin.DELETE("/topbar-links/:linkId", linkHandler.DeleteTopBar)
		}

		// Organizations
		api.GET("/organizations", orgHandler.List)
		api.POST("/organizations", orgHandler.Create)

		org := api.Group("/organizations/:id", tenant.RequireOrgAccess(orgRepo))
		{
			org.GET("", orgHandler.Get)
			org.PUT("", orgHandler.Update)
			org.DELETE("", middleware.RequireGlobalAdmin(), orgHandler.Delete)
			org.POST("/logo", orgHandler.UploadLogo)
			org.GET("/members", orgHandler.ListMembers)
			org.POST("/members", orgHandler.AddMember)
			org.DELETE("/members/:userId", orgHandler.RemoveMember)

			org.GET("/teams", teamHandler.List)
			org.POST("/teams", teamHandler.Create)
			org.GET("/teams/:teamId", teamHandler.Get)
			org.PUT("/teams/:teamId", teamHandler.Update)
			org.DELETE("/teams/:teamId", teamHandler.Delete)
			org.GET("/teams/:teamId/members", teamHandler.ListMembers)
			org.POST("/teams/:teamId/members", teamHandler.AddMember)
			org.DELETE("/teams/:teamId/members/:userId", teamHandler.RemoveMember)

			org.GET("/links", linkHandler.List)
			org.POST("/links", linkHandler.Create)
			org.PUT("/links/:linkId", linkHandler.Update)
			org.DELETE("/links/:linkId", linkHandler.Delete)

			org.GET("/apps", appHandler.ListForOrganization)
			org.PUT("/apps/:appType", appHandler.Configure)
			org.POST("/apps/:appType/enable", appHandler.SetEnabled(true))
			org.POST("/apps/:appType/disable", appHandler.SetEnabled(false))

			org.GET("/chat/messages", chatHandler.ListMessages)
			org.POST("/chat/messages", chatHandler.Submit)
			org.GET("/chat/config", chatHandler.GetConfig)
			org.GET("/chat/usage", chatHandler.ListUsage)
		}
	}

	// Webhooks (no JWT; signature verified in handler)
	router.POST("/webhooks/billing", billingHandler.Webhook)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
