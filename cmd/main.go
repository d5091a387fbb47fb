package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/veilhq/veil-backend/internal/audit"
	"github.com/veilhq/veil-backend/internal/config"
	"github.com/veilhq/veil-backend/internal/db"
	"github.com/veilhq/veil-backend/internal/handlers"
	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/middleware"
	"github.com/veilhq/veil-backend/internal/observability"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/server"
	"github.com/veilhq/veil-backend/internal/services"
	"github.com/veilhq/veil-backend/internal/themes"
	"github.com/veilhq/veil-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithRedaction(privacy.LogRedactor{})
	defer log.Sync()

	// Tracing
	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "veil-backend",
		Environment: logMode,
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer otelShutdown(ctx)
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecretKey == "" {
		log.Error("JWT_SECRET_KEY is required")
		os.Exit(1)
	}
	masterKeyHex := utils.GetEnv("MASTER_KEY_HEX", "", log)
	if masterKeyHex == "" {
		log.Error("MASTER_KEY_HEX is required")
		os.Exit(1)
	}
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)

	// Privacy policy: bad values mean handles or counts could leak, so a
	// policy that fails validation stops the boot.
	policy, err := config.LoadPolicy(log)
	if err != nil {
		log.Error("Privacy policy load failed", "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	orgRepo := repos.NewOrgRepo(thePG, log)
	threadRepo := repos.NewThreadRepo(thePG, log)
	submissionRepo := repos.NewSubmissionRepo(thePG, log)
	themeRepo := repos.NewThemeRepo(thePG, log)
	rotationEventRepo := repos.NewRotationEventRepo(thePG, log)
	adminUserRepo := repos.NewAdminUserRepo(thePG, log)
	adminTokenRepo := repos.NewAdminTokenRepo(thePG, log)

	// Audit trail: bounded ring for queries, durable rows behind it.
	var trail audit.Trail = audit.NewMemoryTrail(policy.AuditCapacity)
	trail = audit.NewTee(trail, repos.NewDurableTrail(rotationEventRepo, log))

	// Notifier
	var notifier services.NotifierService
	notifier, err = services.NewRedisNotifier(log)
	if err != nil {
		log.Warn("Redis notifier unavailable, notifications disabled", "error", err)
		notifier = services.NewNoopNotifier(log)
	}
	defer notifier.Close()

	// Jitter scheduler
	jitter := privacy.NewJitterScheduler(ctx, log)

	// Theme embedder
	var embedder themes.Embedder
	if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
		embedder, err = themes.NewOpenAIEmbedder(apiKey, log)
		if err != nil {
			log.Warn("OpenAI embedder init failed, using local embedder", "error", err)
			embedder = themes.NewLocalEmbedder()
		}
	} else {
		log.Info("OPENAI_API_KEY not set, using local embedder")
		embedder = themes.NewLocalEmbedder()
	}
	themeEngine := themes.NewEngine(embedder, log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService, bucket exports disabled", "error", err)
	}
	keyRotationService, err := services.NewKeyRotationService(thePG, log, orgRepo, trail, masterKeyHex)
	if err != nil {
		log.Error("Could not init KeyRotationService", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, adminUserRepo, adminTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	ingestService := services.NewIngestService(thePG, log, policy, orgRepo, threadRepo, submissionRepo, keyRotationService, notifier, jitter)
	aggregateService := services.NewAggregateService(thePG, log, policy, orgRepo, threadRepo, submissionRepo, themeRepo)
	exportService := services.NewExportService(log, aggregateService, bucketService)
	digestService := services.NewDigestService(thePG, log, orgRepo, aggregateService, notifier)
	themeBuildService := services.NewThemeBuildService(thePG, log, orgRepo, threadRepo, submissionRepo, themeRepo, themeEngine)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	ingestHandler := handlers.NewIngestHandler(ingestService)
	threadHandler := handlers.NewThreadHandler(aggregateService)
	themeHandler := handlers.NewThemeHandler(aggregateService, themeBuildService)
	exportHandler := handlers.NewExportHandler(exportService)
	digestHandler := handlers.NewDigestHandler(digestService)
	rotationHandler := handlers.NewRotationHandler(keyRotationService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:     "veil-backend",
		AllowedOrigins:  splitOrigins(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)),
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		IngestHandler:   ingestHandler,
		ThreadHandler:   threadHandler,
		ThemeHandler:    themeHandler,
		ExportHandler:   exportHandler,
		DigestHandler:   digestHandler,
		RotationHandler: rotationHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
