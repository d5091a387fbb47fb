package main

import (
	"context"
	"fmt"
	"os"

	"github.com/veilhq/veil-backend/internal/config"
	"github.com/veilhq/veil-backend/internal/db"
	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/services"
)

// Digest job. Runs once, builds the weekly digest for every org off the
// same evaluated views the dashboard serves, and exits. Scheduling is the
// deployment's problem (cron or a scheduled task).
func main() {
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

	policy, err := config.LoadPolicy(log)
	if err != nil {
		log.Error("Privacy policy load failed", "error", err)
		os.Exit(1)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	orgRepo := repos.NewOrgRepo(thePG, log)
	threadRepo := repos.NewThreadRepo(thePG, log)
	submissionRepo := repos.NewSubmissionRepo(thePG, log)
	themeRepo := repos.NewThemeRepo(thePG, log)

	var notifier services.NotifierService
	notifier, err = services.NewRedisNotifier(log)
	if err != nil {
		log.Warn("Redis notifier unavailable, digest notifications disabled", "error", err)
		notifier = services.NewNoopNotifier(log)
	}
	defer notifier.Close()

	aggregateService := services.NewAggregateService(thePG, log, policy, orgRepo, threadRepo, submissionRepo, themeRepo)
	digestService := services.NewDigestService(thePG, log, orgRepo, aggregateService, notifier)

	digests, err := digestService.BuildAll(context.Background())
	if err != nil {
		log.Error("Digest build failed", "error", err)
		os.Exit(1)
	}
	log.Info("Digest build complete", "orgs", len(digests))
}
