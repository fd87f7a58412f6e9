package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"restoration-portal/registry-backend/internal/config"
	"restoration-portal/registry-backend/internal/registry"
)

// The reconciliation worker sweeps for projects stuck in VERIFYING. A
// project sits there in exactly two cases: an operator is mid-issuance, or
// a partial issuance failure left it awaiting manual resolution. Stale
// entries are surfaced loudly so operational tooling can alert on them;
// the worker never transitions state itself, since an automatic rollback
// could permit a duplicate mint.
func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	store := registry.NewGormStore(db)
	stuckAfter := time.Duration(cfg.Reconciliation.StuckAfterMinutes) * time.Minute

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Reconciliation.Schedule, func() {
		sweep(store, stuckAfter, logger)
	})
	if err != nil {
		logger.Fatal("Invalid reconciliation schedule", zap.Error(err))
	}
	scheduler.Start()
	logger.Info("Reconciliation worker started",
		zap.String("schedule", cfg.Reconciliation.Schedule),
		zap.Duration("stuck_after", stuckAfter),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
	logger.Info("Reconciliation worker exiting")
}

func sweep(store *registry.GormStore, stuckAfter time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-stuckAfter)
	stuck, err := store.VerifyingSince(ctx, cutoff)
	if err != nil {
		logger.Error("Reconciliation sweep failed", zap.Error(err))
		return
	}

	for _, project := range stuck {
		entries, err := store.ByProject(ctx, project.ProjectID)
		if err != nil {
			logger.Error("Failed to load audit trail",
				zap.String("project_id", project.ProjectID),
				zap.Error(err),
			)
			continue
		}

		partial := false
		for _, entry := range entries {
			if entry.Action == registry.ActionPartialIssuance {
				partial = true
			}
		}

		if partial {
			logger.Error("Project awaiting manual partial-issuance resolution",
				zap.String("project_id", project.ProjectID),
				zap.Time("verifying_since", project.UpdatedAt),
			)
		} else {
			logger.Warn("Project stuck in verifying",
				zap.String("project_id", project.ProjectID),
				zap.Time("verifying_since", project.UpdatedAt),
			)
		}
	}

	if len(stuck) == 0 {
		logger.Info("Reconciliation sweep clean")
	}
}
