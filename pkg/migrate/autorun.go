package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

// ActiveIndexes are the partial unique indexes guarding assignment and claim
// exclusivity. They are valid on both sqlite and postgres and mirror the
// goose migrations.
var ActiveIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_delivery_assignments_active_order
		ON delivery_assignments (order_id) WHERE status <> 'cancelled'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_delivery_claim_requests_active_order
		ON delivery_claim_requests (order_id) WHERE claim_status IN ('pending', 'approved')`,
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite runs
// and tests, where the postgres migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, stmt := range ActiveIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create active index: %w", err)
		}
	}
	return nil
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "sqlite": cfg.FeatureFlags.UseSQLite})

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "building sqlite schema from models (dev auto-run)")
		return AutoMigrate(client.DB().WithContext(ctx))
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
