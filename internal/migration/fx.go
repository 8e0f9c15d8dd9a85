package migration

import (
	"fmt"

	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/config"
	donationdomain "github.com/smallbiznis/givebox/internal/donation/domain"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// models lists every persisted type in dependency order.
var models = []any{
	&orgdomain.Organization{},
	&userdomain.User{},
	&widgetdomain.Widget{},
	&widgetdomain.Theme{},
	&widgetdomain.Cause{},
	&donationdomain.Donation{},
	&invoicedomain.Invoice{},
	&paymentdomain.EventRecord{},
	&auditdomain.AuditLog{},
}

// sqliteIndexes are constraints gorm tags cannot express.
var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_one_owner_per_org ON users (organization_id) WHERE role = 'owner'`,
}

// Run brings the schema up to date. Postgres applies the embedded sql
// migrations; sqlite, used for local runs, is auto-migrated from the models.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")

	if cfg.DBType == "sqlite" {
		if err := conn.AutoMigrate(models...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		for _, stmt := range sqliteIndexes {
			if err := conn.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		log.Info("sqlite schema migrated", zap.Int("models", len(models)))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	version, err := RunMigrations(sqlDB)
	if err != nil {
		return err
	}
	log.Info("postgres migrations applied", zap.Uint("version", version))
	return nil
}
