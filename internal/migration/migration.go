package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	customdiscountdomain "github.com/smallbiznis/eroom/internal/customdiscount/domain"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models are the tables owned by this service, in dependency order.
func Models() []any {
	return []any{
		&roomdomain.Room{},
		&coupondomain.Coupon{},
		&contractdomain.Contract{},
		&contractdomain.ContractRequest{},
		&auditdomain.StatusHistory{},
		&customdiscountdomain.CustomDiscount{},
		&notificationdomain.Template{},
		&notificationdomain.Log{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Apply brings the schema up to date. Postgres uses the versioned SQL
// files; mysql and sqlite are only used for local runs and get AutoMigrate.
func Apply(conn *gorm.DB, dbType string) error {
	if dbType != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
