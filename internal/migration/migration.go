package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/smallbiznis/posreport/internal/jobs"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/db"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every table the service owns, in dependency order.
func Models() []any {
	models := []any{
		&authdomain.User{}, &authdomain.Session{},
		&refdomain.Branch{}, &refdomain.Store{}, &apikeydomain.TerminalKey{},
		&ingestiondomain.Header{}, &ingestiondomain.Item{}, &ingestiondomain.Payment{},
		&ingestiondomain.Discount{}, &ingestiondomain.Category{}, &ingestiondomain.Product{},
		&ingestiondomain.Document{},
	}
	return append(models, jobs.Models()...)
}

// Run brings the schema up to date. Postgres applies the versioned SQL files; sqlite and
// mysql, used for local runs, are migrated from the gorm models.
func Run(conn *gorm.DB, dialect string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if !strings.EqualFold(strings.TrimSpace(dialect), db.TypePostgres) {
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

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
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

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
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
	// Closing the migrator would close the shared *sql.DB.
	return nil
}
