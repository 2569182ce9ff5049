package migrations

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/uptrace/bun"
)

// Options configures the migration runner.
type Options struct {
	// Dir holds the numbered *.up.sql / *.down.sql files.
	Dir string
	// AutoMigrate applies pending migrations when the service starts.
	AutoMigrate bool
}

func DefaultOptions() Options {
	return Options{
		Dir:         "./migrations",
		AutoMigrate: true,
	}
}

// Runner applies schema migrations to the store database.
type Runner struct {
	bunDB    *bun.DB
	options  Options
	migrator *migrate.Migrate
	log      *logger.Logger
}

func NewRunner(bunDB *bun.DB, opts Options, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
		log:     log,
	}
}

func (r *Runner) initialize() error {
	if r.migrator != nil {
		return nil
	}

	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	if _, err := os.Stat(r.options.Dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.Dir)
	}

	migrator, err := migrate.NewWithDatabaseInstance("file://"+r.options.Dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

// Run is the startup hook: it applies pending migrations when AutoMigrate is set
// and refuses to continue on a dirty schema.
func (r *Runner) Run() error {
	if !r.options.AutoMigrate {
		r.log.Info("MIGRATE", "Automatic migrations disabled")
		return nil
	}
	if err := r.initialize(); err != nil {
		return err
	}

	if _, dirty, err := r.Version(); err != nil {
		return err
	} else if dirty {
		return fmt.Errorf("schema is dirty, fix it with the migrate command before starting")
	}

	if err := r.Up(); err != nil {
		return err
	}

	version, _, err := r.Version()
	if err != nil {
		return err
	}
	r.log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d", version))
	return nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	if err := r.initialize(); err != nil {
		return err
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down rolls back all migrations.
func (r *Runner) Down() error {
	if err := r.initialize(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// To migrates up or down to version.
func (r *Runner) To(version uint) error {
	if err := r.initialize(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// Force marks version as applied and clears the dirty flag.
func (r *Runner) Force(version int) error {
	if err := r.initialize(); err != nil {
		return err
	}
	if err := r.migrator.Force(version); err != nil {
		return fmt.Errorf("force version %d failed: %w", version, err)
	}
	return nil
}

// Version reports the applied version; 0 means nothing has been applied.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.initialize(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
