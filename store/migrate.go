package store

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations for the store's dialect. The
// mysql DSN must enable multiStatements.
func (s *SQLStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.d.name)
	if err != nil {
		return errors.Wrap(err, "could not open migrations")
	}

	var driver database.Driver
	switch s.d.name {
	case "postgres":
		driver, err = migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(s.db.DB, &migratemysql.Config{})
	default:
		err = ErrUnsupportedDriver
	}
	if err != nil {
		return errors.Wrap(err, "could not create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, s.d.name, driver)
	if err != nil {
		return errors.Wrap(err, "could not create migrate instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "could not run migrations")
	}
	return nil
}
