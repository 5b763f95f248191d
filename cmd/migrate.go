package cmd

import (
	"errors"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-bookings/config"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			if err := m.Up(); err != nil {
				if errors.Is(err, migrate.ErrNoChange) {
					logrus.Info("Database schema is up to date")
					return
				}
				logrus.WithError(err).Fatal("Migration up failed")
			}
			logrus.Info("Migrations applied")
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			if err := m.Steps(-1); err != nil {
				logrus.WithError(err).Fatal("Migration down failed")
			}
			logrus.Info("Rolled back one migration")
		})
	},
}

var migrateGotoCmd = &cobra.Command{
	Use:   "goto [version]",
	Short: "Migrate to a specific schema version",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		version, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			logrus.WithError(err).Fatal("Invalid migration version")
		}
		withMigrator(func(m *migrate.Migrate) {
			if err := m.Migrate(uint(version)); err != nil {
				if errors.Is(err, migrate.ErrNoChange) {
					logrus.WithField("version", version).Info("Database schema already at version")
					return
				}
				logrus.WithError(err).Fatal("Migration goto failed")
			}
			logrus.WithField("version", version).Info("Migrated to version")
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			version, dirty, err := m.Version()
			if err != nil {
				if errors.Is(err, migrate.ErrNilVersion) {
					logrus.Info("No migrations applied yet")
					return
				}
				logrus.WithError(err).Fatal("Failed to read migration version")
			}
			logrus.WithField("version", version).WithField("dirty", dirty).Info("Current schema version")
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateGotoCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "Path to migration files")
}

func withMigrator(fn func(m *migrate.Migrate)) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	m, err := migrate.New("file://"+migrationsPath, "mysql://"+cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize migrator")
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logrus.WithField("source_err", sourceErr).WithField("db_err", dbErr).Warn("Failed to close migrator")
		}
	}()

	fn(m)
}
