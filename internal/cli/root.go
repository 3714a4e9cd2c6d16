// Package cli holds the lethexctl operator commands. They work directly on
// the database and share the services the HTTP API uses.
package cli

import (
	"fmt"
	"io"

	"lethex-backend/internal/app"
	"lethex-backend/internal/config"
	"lethex-backend/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Env supplies the stores a command needs. Tests replace the openers.
type Env struct {
	OpenDB    func() (*gorm.DB, error)
	OpenRedis func() (*redis.Client, error)
	Config    func() (*config.Config, error)
}

// DefaultEnv opens stores from the loaded configuration.
func DefaultEnv() *Env {
	return &Env{
		Config: config.Load,
		OpenDB: func() (*gorm.DB, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			if cfg.DatabaseURL == "" {
				return nil, fmt.Errorf("no database url configured for APP_ENV=%s", cfg.Env)
			}
			return database.Open(cfg.DatabaseURL)
		},
		OpenRedis: func() (*redis.Client, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			_, rdb, err := app.Open(cfg)
			return rdb, err
		},
	}
}

// New builds the lethexctl root command.
func New(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "lethexctl",
		Short: "Operator tools for the Lethex fund backend",
		Long: `lethexctl runs administrative tasks against the Lethex database:
schema migration, admin bootstrap, token whitelist maintenance, holder
onboarding, commission reconciliation and one-off price refreshes.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(env),
		newAdminCmd(env),
		newTokenCmd(env),
		newHolderCmd(env),
		newCommissionsCmd(env),
		newPricesCmd(env),
	)
	return root
}

// Execute runs the root command with the default environment.
func Execute() error {
	return New(DefaultEnv()).Execute()
}

func migrated(env *Env) (*gorm.DB, error) {
	db, err := env.OpenDB()
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
