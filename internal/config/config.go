package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                  string
	Port                 string
	SessionSecret        string
	DatabaseURL          string
	RedisURL             string
	FrontendOrigins      []string
	FrontendURLEndsWith  string
	DevPassword          string
	AllowCrossSiteDev    bool
	HealthAdminKey       string
	SwapFeeRate          decimal.Decimal
	PriceFeedURL         string
	PricePollInterval    time.Duration
	PriceCacheTTL        time.Duration
	ActiveAssetsCacheTTL time.Duration
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SWAP_FEE_RATE", "0.01")
	viper.SetDefault("PRICE_FEED_URL", "https://api.coingecko.com/api/v3")
	viper.SetDefault("PRICE_POLL_INTERVAL", "1s")
	viper.SetDefault("PRICE_CACHE_TTL", "30s")
	viper.SetDefault("ACTIVE_ASSETS_CACHE_TTL", "10s")

	env := viper.GetString("APP_ENV")

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	fee, err := decimal.NewFromString(viper.GetString("SWAP_FEE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("SWAP_FEE_RATE: %w", err)
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("SWAP_FEE_RATE must be in [0, 1), got %s", fee)
	}

	return &Config{
		Env:                  env,
		Port:                 viper.GetString("PORT"),
		SessionSecret:        viper.GetString("SESSION_SECRET"),
		DatabaseURL:          dbURL,
		RedisURL:             viper.GetString("REDIS_URL"),
		FrontendOrigins:      splitList(viper.GetString("FRONTEND_ORIGINS")),
		FrontendURLEndsWith:  viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:    viper.GetBool("ALLOW_CROSS_SITE_DEV"),
		HealthAdminKey:       viper.GetString("HEALTH_ADMIN_KEY"),
		SwapFeeRate:          fee,
		PriceFeedURL:         viper.GetString("PRICE_FEED_URL"),
		PricePollInterval:    viper.GetDuration("PRICE_POLL_INTERVAL"),
		PriceCacheTTL:        viper.GetDuration("PRICE_CACHE_TTL"),
		ActiveAssetsCacheTTL: viper.GetDuration("ACTIVE_ASSETS_CACHE_TTL"),
	}, nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
