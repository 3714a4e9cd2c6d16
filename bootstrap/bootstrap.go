package bootstrap

import (
	"lethex-backend/internal/app"
	"lethex-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosting (the api handler imports
// this package, not internal). The price poller is not started; prices come
// from whichever long-running instance shares the Redis cache.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	srv, err := app.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return srv.App, nil
}
