package middleware

import (
	"strings"

	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Trace-Id, dev-password"
)

// CORSConfig lists the browser origins of the admin panel and holder app.
// AllowLocalhost admits http://localhost:* and http://127.0.0.1:* and is
// meant for development only.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedSuffix  string
	AllowLocalhost bool
	DevPassword    string
}

func (cfg CORSConfig) allows(c *fiber.Ctx, origin string) bool {
	lower := strings.ToLower(origin)
	for _, o := range cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	if cfg.AllowedSuffix != "" && strings.HasSuffix(lower, strings.ToLower(cfg.AllowedSuffix)) {
		return true
	}
	if cfg.AllowLocalhost && (strings.HasPrefix(lower, "http://localhost:") || strings.HasPrefix(lower, "http://127.0.0.1:")) {
		return true
	}
	return cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword
}

// CORS admits credentialed requests from configured origins and answers
// their preflights. Requests without an Origin header pass untouched.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin == "" {
			return c.Next()
		}
		if !cfg.allows(c, origin) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}
		c.Set("Access-Control-Allow-Origin", origin)
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Vary("Origin")
		if c.Method() == fiber.MethodOptions {
			c.Set("Access-Control-Allow-Methods", corsAllowMethods)
			c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
