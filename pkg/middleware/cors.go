package middleware

import (
	"net/http"

	"formflow-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS allows the configured origins; "*" (the development default) disables credentials
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"Link",
			"X-Total-Count",
			"X-Request-Id",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if len(cfg.AllowedOrigins) == 0 || cfg.AllowedOrigins[0] == "*" {
		// wildcard origin cannot be combined with credentials
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	return cors.Handler(corsOptions)
}
