package middleware

import (
	"net/http"
	"slices"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// CORS admits browser requests from the same origin list the WebSocket
// upgrader checks. "*" admits any origin, in which case credentials are not
// allowed. Origin decisions are logged at debug level.
func CORS(allowedOrigins []string, logger zerolog.Logger) func(http.Handler) http.Handler {
	corsLogger := logger.With().Str("component", "cors").Logger()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", chimw.RequestIDHeader},
		ExposedHeaders:   []string{chimw.RequestIDHeader},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           int((5 * time.Minute) / time.Second),
		Logger:           &corsLogger,
	})

	return c.Handler
}
