package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"formflow-backend/pkg/config"
	"formflow-backend/pkg/logging"
	"formflow-backend/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
)

// Recovery turns a panic into a 500, logging it and reporting it to Sentry when configured.
// Development responses include the stack.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				logging.LogError(fmt.Errorf("panic: %v", rec), "panic", map[string]interface{}{
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": middleware.GetReqID(r.Context()),
					"stack":      string(stack),
				})

				if cfg.IsDevelopment() {
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR",
						fmt.Sprintf("Internal server error: %v", rec),
						string(stack))
					return
				}
				utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
