package handler

import (
	"fmt"
	"net/http"
	"time"

	"formflow-backend/pkg/access"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/handlers"
	"formflow-backend/pkg/logging"
	customMiddleware "formflow-backend/pkg/middleware"
	"formflow-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 25 * time.Second
	maxRequestBody = 1 << 20
)

// Handler is the serverless entry point: one chi router serving every endpoint
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// the pool reuses the connection across warm invocations
	db, err := database.GetDatabase(r.Context(), StoreConfig(cfg))
	if err != nil {
		logging.LogError(err, "database", map[string]interface{}{"backend": cfg.StoreBackend})
		utils.WriteInternalServerErrorResponse(w, "Database unavailable")
		return
	}

	NewRouter(cfg, db, logging.Logger()).ServeHTTP(w, r)
}

// StoreConfig maps service configuration onto the store selector
func StoreConfig(cfg *config.Config) database.DatabaseConfig {
	return database.DatabaseConfig{
		Backend:       cfg.StoreBackend,
		DataDir:       cfg.DataDir,
		PostgresDSN:   cfg.PostgresDSN,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		Redis: database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		Debug: cfg.Debug,
	}
}

// NewLedger builds the invite ledger with the configured TTL and use policy
func NewLedger(cfg *config.Config, db database.DatabaseInterface, log logrus.FieldLogger) *access.Ledger {
	return access.NewLedger(db, access.LedgerOptions{
		TTL:       cfg.InviteTTL,
		SingleUse: cfg.InviteSingleUse,
	}, log)
}

// NewRouter wires middleware and every API route onto a fresh chi router
func NewRouter(cfg *config.Config, db database.DatabaseInterface, log logrus.FieldLogger) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, cfg, log)
	setupRoutes(router, cfg, db, log)
	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, log logrus.FieldLogger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(log))
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(customMiddleware.ContentTypeJSON)
	router.Use(customMiddleware.MaxBodySize(maxRequestBody))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, log logrus.FieldLogger) {
	engine := access.NewEngine(db, log)
	ledger := NewLedger(cfg, db, log)
	jwtService := utils.NewJWTService(cfg.JWTSecret).WithTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	healthHandler := handlers.NewHealthHandler(cfg, db)
	userHandler := handlers.NewUserHandler(cfg, db, engine)
	workspaceHandler := handlers.NewWorkspaceHandler(cfg, db, engine, ledger)
	folderHandler := handlers.NewFolderHandler(cfg, db, engine)
	formHandler := handlers.NewFormHandler(cfg, db, engine)
	responseHandler := handlers.NewResponseHandler(cfg, db, engine)

	router.Get("/", healthHandler.HealthCheck)
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", healthHandler.PoolStats)
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HealthCheck)

		// public
		r.Post("/user/signup", userHandler.Signup)
		r.Post("/user/login", userHandler.Login)
		r.Post("/user/refresh", userHandler.RefreshToken)
		r.Get("/response/{formId}/get-flow", responseHandler.GetFlow)
		r.Post("/response/update-response", responseHandler.UpdateResponse)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(jwtService))

			r.Get("/user/get-user", userHandler.GetUser)
			r.Put("/user/update-user", userHandler.UpdateUser)

			r.Route("/workspace", func(r chi.Router) {
				r.Get("/get-all-workspaces", workspaceHandler.GetAllWorkspaces)
				r.Get("/{workspaceId}/get-workspace", workspaceHandler.GetWorkspace)
				r.Post("/{workspaceId}/add-workspace", workspaceHandler.AddWorkspace)
				r.Post("/{workspaceId}/generate-invite", workspaceHandler.GenerateInvite)
				r.Get("/{inviteToken}/validate-invite", workspaceHandler.ValidateInvite)
			})

			r.Route("/folder", func(r chi.Router) {
				r.Post("/{workspaceId}/create-folder", folderHandler.CreateFolder)
				r.Get("/{id}", folderHandler.GetFolder)
				r.Put("/{id}/add-form", folderHandler.AddForm)
			})

			r.Route("/form", func(r chi.Router) {
				r.Post("/{workspaceId}/create-form", formHandler.CreateForm)
				r.Get("/{formId}", formHandler.GetForm)
				r.Put("/{formId}/update-flow", formHandler.UpdateFlow)
				r.Delete("/{formId}/delete-form", formHandler.DeleteForm)
			})

			r.Get("/response/{formId}/get-responses", responseHandler.GetResponses)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
