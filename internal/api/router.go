package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerhub/internal/api/handler"
	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/metrics"
	rootmw "github.com/mcoot/playerhub/internal/middleware"
	"github.com/mcoot/playerhub/internal/services/bootstrap"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	"github.com/mcoot/playerhub/internal/services/ledger"
	"github.com/mcoot/playerhub/internal/services/purchase"
	"github.com/mcoot/playerhub/internal/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	IdentityService  *identity.Service
	BootstrapService *bootstrap.Service
	PurchaseService  *purchase.Service
	Ledger           ledger.Reader
	Catalog          *catalog.Store
	HubManager       *sse.HubManager
	Metrics          metrics.Recorder
	MetricsHandler   http.Handler            // served at /metrics when set
	RateLimiter      *middleware.RateLimiter // applied to /auth routes when set
	StorageType      string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(cfg.IdentityService)
	playerHandler := handler.NewPlayerHandler(cfg.BootstrapService)
	economyHandler := handler.NewEconomyHandler(cfg.Ledger, cfg.PurchaseService, cfg.Catalog, cfg.HubManager)

	authMiddleware := middleware.Auth(cfg.IdentityService)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rootmw.Logging(cfg.Logger))
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Metrics(cfg.Metrics))

	// Auth routes, rate limited per client
	auth := api.PathPrefix("/auth").Subrouter()
	if cfg.RateLimiter != nil {
		auth.Use(cfg.RateLimiter.Middleware())
	}
	auth.HandleFunc("/anonymous", authHandler.SignInAnonymously).Methods(http.MethodPost)
	auth.HandleFunc("/session", authHandler.ResumeSession).Methods(http.MethodPost)
	auth.HandleFunc("/providers/{provider}/sign-in", authHandler.SignInWithProvider).Methods(http.MethodPost)

	authProtected := auth.NewRoute().Subrouter()
	authProtected.Use(authMiddleware)
	authProtected.HandleFunc("/providers/{provider}/link", authHandler.LinkProvider).Methods(http.MethodPost)
	authProtected.HandleFunc("/providers/{provider}", authHandler.UnlinkProvider).Methods(http.MethodDelete)
	authProtected.HandleFunc("/sign-out", authHandler.SignOut).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", authHandler.GetMe).Methods(http.MethodGet)
	authProtected.HandleFunc("/me", authHandler.DeleteMe).Methods(http.MethodDelete)

	// Player routes
	player := api.PathPrefix("/player").Subrouter()
	player.Use(authMiddleware)
	player.HandleFunc("", playerHandler.GetProfile).Methods(http.MethodGet)
	player.HandleFunc("/sign-in", playerHandler.SignIn).Methods(http.MethodPost)
	player.HandleFunc("/name", playerHandler.SetName).Methods(http.MethodPut)

	// Economy routes
	economy := api.PathPrefix("/economy").Subrouter()
	economy.Use(authMiddleware)
	economy.HandleFunc("", economyHandler.Get).Methods(http.MethodGet)
	economy.HandleFunc("/purchases", economyHandler.Purchase).Methods(http.MethodPost)
	economy.HandleFunc("/events", economyHandler.Events).Methods(http.MethodGet)

	api.HandleFunc("/config/economy", economyHandler.Config).Methods(http.MethodGet)

	storageType := cfg.StorageType
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Storage: storageType})
	}).Methods(http.MethodGet)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	return r
}
