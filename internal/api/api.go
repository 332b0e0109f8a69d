package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/susu3304/pokerledger/internal/config"
	"github.com/susu3304/pokerledger/internal/ledger"
	"github.com/susu3304/pokerledger/internal/model"
)

// Repository serves the player roster and recent table configs.
type Repository interface {
	CreatePlayer(ctx context.Context, p model.Player) error
	Players(ctx context.Context) ([]model.Player, error)
	// Player returns model.ErrPlayerNotFound for unknown IDs.
	Player(ctx context.Context, id string) (*model.Player, error)
	RecentConfigs(ctx context.Context) ([]model.GameConfig, error)
}

type API struct {
	router      *mux.Router
	ledger      *ledger.Service
	repo        Repository
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, svc *ledger.Service, repo Repository) *API {
	api := &API{
		router:    mux.NewRouter(),
		ledger:    svc,
		repo:      repo,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/players", a.handleListPlayers).Methods("GET")
	protected.HandleFunc("/players", a.handleCreatePlayer).Methods("POST")
	protected.HandleFunc("/players/{id}", a.handleGetPlayer).Methods("GET")
	protected.HandleFunc("/players/{id}/stats", a.handlePlayerStats).Methods("GET")
	protected.HandleFunc("/configs", a.handleRecentConfigs).Methods("GET")

	protected.HandleFunc("/tables/{table_id}/session", a.handleStartSession).Methods("POST")
	protected.HandleFunc("/tables/{table_id}/session", a.handleSessionStatus).Methods("GET")
	protected.HandleFunc("/tables/{table_id}/players", a.handleJoin).Methods("POST")
	protected.HandleFunc("/tables/{table_id}/players/{player_id}/buyin", a.handleBuyIn).Methods("POST")
	protected.HandleFunc("/tables/{table_id}/players/{player_id}/extra", a.handleExtraBuyIn).Methods("POST")
	protected.HandleFunc("/tables/{table_id}/players/{player_id}/cashout", a.handleCashOut).Methods("PUT")
	protected.HandleFunc("/tables/{table_id}/end", a.handleEndSession).Methods("POST")

	protected.HandleFunc("/sessions", a.handleHistory).Methods("GET")
	protected.HandleFunc("/sessions/{id}/settlement", a.handleSettlement).Methods("GET")
	protected.HandleFunc("/sessions/{id}/transfers/complete", a.handleCompleteTransfer).Methods("POST")
}

// Handler returns the router wrapped with CORS. Only the web UI origin may
// call the API from a browser.
func (a *API) Handler() http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{a.config.WebUIBaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, a.Handler())
}
