package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/adgate/adgate/internal/api"
	"github.com/adgate/adgate/internal/auth/amazon"
	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/db"
	"github.com/adgate/adgate/internal/logging"
	"github.com/adgate/adgate/internal/oplog"
	"github.com/adgate/adgate/internal/provider"
	"github.com/adgate/adgate/internal/version"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	configPath := flag.String("config", "adgate.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateProvider(); err != nil {
		log.Fatalf("%v (set ADS_CLIENT_ID / ADS_CLIENT_SECRET)", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Audit trail recorder shared by all components
	recorder := oplog.NewDBRecorder(database)
	defer recorder.Flush()

	// Token lifecycle manager
	tokenManager := token.NewManager(database, cfg.Provider, recorder)

	// Exchange flow and resilient API surface
	exchanger := amazon.NewExchanger(database, cfg.Provider, recorder)
	apiClient := provider.NewClient(tokenManager, cfg.Provider.ClientID, recorder,
		provider.PolicyFromConfig(cfg.Retry), cfg.Provider.HTTPTimeout)
	ads := provider.NewAdsAPI(apiClient, cfg.Provider.APIBaseURL)

	// Create router
	r := chi.NewRouter()
	r.Use(logging.RequestIDMiddleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// OAuth flow
	r.Get("/auth/amazon/login", amazon.HandleLogin(cfg.Provider))
	r.Get("/auth/amazon/callback", amazon.HandleCallback(exchanger))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Credential management
		r.Get("/credentials", api.CredentialsHandler(database))
		r.Post("/credentials/{id}/refresh", api.RefreshCredentialHandler(tokenManager))
		r.Post("/credentials/{id}/deactivate", api.DeactivateCredentialHandler(tokenManager))

		// Audit trail
		r.Get("/operations", api.OperationsHandler(recorder))

		// Campaign operations
		r.Get("/campaigns", api.ListCampaignsHandler(ads))
		r.Post("/campaigns", api.CreateCampaignHandler(ads))
		r.Get("/campaigns/{id}", api.GetCampaignHandler(ads))
		r.Put("/campaigns/{id}/budget", api.AdjustBudgetHandler(ads))
		r.Get("/campaigns/{id}/report", api.CampaignReportHandler(ads))
	})

	log.Printf("🚀 adgate %s listening on %s", version.Version, cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
