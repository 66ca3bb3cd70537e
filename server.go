package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fileqa/internal/config"
	"fileqa/internal/metrics"
)

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Config   *config.Config
	Asker    *Asker
	Datasets *DatasetStore
}

// NewRouter builds the page, API and ops routes
func NewRouter(sc ServerConfig) (http.Handler, error) {
	webHandler, err := NewWebHandler(sc.Asker)
	if err != nil {
		return nil, err
	}
	apiHandler := &APIHandler{Asker: sc.Asker, Datasets: sc.Datasets}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// Web handlers (HTMX HTML responses)
	r.Get("/", webHandler.QAPage)
	r.Post("/ask", webHandler.Ask)
	r.Get("/agent", webHandler.AgentPage)
	r.Post("/agent/ask", webHandler.AgentAsk)

	// API handlers (JSON responses)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", apiHandler.Ask)
		r.Post("/agent", apiHandler.Agent)
		r.Get("/quote/{symbol}", apiHandler.Quote)
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", apiHandler.CreateDataset)
			r.Get("/{id}", apiHandler.GetDataset)
			r.Delete("/{id}", apiHandler.DeleteDataset)
			r.Post("/{id}/ask", apiHandler.AskDataset)
			r.Post("/{id}/query", apiHandler.QueryDataset)
		})
	})

	r.Get("/healthz", apiHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	return r, nil
}

// StartServer initializes and starts the HTTP server
func StartServer(cfg *config.Config) error {
	datasets := NewDatasetStore(cfg.MaxDatasets)
	defer datasets.Close()

	handler, err := NewRouter(ServerConfig{
		Config:   cfg,
		Asker:    NewAsker(cfg, logger),
		Datasets: datasets,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	if logger != nil {
		logger.Info("Starting server", "addr", addr, "provider", cfg.Provider, "engine", cfg.Engine)
	}
	fmt.Printf("Starting server on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, handler)
}
