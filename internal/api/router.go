// Package api assembles the HTTP server: middleware, handlers and routes.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/api/handlers"
	"cfd-hedge-backtest/internal/api/middleware"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/monitoring"
	"cfd-hedge-backtest/internal/pipeline"
)

type Options struct {
	Logger *zap.SugaredLogger
	// Defaults is the base config every request is merged onto.
	Defaults  *config.Config
	Runner    *pipeline.Runner
	PresetDir string
}

// Server owns the router and the handlers' long-lived state.
type Server struct {
	Router   *gin.Engine
	simulate *handlers.SimulateHandler
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = config.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = pipeline.NewRunner(pipeline.Options{Logger: log})
	}

	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())

	presetHandler := handlers.NewPresetHandler(opts.PresetDir, log)
	simulateHandler := handlers.NewSimulateHandler(runner, defaults, presetHandler, log)
	policyHandler := handlers.NewPolicyHandler(defaults)
	marketHandler := handlers.NewMarketDataHandler(defaults, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(monitoring.NewMetricsHandler()))

	api := router.Group("/api/v1")
	{
		api.POST("/simulate", simulateHandler.Simulate)
		api.POST("/simulate/compare", simulateHandler.Compare)
		api.GET("/simulate/stream", simulateHandler.Stream)
		api.GET("/simulate/:id/ledger", simulateHandler.GetLedger)
		api.GET("/simulate/:id/series", simulateHandler.GetSeries)
		api.GET("/simulate/:id/report", simulateHandler.GetReport)

		api.GET("/config/defaults", policyHandler.Defaults)
		api.GET("/policies", policyHandler.ListPolicies)
		api.GET("/presets", presetHandler.ListPresets)
		api.GET("/market-data", marketHandler.GetMarketData)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})

	return &Server{Router: router, simulate: simulateHandler}
}

// Close releases stored results.
func (s *Server) Close() {
	s.simulate.Close()
}
