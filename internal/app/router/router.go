// Package router assembles the HTTP routes of the API server.
package router

import (
	"github.com/gin-gonic/gin"

	simhandler "bandtrader/internal/feature/simulation/transport/handler"
	"bandtrader/internal/platform/http/handler"
	jwtmw "bandtrader/internal/platform/jwt"
)

// NewRouter registers the health probe and the JWT-guarded simulation routes.
func NewRouter(checks map[string]handler.Check, sim *simhandler.SimulationHandler, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// no auth: liveness probe
	health := handler.Health(checks)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	// every other route requires a bearer token
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(jwtSecret))
	{
		auth.POST("/runs", sim.SubmitRun)
		auth.GET("/runs/:id", sim.GetRun)
		auth.GET("/runs/:id/bands", sim.GetBands)
		auth.GET("/runs/:id/portfolio", sim.GetPortfolio)
		auth.GET("/runs/:id/equity", sim.GetEquity)
		auth.GET("/runs/:id/trades", sim.GetTrades)
		auth.GET("/runs/:id/symbols", sim.GetSymbolDays)
	}

	return r
}
