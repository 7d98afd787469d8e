// README: API gateway; registers HTTP routes and delegates to the orchestrator.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/handlers"
	"leafline/internal/http/middleware"
	"leafline/internal/infra"
	"leafline/internal/realtime"
)

type ServerDeps struct {
	Orchestrator handlers.Orchestrator
	Matcher      handlers.CandidateFinder
	Earnings     handlers.EarningsReader
	Tokens       handlers.TokenRegistry
	Registry     *realtime.Registry
	Verifier     infra.TokenVerifier
}

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Orchestrator)
	api.POST("/orders", orderHandler.Place)
	api.GET("/orders", orderHandler.List)
	api.GET("/orders/:id", orderHandler.Get)
	api.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Orchestrator, deps.Earnings, deps.Tokens)
	api.POST("/orders/:id/accept", driverHandler.Accept)
	api.POST("/driver/online", driverHandler.SetOnline)
	api.POST("/driver/location", driverHandler.ReportLocation)
	api.GET("/driver/earnings", driverHandler.Earnings)
	api.POST("/notifications/token", driverHandler.RegisterToken)
	api.DELETE("/notifications/token", driverHandler.UnregisterToken)

	adminHandler := handlers.NewAdminHandler(deps.Orchestrator, deps.Matcher)
	api.POST("/admin/orders/:id/assign", adminHandler.Assign)
	api.GET("/admin/orders/:id/candidates", adminHandler.Candidates)

	realtimeHandler := handlers.NewRealtimeHandler(deps.Registry)
	api.GET("/realtime/stream", realtimeHandler.Stream)

	return r
}
