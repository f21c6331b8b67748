package server

import (
	"bookgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	apiRoutes.POST("/analyze", routes.AnalyzeBookHandler)
	apiRoutes.POST("/ask", routes.AskBookHandler)
}
