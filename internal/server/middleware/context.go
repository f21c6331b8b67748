package middleware

import (
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"bookgraph/pkg/graph"
	"bookgraph/pkg/query"
)

// App bundles the long-lived clients every handler needs. It is built once
// at startup from the process configuration.
type App struct {
	Graph *graph.GraphClient
	Query *query.Client
}

type AppContext struct {
	echo.Context
	App       *App
	RequestID string
}

// AppContextMiddleware attaches the shared App and a per-request id to every
// request. The id is echoed in the X-Request-Id response header.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID, err := gonanoid.New()
			if err != nil {
				requestID = "unknown"
			}
			c.Response().Header().Set("X-Request-Id", requestID)

			cc := &AppContext{c, app, requestID}
			return next(cc)
		}
	}
}
