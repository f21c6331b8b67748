package routes

import (
	"errors"
	"net/http"
	"time"

	"bookgraph/internal/gutenberg"
	"bookgraph/internal/server/middleware"
	"bookgraph/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// AnalyzeBookHandler builds (or serves from cache) the character-interaction
// graph for one book.
func AnalyzeBookHandler(c echo.Context) error {
	type analyzeBody struct {
		BookID    string `json:"book_id" validate:"required"`
		NamesOnly bool   `json:"names_only"`
	}

	type errorResponse struct {
		Error string `json:"error"`
	}

	data := new(analyzeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "book_id is required",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "book_id is required",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	start := time.Now()
	graph, err := cc.App.Graph.AnalyzeBook(ctx, data.BookID, data.NamesOnly)
	if err != nil {
		if errors.Is(err, gutenberg.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{
				Error: "Book not found",
			})
		}
		logger.Error("Analysis failed", "request", cc.RequestID, "book", data.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
		})
	}

	logger.Info("Analysis finished",
		"request", cc.RequestID,
		"book", data.BookID,
		"names_only", data.NamesOnly,
		"partial", graph.Partial,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return c.JSON(http.StatusOK, graph)
}
