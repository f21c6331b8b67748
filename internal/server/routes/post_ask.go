package routes

import (
	"errors"
	"net/http"
	"time"

	"bookgraph/internal/gutenberg"
	"bookgraph/internal/server/middleware"
	"bookgraph/pkg/logger"
	"bookgraph/pkg/query"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// AskBookHandler answers a free-text question about a book by sampling a few
// of its cached chunks.
func AskBookHandler(c echo.Context) error {
	type askBody struct {
		BookID          string `json:"book_id" validate:"required"`
		Question        string `json:"question" validate:"required"`
		SelectionMode   string `json:"selection_mode" validate:"omitempty,oneof=random explicit"`
		ExplicitIndices []int  `json:"explicit_indices"`
	}

	type askResponse struct {
		Answer string `json:"answer"`
	}

	type errorResponse struct {
		Error string `json:"error"`
	}

	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "book_id and question are required",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "book_id and question are required",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	chunks, err := cc.App.Graph.BookChunks(ctx, data.BookID)
	if err != nil {
		if errors.Is(err, gutenberg.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{
				Error: "Book not found",
			})
		}
		logger.Error("Chunk retrieval failed", "request", cc.RequestID, "book", data.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
		})
	}

	start := time.Now()
	answer, err := cc.App.Query.Answer(ctx, data.Question,
		chunks, query.SelectionMode(data.SelectionMode), data.ExplicitIndices)
	if err != nil {
		if errors.Is(err, query.ErrInvalidSelection) {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error: err.Error(),
			})
		}
		logger.Error("Question failed", "request", cc.RequestID, "book", data.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
		})
	}

	logger.Info("Question answered",
		"request", cc.RequestID,
		"book", data.BookID,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return c.JSON(http.StatusOK, askResponse{Answer: answer})
}
