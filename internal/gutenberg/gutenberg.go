package gutenberg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookgraph/internal/util"
	"bookgraph/pkg/graph"
	"bookgraph/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound indicates the book id does not exist on the mirror.
var ErrNotFound = errors.New("book not found")

// DefaultBaseURL is the public Project Gutenberg site.
const DefaultBaseURL = "https://www.gutenberg.org"

// Client fetches plain-text books and their display metadata from a Project
// Gutenberg mirror. Fetched books are cached whole so repeated analyses of
// the same book never touch the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      graph.Cache
}

// NewClientParams defines the configuration for creating a gutenberg Client.
type NewClientParams struct {
	BaseURL     string
	Cache       graph.Cache
	HTTPTimeout time.Duration
}

// NewClient creates a gutenberg Client configured with the provided params.
func NewClient(params NewClientParams) (*Client, error) {
	if params.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := params.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      params.Cache,
	}, nil
}

// Fetch returns the full text and metadata for a book id, from cache when
// available. A missing book surfaces as ErrNotFound.
func (c *Client) Fetch(ctx context.Context, bookID string) (*graph.Book, error) {
	if strings.TrimSpace(bookID) == "" {
		return nil, fmt.Errorf("%w: empty book id", ErrNotFound)
	}

	var cached graph.Book
	if ok, err := c.cache.Load(&cached, "books", bookID); err == nil && ok {
		logger.Debug("Book cache hit", "book", bookID)
		return &cached, nil
	}

	text, err := util.RetryWithContext(ctx, 2, func(ctx context.Context) (string, error) {
		return c.fetchText(ctx, bookID)
	})
	if err != nil {
		return nil, err
	}

	title, author := c.fetchMetadata(ctx, bookID)

	book := &graph.Book{
		ID:     bookID,
		Title:  title,
		Author: author,
		Text:   stripBoilerplate(text),
	}
	if err := c.cache.Save(book, "books", bookID); err != nil {
		logger.Error("Failed to cache book", "book", bookID, "err", err)
	}
	return book, nil
}

func (c *Client) fetchText(ctx context.Context, bookID string) (string, error) {
	url := fmt.Sprintf("%s/files/%s/%s-0.txt", c.baseURL, bookID, bookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// A confirmed 404 never changes on a second attempt.
		return "", util.NoRetry(fmt.Errorf("%w: id %s", ErrNotFound, bookID))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return string(raw), nil
}

// fetchMetadata scrapes title and author from the book's landing page.
// Metadata is cosmetic, so scrape failures degrade to placeholders instead
// of failing the fetch.
func (c *Client) fetchMetadata(ctx context.Context, bookID string) (string, string) {
	title := "Book " + bookID
	author := "Unknown"

	url := fmt.Sprintf("%s/ebooks/%s", c.baseURL, bookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return title, author
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Metadata page unavailable", "book", bookID, "err", err)
		return title, author
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return title, author
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Warn("Failed to parse metadata page", "book", bookID, "err", err)
		return title, author
	}

	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		title = t
	}
	if a := strings.TrimSpace(doc.Find(`a[href*="/ebooks/author/"]`).First().Text()); a != "" {
		author = a
	}
	return title, author
}

// stripBoilerplate trims the Project Gutenberg license header and footer,
// keeping only the body between the *** START and *** END markers when both
// are present.
func stripBoilerplate(text string) string {
	const startMarker = "*** START OF"
	const endMarker = "*** END OF"

	if idx := strings.Index(text, startMarker); idx >= 0 {
		if nl := strings.IndexByte(text[idx:], '\n'); nl >= 0 {
			text = text[idx+nl+1:]
		}
	}
	if idx := strings.Index(text, endMarker); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
