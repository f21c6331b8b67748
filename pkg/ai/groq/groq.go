package groq

import (
	"sync"
	"time"

	"bookgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

// DefaultBaseURL points at the Groq OpenAI-compatible API.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to the Groq chat-completions API. All requests pass
// through a shared rate limiter so concurrent extraction batches stay under
// the backend's request limits.
//
// A GroqClient should be created using NewGroqClient.
type GroqClient struct {
	baseURL string
	apiKey  string

	limiter *rate.Limiter

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGroqClientParams defines the configuration for creating a GroqClient.
//
// BaseURL defaults to the public Groq endpoint. RequestsPerSecond bounds the
// sustained request rate (default 10).
type NewGroqClientParams struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
}

// NewGroqClient creates a GroqClient configured with the provided params.
func NewGroqClient(params NewGroqClientParams) *GroqClient {
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := params.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &GroqClient{
		baseURL:    baseURL,
		apiKey:     params.APIKey,
		limiter:    rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/rps)), 1),
		ChatClient: newOpenaiClient(baseURL, params.APIKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *GroqClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// GetMetrics returns the accumulated usage metrics.
func (c *GroqClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears the accumulated usage metrics.
func (c *GroqClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}
