package medentity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/resilience"
)

// Client calls the medical entity detection API. Rate limiting lives
// here in the adapter, not in the coordinator: the service enforces a
// low request budget and every caller shares this limiter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	// RequestsPerSecond caps outbound detect calls; zero disables the cap.
	RequestsPerSecond  float64
	Burst              int
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey string, options Options) *Client {
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    limiter,
		executor:   options.ResilienceExecutor,
	}
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Entities []struct {
		Text       string  `json:"text"`
		Category   string  `json:"category"`
		Score      float64 `json:"score"`
		Attributes []struct {
			Type  string  `json:"type"`
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"attributes"`
	} `json:"entities"`
}

func (c *Client) Detect(ctx context.Context, text string) ([]domain.DetectedEntity, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("medentity rate limit wait: %w", err)
		}
	}

	var resp detectResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/detect-entities", detectRequest{Text: text}, &resp, "detect")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "medentity.detect", call, classifyDetectError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	entities := make([]domain.DetectedEntity, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		entity := domain.DetectedEntity{
			Text:     e.Text,
			Category: e.Category,
			Score:    e.Score,
		}
		for _, a := range e.Attributes {
			entity.Attributes = append(entity.Attributes, domain.EntityAttribute{
				Type:  a.Type,
				Text:  a.Text,
				Score: a.Score,
			})
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
