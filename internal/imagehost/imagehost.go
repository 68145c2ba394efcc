package imagehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/workloy/workloy/internal/config"
	"github.com/workloy/workloy/internal/monitoring"
)

// Client errors
var (
	ErrUploadFailed  = errors.New("image upload failed")
	ErrCircuitOpen   = errors.New("image host is unavailable")
	ErrNotConfigured = errors.New("image host is not configured")
)

// Client uploads profile and proof images to ImgBB. The upstream is outside
// our control, so calls go through a circuit breaker: after repeated
// failures the breaker opens and requests fail fast instead of tying up
// handlers on a dead host.
type Client struct {
	cfg        *config.ImgBBConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// UploadResult is the hosted image location returned on success
type UploadResult struct {
	URL       string `json:"url"`
	DeleteURL string `json:"delete_url"`
}

type imgbbResponse struct {
	Data struct {
		URL       string `json:"url"`
		DeleteURL string `json:"delete_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// NewClient creates an ImgBB client with circuit breaker protection
func NewClient(cfg *config.ImgBBConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "imgbb",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().
				Str("circuit_breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, stateGaugeValue(to))
		},
	})

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.UploadTimeout,
		},
		breaker: breaker,
	}
}

// Upload sends a base64-encoded image to ImgBB and returns its hosted URL.
func (c *Client) Upload(ctx context.Context, imageBase64 string) (*UploadResult, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return c.upload(ctx, imageBase64)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Msg("Image host circuit breaker is open, rejecting upload")
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	return result.(*UploadResult), nil
}

func (c *Client) upload(ctx context.Context, imageBase64 string) (*UploadResult, error) {
	form := url.Values{}
	form.Set("key", c.cfg.APIKey)
	form.Set("image", imageBase64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var parsed imgbbResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if !parsed.Success || parsed.Data.URL == "" {
		return nil, fmt.Errorf("%w: upstream reported status %d", ErrUploadFailed, parsed.Status)
	}

	return &UploadResult{
		URL:       parsed.Data.URL,
		DeleteURL: parsed.Data.DeleteURL,
	}, nil
}

// State reports the breaker state for health endpoints
func (c *Client) State() string {
	return c.breaker.State().String()
}

func stateGaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
