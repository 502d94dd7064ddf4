package printavo

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/service"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public v2 GraphQL endpoint.
const DefaultEndpoint = "https://www.printavo.com/api/v2"

// Config holds client credentials and limits.
type Config struct {
	Endpoint   string
	Email      string
	Token      string
	Timeout    time.Duration
	RateLimit  int
	MaxRetries int
	RetryDelay time.Duration
}

// Client talks to the Printavo API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	endpoint   string
	email      string
	token      string
	retryOpts  service.RetryOptions
	timeout    time.Duration
}

// New creates a client. Email and token are required.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Email == "" || cfg.Token == "" {
		return nil, fmt.Errorf("%w: printavo email and token are required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rpm := cfg.RateLimit
	if rpm <= 0 {
		rpm = 120
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts <= 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay <= 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Client{
		// Per-call deadlines come from the request context.
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), max(1, rpm/12)),
		logger:    logger,
		endpoint:  endpoint,
		email:     cfg.Email,
		token:     cfg.Token,
		retryOpts: retryOpts,
		timeout:   timeout,
	}, nil
}

var _ service.OrderPlatform = (*Client)(nil)
