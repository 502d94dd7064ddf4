package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// Extractor resolves ambiguous rows with a language model.
type Extractor struct {
	client      Client
	cache       *responseCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
	calls       atomic.Int64
	temperature float64
	maxTokens   int
}

// NewExtractor creates an extractor backed by the configured provider.
func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewExtractorWithClient(client, cfg, logger), nil
}

// NewExtractorWithClient creates an extractor around an existing client.
func NewExtractorWithClient(client Client, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
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

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}

	return &Extractor{
		client:      client,
		cache:       newResponseCache(),
		logger:      logger,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts:   retryOpts,
		temperature: temperature,
		maxTokens:   firstPositive(cfg.MaxTokens, 1024),
	}
}

// Extract asks the model to fill in an ambiguous draft.
//
// Transient failures are retried with backoff. A reply that does not parse
// returns an Unparseable result and an error wrapping
// common.ErrMalformedResponse; it is not retried.
func (e *Extractor) Extract(ctx context.Context, draft model.DraftLineItem, row model.RawRow) (model.ExtractionResult, error) {
	prompt := buildPrompt(draft, row)
	key := hashPrompt(prompt)

	if cached, ok := e.cache.get(key); ok {
		e.logger.Debug("extraction cache hit", "row", draft.RowNumber)
		return cached, nil
	}

	var resp Response
	err := common.WithRetry(ctx, func() error {
		if err := e.rateLimiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		e.calls.Add(1)
		r, err := e.client.Complete(ctx, Request{
			System:      systemPrompt,
			Prompt:      prompt,
			Temperature: e.temperature,
			MaxTokens:   e.maxTokens,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, e.retryOpts)
	if err != nil {
		return model.ExtractionResult{}, fmt.Errorf("extracting row %d: %w", draft.RowNumber, err)
	}

	result, err := parseExtraction(resp.Text)
	if err != nil {
		e.logger.Warn("unparseable model response",
			"row", draft.RowNumber,
			"error", err)
		return result, fmt.Errorf("extracting row %d: %w", draft.RowNumber, err)
	}

	e.logger.Debug("row extracted",
		"row", draft.RowNumber,
		"confidence", result.Confidence,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens)

	e.cache.set(key, result)
	return result, nil
}

// Calls returns how many requests were sent to the provider.
func (e *Extractor) Calls() int64 {
	return e.calls.Load()
}
