package printavo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
)

type graphqlRequest struct {
	Variables any    `json:"variables,omitempty"`
	Query     string `json:"query"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// query runs a read-only operation, retrying transient and ambiguous failures.
func (c *Client) query(ctx context.Context, op, document string, variables, out any) error {
	return c.withRetry(ctx, op, false, func() error {
		return c.do(ctx, op, document, variables, out)
	})
}

// mutate runs a mutation, retrying only failures that never reached the server.
func (c *Client) mutate(ctx context.Context, op, document string, variables, out any) error {
	return c.withRetry(ctx, op, true, func() error {
		return c.do(ctx, op, document, variables, out)
	})
}

func (c *Client) withRetry(ctx context.Context, op string, mutating bool, call func() error) error {
	return common.WithRetry(ctx, func() error {
		err := call()
		switch OutcomeOf(err) {
		case Success:
			return nil
		case TransientFailure:
			var callErr *CallError
			_ = errors.As(err, &callErr)
			return common.Transient(err, callErr.RetryAfter)
		case AmbiguousOutcome:
			if mutating {
				c.logger.Warn("mutation outcome unknown, not retrying", "op", op, "error", err)
				return common.Permanent(err)
			}
			return common.Transient(err, 0)
		default:
			return common.Permanent(err)
		}
	}, c.retryOpts)
}

// do performs a single GraphQL call and classifies its outcome.
func (c *Client) do(ctx context.Context, op, document string, variables, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("printavo %s: rate limiter canceled: %w", op, err)
	}

	body, err := json.Marshal(graphqlRequest{Query: document, Variables: variables})
	if err != nil {
		return fmt.Errorf("printavo %s: failed to marshal request: %w", op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wrote atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				wrote.Store(true)
			}
		},
	}
	callCtx = httptrace.WithClientTrace(callCtx, trace)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("printavo %s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("email", c.email)
	req.Header.Set("token", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, op, err, wrote.Load())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CallError{
			Op:         op,
			Outcome:    AmbiguousOutcome,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: reading response: %w", common.ErrAmbiguousOutcome, err),
		}
	}

	c.logger.Debug("printavo call",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if err := classifyStatus(op, resp, respBody); err != nil {
		return err
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &CallError{
			Op:         op,
			Outcome:    AmbiguousOutcome,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: undecodable response: %w", common.ErrAmbiguousOutcome, err),
		}
	}

	if len(envelope.Errors) > 0 {
		return graphqlErrors(op, envelope.Errors)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &CallError{
				Op:      op,
				Outcome: AmbiguousOutcome,
				Err:     fmt.Errorf("%w: unexpected data shape: %w", common.ErrAmbiguousOutcome, err),
			}
		}
	}
	return nil
}

// transportError classifies a failed round trip by whether the request had
// been written. A canceled parent context is never retried.
func (c *Client) transportError(parent context.Context, op string, err error, wrote bool) error {
	if wrote {
		return &CallError{
			Op:      op,
			Outcome: AmbiguousOutcome,
			Err:     fmt.Errorf("%w: %w", common.ErrAmbiguousOutcome, err),
		}
	}
	if parent.Err() != nil {
		return fmt.Errorf("printavo %s: %w", op, parent.Err())
	}
	return &CallError{
		Op:      op,
		Outcome: TransientFailure,
		Err:     fmt.Errorf("%w: %w", common.ErrServiceUnavailable, err),
	}
}

func classifyStatus(op string, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 300 {
		snippet = snippet[:300] + "..."
	}

	callErr := &CallError{Op: op, StatusCode: status}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		callErr.Outcome = Fatal
		callErr.Err = fmt.Errorf("%w: %s", common.ErrUnauthorized, snippet)
	case status == http.StatusTooManyRequests:
		callErr.Outcome = TransientFailure
		callErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		callErr.Err = fmt.Errorf("%w: %s", common.ErrRateLimit, snippet)
	case status >= 500:
		callErr.Outcome = TransientFailure
		callErr.Err = fmt.Errorf("%w: %s", common.ErrServiceUnavailable, snippet)
	default:
		callErr.Outcome = PermanentFailure
		callErr.Err = fmt.Errorf("%w: %s", common.ErrRemote, snippet)
	}
	return callErr
}

func graphqlErrors(op string, errs []graphqlError) error {
	messages := make([]string, 0, len(errs))
	unauthenticated := false
	for _, e := range errs {
		messages = append(messages, e.Message)
		if strings.EqualFold(e.Extensions.Code, "UNAUTHENTICATED") {
			unauthenticated = true
		}
	}
	joined := strings.Join(messages, "; ")

	if unauthenticated {
		return &CallError{Op: op, Outcome: Fatal, Err: fmt.Errorf("%w: %s", common.ErrUnauthorized, joined)}
	}
	return &CallError{Op: op, Outcome: PermanentFailure, Err: fmt.Errorf("%w: %s", common.ErrRemote, joined)}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
