package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
)

const (
	operationDispatch = "automation_dispatch"
	operationAdmin    = "automation_admin"

	maxResponseBody = 8 << 20
)

// Client talks to automation webhooks: summarization dispatch and the admin
// console actions.
type Client struct {
	httpClient *http.Client
	executor   *resilience.Executor
	adminKey   string
	now        func() time.Time
}

func New(timeout time.Duration, adminKey string, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		adminKey:   adminKey,
		now:        time.Now,
	}
}

// Dispatch posts resolved content to the summarization webhook. It is never
// retried: the endpoint starts a workflow per call.
func (c *Client) Dispatch(ctx context.Context, endpoint string, payload domain.DispatchPayload) (domain.DispatchResult, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return domain.DispatchResult{}, domain.WrapError(domain.ErrConfiguration, "dispatch", errors.New("webhook url is not configured"))
	}
	if payload.Type == "" {
		payload.Type = "text"
	}

	var raw []byte
	call := func(callCtx context.Context) error {
		body, err := c.postJSON(callCtx, endpoint, payload, nil, operationDispatch)
		raw = body
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.ExecuteOnce(ctx, operationDispatch, call, resilience.ClassifyHTTP)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.DispatchResult{}, domain.WrapError(domain.ErrTransport, "dispatch", err)
	}

	result, err := parseDispatchResponse(raw)
	if err != nil {
		return domain.DispatchResult{}, domain.WrapError(domain.ErrTransport, "dispatch", err)
	}
	slog.Debug("dispatch_response", "record_id", payload.ID, "primary", result.Primary, "summary_length", len(result.Summary))
	return result, nil
}

// parseDispatchResponse takes a string "summary" as the primary result, then
// falls back to "text" and "output"; any other JSON is returned indented. An
// empty body is a bare acknowledgment.
func parseDispatchResponse(raw []byte) (domain.DispatchResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.DispatchResult{}, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.DispatchResult{}, fmt.Errorf("decode dispatch response: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		if summary, ok := obj["summary"].(string); ok {
			return domain.DispatchResult{Summary: summary, Primary: true}, nil
		}
		for _, key := range []string{"text", "output"} {
			if value, ok := obj[key].(string); ok && value != "" {
				return domain.DispatchResult{Summary: value}, nil
			}
		}
	}

	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("format dispatch response: %w", err)
	}
	return domain.DispatchResult{Summary: string(pretty)}, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, headers map[string]string, operation string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError(operation, resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	return raw, nil
}
