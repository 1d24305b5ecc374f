package edgefn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
)

const operationScrape = "scrape_url"

// Client invokes the hosted "scrape-url" function.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, anonKey string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type scrapeRequest struct {
	RecordID string `json:"record_id"`
	URL      string `json:"url"`
}

type scrapeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (c *Client) Scrape(ctx context.Context, recordID, url string) (string, error) {
	if c.baseURL == "" {
		return "", domain.WrapError(domain.ErrConfiguration, "scrape", errors.New("functions url is not configured"))
	}

	var text string
	call := func(callCtx context.Context) error {
		out, err := c.invoke(callCtx, scrapeRequest{RecordID: recordID, URL: url})
		text = out
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operationScrape, call, resilience.ClassifyHTTP)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", resilience.WrapTemporary("scrape", err, nil)
	}
	return text, nil
}

func (c *Client) invoke(ctx context.Context, payload scrapeRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape-url", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
		req.Header.Set("apikey", c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", resilience.NewHTTPStatusError(operationScrape, resp)
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode scrape response: %w", err)
	}
	if out.Error != "" && out.Text == "" {
		return "", fmt.Errorf("scrape function: %s", out.Error)
	}
	return strings.TrimSpace(out.Text), nil
}
