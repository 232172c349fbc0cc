package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/adapter/http/middleware"
)

// apiError is a non-2xx API response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

type apiClient struct {
	baseURL string
	actor   string
	http    *http.Client
	// idempotencyKey is sent with POST requests when set.
	idempotencyKey string
}

func newAPIClient(opts *options) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		actor:   opts.actor,
		http:    &http.Client{Timeout: opts.timeout},
	}
}

func (c *apiClient) get(ctx context.Context, path string, out any, accept ...int) error {
	return c.do(ctx, http.MethodGet, path, nil, out, accept...)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any, accept ...int) error {
	return c.do(ctx, http.MethodPost, path, body, out, accept...)
}

// do sends a request and decodes the JSON response into out. Any 2xx status
// is accepted, as are the extra statuses in accept.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor != "" {
		req.Header.Set(middleware.ActorIDHeader, c.actor)
	}
	if method == http.MethodPost && c.idempotencyKey != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, c.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if !accepted(resp.StatusCode, accept) {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func accepted(status int, extra []int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	for _, s := range extra {
		if s == status {
			return true
		}
	}
	return false
}

func decodeAPIError(status int, data []byte) error {
	var errResp dto.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == "" {
		return &apiError{Status: status, Message: strings.TrimSpace(string(data))}
	}

	msg := errResp.Error
	if errResp.Message != "" {
		msg += ": " + errResp.Message
	}
	return &apiError{Status: status, Message: msg}
}
