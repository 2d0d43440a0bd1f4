package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/verita-sec/verita/internal/api/middleware"
	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/cipher"
)

var ErrUnauthenticated = fmt.Errorf("authentication required")

type APIError struct {
	CorrelationID string
	Status        int
	Title         string
	Detail        string
}

func (e APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("api error: '%s' (status %d, correlation: %s)", msg, e.Status, e.CorrelationID)
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	var body io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshaling payload: %w", err)
		}
		body = bytes.NewBuffer(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func parseErrorResponse(resp *http.Response) error {
	var problem presenter.Problem
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}
	if json.Unmarshal(body, &problem) == nil && problem.Title != "" {
		if problem.Status == http.StatusUnauthorized {
			return ErrUnauthenticated
		}
		return APIError{
			CorrelationID: correlationFromResponse(resp),
			Status:        problem.Status,
			Title:         problem.Title,
			Detail:        problem.Detail,
		}
	}
	return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(body), resp.StatusCode)
}

func (c *Client) do(req *http.Request, result any) (string, error) {
	// inject auth token if available
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return correlationFromResponse(resp), parseErrorResponse(resp)
	}

	if result != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return correlationFromResponse(resp), fmt.Errorf("reading response: %w", err)
		}

		// confidential bodies are sealed under our own bearer token
		if resp.Header.Get(middleware.EncryptedHeader) == "true" {
			if c.authToken == "" {
				return correlationFromResponse(resp), fmt.Errorf("received encrypted response without an auth token")
			}
			raw, err = cipher.Open(string(raw), c.authToken)
			if err != nil {
				return correlationFromResponse(resp), fmt.Errorf("decrypting response: %w", err)
			}
		}

		if err := json.Unmarshal(raw, result); err != nil {
			return correlationFromResponse(resp), fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return correlationFromResponse(resp), nil
}

func correlationFromResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Header.Get("X-Correlation-ID")
}
