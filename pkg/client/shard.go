package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/types"
)

// requestTimeout bounds every remote call that arrives without its own
// deadline
const requestTimeout = 5 * time.Second

// errorBody is the JSON error envelope shards respond with
type errorBody struct {
	Error string `json:"error"`
}

// ShardClient talks JSON over HTTP to a single shard
type ShardClient struct {
	baseURL string
	http    *http.Client
}

// NewShardClient creates a client for the shard at baseURL
func NewShardClient(baseURL string) *ShardClient {
	return &ShardClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// URL returns the shard's base URL
func (c *ShardClient) URL() string {
	return c.baseURL
}

// Get issues a GET and decodes the JSON response into out. Transient
// network failures are retried; the shard's typed errors are not.
func (c *ShardClient) Get(ctx context.Context, path string, out any) error {
	op := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !types.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(op, bo)
}

// Put issues a PUT with an optional JSON body
func (c *ShardClient) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Post issues a POST with a JSON body
func (c *ShardClient) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Delete issues a DELETE and decodes the JSON response into out when out
// is non-nil
func (c *ShardClient) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *ShardClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	timer.ObserveDurationVec(metrics.ShardCallDuration, method)

	if err != nil {
		metrics.ShardCallErrors.WithLabelValues(c.baseURL).Inc()
		log.WithShardURL(c.baseURL).Warn().
			Str("method", method).
			Str("path", path).
			Err(err).
			Msg("shard call failed")
		return &types.TransientError{Op: method + " " + c.baseURL + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.ShardCallErrors.WithLabelValues(c.baseURL).Inc()
		return c.errorFromResponse(resp, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorFromResponse maps a shard's status code back onto the local error
// taxonomy so callers cannot tell remote elements from local ones
func (c *ShardClient) errorFromResponse(resp *http.Response, method, path string) error {
	var body errorBody
	json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = fmt.Sprintf("http %s %s%s: %d", method, c.baseURL, path, resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &types.NotFoundError{Element: "remote", ID: msg}
	case http.StatusConflict:
		return &types.ConflictError{Element: "remote", ID: path, Reason: msg}
	case http.StatusBadRequest:
		return &types.ValidationError{Field: "request", Reason: msg}
	case http.StatusServiceUnavailable:
		return &types.UnavailableError{Reason: msg}
	default:
		return fmt.Errorf("shard %s returned %d: %s", c.baseURL, resp.StatusCode, msg)
	}
}

// CloseIdleConnections releases the client's pooled connections
func (c *ShardClient) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
