package docsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handle identifies a syncable resource. It is immutable for the life of a
// sync session; a different handle means a different session.
type Handle struct {
	ContainerID string
	Path        string
}

func (h Handle) Validate() error {
	if strings.TrimSpace(h.ContainerID) == "" {
		return fmt.Errorf("%w: container id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(h.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	return nil
}

type RevisionRecord struct {
	CommitID    string `json:"commit"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Date        string `json:"date"`
	Message     string `json:"message"`
}

type historyResponse struct {
	Path     string           `json:"path"`
	Versions []RevisionRecord `json:"versions"`
}

type RevertScope string

const (
	RevertSingleFile     RevertScope = "singleFile"
	RevertEntireSnapshot RevertScope = "entireSnapshot"
)

type CommitInfo struct {
	CommitID string   `json:"commit"`
	Paths    []string `json:"paths"`
}

type RemoteClient interface {
	ReadContent(ctx context.Context, handle Handle) (Payload, error)
	WriteContent(ctx context.Context, handle Handle, content string) error
	ListRevisions(ctx context.Context, handle Handle, limit int) ([]RevisionRecord, error)
	ReadRevision(ctx context.Context, handle Handle, commitID string) (Payload, error)
	Revert(ctx context.Context, handle Handle, commitID string, scope RevertScope) ([]string, error)
	CommitInfo(ctx context.Context, handle Handle, commitID string) (CommitInfo, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewHTTPClient builds a client for the sandbox file API. The bearer token is
// a precondition: callers must resolve credentials before constructing the
// client, a missing token is never a retryable condition.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidInput)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: bearer token is required", ErrInvalidInput)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}, nil
}

func (c *HTTPClient) ReadContent(ctx context.Context, handle Handle) (Payload, error) {
	if err := handle.Validate(); err != nil {
		return Payload{}, err
	}
	q := url.Values{}
	q.Set("path", handle.Path)
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sandboxes/%s/files/content?%s", url.PathEscape(handle.ContainerID), q.Encode()), nil)
	if err != nil {
		return Payload{}, err
	}
	return decodePayload(handle.Path, raw)
}

func (c *HTTPClient) WriteContent(ctx context.Context, handle Handle, content string) error {
	if err := handle.Validate(); err != nil {
		return err
	}
	body := map[string]any{
		"path":    handle.Path,
		"content": content,
	}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/sandboxes/%s/files", url.PathEscape(handle.ContainerID)), body)
	return err
}

func (c *HTTPClient) ListRevisions(ctx context.Context, handle Handle, limit int) ([]RevisionRecord, error) {
	if err := handle.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("path", handle.Path)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sandboxes/%s/files/history?%s", url.PathEscape(handle.ContainerID), q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	var out historyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if out.Versions == nil {
		out.Versions = []RevisionRecord{}
	}
	return out.Versions, nil
}

func (c *HTTPClient) ReadRevision(ctx context.Context, handle Handle, commitID string) (Payload, error) {
	if err := handle.Validate(); err != nil {
		return Payload{}, err
	}
	if strings.TrimSpace(commitID) == "" {
		return Payload{}, fmt.Errorf("%w: commit id is required", ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("path", handle.Path)
	q.Set("commit", commitID)
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sandboxes/%s/files/content-by-hash?%s", url.PathEscape(handle.ContainerID), q.Encode()), nil)
	if err != nil {
		return Payload{}, err
	}
	return decodePayload(handle.Path, raw)
}

func (c *HTTPClient) Revert(ctx context.Context, handle Handle, commitID string, scope RevertScope) ([]string, error) {
	if strings.TrimSpace(handle.ContainerID) == "" {
		return nil, fmt.Errorf("%w: container id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(commitID) == "" {
		return nil, fmt.Errorf("%w: commit id is required", ErrInvalidInput)
	}
	body := map[string]any{
		"commit": commitID,
	}
	switch scope {
	case RevertSingleFile:
		if strings.TrimSpace(handle.Path) == "" {
			return nil, fmt.Errorf("%w: path is required for a single-file revert", ErrInvalidInput)
		}
		body["paths"] = []string{handle.Path}
	case RevertEntireSnapshot:
	default:
		return nil, fmt.Errorf("%w: unknown revert scope %q", ErrInvalidInput, scope)
	}
	raw, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sandboxes/%s/files/revert", url.PathEscape(handle.ContainerID)), body)
	if err != nil {
		return nil, err
	}
	var out struct {
		AffectedPaths []string `json:"affected_paths"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out.AffectedPaths, nil
}

func (c *HTTPClient) CommitInfo(ctx context.Context, handle Handle, commitID string) (CommitInfo, error) {
	if strings.TrimSpace(handle.ContainerID) == "" {
		return CommitInfo{}, fmt.Errorf("%w: container id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(commitID) == "" {
		return CommitInfo{}, fmt.Errorf("%w: commit id is required", ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("commit", commitID)
	if strings.TrimSpace(handle.Path) != "" {
		q.Set("path", handle.Path)
	}
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sandboxes/%s/files/commit-info?%s", url.PathEscape(handle.ContainerID), q.Encode()), nil)
	if err != nil {
		return CommitInfo{}, err
	}
	var out CommitInfo
	if err := json.Unmarshal(raw, &out); err != nil {
		return CommitInfo{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, requestPath string, body any) ([]byte, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}
	var lastErr error
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
			}
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, fmt.Errorf("%w: %v", ErrNetwork, waitErr)
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrNetwork, lastErr)
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return payloadBytes, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrNetwork, waitErr)
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payloadBytes, &errPayload)
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
