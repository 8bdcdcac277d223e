package client

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

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// HTTPClient implements NotifyClient using the notifyd HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:3003").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Submission ---

func (c *HTTPClient) Send(ctx context.Context, in *model.NewNotification) (*model.Notification, error) {
	var n model.Notification
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications", in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *HTTPClient) GeofenceAlert(ctx context.Context, alert *model.GeofenceAlert) (*model.Notification, error) {
	var n model.Notification
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/geofence-alert", alert, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// --- Queries ---

func (c *HTTPClient) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := c.doJSON(ctx, http.MethodGet, "/v1/notifications/"+url.PathEscape(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *HTTPClient) ListByOwner(ctx context.Context, ownerID string, limit int) (*ListResponse, error) {
	path := "/v1/notifications/owner/" + url.PathEscape(ownerID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp ListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/notifications/owner/"+url.PathEscape(ownerID)+"/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// --- Lifecycle ---

func (c *HTTPClient) MarkRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *HTTPClient) MarkDelivered(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/delivered", nil, nil)
}

func (c *HTTPClient) Retry(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/retry", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Cleanup deletes read notifications older than olderThanDays, or the
// server's retention window when olderThanDays is not positive.
func (c *HTTPClient) Cleanup(ctx context.Context, olderThanDays int) (*CleanupResponse, error) {
	path := "/v1/notifications"
	if olderThanDays > 0 {
		path += "?older_than_days=" + strconv.Itoa(olderThanDays)
	}
	var resp CleanupResponse
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Presence ---

func (c *HTTPClient) ListPresence(ctx context.Context) (*PresenceList, error) {
	var resp PresenceList
	if err := c.doJSON(ctx, http.MethodGet, "/v1/presence", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetPresence(ctx context.Context, userID string) (*UserPresence, error) {
	var resp UserPresence
	if err := c.doJSON(ctx, http.MethodGet, "/v1/presence/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Broadcast pushes event with data to every open stream.
func (c *HTTPClient) Broadcast(ctx context.Context, event string, data any) (*BroadcastResponse, error) {
	body := map[string]any{"event": event, "data": data}
	var resp BroadcastResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/presence/broadcast", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// decodeAPIError builds an APIError from an error body. Field errors from a
// failed validation are folded into the message.
func decodeAPIError(status int, body []byte) error {
	var errResp struct {
		Error  string             `json:"error"`
		Fields []model.FieldError `json:"fields"`
	}
	if json.Unmarshal(body, &errResp) != nil || errResp.Error == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	msg := errResp.Error
	if len(errResp.Fields) > 0 {
		parts := make([]string, len(errResp.Fields))
		for i, f := range errResp.Fields {
			parts[i] = f.Field + " " + f.Message
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	return &APIError{StatusCode: status, Message: msg}
}
