package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/crmdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

// Request headers sent on every call.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderDeviceID  = "X-Device-ID"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// HTTPClient provides HTTP communication with the backend.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	deviceID string
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	// Ensure baseURL has http:// prefix
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetDeviceID sets the identifier sent in the X-Device-ID header.
func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

// Get performs a GET request. A non-empty bearer is sent as the
// Authorization header.
func (c *HTTPClient) Get(ctx context.Context, path, bearer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(ctx, req)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(ctx, req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.client.Do(req)
}

// addHeaders adds request tracing and common headers.
func (c *HTTPClient) addHeaders(ctx context.Context, req *http.Request) {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(HeaderRequestID, id)
	}
	if c.deviceID != "" {
		req.Header.Set(HeaderDeviceID, c.deviceID)
	}
	req.Header.Set("User-Agent", "crmdesk/"+buildinfo.Version)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// ParseResponse parses a JSON response body into the target struct.
// Non-2xx responses return a *StatusError carrying the backend message.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode >= 400 {
		// Try to parse error response
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(body).Decode(&errResp); err == nil {
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		}
		return statusErr
	}

	if target != nil {
		if err := json.NewDecoder(body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}
