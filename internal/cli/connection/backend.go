package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

// Endpoint labels reported to the Recorder.
const (
	EndpointLogin = "login"
	EndpointFetch = "fetch"
)

// Config holds backend client settings.
type Config struct {
	// BaseURL is the backend root, e.g. https://crm.example.com.
	BaseURL string `koanf:"base_url" yaml:"base_url" json:"base_url"`

	// Timeout bounds a single request.
	Timeout time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`

	// LoginRate is the sustained login attempts per second. Zero disables
	// throttling.
	LoginRate float64 `koanf:"login_rate" yaml:"login_rate" json:"login_rate"`

	// LoginBurst is the number of attempts allowed back to back.
	LoginBurst int `koanf:"login_burst" yaml:"login_burst" json:"login_burst"`
}

// DefaultConfig returns the backend defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:3000",
		Timeout:    15 * time.Second,
		LoginRate:  0.2,
		LoginBurst: 3,
	}
}

// Recorder observes backend round trips.
type Recorder interface {
	RecordBackend(endpoint, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordBackend(string, string, time.Duration) {}

// Client is the CRM backend client.
type Client struct {
	http     *HTTPClient
	limiter  *rate.Limiter
	recorder Recorder
	log      logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithDeviceID sets the device identifier sent with every request.
func WithDeviceID(id string) ClientOption {
	return func(c *Client) {
		c.http.SetDeviceID(id)
	}
}

// NewClient creates a backend client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	limit := rate.Inf
	if cfg.LoginRate > 0 {
		limit = rate.Limit(cfg.LoginRate)
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http:     NewHTTPClient(cfg.BaseURL, cfg.Timeout),
		limiter:  rate.NewLimiter(limit, burst),
		recorder: nopRecorder{},
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "backend_client")
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

// loginResponse is the backend's login payload.
type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
	User    struct {
		CustID     flexString `json:"cust_id"`
		CustUniqID flexString `json:"cust_uniq_id"`
	} `json:"user"`
}

// Login exchanges credentials for a grant.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginGrant, error) {
	if !c.limiter.Allow() {
		return nil, domain.ErrRateLimited
	}

	ctx, reqID := logger.EnsureRequestID(ctx)
	log := c.log.WithContext(ctx)
	start := time.Now()

	resp, err := c.http.Post(ctx, "/api/login", creds)
	if err != nil {
		c.recorder.RecordBackend(EndpointLogin, "error", time.Since(start))
		log.Warn("login request failed", "error", err)
		return nil, domain.ErrBackendUnavailable.WithCause(err)
	}
	c.recorder.RecordBackend(EndpointLogin, strconv.Itoa(resp.StatusCode), time.Since(start))

	var body loginResponse
	if err := ParseResponse(resp, &body); err != nil {
		return nil, mapStatus(err, domain.ErrLoginRejected)
	}

	if !body.Success {
		log.Info("login rejected", "request_id", reqID)
		return nil, domain.ErrLoginRejected.WithDetails(body.Message)
	}
	if body.Token == "" {
		return nil, domain.ErrBackendResponse.WithDetails("login succeeded without a token")
	}

	return &domain.LoginGrant{
		Token: strings.TrimSpace(body.Token),
		Profile: domain.Profile{
			SubjectID:       string(body.User.CustID),
			SubjectUniqueID: string(body.User.CustUniqID),
		},
	}, nil
}

// resourcePattern restricts resource names to a single path segment.
var resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Fetch reads a resource scoped to the session's customer:
// GET /api/{resource}/{customerId} with the session token as bearer.
func (c *Client) Fetch(ctx context.Context, resource string, s *domain.Session) (json.RawMessage, error) {
	if s == nil || !s.IsAuthenticated || s.IsLoading {
		return nil, domain.ErrNotAuthenticated
	}
	if !resourcePattern.MatchString(resource) {
		return nil, domain.ErrInvalidArgument.WithDetails("resource must match " + resourcePattern.String())
	}

	ctx, _ = logger.EnsureRequestID(ctx)
	path := "/api/" + resource + "/" + url.PathEscape(s.SubjectID())
	start := time.Now()

	resp, err := c.http.Get(ctx, path, s.Token)
	if err != nil {
		c.recorder.RecordBackend(EndpointFetch, "error", time.Since(start))
		return nil, domain.ErrBackendUnavailable.WithCause(err)
	}
	c.recorder.RecordBackend(EndpointFetch, strconv.Itoa(resp.StatusCode), time.Since(start))

	var raw json.RawMessage
	if err := ParseResponse(resp, &raw); err != nil {
		return nil, mapStatus(err, domain.ErrNotAuthenticated)
	}

	c.log.WithContext(ctx).Debug("resource fetched",
		"resource", resource,
		"subject_id", s.SubjectID(),
		"bytes", len(raw))
	return raw, nil
}

// mapStatus converts a ParseResponse error into a domain error. unauthorized
// is used for 401 and 403.
func mapStatus(err error, unauthorized *domain.DomainError) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return domain.ErrBackendResponse.WithCause(err)
	}
	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return unauthorized.WithDetails(se.Message)
	case se.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited.WithDetails(se.Message)
	case se.StatusCode >= 500:
		return domain.ErrBackendUnavailable.WithCause(se)
	default:
		return domain.ErrBackendResponse.WithCause(se)
	}
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
