package e621

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/ratelimit"
)

const (
	// DefaultUserAgent identifies the client as the site's API rules require
	DefaultUserAgent = "e621dl/1.0 (by e621dl maintainers on e621)"

	maxJSONBody = 32 << 20
)

const statusThrottled = 421

// Session carries the account used to sign requests. The zero value is anonymous.
type Session struct {
	username string
	apiKey   string
}

// NewSession returns a session for username authenticated with apiKey
func NewSession(username, apiKey string) Session {
	return Session{username: username, apiKey: apiKey}
}

func (s Session) Username() string { return s.username }

// Authenticated reports whether requests will carry credentials
func (s Session) Authenticated() bool { return s.username != "" && s.apiKey != "" }

// Options configures a Client
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Session    Session
	Limiter    ratelimit.Limiter
	Logger     logger.Logger
	HTTPClient *http.Client
}

// Client talks to the e621 JSON API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	session    Session
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  ua,
		session:    opts.Session,
		limiter:    opts.Limiter,
		logger:     log,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Session() Session { return c.session }

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.session.Authenticated() {
		req.SetBasicAuth(c.session.username, c.session.apiKey)
	}
	return req, nil
}

// doRequest sends req and logs the exchange
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Redacted(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.Redacted(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.Redacted(), resp.StatusCode, duration)
	return resp, nil
}

// GetJSON performs a paced GET against an API path and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.Redacted(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return nil
}

// checkResponse maps the status and content of resp to the error taxonomy.
// A challenge page wins over any status code.
func (c *Client) checkResponse(resp *http.Response) error {
	rawURL := resp.Request.URL.Redacted()

	if isHTML(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if marker, ok := DetectChallenge(body); ok {
			c.logger.ErrorWithFields("challenge page detected", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    rawURL,
				"marker": marker,
			})
			return &errs.ChallengeError{URL: rawURL, Marker: marker}
		}
		if resp.StatusCode < 400 {
			return &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: "expected JSON but received an HTML document",
				Code:    resp.StatusCode,
			}
		}
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return &errs.AuthError{Code: code, Message: "invalid username or API key"}
	case code == http.StatusForbidden:
		return &errs.AuthError{Code: code, Message: "access forbidden"}
	case code == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: code}
	case code == http.StatusTooManyRequests, code == statusThrottled:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": code,
			"url":    rawURL,
		})
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: code}
	case code >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: code}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", code),
			Code:    code,
		}
	}
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
