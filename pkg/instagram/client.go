package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelgrab/pkg/errors"
	"reelgrab/pkg/logger"
)

// DefaultMaxBodyBytes caps how much of a scraped page is read into memory
const DefaultMaxBodyBytes = 8 << 20

// Client is a small HTTP client for fetching Instagram pages and
// third-party endpoints with a fixed header set.
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	logger       logger.Logger
	maxBodyBytes int64
}

// NewClient creates a client with browser-like document headers
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      MobileUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         Referer,
		},
		logger:       log,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// SetHTTPClient replaces the underlying transport client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetSession attaches Instagram session cookies to every request.
// Empty values are ignored.
func (c *Client) SetSession(sessionID, csrfToken string) {
	if sessionID == "" {
		return
	}
	cookie := "sessionid=" + sessionID
	if csrfToken != "" {
		cookie += "; csrftoken=" + csrfToken
		c.headers["X-CSRFToken"] = csrfToken
	}
	c.headers["Cookie"] = cookie
}

// Header returns the configured value of a header
func (c *Client) Header(key string) string {
	return c.headers[key]
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request and returns the raw response
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnknown, "failed to create request")
	}
	return c.doRequest(req)
}

// GetText performs a GET request, checks the status and returns the body as a string
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	body, err := c.readBody(resp)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PostForm sends form as application/x-www-form-urlencoded and returns the body
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnknown, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}
	return c.readBody(resp)
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "failed to read response body").WithCode(resp.StatusCode)
	}
	return body, nil
}

// checkResponseStatus maps non-2xx statuses onto typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	t := errors.FromStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(t),
	}
	if resp.Request != nil {
		fields["url"] = resp.Request.URL.String()
	}
	c.logger.DebugWithFields("unexpected upstream status", fields)
	return errors.New(t, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)).WithCode(resp.StatusCode)
}
