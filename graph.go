package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of a Graph response body is read
const maxResponseBytes = 1 << 20

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Message)
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// AuthStyle selects how the access token travels with a Graph request
type AuthStyle int

const (
	// AuthFormToken sends access_token as a form field (or query parameter on GET)
	// and encodes POST bodies as application/x-www-form-urlencoded.
	AuthFormToken AuthStyle = iota
	// AuthBearer sends an Authorization: Bearer header and encodes POST
	// bodies as JSON.
	AuthBearer
)

// GraphResponse is the outcome of one Graph API call. Err is set for
// transport failures, non-2xx statuses and undecodable bodies; otherwise
// Body holds the decoded JSON object and ID its "id" field, if any.
type GraphResponse struct {
	StatusCode int
	ID         string
	Body       map[string]interface{}
	Err        error
}

// GraphClient calls a Graph-style API. Every call goes through Call, which
// converts all failures into GraphResponse.Err.
type GraphClient struct {
	baseURL string
	token   string
	auth    AuthStyle
	client  *http.Client
	limiter *rate.Limiter
}

// NewGraphClient creates a client for baseURL/version. Consecutive calls are
// spaced at least minInterval apart; a zero interval disables spacing.
func NewGraphClient(baseURL, version, token string, auth AuthStyle, timeout, minInterval time.Duration) *GraphClient {
	base := strings.TrimRight(baseURL, "/")
	if version != "" {
		base += "/" + strings.Trim(version, "/")
	}

	g := &GraphClient{
		baseURL: base,
		token:   token,
		auth:    auth,
		client:  &http.Client{Timeout: timeout},
	}
	if minInterval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return g
}

// Call performs method on endpoint (a path such as "/123/feed") with params
func (g *GraphClient) Call(ctx context.Context, method, endpoint string, params map[string]string) GraphResponse {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return GraphResponse{Err: fmt.Errorf("waiting to call %s: %w", endpoint, err)}
		}
	}

	req, err := g.newRequest(ctx, method, g.baseURL+endpoint, params)
	if err != nil {
		return GraphResponse{Err: fmt.Errorf("building request for %s: %w", endpoint, err)}
	}

	debugLog("Graph API request: %s %s", method, endpoint)
	resp, err := g.client.Do(req)
	if err != nil {
		return GraphResponse{Err: fmt.Errorf("calling %s: %w", endpoint, redactURLError(err))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	debugLog("Graph API response: status=%d endpoint=%s", resp.StatusCode, endpoint)
	if err != nil {
		return GraphResponse{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response from %s: %w", endpoint, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GraphResponse{
			StatusCode: resp.StatusCode,
			Err:        &HTTPError{StatusCode: resp.StatusCode, URL: endpoint, Message: graphErrorMessage(body)},
		}
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return GraphResponse{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response from %s: %w", endpoint, err)}
	}

	id, _ := decoded["id"].(string)
	return GraphResponse{StatusCode: resp.StatusCode, ID: id, Body: decoded}
}

func (g *GraphClient) newRequest(ctx context.Context, method, endpointURL string, params map[string]string) (*http.Request, error) {
	if method == http.MethodGet {
		u, err := url.Parse(endpointURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		if g.auth == AuthFormToken {
			q.Set("access_token", g.token)
		}
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
		g.authorize(req)
		return req, nil
	}

	var body io.Reader
	var contentType string
	switch g.auth {
	case AuthBearer:
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	default:
		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}
		form.Set("access_token", g.token)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpointURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	g.authorize(req)
	return req, nil
}

func (g *GraphClient) authorize(req *http.Request) {
	if g.auth == AuthBearer {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}

// graphErrorMessage extracts error.message from a Graph error body, falling
// back to the raw body
func graphErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		if payload.Error.Type != "" {
			return fmt.Sprintf("%s (%s, code %d)", payload.Error.Message, payload.Error.Type, payload.Error.Code)
		}
		return payload.Error.Message
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

// redactURLError drops the query string from transport errors, which may
// carry an access token
func redactURLError(err error) error {
	urlErr, ok := err.(*url.Error)
	if !ok {
		return err
	}
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		u.RawQuery = ""
		urlErr.URL = u.String()
	}
	return urlErr
}
