// Package storeclient talks to the classroom REST store.
//
// Every response uses the {success, data, error} envelope. Failures come
// back as the shared sentinels: transport errors, timeouts and 5xx as
// pkg.ErrNetworkFailure, 400 as pkg.ErrValidation, the rest by status.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the store at baseURL (without the /api suffix).
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// SetToken replaces the bearer token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Tokens is the answer of login.
type Tokens struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

// Login signs in and keeps the access token for later requests.
func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	var tokens Tokens
	body := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &tokens); err != nil {
		return nil, err
	}
	c.SetToken(tokens.AccessToken)
	return &tokens, nil
}

// Find lists the records of collection matching filter, a query-by-example
// object such as {"course": "c1", "lecture": {"$in": ["l1", "l2"]}}.
func (c *Client) Find(ctx context.Context, collection string, filter map[string]any, out any) error {
	path := "/api/" + url.PathEscape(collection)
	if len(filter) > 0 {
		q, err := json.Marshal(filter)
		if err != nil {
			return fmt.Errorf("%w: encode filter: %v", pkg.ErrValidation, err)
		}
		path += "?query=" + url.QueryEscape(string(q))
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Create posts body to collection and decodes the stored record into out.
// out may be nil.
func (c *Client) Create(ctx context.Context, collection string, body, out any) error {
	return c.do(ctx, http.MethodPost, "/api/"+url.PathEscape(collection), body, out)
}

// Update patches the record id of collection.
func (c *Client) Update(ctx context.Context, collection, id string, body, out any) error {
	return c.do(ctx, http.MethodPatch, "/api/"+url.PathEscape(collection)+"/"+url.PathEscape(id), body, out)
}

// Delete removes the record id of collection.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/"+url.PathEscape(collection)+"/"+url.PathEscape(id), nil, nil)
}

// Upload stores r in bucket and returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: build upload: %v", pkg.ErrValidation, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("%w: read upload %s: %v", pkg.ErrValidation, filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: build upload: %v", pkg.ErrValidation, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload?bucket="+url.QueryEscape(bucket), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &result); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: upload response has no url", pkg.ErrNetworkFailure)
	}
	return result.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode body: %v", pkg.ErrValidation, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// envelope mirrors pkg.APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", pkg.ErrNetworkFailure, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%w: %s %s: %s", sentinelFor(resp.StatusCode), req.Method, req.URL.Path, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s %s: malformed response: %v", pkg.ErrNetworkFailure, req.Method, req.URL.Path, decodeErr)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s %s: malformed data: %v", pkg.ErrNetworkFailure, req.Method, req.URL.Path, err)
	}
	return nil
}

// sentinelFor is the inverse of pkg.StatusFor.
func sentinelFor(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return pkg.ErrValidation
	case http.StatusUnauthorized:
		return pkg.ErrUnauthorized
	case http.StatusForbidden:
		return pkg.ErrForbidden
	case http.StatusNotFound:
		return pkg.ErrNotFound
	case http.StatusConflict:
		return pkg.ErrAlreadyExists
	case http.StatusTooManyRequests:
		return pkg.ErrTooManyReqs
	default:
		return pkg.ErrNetworkFailure
	}
}
