// Package client is a Go client for the taskboard API. It keeps the
// session alive transparently: when a request comes back with an expired
// access token the client refreshes the pair and retries the request
// once, and concurrent callers share a single in-flight refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/models"
)

const defaultRefreshTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the server's error
// envelope
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// tokenExpired reports whether the error means the access token expired
// and a refresh may help
func tokenExpired(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusUnauthorized && apiErr.Code == "token_expired"
}

type Config struct {
	// BaseURL of the API, e.g. "http://localhost:8000"
	BaseURL string

	// HTTPClient to use; a client with a fresh cookie jar if not set.
	// The jar is required: the refresh token lives in a cookie.
	HTTPClient *http.Client

	// RefreshTimeout bounds how long a caller waits for a shared
	// in-flight refresh before giving up
	RefreshTimeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client

	session *refresher
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url must not be empty")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("error while creating cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}

	timeout := cfg.RefreshTimeout
	if timeout == 0 {
		timeout = defaultRefreshTimeout
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
	}
	c.session = newRefresher(c.callRefresh, timeout)

	return c, nil
}

// User is the user shape API responses expose
type User struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	IsActive bool        `json:"isActive"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (User, error) {
	var resp struct {
		User        User   `json:"user"`
		AccessToken string `json:"accessToken"`
	}

	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/register", body, &resp); err != nil {
		return User{}, err
	}

	c.session.setToken(resp.AccessToken)
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		User        User   `json:"user"`
		AccessToken string `json:"accessToken"`
	}

	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
		return User{}, err
	}

	c.session.setToken(resp.AccessToken)
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	c.session.setToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}

	err := c.call(ctx, http.MethodGet, "/api/v1/users/me", nil, &resp)
	return resp.User, err
}

type TaskParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, params TaskParams) (models.Task, error) {
	var resp struct {
		Task models.Task `json:"task"`
	}

	err := c.call(ctx, http.MethodPost, "/api/v1/tasks", params, &resp)
	return resp.Task, err
}

func (c *Client) GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error) {
	var resp struct {
		Task models.Task `json:"task"`
	}

	err := c.call(ctx, http.MethodGet, "/api/v1/tasks/"+taskID.String(), nil, &resp)
	return resp.Task, err
}

func (c *Client) UpdateTask(ctx context.Context, taskID uuid.UUID, params TaskParams) (models.Task, error) {
	var resp struct {
		Task models.Task `json:"task"`
	}

	err := c.call(ctx, http.MethodPut, "/api/v1/tasks/"+taskID.String(), params, &resp)
	return resp.Task, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/tasks/"+taskID.String(), nil, nil)
}

type ListTasksQuery struct {
	Search string
	Status string
	Page   int
	Limit  int
	Sort   string
}

func (c *Client) ListTasks(ctx context.Context, query ListTasksQuery) ([]models.Task, error) {
	var resp struct {
		Tasks []models.Task `json:"tasks"`
	}

	values := url.Values{}
	if query.Search != "" {
		values.Set("q", query.Search)
	}
	if query.Status != "" {
		values.Set("status", query.Status)
	}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Sort != "" {
		values.Set("sort", query.Sort)
	}

	path := "/api/v1/tasks"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	err := c.call(ctx, http.MethodGet, path, nil, &resp)
	return resp.Tasks, err
}

// call runs one API request and retries exactly once after a successful
// refresh when the access token turned out to be expired
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	err := c.do(ctx, method, path, body, out)
	if !tokenExpired(err) {
		return err
	}

	if err := c.session.refresh(ctx); err != nil {
		return err
	}

	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error while encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error while decoding response: %w", err)
		}
	}

	return nil
}

// callRefresh posts to the refresh endpoint. The refresh token travels
// in the cookie jar; the new access token comes back in the body.
func (c *Client) callRefresh(ctx context.Context) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}

	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", nil, &resp); err != nil {
		return "", err
	}

	return resp.AccessToken, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var envelope struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
		apiErr.Code = envelope.Code
		apiErr.Fields = envelope.Errors
	}

	return apiErr
}
