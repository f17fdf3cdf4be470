// Package api is the client of the FinWise REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finwise/internal/core"
	"finwise/internal/log"
)

const maxResponseBytes = 8 << 20

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// New creates a client for the backend rooted at baseURL, e.g.
// https://example.com/api/v1.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and returns the body of a 2xx answer. A non-empty
// token is checked for expiry before anything goes on the wire.
func (c *Client) do(ctx context.Context, token, method, path string, body any) ([]byte, error) {
	if token != "" {
		if _, err := ParseSession(token, c.now()); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", ErrUnavailable, method, path, err)
	}

	c.logger.DebugContext(ctx, "Backend call",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, c.now().Sub(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(data),
		}
	}
	return data, nil
}

// errorMessage extracts the {"message": ...} the backend puts on failures.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	data, err := c.do(ctx, "", http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	return accessToken(data)
}

// Register creates an account. Some backend versions log the user in right
// away; the token is empty when they do not.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	data, err := c.do(ctx, "", http.MethodPost, "/auth/register", map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return "", err
	}
	tok, _ := accessToken(data)
	return tok, nil
}

func accessToken(data []byte) (string, error) {
	var body struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	tok := body.AccessToken
	if tok == "" {
		tok = body.Token
	}
	if tok == "" {
		return "", errors.New("token response carries no access token")
	}
	return tok, nil
}

// Profile is the authenticated user as the backend describes it.
type Profile struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Profile returns the owner of token.
func (c *Client) Profile(ctx context.Context, token string) (Profile, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/profile/me", nil)
	if err != nil {
		return Profile{}, err
	}
	var body struct {
		User Profile `json:"user"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return body.User, nil
}

// Records fetches all records of kind. Malformed entries are reported in the
// result, never dropped silently.
func (c *Client) Records(ctx context.Context, token string, kind core.Kind) (core.DecodeResult, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/"+kind.String()+"s", nil)
	if err != nil {
		return core.DecodeResult{}, err
	}
	return core.DecodeRecords(kind, data)
}

func (c *Client) Expenses(ctx context.Context, token string) (core.DecodeResult, error) {
	return c.Records(ctx, token, core.KindExpense)
}

func (c *Client) Incomes(ctx context.Context, token string) (core.DecodeResult, error) {
	return c.Records(ctx, token, core.KindIncome)
}

// NewRecord is the payload for creating an income or expense.
type NewRecord struct {
	Amount      core.Money
	Date        core.Date
	CategoryID  string // expenses only
	Description string // expense description or income source
}

// CreateRecord creates an income or expense and returns it as stored.
func (c *Client) CreateRecord(ctx context.Context, token string, kind core.Kind, in NewRecord) (core.Record, error) {
	body := map[string]any{
		"amount": in.Amount,
		"date":   in.Date.String(),
	}
	switch kind {
	case core.KindExpense:
		body["category"] = in.CategoryID
		body["description"] = in.Description
	case core.KindIncome:
		body["source"] = in.Description
	default:
		return core.Record{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	data, err := c.do(ctx, token, http.MethodPost, "/"+kind.String()+"s", body)
	if err != nil {
		return core.Record{}, err
	}
	return core.DecodeRecord(kind, data)
}

// DeleteRecord removes one income or expense.
func (c *Client) DeleteRecord(ctx context.Context, token string, kind core.Kind, id string) error {
	_, err := c.do(ctx, token, http.MethodDelete, "/"+kind.String()+"s/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) Categories(ctx context.Context, token string) ([]core.Category, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/categories", nil)
	if err != nil {
		return nil, err
	}
	return core.DecodeCategories(data)
}

func (c *Client) CreateCategory(ctx context.Context, token, name string) (core.Category, error) {
	cat := core.Category{Name: name}
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	data, err := c.do(ctx, token, http.MethodPost, "/categories", map[string]string{"name": name})
	if err != nil {
		return core.Category{}, err
	}
	return core.DecodeCategory(data)
}

func (c *Client) Goals(ctx context.Context, token string) ([]core.SavingsGoal, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/savings/goals", nil)
	if err != nil {
		return nil, err
	}
	return core.DecodeGoals(data)
}

func (c *Client) CreateGoal(ctx context.Context, token string, goal core.SavingsGoal) (core.SavingsGoal, error) {
	if err := goal.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	body := map[string]any{"title": goal.Title, "targetAmount": goal.TargetAmount}
	if goal.ImageRef != "" {
		body["image"] = goal.ImageRef
	}
	data, err := c.do(ctx, token, http.MethodPost, "/savings/goals", body)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return core.DecodeGoal(data)
}

// AddSavings increments the current amount of a goal server-side and returns
// the updated goal.
func (c *Client) AddSavings(ctx context.Context, token, goalID string, amount core.Money) (core.SavingsGoal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return core.SavingsGoal{}, fmt.Errorf("%w: savings must be positive", core.ErrInvalidAmount)
	}
	data, err := c.do(ctx, token, http.MethodPost, "/savings/goals/"+url.PathEscape(goalID)+"/add", map[string]any{"amount": amount})
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return core.DecodeGoal(data)
}

// MonthlyStat is one month of the admin statistics.
type MonthlyStat struct {
	Month   string     `json:"month"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// AdminStats is the system-wide summary served to administrators.
type AdminStats struct {
	Users      int           `json:"users"`
	Categories int           `json:"categories"`
	Expenses   int           `json:"expenses"`
	Incomes    int           `json:"incomes"`
	Monthly    []MonthlyStat `json:"monthly"`
}

func (c *Client) AdminStats(ctx context.Context, token string, year int) (AdminStats, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/admin/stats?year="+strconv.Itoa(year), nil)
	if err != nil {
		return AdminStats{}, err
	}
	var stats AdminStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return AdminStats{}, fmt.Errorf("decode admin stats: %w", err)
	}
	return stats, nil
}

// User is an account as listed to administrators.
type User struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Blocked bool   `json:"isBlocked"`
}

func (c *Client) AdminUsers(ctx context.Context, token string) ([]User, error) {
	data, err := c.do(ctx, token, http.MethodGet, "/admin/users", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode admin users: %w", err)
	}
	return body.Users, nil
}
