package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/resilience"
)

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// Client talks to the accounting backend on behalf of the assistant. Responses are
// passed through as raw JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL, token string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
		logger:     logger,
	}
}

var financialPaths = map[domain.FinancialTopic]string{
	domain.TopicSummary:     "/bank/%s/reports/summary",
	domain.TopicAccounts:    "/bank/%s/accounts",
	domain.TopicOutstanding: "/bank/%s/reports/outstanding-items",
	domain.TopicBalance:     "/bank/%s/balance-reconciliation",
	domain.TopicAudit:       "/bank/%s/reports/audit-trail?page=1&size=20",
}

func (c *Client) CompanyFinancialInfo(ctx context.Context, clientID string, topic domain.FinancialTopic) (json.RawMessage, error) {
	ein, err := requireEIN(clientID)
	if err != nil {
		return nil, err
	}
	pattern, ok := financialPaths[domain.FinancialTopic(strings.ToLower(string(topic)))]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "company financial info",
			fmt.Errorf("unknown topic %q, use one of: summary, accounts, outstanding, balance, audit", topic))
	}
	return c.do(ctx, "financial_info", http.MethodGet, fmt.Sprintf(pattern, url.PathEscape(ein)), nil)
}

func (c *Client) CreateTodo(ctx context.Context, clientID string, todo domain.Todo) (json.RawMessage, error) {
	ein, err := requireEIN(clientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(todo.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create todo", errors.New("title is required"))
	}
	return c.do(ctx, "create_todo", http.MethodPost, "/todos/"+url.PathEscape(ein), todo)
}

func (c *Client) SearchDocuments(ctx context.Context, q domain.DocumentSearchQuery) (json.RawMessage, error) {
	ein, err := requireEIN(q.Company)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.DateRange != nil {
		if q.DateRange.From != "" {
			params.Set("from", q.DateRange.From)
		}
		if q.DateRange.To != "" {
			params.Set("to", q.DateRange.To)
		}
	}
	page, limit := q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	return c.do(ctx, "search_documents", http.MethodGet, "/files/"+url.PathEscape(ein)+"?"+params.Encode(), nil)
}

func (c *Client) SendEmail(ctx context.Context, email domain.Email) (json.RawMessage, error) {
	if len(email.To) == 0 || strings.TrimSpace(email.Subject) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send email", errors.New("recipient and subject are required"))
	}
	if email.Text == "" && email.HTML == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send email", errors.New("text or html body is required"))
	}
	return c.do(ctx, "send_email", http.MethodPost, "/mailer/send", email)
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload any) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, operation, errors.New("backend base URL not configured"))
	}
	if c.token == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, operation, errors.New("backend JWT not configured"))
	}

	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = raw
	}

	call := func(callCtx context.Context) (json.RawMessage, error) {
		return c.roundTrip(callCtx, operation, method, path, body)
	}
	if c.executor == nil {
		out, err := call(ctx)
		return out, wrapKind(operation, err)
	}
	out, err := resilience.Call(ctx, c.executor, "backend."+operation, call, classifyBackendError)
	return out, wrapKind(operation, err)
}

func (c *Client) roundTrip(ctx context.Context, operation, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	c.logger.Debug("backend_call", "operation", operation, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode >= 300 {
		return nil, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(truncate(raw, 2048)))}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("backend %s returned non-JSON body", operation)
	}
	return json.RawMessage(raw), nil
}

type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s status: %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("backend %s status: %d: %s", e.Operation, e.StatusCode, e.Body)
}

func classifyBackendError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapKind(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrUnauthorized) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		case statusErr.StatusCode == http.StatusNotFound:
			return domain.WrapError(domain.ErrNotFound, operation, err)
		case statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		}
	}
	if classifyBackendError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func requireEIN(clientID string) (string, error) {
	ein := strings.TrimSpace(clientID)
	if ein == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "backend", errors.New("no client EIN available"))
	}
	return ein, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
