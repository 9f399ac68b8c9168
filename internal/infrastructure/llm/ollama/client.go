package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/resilience"
)

type Options struct {
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// Client is the document oracle backed by an Ollama generate endpoint. Every task is
// answered in JSON mode; the caller still treats the reply as untrusted text.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL, model string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   opts.ResilienceExecutor,
		logger:     logger,
	}
}

func (c *Client) Complete(ctx context.Context, req domain.OracleRequest) (string, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return "", err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("oracle rate limit: %w", err)
		}
	}

	started := time.Now()
	out, err := c.generateJSON(ctx, string(req.Task), prompt)
	if err != nil {
		c.logger.Warn("oracle_call_failed", "task", req.Task, "error", err)
		return "", err
	}
	c.logger.Debug("oracle_call_completed",
		"task", req.Task,
		"duration_ms", time.Since(started).Milliseconds(),
		"response_bytes", len(out),
	)
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, task, prompt string) (string, error) {
	body := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: generateOptions{Temperature: 0},
	}
	if c.executor == nil {
		return c.generate(ctx, task, body)
	}

	out, err := resilience.Call(ctx, c.executor, "ollama.generate."+task, func(callCtx context.Context) (string, error) {
		return c.generate(callCtx, task, body)
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return out, nil
}
