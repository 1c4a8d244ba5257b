// Package agent implements the code-generation agent on top of a langchaingo
// model. Each turn renders the generation Request as a prompt, waits on a
// rate limiter, calls the model and decodes the single command in its reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/generation"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/pkg/secrets"
)

const (
	defaultMaxRetries  = 2
	defaultBaseBackoff = 1 * time.Second
	defaultMaxTokens   = 8192
	defaultBurst       = 1
)

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithLimiter replaces the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Agent) { a.limiter = l }
}

// WithRetries sets how often a failed model call is retried and the base
// backoff, which doubles per retry.
func WithRetries(n int, backoff time.Duration) Option {
	return func(a *Agent) {
		a.maxRetries = n
		a.backoff = backoff
	}
}

// WithRedactor scrubs secrets from every prompt before it leaves the process.
func WithRedactor(s *secrets.Scanner, allowlist *secrets.Allowlist) Option {
	return func(a *Agent) {
		a.scanner = s
		a.allowlist = allowlist
	}
}

// WithGeneration sets the max tokens and temperature of every call.
func WithGeneration(maxTokens int, temperature float64) Option {
	return func(a *Agent) {
		a.maxTokens = maxTokens
		a.temperature = temperature
	}
}

// Agent implements generation.Agent.
type Agent struct {
	model       llms.Model
	limiter     *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	maxTokens   int
	temperature float64
	scanner     *secrets.Scanner
	allowlist   *secrets.Allowlist
	logger      *logging.Logger
}

var _ generation.Agent = (*Agent)(nil)

// New wraps model. Calls are unlimited unless WithLimiter is given.
func New(model llms.Model, opts ...Option) *Agent {
	a := &Agent{
		model:      model,
		limiter:    rate.NewLimiter(rate.Inf, defaultBurst),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
		maxTokens:  defaultMaxTokens,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds the provider model named by cfg and an agent limited
// to cfg.RequestsPerMinute. Options are applied after the config.
func NewFromConfig(cfg config.AgentConfig, opts ...Option) (*Agent, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	base := []Option{
		WithLimiter(rate.NewLimiter(limit, defaultBurst)),
		WithGeneration(cfg.MaxTokens, cfg.Temperature),
	}
	return New(model, append(base, opts...)...), nil
}

// NewModel creates the langchaingo model for cfg.Provider.
func NewModel(cfg config.AgentConfig) (llms.Model, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}
	switch cfg.Provider {
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey.Value()),
			anthropic.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return llm, nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey.Value()),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
}

// NextCommand implements generation.Agent.
func (a *Agent) NextCommand(ctx context.Context, req generation.Request) (generation.Command, error) {
	prompt := BuildPrompt(req)
	if a.scanner != nil {
		redacted, findings, err := a.scanner.Redact(prompt, a.allowlist)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt for secrets: %w", err)
		}
		if len(findings) > 0 {
			a.logger.Warn(ctx, "redacted secrets from agent prompt", zap.Int("findings", len(findings)))
		}
		prompt = redacted
	}
	a.logger.Trace(ctx, "agent prompt", zap.Int("turn", req.Turn), zap.String("prompt", prompt))

	reply, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	a.logger.Trace(ctx, "agent reply", zap.Int("turn", req.Turn), zap.String("reply", reply))
	cmd, err := ParseReply(reply)
	if err != nil {
		a.logger.Debug(ctx, "undecodable agent reply", zap.Int("reply_bytes", len(reply)), zap.Error(err))
		return nil, err
	}
	return cmd, nil
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(a.temperature)}
	if a.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(a.maxTokens))
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}
		reply, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt, callOpts...)
		if err == nil {
			return reply, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
		a.logger.Warn(ctx, "model call failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
