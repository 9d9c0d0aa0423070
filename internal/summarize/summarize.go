// Package summarize hands captured selections to a language model.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/metcalfc/folio/internal/selection"
)

const (
	DefaultModel = "gpt-4o-mini"

	systemPrompt = "You summarize passages from a document for a reader. " +
		"Reply with a short plain-text summary. Mention page numbers when the passage spans pages."
)

var (
	// ErrEmpty is returned for selections without text.
	ErrEmpty = errors.New("selection has no text")
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrNoChoices is returned when the model sends back nothing.
	ErrNoChoices = errors.New("model returned no choices")
)

// Summarizer receives captured selections.
type Summarizer interface {
	Summarize(ctx context.Context, sel *selection.TextSelection) (string, error)
}

// Func adapts a function to Summarizer.
type Func func(ctx context.Context, sel *selection.TextSelection) (string, error)

func (f Func) Summarize(ctx context.Context, sel *selection.TextSelection) (string, error) {
	return f(ctx, sel)
}

// OpenAIConfig holds configuration for the OpenAI summarizer.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // DefaultModel when empty
	BaseURL    string        // Optional (tests, compatible gateways)
	MaxRetries int           // Retries after the first attempt
	RetryDelay time.Duration // Base delay between attempts
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAI summarizes through the chat completions API.
type OpenAI struct {
	client   openai.Client
	model    string
	attempts uint
	delay    time.Duration
	log      *slog.Logger
}

// NewOpenAI creates a summarizer. Retries are done here rather than in the
// SDK so that only rate limits, server errors and network failures retry.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		attempts: uint(cfg.MaxRetries + 1),
		delay:    cfg.RetryDelay,
		log:      logger,
	}, nil
}

// Summarize asks the model for a summary of sel.
func (o *OpenAI) Summarize(ctx context.Context, sel *selection.TextSelection) (string, error) {
	if sel == nil || strings.TrimSpace(sel.Text) == "" {
		return "", ErrEmpty
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Prompt(sel)),
		},
	}

	var summary string
	err := retry.Do(
		func() error {
			resp, err := o.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return retry.Unrecoverable(ErrNoChoices)
			}
			summary = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.delay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.log.Warn("summarize attempt failed", "selection", sel.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to summarize %s: %w", sel.ID, mapError(err))
	}
	o.log.Debug("summarized selection", "selection", sel.ID, "chars", len(summary))
	return summary, nil
}

// isRetryable reports whether a failed request is worth repeating: rate
// limits, server errors and transport failures are; client errors and
// cancellation are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrNoChoices)
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}

// Prompt renders a selection for the model, grouping its text by page.
func Prompt(sel *selection.TextSelection) string {
	var b strings.Builder
	page := 0
	for _, n := range sel.Nodes {
		if n.PageNumber != page || b.Len() == 0 {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			page = n.PageNumber
			fmt.Fprintf(&b, "[page %d]\n", page)
		} else {
			b.WriteString("\n")
		}
		b.WriteString(n.Text)
	}
	if len(sel.Nodes) == 0 {
		b.WriteString(sel.Text)
	}
	return b.String()
}
