// Package assist asks an OpenAI-compatible chat model (DeepSeek by default)
// for suggestions and summaries of the running conversation.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/petems/whisper-meet/internal/config"
	"github.com/petems/whisper-meet/internal/metrics"
)

var (
	// ErrNoConversation means there is nothing to analyse yet
	ErrNoConversation = errors.New("no conversation to analyse")
	// ErrNotConfigured means no API key was provided
	ErrNotConfigured = errors.New("assistant API key not configured")
)

const (
	suggestWindow     = 20
	suggestMaxTokens  = 400
	summaryMaxTokens  = 350
	answerTemperature = 0.1
)

const (
	suggestSystem = "Sei un assistente per meeting professionali. Analizza la conversazione e fornisci 3 suggerimenti pratici per rispondere o procedere. Sii conciso."
	suggestUser   = "Analizza questa conversazione e suggerisci le prossime mosse:\n\n%s\n\nFornisci 3 suggerimenti brevi e pratici:"
	summarySystem = "Sei un assistente che crea riassunti di meeting professionali. Fornisci un riassunto strutturato con massimo 5 punti chiave. Usa bullet points."
	summaryUser   = "Crea un riassunto professionale di questo meeting:\n\n%s\n\nRiassumi in 5 punti chiave:"
)

// Assistant is what the app needs from the chat model
type Assistant interface {
	Suggest(ctx context.Context, lines []string) (string, error)
	Summarize(ctx context.Context, lines []string) (string, error)
	// Configured is false when calls would fail with ErrNotConfigured
	Configured() bool
}

// Client talks to the chat completions endpoint. Requests are not retried.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a client; without an API key every call returns ErrNotConfigured
func New(cfg config.AssistConfig, log zerolog.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		model:   cfg.Model,
		timeout: cfg.Timeout(),
		log:     log,
		metrics: m,
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("No " + config.APIKeyEnv + " set, suggestions and summaries are disabled")
		return c
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	c.client = openai.NewClientWithConfig(clientConfig)
	return c
}

// Configured reports whether an API key was provided
func (c *Client) Configured() bool {
	return c.client != nil
}

// Suggest asks for three short next steps based on the latest lines
func (c *Client) Suggest(ctx context.Context, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrNoConversation
	}
	if len(lines) > suggestWindow {
		lines = lines[len(lines)-suggestWindow:]
	}
	numbered := make([]string, len(lines))
	for i, l := range lines {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, l)
	}

	return c.complete(ctx, "suggest", suggestMaxTokens,
		suggestSystem, fmt.Sprintf(suggestUser, strings.Join(numbered, "\n")))
}

// Summarize asks for a five-point summary of the whole conversation
func (c *Client) Summarize(ctx context.Context, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrNoConversation
	}
	return c.complete(ctx, "summary", summaryMaxTokens,
		summarySystem, fmt.Sprintf(summaryUser, strings.Join(lines, "\n")))
}

func (c *Client) complete(ctx context.Context, kind string, maxTokens int, system, user string) (answer string, err error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	defer func() {
		if c.metrics != nil {
			c.metrics.AssistRequests.Add(ctx, 1, metrics.AssistAttrs(kind, err == nil))
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", kind, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s request returned no choices", kind)
	}

	c.log.Debug().
		Str("kind", kind).
		Dur("elapsed", time.Since(start)).
		Int("tokens", resp.Usage.TotalTokens).
		Msg("Assistant answered")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
