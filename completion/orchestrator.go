package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/models"
	"github.com/imkonsowa/taste-finder/telemetry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultTemperature = 0.7
)

var (
	ErrMissingCredential = errors.New("openai API key is not configured")
	ErrNoMessages        = errors.New("messages are required")
	ErrInvalidRole       = errors.New("invalid message role")
	ErrCompletionFailed  = errors.New("upstream completion failed")
)

// NewModel builds the chat model for the configured provider.
// A missing OpenAI key yields a nil model so callers fail per request, not at startup.
func NewModel(cfg config.LLM) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}

		opts := []openai.Option{
			openai.WithToken(cfg.OpenAI.APIKey),
			openai.WithModel(cfg.OpenAI.Model),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}

		return openai.New(opts...)
	case ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(cfg.Ollama.Address()),
			ollama.WithModel(cfg.Ollama.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type Orchestrator struct {
	llm          llms.Model
	provider     string
	temperature  float64
	systemPrompt string
}

type Option func(*Orchestrator)

func WithTemperature(t float64) Option {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		o.systemPrompt = prompt
	}
}

func WithProvider(name string) Option {
	return func(o *Orchestrator) {
		o.provider = name
	}
}

// NewOrchestrator wraps llm; a nil llm means the provider credential is missing.
func NewOrchestrator(llm llms.Model, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:          llm,
		provider:     ProviderOpenAI,
		temperature:  DefaultTemperature,
		systemPrompt: SystemPrompt,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Orchestrator) Configured() bool {
	return o.llm != nil
}

// Complete sends the system prompt followed by history and returns the first choice verbatim.
func (o *Orchestrator) Complete(ctx context.Context, history []models.ChatMessage) (_ string, err error) {
	if len(history) == 0 {
		return "", ErrNoMessages
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, o.systemPrompt))
	for _, m := range history {
		msgType, err := messageType(m.Role)
		if err != nil {
			return "", err
		}
		messages = append(messages, llms.TextParts(msgType, m.Content))
	}

	if !o.Configured() {
		return "", ErrMissingCredential
	}

	ctx, span := telemetry.StartUpstreamSpan(ctx, "llm.complete",
		attribute.String("llm.provider", o.provider),
		attribute.Int("llm.messages", len(messages)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndUpstreamSpan(ctx, span, o.provider, start, err)
	}()

	resp, err := o.llm.GenerateContent(ctx, messages, llms.WithTemperature(o.temperature))
	if err != nil {
		slog.Error("completion provider error", "provider", o.provider, "error", err)
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: provider returned no choices", ErrCompletionFailed)
	}

	return resp.Choices[0].Content, nil
}

func messageType(role models.Role) (llms.ChatMessageType, error) {
	switch role {
	case models.RoleUser:
		return llms.ChatMessageTypeHuman, nil
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI, nil
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}
