package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/models"
)

type fakeModel struct {
	reply    string
	err      error
	noChoice bool

	calls    int
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}

	if f.err != nil {
		return nil, f.err
	}
	if f.noChoice {
		return &llms.ContentResponse{}, nil
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.reply}, {Content: "second choice"}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)

	return part.Text
}

func TestCompletePrependsSystemPrompt(t *testing.T) {
	model := &fakeModel{reply: `{"food":"pizza","location":"Chicago","message":"Sure!"}`}
	o := NewOrchestrator(model)

	out, err := o.Complete(context.Background(), []models.ChatMessage{
		models.AssistantMessage("Hi! How can I help?"),
		models.UserMessage("pizza in Chicago"),
	})
	require.NoError(t, err)
	require.Equal(t, model.reply, out)
	require.Equal(t, 1, model.calls)

	require.Len(t, model.messages, 3)
	require.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	require.Equal(t, SystemPrompt, textOf(t, model.messages[0]))
	require.Equal(t, llms.ChatMessageTypeAI, model.messages[1].Role)
	require.Equal(t, llms.ChatMessageTypeHuman, model.messages[2].Role)
	require.Equal(t, "pizza in Chicago", textOf(t, model.messages[2]))

	require.InDelta(t, DefaultTemperature, model.options.Temperature, 1e-9)
}

func TestCompleteCustomTemperatureAndPrompt(t *testing.T) {
	model := &fakeModel{reply: "hello"}
	o := NewOrchestrator(model, WithTemperature(0.2), WithSystemPrompt("be brief"))

	_, err := o.Complete(context.Background(), []models.ChatMessage{models.UserMessage("hi")})
	require.NoError(t, err)
	require.InDelta(t, 0.2, model.options.Temperature, 1e-9)
	require.Equal(t, "be brief", textOf(t, model.messages[0]))
}

func TestCompleteMissingCredential(t *testing.T) {
	o := NewOrchestrator(nil)
	require.False(t, o.Configured())

	_, err := o.Complete(context.Background(), []models.ChatMessage{models.UserMessage("hi")})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestCompleteRejectsEmptyAndInvalidInput(t *testing.T) {
	model := &fakeModel{reply: "x"}
	o := NewOrchestrator(model)

	_, err := o.Complete(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoMessages)

	_, err = o.Complete(context.Background(), []models.ChatMessage{{Role: "robot", Content: "beep"}})
	require.ErrorIs(t, err, ErrInvalidRole)
	require.Zero(t, model.calls)
}

func TestCompleteUpstreamFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("API returned unexpected status code: 429: rate limited")}
	o := NewOrchestrator(model)

	_, err := o.Complete(context.Background(), []models.ChatMessage{models.UserMessage("hi")})
	require.ErrorIs(t, err, ErrCompletionFailed)
	require.Contains(t, err.Error(), "rate limited")
	require.Equal(t, 1, model.calls, "no automatic retry")
}

func TestCompleteNoChoices(t *testing.T) {
	o := NewOrchestrator(&fakeModel{noChoice: true})

	_, err := o.Complete(context.Background(), []models.ChatMessage{models.UserMessage("hi")})
	require.ErrorIs(t, err, ErrCompletionFailed)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.LLM{Provider: ProviderOpenAI})
	require.NoError(t, err)
	require.Nil(t, m)

	m, err = NewModel(config.LLM{Provider: ProviderOpenAI, OpenAI: config.OpenAI{APIKey: "sk-test", Model: "gpt-3.5-turbo"}})
	require.NoError(t, err)
	require.NotNil(t, m)

	m, err = NewModel(config.LLM{Provider: ProviderOllama, Ollama: config.Ollama{Host: "localhost", Port: "11434", Model: "llama3.1"}})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = NewModel(config.LLM{Provider: "palm"})
	require.Error(t, err)
}
