package moderation

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openAIBackend struct {
	client *openai.Client
}

func newOpenAIBackend(apiKey string, o backendOptions) *openAIBackend {
	conf := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		conf.BaseURL = o.baseURL
	}
	return &openAIBackend{client: openai.NewClientWithConfig(conf)}
}

func (b *openAIBackend) Provider() Provider { return ProviderOpenAI }

// Ask sends the instructions as the system message. Temperature stays at
// zero so the same message gets the same verdict.
func (b *openAIBackend) Ask(ctx context.Context, q Question) (Answer, error) {
	model := q.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: q.Instructions},
			{Role: openai.ChatMessageRoleUser, Content: q.Content},
		},
		MaxTokens: q.MaxTokens,
	})
	if err != nil {
		return Answer{}, err
	}
	if len(resp.Choices) == 0 {
		return Answer{}, errors.New("openai returned no choices")
	}
	return Answer{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}
