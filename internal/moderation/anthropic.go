package moderation

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

type anthropicBackend struct {
	client *anthropic.Client
}

func newAnthropicBackend(apiKey string, o backendOptions) *anthropicBackend {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	return &anthropicBackend{client: anthropic.NewClient(reqOpts...)}
}

func (b *anthropicBackend) Provider() Provider { return ProviderAnthropic }

// Ask sends the instructions and the message as two text blocks of a single
// user turn.
func (b *anthropicBackend) Ask(ctx context.Context, q Question) (Answer, error) {
	model := q.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	turn := anthropic.MessageParam{
		Role: anthropic.F(anthropic.MessageParamRoleUser),
		Content: anthropic.F([]anthropic.ContentBlockParamUnion{
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(q.Instructions),
			},
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(q.Content),
			},
		}),
	}

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(q.MaxTokens)),
		Messages:  anthropic.F([]anthropic.MessageParam{turn}),
	})
	if err != nil {
		return Answer{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	return Answer{Text: text.String(), Model: resp.Model}, nil
}
