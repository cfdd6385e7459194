package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/talentbridge/messaging/pkg/metrics"
)

const instructions = `You review messages on a job marketplace. Users may not share
contact details (email, phone number, social handle, website) in any form,
including obfuscated spellings such as "john at gmail dot com" or digits
written as words. Answer with exactly one word: YES if the message shares
contact details, NO otherwise.`

// Verdict is the classifier's decision on one message.
type Verdict struct {
	ContainsContact bool
	Model           string
}

// Classifier inspects message content.
type Classifier interface {
	Classify(ctx context.Context, content string) (Verdict, error)
}

// LLMClassifier is a Classifier backed by a completion model.
type LLMClassifier struct {
	backend Backend
	model   string
	timeout time.Duration
}

// NewLLMClassifier creates a classifier. An empty model uses the provider default.
func NewLLMClassifier(backend Backend, model string, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LLMClassifier{backend: backend, model: model, timeout: timeout}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, content string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ans, err := c.backend.Ask(ctx, Question{
		Model:        c.model,
		Instructions: instructions,
		Content:      content,
		MaxTokens:    4,
	})
	metrics.RecordModeration(string(c.backend.Provider()), err, time.Since(start).Seconds())
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		ContainsContact: isYes(ans.Text),
		Model:           ans.Model,
	}, nil
}

func isYes(s string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "YES")
}
