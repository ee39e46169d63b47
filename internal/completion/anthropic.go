package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// APIConfig configures the Anthropic-backed completion backend.
type APIConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// APIInvoker runs completions against the Anthropic Messages API instead of
// a local CLI. The connection-parameter environment is ignored here; the SDK
// reads ANTHROPIC_API_KEY from the process environment.
type APIInvoker struct {
	client anthropic.Client
	config APIConfig
}

// NewAPIInvoker creates an API completion backend reading credentials from
// the environment.
func NewAPIInvoker(config APIConfig) *APIInvoker {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	return &APIInvoker{client: anthropic.NewClient(), config: config}
}

// NewAPIInvokerWithKey creates an API completion backend with an explicit key.
func NewAPIInvokerWithKey(config APIConfig, apiKey string) *APIInvoker {
	inv := NewAPIInvoker(config)
	inv.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	return inv
}

// Invoke sends the prompt as a single user message and concatenates the text
// blocks of the reply.
func (a *APIInvoker) Invoke(ctx context.Context, prompt string, timeout time.Duration, _ []string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: anthropic", ErrTimeout, timeout)
		}
		// An API-level refusal maps onto the non-zero-status outcome the
		// same way a failing CLI exit does.
		return &Result{Output: err.Error(), Status: 1}, nil
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &Result{Output: text}, nil
}
