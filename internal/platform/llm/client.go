// Package llm wraps the chat-completion provider the summarization engine
// talks to. The engine only sees the Chatter interface; the OpenAI client
// below adds a request-rate guard and a per-call timeout so a stuck call can
// never pin a worker slot indefinitely.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Request is one chat-completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Reply carries the model output plus the usage figure the rate-limit ledger
// records.
type Reply struct {
	Content     string
	TotalTokens int
}

// Chatter is the provider contract.
type Chatter interface {
	Chat(ctx context.Context, req Request) (Reply, error)
}

// OpenAIClient implements Chatter against the OpenAI chat-completions API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	guard   *rate.Limiter
}

// NewOpenAIClient builds a client. requestsPerSecond bounds the request rate
// across all concurrent callers; timeout bounds each individual call.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, requestsPerSecond float64) *OpenAIClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &OpenAIClient{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		guard:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, req Request) (Reply, error) {
	if err := c.guard.Wait(ctx); err != nil {
		return Reply{}, fmt.Errorf("request guard wait: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyResponse
	}

	return Reply{
		Content:     resp.Choices[0].Message.Content,
		TotalTokens: int(resp.Usage.TotalTokens),
	}, nil
}

// StripFences removes a surrounding markdown code fence from a model reply so
// fenced JSON parses cleanly.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	// Without a closing fence only the opening line is stripped.
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
