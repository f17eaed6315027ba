package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const summarizerSystemPrompt = "You summarize a browser tab title into one or two short phrases " +
	"describing what the page is about. Use a bulleted list only when the title covers multiple topics."

// OpenAISummarizer implements Summarizer against any OpenAI-compatible
// chat completion endpoint (hosted or local).
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAISummarizer builds a summarizer. baseURL is optional; an empty
// value targets the default OpenAI endpoint.
func NewOpenAISummarizer(apiKey, baseURL, model string) *OpenAISummarizer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, title string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizerSystemPrompt),
			openai.UserMessage(title),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarizer: empty completion")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("summarizer: blank completion")
	}
	return text, nil
}
