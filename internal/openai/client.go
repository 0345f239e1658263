// Package openai adapts OpenAI-compatible chat completion endpoints to sift's
// Generator and Translator capabilities.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gogpt "github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/sift/internal/llm"
)

// ChatCompleter is the slice of the go-openai client this package uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req gogpt.ChatCompletionRequest) (gogpt.ChatCompletionResponse, error)
}

// Client implements llm.Generator and llm.Translator.
type Client struct {
	chat           ChatCompleter
	model          string
	targetLanguage string
}

// Config configures NewClient.
type Config struct {
	APIKey string
	Model  string
	// BaseURL targets an OpenAI-compatible server; empty uses api.openai.com.
	BaseURL string
	// TargetLanguage is what Translate translates into; default "en".
	TargetLanguage string
}

func NewClient(cfg Config) *Client {
	oc := gogpt.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return New(gogpt.NewClientWithConfig(oc), cfg.Model, cfg.TargetLanguage)
}

// New wraps an existing chat client.
func New(chat ChatCompleter, model, targetLanguage string) *Client {
	if targetLanguage == "" {
		targetLanguage = "en"
	}
	return &Client{chat: chat, model: model, targetLanguage: strings.ToLower(targetLanguage)}
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, gogpt.ChatCompletionRequest{
		Model: c.model,
		Messages: []gogpt.ChatCompletionMessage{
			{Role: gogpt.ChatMessageRoleUser, Content: prompt},
		},
	})
}

const translateSystem = `You translate customer support messages for an executive report.
Reply with a single JSON object and nothing else:
{"translation": "<text in %[1]s>", "needs_translation": <true|false>, "detected_language": "<ISO 639-1 code>"}
If the text is already in %[1]s, set needs_translation to false and repeat the text unchanged.
Keep product names, numbers and URLs as written.`

// Translate renders text in the target language. sourceLang is a hint and may
// be empty.
func (c *Client) Translate(ctx context.Context, text, sourceLang string) (llm.Translation, error) {
	user := text
	if sourceLang != "" {
		user = fmt.Sprintf("Source language hint: %s\n\n%s", sourceLang, text)
	}
	raw, err := c.complete(ctx, gogpt.ChatCompletionRequest{
		Model:          c.model,
		Temperature:    0,
		ResponseFormat: &gogpt.ChatCompletionResponseFormat{Type: gogpt.ChatCompletionResponseFormatTypeJSONObject},
		Messages: []gogpt.ChatCompletionMessage{
			{Role: gogpt.ChatMessageRoleSystem, Content: fmt.Sprintf(translateSystem, c.targetLanguage)},
			{Role: gogpt.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return llm.Translation{}, err
	}
	return parseTranslation(raw)
}

func (c *Client) complete(ctx context.Context, req gogpt.ChatCompletionRequest) (string, error) {
	if c.chat == nil {
		return "", fmt.Errorf("openai client not configured: %w", llm.ErrUnavailable)
	}
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from openai")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion from openai")
	}
	return content, nil
}

func parseTranslation(raw string) (llm.Translation, error) {
	body, ok := llm.ExtractJSON(raw, '{', '}')
	if !ok {
		return llm.Translation{}, fmt.Errorf("translation reply is not JSON: %q", raw)
	}
	var t llm.Translation
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return llm.Translation{}, fmt.Errorf("parse translation: %w", err)
	}
	t.Text = strings.TrimSpace(t.Text)
	t.DetectedLanguage = strings.ToLower(strings.TrimSpace(t.DetectedLanguage))
	if t.NeedsTranslation && t.Text == "" {
		return llm.Translation{}, fmt.Errorf("translation reply has no text")
	}
	return t, nil
}
