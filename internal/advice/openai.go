package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sony/gobreaker"

	"github.com/ecopulse/ecopulse/internal/models"
)

const DefaultModel = "gpt-4o-mini"

// OpenAINarrator asks a chat model for the situation paragraph. Calls go
// through a circuit breaker that opens after three consecutive failures.
type OpenAINarrator struct {
	client  openai.Client
	model   string
	timeout time.Duration
	circuit *gobreaker.CircuitBreaker
}

func NewOpenAINarrator(apiKey, model string, opts ...option.RequestOption) (*OpenAINarrator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &OpenAINarrator{
		client:  client,
		model:   model,
		timeout: 20 * time.Second,
		circuit: cb,
	}, nil
}

func (n *OpenAINarrator) Narrate(ctx context.Context, city string, score float64, category models.Category, lang Lang) (string, error) {
	out, err := n.circuit.Execute(func() (interface{}, error) {
		return n.complete(ctx, city, score, category, lang)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (n *OpenAINarrator) complete(ctx context.Context, city string, score float64, category models.Category, lang Lang) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(n.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(lang)),
			openai.UserMessage(userPrompt(city, score, category)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	return text, nil
}

func systemPrompt(lang Lang) string {
	language := "Turkish"
	if lang == LangEN {
		language = "English"
	}
	return "You are an urban ecology analyst. Describe a city's ecological situation in two or three plain sentences, in " +
		language + ". Do not list recommendations."
}

func userPrompt(city string, score float64, category models.Category) string {
	return fmt.Sprintf("City: %s\nEcoPulse score: %.2f (0 to 100, higher is healthier)\nCategory: %s", city, score, category)
}
