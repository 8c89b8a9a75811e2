package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"once/server/internal/config"
)

const retryDelay = 1 * time.Second

// Client is the generation service: structured chat completions, streaming
// narration, and embeddings, all over one OpenAI-compatible endpoint.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	maxTokens      int
	temperature    float32
	maxRetries     int

	mu      sync.Mutex
	schemas map[string]*jsonschema.Definition
}

// NewClient builds a client from config. BaseURL may point at any
// OpenAI-compatible service.
func NewClient(cfg config.AIConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		apiCfg.BaseURL = cfg.LLM.BaseURL
	}

	temperature := cfg.LLM.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.LLM.Model,
		embeddingModel: cfg.Embedding.Model,
		maxTokens:      cfg.LLM.MaxTokens,
		temperature:    temperature,
		maxRetries:     cfg.LLM.MaxRetries,
		schemas:        make(map[string]*jsonschema.Definition),
	}
}

// GenerateStructured asks the service for a response conforming to the JSON
// schema of out, then deserializes into it. A response that fails either
// the request or the deserialization is a generation error.
func (c *Client) GenerateStructured(ctx context.Context, instructions, input, schemaName string, out any) error {
	schema, err := c.schemaFor(schemaName, out)
	if err != nil {
		return fmt.Errorf("failed to build schema %q: %w", schemaName, err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}

	resp, err := c.chatWithRetry(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("no choices returned from model")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("malformed structured output for %q: %w", schemaName, err)
	}
	return nil
}

// StreamNarration streams free-text narration, invoking onDelta per chunk
// and returning the accumulated text once the stream finishes. If the
// stream aborts, the partial text is not returned.
func (c *Client) StreamNarration(ctx context.Context, instructions, input string, onDelta func(chunk string)) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to open narration stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("narration stream aborted: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return full.String(), nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) chatWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("chat completion failed: %w", lastErr)
}

// schemaFor caches one schema definition per schema name; out is only
// reflected over on first use.
func (c *Client) schemaFor(name string, out any) (*jsonschema.Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if def, ok := c.schemas[name]; ok {
		return def, nil
	}
	def, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return nil, err
	}
	c.schemas[name] = def
	return def, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused")
}
