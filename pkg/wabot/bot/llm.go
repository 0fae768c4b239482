// Package bot – llm.go implements the LLM client for chat completions.
// Uses the OpenAI-compatible API format, which works with OpenAI, Anthropic
// proxies, GLM (api.z.ai), and any compatible endpoint.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Completer is the completion capability the dispatcher depends on.
// The apology-substitution policy lives in the dispatcher, not here: both
// methods return real errors.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error)
	CompleteWithVision(ctx context.Context, imageB64, mimeType, prompt string) (string, error)
}

// LLMClient handles communication with the LLM provider API.
type LLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewLLMClient creates a new LLM client from config.
func NewLLMClient(cfg *Config, logger *slog.Logger) *LLMClient {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	visionModel := cfg.API.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}

	return &LLMClient{
		baseURL:     baseURL,
		apiKey:      cfg.API.APIKey,
		model:       cfg.Model,
		visionModel: visionModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm"),
	}
}

// chatMessage represents a message in the OpenAI chat format. Content is
// either a plain string or a list of content parts (vision requests).
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentPart is one element of a multi-part message.
type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *imageURL   `json:"image_url,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// chatRequest is the OpenAI-compatible chat completions request.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatResponse is the OpenAI-compatible chat completions response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a chat completion request and returns the response text.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: systemPrompt,
		})
	}

	for _, turn := range history {
		messages = append(messages, chatMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	messages = append(messages, chatMessage{
		Role:    "user",
		Content: userMessage,
	})

	return c.send(ctx, c.model, messages)
}

// CompleteWithVision sends a single-turn request with the media attached.
// Images go as a data URL, voice notes as an input_audio part.
func (c *LLMClient) CompleteWithVision(ctx context.Context, mediaB64, mimeType, prompt string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var media contentPart
	if strings.HasPrefix(mimeType, "audio/") {
		media = contentPart{Type: "input_audio", InputAudio: &inputAudio{
			Data:   mediaB64,
			Format: audioFormat(mimeType),
		}}
	} else {
		media = contentPart{Type: "image_url", ImageURL: &imageURL{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, mediaB64),
		}}
	}

	messages := []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			media,
		},
	}}

	return c.send(ctx, c.visionModel, messages)
}

// audioFormat maps a mime type like "audio/ogg; codecs=opus" to the short
// format name the completions API expects.
func audioFormat(mimeType string) string {
	sub := strings.TrimPrefix(mimeType, "audio/")
	if i := strings.IndexAny(sub, "; "); i >= 0 {
		sub = sub[:i]
	}
	switch sub {
	case "mpeg":
		return "mp3"
	case "":
		return "ogg"
	default:
		return sub
	}
}

// send posts a chat completions request and extracts the first choice.
func (c *LLMClient) send(ctx context.Context, model string, messages []chatMessage) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured. Run 'wabot config set-key' or set WABOT_API_KEY")
	}

	// No temperature — some models only support the default.
	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", model,
		"messages", len(messages),
		"endpoint", endpoint,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 200),
		)
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	c.logger.Info("chat completion done",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)

	return content, nil
}

// truncate returns the first n characters of s, adding "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
