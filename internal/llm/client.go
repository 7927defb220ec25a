package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"essay-grader/internal/config"
)

const (
	geminiBaseURL     = "https://generativelanguage.googleapis.com"
	perplexityBaseURL = "https://api.perplexity.ai"

	maxOutputTokens = 2048
)

// Client is a thin REST client over the configured provider. Safe for
// concurrent use; it keeps no per-request state.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
}

func New(cfg config.LLMConfig) *Client {
	if cfg.BaseURL == "" {
		if cfg.Provider == "perplexity" {
			cfg.BaseURL = perplexityBaseURL
		} else {
			cfg.BaseURL = geminiBaseURL
		}
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}}
}

// GenerateJSON asks the model for a structured JSON answer.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.generate(ctx, prompt, temperature, true, nil, "")
}

// GenerateText asks the model for free text, no schema enforced.
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.generate(ctx, prompt, temperature, false, nil, "")
}

// GenerateVision sends prompt plus an inline image. Gemini only.
func (c *Client) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if c.cfg.Provider == "perplexity" {
		return "", fmt.Errorf("vision requires the gemini provider, got %q", c.cfg.Provider)
	}
	return c.generate(ctx, prompt, 0.1, false, image, mimeType)
}

func (c *Client) generate(ctx context.Context, prompt string, temperature float64, jsonMode bool, image []byte, mimeType string) (string, error) {
	if c.cfg.Provider == "perplexity" {
		return c.chatCompletions(ctx, prompt, temperature)
	}
	return c.generateContent(ctx, prompt, temperature, jsonMode, image, mimeType)
}

// --- Gemini ---

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
		ResponseMimeType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) generateContent(ctx context.Context, prompt string, temperature float64, jsonMode bool, image []byte, mimeType string) (string, error) {
	var req geminiRequest
	parts := []geminiPart{{Text: prompt}}
	if image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}})
	}
	req.Contents = append(req.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})
	req.GenerationConfig.Temperature = temperature
	req.GenerationConfig.MaxOutputTokens = maxOutputTokens
	if jsonMode {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	body, err := c.post(ctx, url, req, map[string]string{"x-goog-api-key": c.cfg.APIKey})
	if err != nil {
		return "", err
	}
	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// --- OpenAI-compatible (Perplexity) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletions(ctx context.Context, prompt string, temperature float64) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	}
	body, err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", req, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		return "", err
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(res)}
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("provider returned %d: %s", res.StatusCode, truncate(string(body), 512))
	}
	return body, nil
}

func retryAfter(res *http.Response) time.Duration {
	if v := res.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
