package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-synthesizer/internal/core/ai/provider"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultMaxTokens = 4096
	maxErrorBody     = 512
)

var _ provider.Provider = (*Client)(nil)

// Client OpenRouter API 客戶端（OpenAI 相容 chat completions）
type Client struct {
	http *resty.Client
	cfg  provider.Config
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    float64            `json:"temperature"`
	ResponseFormat *responseFormat    `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      provider.Message `json:"message"`
		FinishReason string           `json:"finish_reason"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
	Error *apiError      `json:"error,omitempty"`
}

// apiError OpenRouter 有時以 200 回傳錯誤物件
type apiError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

// NewClient 創建新的 OpenRouter 客戶端。連線錯誤與 5xx 由 resty 在傳輸層重試，
// 429 與其他 4xx 直接回傳給呼叫端分類
func NewClient(cfg provider.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			if r == nil {
				return false
			}
			code := r.StatusCode()
			return code >= 500 && code != http.StatusGatewayTimeout
		})
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.Referer != "" {
		rc.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		rc.SetHeader("X-Title", cfg.Title)
	}

	return &Client{http: rc, cfg: cfg}
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// Generate 呼叫 chat completions 並回傳第一個 choice 的內容
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, provider.Message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, req.Messages...)
	if req.JSONOutput {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", body.Model),
		zap.Int("messages", len(body.Messages)),
		zap.Float64("temperature", body.Temperature),
	)

	var result chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}

	if resp.IsError() {
		return nil, &provider.StatusError{
			Provider:   "openrouter",
			StatusCode: resp.StatusCode(),
			Body:       provider.TruncateBody(resp.String(), maxErrorBody),
			RetryAfter: provider.ParseRetryAfter(resp.Header()),
		}
	}

	if result.Error != nil {
		return nil, &provider.StatusError{
			Provider:   "openrouter",
			StatusCode: embeddedStatus(result.Error.Code),
			Body:       provider.TruncateBody(result.Error.Message, maxErrorBody),
		}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openrouter: %w", provider.ErrEmptyCompletion)
	}

	model := result.Model
	if model == "" {
		model = c.cfg.Model
	}
	return &provider.Response{
		Content: result.Choices[0].Message.Content,
		Model:   model,
		Usage:   result.Usage,
	}, nil
}

// embeddedStatus 解析錯誤物件中的 code，非數字時視為 502
func embeddedStatus(raw json.RawMessage) int {
	var code int
	if err := json.Unmarshal(raw, &code); err == nil && code >= 400 {
		return code
	}
	return http.StatusBadGateway
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
