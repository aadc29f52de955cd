package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"recipe-synthesizer/internal/core/ai/provider"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultModel = "gemini-1.5-flash-latest"

var _ provider.Provider = (*Client)(nil)

// Client Gemini 生成服務
type Client struct {
	client *genai.Client
	cfg    provider.Config
}

// NewClient 創建 Gemini 客戶端
func NewClient(ctx context.Context, cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// Generate 以單輪對話呼叫 Gemini
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := c.client.GenerativeModel(c.cfg.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	model.SetTemperature(float32(req.Temperature))
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		if se := statusError(err); se != nil {
			return nil, se
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		if resp.PromptFeedback != nil {
			common.LogWarn("Gemini prompt blocked", zap.String("reason", resp.PromptFeedback.BlockReason.String()))
		}
		return nil, fmt.Errorf("gemini: %w", provider.ErrEmptyCompletion)
	}

	out := &provider.Response{Content: sb.String(), Model: c.cfg.Model}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// statusError 將 googleapi / gRPC 錯誤轉為帶 HTTP 語意的 StatusError
func statusError(err error) *provider.StatusError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &provider.StatusError{
			Provider:   "gemini",
			StatusCode: gerr.Code,
			Body:       provider.TruncateBody(gerr.Message, 512),
			RetryAfter: provider.ParseRetryAfter(gerr.Header),
		}
	}
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	code := grpcToHTTP(st.Code())
	if code == 0 {
		return nil
	}
	return &provider.StatusError{
		Provider:   "gemini",
		StatusCode: code,
		Body:       provider.TruncateBody(st.Message(), 512),
	}
}

func grpcToHTTP(c codes.Code) int {
	switch c {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return http.StatusInternalServerError
	}
	return 0
}

// Close 關閉 GenAI 客戶端
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
