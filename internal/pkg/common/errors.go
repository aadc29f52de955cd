package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithErr 以相同代碼包裝原始錯誤
func (e *CustomError) WithErr(err error) *CustomError {
	return NewError(e.Code, e.Message, e.Status, err)
}

// Response 轉為 API 錯誤響應，debug 時帶出原始錯誤
func (e *CustomError) Response(debug bool) ErrorResponse {
	resp := ErrorResponse{Code: e.Code, Message: e.Message}
	if debug && e.Err != nil {
		resp.Details = e.Err.Error()
	}
	return resp
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示輸入驗證錯誤
type ValidationError struct {
	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest     = "INVALID_REQUEST"     // 400
	ErrCodeNotFound           = "NOT_FOUND"           // 404
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"     // 408
	ErrCodePreferenceConflict = "PREFERENCE_CONFLICT" // 409
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"   // 429
	ErrCodeNoValidRecipes     = "NO_VALID_RECIPES"    // 422
	ErrCodeRequestCanceled    = "REQUEST_CANCELED"    // 499

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeGatewayExhausted   = "GATEWAY_EXHAUSTED"   // 502
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504
)

// StatusClientClosedRequest 客戶端中斷請求（nginx 慣例）
const StatusClientClosedRequest = 499

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrRequestTimeout     = NewError(ErrCodeRequestTimeout, "請求超時", http.StatusGatewayTimeout, nil)
	ErrPreferenceConflict = NewError(ErrCodePreferenceConflict, "偏好設定與既有紀錄衝突", http.StatusConflict, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)
	ErrNoValidRecipes     = NewError(ErrCodeNoValidRecipes, "無法產生符合偏好的食譜", http.StatusUnprocessableEntity, nil)
	ErrRequestCanceled    = NewError(ErrCodeRequestCanceled, "請求已取消", StatusClientClosedRequest, nil)

	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrGatewayExhausted   = NewError(ErrCodeGatewayExhausted, "生成服務多次嘗試皆失敗", http.StatusBadGateway, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)

	ErrCacheFull     = NewError("CACHE_FULL", "緩存已滿", http.StatusServiceUnavailable, nil)
	ErrCacheDisabled = NewError("CACHE_DISABLED", "緩存已禁用", http.StatusServiceUnavailable, nil)
	ErrCacheMiss     = NewError("CACHE_MISS", "緩存未命中", http.StatusNotFound, nil)
)
