package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"recipe-synthesizer/internal/core/ai/provider"
	"recipe-synthesizer/internal/core/ai/queue"
)

// 生成服務的傳輸層錯誤分類，皆可重試
var (
	ErrTimeout     = errors.New("gateway timeout")
	ErrUnavailable = errors.New("gateway unavailable")
	ErrRateLimited = errors.New("gateway rate limited")
)

// Error 帶分類的生成錯誤，errors.Is 可同時比對分類與原始錯誤
type Error struct {
	Kind       error
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify 將提供者錯誤歸類為 timeout / rate limited / unavailable
func classify(callCtx context.Context, err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	if errors.Is(err, queue.ErrQueueFull) {
		return &Error{Kind: ErrRateLimited, Err: err}
	}

	var se *provider.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: ErrRateLimited, RetryAfter: se.RetryAfter, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &Error{Kind: ErrTimeout, Err: err}
		default:
			return &Error{Kind: ErrUnavailable, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrTimeout, Err: err}
	}

	return &Error{Kind: ErrUnavailable, Err: err}
}
