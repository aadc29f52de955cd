package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		handler gin.HandlerFunc
		status  int
	}{
		{
			name:    "slow handler without response",
			timeout: 20 * time.Millisecond,
			handler: func(c *gin.Context) { <-c.Request.Context().Done() },
			status:  http.StatusGatewayTimeout,
		},
		{
			name:    "handler answers after deadline",
			timeout: 20 * time.Millisecond,
			handler: func(c *gin.Context) {
				<-c.Request.Context().Done()
				c.JSON(http.StatusTeapot, gin.H{})
			},
			status: http.StatusTeapot,
		},
		{
			name:    "fast handler",
			timeout: time.Second,
			handler: func(c *gin.Context) { c.Status(http.StatusNoContent) },
			status:  http.StatusNoContent,
		},
		{
			name:    "disabled",
			timeout: 0,
			handler: func(c *gin.Context) {
				if _, ok := c.Request.Context().Deadline(); ok {
					c.Status(http.StatusInternalServerError)
					return
				}
				c.Status(http.StatusOK)
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Timeout(tt.timeout))
			r.GET("/", tt.handler)
			w := serve(r, http.MethodGet, "/", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusGatewayTimeout && !strings.Contains(w.Body.String(), common.ErrCodeRequestTimeout) {
				t.Fatalf("expected %s body, got %s", common.ErrCodeRequestTimeout, w.Body.String())
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), Logger())
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), common.ErrCodeInternalError) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := serve(r, http.MethodPost, "/", "small"); w.Code != http.StatusOK {
		t.Fatalf("small body: status %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/", "this body is too large"); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: status %d", w.Code)
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(time.Second)
	defer d.Close()
	now := time.Unix(1700000000, 0)
	d.now = func() time.Time { return now }

	r := gin.New()
	r.Use(d.Handler())
	r.POST("/echo", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, "/echo", `{"a":1}`)
	if w.Code != http.StatusOK || w.Body.String() != `{"a":1}` {
		t.Fatalf("first: status %d body %q", w.Code, w.Body.String())
	}
	if w = serve(r, http.MethodPost, "/echo", `{"a":1}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("duplicate: status %d, want 429", w.Code)
	}
	if w = serve(r, http.MethodPost, "/echo", `{"a":2}`); w.Code != http.StatusOK {
		t.Fatalf("different body: status %d", w.Code)
	}
	for i := 0; i < 2; i++ {
		if w = serve(r, http.MethodGet, "/echo", ""); w.Code != http.StatusOK {
			t.Fatalf("GET #%d: status %d", i+1, w.Code)
		}
	}

	now = now.Add(2 * time.Second)
	if w = serve(r, http.MethodPost, "/echo", `{"a":1}`); w.Code != http.StatusOK {
		t.Fatalf("after window: status %d", w.Code)
	}

	now = now.Add(2 * time.Second)
	d.cleanup()
	d.mu.Lock()
	remaining := len(d.requests)
	d.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("cleanup left %d entries", remaining)
	}
}
