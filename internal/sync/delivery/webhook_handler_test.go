package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type chanIngester chan []byte

func (c chanIngester) HandlePush(ctx context.Context, body []byte) error {
	c <- body
	return nil
}

func TestHandleGmailPush(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		token      string
		query      string
		wantStatus int
		wantIngest bool
	}{
		{"no token configured", "", "", http.StatusNoContent, true},
		{"valid token", "s3cret", "?token=s3cret", http.StatusNoContent, true},
		{"wrong token", "s3cret", "?token=nope", http.StatusUnauthorized, false},
		{"missing token", "s3cret", "", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest := make(chanIngester, 1)
			h := NewWebhookHandler(ingest, tt.token, zerolog.Nop())
			r := gin.New()
			r.POST("/api/webhooks/gmail", h.HandleGmailPush)

			body := `{"message":{"data":"e30="}}`
			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/gmail"+tt.query, strings.NewReader(body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			select {
			case got := <-ingest:
				if !tt.wantIngest {
					t.Fatal("unexpected ingest")
				}
				if string(got) != body {
					t.Errorf("body = %s", got)
				}
			case <-time.After(time.Second):
				if tt.wantIngest {
					t.Fatal("push was not ingested")
				}
			}
		})
	}
}
