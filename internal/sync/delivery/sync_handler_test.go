package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/dto"
	emaildomain "mailsync-backend/internal/email/domain"
	syncdomain "mailsync-backend/internal/sync/domain"

	"github.com/gin-gonic/gin"
)

type ownerAccounts struct{}

func (ownerAccounts) Link(ctx context.Context, appUserID string, req *dto.LinkAccountRequest) (*accountdomain.GmailAccount, error) {
	return nil, nil
}

func (ownerAccounts) Activate(ctx context.Context, account *accountdomain.GmailAccount) error {
	return nil
}

func (ownerAccounts) Get(appUserID, accountID string) (*accountdomain.GmailAccount, error) {
	if appUserID != "u1" || accountID != "a1" {
		return nil, accountdomain.ErrAccountNotFound
	}
	return &accountdomain.GmailAccount{ID: "a1", AppUserID: "u1"}, nil
}

func (ownerAccounts) List(appUserID string) ([]*accountdomain.GmailAccount, error) {
	return nil, nil
}

type countingScheduler struct{ calls int }

func (s *countingScheduler) EnqueueFullSync(ctx context.Context, account *accountdomain.GmailAccount) error {
	s.calls++
	return nil
}

type echoModifier struct{}

func (echoModifier) Modify(ctx context.Context, account *accountdomain.GmailAccount, id string, add, remove []string) (*emaildomain.Message, error) {
	m := &emaildomain.Message{GmailAccountID: account.ID, GmailMessageID: id, LabelIDs: add}
	m.DeriveFlags()
	return m, nil
}

type noRuns struct{}

func (noRuns) Start(run *syncdomain.SyncRun) error                    { return nil }
func (noRuns) Transition(id string, state syncdomain.SyncState) error { return nil }
func (noRuns) Finish(run *syncdomain.SyncRun) error                   { return nil }

func (noRuns) LatestByAccount(id string, limit int) ([]*syncdomain.SyncRun, error) {
	return nil, nil
}

func newSyncRouter(sched *countingScheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSyncHandler(ownerAccounts{}, sched, echoModifier{}, noRuns{})
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-User"))
		c.Next()
	})
	r.POST("/accounts/:id/sync", h.TriggerFullSync)
	r.GET("/accounts/:id/sync/runs", h.GetSyncRuns)
	r.PATCH("/accounts/:id/messages/:messageId/labels", h.ModifyLabels)
	return r
}

func TestSyncHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"trigger full sync", http.MethodPost, "/accounts/a1/sync", "u1", "", http.StatusAccepted, "full sync queued"},
		{"foreign account", http.MethodPost, "/accounts/a1/sync", "u2", "", http.StatusNotFound, "Account not found"},
		{"runs", http.MethodGet, "/accounts/a1/sync/runs", "u1", "", http.StatusOK, `"runs":[]`},
		{"modify labels", http.MethodPatch, "/accounts/a1/messages/m1/labels", "u1", `{"add":["STARRED"]}`, http.StatusOK, `"is_starred":true`},
		{"modify without changes", http.MethodPatch, "/accounts/a1/messages/m1/labels", "u1", `{}`, http.StatusBadRequest, "add or remove"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &countingScheduler{}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("X-User", tt.user)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			newSyncRouter(sched).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.name == "trigger full sync" && sched.calls != 1 {
				t.Errorf("scheduler calls = %d", sched.calls)
			}
		})
	}
}
