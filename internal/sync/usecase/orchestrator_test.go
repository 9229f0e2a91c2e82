package usecase

import (
	"context"
	"errors"
	"testing"

	accountdomain "mailsync-backend/internal/account/domain"
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/pkg/gmail/gmailtest"

	"github.com/rs/zerolog"
	gmailapi "google.golang.org/api/gmail/v1"
)

type fixture struct {
	accounts *memoryAccounts
	messages *memoryMessages
	mailbox  *gmailtest.Mailbox
	classify *recordingDispatcher
	orch     *Orchestrator
}

func newFixture(t *testing.T, stored uint64) *fixture {
	t.Helper()
	f := &fixture{
		accounts: newMemoryAccounts(&accountdomain.GmailAccount{
			ID:            "a1",
			AppUserID:     "u1",
			GmailAddress:  "user@example.com",
			LastHistoryID: stored,
		}),
		messages: newMemoryMessages(),
		mailbox:  &gmailtest.Mailbox{Messages: map[string]*gmailapi.Message{}, GetErrors: map[string]error{}},
		classify: &recordingDispatcher{},
	}
	log := zerolog.Nop()
	fetcher := NewFetcher(4, log)
	upserter := NewUpserter(f.messages, 50, log)
	reconciler := NewReconciler(fetcher, upserter, f.messages, log)
	f.orch = NewOrchestrator(f.accounts, staticMailbox{mailbox: f.mailbox}, nil, reconciler, fetcher, upserter, f.classify, 100, log)
	return f
}

func incremental(newMarker uint64) syncdomain.SyncJob {
	return syncdomain.SyncJob{
		Kind:           syncdomain.JobIncremental,
		AppUserID:      "u1",
		GmailAccountID: "a1",
		NewMarker:      syncdomain.HistoryID(newMarker),
	}
}

func added(id string) *gmailapi.History {
	return &gmailapi.History{MessagesAdded: []*gmailapi.HistoryMessageAdded{{Message: &gmailapi.Message{Id: id}}}}
}

func deleted(id string) *gmailapi.History {
	return &gmailapi.History{MessagesDeleted: []*gmailapi.HistoryMessageDeleted{{Message: &gmailapi.Message{Id: id}}}}
}

func labelsAdded(id string, labels ...string) *gmailapi.History {
	return &gmailapi.History{LabelsAdded: []*gmailapi.HistoryLabelAdded{{Message: &gmailapi.Message{Id: id}, LabelIds: labels}}}
}

func labelsRemoved(id string, labels ...string) *gmailapi.History {
	return &gmailapi.History{LabelsRemoved: []*gmailapi.HistoryLabelRemoved{{Message: &gmailapi.Message{Id: id}, LabelIds: labels}}}
}

func TestIncrementalSyncEndToEnd(t *testing.T) {
	f := newFixture(t, 100)
	f.messages.put(msg("a1", "msg2", "existing", "INBOX", "UNREAD"))
	f.mailbox.Messages["msg1"] = gmailtest.Message("msg1", "Hello", "INBOX", "UNREAD")
	f.mailbox.HistoryID = 150
	f.mailbox.HistoryPages = [][]*gmailapi.History{
		{added("msg1")},
		{labelsRemoved("msg2", "UNREAD")},
	}

	if err := f.orch.Run(context.Background(), incremental(150)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.mailbox.HistoryStart) == 0 || f.mailbox.HistoryStart[0] != 100 {
		t.Errorf("history start = %v, want 100", f.mailbox.HistoryStart)
	}
	stored := f.messages.get("a1", "msg1")
	if stored == nil || stored.Subject != "Hello" || !stored.IsUnread {
		t.Fatalf("msg1 = %+v", stored)
	}
	if got := f.messages.get("a1", "msg2"); got.IsUnread {
		t.Error("msg2 still unread")
	}
	if f.messages.updates != 1 {
		t.Errorf("label writes = %d, want 1", f.messages.updates)
	}
	if len(f.classify.messages) != 1 || f.classify.messages[0].GmailMessageID != "msg1" || f.classify.owner != "u1" {
		t.Errorf("dispatched = %+v owner %q", f.classify.messages, f.classify.owner)
	}
	if got := f.accounts.watermark("a1"); got != 150 {
		t.Errorf("watermark = %d, want 150", got)
	}
}

func TestIncrementalSyncRedundantLabelIsSkipped(t *testing.T) {
	f := newFixture(t, 100)
	f.messages.put(msg("a1", "msg2", "existing", "INBOX", "STARRED"))
	f.mailbox.HistoryID = 120
	f.mailbox.HistoryPages = [][]*gmailapi.History{{labelsAdded("msg2", "STARRED")}}

	if err := f.orch.Run(context.Background(), incremental(120)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.messages.updates != 0 {
		t.Errorf("label writes = %d, want 0", f.messages.updates)
	}
	if got := f.accounts.watermark("a1"); got != 120 {
		t.Errorf("watermark = %d, want 120", got)
	}
}

func TestIncrementalSyncLabelChangeForUnknownMessage(t *testing.T) {
	f := newFixture(t, 100)
	f.mailbox.HistoryID = 130
	f.mailbox.HistoryPages = [][]*gmailapi.History{{labelsRemoved("ghost", "UNREAD")}}

	if err := f.orch.Run(context.Background(), incremental(130)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.messages.updates != 0 {
		t.Errorf("label writes = %d, want 0", f.messages.updates)
	}
	if got := f.accounts.watermark("a1"); got != 130 {
		t.Errorf("watermark = %d, want 130", got)
	}
}

func TestIncrementalSyncIncompleteKeepsWatermark(t *testing.T) {
	f := newFixture(t, 100)
	f.mailbox.Messages["ok"] = gmailtest.Message("ok", "fine")
	f.mailbox.GetErrors["bad"] = errors.New("backend error")
	f.mailbox.HistoryID = 150
	f.mailbox.HistoryPages = [][]*gmailapi.History{{added("ok"), added("bad")}}

	err := f.orch.Run(context.Background(), incremental(150))
	if !errors.Is(err, ErrIncompleteSync) {
		t.Fatalf("err = %v, want ErrIncompleteSync", err)
	}
	if f.messages.get("a1", "ok") == nil {
		t.Error("successful fetch not stored")
	}
	if got := f.accounts.watermark("a1"); got != 100 {
		t.Errorf("watermark = %d, want 100", got)
	}
}

func TestIncrementalSyncDeletions(t *testing.T) {
	f := newFixture(t, 100)
	f.messages.put(msg("a1", "old", "old", "INBOX"))
	f.mailbox.Messages["flash"] = gmailtest.Message("flash", "short lived")
	f.mailbox.HistoryID = 130
	f.mailbox.HistoryPages = [][]*gmailapi.History{
		{added("flash"), deleted("old")},
		{labelsAdded("flash", "STARRED"), deleted("flash")},
	}

	if err := f.orch.Run(context.Background(), incremental(130)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.messages.get("a1", "old") != nil {
		t.Error("deleted message still stored")
	}
	if f.mailbox.GetCalls["flash"] != 0 {
		t.Error("fetched a message that was added and deleted in the same range")
	}
	if f.messages.get("a1", "flash") != nil {
		t.Error("added-and-deleted message stored")
	}
	if len(f.classify.messages) != 0 {
		t.Errorf("dispatched %d messages", len(f.classify.messages))
	}
}

func TestIncrementalSyncSkipsReconciledRange(t *testing.T) {
	f := newFixture(t, 200)

	if err := f.orch.Run(context.Background(), incremental(150)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.mailbox.HistoryStart) != 0 {
		t.Error("history listed for an already reconciled range")
	}
	if got := f.accounts.watermark("a1"); got != 200 {
		t.Errorf("watermark = %d, want 200", got)
	}
}

func TestIncrementalSyncUsesLatestHistoryID(t *testing.T) {
	f := newFixture(t, 100)
	f.mailbox.HistoryID = 180

	if err := f.orch.Run(context.Background(), incremental(150)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.accounts.watermark("a1"); got != 180 {
		t.Errorf("watermark = %d, want 180", got)
	}
}

func TestIncrementalSyncFallsBackToFullSync(t *testing.T) {
	tests := []struct {
		name   string
		stored uint64
		setup  func(*gmailtest.Mailbox)
	}{
		{"history expired", 100, func(mb *gmailtest.Mailbox) { mb.HistoryErr = gmailtest.NotFound() }},
		{"no watermark", 0, func(mb *gmailtest.Mailbox) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.stored)
			f.mailbox.Profile = &gmailapi.Profile{EmailAddress: "user@example.com", HistoryId: 300}
			f.mailbox.MessageIDs = []string{"m1", "m2"}
			f.mailbox.Messages["m1"] = gmailtest.Message("m1", "one", "INBOX")
			f.mailbox.Messages["m2"] = gmailtest.Message("m2", "two", "SENT")
			tt.setup(f.mailbox)

			if err := f.orch.Run(context.Background(), incremental(150)); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if n, _ := f.messages.CountByAccount("a1"); n != 2 {
				t.Errorf("stored = %d, want 2", n)
			}
			if got := f.accounts.watermark("a1"); got != 300 {
				t.Errorf("watermark = %d, want 300", got)
			}
			if len(f.classify.messages) != 1 || f.classify.messages[0].GmailMessageID != "m1" {
				t.Errorf("dispatched = %v, want only m1", f.classify.messages)
			}
		})
	}
}

func TestFullSyncPrunesRemovedMessages(t *testing.T) {
	tests := []struct {
		name        string
		maxMessages int
		wantGone    bool
	}{
		{"complete listing", 0, true},
		{"truncated listing", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			f.messages.put(msg("a1", "gone", "deleted while history expired", "INBOX"))
			f.messages.put(msg("a1", "binned", "in trash", "TRASH"))
			f.mailbox.HistoryErr = gmailtest.NotFound()
			f.mailbox.Profile = &gmailapi.Profile{HistoryId: 300}
			f.mailbox.MessageIDs = []string{"m1", "m2"}
			f.mailbox.Messages["m1"] = gmailtest.Message("m1", "one", "INBOX")
			f.mailbox.Messages["m2"] = gmailtest.Message("m2", "two", "INBOX")

			job := syncdomain.SyncJob{Kind: syncdomain.JobFull, GmailAccountID: "a1", MaxMessages: tt.maxMessages}
			if err := f.orch.Run(context.Background(), job); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if gone := f.messages.get("a1", "gone") == nil; gone != tt.wantGone {
				t.Errorf("gone removed = %v, want %v", gone, tt.wantGone)
			}
			if f.messages.get("a1", "binned") == nil {
				t.Error("trashed message was pruned")
			}
			if f.messages.get("a1", "m1") == nil {
				t.Error("listed message missing")
			}
		})
	}
}

func TestFullSyncPruneFailureKeepsWatermark(t *testing.T) {
	f := newFixture(t, 50)
	f.messages.put(msg("a1", "gone", "stale", "INBOX"))
	f.messages.deleteEr = errStore
	f.mailbox.Profile = &gmailapi.Profile{HistoryId: 300}
	f.mailbox.MessageIDs = []string{"m1"}
	f.mailbox.Messages["m1"] = gmailtest.Message("m1", "one", "INBOX")

	err := f.orch.Run(context.Background(), syncdomain.SyncJob{Kind: syncdomain.JobFull, GmailAccountID: "a1"})
	if !errors.Is(err, ErrIncompleteSync) {
		t.Fatalf("err = %v", err)
	}
	if got := f.accounts.watermark("a1"); got != 50 {
		t.Errorf("watermark = %d, want 50", got)
	}
}

func TestFullSyncIncompleteKeepsWatermark(t *testing.T) {
	f := newFixture(t, 50)
	f.mailbox.Profile = &gmailapi.Profile{HistoryId: 300}
	f.mailbox.MessageIDs = []string{"m1", "m2"}
	f.mailbox.Messages["m1"] = gmailtest.Message("m1", "one")
	f.mailbox.GetErrors["m2"] = errors.New("backend error")

	err := f.orch.Run(context.Background(), syncdomain.SyncJob{Kind: syncdomain.JobFull, GmailAccountID: "a1"})
	if !errors.Is(err, ErrIncompleteSync) {
		t.Fatalf("err = %v", err)
	}
	if got := f.accounts.watermark("a1"); got != 50 {
		t.Errorf("watermark = %d, want 50", got)
	}
}

func TestRunUnknownAccount(t *testing.T) {
	f := newFixture(t, 100)
	job := incremental(150)
	job.GmailAccountID = "missing"

	if err := f.orch.Run(context.Background(), job); !errors.Is(err, accountdomain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestLabelModifierMirrorsChange(t *testing.T) {
	f := newFixture(t, 100)
	f.messages.put(msg("a1", "m1", "hi", "INBOX", "UNREAD"))
	log := zerolog.Nop()
	reconciler := NewReconciler(NewFetcher(1, log), NewUpserter(f.messages, 10, log), f.messages, log)
	modifier := NewLabelModifier(staticMailbox{mailbox: f.mailbox}, f.messages, reconciler, log)
	account, _ := f.accounts.FindByID("a1")

	got, err := modifier.Modify(context.Background(), account, "m1", []string{"STARRED"}, []string{"UNREAD"})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if !got.IsStarred || got.IsUnread {
		t.Errorf("flags = starred %v unread %v", got.IsStarred, got.IsUnread)
	}
	if len(f.mailbox.Modified) != 1 || f.mailbox.Modified[0].ID != "m1" {
		t.Errorf("gmail modifications = %+v", f.mailbox.Modified)
	}
}

func TestLabelModifierGmailError(t *testing.T) {
	f := newFixture(t, 100)
	f.mailbox.ModifyErr = gmailtest.NotFound()
	log := zerolog.Nop()
	modifier := NewLabelModifier(staticMailbox{mailbox: f.mailbox}, f.messages, nil, log)
	account, _ := f.accounts.FindByID("a1")

	if _, err := modifier.Modify(context.Background(), account, "m1", []string{"STARRED"}, nil); err == nil {
		t.Error("expected error")
	}
	if f.messages.updates != 0 {
		t.Error("local write after gmail failure")
	}
}
