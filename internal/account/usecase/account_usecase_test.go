package usecase

import (
	"context"
	"errors"
	"testing"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/dto"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/gmail/gmailtest"

	"github.com/rs/zerolog"
	gmailapi "google.golang.org/api/gmail/v1"
)

type fakeFactory struct{ mailbox gmail.Mailbox }

func (f fakeFactory) Mailbox(ctx context.Context, creds gmail.Credentials, cb gmail.TokenUpdateFunc) (gmail.Mailbox, error) {
	return f.mailbox, nil
}

type fakeSeeder struct{ owners []string }

func (f *fakeSeeder) EnsureDefaults(owner string) error {
	f.owners = append(f.owners, owner)
	return nil
}

type fakeScheduler struct{ accounts []string }

func (f *fakeScheduler) EnqueueFullSync(ctx context.Context, a *accountdomain.GmailAccount) error {
	f.accounts = append(f.accounts, a.ID)
	return nil
}

func TestLinkCreatesAndActivates(t *testing.T) {
	repo := newMemoryAccountRepo()
	mb := &gmailtest.Mailbox{Profile: &gmailapi.Profile{EmailAddress: "me@gmail.com", HistoryId: 42}}
	watch := newTestWatch(repo, mb)
	seeder := &fakeSeeder{}
	sched := &fakeScheduler{}
	u := NewAccountUsecase(repo, fakeFactory{mb}, watch, seeder, sched, zerolog.Nop())

	account, err := u.Link(context.Background(), "user-1", &dto.LinkAccountRequest{AccessToken: "at", RefreshToken: "rt"})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if account.GmailAddress != "me@gmail.com" || account.AppUserID != "user-1" {
		t.Errorf("account = %+v", account)
	}
	if len(seeder.owners) != 1 || seeder.owners[0] != "user-1" {
		t.Errorf("defaults seeded for %v", seeder.owners)
	}
	if len(sched.accounts) != 1 || sched.accounts[0] != account.ID {
		t.Errorf("full sync queued for %v", sched.accounts)
	}
	if mb.WatchCalls != 1 {
		t.Errorf("watch calls = %d, want 1", mb.WatchCalls)
	}
}

func TestLinkRejectsForeignAccount(t *testing.T) {
	repo := newMemoryAccountRepo(&accountdomain.GmailAccount{ID: "a", AppUserID: "owner", GmailAddress: "me@gmail.com"})
	mb := &gmailtest.Mailbox{Profile: &gmailapi.Profile{EmailAddress: "me@gmail.com"}}
	u := NewAccountUsecase(repo, fakeFactory{mb}, newTestWatch(repo, mb), &fakeSeeder{}, &fakeScheduler{}, zerolog.Nop())

	_, err := u.Link(context.Background(), "intruder", &dto.LinkAccountRequest{AccessToken: "at", RefreshToken: "rt"})
	if !errors.Is(err, ErrAccountOwnedElsewhere) {
		t.Errorf("err = %v, want ErrAccountOwnedElsewhere", err)
	}
}

func TestGetChecksOwner(t *testing.T) {
	repo := newMemoryAccountRepo(&accountdomain.GmailAccount{ID: "a", AppUserID: "owner"})
	u := NewAccountUsecase(repo, nil, nil, nil, nil, zerolog.Nop())

	if _, err := u.Get("owner", "a"); err != nil {
		t.Errorf("owner Get: %v", err)
	}
	if _, err := u.Get("other", "a"); !errors.Is(err, accountdomain.ErrAccountNotFound) {
		t.Errorf("other Get err = %v", err)
	}
}
