package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/pkg/gmail"
)

var errStore = errors.New("store unavailable")

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*accountdomain.GmailAccount
}

func newMemoryAccounts(accounts ...*accountdomain.GmailAccount) *memoryAccounts {
	r := &memoryAccounts{accounts: map[string]*accountdomain.GmailAccount{}}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *memoryAccounts) Create(a *accountdomain.GmailAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *memoryAccounts) FindByID(id string) (*accountdomain.GmailAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAccounts) FindByGmailAddress(address string) (*accountdomain.GmailAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.GmailAddress == address {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryAccounts) FindByOwner(appUserID string) ([]*accountdomain.GmailAccount, error) {
	return nil, nil
}

func (r *memoryAccounts) UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error {
	return nil
}

func (r *memoryAccounts) AdvanceWatermark(id string, marker uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || a.LastHistoryID >= marker {
		return false, nil
	}
	a.LastHistoryID = marker
	return true, nil
}

func (r *memoryAccounts) SetWatch(id string, historyID uint64, expiry time.Time) error { return nil }

func (r *memoryAccounts) ClearWatch(id string) error { return nil }

func (r *memoryAccounts) ListWatchesExpiringBefore(t time.Time) ([]*accountdomain.GmailAccount, error) {
	return nil, nil
}

func (r *memoryAccounts) watermark(id string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id].LastHistoryID
}

type staticMailbox struct {
	mailbox gmail.Mailbox
	err     error
}

func (s staticMailbox) ForAccount(ctx context.Context, account *accountdomain.GmailAccount) (gmail.Mailbox, error) {
	return s.mailbox, s.err
}

type memoryMessages struct {
	mu       sync.Mutex
	rows     map[string]*emaildomain.Message
	failOn   map[string]bool
	deleteEr error
	upserts  int
	updates  int
}

func newMemoryMessages() *memoryMessages {
	return &memoryMessages{rows: map[string]*emaildomain.Message{}, failOn: map[string]bool{}}
}

func messageKey(accountID, gmailID string) string { return accountID + "/" + gmailID }

func (r *memoryMessages) put(m *emaildomain.Message) {
	m.DeriveFlags()
	r.rows[messageKey(m.GmailAccountID, m.GmailMessageID)] = m
}

func (r *memoryMessages) UpsertBatch(messages []*emaildomain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		if r.failOn[m.GmailMessageID] {
			return errStore
		}
	}
	r.upserts++
	for _, m := range messages {
		k := messageKey(m.GmailAccountID, m.GmailMessageID)
		if existing, ok := r.rows[k]; ok {
			m.ID = existing.ID
		} else if m.ID == "" {
			m.ID = "row-" + m.GmailMessageID
		}
		cp := *m
		r.rows[k] = &cp
	}
	return nil
}

func (r *memoryMessages) DeleteByGmailIDs(accountID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteEr != nil {
		return 0, r.deleteEr
	}
	var n int64
	for _, id := range ids {
		k := messageKey(accountID, id)
		if _, ok := r.rows[k]; ok {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *memoryMessages) FindByGmailID(accountID, gmailID string) (*emaildomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[messageKey(accountID, gmailID)]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMessages) UpdateLabels(m *emaildomain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	cp := *m
	r.rows[messageKey(m.GmailAccountID, m.GmailMessageID)] = &cp
	return nil
}

func (r *memoryMessages) ListClassifiable(appUserID string, limit int) ([]*emaildomain.Message, error) {
	return nil, nil
}

func (r *memoryMessages) CountByAccount(accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.GmailAccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (r *memoryMessages) ListLabelState(accountID string) ([]*emaildomain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.Message
	for _, m := range r.rows {
		if m.GmailAccountID == accountID {
			out = append(out, &emaildomain.Message{GmailMessageID: m.GmailMessageID, LabelIDs: m.LabelIDs})
		}
	}
	return out, nil
}

func (r *memoryMessages) get(accountID, gmailID string) *emaildomain.Message {
	m, _ := r.FindByGmailID(accountID, gmailID)
	return m
}

type recordingDispatcher struct {
	mu       sync.Mutex
	owner    string
	messages []*emaildomain.Message
}

func (d *recordingDispatcher) DispatchNewMessages(appUserID string, messages []*emaildomain.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owner = appUserID
	d.messages = append(d.messages, messages...)
	return true
}

type memoryPublisher struct {
	published []any
	err       error
}

func (p *memoryPublisher) Publish(ctx context.Context, v any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, v)
	return "1-0", nil
}

type setDeduper map[string]bool

func (d setDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	if d[key] {
		return false, nil
	}
	d[key] = true
	return true, nil
}

func (d setDeduper) Forget(ctx context.Context, key string) error {
	delete(d, key)
	return nil
}
