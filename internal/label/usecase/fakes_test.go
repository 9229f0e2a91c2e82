package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	emaildomain "mailsync-backend/internal/email/domain"
	labeldomain "mailsync-backend/internal/label/domain"
	"mailsync-backend/internal/label/repository"
)

type fakeLabelRepo struct {
	mu           sync.Mutex
	labels       []*labeldomain.UserLabel
	associations map[labeldomain.MessageLabel]bool
	addCalls     int
}

func newFakeLabelRepo(labels ...*labeldomain.UserLabel) *fakeLabelRepo {
	return &fakeLabelRepo{labels: labels, associations: map[labeldomain.MessageLabel]bool{}}
}

func (r *fakeLabelRepo) FindByOwner(owner string) ([]*labeldomain.UserLabel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*labeldomain.UserLabel
	for _, l := range r.labels {
		if l.AppUserID == owner {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLabelRepo) FindByID(id string) (*labeldomain.UserLabel, error) {
	for _, l := range r.labels {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeLabelRepo) Create(label *labeldomain.UserLabel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.labels {
		if l.AppUserID == label.AppUserID && l.Name == label.Name {
			return repository.ErrDuplicateLabel
		}
	}
	label.ID = fmt.Sprintf("label-%d", len(r.labels)+1)
	r.labels = append(r.labels, label)
	return nil
}

func (r *fakeLabelRepo) CountByOwner(owner string) (int64, error) {
	labels, _ := r.FindByOwner(owner)
	return int64(len(labels)), nil
}

func (r *fakeLabelRepo) AddAssociations(pairs []labeldomain.MessageLabel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addCalls++
	for _, p := range pairs {
		r.associations[labeldomain.MessageLabel{MessageID: p.MessageID, LabelID: p.LabelID}] = true
	}
	return nil
}

func (r *fakeLabelRepo) labelsOf(messageID string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for p := range r.associations {
		if p.MessageID == messageID {
			out[p.LabelID] = true
		}
	}
	return out
}

type fakeMessageRepo struct {
	classifiable []*emaildomain.Message
}

func (r *fakeMessageRepo) UpsertBatch(messages []*emaildomain.Message) error { return nil }
func (r *fakeMessageRepo) DeleteByGmailIDs(string, []string) (int64, error)  { return 0, nil }
func (r *fakeMessageRepo) FindByGmailID(string, string) (*emaildomain.Message, error) {
	return nil, nil
}
func (r *fakeMessageRepo) UpdateLabels(*emaildomain.Message) error { return nil }
func (r *fakeMessageRepo) ListClassifiable(owner string, limit int) ([]*emaildomain.Message, error) {
	if limit < len(r.classifiable) {
		return r.classifiable[:limit], nil
	}
	return r.classifiable, nil
}
func (r *fakeMessageRepo) CountByAccount(string) (int64, error) { return 0, nil }
func (r *fakeMessageRepo) ListLabelState(string) ([]*emaildomain.Message, error) {
	return nil, nil
}

// scriptedCompleter answers each prompt with reply(ids in the prompt).
type scriptedCompleter struct {
	mu      sync.Mutex
	known   []string
	reply   func(ids []string) (string, error)
	prompts []string
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	var ids []string
	for _, id := range c.known {
		if strings.Contains(prompt, fmt.Sprintf(`"id": %q`, id)) {
			ids = append(ids, id)
		}
	}
	return c.reply(ids)
}

func testMessages(n int) []*emaildomain.Message {
	out := make([]*emaildomain.Message, n)
	for i := range out {
		out[i] = &emaildomain.Message{
			ID:            fmt.Sprintf("m%d", i),
			Subject:       fmt.Sprintf("subject %d", i),
			BodyPlainText: "a body that is comfortably longer than twenty characters",
			LabelIDs:      emaildomain.StringArray{"INBOX"},
		}
	}
	return out
}

func idsOf(msgs []*emaildomain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
