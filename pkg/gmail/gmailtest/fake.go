// Package gmailtest provides an in-memory gmail.Mailbox for tests.
package gmailtest

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// NotFound is the error Gmail returns for unknown ids and expired history.
func NotFound() error {
	return &googleapi.Error{Code: http.StatusNotFound, Message: "Requested entity was not found."}
}

// Mailbox is a scripted gmail.Mailbox. Zero values behave like an empty mailbox.
type Mailbox struct {
	mu sync.Mutex

	Profile    *gmail.Profile
	MessageIDs []string
	Messages   map[string]*gmail.Message
	GetErrors  map[string]error
	ListErr    error

	HistoryPages [][]*gmail.History
	HistoryID    uint64
	HistoryErr   error

	WatchResponse *gmail.WatchResponse
	WatchErr      error
	StopErr       error
	ModifyErr     error

	GetCalls     map[string]int
	HistoryStart []uint64
	WatchCalls   int
	StopCalls    int
	Modified     []Modification
}

type Modification struct {
	ID     string
	Add    []string
	Remove []string
}

func (m *Mailbox) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	if m.Profile == nil {
		return &gmail.Profile{EmailAddress: "user@example.com", HistoryId: m.HistoryID}, nil
	}
	return m.Profile, nil
}

func (m *Mailbox) ListMessages(ctx context.Context, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	start, _ := strconv.Atoi(pageToken)
	end := start + int(maxResults)
	if end > len(m.MessageIDs) {
		end = len(m.MessageIDs)
	}
	resp := &gmail.ListMessagesResponse{}
	for _, id := range m.MessageIDs[start:end] {
		resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
	}
	if end < len(m.MessageIDs) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

func (m *Mailbox) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetCalls == nil {
		m.GetCalls = map[string]int{}
	}
	m.GetCalls[id]++
	if err, ok := m.GetErrors[id]; ok {
		return nil, err
	}
	msg, ok := m.Messages[id]
	if !ok {
		return nil, NotFound()
	}
	return msg, nil
}

func (m *Mailbox) ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmail.ListHistoryResponse, error) {
	m.mu.Lock()
	m.HistoryStart = append(m.HistoryStart, startHistoryID)
	m.mu.Unlock()
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	page, _ := strconv.Atoi(pageToken)
	resp := &gmail.ListHistoryResponse{HistoryId: m.HistoryID}
	if page < len(m.HistoryPages) {
		resp.History = m.HistoryPages[page]
	}
	if page+1 < len(m.HistoryPages) {
		resp.NextPageToken = strconv.Itoa(page + 1)
	}
	return resp, nil
}

func (m *Mailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModifyErr != nil {
		return m.ModifyErr
	}
	m.Modified = append(m.Modified, Modification{ID: id, Add: add, Remove: remove})
	return nil
}

func (m *Mailbox) Watch(ctx context.Context, topicName string, labelIDs []string) (*gmail.WatchResponse, error) {
	m.mu.Lock()
	m.WatchCalls++
	m.mu.Unlock()
	if m.WatchErr != nil {
		return nil, m.WatchErr
	}
	if m.WatchResponse == nil {
		return &gmail.WatchResponse{HistoryId: m.HistoryID}, nil
	}
	return m.WatchResponse, nil
}

func (m *Mailbox) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.StopCalls++
	m.mu.Unlock()
	return m.StopErr
}

// Message builds a minimal single-part plain text message.
func Message(id, subject string, labels ...string) *gmail.Message {
	return &gmail.Message{
		Id:           id,
		ThreadId:     "t-" + id,
		LabelIds:     labels,
		Snippet:      subject,
		InternalDate: 1700000000000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "user@example.com"},
			},
			Body: &gmail.MessagePartBody{Data: "aGVsbG8gd29ybGQ"},
		},
	}
}
