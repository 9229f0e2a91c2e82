package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestNormalizeMessageRejectsMissingIDs(t *testing.T) {
	tests := []struct {
		name string
		msg  *gmail.Message
	}{
		{"nil", nil},
		{"no id", &gmail.Message{ThreadId: "t1"}},
		{"no thread", &gmail.Message{Id: "m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMessage(tt.msg, "u1", "a1"); got != nil {
				t.Errorf("expected nil, got %+v", got)
			}
		})
	}
}

func TestNormalizeMessageMultipart(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		Snippet:      "Hello there",
		InternalDate: 1700000000000,
		LabelIds:     []string{"INBOX", "UNREAD", "CATEGORY_PERSONAL", "IMPORTANT"},
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: `"Jane Doe" <jane@example.com>`},
				{Name: "To", Value: "a@example.com, b@example.com"},
				{Name: "Subject", Value: "Quarterly report"},
				{Name: "Date", Value: "Tue, 14 Nov 2023 22:13:20 +0000"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("plain body")}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html body</p>")}},
					},
				},
				{MimeType: "application/pdf", Filename: "report.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}},
			},
		},
	}

	m := NormalizeMessage(msg, "u1", "a1")
	if m == nil {
		t.Fatal("expected message")
	}

	if m.FromName != "Jane Doe" || m.FromAddress != "jane@example.com" {
		t.Errorf("from = %q <%q>", m.FromName, m.FromAddress)
	}
	if len(m.ToAddresses) != 2 || m.ToAddresses[1] != "b@example.com" {
		t.Errorf("to = %v", m.ToAddresses)
	}
	if m.BodyPlainText != "plain body" || m.BodyHTML != "<p>html body</p>" {
		t.Errorf("bodies = %q / %q", m.BodyPlainText, m.BodyHTML)
	}
	if !m.HasAttachments {
		t.Error("expected attachment")
	}
	if !m.IsUnread || m.IsStarred || !m.IsImportant {
		t.Errorf("flags = unread:%v starred:%v important:%v", m.IsUnread, m.IsStarred, m.IsImportant)
	}
	if m.CategoryLabelID != "CATEGORY_PERSONAL" {
		t.Errorf("category = %q", m.CategoryLabelID)
	}
	if !m.ReceivedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("received = %v", m.ReceivedAt)
	}
	if m.SentAt == nil || m.SentAt.Unix() != 1700000000 {
		t.Errorf("sent = %v", m.SentAt)
	}
	if m.AppUserID != "u1" || m.GmailAccountID != "a1" || m.GmailMessageID != "m1" || m.GmailThreadID != "t1" {
		t.Errorf("ids not copied: %+v", m)
	}
}

func TestNormalizeMessageHasAttachments(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    bool
	}{
		{"single part file", &gmail.MessagePart{MimeType: "application/pdf", Filename: "invoice.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}}, true},
		{"single part text", &gmail.MessagePart{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("hi")}}, false},
		{"nested file", &gmail.MessagePart{MimeType: "multipart/mixed", Parts: []*gmail.MessagePart{
			{MimeType: "multipart/related", Parts: []*gmail.MessagePart{{MimeType: "image/png", Filename: "logo.png"}}},
		}}, true},
		{"no payload", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NormalizeMessage(&gmail.Message{Id: "m1", ThreadId: "t1", Payload: tt.payload}, "u1", "a1")
			if m.HasAttachments != tt.want {
				t.Errorf("HasAttachments = %v, want %v", m.HasAttachments, tt.want)
			}
		})
	}
}

func TestNormalizeMessageSinglePart(t *testing.T) {
	tests := []struct {
		name      string
		mimeType  string
		data      string
		wantPlain string
		wantHTML  string
	}{
		{"plain", "text/plain", b64("just text"), "just text", ""},
		{"html", "text/html", b64("<b>hi</b>"), "", "<b>hi</b>"},
		{"unpadded base64url", "text/plain", base64.RawURLEncoding.EncodeToString([]byte("ab?>")), "ab?>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &gmail.Message{
				Id:       "m1",
				ThreadId: "t1",
				Payload: &gmail.MessagePart{
					MimeType: tt.mimeType,
					Body:     &gmail.MessagePartBody{Data: tt.data},
				},
			}
			m := NormalizeMessage(msg, "u1", "a1")
			if m.BodyPlainText != tt.wantPlain || m.BodyHTML != tt.wantHTML {
				t.Errorf("bodies = %q / %q", m.BodyPlainText, m.BodyHTML)
			}
			if m.HasAttachments {
				t.Error("single part has no attachments")
			}
		})
	}
}

func TestParseFrom(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantAddr string
	}{
		{`"Jane Doe" <jane@example.com>`, "Jane Doe", "jane@example.com"},
		{`Bob <bob@example.com>`, "Bob", "bob@example.com"},
		{`<noreply@example.com>`, "", "noreply@example.com"},
		{`plain@example.com`, "plain@example.com", "plain@example.com"},
		{``, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, addr := parseFrom(tt.in)
			if name != tt.wantName || addr != tt.wantAddr {
				t.Errorf("parseFrom(%q) = %q, %q", tt.in, name, addr)
			}
		})
	}
}

func TestNormalizeMessageCharset(t *testing.T) {
	// "café" in ISO-8859-1
	latin1 := string([]byte{'c', 'a', 'f', 0xe9})
	msg := &gmail.Message{
		Id:       "m1",
		ThreadId: "t1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Headers:  []*gmail.MessagePartHeader{{Name: "Content-Type", Value: `text/plain; charset="ISO-8859-1"`}},
					Body:     &gmail.MessagePartBody{Data: b64(latin1)},
				},
			},
		},
	}

	m := NormalizeMessage(msg, "u1", "a1")
	if m.BodyPlainText != "café" {
		t.Errorf("body = %q, want café", m.BodyPlainText)
	}
}

func TestDecodeHeader(t *testing.T) {
	if got := decodeHeader("=?UTF-8?B?SGVsbG8=?="); got != "Hello" {
		t.Errorf("decodeHeader = %q", got)
	}
	if got := decodeHeader("Plain subject"); got != "Plain subject" {
		t.Errorf("decodeHeader = %q", got)
	}
}
