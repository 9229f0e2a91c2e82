package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/goccy/go-json"
	"github.com/jaytaylor/html2text"
)

const (
	bodyBudget       = 3000
	minPlainTextSize = 20
)

// EmailInput is one message as presented to the model.
type EmailInput struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Preprocess reduces a message to a bounded plain-text description.
func Preprocess(m *emaildomain.Message) EmailInput {
	subject := m.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	labels := m.LabelIDs
	if labels == nil {
		labels = emaildomain.StringArray{}
	}
	labelJSON, _ := json.Marshal([]string(labels))

	parts := []string{
		"Subject: " + subject,
		fmt.Sprintf("From: %s <%s>", m.FromName, m.FromAddress),
		"Snippet: " + m.Snippet,
		"Body: " + truncate(collapseSpace(bodyText(m)), bodyBudget),
		"reference_labels: " + string(labelJSON),
	}
	return EmailInput{ID: m.ID, Content: strings.Join(parts, "\n---\n")}
}

func bodyText(m *emaildomain.Message) string {
	plain := strings.TrimSpace(m.BodyPlainText)
	if utf8.RuneCountInString(plain) > minPlainTextSize || m.BodyHTML == "" {
		return plain
	}
	text, err := html2text.FromString(m.BodyHTML, html2text.Options{OmitLinks: true})
	if err != nil {
		return plain
	}
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
