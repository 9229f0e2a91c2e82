package gmail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"net/mail"
	"regexp"
	"strings"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/emersion/go-message/charset"
	"google.golang.org/api/gmail/v1"
)

var fromPattern = regexp.MustCompile(`^(.*)<(.*)>`)

// NormalizeMessage converts a full-format Gmail message into the local record.
// It returns nil when the message lacks an id or thread id.
func NormalizeMessage(msg *gmail.Message, appUserID, gmailAccountID string) *emaildomain.Message {
	if msg == nil || msg.Id == "" || msg.ThreadId == "" {
		return nil
	}

	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	fromName, fromAddress := parseFrom(getHeader(headers, "From"))
	plain, html := extractBodies(msg.Payload)

	m := &emaildomain.Message{
		AppUserID:      appUserID,
		GmailAccountID: gmailAccountID,
		GmailMessageID: msg.Id,
		GmailThreadID:  msg.ThreadId,
		Subject:        decodeHeader(getHeader(headers, "Subject")),
		FromAddress:    fromAddress,
		FromName:       decodeHeader(fromName),
		ToAddresses:    splitAddresses(getHeader(headers, "To")),
		ReceivedAt:     time.UnixMilli(msg.InternalDate).UTC(),
		Snippet:        msg.Snippet,
		BodyPlainText:  plain,
		BodyHTML:       html,
		HasAttachments: hasAttachment(msg.Payload),
		LabelIDs:       append(emaildomain.StringArray{}, msg.LabelIds...),
	}
	if sent, err := mail.ParseDate(getHeader(headers, "Date")); err == nil {
		sent = sent.UTC()
		m.SentAt = &sent
	}
	m.DeriveFlags()

	return m
}

// parseFrom splits `"Name" <addr>`. Without an angle address the raw header is
// used for both parts.
func parseFrom(from string) (name, address string) {
	match := fromPattern.FindStringSubmatch(from)
	if match == nil {
		return from, from
	}
	name = strings.ReplaceAll(strings.TrimSpace(match[1]), `"`, "")
	address = strings.TrimSpace(match[2])
	return name, address
}

func splitAddresses(to string) emaildomain.StringArray {
	out := emaildomain.StringArray{}
	if to == "" {
		return out
	}
	for _, addr := range strings.Split(to, ",") {
		out = append(out, strings.TrimSpace(addr))
	}
	return out
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeHeader resolves RFC 2047 encoded words left in a header value.
func decodeHeader(v string) string {
	if !strings.Contains(v, "=?") {
		return v
	}
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// extractBodies returns the first text/plain and text/html bodies. A single-part
// payload lands in html only when its mime type says so.
func extractBodies(payload *gmail.MessagePart) (plain, html string) {
	if payload == nil {
		return "", ""
	}

	if len(payload.Parts) == 0 {
		body := decodePart(payload)
		if payload.MimeType == "text/html" {
			return "", body
		}
		return body, ""
	}

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename == "" {
				switch part.MimeType {
				case "text/plain":
					if plain == "" {
						plain = decodePart(part)
					}
				case "text/html":
					if html == "" {
						html = decodePart(part)
					}
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	return plain, html
}

func decodePart(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := decodeBase64URL(part.Body.Data)
	if err != nil {
		return ""
	}
	return toUTF8(data, partCharset(part))
}

func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func partCharset(part *gmail.MessagePart) string {
	_, params, err := mime.ParseMediaType(getHeader(part.Headers, "Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func toUTF8(data []byte, cs string) string {
	switch cs {
	case "", "utf-8", "utf8", "us-ascii":
		return string(data)
	}
	r, err := charset.Reader(cs, bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(converted)
}

func hasAttachment(payload *gmail.MessagePart) bool {
	if payload == nil {
		return false
	}
	if payload.Filename != "" {
		return true
	}
	for _, part := range payload.Parts {
		if hasAttachment(part) {
			return true
		}
	}
	return false
}
