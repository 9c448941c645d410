package gmail

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/emailaddr"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

// Normalize converts a Gmail message into the shape used for sender matching.
// The body prefers the top-level payload data, then the first text/plain part,
// then the snippet. now becomes ReceivedAt and stands in for a missing internalDate.
func Normalize(msg *Message, now time.Time) models.InboundEmail {
	from := emailaddr.Parse(header(msg.Payload.Headers, "From"))

	sentAt := now
	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		sentAt = time.UnixMilli(ms).UTC()
	}

	return models.InboundEmail{
		MessageID:   msg.ID,
		ThreadID:    msg.ThreadID,
		SenderEmail: from.Email,
		SenderName:  from.Name,
		To:          header(msg.Payload.Headers, "To"),
		Subject:     header(msg.Payload.Headers, "Subject"),
		BodyText:    bodyText(msg),
		SentAt:      sentAt,
		ReceivedAt:  now,
	}
}

func header(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func bodyText(msg *Message) string {
	if text, ok := decode(msg.Payload.Body.Data); ok && text != "" {
		return text
	}
	if text, ok := firstPlainText(msg.Payload.Parts); ok {
		return text
	}
	return msg.Snippet
}

func firstPlainText(parts []Part) (string, bool) {
	for _, p := range parts {
		if strings.HasPrefix(strings.ToLower(p.MimeType), "text/plain") && p.Body.Data != "" {
			if text, ok := decode(p.Body.Data); ok {
				return text, true
			}
		}
		if text, ok := firstPlainText(p.Parts); ok {
			return text, true
		}
	}
	return "", false
}

// decode handles the URL-safe base64 Gmail uses, padded or not
func decode(data string) (string, bool) {
	if data == "" {
		return "", false
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(data); err == nil {
			return string(b), true
		}
	}
	return "", false
}
