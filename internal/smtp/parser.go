package smtp

import (
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/coachhub-backend/internal/emailaddr"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

// ParsedEmail is a relayed message reduced to what sender matching needs
type ParsedEmail struct {
	MessageID   string
	ThreadID    string
	SenderEmail string
	SenderName  string
	To          string
	Subject     string
	BodyText    string
	SentAt      time.Time
}

// ParseEmail parses a raw RFC 5322 message. enmime derives Text from the
// HTML part when the message has no plain text part.
func ParseEmail(r io.Reader) (*ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	from := emailaddr.Parse(env.GetHeader("From"))
	parsed := &ParsedEmail{
		MessageID:   messageID(env.GetHeader("Message-ID")),
		SenderEmail: from.Email,
		SenderName:  from.Name,
		To:          env.GetHeader("To"),
		Subject:     env.GetHeader("Subject"),
		BodyText:    strings.TrimSpace(env.Text),
	}
	parsed.ThreadID = threadID(env.GetHeader("References"), env.GetHeader("In-Reply-To"), parsed.MessageID)

	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			parsed.SentAt = t.UTC()
		}
	}

	return parsed, nil
}

// Inbound converts the parsed message for the ingestion pipeline
func (p *ParsedEmail) Inbound(receivedAt time.Time) models.InboundEmail {
	return models.InboundEmail{
		MessageID:   p.MessageID,
		ThreadID:    p.ThreadID,
		SenderEmail: p.SenderEmail,
		SenderName:  p.SenderName,
		To:          p.To,
		Subject:     p.Subject,
		BodyText:    p.BodyText,
		SentAt:      p.SentAt,
		ReceivedAt:  receivedAt,
	}
}

// threadID picks the conversation root: the first References id, then
// In-Reply-To, then the message's own id
func threadID(references, inReplyTo, own string) string {
	if ids := strings.Fields(references); len(ids) > 0 {
		if id := messageID(ids[0]); id != "" {
			return id
		}
	}
	if id := messageID(inReplyTo); id != "" {
		return id
	}
	return own
}

// messageID strips the angle brackets of a message id
func messageID(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	return strings.TrimSpace(raw)
}
