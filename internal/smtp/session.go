package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
)

var (
	errInvalidRecipient = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Invalid recipient address",
	}
	errUnknownAccount = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Email account not found",
	}
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary error",
	}
)

// Session implements the go-smtp Session interface
type Session struct {
	backend *Backend
	remote  string
	from    string
	// account ids of accepted recipients
	accounts []string
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{backend: backend}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt accepts <emailAccountID>@<relay domain> for active accounts only
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	localPart, domainName, err := parseEmailAddress(to)
	if err != nil || !strings.EqualFold(domainName, s.backend.domain) {
		s.backend.secLogger.RelayRejected(s.remote, to, "foreign domain")
		return errInvalidRecipient
	}
	if err := validator.ValidateLocalPart(localPart); err != nil {
		s.backend.secLogger.RelayRejected(s.remote, to, "invalid local part")
		return errInvalidRecipient
	}

	account, err := s.backend.accounts.GetByID(context.Background(), localPart)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.backend.secLogger.RelayRejected(s.remote, to, "unknown account")
			return errUnknownAccount
		}
		s.backend.logger.Error("relay account lookup failed", slog.String("account_id", localPart), slog.Any("error", err))
		return errTemporary
	}
	if !account.IsActive {
		s.backend.secLogger.RelayRejected(s.remote, to, "inactive account")
		return errUnknownAccount
	}

	for _, id := range s.accounts {
		if id == account.ID {
			return nil
		}
	}
	s.accounts = append(s.accounts, account.ID)
	return nil
}

// Data parses the message and ingests it for every accepted recipient
func (s *Session) Data(r io.Reader) error {
	if len(s.accounts) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	parsed, err := ParseEmail(r)
	if err != nil {
		s.backend.logger.Error("failed to parse relayed email", slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	if parsed.SenderEmail == "" {
		parsed.SenderEmail = strings.Trim(s.from, "<>")
	}
	if parsed.MessageID == "" {
		parsed.MessageID = "relay-" + uuid.NewString()
		if parsed.ThreadID == "" {
			parsed.ThreadID = parsed.MessageID
		}
	}

	email := parsed.Inbound(s.backend.now())
	ctx := context.Background()

	failed := 0
	for _, accountID := range s.accounts {
		created, err := s.backend.ingester.IngestForAccount(ctx, accountID, email)
		if err != nil {
			failed++
			s.backend.logger.Error("failed to ingest relayed email",
				slog.String("account_id", accountID),
				slog.Any("error", err))
			continue
		}
		s.backend.logger.Info("relayed email processed",
			slog.String("account_id", accountID),
			slog.String("message_id", email.MessageID),
			slog.Bool("stored", created))
	}

	if failed == len(s.accounts) {
		return errTemporary
	}
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.accounts = nil
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// parseEmailAddress splits an address into lowercase local part and domain
func parseEmailAddress(address string) (localPart, domain string, err error) {
	address = strings.TrimSpace(strings.Trim(strings.TrimSpace(address), "<>"))

	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	localPart = strings.ToLower(parts[0])
	domain = strings.ToLower(parts[1])

	if localPart == "" || domain == "" {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	return localPart, domain, nil
}
