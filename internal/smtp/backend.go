package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

// Security limits
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients  = 20
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
)

// AccountLookup resolves the mailbox a relay address points at
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
}

// Ingester runs a relayed email through sender matching and storage
type Ingester interface {
	IngestForAccount(ctx context.Context, accountID string, email models.InboundEmail) (bool, error)
}

// Backend implements the go-smtp Backend interface for the relay
type Backend struct {
	accounts  AccountLookup
	ingester  Ingester
	domain    string
	logger    *slog.Logger
	secLogger *logger.SecurityLogger
	now       func() time.Time
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Accounts AccountLookup
	Ingester Ingester
	// Domain is the relay domain; recipients look like <emailAccountID>@Domain
	Domain    string
	Logger    *slog.Logger
	SecLogger *logger.SecurityLogger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	secLogger := cfg.SecLogger
	if secLogger == nil {
		secLogger = logger.NewSecurityLoggerWithHandler(log.Handler())
	}
	return &Backend{
		accounts:  cfg.Accounts,
		ingester:  cfg.Ingester,
		domain:    cfg.Domain,
		logger:    log,
		secLogger: secLogger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := c.Conn().RemoteAddr().String()
	b.logger.Debug("new SMTP relay connection", slog.String("remote_addr", remote))
	session := NewSession(b)
	session.remote = remote
	return session, nil
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TLSConfig      *tls.Config
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	s.MaxMessageBytes = DefaultMaxMessageSize
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	}

	s.MaxRecipients = DefaultMaxRecipients
	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	}

	s.ReadTimeout = DefaultReadTimeout
	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	}

	s.WriteTimeout = DefaultWriteTimeout
	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	}

	// The relay only receives; no AUTH is offered
	s.AllowInsecureAuth = false

	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	// Set max line length to prevent buffer overflow attacks
	s.MaxLineLength = DefaultMaxLineLength

	return s
}
