package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/emailaddr"
	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/events"
	"github.com/welldanyogia/coachhub-backend/internal/gmail"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/synclock"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
	"golang.org/x/oauth2"
)

// threadDetailMessages is how many messages a thread detail carries
const threadDetailMessages = 20

// GmailAPI is the subset of the Gmail client the sync engine uses
type GmailAPI interface {
	ListMessages(ctx context.Context, accessToken, query, pageToken string, max int) (*gmail.MessagePage, error)
	GetMessage(ctx context.Context, accessToken, id string) (*gmail.Message, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// EmailSyncConfig holds the remote fetch policy
type EmailSyncConfig struct {
	// ListLimit is the page size of the inbox listing
	ListLimit int
	// FetchLimit caps the full messages fetched per account and sync
	FetchLimit int
	// Lookback is how far back an account that never synced is read
	Lookback time.Duration
	// RunTimeout bounds one coach sync; the sync lock TTL must exceed it
	RunTimeout time.Duration
}

// SyncError reports a failure confined to one mailbox
type SyncError struct {
	Account string `json:"account"`
	Error   string `json:"error"`
}

// SyncResult summarizes one coach sync
type SyncResult struct {
	TotalProcessed    int         `json:"totalProcessed"`
	ClientEmailsFound int         `json:"clientEmailsFound"`
	Errors            []SyncError `json:"errors"`
	SyncedAt          time.Time   `json:"syncedAt"`
}

// EmailSyncService defines the Gmail ingestion and thread accessors
type EmailSyncService interface {
	SyncClientEmails(ctx context.Context, coachID string) (*SyncResult, error)
	AutoSyncAllCoaches(ctx context.Context) error
	IngestForAccount(ctx context.Context, accountID string, email models.InboundEmail) (bool, error)
	GetEmailThreads(ctx context.Context, coachID, status string, limit int) ([]models.EmailThread, error)
	GetEmailThread(ctx context.Context, coachID, threadID string) (*models.EmailThread, error)
	UpdateThreadStatus(ctx context.Context, coachID, threadID string, isRead bool) (*models.EmailThread, error)
	GetSyncStats(ctx context.Context, coachID string) (*models.SyncStats, error)
}

type emailSyncService struct {
	accounts  repository.EmailAccountRepository
	threads   repository.EmailThreadRepository
	messages  repository.EmailMessageRepository
	directory repository.DirectoryRepository
	gmail     GmailAPI
	locker    synclock.Locker
	notifier  Notifier
	publisher events.Publisher
	config    EmailSyncConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewEmailSyncService creates a new EmailSyncService
func NewEmailSyncService(
	accounts repository.EmailAccountRepository,
	threads repository.EmailThreadRepository,
	messages repository.EmailMessageRepository,
	directory repository.DirectoryRepository,
	gmailAPI GmailAPI,
	locker synclock.Locker,
	notifier Notifier,
	publisher events.Publisher,
	config EmailSyncConfig,
	logger *slog.Logger,
) EmailSyncService {
	// Set defaults
	if config.ListLimit <= 0 {
		config.ListLimit = 50
	}
	if config.FetchLimit <= 0 {
		config.FetchLimit = 20
	}
	if config.FetchLimit > config.ListLimit {
		config.FetchLimit = config.ListLimit
	}
	if config.Lookback <= 0 {
		config.Lookback = 7 * 24 * time.Hour
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = synclock.NewLocalLocker()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}

	return &emailSyncService{
		accounts:  accounts,
		threads:   threads,
		messages:  messages,
		directory: directory,
		gmail:     gmailAPI,
		locker:    locker,
		notifier:  notifier,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// accountSync carries the state of one mailbox during a sync
type accountSync struct {
	account   *models.EmailAccount
	refreshed bool

	fetched  int
	matched  int
	failures []error
	// newest sentAt among fetched messages
	newest time.Time
}

// SyncClientEmails polls every syncable Gmail account of the coach. Failures
// are confined to the account they happened in and reported in Errors.
func (s *emailSyncService) SyncClientEmails(ctx context.Context, coachID string) (*SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	release, err := s.locker.Acquire(ctx, coachID)
	if err != nil {
		return nil, err
	}
	defer release()

	coach, err := s.directory.GetCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListSyncable(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, apperrors.ErrNoEmailAccounts
	}

	own, err := s.ownAddresses(ctx, coach)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result := &SyncResult{Errors: []SyncError{}, SyncedAt: start}

	for i := range accounts {
		run := &accountSync{account: &accounts[i]}
		truncated, err := s.syncAccount(ctx, coach, own, run, start)

		result.TotalProcessed += run.fetched
		result.ClientEmailsFound += run.matched

		if err != nil {
			run.failures = append(run.failures, err)
		}
		for _, failure := range run.failures {
			result.Errors = append(result.Errors, SyncError{
				Account: run.account.EmailAddress,
				Error:   failure.Error(),
			})
		}
		if len(run.failures) > 0 {
			s.logger.Warn("email account sync failed",
				slog.String("coach_id", coachID),
				slog.String("account_id", run.account.ID),
				slog.Int("failures", len(run.failures)),
				slog.Any("error", run.failures[0]))
			continue
		}

		// A truncated window resumes after the newest message actually fetched
		watermark := start
		if truncated {
			watermark = run.newest
		}
		if err := s.accounts.UpdateLastSync(ctx, run.account.ID, watermark); err != nil {
			result.Errors = append(result.Errors, SyncError{Account: run.account.EmailAddress, Error: err.Error()})
		}
	}

	s.publish(ctx, events.SyncCompleted{
		CoachID:           coachID,
		TotalProcessed:    result.TotalProcessed,
		ClientEmailsFound: result.ClientEmailsFound,
		SyncedAt:          result.SyncedAt,
	})

	s.logger.Info("email sync completed",
		slog.String("coach_id", coachID),
		slog.Int("accounts", len(accounts)),
		slog.Int("total_processed", result.TotalProcessed),
		slog.Int("client_emails_found", result.ClientEmailsFound),
		slog.Int("errors", len(result.Errors)))

	return result, nil
}

// ownAddresses returns the coach's address and every connected mailbox address
func (s *emailSyncService) ownAddresses(ctx context.Context, coach *models.Coach) ([]string, error) {
	connected, err := s.accounts.ListActive(ctx, coach.ID)
	if err != nil {
		return nil, err
	}
	own := make([]string, 0, len(connected)+1)
	own = append(own, coach.Email)
	for _, account := range connected {
		own = append(own, account.EmailAddress)
	}
	return own, nil
}

// syncAccount lists the account's whole inbox window since its last sync and
// processes the oldest FetchLimit messages of it, oldest-first. It reports
// whether the window held more messages than could be fetched.
func (s *emailSyncService) syncAccount(ctx context.Context, coach *models.Coach, own []string, run *accountSync, start time.Time) (bool, error) {
	since := start.Add(-s.config.Lookback)
	if run.account.LastSyncAt != nil {
		since = *run.account.LastSyncAt
	}
	query := fmt.Sprintf("in:inbox after:%d", since.Unix())

	var refs []gmail.MessageRef
	pageToken := ""
	for {
		var page *gmail.MessagePage
		err := s.authorized(ctx, run, func(token string) error {
			var err error
			page, err = s.gmail.ListMessages(ctx, token, query, pageToken, s.config.ListLimit)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("list messages: %w", err)
		}
		refs = append(refs, page.Messages...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// The listing is newest-first: keep the oldest part of the window
	truncated := len(refs) > s.config.FetchLimit
	if truncated {
		refs = refs[len(refs)-s.config.FetchLimit:]
	}

	for i := len(refs) - 1; i >= 0; i-- {
		var msg *gmail.Message
		err := s.authorized(ctx, run, func(token string) error {
			var err error
			msg, err = s.gmail.GetMessage(ctx, token, refs[i].ID)
			return err
		})
		if err != nil {
			if errors.Is(err, gmail.ErrUnauthorized) || errors.Is(err, gmail.ErrRefreshUnavailable) || ctx.Err() != nil {
				return truncated, fmt.Errorf("get message %s: %w", refs[i].ID, err)
			}
			run.failures = append(run.failures, fmt.Errorf("get message %s: %w", refs[i].ID, err))
			continue
		}

		run.fetched++
		email := gmail.Normalize(msg, s.now())
		if email.SentAt.After(run.newest) {
			run.newest = email.SentAt
		}

		created, err := s.processInbound(ctx, coach, run.account, own, email)
		if err != nil {
			run.failures = append(run.failures, fmt.Errorf("process message %s: %w", email.MessageID, err))
			continue
		}
		if created {
			run.matched++
		}
	}

	return truncated, nil
}

// authorized runs call with the account's access token. On the first 401 of a
// sync the token is refreshed once and the call retried.
func (s *emailSyncService) authorized(ctx context.Context, run *accountSync, call func(token string) error) error {
	err := call(run.account.AccessToken)
	if err == nil || !errors.Is(err, gmail.ErrUnauthorized) || run.refreshed {
		return err
	}

	run.refreshed = true
	if err := s.refreshToken(ctx, run.account); err != nil {
		return err
	}
	return call(run.account.AccessToken)
}

// refreshToken exchanges the refresh token and stores the new access token
func (s *emailSyncService) refreshToken(ctx context.Context, account *models.EmailAccount) error {
	if account.RefreshToken == nil || *account.RefreshToken == "" {
		return gmail.ErrRefreshUnavailable
	}

	token, err := s.gmail.RefreshToken(ctx, *account.RefreshToken)
	if err != nil {
		return err
	}

	account.AccessToken = token.AccessToken
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		expiresAt = &expiry
		account.TokenExpiresAt = expiresAt
	}

	if err := s.accounts.UpdateTokens(ctx, account.ID, token.AccessToken, expiresAt); err != nil {
		s.logger.Error("failed to persist refreshed access token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.logger.Info("refreshed gmail access token", slog.String("account_id", account.ID))
	return nil
}

// processInbound classifies one normalized email and, when it comes from a
// client of the coach, stores it under its thread. It reports whether a new
// message row was created.
func (s *emailSyncService) processInbound(ctx context.Context, coach *models.Coach, account *models.EmailAccount, own []string, email models.InboundEmail) (bool, error) {
	if email.SenderEmail == "" || email.MessageID == "" {
		return false, nil
	}

	for _, address := range own {
		if emailaddr.Equal(address, email.SenderEmail) {
			s.logger.Debug("skipping coach-authored email", slog.String("message_id", email.MessageID))
			return false, nil
		}
	}

	client, err := s.directory.FindClientOfCoach(ctx, coach.ID, email.SenderEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	remoteThreadID := email.ThreadID
	if remoteThreadID == "" {
		remoteThreadID = email.MessageID
	}

	thread, _, err := s.threads.GetOrCreate(ctx, &models.EmailThread{
		CoachID:        coach.ID,
		ClientID:       client.ID,
		EmailAccountID: &account.ID,
		ThreadID:       remoteThreadID,
		Subject:        validator.SanitizeString(email.Subject, 998),
		Status:         models.ThreadStatusActive,
		IsRead:         false,
		Priority:       models.ThreadPriorityNormal,
		MessageCount:   0,
		LastMessageAt:  s.now(),
	})
	if err != nil {
		return false, err
	}

	stored, created, err := s.messages.GetOrCreate(ctx, &models.EmailMessage{
		ThreadID:          thread.ID,
		ProviderMessageID: email.MessageID,
		From:              email.SenderEmail,
		To:                email.To,
		Subject:           email.Subject,
		Text:              email.BodyText,
		SentAt:            email.SentAt,
		ReceivedAt:        email.ReceivedAt,
	})
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	received := events.ClientEmailReceived{
		CoachID:    coach.ID,
		ClientID:   client.ID,
		ThreadID:   thread.ID,
		EmailID:    stored.ID,
		Subject:    stored.Subject,
		ReceivedAt: stored.ReceivedAt,
	}
	s.publish(ctx, received)
	s.notifier.Notify([]string{models.ParticipantKey(models.ParticipantCoach, coach.ID)}, websocket.MessageTypeEmailReceived, received)

	return true, nil
}

// IngestForAccount runs an email delivered outside the Gmail poll, such as
// through the SMTP relay, through the same classification pipeline.
func (s *emailSyncService) IngestForAccount(ctx context.Context, accountID string, email models.InboundEmail) (bool, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !account.IsActive {
		return false, apperrors.BadRequest("email account is not active")
	}

	coach, err := s.directory.GetCoach(ctx, account.UserID)
	if err != nil {
		return false, err
	}

	own, err := s.ownAddresses(ctx, coach)
	if err != nil {
		return false, err
	}

	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = s.now()
	}
	if email.SentAt.IsZero() {
		email.SentAt = email.ReceivedAt
	}
	return s.processInbound(ctx, coach, account, own, email)
}

// AutoSyncAllCoaches syncs every active coach in turn. A failing coach is
// logged and does not stop the sweep.
func (s *emailSyncService) AutoSyncAllCoaches(ctx context.Context) error {
	coaches, err := s.directory.ListActiveCoaches(ctx)
	if err != nil {
		return err
	}

	synced := 0
	for _, coach := range coaches {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := s.SyncClientEmails(ctx, coach.ID)
		switch {
		case err == nil:
			synced++
		case errors.Is(err, apperrors.ErrNoEmailAccounts):
			// nothing connected
		case errors.Is(err, apperrors.ErrSyncInProgress):
			s.logger.Info("skipping coach with sync in progress", slog.String("coach_id", coach.ID))
		default:
			s.logger.Error("auto sync failed for coach",
				slog.String("coach_id", coach.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("auto sync sweep finished",
		slog.Int("coaches", len(coaches)),
		slog.Int("synced", synced))
	return nil
}

// GetEmailThreads lists the coach's threads, most recent activity first
func (s *emailSyncService) GetEmailThreads(ctx context.Context, coachID, status string, limit int) ([]models.EmailThread, error) {
	switch status {
	case "", models.ThreadStatusActive, models.ThreadStatusArchived:
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown thread status %q", status))
	}

	limit, _ = validator.ValidatePagination(limit, 0)
	return s.threads.ListByCoach(ctx, coachID, status, limit)
}

// GetEmailThread returns a thread with its client and newest messages
func (s *emailSyncService) GetEmailThread(ctx context.Context, coachID, threadID string) (*models.EmailThread, error) {
	thread, err := s.threads.GetForCoach(ctx, threadID, coachID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByThread(ctx, thread.ID, threadDetailMessages)
	if err != nil {
		return nil, err
	}
	thread.Messages = messages
	return thread, nil
}

// UpdateThreadStatus sets the read flag of a coach's thread
func (s *emailSyncService) UpdateThreadStatus(ctx context.Context, coachID, threadID string, isRead bool) (*models.EmailThread, error) {
	if err := s.threads.SetRead(ctx, threadID, coachID, isRead); err != nil {
		return nil, err
	}
	return s.threads.GetForCoach(ctx, threadID, coachID)
}

// GetSyncStats summarizes unread and new threads and the latest sync time
func (s *emailSyncService) GetSyncStats(ctx context.Context, coachID string) (*models.SyncStats, error) {
	unread, err := s.threads.CountUnread(ctx, coachID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.threads.CountCreatedSince(ctx, coachID, startOfDay)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListActive(ctx, coachID)
	if err != nil {
		return nil, err
	}

	stats := &models.SyncStats{UnreadThreads: unread, NewThreadsToday: today}
	for _, account := range accounts {
		if account.LastSyncAt != nil && (stats.LastSyncAt == nil || account.LastSyncAt.After(*stats.LastSyncAt)) {
			last := *account.LastSyncAt
			stats.LastSyncAt = &last
		}
	}
	return stats, nil
}

// publish hands an event to the bus, even after the sync deadline passed
func (s *emailSyncService) publish(ctx context.Context, event events.Event) {
	publishEvent(context.WithoutCancel(ctx), s.publisher, s.logger, event)
}
