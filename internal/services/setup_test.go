package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/coachhub-backend/internal/database"
	"github.com/welldanyogia/coachhub-backend/internal/events"
	"github.com/welldanyogia/coachhub-backend/internal/gmail"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated in-memory SQLite database on a single connection
func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func ptr[T any](v T) *T {
	return &v
}

// fixedClock returns a clock that advances one second per call
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type notification struct {
	keys      []string
	eventType websocket.MessageType
	payload   interface{}
}

// recordingNotifier keeps realtime pushes in memory
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(keys []string, eventType websocket.MessageType, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{keys: keys, eventType: eventType, payload: payload})
}

func (n *recordingNotifier) last() notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return notification{}
	}
	return n.sent[len(n.sent)-1]
}

// fakeGmail serves a fixed mailbox per access token
type fakeGmail struct {
	mu sync.Mutex

	// messages in listing order (newest first)
	messages []*gmail.Message
	// validToken is the only token accepted
	validToken string
	// refreshed is handed out by RefreshToken
	refreshed  string
	refreshErr error
	// failGet makes GetMessage fail for these ids
	failGet map[string]error

	// listHook runs before every listing call
	listHook func(ctx context.Context) error

	queries      []string
	pageTokens   []string
	fetched      []string
	refreshCalls int
}

func (f *fakeGmail) ListMessages(ctx context.Context, accessToken, query, pageToken string, max int) (*gmail.MessagePage, error) {
	f.mu.Lock()
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if accessToken != f.validToken {
		return nil, &gmail.APIError{StatusCode: 401, Body: "invalid credentials"}
	}
	f.queries = append(f.queries, query)
	f.pageTokens = append(f.pageTokens, pageToken)

	var after int64
	for _, term := range strings.Fields(query) {
		if v, ok := strings.CutPrefix(term, "after:"); ok {
			after, _ = strconv.ParseInt(v, 10, 64)
		}
	}

	var window []gmail.MessageRef
	for _, m := range f.messages {
		ms, _ := strconv.ParseInt(m.InternalDate, 10, 64)
		if ms/1000 < after {
			continue
		}
		window = append(window, gmail.MessageRef{ID: m.ID, ThreadID: m.ThreadID})
	}

	// page tokens are offsets into the window
	offset, _ := strconv.Atoi(pageToken)
	end := min(offset+max, len(window))
	page := &gmail.MessagePage{Messages: []gmail.MessageRef{}}
	if offset < end {
		page.Messages = append(page.Messages, window[offset:end]...)
	}
	if end < len(window) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeGmail) GetMessage(ctx context.Context, accessToken, id string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if accessToken != f.validToken {
		return nil, &gmail.APIError{StatusCode: 401, Body: "invalid credentials"}
	}
	if err := f.failGet[id]; err != nil {
		return nil, err
	}
	for _, m := range f.messages {
		if m.ID == id {
			f.fetched = append(f.fetched, id)
			return m, nil
		}
	}
	return nil, &gmail.APIError{StatusCode: 404, Body: "not found"}
}

func (f *fakeGmail) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshed == "" {
		return nil, errors.New("refresh rejected")
	}
	f.validToken = f.refreshed
	return &oauth2.Token{AccessToken: f.refreshed, Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

// gmailMessage builds a remote message from the given sender
func gmailMessage(id, threadID, from, subject string, sentAt time.Time) *gmail.Message {
	return &gmail.Message{
		ID:           id,
		ThreadID:     threadID,
		Snippet:      "snippet of " + id,
		InternalDate: strconv.FormatInt(sentAt.UnixMilli(), 10),
		Payload: gmail.Part{
			MimeType: "text/plain",
			Headers: []gmail.Header{
				{Name: "From", Value: from},
				{Name: "To", Value: "coach@gmail.com"},
				{Name: "Subject", Value: subject},
			},
		},
	}
}

func msgID(i int) string {
	return fmt.Sprintf("m%02d", i)
}
