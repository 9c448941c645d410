package websocket

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHub_NotifyReachesOnlyAddressedParticipants(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	coach := NewClient(hub, nil, "coach:123", nil, nil)
	coachTab := NewClient(hub, nil, "coach:123", nil, nil)
	admin := NewClient(hub, nil, "admin:9", nil, nil)
	hub.Register(coach)
	hub.Register(coachTab)
	hub.Register(admin)
	waitFor(t, func() bool { return hub.Connections("coach:123") == 2 && hub.Connections("admin:9") == 1 })

	hub.Notify([]string{"coach:123"}, MessageTypeNewMessage, map[string]string{"id": "m1"})

	msg := readMessage(t, coach)
	assert.Equal(t, MessageTypeNewMessage, msg.Type)
	assert.Equal(t, map[string]interface{}{"id": "m1"}, msg.Data)
	assert.Equal(t, MessageTypeNewMessage, readMessage(t, coachTab).Type)

	select {
	case <-admin.send:
		t.Fatal("admin should not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := NewClient(hub, nil, "client:7", nil, nil)
	hub.Register(client)
	waitFor(t, func() bool { return hub.Connections("client:7") == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.Connections("client:7") == 0 })

	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_NotifyWithoutListenersDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)

	// Run is not started: the queue fills up and later events are dropped
	for i := 0; i < 300; i++ {
		hub.Notify([]string{"coach:1"}, MessageTypeNewMessage, i)
	}
	hub.Notify(nil, MessageTypeNewMessage, "ignored")

	assert.Len(t, hub.broadcast, cap(hub.broadcast))
}

func TestNewSecureUpgrader(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{"  http://localhost:3000 ", "", "http://example.com"}, nil)

	tests := []struct {
		origin   string
		expected bool
	}{
		{"http://localhost:3000", true},
		{"http://example.com", true},
		{"", true},
		{"http://malicious.com", false},
		{"HTTP://LOCALHOST:3000", false},
		{"http://localhost:3000/some/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, upgrader.CheckOrigin(req))
		})
	}

	assert.Equal(t, 1024, upgrader.ReadBufferSize)
	assert.Equal(t, 1024, upgrader.WriteBufferSize)
}

func TestNewSecureUpgrader_DefaultsToLocalhost(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{",", " "}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, upgrader.CheckOrigin(req))
}

func TestNewSecureUpgrader_LogsRejectedOrigin(t *testing.T) {
	var buf bytes.Buffer
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))
	upgrader := NewSecureUpgrader([]string{"http://localhost:3000"}, secLogger)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("Origin", "http://evil.com")

	assert.False(t, upgrader.CheckOrigin(req))
	assert.Contains(t, buf.String(), "invalid_origin")
	assert.Contains(t, buf.String(), "10.0.0.1")
}
