package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

const testSecret = "test-secret-with-at-least-32-characters"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(subject string, participantType models.ParticipantType) Claims {
	return Claims{
		Type: participantType,
		Name: "Coach Carter",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func runAuth(t *testing.T, req *http.Request, secret string) (*httptest.ResponseRecorder, *Requester, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&logs, nil))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/messaging/conversations")

	var seen *Requester
	handler := JWTAuth(secret, secLogger)(func(c echo.Context) error {
		requester, ok := GetRequester(c)
		require.True(t, ok)
		seen = &requester
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, seen, &logs
}

func TestJWTAuth_ValidBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/messaging/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("coach123", models.ParticipantCoach)))

	rec, requester, _ := runAuth(t, req, testSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, requester)
	assert.Equal(t, "coach123", requester.ID)
	assert.Equal(t, models.ParticipantCoach, requester.Type)
	assert.Equal(t, "Coach Carter", requester.Name)
	assert.Equal(t, "coach:coach123", requester.Key())
}

func TestJWTAuth_QueryToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("admin9", models.ParticipantAdmin))
	req := httptest.NewRequest(http.MethodGet, "/api/messaging/ws?token="+token, nil)

	rec, requester, _ := runAuth(t, req, testSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, requester)
	assert.Equal(t, "admin:admin9", requester.Key())
}

func TestJWTAuth_Rejections(t *testing.T) {
	expired := validClaims("coach123", models.ParticipantCoach)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("coach123", models.ParticipantCoach)
	noExpiry.ExpiresAt = nil

	unknownType := validClaims("coach123", "guest")
	noSubject := validClaims("", models.ParticipantClient)

	tests := []struct {
		name       string
		header     string
		secret     string
		wantReason string
	}{
		{"missing header", "", testSecret, "missing token"},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-another-secret-xx", jwt.SigningMethodHS256, validClaims("c", models.ParticipantCoach)), testSecret, "invalid token"},
		{"wrong algorithm", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS512, validClaims("c", models.ParticipantCoach)), testSecret, "invalid token"},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, expired), testSecret, "token expired"},
		{"missing expiry", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, noExpiry), testSecret, "invalid token"},
		{"unknown participant type", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, unknownType), testSecret, "incomplete claims"},
		{"missing subject", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, noSubject), testSecret, "incomplete claims"},
		{"garbage", "Bearer not-a-jwt", testSecret, "invalid token"},
		{"secret not configured", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("c", models.ParticipantCoach)), "", "jwt secret not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/messaging/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec, requester, logs := runAuth(t, req, tt.secret)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, requester)
			assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			assert.Contains(t, logs.String(), tt.wantReason)
			assert.NotContains(t, logs.String(), "eyJ", "tokens must not be logged")
		})
	}
}

func TestRequireType(t *testing.T) {
	tests := []struct {
		name       string
		requester  *Requester
		wantStatus int
	}{
		{"coach allowed", &Requester{Participant: models.Participant{ID: "c1", Type: models.ParticipantCoach}}, http.StatusOK},
		{"client forbidden", &Requester{Participant: models.Participant{ID: "u1", Type: models.ParticipantClient}}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/email-sync/sync", nil), rec)
			if tt.requester != nil {
				SetRequester(c, *tt.requester)
			}

			var logs bytes.Buffer
			secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&logs, nil))
			handler := RequireType(secLogger, models.ParticipantCoach)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, logs.String(), `"event_type":"forbidden"`)
				assert.Contains(t, logs.String(), "client:u1")
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}
