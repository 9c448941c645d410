// Package middleware provides HTTP middleware for the CoachHub API.
package middleware

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/response"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/models"
)

const requesterKey = "requester"

// Claims is the bearer token payload
type Claims struct {
	Type models.ParticipantType `json:"typ"`
	Name string                 `json:"name"`
	jwt.RegisteredClaims
}

// Requester is the authenticated caller of a request
type Requester struct {
	models.Participant
	Name string
}

// JWTAuth validates an HS256 bearer token and stores the Requester on the
// context. The token may also come from the token query parameter, which
// browsers need for websocket upgrades.
func JWTAuth(secret string, secLogger *logger.SecurityLogger) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				secLogger.AuthFailure(c.RealIP(), c.Path(), "missing token")
				return response.Unauthorized(c, "missing authorization token")
			}
			if len(key) == 0 {
				secLogger.AuthFailure(c.RealIP(), c.Path(), "jwt secret not configured")
				return response.Unauthorized(c, "authentication is not configured")
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil {
				reason := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "token expired"
				}
				secLogger.AuthFailure(c.RealIP(), c.Path(), reason)
				return response.Unauthorized(c, reason)
			}

			if claims.Subject == "" || !claims.Type.Valid() {
				secLogger.AuthFailure(c.RealIP(), c.Path(), "incomplete claims")
				return response.Unauthorized(c, "invalid token")
			}

			c.Set(requesterKey, Requester{
				Participant: models.Participant{ID: claims.Subject, Type: claims.Type},
				Name:        claims.Name,
			})
			return next(c)
		}
	}
}

// RequireType rejects callers of any other participant category.
// secLogger may be nil.
func RequireType(secLogger *logger.SecurityLogger, types ...models.ParticipantType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requester, ok := GetRequester(c)
			if !ok {
				return response.Unauthorized(c, "missing authorization token")
			}
			for _, t := range types {
				if requester.Type == t {
					return next(c)
				}
			}
			if secLogger != nil {
				secLogger.Forbidden(c.RealIP(), c.Path(), requester.Key(), "participant type not allowed")
			}
			return response.Forbidden(c, "this endpoint is not available for "+string(requester.Type)+" accounts")
		}
	}
}

// GetRequester returns the caller stored by JWTAuth
func GetRequester(c echo.Context) (Requester, bool) {
	requester, ok := c.Get(requesterKey).(Requester)
	return requester, ok
}

// SetRequester stores a caller on the context
func SetRequester(c echo.Context, requester Requester) {
	c.Set(requesterKey, requester)
}

func bearerToken(c echo.Context) string {
	header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(c.QueryParam("token"))
}
