package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const userIDKey = "userID"

// RequireToken rejects requests without a valid "Authorization: Bearer <token>" header
// and stores the user id of accepted requests in the echo context.
func RequireToken(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "No token", "code": "unauthorized"})
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token", "code": "unauthorized"})
			}

			userID, err := issuer.Verify(strings.TrimSpace(token))
			if err != nil {
				log.Debug().Err(err).Str("path", ctx.Path()).Msg("RequireToken: rejected token")
				return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token", "code": "unauthorized"})
			}

			ctx.Set(userIDKey, userID)
			return next(ctx)
		}
	}
}

// UserID returns the user id stored by RequireToken.
func UserID(ctx echo.Context) string {
	id, _ := ctx.Get(userIDKey).(string)
	return id
}
