package middleware

import (
	"digital-shop/internal/cart"
	"digital-shop/internal/logkey"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SessionCookie = "shop_session"

	cartKey      = "cart"
	sessionIDKey = "session_id"
)

// SessionMiddleware loads the session cart before the handler and saves it
// afterwards when the handler changed it.
func SessionMiddleware(store cart.Store, ttl time.Duration, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID := ""
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := c.Request().Context()
			sessionCart, err := store.Load(ctx, sessionID)
			if err != nil {
				slog.ErrorContext(ctx, "load cart failed",
					slog.String(logkey.SessionID, sessionID),
					slog.String(logkey.Error, err.Error()))
				return echo.NewHTTPError(http.StatusServiceUnavailable, "cart unavailable")
			}

			c.Set(sessionIDKey, sessionID)
			c.Set(cartKey, sessionCart)

			handlerErr := next(c)

			// the response is already written, a failed save can only be logged
			if sessionCart.Modified() {
				if err := store.Save(ctx, sessionID, sessionCart); err != nil {
					slog.ErrorContext(ctx, "save cart failed",
						slog.String(logkey.SessionID, sessionID),
						slog.String(logkey.Error, err.Error()))
				}
			}
			return handlerErr
		}
	}
}

func Cart(c echo.Context) *cart.Cart {
	sessionCart, _ := c.Get(cartKey).(*cart.Cart)
	if sessionCart == nil {
		return cart.New()
	}
	return sessionCart
}

func SessionID(c echo.Context) string {
	id, _ := c.Get(sessionIDKey).(string)
	return id
}
