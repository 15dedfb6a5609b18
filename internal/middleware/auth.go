package middleware

import (
	"digital-shop/internal/model"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const buyerKey = "buyer"

// Claims identify the user. The token is issued by the accounts service.
type Claims struct {
	Email string `json:"email"`
	Staff bool   `json:"staff"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the bearer token into a model.Buyer. Requests
// without a token continue as guests; a bad token is rejected.
func AuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				c.Set(buyerKey, &model.Buyer{})
				return next(c)
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || secret == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := &Claims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(buyerKey, &model.Buyer{
				UserID: claims.Subject,
				Email:  claims.Email,
				Staff:  claims.Staff,
			})
			return next(c)
		}
	}
}

// RequireAuth rejects guests. It must run after AuthMiddleware.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if Buyer(c).IsGuest() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

func Buyer(c echo.Context) *model.Buyer {
	buyer, _ := c.Get(buyerKey).(*model.Buyer)
	if buyer == nil {
		return &model.Buyer{}
	}
	return buyer
}
