package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	OperatorIDKey   = "operator_id"
	OperatorRoleKey = "operator_role"

	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// OperatorClaims are issued to back-office staff and POS terminals.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth accepts HS256 bearer tokens whose role is one of roles and
// stores the operator id and role on the context.
func OperatorAuth(secret string, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "operator auth not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := &OperatorClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			subject, _ := claims.GetSubject()
			if subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "role not allowed")
			}

			c.Set(OperatorIDKey, subject)
			c.Set(OperatorRoleKey, claims.Role)
			return next(c)
		}
	}
}

// OperatorID returns the authenticated operator, or "" on public routes.
func OperatorID(c echo.Context) string {
	id, _ := c.Get(OperatorIDKey).(string)
	return id
}
