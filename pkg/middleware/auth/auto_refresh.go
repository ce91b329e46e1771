package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/pkg/authclient"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

const principalKey = "principal"

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	// AuthClient is optional. Without it expired tokens are rejected instead of refreshed.
	AuthClient *authclient.Client
}

func NewAutoRefreshMiddleware(secret []byte, authClient *authclient.Client) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

type ValidatorFunc func(p identity.Principal) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireRole(identity.RoleAdmin)(next)
}

func (m *AutoRefreshMiddleware) RequireRole(roles ...identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(p identity.Principal) error {
			for _, r := range roles {
				if p.Role == r {
					return nil
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		})
	}
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accessToken := bearerToken(c)
		fromCookie := false
		if accessToken == "" {
			if ck, err := c.Cookie("accessToken"); err == nil {
				accessToken = ck.Value
				fromCookie = true
			}
		}
		if accessToken == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(accessToken, m.JWTSecret)
		if err == nil {
			return m.authorize(c, next, claims, validator)
		}

		if !errors.Is(err, jwt.ErrTokenExpired) || !fromCookie || m.AuthClient == nil {
			if fromCookie {
				clearAuthCookies(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		refreshCookie, rErr := c.Cookie("refreshToken")
		if rErr != nil || refreshCookie.Value == "" {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}

		refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, accessToken)
		if refErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
		}

		newClaims, pErr := tokens.AccessClaimsFromToken(refreshResp.AccessToken, m.JWTSecret)
		if pErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}

		c.SetCookie(CreateCookie("accessToken", refreshResp.AccessToken, "/", time.Unix(refreshResp.AccessExp, 0)))
		c.SetCookie(CreateCookie("refreshToken", refreshResp.RefreshToken, "/", time.Unix(refreshResp.RefreshExp, 0)))

		return m.authorize(c, next, newClaims, validator)
	}
}

func (m *AutoRefreshMiddleware) authorize(c echo.Context, next echo.HandlerFunc, claims *tokens.AccessClaims, validator ValidatorFunc) error {
	p, err := claims.Principal()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}
	if validator != nil {
		if vErr := validator(p); vErr != nil {
			return vErr
		}
	}
	setUserContext(c, p)
	return next(c)
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))
}

func setUserContext(c echo.Context, p identity.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.UserID.String())
	c.Set("role", p.Role)
}

func PrincipalFrom(c echo.Context) (identity.Principal, bool) {
	p, ok := c.Get(principalKey).(identity.Principal)
	if !ok || !p.Valid() {
		return identity.Principal{}, false
	}
	return p, true
}

// SetPrincipal is used by handler tests that bypass token parsing.
func SetPrincipal(c echo.Context, p identity.Principal) {
	setUserContext(c, p)
}
