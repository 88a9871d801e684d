package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carshelf/internal/caching"
	"carshelf/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	tokenContextKey   = "user"
	sessionContextKey = "session"
)

// SessionClaims are the claims carried by identity provider access tokens.
type SessionClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Session is the verified session attached to a request.
type Session struct {
	UserID      uuid.UUID
	Email       string
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// SessionConfig configures the session gate. Tokens are verified with
// JWKSURL when set, otherwise with the shared HS256 JWTSecret.
type SessionConfig struct {
	JWTSecret  string
	JWKSURL    string
	CookieName string
	Cache      caching.CacheService
	Logger     *zap.Logger
}

// SessionGate verifies access tokens from the Authorization header or the
// session cookie and attaches the user to the request context.
type SessionGate struct {
	cache    caching.CacheService
	logger   *zap.Logger
	required echo.MiddlewareFunc
	optional echo.MiddlewareFunc
}

func NewSessionGate(cfg SessionConfig) (*SessionGate, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	base := echojwt.Config{
		ContextKey:  tokenContextKey,
		TokenLookup: "header:Authorization:Bearer ,cookie:" + cfg.CookieName,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(SessionClaims)
		},
	}

	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				cfg.Logger.Warn("JWKS refresh failed", zap.String("url", cfg.JWKSURL), zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		base.KeyFunc = jwks.Keyfunc
	case cfg.JWTSecret != "":
		base.SigningKey = []byte(cfg.JWTSecret)
	default:
		return nil, fmt.Errorf("session gate needs a JWT secret or a JWKS URL")
	}

	required := base
	required.ErrorHandler = func(c echo.Context, err error) error {
		cfg.Logger.Debug("Rejected session token", zap.String("path", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	optional := base
	optional.ContinueOnIgnoredError = true
	optional.ErrorHandler = func(c echo.Context, err error) error {
		return nil
	}

	return &SessionGate{
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		required: echojwt.WithConfig(required),
		optional: echojwt.WithConfig(optional),
	}, nil
}

// Require rejects requests without a valid, unrevoked session with 401.
func (g *SessionGate) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.required(g.attach(next, true))
	}
}

// Optional attaches the session when one is present and lets every request
// through.
func (g *SessionGate) Optional() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.optional(g.attach(next, false))
	}
}

func (g *SessionGate) attach(next echo.HandlerFunc, required bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := g.sessionFromToken(c)
		if err != nil {
			if required {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			return next(c)
		}

		ctx := common.WithUser(c.Request().Context(), session.UserID, session.Email)
		ctx = context.WithValue(ctx, common.SessionIDKey, session.SessionID)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(sessionContextKey, session)

		return next(c)
	}
}

func (g *SessionGate) sessionFromToken(c echo.Context) (*Session, error) {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, fmt.Errorf("no session token")
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("invalid subject %q", claims.Subject)
	}

	if claims.SessionID != "" && g.cache != nil {
		revoked, err := g.cache.IsSessionRevoked(c.Request().Context(), claims.SessionID)
		if err != nil {
			g.logger.Warn("Session revocation check failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
		if revoked {
			return nil, fmt.Errorf("session %s was signed out", claims.SessionID)
		}
	}

	session := &Session{
		UserID:      userID,
		Email:       claims.Email,
		SessionID:   claims.SessionID,
		AccessToken: token.Raw,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// CurrentUser returns the authenticated user id, if any.
func CurrentUser(ctx context.Context) (uuid.UUID, bool) {
	return common.GetUserIDFromContext(ctx)
}

// CurrentSession returns the session attached by the gate, or nil.
func CurrentSession(c echo.Context) *Session {
	session, _ := c.Get(sessionContextKey).(*Session)
	return session
}
