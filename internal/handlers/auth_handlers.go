package handlers

import (
	"net/http"
	"strings"
	"time"

	"carshelf/internal/caching"
	"carshelf/internal/common"
	"carshelf/internal/middleware"
	"carshelf/internal/models"
	"carshelf/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	refreshCookieMaxAge    = 30 * 24 * time.Hour
	signupConfirmedMessage = "Account created successfully. Please check your email for verification."
)

// CookieConfig names the session cookies and how they are issued.
type CookieConfig struct {
	SessionName string
	RefreshName string
	Secure      bool
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	authService services.AuthService
	cache       caching.CacheService
	cookies     CookieConfig
	logger      *zap.Logger
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService, cache caching.CacheService, cookies CookieConfig, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cache:       cache,
		cookies:     cookies,
		logger:      logger,
	}
}

// LoginRequest is the body of login and signup requests.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// SignupResponse is returned after a successful signup.
type SignupResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

// Login handles POST /auth/login
//
//	@Summary	Sign in with email and password
//	@Tags		auth
//	@Accept		json
//	@Param		body	body	LoginRequest	true	"Credentials"
//	@Success	200	{object}	LoginResponse
//	@Failure	400	{object}	ErrorResponse
//	@Failure	401	{object}	ErrorResponse
//	@Failure	429	{object}	ErrorResponse
//	@Router		/auth/login [post]
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return common.NewValidationError("Invalid request body")
	}

	session, err := h.authService.SignIn(c.Request().Context(), models.Credentials{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookies(c, session)

	h.logger.Info("User signed in", zap.String("user_id", session.User.ID.String()))
	return c.JSON(http.StatusOK, LoginResponse{Success: true, User: session.User})
}

// Signup handles POST /auth/signup
//
//	@Summary	Create an account
//	@Tags		auth
//	@Accept		json
//	@Param		body	body	LoginRequest	true	"Credentials"
//	@Success	200	{object}	SignupResponse
//	@Failure	400	{object}	ErrorResponse
//	@Failure	429	{object}	ErrorResponse
//	@Router		/auth/signup [post]
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return common.NewValidationError("Invalid request body")
	}

	user, err := h.authService.SignUp(c.Request().Context(), models.Credentials{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.logger.Info("User signed up", zap.String("user_id", user.ID.String()))
	return c.JSON(http.StatusOK, SignupResponse{
		Success: true,
		User:    user,
		Message: signupConfirmedMessage,
	})
}

// Signout handles POST /auth/signout
//
//	@Summary	Sign out and clear session cookies
//	@Tags		auth
//	@Success	200	{object}	successResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/auth/signout [post]
func (h *AuthHandlers) Signout(c echo.Context) error {
	ctx := c.Request().Context()

	// Cookies are cleared even when revocation fails.
	h.clearAuthCookies(c)

	session := middleware.CurrentSession(c)
	if session == nil {
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}

	if session.SessionID != "" {
		ttl := time.Until(session.ExpiresAt)
		if err := h.cache.RevokeSession(ctx, session.SessionID, ttl); err != nil {
			h.logger.Error("Failed to revoke session", zap.String("session_id", session.SessionID), zap.Error(err))
			return common.NewUpstreamError("Failed to sign out", nil)
		}
	}

	if err := h.authService.SignOut(ctx, session.AccessToken); err != nil {
		h.logger.Warn("Identity provider sign-out failed", zap.String("user_id", session.UserID.String()), zap.Error(err))
	}

	h.logger.Info("User signed out", zap.String("user_id", session.UserID.String()))
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *AuthHandlers) setSessionCookies(c echo.Context, session *models.Session) {
	maxAge := session.ExpiresIn
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	c.SetCookie(h.cookie(h.cookies.SessionName, session.AccessToken, maxAge))
	if session.RefreshToken != "" {
		c.SetCookie(h.cookie(h.cookies.RefreshName, session.RefreshToken, int(refreshCookieMaxAge.Seconds())))
	}
}

// clearAuthCookies expires the configured session cookies and every request
// cookie that looks like an auth cookie.
func (h *AuthHandlers) clearAuthCookies(c echo.Context) {
	cleared := map[string]bool{}
	for _, name := range []string{h.cookies.SessionName, h.cookies.RefreshName} {
		if name != "" {
			cleared[name] = true
		}
	}
	for _, cookie := range c.Cookies() {
		if isAuthCookie(cookie.Name) {
			cleared[cookie.Name] = true
		}
	}
	for name := range cleared {
		c.SetCookie(h.cookie(name, "", -1))
	}
}

func (h *AuthHandlers) cookie(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}

func isAuthCookie(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "supabase") ||
		strings.Contains(lower, "sb-") ||
		strings.Contains(lower, "auth") ||
		lower == "__session"
}
