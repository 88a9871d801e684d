package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"carshelf/internal/common"
	"carshelf/internal/models"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"
)

// AuthService delegates account operations to the hosted identity provider.
type AuthService interface {
	SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error)
	SignUp(ctx context.Context, creds models.Credentials) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

const minPasswordLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// gotrue-go reports non-2xx answers as "response status code N: <body>".
	statusPattern = regexp.MustCompile(`(?s)^response status code (\d{3})(?:: (.*))?$`)
)

type identityClient struct {
	client      gotrue.Client
	redirectURL string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAuthService builds a client for a GoTrue compatible auth API rooted at
// baseURL. redirectURL is where confirmation emails send new users.
func NewAuthService(baseURL, apiKey, redirectURL string, timeout time.Duration, logger *zap.Logger) AuthService {
	return &identityClient{
		client:      gotrue.New("", apiKey).WithCustomGoTrueURL(strings.TrimRight(baseURL, "/")),
		redirectURL: redirectURL,
		timeout:     timeout,
		logger:      logger,
	}
}

// providerError is a rejected provider call. Different provider versions use
// different field names for the message.
type providerError struct {
	Status           int    `json:"-"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *providerError) Error() string {
	for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.ErrorName} {
		if m != "" {
			return m
		}
	}
	return fmt.Sprintf("identity provider returned status %d", e.Status)
}

func (e *providerError) rateLimited() bool {
	return e.Status == http.StatusTooManyRequests || strings.Contains(strings.ToLower(e.Error()), "rate limit")
}

// asProviderError recovers the status and message from a gotrue-go error.
// Transport failures are not provider errors.
func asProviderError(err error) (*providerError, bool) {
	match := statusPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return nil, false
	}
	status, _ := strconv.Atoi(match[1])
	pe := &providerError{}
	if body := strings.TrimSpace(match[2]); body != "" {
		if jsonErr := json.Unmarshal([]byte(body), pe); jsonErr != nil {
			pe.Message = body
		}
	}
	pe.Status = status
	return pe, true
}

func (c *identityClient) SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, common.NewValidationError("Email and password are required")
	}

	resp, err := c.forRequest(ctx, nil).Token(types.TokenRequest{
		GrantType: "password",
		Email:     creds.Email,
		Password:  creds.Password,
	})
	if err != nil {
		if pe, ok := asProviderError(err); ok {
			c.logger.Warn("Login rejected by identity provider", zap.Int("status", pe.Status), zap.String("message", pe.Error()))
			if pe.rateLimited() {
				return nil, common.NewRateLimitedError("Too many login attempts. Please try again later.")
			}
			if pe.Status < http.StatusInternalServerError {
				return nil, common.NewAuthenticationError(pe.Error())
			}
			return nil, common.NewUpstreamError("Login failed", pe)
		}
		c.logger.Error("Identity provider request failed", zap.String("call", "token"), zap.Error(err))
		return nil, common.NewUpstreamError("Login failed", err)
	}
	if resp.AccessToken == "" {
		return nil, common.NewUpstreamError("Login failed", fmt.Errorf("identity provider returned no session"))
	}
	return toSession(resp.Session), nil
}

func (c *identityClient) SignUp(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, common.NewValidationError("Email and password are required")
	}
	if !emailPattern.MatchString(creds.Email) {
		return nil, common.NewValidationError("Invalid email format")
	}
	if len(creds.Password) < minPasswordLength {
		return nil, common.NewValidationError(fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}

	var query url.Values
	if c.redirectURL != "" {
		query = url.Values{"redirect_to": {strings.TrimRight(c.redirectURL, "/") + "/login"}}
	}

	resp, err := c.forRequest(ctx, query).Signup(types.SignupRequest{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		if pe, ok := asProviderError(err); ok {
			c.logger.Warn("Signup rejected by identity provider", zap.Int("status", pe.Status), zap.String("message", pe.Error()))
			if pe.rateLimited() {
				return nil, common.NewRateLimitedError("Too many signup attempts. Please try again later.")
			}
			if pe.Status < http.StatusInternalServerError {
				return nil, common.NewValidationError(pe.Error())
			}
			return nil, common.NewUpstreamError("Signup failed", pe)
		}
		c.logger.Error("Identity provider request failed", zap.String("call", "signup"), zap.Error(err))
		return nil, common.NewUpstreamError("Signup failed", err)
	}

	// gotrue-go copies the session user over the bare user when the
	// provider confirms accounts automatically.
	return toUser(resp.User), nil
}

// SignOut ends the provider session behind accessToken.
func (c *identityClient) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := c.forRequest(ctx, nil).WithToken(accessToken).Logout(); err != nil {
		if pe, ok := asProviderError(err); ok {
			err = pe
		}
		return common.NewUpstreamError("Failed to sign out", err)
	}
	return nil
}

// forRequest returns a client whose calls carry ctx and any extra query
// parameters. gotrue-go has no context-aware API of its own.
func (c *identityClient) forRequest(ctx context.Context, query url.Values) gotrue.Client {
	return c.client.WithClient(http.Client{
		Timeout: c.timeout,
		Transport: &requestTransport{
			ctx:   ctx,
			query: query,
			base:  http.DefaultTransport,
		},
	})
}

type requestTransport struct {
	ctx   context.Context
	query url.Values
	base  http.RoundTripper
}

func (t *requestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := out.URL.Query()
		for key, values := range t.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		out.URL.RawQuery = q.Encode()
	}
	return t.base.RoundTrip(out)
}

func toSession(s types.Session) *models.Session {
	return &models.Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		RefreshToken: s.RefreshToken,
		User:         toUser(s.User),
	}
}

func toUser(u types.User) *models.User {
	return &models.User{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		EmailConfirmedAt: u.EmailConfirmedAt,
		LastSignInAt:     u.LastSignInAt,
		UserMetadata:     u.UserMetadata,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
