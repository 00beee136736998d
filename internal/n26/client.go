package n26

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/n26-ynab/bridge/internal/model"
)

// DefaultBaseURL is the public N26 API endpoint.
const DefaultBaseURL = "https://api.tech26.de"

// basicAuth is the fixed client credential the N26 token endpoint expects,
// base64("nativeweb:").
const basicAuth = "Basic bmF0aXZld2ViOg=="

const (
	requestTimeout = 30 * time.Second

	// fetchLimit is deliberately larger than any realistic history so a
	// single request returns everything.
	fetchLimit = 99999
)

// ErrApprovalTimeout signals that the out-of-band two-factor approval was not
// confirmed within the approval window. It is the only retryable condition.
var ErrApprovalTimeout = errors.New("two-factor approval not confirmed in time")

// AuthTimeoutError reports that the approval retry budget was spent without a
// confirmation.
type AuthTimeoutError struct {
	Retries int
}

func (e *AuthTimeoutError) Error() string {
	return fmt.Sprintf("two-factor authentication failed after %d retries", e.Retries)
}

func (e *AuthTimeoutError) Unwrap() error {
	return ErrApprovalTimeout
}

// Credentials holds everything needed to establish an N26 session.
type Credentials struct {
	Username    string
	Password    string
	MFAType     string // "app" (push approval) or "sms"
	DeviceToken string // per-device UUID; generated when empty
	TokenPath   string // where the session token is persisted
}

// Client talks to the N26 API for one account.
type Client struct {
	http  *resty.Client
	creds Credentials
	log   zerolog.Logger

	approvalWindow time.Duration
	pollInterval   time.Duration

	token Token
}

// Option adjusts client construction.
type Option func(*Client)

// WithApprovalWindow bounds how long one authentication attempt waits for the
// out-of-band approval before reporting ErrApprovalTimeout.
func WithApprovalWindow(window, pollInterval time.Duration) Option {
	return func(c *Client) {
		c.approvalWindow = window
		c.pollInterval = pollInterval
	}
}

// NewClient creates a Client. A missing device token is replaced with a fresh
// UUID, which the bank treats as a new-device login.
func NewClient(baseURL string, creds Credentials, log zerolog.Logger, opts ...Option) *Client {
	if creds.DeviceToken == "" {
		creds.DeviceToken = uuid.NewString()
	}
	if creds.MFAType == "" {
		creds.MFAType = "app"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)

	c := &Client{
		http:           httpClient,
		creds:          creds,
		log:            log,
		approvalWindow: 60 * time.Second,
		pollInterval:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type mfaRequiredResponse struct {
	Error    string `json:"error"`
	MFAToken string `json:"mfaToken"`
}

// Authenticate establishes a usable session: a still-valid persisted token is
// reused, then a refresh grant is tried, then a full password+MFA login.
func (c *Client) Authenticate(ctx context.Context) error {
	stored, err := LoadToken(c.creds.TokenPath)
	if err != nil {
		return err
	}

	now := time.Now()
	if stored.Valid(now) {
		c.log.Debug().Msg("reusing persisted session token")
		c.token = stored
		return nil
	}

	if stored.RefreshToken != "" {
		token, err := c.refresh(ctx, stored.RefreshToken)
		if err == nil {
			return c.adopt(token)
		}
		c.log.Debug().Err(err).Msg("token refresh failed, falling back to full login")
	}

	token, err := c.login(ctx)
	if err != nil {
		return err
	}
	return c.adopt(token)
}

func (c *Client) adopt(t Token) error {
	c.token = t
	if err := SaveToken(c.creds.TokenPath, t); err != nil {
		return err
	}
	return nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (Token, error) {
	res, err := c.tokenRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return Token{}, err
	}
	if res.StatusCode() != http.StatusOK {
		return Token{}, fmt.Errorf("refresh rejected: %s", res.Status())
	}
	return parseToken(res.Body())
}

// login performs the password grant. The bank answers 403 with an mfaToken,
// which starts the out-of-band challenge; the token endpoint is then polled
// until the user approves or the approval window lapses.
func (c *Client) login(ctx context.Context) (Token, error) {
	c.log.Info().Str("username", c.creds.Username).Msg("starting N26 login")

	res, err := c.tokenRequest(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	})
	if err != nil {
		return Token{}, err
	}

	if res.StatusCode() == http.StatusOK {
		return parseToken(res.Body())
	}

	var mfa mfaRequiredResponse
	if err := json.Unmarshal(res.Body(), &mfa); err != nil || mfa.MFAToken == "" {
		return Token{}, fmt.Errorf("login rejected: %s: %s", res.Status(), res.Body())
	}

	if err := c.requestChallenge(ctx, mfa.MFAToken); err != nil {
		return Token{}, err
	}
	return c.awaitApproval(ctx, mfa.MFAToken)
}

func (c *Client) requestChallenge(ctx context.Context, mfaToken string) error {
	challengeType := "oob"
	if c.creds.MFAType == "sms" {
		challengeType = "otp"
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", basicAuth).
		SetHeader("device-token", c.creds.DeviceToken).
		SetBody(map[string]string{
			"challengeType": challengeType,
			"mfaToken":      mfaToken,
		}).
		Post("/api/mfa/challenge")
	if err != nil {
		return fmt.Errorf("requesting MFA challenge: %w", err)
	}
	if res.StatusCode() >= 300 {
		return fmt.Errorf("MFA challenge rejected: %s: %s", res.Status(), res.Body())
	}

	c.log.Info().Str("challenge", challengeType).Msg("two-factor challenge sent, waiting for approval")
	return nil
}

// awaitApproval polls the token endpoint with the mfa_oob grant. Until the
// user confirms on their phone the endpoint keeps answering 4xx.
func (c *Client) awaitApproval(ctx context.Context, mfaToken string) (Token, error) {
	deadline := time.Now().Add(c.approvalWindow)

	for {
		res, err := c.tokenRequest(ctx, url.Values{
			"grant_type": {"mfa_oob"},
			"mfaToken":   {mfaToken},
		})
		if err != nil {
			return Token{}, err
		}
		if res.StatusCode() == http.StatusOK {
			c.log.Info().Msg("two-factor approval confirmed")
			return parseToken(res.Body())
		}

		if time.Now().After(deadline) {
			return Token{}, ErrApprovalTimeout
		}

		select {
		case <-ctx.Done():
			return Token{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*resty.Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", basicAuth).
		SetHeader("device-token", c.creds.DeviceToken).
		SetFormDataFromValues(form).
		Post("/oauth/token")
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	return res, nil
}

func parseToken(body []byte) (Token, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, errors.New("token response without access token")
	}
	return Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Transactions authenticates if needed and fetches the full transaction list
// in one request, in API order.
func (c *Client) Transactions(ctx context.Context) ([]model.Transaction, error) {
	if !c.token.Valid(time.Now()) {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token.AccessToken).
		SetQueryParam("limit", fmt.Sprint(fetchLimit)).
		Get("/api/smrt/transactions")
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("transaction fetch rejected: %s: %s", res.Status(), res.Body())
	}

	var txns []model.Transaction
	if err := json.Unmarshal(res.Body(), &txns); err != nil {
		return nil, fmt.Errorf("parsing transactions: %w", err)
	}

	c.log.Info().Int("count", len(txns)).Msg("retrieved N26 transactions")
	return txns, nil
}
