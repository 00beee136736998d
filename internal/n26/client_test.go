package n26

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(t *testing.T) Credentials {
	t.Helper()
	return Credentials{
		Username:    "jane@example.com",
		Password:    "hunter2",
		MFAType:     "app",
		DeviceToken: "9d3879f2-9e4b-4f85-9d8e-239e5d7a1a2f",
		TokenPath:   filepath.Join(t.TempDir(), "token_data_personal"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func grantedToken(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_in":    1799,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_data_personal")

	in := Token{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, SaveToken(path, in))

	out, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, in.AccessToken, out.AccessToken)
	assert.Equal(t, in.RefreshToken, out.RefreshToken)
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
}

func TestLoadToken_Missing(t *testing.T) {
	out, err := LoadToken(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, Token{}, out)
}

func TestToken_Valid(t *testing.T) {
	now := time.Now()

	assert.False(t, Token{}.Valid(now))
	assert.False(t, Token{AccessToken: "a", ExpiresAt: now.Add(5 * time.Second)}.Valid(now))
	assert.True(t, Token{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}.Valid(now))
}

func TestAuthenticate_ReusesStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	creds := testCreds(t)
	require.NoError(t, SaveToken(creds.TokenPath, Token{
		AccessToken: "still-good",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	c := NewClient(srv.URL, creds, zerolog.Nop())
	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, "still-good", c.token.AccessToken)
}

func TestAuthenticate_RefreshGrant(t *testing.T) {
	var grants []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		grants = append(grants, r.FormValue("grant_type"))
		assert.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		grantedToken(w)
	}))
	defer srv.Close()

	creds := testCreds(t)
	require.NoError(t, SaveToken(creds.TokenPath, Token{
		AccessToken:  "expired",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	c := NewClient(srv.URL, creds, zerolog.Nop())
	require.NoError(t, c.Authenticate(context.Background()))

	assert.Equal(t, []string{"refresh_token"}, grants)
	assert.Equal(t, "access-1", c.token.AccessToken)

	// New token overwrote the file.
	stored, err := LoadToken(creds.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
}

func TestAuthenticate_FullMFAFlow(t *testing.T) {
	polls := 0
	challenged := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			require.NoError(t, r.ParseForm())
			switch r.FormValue("grant_type") {
			case "password":
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":    "mfa_required",
					"mfaToken": "mfa-token-1",
				})
			case "mfa_oob":
				assert.Equal(t, "mfa-token-1", r.FormValue("mfaToken"))
				polls++
				if polls < 3 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization_pending"})
					return
				}
				grantedToken(w)
			default:
				t.Fatalf("unexpected grant type %q", r.FormValue("grant_type"))
			}
		case "/api/mfa/challenge":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "oob", body["challengeType"])
			assert.Equal(t, "mfa-token-1", body["mfaToken"])
			assert.Equal(t, "9d3879f2-9e4b-4f85-9d8e-239e5d7a1a2f", r.Header.Get("device-token"))
			challenged = true
			writeJSON(w, http.StatusOK, map[string]string{})
		default:
			t.Fatalf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(t), zerolog.Nop(),
		WithApprovalWindow(5*time.Second, time.Millisecond))

	require.NoError(t, c.Authenticate(context.Background()))
	assert.True(t, challenged)
	assert.Equal(t, 3, polls)
	assert.Equal(t, "access-1", c.token.AccessToken)
}

func TestAuthenticate_ApprovalTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			require.NoError(t, r.ParseForm())
			if r.FormValue("grant_type") == "password" {
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":    "mfa_required",
					"mfaToken": "mfa-token-1",
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization_pending"})
		case "/api/mfa/challenge":
			writeJSON(w, http.StatusOK, map[string]string{})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(t), zerolog.Nop(),
		WithApprovalWindow(10*time.Millisecond, time.Millisecond))

	err := c.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrApprovalTimeout)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(t), zerolog.Nop())

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrApprovalTimeout)
	assert.Contains(t, err.Error(), "login rejected")
}

func TestTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			grantedToken(w)
		case "/api/smrt/transactions":
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			assert.Equal(t, "99999", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "txn-1", "type": "PT", "amount": 12.34, "visibleTS": 1700000000000, "merchantName": "REWE Markt"},
				{"id": "txn-2", "type": "AA", "amount": -5.0, "visibleTS": 1700000100000},
			})
		default:
			t.Fatalf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(t), zerolog.Nop())

	txns, err := c.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "txn-1", txns[0].ID)
	assert.Equal(t, "12.34", txns[0].Amount.String())
	assert.Equal(t, int64(1700000000000), txns[0].VisibleTS)
	assert.Equal(t, "REWE Markt", txns[0].MerchantName)
	assert.Equal(t, "AA", txns[1].Type)
}

func TestNewClient_GeneratesDeviceToken(t *testing.T) {
	creds := testCreds(t)
	creds.DeviceToken = ""

	c := NewClient("http://unused", creds, zerolog.Nop())

	_, err := uuid.Parse(c.creds.DeviceToken)
	assert.NoError(t, err)
}

func TestAuthTimeoutError(t *testing.T) {
	err := &AuthTimeoutError{Retries: 2}
	assert.ErrorIs(t, err, ErrApprovalTimeout)
	assert.Contains(t, err.Error(), "after 2 retries")
}
