package n26

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Token is the persisted OAuth session state for one account. The file is
// read at startup and overwritten after every successful (re)authentication,
// so later runs can skip the interactive approval step.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token can still be used at now, with a
// small margin so a token does not expire mid-request.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(10*time.Second).Before(t.ExpiresAt)
}

// LoadToken reads a token file. A missing file yields a zero Token, not an
// error; the caller falls through to a fresh login.
func LoadToken(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Token{}, nil
		}
		return Token{}, fmt.Errorf("reading token file: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("parsing token file: %w", err)
	}
	return t, nil
}

// SaveToken overwrites the token file. No locking; concurrent runs against
// the same account are unsupported.
func SaveToken(path string, t Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
