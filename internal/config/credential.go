package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// Keyring coordinates of the stored token.
const (
	KeyringService = "ghd"
	KeyringUser    = "github-token"
)

const redacted = "[REDACTED]"

// Credential holds the API token. It prints and logs as redacted and only
// leaves the package as an oauth2.TokenSource.
type Credential struct {
	token  string
	source string
}

// NewCredential wraps token; source names where it came from.
func NewCredential(token, source string) Credential {
	return Credential{token: strings.TrimSpace(token), source: source}
}

// Empty reports whether no token is held.
func (c Credential) Empty() bool { return c.token == "" }

// Source names where the token was found (flag, env, keyring).
func (c Credential) Source() string { return c.source }

// TokenSource returns a static bearer token source.
func (c Credential) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
}

func (c Credential) String() string   { return redacted }
func (c Credential) GoString() string { return redacted }

// LogValue keeps the token out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", c.source),
		slog.String("token", redacted),
	)
}

// ResolveCredential picks the token from the flag value, then GITHUB_TOKEN,
// then the OS keyring. A missing keyring entry is not an error; the caller
// reports the empty credential.
func ResolveCredential(flagValue string) (Credential, error) {
	if strings.TrimSpace(flagValue) != "" {
		return NewCredential(flagValue, "flag"), nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		return NewCredential(v, "env"), nil
	}
	token, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) || errors.Is(err, keyring.ErrUnsupportedPlatform) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("%w: no token provided and the OS keyring is unavailable: %v", ErrInvalid, err)
	}
	return NewCredential(token, "keyring"), nil
}
