package credential

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "notifeed"

// TokenEnv overrides the stored backend token when set.
const TokenEnv = "NOTIFEED_TOKEN"

// ErrNoToken is returned when no token is stored for a backend account.
var ErrNoToken = errors.New("no backend token stored; run `notifeed login`")

// Vault stores backend tokens, one per (backend host, user) account.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a vault backed by the system keyring.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/notifeed/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("notifeed-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// AccountKey builds the keyring key for a user on a backend. Only the host
// of baseURL is used so that path or scheme changes keep the token.
func AccountKey(baseURL, userID string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("token:%s:%s", strings.ToLower(host), userID)
}

// Token returns the stored token for the account.
func (v *Vault) Token(baseURL, userID string) (string, error) {
	key := AccountKey(baseURL, userID)
	item, err := v.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// SetToken stores token for the account.
func (v *Vault) SetToken(baseURL, userID, token string) error {
	key := AccountKey(baseURL, userID)
	err := v.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(token),
		Label:       "notifeed backend token",
		Description: userID,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// DeleteToken removes the account's token. Removing a missing token is not
// an error.
func (v *Vault) DeleteToken(baseURL, userID string) error {
	key := AccountKey(baseURL, userID)
	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// ResolveToken returns the token from TokenEnv if set, otherwise from v.
// v may be nil when no keyring is available.
func ResolveToken(v *Vault, baseURL, userID string) (string, error) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	if v == nil {
		return "", ErrNoToken
	}
	return v.Token(baseURL, userID)
}
