package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/CTAG07/Signpost/pkg/settings"
)

const (
	// nonceTick is half the lifetime of an anti-forgery token.
	nonceTick = 12 * time.Hour

	nonceSecretOption = settings.OptionPrefix + "nonce_secret"

	actionSearch = "search"
)

// settingsAction names the token action guarding saves of one group.
func settingsAction(group settings.Group) string {
	return "settings_" + string(group)
}

// OptionStore is the raw option access the nonce secret lives in.
type OptionStore interface {
	Option(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

// Nonces issues and checks anti-forgery tokens bound to an action. A token
// is valid during the tick it was issued in and the following one.
type Nonces struct {
	secret []byte
	now    func() time.Time
}

// NewNonces returns a token issuer keyed by secret.
func NewNonces(secret []byte) *Nonces {
	return &Nonces{secret: secret, now: time.Now}
}

// loadNonceSecret returns the configured secret, or the one stored in the
// options table. A fresh random secret is stored on first use.
func loadNonceSecret(ctx context.Context, store OptionStore, configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	raw, ok, err := store.Option(ctx, nonceSecretOption)
	if err != nil {
		return nil, err
	}
	if ok && raw != "" {
		return hex.DecodeString(raw)
	}
	secret := make([]byte, 32)
	if _, err = rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	if err = store.SetOption(ctx, nonceSecretOption, hex.EncodeToString(secret)); err != nil {
		return nil, err
	}
	return secret, nil
}

func (n *Nonces) tick() int64 {
	return n.now().Unix() / int64(nonceTick/time.Second)
}

func (n *Nonces) sign(action string, tick int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	return hex.EncodeToString(mac.Sum(nil)[:12])
}

// Create issues a token for action.
func (n *Nonces) Create(action string) string {
	return n.sign(action, n.tick())
}

// Verify reports whether token was issued for action in the current or the
// previous tick.
func (n *Nonces) Verify(action, token string) bool {
	if token == "" {
		return false
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(n.sign(action, t))) {
			return true
		}
	}
	return false
}
