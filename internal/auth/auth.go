// Package auth maps API keys to principals and checks their capabilities.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// Capability names a permission. CapTrade principals are identified by the account they trade for.
type Capability string

const (
	CapAdmin Capability = "admin"
	CapPause Capability = "pause"
	CapTrade Capability = "trade"
)

type Principal struct {
	ID           string       `json:"id"`
	Capabilities []Capability `json:"capabilities"`
}

func (p Principal) Has(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c || have == CapAdmin {
			return true
		}
	}
	return false
}

// Authorizer decides whether a principal holds a capability.
type Authorizer interface {
	Authorize(ctx context.Context, p Principal, c Capability) error
}

type keyEntry struct {
	key       []byte
	principal Principal
}

// KeySet is an Authorizer backed by a static API key list.
type KeySet struct {
	entries []keyEntry
}

// ParseKeys reads "key:principal[:cap|cap...]" entries separated by commas. Entries without
// capabilities get CapAdmin.
func ParseKeys(list string) (*KeySet, error) {
	ks := &KeySet{}
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid key entry %q: want key:principal[:caps]", raw)
		}
		p := Principal{ID: parts[1], Capabilities: []Capability{CapAdmin}}
		if len(parts) > 2 && parts[2] != "" {
			p.Capabilities = nil
			for _, c := range strings.Split(parts[2], "|") {
				p.Capabilities = append(p.Capabilities, Capability(c))
			}
		}
		ks.Add(parts[0], p)
	}
	return ks, nil
}

func (k *KeySet) Add(key string, p Principal) {
	k.entries = append(k.entries, keyEntry{key: []byte(key), principal: p})
}

func (k *KeySet) Len() int { return len(k.entries) }

// Lookup resolves an API key. Comparison is constant-time per entry.
func (k *KeySet) Lookup(key string) (Principal, bool) {
	var (
		found Principal
		ok    bool
	)
	for _, e := range k.entries {
		if subtle.ConstantTimeCompare(e.key, []byte(key)) == 1 {
			found, ok = e.principal, true
		}
	}
	return found, ok
}

func (k *KeySet) Authorize(_ context.Context, p Principal, c Capability) error {
	for _, e := range k.entries {
		if e.principal.ID == p.ID {
			if e.principal.Has(c) {
				return nil
			}
			return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, p.ID, c)
		}
	}
	return fmt.Errorf("%w: unknown principal %q", ErrUnauthorized, p.ID)
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
