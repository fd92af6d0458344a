// Package auth authenticates API keys and resolves the capabilities a caller
// holds for a tenant.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpggio/interview/internal/domain/capability"
)

// KeyPrefix marks keys issued by this service.
const KeyPrefix = "iv_"

// AnyTenant binds a key to every tenant.
const AnyTenant = "*"

var (
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTenantMismatch indicates a key used against a tenant it is not bound to.
	ErrTenantMismatch = errors.New("api key not valid for tenant")
)

// Key is a configured API key. Only the sha256 hash of the secret is stored.
type Key struct {
	ID     string `yaml:"id"`
	Hash   string `yaml:"hash"`
	Tenant string `yaml:"tenant"`
	Role   string `yaml:"role"`
}

// Principal is an authenticated caller.
type Principal struct {
	KeyID  string
	Tenant string
	Role   string
}

// Capabilities resolves the capability set a role holds within a tenant.
type Capabilities interface {
	Capabilities(role, tenant string) (capability.Set, error)
}

// Store authenticates keys against configured hashes.
type Store struct {
	keys  []Key
	roles Capabilities
	dev   *Principal
}

// NewStore validates the configured keys.
func NewStore(keys []Key, roles Capabilities) (*Store, error) {
	out := make([]Key, 0, len(keys))
	for i, k := range keys {
		k.Hash = strings.ToLower(strings.TrimSpace(k.Hash))
		if len(k.Hash) != sha256.Size*2 {
			return nil, fmt.Errorf("auth key %d: hash must be a hex sha256 digest", i)
		}
		if _, err := hex.DecodeString(k.Hash); err != nil {
			return nil, fmt.Errorf("auth key %d: %w", i, err)
		}
		if strings.TrimSpace(k.Tenant) == "" {
			return nil, fmt.Errorf("auth key %d: tenant required", i)
		}
		if strings.TrimSpace(k.Role) == "" {
			return nil, fmt.Errorf("auth key %d: role required", i)
		}
		if k.ID == "" {
			k.ID = k.Hash[:8]
		}
		out = append(out, k)
	}
	return &Store{keys: out, roles: roles}, nil
}

// AllowInsecureDev makes every request, keyed or not, authenticate as role
// across all tenants.
func (s *Store) AllowInsecureDev(role string) {
	s.dev = &Principal{KeyID: "insecure-dev", Tenant: AnyTenant, Role: role}
}

// Authenticate resolves a raw key to its principal.
func (s *Store) Authenticate(_ context.Context, token string) (*Principal, error) {
	if s.dev != nil {
		p := *s.dev
		return &p, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(token))
	var match *Key
	for i := range s.keys {
		want, _ := hex.DecodeString(s.keys[i].Hash)
		if subtle.ConstantTimeCompare(sum[:], want) == 1 && match == nil {
			match = &s.keys[i]
		}
	}
	if match == nil {
		return nil, ErrUnauthorized
	}
	return &Principal{KeyID: match.ID, Tenant: match.Tenant, Role: match.Role}, nil
}

// Authorize returns the capabilities p holds for tenant.
func (s *Store) Authorize(p *Principal, tenant string) (capability.Set, error) {
	if p == nil {
		return capability.Set{}, ErrUnauthorized
	}
	tenant = strings.TrimSpace(tenant)
	if p.Tenant != AnyTenant && p.Tenant != tenant {
		return capability.Set{}, ErrTenantMismatch
	}
	return s.roles.Capabilities(p.Role, tenant)
}

// TokenFromRequest extracts a key from "Authorization: Bearer" or X-API-Key.
func TokenFromRequest(r *http.Request) string {
	return TokenFromHeader(r.Header)
}

func TokenFromHeader(h http.Header) string {
	if authz := h.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return strings.TrimSpace(h.Get("X-API-Key"))
}

// HashKey returns the hex sha256 digest stored for a key.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns a new random key.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

type principalKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if present.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
