package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

const keyCacheTTL = 10 * time.Minute

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet caches a provider's published RSA signing keys. An unknown key id
// forces one refetch, since providers rotate keys without notice.
type KeySet struct {
	url    string
	client *outbound.Client
	clock  clock.Clock

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet creates a KeySet for the JWKS document at url
func NewKeySet(url string, client *outbound.Client, clock clock.Clock) *KeySet {
	return &KeySet{url: url, client: client, clock: clock}
}

// Key returns the key for kid. An empty kid is accepted only when the set holds a single key.
func (k *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	stale := k.keys == nil || k.clock.Now().Sub(k.fetchedAt) > keyCacheTTL
	if !stale {
		if key, ok := k.lookup(kid); ok {
			return key, nil
		}
	}
	if err := k.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	if kid == "" {
		return nil, fmt.Errorf("missing key id")
	}
	return nil, fmt.Errorf("unknown key id: %s", kid)
}

func (k *KeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	if kid == "" {
		if len(k.keys) == 1 {
			for _, key := range k.keys {
				return key, true
			}
		}
		return nil, false
	}
	key, ok := k.keys[kid]
	return key, ok
}

func (k *KeySet) refresh(ctx context.Context) error {
	var doc jwksDocument
	if err := k.client.Do(ctx, outbound.Request{Method: http.MethodGet, URL: k.url}, &doc); err != nil {
		return fmt.Errorf("jwks fetch failed: %w", err)
	}
	keys, err := parseKeys(doc)
	if err != nil {
		return err
	}
	k.keys = keys
	k.fetchedAt = k.clock.Now()
	return nil
}

func parseKeys(doc jwksDocument) (map[string]*rsa.PublicKey, error) {
	keys := make(map[string]*rsa.PublicKey)
	for i, key := range doc.Keys {
		if strings.ToUpper(strings.TrimSpace(key.Kty)) != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(key.N), "="))
		if err != nil {
			return nil, fmt.Errorf("decode jwks n: %w", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(key.E), "="))
		if err != nil {
			return nil, fmt.Errorf("decode jwks e: %w", err)
		}
		eBig := new(big.Int).SetBytes(eBytes)
		if !eBig.IsInt64() || eBig.Int64() <= 1 {
			return nil, fmt.Errorf("invalid jwks exponent for key %s", key.Kid)
		}

		kid := strings.TrimSpace(key.Kid)
		if kid == "" {
			kid = fmt.Sprintf("key-%d", i)
		}
		keys[kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(eBig.Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no RSA keys found in jwks")
	}
	return keys, nil
}
