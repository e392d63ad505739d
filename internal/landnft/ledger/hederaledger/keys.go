package hederaledger

import (
	"fmt"
	"strings"

	"github.com/hashgraph/hedera-sdk-go/v2"

	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
)

// Key is a private key bound to a signer role
type Key struct {
	role    ledger.SignerRole
	private hedera.PrivateKey
}

func (k *Key) Role() ledger.SignerRole { return k.role }

func (k *Key) PublicKey() string { return k.private.PublicKey().String() }

// KeyRing holds the operator and administrative keys
type KeyRing struct {
	operator *Key
	admin    *Key
}

// NewKeyRing parses both keys. The admin key defaults to the operator key.
func NewKeyRing(operatorKey, adminKey string) (*KeyRing, error) {
	op, err := ParsePrivateKey(operatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}
	ring := &KeyRing{
		operator: &Key{role: ledger.RoleOperator, private: op},
		admin:    &Key{role: ledger.RoleAdmin, private: op},
	}
	if adminKey != "" {
		admin, err := ParsePrivateKey(adminKey)
		if err != nil {
			return nil, fmt.Errorf("invalid admin key: %w", err)
		}
		ring.admin = &Key{role: ledger.RoleAdmin, private: admin}
	}
	return ring, nil
}

// Key implements ledger.SignerProvider
func (r *KeyRing) Key(role ledger.SignerRole) (ledger.Key, error) {
	switch role {
	case ledger.RoleAdmin:
		return r.admin, nil
	case ledger.RoleOperator:
		return r.operator, nil
	default:
		return nil, fmt.Errorf("no key configured for role %q", role)
	}
}

// ParsePrivateKey accepts DER-encoded keys and raw hex ECDSA keys
func ParsePrivateKey(s string) (hedera.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return hedera.PrivateKey{}, fmt.Errorf("key is empty")
	}
	if strings.HasPrefix(s, "30") && len(s) > 64 {
		return hedera.PrivateKeyFromStringDer(s)
	}
	return hedera.PrivateKeyFromStringECDSA(s)
}
