package ledger

import "fmt"

// SignerRole names which key must sign an operation
type SignerRole string

const (
	RoleAdmin    SignerRole = "admin"
	RoleOperator SignerRole = "operator"
)

// RoleFor maps an operation kind to its required signer role.
// Class-mutating operations need the administrative key; transfers the operator key.
func RoleFor(kind OperationKind) SignerRole {
	if kind == OpTransfer {
		return RoleOperator
	}
	return RoleAdmin
}

// Key is a signing key handle. Private material stays inside the implementation.
type Key interface {
	Role() SignerRole
	PublicKey() string
}

// SignerProvider resolves the key for a signer role
type SignerProvider interface {
	Key(role SignerRole) (Key, error)
}

// StaticKey is a key handle without private material, used by simulated ledgers
type StaticKey struct {
	KeyRole SignerRole
	Public  string
}

func (k StaticKey) Role() SignerRole  { return k.KeyRole }
func (k StaticKey) PublicKey() string { return k.Public }

// StaticSigners is a fixed role to key mapping
type StaticSigners map[SignerRole]Key

// Key implements SignerProvider
func (s StaticSigners) Key(role SignerRole) (Key, error) {
	k, ok := s[role]
	if !ok || k == nil {
		return nil, fmt.Errorf("no key configured for role %q", role)
	}
	return k, nil
}
