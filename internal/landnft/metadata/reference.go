package metadata

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"digiland/land-registry/land-registry-backend/pkg/storage"
)

// DefaultScheme is the URI scheme of the content-addressable store
const DefaultScheme = "ipfs"

// ErrPublicationConsumed is returned when a publication is consumed twice
var ErrPublicationConsumed = errors.New("metadata publication already consumed")

// Reference is a ledger-compatible content reference of the form scheme://CID
type Reference struct {
	scheme string
	cid    string
}

// ParseReference parses a caller-supplied scheme://CID reference
func ParseReference(s string) (Reference, error) {
	scheme, id, ok := strings.Cut(s, "://")
	if !ok || scheme == "" || id == "" {
		return Reference{}, fmt.Errorf("content reference %q is not of the form scheme://CID", s)
	}
	if !storage.ValidCID(id) {
		return Reference{}, fmt.Errorf("content reference %q does not carry a valid CID", s)
	}
	return Reference{scheme: scheme, cid: id}, nil
}

func newReference(scheme, cid string) Reference {
	return Reference{scheme: scheme, cid: cid}
}

// String returns scheme://CID
func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return r.scheme + "://" + r.cid
}

// CID returns the bare content identifier
func (r Reference) CID() string { return r.cid }

// IsZero reports whether r was never set
func (r Reference) IsZero() bool { return r.cid == "" }

// Bytes returns the reference as ledger metadata bytes
func (r Reference) Bytes() []byte { return []byte(r.String()) }

// MarshalText implements encoding.TextMarshaler
func (r Reference) MarshalText() ([]byte, error) { return r.Bytes(), nil }

// Publication is proof that a metadata payload was published. Only Publisher.Publish
// creates one, and its reference can be taken exactly once, by the transaction that
// embeds it.
type Publication struct {
	ref      Reference
	payload  []byte
	url      string
	consumed atomic.Bool
}

// Reference returns the published reference without consuming it
func (p *Publication) Reference() Reference { return p.ref }

// URL returns an HTTP address for the payload, or "" when the store has no gateway
func (p *Publication) URL() string { return p.url }

// Payload returns the canonical bytes that were published
func (p *Publication) Payload() []byte { return append([]byte(nil), p.payload...) }

// Consume hands the reference to a transaction builder; a second call fails
func (p *Publication) Consume() (Reference, error) {
	if p == nil || p.ref.IsZero() {
		return Reference{}, errors.New("metadata publication is empty")
	}
	if !p.consumed.CompareAndSwap(false, true) {
		return Reference{}, ErrPublicationConsumed
	}
	return p.ref, nil
}
