package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Object is an opaque payload to publish
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// ContentStore publishes payloads to a content-addressable store and returns their CID.
// Publication is append-only; publishing identical bytes again is safe.
// Implementations must be safe for concurrent use.
type ContentStore interface {
	Publish(ctx context.Context, obj Object) (string, error)
}

// Gateway is implemented by stores that can serve published content over HTTP
type Gateway interface {
	GatewayURL(cid string) string
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data, the same identifier
// IPFS assigns to a single-block file added with raw leaves.
func ComputeCID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// ValidCID reports whether s decodes as a CID
func ValidCID(s string) bool {
	_, err := cid.Decode(s)
	return err == nil
}
