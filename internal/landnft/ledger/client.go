package ledger

import (
	"context"
	"errors"
	"fmt"
)

// StatusSuccess is the receipt status the ledger reports for an applied transaction
const StatusSuccess = "SUCCESS"

// ErrReceiptPending is returned by Client.Receipt while the ledger has not reached consensus
var ErrReceiptPending = errors.New("ledger: receipt not yet available")

// Transaction is a ledger transaction owned by a Client implementation
type Transaction interface {
	Kind() OperationKind
	// ID is the ledger transaction id, empty until the transaction is frozen
	ID() string
}

// Submission identifies a transaction that was handed to the network
type Submission struct {
	TransactionID string `json:"transaction_id"`
	NodeID        string `json:"node_id,omitempty"`
}

// Receipt is the ledger's confirmation record for a submitted transaction
type Receipt struct {
	Status  string  `json:"status"`
	TokenID string  `json:"token_id,omitempty"`
	Serials []int64 `json:"serials,omitempty"`
}

// Successful reports whether the receipt carries the ledger success code
func (r Receipt) Successful() bool {
	return r.Status == StatusSuccess
}

// StatusError is a definitive rejection reported by the ledger, e.g. a node precheck
// failure; the transaction did not reach consensus.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger rejected transaction: %s", e.Status)
}

// Client is the capability the pipeline needs from a ledger network.
// Implementations must be safe for concurrent use.
type Client interface {
	Build(ctx context.Context, d Descriptor) (Transaction, error)
	Freeze(ctx context.Context, tx Transaction) error
	Sign(ctx context.Context, tx Transaction, key Key) error
	Submit(ctx context.Context, tx Transaction) (Submission, error)
	Receipt(ctx context.Context, sub Submission) (Receipt, error)
}

// TokenInfo is the ledger view of one token class
type TokenInfo struct {
	TokenID     string `json:"token_id"`
	Exists      bool   `json:"exists"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Treasury    string `json:"treasury,omitempty"`
	Paused      bool   `json:"paused"`
	TotalSupply uint64 `json:"total_supply"`
}

// StateReader reads token class state from the ledger
type StateReader interface {
	TokenInfo(ctx context.Context, tokenID string) (TokenInfo, error)
}
