package landnft

import (
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
	"digiland/land-registry/land-registry-backend/internal/landnft/metadata"
	"digiland/land-registry/land-registry-backend/pkg/workflows"
)

type TokenState string

const (
	StateUnregistered      TokenState = workflows.StateUnregistered
	StateRegistered        TokenState = workflows.StateRegistered
	StateMetadataPublished TokenState = workflows.StateMetadataPublished
	StateActive            TokenState = workflows.StateActive
	StatePaused            TokenState = workflows.StatePaused
)

// LandToken is the view of one land token class. The ledger is the system of record.
type LandToken struct {
	TokenID     string     `json:"tokenId"`
	Name        string     `json:"name,omitempty"`
	Symbol      string     `json:"symbol,omitempty"`
	SupplyType  string     `json:"supplyType"`
	Treasury    string     `json:"treasury,omitempty"`
	TotalSupply uint64     `json:"totalSupply"`
	State       TokenState `json:"state"`
	// AllowedOperations lists the lifecycle operations the current state permits
	AllowedOperations []string `json:"allowedOperations"`
}

// StateOf derives the lifecycle state from ledger token info
func StateOf(info ledger.TokenInfo) TokenState {
	switch {
	case !info.Exists:
		return StateUnregistered
	case info.Paused:
		return StatePaused
	case info.TotalSupply > 0:
		return StateActive
	default:
		return StateRegistered
	}
}

// TransferRequest moves one minted unit between accounts
type TransferRequest struct {
	TokenID       string `json:"tokenId"`
	SerialNumber  int64  `json:"serialNumber"`
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
}

// MintResult describes a confirmed mint
type MintResult struct {
	TokenID       string             `json:"tokenId"`
	Serials       []int64            `json:"serials"`
	Reference     metadata.Reference `json:"reference"`
	GatewayURL    string             `json:"gatewayUrl,omitempty"`
	TransactionID string             `json:"transactionId"`
}

// TransactionState is the resolved fate of a submitted transaction
type TransactionState string

const (
	TransactionPending TransactionState = "Pending"
	TransactionSuccess TransactionState = "Success"
	TransactionFailed  TransactionState = "Failed"
)

// TransactionStatus answers "did my transaction land?" after an ambiguous outcome
type TransactionStatus struct {
	TransactionID string           `json:"transactionId"`
	State         TransactionState `json:"state"`
	ReceiptStatus string           `json:"receiptStatus,omitempty"`
	AssignedID    string           `json:"assignedId,omitempty"`
	Serials       []int64          `json:"serials,omitempty"`
}
