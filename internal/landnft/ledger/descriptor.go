package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// OperationKind is the kind of ledger-mutating operation a descriptor describes
type OperationKind string

const (
	OpRegister       OperationKind = "register"
	OpMint           OperationKind = "mint"
	OpPause          OperationKind = "pause"
	OpUpdateMetadata OperationKind = "update_metadata"
	OpTransfer       OperationKind = "transfer"
)

// SupplyInfinite is the only supply policy used for land token classes
const SupplyInfinite = "infinite"

// MaxMetadataBytes is the ledger limit for one NFT's metadata field
const MaxMetadataBytes = 100

const (
	minNameLen   = 3
	maxNameLen   = 50
	minSymbolLen = 1
	maxSymbolLen = 10
)

var entityIDPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-z]{5})?$`)

// ValidEntityID reports whether s is a shard.realm.num ledger entity id
func ValidEntityID(s string) bool {
	return entityIDPattern.MatchString(s)
}

// Descriptor fully specifies one ledger transaction before it is built
type Descriptor struct {
	Kind OperationKind `json:"kind"`

	TokenID string `json:"token_id,omitempty"`

	// register
	Name       string `json:"name,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	SupplyType string `json:"supply_type,omitempty"`
	Treasury   string `json:"treasury,omitempty"`
	AdminKey   string `json:"admin_key,omitempty"`
	PauseKey   string `json:"pause_key,omitempty"`
	SupplyKey  string `json:"supply_key,omitempty"`

	// mint, update_metadata
	Metadata      [][]byte `json:"metadata,omitempty"`
	SerialNumbers []int64  `json:"serial_numbers,omitempty"`

	// transfer
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Memo string `json:"memo,omitempty"`
}

// Validate checks the operation-specific fields without touching the network
func (d Descriptor) Validate() error {
	switch d.Kind {
	case OpRegister:
		return d.validateRegister()
	case OpMint:
		if err := d.validateTokenID(); err != nil {
			return err
		}
		if len(d.Metadata) == 0 {
			return fmt.Errorf("mint requires metadata")
		}
		return validateMetadata(d.Metadata)
	case OpPause:
		return d.validateTokenID()
	case OpUpdateMetadata:
		if err := d.validateTokenID(); err != nil {
			return err
		}
		if len(d.SerialNumbers) == 0 {
			return fmt.Errorf("update requires at least one serial number")
		}
		for _, s := range d.SerialNumbers {
			if s <= 0 {
				return fmt.Errorf("serial number must be positive, got %d", s)
			}
		}
		if len(d.Metadata) != 1 {
			return fmt.Errorf("update requires exactly one metadata value, got %d", len(d.Metadata))
		}
		return validateMetadata(d.Metadata)
	case OpTransfer:
		return d.validateTransfer()
	case "":
		return fmt.Errorf("descriptor kind is required")
	default:
		return fmt.Errorf("unknown operation kind %q", d.Kind)
	}
}

// ValidateTokenClass checks a token class name and symbol. Surrounding whitespace
// does not count towards the length limits.
func ValidateTokenClass(name, symbol string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(name)); n < minNameLen || n > maxNameLen {
		return fmt.Errorf("token name must be between %d and %d characters long", minNameLen, maxNameLen)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(symbol)); n < minSymbolLen || n > maxSymbolLen {
		return fmt.Errorf("token symbol must be between %d and %d characters long", minSymbolLen, maxSymbolLen)
	}
	return nil
}

func (d Descriptor) validateRegister() error {
	if err := ValidateTokenClass(d.Name, d.Symbol); err != nil {
		return err
	}
	if d.SupplyType != SupplyInfinite {
		return fmt.Errorf("unsupported supply type %q", d.SupplyType)
	}
	if !ValidEntityID(d.Treasury) {
		return fmt.Errorf("invalid treasury account %q", d.Treasury)
	}
	if d.AdminKey == "" || d.PauseKey == "" || d.SupplyKey == "" {
		return fmt.Errorf("admin, pause and supply keys are required")
	}
	return nil
}

func (d Descriptor) validateTransfer() error {
	if err := d.validateTokenID(); err != nil {
		return err
	}
	if len(d.SerialNumbers) != 1 {
		return fmt.Errorf("transfer moves exactly one serial number, got %d", len(d.SerialNumbers))
	}
	if d.SerialNumbers[0] <= 0 {
		return fmt.Errorf("serial number must be positive, got %d", d.SerialNumbers[0])
	}
	if !ValidEntityID(d.From) {
		return fmt.Errorf("invalid sender account %q", d.From)
	}
	if !ValidEntityID(d.To) {
		return fmt.Errorf("invalid receiver account %q", d.To)
	}
	if d.From == d.To {
		return fmt.Errorf("sender and receiver must differ")
	}
	return nil
}

func (d Descriptor) validateTokenID() error {
	if !ValidEntityID(d.TokenID) {
		return fmt.Errorf("invalid token id %q", d.TokenID)
	}
	return nil
}

func validateMetadata(values [][]byte) error {
	for _, m := range values {
		if len(m) == 0 {
			return fmt.Errorf("metadata must not be empty")
		}
		if len(m) > MaxMetadataBytes {
			return fmt.Errorf("metadata is %d bytes, limit is %d", len(m), MaxMetadataBytes)
		}
	}
	return nil
}
