package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func registerDescriptor() Descriptor {
	return Descriptor{
		Kind:       OpRegister,
		Name:       "Land Parcel Token",
		Symbol:     "LAND",
		SupplyType: SupplyInfinite,
		Treasury:   "0.0.2",
		AdminKey:   "admin-pub",
		PauseKey:   "admin-pub",
		SupplyKey:  "admin-pub",
	}
}

func TestValidateRegister(t *testing.T) {
	assert.NoError(t, registerDescriptor().Validate())

	short := registerDescriptor()
	short.Name = "ab"
	assert.Error(t, short.Validate())

	long := registerDescriptor()
	long.Name = strings.Repeat("x", 51)
	assert.Error(t, long.Validate())

	noSymbol := registerDescriptor()
	noSymbol.Symbol = ""
	assert.Error(t, noSymbol.Validate())

	longSymbol := registerDescriptor()
	longSymbol.Symbol = "ABCDEFGHIJK"
	assert.Error(t, longSymbol.Validate())

	finite := registerDescriptor()
	finite.SupplyType = "finite"
	assert.Error(t, finite.Validate())

	blank := registerDescriptor()
	blank.Name = "     "
	assert.ErrorContains(t, blank.Validate(), "token name")

	blankSymbol := registerDescriptor()
	blankSymbol.Symbol = "  "
	assert.ErrorContains(t, blankSymbol.Validate(), "token symbol")
}

func TestValidateTransfer(t *testing.T) {
	valid := Descriptor{Kind: OpTransfer, TokenID: "0.0.1001", SerialNumbers: []int64{1}, From: "0.0.10", To: "0.0.20"}
	assert.NoError(t, valid.Validate())

	same := valid
	same.To = same.From
	assert.ErrorContains(t, same.Validate(), "must differ")

	for _, serial := range []int64{0, -3} {
		bad := valid
		bad.SerialNumbers = []int64{serial}
		assert.ErrorContains(t, bad.Validate(), "positive")
	}

	badAccount := valid
	badAccount.From = "alice"
	assert.Error(t, badAccount.Validate())
}

func TestValidateMintAndUpdate(t *testing.T) {
	mint := Descriptor{Kind: OpMint, TokenID: "0.0.1001", Metadata: [][]byte{[]byte("ipfs://bafk")}}
	assert.NoError(t, mint.Validate())

	tooBig := mint
	tooBig.Metadata = [][]byte{[]byte(strings.Repeat("a", MaxMetadataBytes+1))}
	assert.Error(t, tooBig.Validate())

	update := Descriptor{Kind: OpUpdateMetadata, TokenID: "0.0.1001", SerialNumbers: []int64{1, 2}, Metadata: [][]byte{[]byte("ipfs://bafk")}}
	assert.NoError(t, update.Validate())

	noSerials := update
	noSerials.SerialNumbers = nil
	assert.Error(t, noSerials.Validate())

	assert.Error(t, Descriptor{Kind: OpPause, TokenID: "123456"}.Validate())
	assert.Error(t, Descriptor{}.Validate())
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleOperator, RoleFor(OpTransfer))
	for _, k := range []OperationKind{OpRegister, OpMint, OpPause, OpUpdateMetadata} {
		assert.Equal(t, RoleAdmin, RoleFor(k))
	}
}

func TestValidEntityID(t *testing.T) {
	assert.True(t, ValidEntityID("0.0.1001"))
	assert.True(t, ValidEntityID("0.0.1001-abcde"))
	assert.False(t, ValidEntityID("0.0"))
	assert.False(t, ValidEntityID(""))
}
