package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(MintFailed, "mint", errors.New("boom")).WithStatus("TOKEN_IS_PAUSED")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, errors.Is(wrapped, ErrMintFailed))
	assert.False(t, errors.Is(wrapped, ErrTransferFailed))
	assert.Equal(t, MintFailed, KindOf(wrapped))
}

func TestErrorMessageCarriesDetail(t *testing.T) {
	err := New(SubmissionUnconfirmed, "transfer", errors.New("connection reset")).
		WithTransaction("0.0.2@1700000000.000000001")

	assert.Equal(t,
		"transfer: SubmissionUnconfirmed [tx 0.0.2@1700000000.000000001]: connection reset",
		err.Error())
}

func TestRetryClasses(t *testing.T) {
	cases := map[Kind]Retry{
		DescriptorInvalid:     RetryNever,
		LedgerUnreachable:     RetrySafe,
		PublishFailed:         RetrySafe,
		Canceled:              RetrySafe,
		SubmissionUnconfirmed: RetryAmbiguous,
		ConfirmationTimeout:   RetryAmbiguous,
		TransferFailed:        RetryNever,
		InvalidState:          RetryNever,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Retry(), string(kind))
	}

	assert.Equal(t, RetryNever, RetryOf(errors.New("plain")))
	assert.Equal(t, RetryAmbiguous, RetryOf(New(ConfirmationTimeout, "pause", nil)))
}

func TestWithStatusDoesNotMutateOriginal(t *testing.T) {
	base := New(UpdateFailed, "update", nil)
	withStatus := base.WithStatus("INVALID_NFT_ID")

	assert.Empty(t, base.Status)
	assert.Equal(t, "INVALID_NFT_ID", withStatus.Status)
}
