package hederaledger

import (
	"context"
	"fmt"

	"github.com/hashgraph/hedera-sdk-go/v2"

	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
)

// sdkTransaction is the method set shared by the SDK's transaction builders
type sdkTransaction[T any] interface {
	FreezeWith(client *hedera.Client) (T, error)
	Sign(privateKey hedera.PrivateKey) T
	Execute(client *hedera.Client) (hedera.TransactionResponse, error)
	GetTransactionID() hedera.TransactionID
	SetTransactionMemo(memo string) T
}

// transaction erases the concrete SDK builder type
type transaction struct {
	kind    ledger.OperationKind
	frozen  bool
	id      string
	freezeF func() (hedera.TransactionID, error)
	signF   func(hedera.PrivateKey)
	execF   func() (hedera.TransactionResponse, error)
}

func wrap[T any](kind ledger.OperationKind, memo string, client *hedera.Client, tx sdkTransaction[T]) *transaction {
	if memo != "" {
		tx.SetTransactionMemo(memo)
	}
	return &transaction{
		kind: kind,
		freezeF: func() (hedera.TransactionID, error) {
			if _, err := tx.FreezeWith(client); err != nil {
				return hedera.TransactionID{}, err
			}
			return tx.GetTransactionID(), nil
		},
		signF: func(key hedera.PrivateKey) { tx.Sign(key) },
		execF: func() (hedera.TransactionResponse, error) { return tx.Execute(client) },
	}
}

func (t *transaction) Kind() ledger.OperationKind { return t.kind }
func (t *transaction) ID() string                 { return t.id }

func (t *transaction) freeze() error {
	if t.frozen {
		return nil
	}
	id, err := t.freezeF()
	if err != nil {
		return err
	}
	t.frozen = true
	if id.AccountID != nil && id.ValidStart != nil {
		t.id = id.String()
	}
	return nil
}

func (t *transaction) sign(key hedera.PrivateKey) { t.signF(key) }

func (t *transaction) execute() (hedera.TransactionResponse, error) { return t.execF() }

func own(tx ledger.Transaction) (*transaction, error) {
	t, ok := tx.(*transaction)
	if !ok {
		return nil, fmt.Errorf("foreign transaction %T", tx)
	}
	return t, nil
}

// await runs a blocking SDK call and stops waiting once ctx is done. The SDK ignores
// contexts, so the call itself keeps running until the client's request timeout; only
// read-only queries and already-identified transactions are passed through here.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
