// Package hederaledger implements the ledger client on the Hedera token service
package hederaledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
)

// Config configures the network client
type Config struct {
	Network         string        `json:"network"`
	OperatorID      string        `json:"operator_id"`
	OperatorKey     string        `json:"-"`
	AdminKey        string        `json:"-"`
	MaxTransaction  float64       `json:"max_transaction_fee_hbar"`
	MaxQueryPayment float64       `json:"max_query_payment_hbar"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// Ledger talks to a Hedera network as one operator account
type Ledger struct {
	client   *hedera.Client
	operator hedera.AccountID
	keys     *KeyRing
	logger   *zap.Logger
}

// New connects a client to config.Network and sets the operator
func New(config Config, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys, err := NewKeyRing(config.OperatorKey, config.AdminKey)
	if err != nil {
		return nil, err
	}
	operator, err := hedera.AccountIDFromString(config.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account %q: %w", config.OperatorID, err)
	}

	client, err := hedera.ClientForName(config.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for network %q: %w", config.Network, err)
	}
	client.SetOperator(operator, keys.operator.private)

	if config.MaxTransaction > 0 {
		if err := client.SetDefaultMaxTransactionFee(hedera.NewHbar(config.MaxTransaction)); err != nil {
			return nil, fmt.Errorf("failed to set max transaction fee: %w", err)
		}
	}
	if config.MaxQueryPayment > 0 {
		if err := client.SetDefaultMaxQueryPayment(hedera.NewHbar(config.MaxQueryPayment)); err != nil {
			return nil, fmt.Errorf("failed to set max query payment: %w", err)
		}
	}
	if config.RequestTimeout > 0 {
		timeout := config.RequestTimeout
		client.SetRequestTimeout(&timeout)
	}

	logger.Info("Ledger client ready",
		zap.String("network", config.Network),
		zap.String("operator", operator.String()))

	return &Ledger{
		client:   client,
		operator: operator,
		keys:     keys,
		logger:   logger,
	}, nil
}

// Operator returns the operator account id
func (l *Ledger) Operator() string { return l.operator.String() }

// Signers returns the key ring
func (l *Ledger) Signers() *KeyRing { return l.keys }

// Close releases network connections
func (l *Ledger) Close() error {
	return l.client.Close()
}

// Build implements ledger.Client
func (l *Ledger) Build(ctx context.Context, d ledger.Descriptor) (ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case ledger.OpRegister:
		return l.buildRegister(d)
	case ledger.OpMint:
		tokenID, err := hedera.TokenIDFromString(d.TokenID)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", d.TokenID, err)
		}
		tx := hedera.NewTokenMintTransaction().
			SetTokenID(tokenID).
			SetMetadatas(d.Metadata)
		return wrap[*hedera.TokenMintTransaction](d.Kind, d.Memo, l.client, tx), nil
	case ledger.OpPause:
		tokenID, err := hedera.TokenIDFromString(d.TokenID)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", d.TokenID, err)
		}
		tx := hedera.NewTokenPauseTransaction().SetTokenID(tokenID)
		return wrap[*hedera.TokenPauseTransaction](d.Kind, d.Memo, l.client, tx), nil
	case ledger.OpUpdateMetadata:
		tokenID, err := hedera.TokenIDFromString(d.TokenID)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", d.TokenID, err)
		}
		if len(d.Metadata) != 1 {
			return nil, fmt.Errorf("update requires exactly one metadata value")
		}
		tx := hedera.NewTokenUpdateNftsTransaction().
			SetTokenID(tokenID).
			SetSerialNumbers(d.SerialNumbers).
			SetMetadata(d.Metadata[0])
		return wrap[*hedera.TokenUpdateNfts](d.Kind, d.Memo, l.client, tx), nil
	case ledger.OpTransfer:
		return l.buildTransfer(d)
	default:
		return nil, fmt.Errorf("unsupported operation %q", d.Kind)
	}
}

func (l *Ledger) buildRegister(d ledger.Descriptor) (ledger.Transaction, error) {
	treasury, err := hedera.AccountIDFromString(d.Treasury)
	if err != nil {
		return nil, fmt.Errorf("invalid treasury %q: %w", d.Treasury, err)
	}
	adminKey, err := hedera.PublicKeyFromString(d.AdminKey)
	if err != nil {
		return nil, fmt.Errorf("invalid admin key: %w", err)
	}
	pauseKey, err := hedera.PublicKeyFromString(d.PauseKey)
	if err != nil {
		return nil, fmt.Errorf("invalid pause key: %w", err)
	}
	supplyKey, err := hedera.PublicKeyFromString(d.SupplyKey)
	if err != nil {
		return nil, fmt.Errorf("invalid supply key: %w", err)
	}

	tx := hedera.NewTokenCreateTransaction().
		SetTokenName(d.Name).
		SetTokenSymbol(d.Symbol).
		SetTokenType(hedera.TokenTypeNonFungibleUnique).
		SetSupplyType(hedera.TokenSupplyTypeInfinite).
		SetDecimals(0).
		SetInitialSupply(0).
		SetTreasuryAccountID(treasury).
		SetAdminKey(adminKey).
		SetPauseKey(pauseKey).
		SetSupplyKey(supplyKey)
	return wrap[*hedera.TokenCreateTransaction](d.Kind, d.Memo, l.client, tx), nil
}

func (l *Ledger) buildTransfer(d ledger.Descriptor) (ledger.Transaction, error) {
	tokenID, err := hedera.TokenIDFromString(d.TokenID)
	if err != nil {
		return nil, fmt.Errorf("invalid token id %q: %w", d.TokenID, err)
	}
	from, err := hedera.AccountIDFromString(d.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", d.From, err)
	}
	to, err := hedera.AccountIDFromString(d.To)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver %q: %w", d.To, err)
	}
	if len(d.SerialNumbers) != 1 {
		return nil, fmt.Errorf("transfer moves exactly one serial number")
	}

	tx := hedera.NewTransferTransaction().
		AddNftTransfer(hedera.NftID{TokenID: tokenID, SerialNumber: d.SerialNumbers[0]}, from, to)
	return wrap[*hedera.TransferTransaction](d.Kind, d.Memo, l.client, tx), nil
}

// Freeze implements ledger.Client
func (l *Ledger) Freeze(ctx context.Context, tx ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := own(tx)
	if err != nil {
		return err
	}
	return t.freeze()
}

// Sign implements ledger.Client
func (l *Ledger) Sign(ctx context.Context, tx ledger.Transaction, key ledger.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := own(tx)
	if err != nil {
		return err
	}
	k, ok := key.(*Key)
	if !ok || k == nil {
		return errors.New("signing key holds no private material")
	}
	if !t.frozen {
		return errors.New("transaction must be frozen before signing")
	}
	t.sign(k.private)
	return nil
}

// Submit implements ledger.Client
func (l *Ledger) Submit(ctx context.Context, tx ledger.Transaction) (ledger.Submission, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Submission{}, err
	}
	t, err := own(tx)
	if err != nil {
		return ledger.Submission{}, err
	}
	resp, err := await(ctx, t.execute)
	if err != nil {
		var precheck hedera.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) {
			return ledger.Submission{}, &ledger.StatusError{Status: precheck.Status.String()}
		}
		return ledger.Submission{}, err
	}
	return ledger.Submission{
		TransactionID: resp.TransactionID.String(),
		NodeID:        resp.NodeID.String(),
	}, nil
}

// Receipt implements ledger.Client
func (l *Ledger) Receipt(ctx context.Context, sub ledger.Submission) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}
	txID, err := hedera.TransactionIdFromString(sub.TransactionID)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("invalid transaction id %q: %w", sub.TransactionID, err)
	}
	query := hedera.NewTransactionReceiptQuery().SetTransactionID(txID)
	receipt, err := await(ctx, func() (hedera.TransactionReceipt, error) {
		return query.Execute(l.client)
	})
	if err != nil && ctx.Err() != nil {
		return ledger.Receipt{}, err
	}
	return receiptFrom(receipt, err)
}

// TokenInfo implements ledger.StateReader
func (l *Ledger) TokenInfo(ctx context.Context, tokenID string) (ledger.TokenInfo, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TokenInfo{}, err
	}
	id, err := hedera.TokenIDFromString(tokenID)
	if err != nil {
		return ledger.TokenInfo{}, fmt.Errorf("invalid token id %q: %w", tokenID, err)
	}
	query := hedera.NewTokenInfoQuery().SetTokenID(id)
	info, err := await(ctx, func() (hedera.TokenInfo, error) {
		return query.Execute(l.client)
	})
	if err != nil {
		var precheck hedera.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) && precheck.Status == hedera.StatusInvalidTokenID {
			return ledger.TokenInfo{TokenID: tokenID}, nil
		}
		return ledger.TokenInfo{}, fmt.Errorf("token info query failed: %w", err)
	}

	out := ledger.TokenInfo{
		TokenID:     tokenID,
		Exists:      true,
		Name:        info.Name,
		Symbol:      info.Symbol,
		Treasury:    info.Treasury.String(),
		TotalSupply: info.TotalSupply,
	}
	if info.PauseStatus != nil {
		out.Paused = *info.PauseStatus
	}
	return out, nil
}

// receiptFrom maps a receipt query result onto the ledger receipt. A receipt status
// error is a definitive answer; unknown and not-found statuses mean keep polling.
func receiptFrom(receipt hedera.TransactionReceipt, err error) (ledger.Receipt, error) {
	if err != nil {
		var failed hedera.ErrHederaReceiptStatus
		if errors.As(err, &failed) {
			return ledger.Receipt{Status: failed.Status.String()}, nil
		}
		var precheck hedera.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) && pendingStatus(precheck.Status) {
			return ledger.Receipt{}, ledger.ErrReceiptPending
		}
		return ledger.Receipt{}, err
	}
	if pendingStatus(receipt.Status) {
		return ledger.Receipt{}, ledger.ErrReceiptPending
	}

	out := ledger.Receipt{
		Status:  receipt.Status.String(),
		Serials: receipt.SerialNumbers,
	}
	if receipt.TokenID != nil {
		out.TokenID = receipt.TokenID.String()
	}
	return out, nil
}

func pendingStatus(s hedera.Status) bool {
	return s == hedera.StatusUnknown || s == hedera.StatusReceiptNotFound || s == hedera.StatusBusy
}
