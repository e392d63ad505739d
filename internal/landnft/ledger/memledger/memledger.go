// Package memledger is an in-process ledger that applies land token transactions to
// local state. It backs the development server and the service tests, and can inject
// failures at any pipeline stage.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
)

// Ledger status codes reported in receipts
const (
	StatusInvalidTokenID   = "INVALID_TOKEN_ID"
	StatusTokenIsPaused    = "TOKEN_IS_PAUSED"
	StatusInvalidNFTID     = "INVALID_NFT_ID"
	StatusNotOwner         = "SENDER_DOES_NOT_OWN_NFT_SERIAL_NO"
	StatusInvalidSignature = "INVALID_SIGNATURE"
	StatusMetadataTooLong  = "METADATA_TOO_LONG"
)

// Stage names a client call that can be made to fail
type Stage string

const (
	StageBuild   Stage = "build"
	StageFreeze  Stage = "freeze"
	StageSign    Stage = "sign"
	StageSubmit  Stage = "submit"
	StageReceipt Stage = "receipt"
)

// ErrUnknownTransaction is returned for receipts of transactions this ledger never saw
var ErrUnknownTransaction = errors.New("memledger: unknown transaction")

const firstTokenNum = 1001

type nft struct {
	owner    string
	metadata []byte
}

type tokenClass struct {
	info       ledger.TokenInfo
	nfts       map[int64]*nft
	nextSerial int64
}

type transaction struct {
	kind   ledger.OperationKind
	desc   ledger.Descriptor
	id     string
	signer ledger.Key
}

func (t *transaction) Kind() ledger.OperationKind { return t.kind }
func (t *transaction) ID() string                 { return t.id }

type record struct {
	receipt ledger.Receipt
	pending int
}

// Ledger is a mutex-guarded simulated ledger
type Ledger struct {
	mu sync.Mutex

	operator string
	now      func() time.Time
	txSeq    int64
	tokenNum int64

	tokens  map[string]*tokenClass
	records map[string]*record

	failures     map[Stage][]error
	lostSubmits  []error
	rejections   []string
	receiptDelay int
	calls        []Stage
}

// New creates an empty ledger. operator is the account that pays for transactions
// and is used as the treasury in tests.
func New(operator string) *Ledger {
	if operator == "" {
		operator = "0.0.2"
	}
	return &Ledger{
		operator: operator,
		now:      time.Now,
		tokenNum: firstTokenNum,
		tokens:   make(map[string]*tokenClass),
		records:  make(map[string]*record),
		failures: make(map[Stage][]error),
	}
}

// Operator returns the paying account id
func (l *Ledger) Operator() string { return l.operator }

// Signers returns keys for both roles that this ledger accepts
func (l *Ledger) Signers() ledger.StaticSigners {
	return ledger.StaticSigners{
		ledger.RoleAdmin:    ledger.StaticKey{KeyRole: ledger.RoleAdmin, Public: "memledger-admin"},
		ledger.RoleOperator: ledger.StaticKey{KeyRole: ledger.RoleOperator, Public: "memledger-operator"},
	}
}

// FailNext makes the next call at stage return err. Calls queue in order.
func (l *Ledger) FailNext(stage Stage, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[stage] = append(l.failures[stage], err)
}

// LoseNextSubmitResponse applies the next submitted transaction but returns err to the
// caller, as when the network accepts a transaction and the response is lost.
func (l *Ledger) LoseNextSubmitResponse(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lostSubmits = append(l.lostSubmits, err)
}

// RejectNextSubmit makes the next submit fail precheck with status
func (l *Ledger) RejectNextSubmit(status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejections = append(l.rejections, status)
}

// SetReceiptDelay keeps each new receipt pending for n polls
func (l *Ledger) SetReceiptDelay(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receiptDelay = n
}

// Calls returns the client calls made so far, in order
func (l *Ledger) Calls() []Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Stage(nil), l.calls...)
}

// CallCount returns how many calls were made at stage
func (l *Ledger) CallCount(stage Stage) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == stage {
			n++
		}
	}
	return n
}

// Build implements ledger.Client
func (l *Ledger) Build(ctx context.Context, d ledger.Descriptor) (ledger.Transaction, error) {
	if err := l.enter(ctx, StageBuild); err != nil {
		return nil, err
	}
	switch d.Kind {
	case ledger.OpRegister, ledger.OpMint, ledger.OpPause, ledger.OpUpdateMetadata, ledger.OpTransfer:
	default:
		return nil, fmt.Errorf("memledger: unsupported operation %q", d.Kind)
	}
	d.Metadata = cloneMetadata(d.Metadata)
	d.SerialNumbers = append([]int64(nil), d.SerialNumbers...)
	return &transaction{kind: d.Kind, desc: d}, nil
}

// Freeze implements ledger.Client
func (l *Ledger) Freeze(ctx context.Context, tx ledger.Transaction) error {
	if err := l.enter(ctx, StageFreeze); err != nil {
		return err
	}
	t, err := own(tx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.id == "" {
		l.txSeq++
		t.id = fmt.Sprintf("%s@%d.%09d", l.operator, l.now().Unix(), l.txSeq)
	}
	return nil
}

// Sign implements ledger.Client
func (l *Ledger) Sign(ctx context.Context, tx ledger.Transaction, key ledger.Key) error {
	if err := l.enter(ctx, StageSign); err != nil {
		return err
	}
	t, err := own(tx)
	if err != nil {
		return err
	}
	if t.id == "" {
		return errors.New("memledger: transaction must be frozen before signing")
	}
	if key == nil {
		return errors.New("memledger: nil signing key")
	}
	t.signer = key
	return nil
}

// Submit implements ledger.Client
func (l *Ledger) Submit(ctx context.Context, tx ledger.Transaction) (ledger.Submission, error) {
	if err := l.enter(ctx, StageSubmit); err != nil {
		return ledger.Submission{}, err
	}
	t, err := own(tx)
	if err != nil {
		return ledger.Submission{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if t.id == "" {
		return ledger.Submission{}, &ledger.StatusError{Status: "TRANSACTION_NOT_FROZEN"}
	}
	if len(l.rejections) > 0 {
		status := l.rejections[0]
		l.rejections = l.rejections[1:]
		return ledger.Submission{}, &ledger.StatusError{Status: status}
	}
	if _, dup := l.records[t.id]; dup {
		return ledger.Submission{}, &ledger.StatusError{Status: "DUPLICATE_TRANSACTION"}
	}

	l.records[t.id] = &record{receipt: l.apply(t), pending: l.receiptDelay}
	if len(l.lostSubmits) > 0 {
		err := l.lostSubmits[0]
		l.lostSubmits = l.lostSubmits[1:]
		return ledger.Submission{}, err
	}
	return ledger.Submission{TransactionID: t.id, NodeID: "0.0.3"}, nil
}

// Receipt implements ledger.Client
func (l *Ledger) Receipt(ctx context.Context, sub ledger.Submission) (ledger.Receipt, error) {
	if err := l.enter(ctx, StageReceipt); err != nil {
		return ledger.Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[sub.TransactionID]
	if !ok {
		return ledger.Receipt{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, sub.TransactionID)
	}
	if rec.pending > 0 {
		rec.pending--
		return ledger.Receipt{}, ledger.ErrReceiptPending
	}
	r := rec.receipt
	r.Serials = append([]int64(nil), r.Serials...)
	return r, nil
}

// TokenInfo implements ledger.StateReader
func (l *Ledger) TokenInfo(ctx context.Context, tokenID string) (ledger.TokenInfo, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TokenInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tc, ok := l.tokens[tokenID]
	if !ok {
		return ledger.TokenInfo{TokenID: tokenID}, nil
	}
	return tc.info, nil
}

// Owner returns the account holding a serial
func (l *Ledger) Owner(tokenID string, serial int64) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.lookup(tokenID, serial)
	if !ok {
		return "", false
	}
	return n.owner, true
}

// Metadata returns the metadata recorded for a serial
func (l *Ledger) Metadata(tokenID string, serial int64) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.lookup(tokenID, serial)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), n.metadata...), true
}

func (l *Ledger) lookup(tokenID string, serial int64) (*nft, bool) {
	tc, ok := l.tokens[tokenID]
	if !ok {
		return nil, false
	}
	n, ok := tc.nfts[serial]
	return n, ok
}

// enter records the call and returns an injected failure or ctx error
func (l *Ledger) enter(ctx context.Context, stage Stage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, stage)
	if queue := l.failures[stage]; len(queue) > 0 {
		l.failures[stage] = queue[1:]
		return queue[0]
	}
	return ctx.Err()
}

// apply executes t against ledger state and returns its receipt. Caller holds l.mu.
func (l *Ledger) apply(t *transaction) ledger.Receipt {
	if t.signer == nil || t.signer.Role() != ledger.RoleFor(t.kind) {
		return ledger.Receipt{Status: StatusInvalidSignature}
	}
	d := t.desc

	if t.kind == ledger.OpRegister {
		id := fmt.Sprintf("0.0.%d", l.tokenNum)
		l.tokenNum++
		l.tokens[id] = &tokenClass{
			info: ledger.TokenInfo{
				TokenID:  id,
				Exists:   true,
				Name:     d.Name,
				Symbol:   d.Symbol,
				Treasury: d.Treasury,
			},
			nfts:       make(map[int64]*nft),
			nextSerial: 1,
		}
		return ledger.Receipt{Status: ledger.StatusSuccess, TokenID: id}
	}

	tc, ok := l.tokens[d.TokenID]
	if !ok {
		return ledger.Receipt{Status: StatusInvalidTokenID}
	}
	// metadata updates stay allowed on a paused token
	if tc.info.Paused && t.kind != ledger.OpUpdateMetadata {
		return ledger.Receipt{Status: StatusTokenIsPaused}
	}

	switch t.kind {
	case ledger.OpMint:
		for _, m := range d.Metadata {
			if len(m) > ledger.MaxMetadataBytes {
				return ledger.Receipt{Status: StatusMetadataTooLong}
			}
		}
		serials := make([]int64, 0, len(d.Metadata))
		for _, m := range d.Metadata {
			serial := tc.nextSerial
			tc.nextSerial++
			tc.nfts[serial] = &nft{owner: tc.info.Treasury, metadata: m}
			serials = append(serials, serial)
		}
		tc.info.TotalSupply += uint64(len(serials))
		return ledger.Receipt{Status: ledger.StatusSuccess, TokenID: d.TokenID, Serials: serials}

	case ledger.OpPause:
		tc.info.Paused = true
		return ledger.Receipt{Status: ledger.StatusSuccess, TokenID: d.TokenID}

	case ledger.OpUpdateMetadata:
		if len(d.Metadata) != 1 || len(d.Metadata[0]) > ledger.MaxMetadataBytes {
			return ledger.Receipt{Status: StatusMetadataTooLong}
		}
		for _, s := range d.SerialNumbers {
			if _, ok := tc.nfts[s]; !ok {
				return ledger.Receipt{Status: StatusInvalidNFTID}
			}
		}
		for _, s := range d.SerialNumbers {
			tc.nfts[s].metadata = d.Metadata[0]
		}
		return ledger.Receipt{Status: ledger.StatusSuccess, TokenID: d.TokenID, Serials: d.SerialNumbers}

	case ledger.OpTransfer:
		serial := d.SerialNumbers[0]
		n, ok := tc.nfts[serial]
		if !ok {
			return ledger.Receipt{Status: StatusInvalidNFTID}
		}
		if n.owner != d.From {
			return ledger.Receipt{Status: StatusNotOwner}
		}
		n.owner = d.To
		return ledger.Receipt{Status: ledger.StatusSuccess, TokenID: d.TokenID, Serials: []int64{serial}}
	}
	return ledger.Receipt{Status: "NOT_SUPPORTED"}
}

func own(tx ledger.Transaction) (*transaction, error) {
	t, ok := tx.(*transaction)
	if !ok {
		return nil, fmt.Errorf("memledger: foreign transaction %T", tx)
	}
	return t, nil
}

func cloneMetadata(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, m := range in {
		out[i] = append([]byte(nil), m...)
	}
	return out
}
