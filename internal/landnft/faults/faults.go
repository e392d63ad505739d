package faults

import (
	"errors"
	"fmt"
)

// Kind identifies a lifecycle failure category
type Kind string

const (
	DescriptorInvalid     Kind = "DescriptorInvalid"
	LedgerUnreachable     Kind = "LedgerUnreachable"
	SignerUnavailable     Kind = "SignerUnavailable"
	Canceled              Kind = "Canceled"
	SubmissionUnconfirmed Kind = "SubmissionUnconfirmed"
	ConfirmationTimeout   Kind = "ConfirmationTimeout"
	PublishFailed         Kind = "PublishFailed"
	InvalidState          Kind = "InvalidState"
	RegistrationFailed    Kind = "RegistrationFailed"
	MintFailed            Kind = "MintFailed"
	UpdateFailed          Kind = "UpdateFailed"
	TransferFailed        Kind = "TransferFailed"
)

// Retry tells a caller what resubmitting the same request would mean
type Retry string

const (
	// RetrySafe means no ledger side effect has happened
	RetrySafe Retry = "safe"
	// RetryAmbiguous means the transaction may have landed; query it before resubmitting
	RetryAmbiguous Retry = "ambiguous"
	// RetryNever means the failure is terminal for this request
	RetryNever Retry = "never"
)

// Retry returns the retry class of the kind
func (k Kind) Retry() Retry {
	switch k {
	case LedgerUnreachable, PublishFailed, Canceled:
		return RetrySafe
	case SubmissionUnconfirmed, ConfirmationTimeout:
		return RetryAmbiguous
	default:
		return RetryNever
	}
}

// Error is a lifecycle failure with enough detail for the caller to decide on a retry
type Error struct {
	Kind          Kind
	Op            string
	Status        string
	TransactionID string
	Err           error
}

// Sentinels for errors.Is
var (
	ErrDescriptorInvalid     = &Error{Kind: DescriptorInvalid}
	ErrLedgerUnreachable     = &Error{Kind: LedgerUnreachable}
	ErrSignerUnavailable     = &Error{Kind: SignerUnavailable}
	ErrCanceled              = &Error{Kind: Canceled}
	ErrSubmissionUnconfirmed = &Error{Kind: SubmissionUnconfirmed}
	ErrConfirmationTimeout   = &Error{Kind: ConfirmationTimeout}
	ErrPublishFailed         = &Error{Kind: PublishFailed}
	ErrInvalidState          = &Error{Kind: InvalidState}
	ErrRegistrationFailed    = &Error{Kind: RegistrationFailed}
	ErrMintFailed            = &Error{Kind: MintFailed}
	ErrUpdateFailed          = &Error{Kind: UpdateFailed}
	ErrTransferFailed        = &Error{Kind: TransferFailed}
)

// New creates an error of the given kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates an error of the given kind with a formatted cause
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != "" {
		msg += " (status " + e.Status + ")"
	}
	if e.TransactionID != "" {
		msg += " [tx " + e.TransactionID + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so that errors.Is(err, ErrMintFailed) works for any op
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithStatus returns a copy carrying the raw ledger status
func (e *Error) WithStatus(status string) *Error {
	c := *e
	c.Status = status
	return &c
}

// WithTransaction returns a copy carrying the ledger transaction id
func (e *Error) WithTransaction(id string) *Error {
	c := *e
	c.TransactionID = id
	return &c
}

// KindOf returns the kind of the outermost *Error in the chain, or "" if there is none
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// As returns the outermost *Error in the chain
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// RetryOf classifies any error; unknown errors are treated as terminal
func RetryOf(err error) Retry {
	if k := KindOf(err); k != "" {
		return k.Retry()
	}
	return RetryNever
}
