package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
)

// OutcomeStatus is the interpreted result of one pipeline execution
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "Success"
	StatusFailed  OutcomeStatus = "Failed"
)

// Outcome is the result of a transaction that reached a definitive ledger answer
type Outcome struct {
	Status        OutcomeStatus `json:"status"`
	ReceiptStatus string        `json:"ledger_receipt_status"`
	AssignedID    string        `json:"assigned_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Serials       []int64       `json:"serials,omitempty"`
}

// Succeeded reports whether the ledger applied the transaction
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Stage names a pipeline step
type Stage string

const (
	StageBuild   Stage = "build"
	StageFreeze  Stage = "freeze"
	StageSign    Stage = "sign"
	StageSubmit  Stage = "submit"
	StageConfirm Stage = "confirm"
)

// Config controls retry and timeout policy
type Config struct {
	// FreezeAttempts bounds retries of the freeze stage; nothing has reached the ledger yet
	FreezeAttempts int           `json:"freeze_attempts"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
	RetryMaxDelay  time.Duration `json:"retry_max_delay"`
	RetryFactor    float64       `json:"retry_factor"`

	SubmitTimeout  time.Duration `json:"submit_timeout"`
	ConfirmTimeout time.Duration `json:"confirm_timeout"`
	PollInterval   time.Duration `json:"poll_interval"`
	MaxPollDelay   time.Duration `json:"max_poll_delay"`
}

// DefaultConfig returns the production policy
func DefaultConfig() Config {
	return Config{
		FreezeAttempts: 3,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
		RetryFactor:    2.0,
		SubmitTimeout:  30 * time.Second,
		ConfirmTimeout: 2 * time.Minute,
		PollInterval:   500 * time.Millisecond,
		MaxPollDelay:   5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FreezeAttempts <= 0 {
		c.FreezeAttempts = d.FreezeAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = d.RetryMaxDelay
	}
	if c.RetryFactor <= 1 {
		c.RetryFactor = d.RetryFactor
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = d.SubmitTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = d.ConfirmTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxPollDelay <= 0 {
		c.MaxPollDelay = d.MaxPollDelay
	}
	if c.MaxPollDelay < c.PollInterval {
		c.MaxPollDelay = c.PollInterval
	}
	return c
}

// Pipeline runs build -> freeze -> sign -> submit -> confirm against a ledger client.
// It holds no per-transaction state and is safe for concurrent use.
type Pipeline struct {
	client  ledger.Client
	config  Config
	metrics *Metrics
	logger  *zap.Logger
}

// New creates a pipeline. metrics may be nil.
func New(client ledger.Client, config Config, metrics *Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client:  client,
		config:  config.withDefaults(),
		metrics: metrics,
		logger:  logger,
	}
}

// Execute runs one descriptor through all stages.
//
// A confirmed ledger answer, success or not, is returned as an Outcome with a nil
// error. Errors are reserved for requests that never reached a definitive answer:
// DescriptorInvalid, SignerUnavailable, LedgerUnreachable and Canceled before submit,
// SubmissionUnconfirmed and ConfirmationTimeout after it.
func (p *Pipeline) Execute(ctx context.Context, d ledger.Descriptor, signers ledger.SignerProvider) (Outcome, error) {
	op := string(d.Kind)
	started := time.Now()
	outcome, err := p.execute(ctx, d, signers)
	p.metrics.observeExecution(op, outcome, err, time.Since(started))
	return outcome, err
}

func (p *Pipeline) execute(ctx context.Context, d ledger.Descriptor, signers ledger.SignerProvider) (Outcome, error) {
	op := string(d.Kind)
	log := p.logger.With(zap.String("operation", op), zap.String("token_id", d.TokenID))

	// Build
	if err := d.Validate(); err != nil {
		return Outcome{}, faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, faults.New(faults.Canceled, op, err)
	}
	var tx ledger.Transaction
	err := p.stage(op, StageBuild, func() error {
		var err error
		tx, err = p.client.Build(ctx, d)
		return err
	})
	if err != nil {
		return Outcome{}, faults.New(faults.DescriptorInvalid, op, err)
	}
	log.Debug("Transaction built")

	// Freeze
	err = withRetry(ctx, p.retryPolicy(), func(attempt int, err error) {
		log.Warn("Freeze failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}, func(ctx context.Context) error {
		return p.stage(op, StageFreeze, func() error {
			return p.client.Freeze(ctx, tx)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, faults.New(faults.Canceled, op, err)
		}
		return Outcome{}, faults.New(faults.LedgerUnreachable, op, err)
	}
	txID := tx.ID()
	log = log.With(zap.String("transaction_id", txID))
	log.Debug("Transaction frozen")

	// Sign
	key, err := signers.Key(ledger.RoleFor(d.Kind))
	if err != nil {
		return Outcome{}, faults.New(faults.SignerUnavailable, op, err).WithTransaction(txID)
	}
	if err := p.stage(op, StageSign, func() error { return p.client.Sign(ctx, tx, key) }); err != nil {
		return Outcome{}, faults.New(faults.SignerUnavailable, op, err).WithTransaction(txID)
	}
	log.Debug("Transaction signed", zap.String("signer_role", string(key.Role())))

	// Last point where cancellation is free of side effects.
	if err := ctx.Err(); err != nil {
		return Outcome{}, faults.New(faults.Canceled, op, err).WithTransaction(txID)
	}

	// Submit. From here on the caller's cancellation no longer applies: an in-flight
	// transaction must still be observed.
	detached := context.WithoutCancel(ctx)
	submitCtx, cancelSubmit := context.WithTimeout(detached, p.config.SubmitTimeout)
	var sub ledger.Submission
	err = p.stage(op, StageSubmit, func() error {
		var err error
		sub, err = p.client.Submit(submitCtx, tx)
		return err
	})
	cancelSubmit()
	if err != nil {
		var rejected *ledger.StatusError
		if errors.As(err, &rejected) {
			log.Warn("Transaction rejected by ledger", zap.String("status", rejected.Status))
			return Outcome{Status: StatusFailed, ReceiptStatus: rejected.Status, TransactionID: txID}, nil
		}
		log.Error("Submission unconfirmed", zap.Error(err))
		return Outcome{}, faults.New(faults.SubmissionUnconfirmed, op, err).WithTransaction(txID)
	}
	if sub.TransactionID == "" {
		sub.TransactionID = txID
	}
	log.Debug("Transaction submitted", zap.String("node_id", sub.NodeID))

	// Confirm
	var receipt ledger.Receipt
	err = p.stage(op, StageConfirm, func() error {
		var err error
		receipt, err = p.confirm(detached, sub)
		return err
	})
	if err != nil {
		log.Error("Confirmation timed out", zap.Error(err))
		return Outcome{}, faults.New(faults.ConfirmationTimeout, op, err).WithTransaction(sub.TransactionID)
	}

	outcome := Outcome{
		Status:        StatusFailed,
		ReceiptStatus: receipt.Status,
		TransactionID: sub.TransactionID,
	}
	if receipt.Successful() {
		outcome.Status = StatusSuccess
		outcome.AssignedID = receipt.TokenID
		outcome.Serials = receipt.Serials
	}
	log.Debug("Transaction confirmed", zap.String("status", receipt.Status))
	return outcome, nil
}

// confirm polls for the receipt until one arrives or the confirm budget runs out
func (p *Pipeline) confirm(ctx context.Context, sub ledger.Submission) (ledger.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.ConfirmTimeout)
	defer cancel()

	delay := p.config.PollInterval
	var lastErr error
	for {
		receipt, err := p.client.Receipt(ctx, sub)
		if err == nil && receipt.Status != "" {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ledger.ErrReceiptPending) {
			lastErr = err
			p.logger.Debug("Receipt fetch failed",
				zap.String("transaction_id", sub.TransactionID), zap.Error(err))
		}
		if err := sleep(ctx, delay); err != nil {
			if lastErr != nil {
				return ledger.Receipt{}, errors.Join(err, lastErr)
			}
			return ledger.Receipt{}, err
		}
		delay = nextDelay(delay, p.config.RetryFactor, p.config.MaxPollDelay)
	}
}

func (p *Pipeline) stage(op string, s Stage, fn func() error) error {
	started := time.Now()
	err := fn()
	p.metrics.observeStage(op, s, err, time.Since(started))
	return err
}

func (p *Pipeline) retryPolicy() retryPolicy {
	return retryPolicy{
		attempts: p.config.FreezeAttempts,
		base:     p.config.RetryBaseDelay,
		max:      p.config.RetryMaxDelay,
		factor:   p.config.RetryFactor,
	}
}
