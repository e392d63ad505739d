package landnft

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/audit"
	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
	"digiland/land-registry/land-registry-backend/internal/landnft/metadata"
	"digiland/land-registry/land-registry-backend/internal/landnft/pipeline"
	"digiland/land-registry/land-registry-backend/pkg/workflows"
)

// Service exposes one operation per land token lifecycle transition
type Service interface {
	RegisterLandToken(ctx context.Context, name, symbol string) (string, error)
	MintLandToken(ctx context.Context, tokenID string, parcel metadata.LandParcel) (*MintResult, error)
	PauseToken(ctx context.Context, tokenID string) bool
	UpdateTokenMetadata(ctx context.Context, tokenID string, serials []int64, ref metadata.Reference) error
	UpdateTokenMetadataFromParcel(ctx context.Context, tokenID string, serials []int64, parcel metadata.LandParcel) (metadata.Reference, error)
	TransferLand(ctx context.Context, req TransferRequest) error

	TransactionStatus(ctx context.Context, transactionID string) (*TransactionStatus, error)
	TokenState(ctx context.Context, tokenID string) (*LandToken, error)
}

// Dependencies are the long-lived collaborators shared by all requests
type Dependencies struct {
	Pipeline  *pipeline.Pipeline
	Publisher *metadata.Publisher
	Ledger    ledger.Client
	Signers   ledger.SignerProvider
	// States is optional; without it lifecycle rules are left to the ledger
	States ledger.StateReader
	Audit  *audit.Recorder
}

type ServiceConfig struct {
	// Treasury receives newly minted units
	Treasury string `json:"treasury"`
	// EnforceStateMachine checks lifecycle rules locally before submitting
	EnforceStateMachine bool `json:"enforce_state_machine"`
}

type tokenService struct {
	pipeline  *pipeline.Pipeline
	publisher *metadata.Publisher
	client    ledger.Client
	signers   ledger.SignerProvider
	states    ledger.StateReader
	audit     *audit.Recorder
	machine   *workflows.StateMachine
	config    ServiceConfig
	logger    *zap.Logger
}

func NewService(deps Dependencies, config *ServiceConfig, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := ServiceConfig{}
	if config != nil {
		cfg = *config
	}
	return &tokenService{
		pipeline:  deps.Pipeline,
		publisher: deps.Publisher,
		client:    deps.Ledger,
		signers:   deps.Signers,
		states:    deps.States,
		audit:     deps.Audit,
		machine:   workflows.NewStateMachine(),
		config:    cfg,
		logger:    logger,
	}
}

func (s *tokenService) RegisterLandToken(ctx context.Context, name, symbol string) (string, error) {
	const op = "register"
	if err := ledger.ValidateTokenClass(name, symbol); err != nil {
		return "", faults.New(faults.DescriptorInvalid, op, err)
	}
	key, err := s.signers.Key(ledger.RoleAdmin)
	if err != nil {
		return "", faults.New(faults.SignerUnavailable, op, err)
	}
	adminKey := key.PublicKey()
	d := ledger.Descriptor{
		Kind:       ledger.OpRegister,
		Name:       name,
		Symbol:     symbol,
		SupplyType: ledger.SupplyInfinite,
		Treasury:   s.config.Treasury,
		AdminKey:   adminKey,
		PauseKey:   adminKey,
		SupplyKey:  adminKey,
	}
	if err := d.Validate(); err != nil {
		return "", faults.New(faults.DescriptorInvalid, op, err)
	}

	outcome, err := s.execute(ctx, d, "")
	if err != nil {
		return "", err
	}
	if !outcome.Succeeded() {
		return "", confirmedFailure(faults.RegistrationFailed, op, outcome)
	}
	s.logger.Info("Land token registered",
		zap.String("token_id", outcome.AssignedID),
		zap.String("name", name),
		zap.String("symbol", symbol))
	return outcome.AssignedID, nil
}

func (s *tokenService) MintLandToken(ctx context.Context, tokenID string, parcel metadata.LandParcel) (*MintResult, error) {
	const op = "mint"
	if !ledger.ValidEntityID(tokenID) {
		return nil, faults.Newf(faults.DescriptorInvalid, op, "invalid token id %q", tokenID)
	}
	if err := parcel.Validate(); err != nil {
		return nil, faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := s.checkState(ctx, op, tokenID, workflows.OpMint); err != nil {
		return nil, err
	}

	pub, err := s.publisher.Publish(ctx, parcel)
	if err != nil {
		return nil, err
	}
	ref, err := pub.Consume()
	if err != nil {
		return nil, faults.New(faults.DescriptorInvalid, op, err)
	}

	d := ledger.Descriptor{
		Kind:     ledger.OpMint,
		TokenID:  tokenID,
		Metadata: [][]byte{ref.Bytes()},
	}
	outcome, err := s.execute(ctx, d, ref.String())
	if err != nil {
		return nil, err
	}
	if !outcome.Succeeded() {
		return nil, confirmedFailure(faults.MintFailed, op, outcome)
	}
	s.logger.Info("Land token minted",
		zap.String("token_id", tokenID),
		zap.Int64s("serials", outcome.Serials),
		zap.String("reference", ref.String()))
	return &MintResult{
		TokenID:       tokenID,
		Serials:       outcome.Serials,
		Reference:     ref,
		GatewayURL:    pub.URL(),
		TransactionID: outcome.TransactionID,
	}, nil
}

// PauseToken reports whether the pause took effect. Failures are logged, not returned.
func (s *tokenService) PauseToken(ctx context.Context, tokenID string) bool {
	const op = "pause"
	d := ledger.Descriptor{Kind: ledger.OpPause, TokenID: tokenID}
	if err := d.Validate(); err != nil {
		s.logger.Warn("Pause rejected", zap.String("token_id", tokenID), zap.Error(err))
		return false
	}
	if err := s.checkState(ctx, op, tokenID, workflows.OpPause); err != nil {
		s.logger.Warn("Pause rejected", zap.String("token_id", tokenID), zap.Error(err))
		return false
	}

	outcome, err := s.execute(ctx, d, "")
	if err != nil {
		s.logger.Error("Failed to pause token", zap.String("token_id", tokenID), zap.Error(err))
		return false
	}
	if !outcome.Succeeded() {
		s.logger.Warn("Pause not applied",
			zap.String("token_id", tokenID),
			zap.String("status", outcome.ReceiptStatus))
		return false
	}
	s.logger.Info("Land token paused", zap.String("token_id", tokenID))
	return true
}

func (s *tokenService) UpdateTokenMetadata(ctx context.Context, tokenID string, serials []int64, ref metadata.Reference) error {
	const op = "update_metadata"
	if ref.IsZero() {
		return faults.Newf(faults.DescriptorInvalid, op, "content reference is required")
	}
	return s.update(ctx, op, tokenID, serials, ref)
}

func (s *tokenService) UpdateTokenMetadataFromParcel(ctx context.Context, tokenID string, serials []int64, parcel metadata.LandParcel) (metadata.Reference, error) {
	const op = "update_metadata"
	if err := validateUpdateTarget(tokenID, serials); err != nil {
		return metadata.Reference{}, faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := parcel.Validate(); err != nil {
		return metadata.Reference{}, faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := s.checkState(ctx, op, tokenID, workflows.OpUpdateMetadata); err != nil {
		return metadata.Reference{}, err
	}

	pub, err := s.publisher.Publish(ctx, parcel)
	if err != nil {
		return metadata.Reference{}, err
	}
	ref, err := pub.Consume()
	if err != nil {
		return metadata.Reference{}, faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := s.submitUpdate(ctx, op, tokenID, serials, ref); err != nil {
		return metadata.Reference{}, err
	}
	return ref, nil
}

func (s *tokenService) update(ctx context.Context, op, tokenID string, serials []int64, ref metadata.Reference) error {
	d := updateDescriptor(tokenID, serials, ref.Bytes())
	if err := d.Validate(); err != nil {
		return faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := s.checkState(ctx, op, tokenID, workflows.OpUpdateMetadata); err != nil {
		return err
	}
	return s.submitUpdate(ctx, op, tokenID, serials, ref)
}

func (s *tokenService) submitUpdate(ctx context.Context, op, tokenID string, serials []int64, ref metadata.Reference) error {
	outcome, err := s.execute(ctx, updateDescriptor(tokenID, serials, ref.Bytes()), ref.String())
	if err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return confirmedFailure(faults.UpdateFailed, op, outcome)
	}
	s.logger.Info("Land token metadata updated",
		zap.String("token_id", tokenID),
		zap.Int64s("serials", serials),
		zap.String("reference", ref.String()))
	return nil
}

func (s *tokenService) TransferLand(ctx context.Context, req TransferRequest) error {
	const op = "transfer"
	if req.FromAccountID == req.ToAccountID {
		return faults.Newf(faults.DescriptorInvalid, op, "sender and receiver must differ")
	}
	if req.SerialNumber <= 0 {
		return faults.Newf(faults.DescriptorInvalid, op, "serial number must be positive, got %d", req.SerialNumber)
	}
	d := ledger.Descriptor{
		Kind:          ledger.OpTransfer,
		TokenID:       req.TokenID,
		SerialNumbers: []int64{req.SerialNumber},
		From:          req.FromAccountID,
		To:            req.ToAccountID,
	}
	if err := d.Validate(); err != nil {
		return faults.New(faults.DescriptorInvalid, op, err)
	}
	if err := s.checkState(ctx, op, req.TokenID, workflows.OpTransfer); err != nil {
		return err
	}

	outcome, err := s.execute(ctx, d, "")
	if err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return confirmedFailure(faults.TransferFailed, op, outcome)
	}
	s.logger.Info("Land token transferred",
		zap.String("token_id", req.TokenID),
		zap.Int64("serial", req.SerialNumber),
		zap.String("from", req.FromAccountID),
		zap.String("to", req.ToAccountID))
	return nil
}

// TransactionStatus makes one receipt query. It never resubmits.
func (s *tokenService) TransactionStatus(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	const op = "transaction_status"
	if transactionID == "" {
		return nil, faults.Newf(faults.DescriptorInvalid, op, "transaction id is required")
	}
	status := &TransactionStatus{TransactionID: transactionID, State: TransactionPending}

	receipt, err := s.client.Receipt(ctx, ledger.Submission{TransactionID: transactionID})
	if errors.Is(err, ledger.ErrReceiptPending) {
		return status, nil
	}
	if err != nil {
		return nil, faults.New(faults.LedgerUnreachable, op, err).WithTransaction(transactionID)
	}
	if receipt.Status == "" {
		return status, nil
	}

	status.ReceiptStatus = receipt.Status
	status.State = TransactionFailed
	if receipt.Successful() {
		status.State = TransactionSuccess
		status.AssignedID = receipt.TokenID
		status.Serials = receipt.Serials
	}
	return status, nil
}

func (s *tokenService) TokenState(ctx context.Context, tokenID string) (*LandToken, error) {
	const op = "token_state"
	if !ledger.ValidEntityID(tokenID) {
		return nil, faults.Newf(faults.DescriptorInvalid, op, "invalid token id %q", tokenID)
	}
	if s.states == nil {
		return nil, fmt.Errorf("token state reader is not configured")
	}
	info, err := s.states.TokenInfo(ctx, tokenID)
	if err != nil {
		return nil, faults.New(faults.LedgerUnreachable, op, err)
	}
	state := StateOf(info)
	return &LandToken{
		TokenID:           tokenID,
		Name:              info.Name,
		Symbol:            info.Symbol,
		SupplyType:        ledger.SupplyInfinite,
		Treasury:          info.Treasury,
		TotalSupply:       info.TotalSupply,
		State:             state,
		AllowedOperations: s.machine.AllowedOperations(string(state)),
	}, nil
}

// checkState rejects operations the lifecycle table forbids, when enforcement is on
func (s *tokenService) checkState(ctx context.Context, op, tokenID, transition string) error {
	if !s.config.EnforceStateMachine || s.states == nil {
		return nil
	}
	info, err := s.states.TokenInfo(ctx, tokenID)
	if err != nil {
		return faults.New(faults.LedgerUnreachable, op, err)
	}
	state := StateOf(info)
	if _, err := s.machine.Next(string(state), transition); err != nil {
		return faults.New(faults.InvalidState, op, err).WithStatus(string(state))
	}
	return nil
}

// execute runs d through the pipeline between an intent and an outcome audit event
func (s *tokenService) execute(ctx context.Context, d ledger.Descriptor, reference string) (pipeline.Outcome, error) {
	s.audit.Record(ctx, auditEvent(d, audit.PhaseIntent, reference))

	outcome, err := s.pipeline.Execute(ctx, d, s.signers)

	result := auditEvent(d, audit.PhaseOutcome, reference)
	if err != nil {
		result.ErrorKind = string(faults.KindOf(err))
		result.Error = err.Error()
		if fe, ok := faults.As(err); ok {
			result.TransactionID = fe.TransactionID
		}
	} else {
		result.Outcome = string(outcome.Status)
		result.ReceiptStatus = outcome.ReceiptStatus
		result.TransactionID = outcome.TransactionID
		if d.Kind == ledger.OpRegister {
			result.TokenID = outcome.AssignedID
		}
		if d.Kind == ledger.OpMint {
			result.Serials = outcome.Serials
		}
	}
	s.audit.Record(context.WithoutCancel(ctx), result)
	return outcome, err
}

func auditEvent(d ledger.Descriptor, phase audit.Phase, reference string) audit.Event {
	e := audit.NewEvent(string(d.Kind), phase)
	e.TokenID = d.TokenID
	e.Serials = d.SerialNumbers
	e.From = d.From
	e.To = d.To
	e.Reference = reference
	return e
}

func validateUpdateTarget(tokenID string, serials []int64) error {
	if !ledger.ValidEntityID(tokenID) {
		return fmt.Errorf("invalid token id %q", tokenID)
	}
	if len(serials) == 0 {
		return fmt.Errorf("update requires at least one serial number")
	}
	for _, serial := range serials {
		if serial <= 0 {
			return fmt.Errorf("serial number must be positive, got %d", serial)
		}
	}
	return nil
}

func updateDescriptor(tokenID string, serials []int64, value []byte) ledger.Descriptor {
	return ledger.Descriptor{
		Kind:          ledger.OpUpdateMetadata,
		TokenID:       tokenID,
		SerialNumbers: serials,
		Metadata:      [][]byte{value},
	}
}

func confirmedFailure(kind faults.Kind, op string, outcome pipeline.Outcome) error {
	return faults.Newf(kind, op, "ledger returned %s", outcome.ReceiptStatus).
		WithStatus(outcome.ReceiptStatus).
		WithTransaction(outcome.TransactionID)
}
