package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	"github.com/salesdesk/pipeline-api/internal/repository"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

// Positions eligible to receive a callback handoff.
var transferablePositions = map[string]bool{
	"supervisor": true,
	"team lead":  true,
	"manager":    true,
}

type transferStore interface {
	Create(ctx context.Context, transfer *models.Transfer) error
	GetByID(ctx context.Context, id string) (*models.Transfer, error)
	List(ctx context.Context, filter models.TransferFilter) ([]models.Transfer, error)
	All(ctx context.Context) ([]models.Transfer, error)
	Accept(ctx context.Context, id string, remarks *string) error
	Reject(ctx context.Context, id string, remarks *string) error
	Complete(ctx context.Context, id string, remarks *string, at time.Time) error
	Cancel(ctx context.Context, id string) error
}

type transferCallbackStore interface {
	FindByID(ctx context.Context, id string) (*models.Callback, error)
}

type transferNotifier interface {
	TransferInitiated(transfer *models.Transfer)
}

// TransferService runs the consent-based callback handoff workflow.
type TransferService struct {
	repo      transferStore
	callbacks transferCallbackStore
	directory employeeDirectory
	notifier  transferNotifier
	metrics   transitionRecorder
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTransferService constructs the service.
func NewTransferService(repo transferStore, callbacks transferCallbackStore, directory employeeDirectory, notifier transferNotifier, metrics transitionRecorder, summaries summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *TransferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		repo:      repo,
		callbacks: callbacks,
		directory: directory,
		notifier:  notifier,
		metrics:   metrics,
		summaries: summaries,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Initiate opens a handoff of a callback to a supervisory employee. Only the
// callback's current assignee (or a super admin) may start one, and the
// database rejects a second open handoff for the same callback.
func (s *TransferService) Initiate(ctx context.Context, callbackID string, req dto.InitiateTransferRequest, actor *models.JWTClaims) (*models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	cb, err := s.callbacks.FindByID(ctx, callbackID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "callback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load callback")
	}
	if !actor.IsSuperAdmin() && cb.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the callback's assignee can transfer it")
	}
	if cb.Status == models.CallbackStatusCompleted || cb.Status == models.CallbackStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "closed callbacks cannot be transferred")
	}
	if req.ToEmployee == cb.AssignedTo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot transfer a callback to its current assignee")
	}

	target, err := s.directory.FindByID(ctx, req.ToEmployee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve employee")
	}
	if !target.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target employee is inactive")
	}
	if !transferablePositions[strings.ToLower(target.Position)] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transfers can only target supervisors, team leads or managers")
	}

	transfer := &models.Transfer{
		CallbackID:    cb.ID,
		ClientName:    cb.ClientName,
		BusinessName:  cb.BusinessName,
		FromEmployee:  cb.AssignedTo,
		ToEmployee:    target.ID,
		Status:        models.TransferStatusTransferred,
		Remarks:       optionalString(req.Remarks),
		TransferredAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, transfer); err != nil {
		if errors.Is(err, repository.ErrOpenTransferExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an open transfer already exists for this callback")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transfer")
	}

	if s.notifier != nil {
		s.notifier.TransferInitiated(transfer)
	}
	s.recordTransition(ctx, transfer.Status)
	return transfer, nil
}

// recordTransition publishes a completed state change to the metrics registry
// and drops the cached pipeline summary.
func (s *TransferService) recordTransition(ctx context.Context, status models.TransferStatus) {
	if s.metrics != nil {
		s.metrics.RecordTransition("transfer", string(status))
	}
	if s.summaries != nil {
		if err := s.summaries.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate pipeline summary", zap.Error(err))
		}
	}
}

// Get returns a transfer visible to the actor.
func (s *TransferService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	transfer, err := s.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && transfer.FromEmployee != actor.UserID && transfer.ToEmployee != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a party to this transfer")
	}
	return transfer, nil
}

// List returns transfers with per-status totals. Super-admin only.
func (s *TransferService) List(ctx context.Context, filter models.TransferFilter, actor *models.JWTClaims) (*dto.TransferListResponse, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "transfer listings are only available to super admins")
	}
	transfers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfers")
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfers")
	}
	return &dto.TransferListResponse{
		Totals:    ComputeTransferTotals(all),
		Transfers: transfers,
	}, nil
}

// ListMine returns transfers where the actor is sender or recipient.
func (s *TransferService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	sent, err := s.repo.List(ctx, models.TransferFilter{FromEmployee: actor.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfers")
	}
	received, err := s.repo.List(ctx, models.TransferFilter{ToEmployee: actor.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfers")
	}

	combined := make([]models.Transfer, 0, len(sent)+len(received))
	combined = append(combined, sent...)
	for _, t := range received {
		if t.FromEmployee == t.ToEmployee {
			continue
		}
		combined = append(combined, t)
	}
	return combined, nil
}

// Resolve applies the recipient's accept or reject verdict. Acceptance moves
// callback ownership atomically; rejection leaves it with the sender.
func (s *TransferService) Resolve(ctx context.Context, id string, req dto.ResolveTransferRequest, actor *models.JWTClaims) (*models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}
	if req.Decision != models.DecisionAccept && req.Decision != models.DecisionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be Accept or Reject")
	}

	transfer, err := s.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer.ToEmployee != actor.UserID && !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the transfer's recipient can resolve it")
	}

	remarks := optionalString(req.Remarks)
	if req.Decision == models.DecisionAccept {
		err = s.repo.Accept(ctx, id, remarks)
	} else {
		err = s.repo.Reject(ctx, id, remarks)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyResolutionFailure(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve transfer")
	}

	s.logger.Info("transfer resolved",
		zap.String("transfer_id", id),
		zap.String("decision", string(req.Decision)),
		zap.String("actor", actor.UserID),
	)
	if req.Decision == models.DecisionAccept {
		s.recordTransition(ctx, models.TransferStatusAccepted)
	} else {
		s.recordTransition(ctx, models.TransferStatusRejected)
	}
	return s.loadTransfer(ctx, id)
}

// Complete closes an accepted handoff once the new owner finishes the work.
func (s *TransferService) Complete(ctx context.Context, id string, req dto.CompleteTransferRequest, actor *models.JWTClaims) (*models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	transfer, err := s.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer.ToEmployee != actor.UserID && !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the transfer's recipient can complete it")
	}
	if transfer.Status == models.TransferStatusCompleted {
		return transfer, nil
	}

	if err := s.repo.Complete(ctx, id, optionalString(req.Remarks), s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			current, readErr := s.loadTransfer(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			if current.Status == models.TransferStatusCompleted {
				return current, nil
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only accepted transfers can be completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete transfer")
	}
	s.recordTransition(ctx, models.TransferStatusCompleted)
	return s.loadTransfer(ctx, id)
}

// Cancel withdraws a pending handoff. Only the initiator may cancel, and only
// while the recipient has not resolved it.
func (s *TransferService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.Transfer, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	transfer, err := s.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer.FromEmployee != actor.UserID && !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the transfer's initiator can cancel it")
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only unresolved transfers can be cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel transfer")
	}
	s.recordTransition(ctx, models.TransferStatusCancelled)
	return s.loadTransfer(ctx, id)
}

func (s *TransferService) loadTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	transfer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer")
	}
	return transfer, nil
}

// classifyResolutionFailure explains a zero-row conditional update against a
// transfer: either it vanished or another writer resolved it first.
func (s *TransferService) classifyResolutionFailure(ctx context.Context, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "transfer not found")
	}
	return appErrors.Clone(appErrors.ErrInvalidState, "transfer was already resolved as "+string(current.Status))
}
