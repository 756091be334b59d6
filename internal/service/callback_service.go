package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

type callbackStore interface {
	Create(ctx context.Context, cb *models.Callback) error
	FindByID(ctx context.Context, id string) (*models.Callback, error)
	List(ctx context.Context, filter models.CallbackFilter) ([]models.Callback, int, error)
	ListByLead(ctx context.Context, leadID string) ([]models.Callback, error)
	All(ctx context.Context) ([]models.Callback, error)
	Reschedule(ctx context.Context, id string, date time.Time, timeOfDay string, remarks *string) error
	Complete(ctx context.Context, id string, completedBy string, outcome *string, at time.Time) error
	Cancel(ctx context.Context, id string) error
	MarkNotReachable(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type callbackLeadStore interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	SetNextFollowUp(ctx context.Context, id string, at time.Time) error
	StampLastContacted(ctx context.Context, id string, at time.Time) error
}

type openHandoffFinder interface {
	FindOpenByCallback(ctx context.Context, callbackID string) (*models.Transfer, error)
}

// CallbackService schedules follow-ups, applies lifecycle transitions and
// decorates every read with a now-relative time bucket.
type CallbackService struct {
	repo      callbackStore
	leads     callbackLeadStore
	transfers openHandoffFinder
	metrics   transitionRecorder
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCallbackService constructs the service.
func NewCallbackService(repo callbackStore, leads callbackLeadStore, transfers openHandoffFinder, metrics transitionRecorder, summaries summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *CallbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackService{
		repo:      repo,
		leads:     leads,
		transfers: transfers,
		metrics:   metrics,
		summaries: summaries,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create schedules a follow-up. Client and business names are snapshotted from
// the lead, and the lead's next follow-up date is advanced to the new slot.
func (s *CallbackService) Create(ctx context.Context, req dto.CreateCallbackRequest, actor *models.JWTClaims) (*models.Callback, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid callback payload")
	}

	channel := req.Channel
	if channel == "" {
		channel = models.ChannelCall
	}
	if !models.ValidCallbackChannel(channel) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown callback channel")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	lead, err := s.leads.FindByID(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	if lead.Status.Closed() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot schedule a callback for a closed lead")
	}
	if !actor.IsSuperAdmin() && lead.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only schedule callbacks for your assigned leads")
	}

	assignedTo := req.AssignedTo
	if assignedTo == "" {
		assignedTo = lead.AssignedTo
	}
	if !actor.IsSuperAdmin() && assignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only assign callbacks to yourself")
	}

	cb := &models.Callback{
		LeadID:        lead.ID,
		ClientName:    lead.ClientName,
		BusinessName:  lead.BusinessName,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Channel:       channel,
		Status:        models.CallbackStatusPending,
		Priority:      priority,
		AssignedTo:    assignedTo,
		AssignedBy:    &actor.UserID,
		Remarks:       optionalString(req.Remarks),
	}
	if err := s.repo.Create(ctx, cb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create callback")
	}

	if err := s.leads.SetNextFollowUp(ctx, lead.ID, req.ScheduledDate); err != nil {
		// The callback exists either way; the follow-up stamp is advisory.
		s.logger.Warn("failed to stamp lead follow-up", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	s.invalidateSummary(ctx)

	cb.Bucket = ClassifyBucket(*cb, s.now())
	return cb, nil
}

// Get returns a callback with its derived bucket.
func (s *CallbackService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Callback, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	cb, err := s.loadCallback(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && cb.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your assigned callbacks")
	}
	cb.Bucket = ClassifyBucket(*cb, s.now())
	return cb, nil
}

// List returns callbacks visible to the actor, each decorated with a bucket
// computed against a single now so a page never mixes clock readings.
func (s *CallbackService) List(ctx context.Context, filter models.CallbackFilter, actor *models.JWTClaims) ([]models.Callback, *models.Pagination, error) {
	if !actor.CanAccessPipeline() {
		return nil, nil, appErrors.ErrForbidden
	}
	if !actor.IsSuperAdmin() {
		filter.AssignedTo = actor.UserID
	}
	callbacks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list callbacks")
	}

	now := s.now()
	for i := range callbacks {
		callbacks[i].Bucket = ClassifyBucket(callbacks[i], now)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return callbacks, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListByLead returns the follow-up history of a lead.
func (s *CallbackService) ListByLead(ctx context.Context, leadID string, actor *models.JWTClaims) ([]models.Callback, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	lead, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	if !actor.IsSuperAdmin() && lead.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your assigned leads")
	}

	callbacks, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list callbacks")
	}
	now := s.now()
	for i := range callbacks {
		callbacks[i].Bucket = ClassifyBucket(callbacks[i], now)
	}
	return callbacks, nil
}

// Reschedule moves a pending follow-up to a new slot and advances the lead's
// next follow-up date.
func (s *CallbackService) Reschedule(ctx context.Context, id string, req dto.RescheduleCallbackRequest, actor *models.JWTClaims) (*models.Callback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	cb, err := s.authorizeMutation(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Reschedule(ctx, id, req.ScheduledDate, req.ScheduledTime, optionalString(req.Remarks)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending or rescheduled callbacks can be rescheduled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule callback")
	}

	if err := s.leads.SetNextFollowUp(ctx, cb.LeadID, req.ScheduledDate); err != nil {
		s.logger.Warn("failed to stamp lead follow-up", zap.String("lead_id", cb.LeadID), zap.Error(err))
	}
	return s.reload(ctx, id)
}

// Complete marks a follow-up done and stamps the lead's last contact time.
// Completing an already-completed callback is an idempotent no-op that
// returns the existing record.
func (s *CallbackService) Complete(ctx context.Context, id string, req dto.CompleteCallbackRequest, actor *models.JWTClaims) (*models.Callback, error) {
	cb, err := s.authorizeMutation(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if cb.Status == models.CallbackStatusCompleted {
		cb.Bucket = models.BucketCompleted
		return cb, nil
	}

	now := s.now().UTC()
	if err := s.repo.Complete(ctx, id, actor.UserID, optionalString(req.Outcome), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Re-read: a racing complete is a no-op, anything else is a
			// genuine state conflict.
			current, readErr := s.loadCallback(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			if current.Status == models.CallbackStatusCompleted {
				current.Bucket = models.BucketCompleted
				return current, nil
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "callback cannot be completed from its current status")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete callback")
	}

	if err := s.leads.StampLastContacted(ctx, cb.LeadID, now); err != nil {
		s.logger.Warn("failed to stamp lead contact", zap.String("lead_id", cb.LeadID), zap.Error(err))
	}
	return s.reload(ctx, id)
}

// Cancel drops a follow-up. Completed callbacks are immutable.
func (s *CallbackService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.Callback, error) {
	if _, err := s.authorizeMutation(ctx, id, actor); err != nil {
		return nil, err
	}
	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "completed callbacks cannot be cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel callback")
	}
	return s.reload(ctx, id)
}

// MarkNotReachable flags a failed contact attempt.
func (s *CallbackService) MarkNotReachable(ctx context.Context, id string, actor *models.JWTClaims) (*models.Callback, error) {
	if _, err := s.authorizeMutation(ctx, id, actor); err != nil {
		return nil, err
	}
	if err := s.repo.MarkNotReachable(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending or rescheduled callbacks can be marked not reachable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark callback not reachable")
	}
	return s.reload(ctx, id)
}

// Delete removes a callback. Restricted to super admins; a callback with an
// open handoff keeps its row until the transfer is resolved.
func (s *CallbackService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only super admins can delete callbacks")
	}
	if _, err := s.loadCallback(ctx, id); err != nil {
		return err
	}

	if _, err := s.transfers.FindOpenByCallback(ctx, id); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "callback has an open transfer; resolve it before deleting")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open transfers")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "callback not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete callback")
	}
	s.invalidateSummary(ctx)
	return nil
}

// Stats aggregates callbacks visible to the actor into bucket counts and a
// completion rate.
func (s *CallbackService) Stats(ctx context.Context, actor *models.JWTClaims) (*dto.CallbackStats, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	var (
		callbacks []models.Callback
		err       error
	)
	if actor.IsSuperAdmin() {
		callbacks, err = s.repo.All(ctx)
	} else {
		callbacks, _, err = s.repo.List(ctx, models.CallbackFilter{AssignedTo: actor.UserID, PageSize: 200})
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load callbacks")
	}
	stats := ComputeCallbackStats(callbacks, s.now())
	return &stats, nil
}

func (s *CallbackService) loadCallback(ctx context.Context, id string) (*models.Callback, error) {
	cb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "callback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load callback")
	}
	return cb, nil
}

func (s *CallbackService) authorizeMutation(ctx context.Context, id string, actor *models.JWTClaims) (*models.Callback, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	cb, err := s.loadCallback(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && cb.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only act on your assigned callbacks")
	}
	return cb, nil
}

func (s *CallbackService) reload(ctx context.Context, id string) (*models.Callback, error) {
	cb, err := s.loadCallback(ctx, id)
	if err != nil {
		return nil, err
	}
	cb.Bucket = ClassifyBucket(*cb, s.now())
	if s.metrics != nil {
		s.metrics.RecordTransition("callback", string(cb.Status))
	}
	s.invalidateSummary(ctx)
	return cb, nil
}

func (s *CallbackService) invalidateSummary(ctx context.Context) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate pipeline summary", zap.Error(err))
	}
}
