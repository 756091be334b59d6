package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	"github.com/salesdesk/pipeline-api/internal/repository"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

type leadStore interface {
	Create(ctx context.Context, lead *models.Lead) error
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	Lookup(ctx context.Context, search string) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
	All(ctx context.Context) ([]models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	UpdateAssignee(ctx context.Context, id, assignedTo string) error
	Delete(ctx context.Context, id string) error
}

type employeeDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type openCallbackCounter interface {
	CountOpenByLead(ctx context.Context, leadID string) (int, error)
}

type openTransferCounter interface {
	CountOpenByLead(ctx context.Context, leadID string) (int, error)
}

type reassignmentNotifier interface {
	LeadReassigned(lead *models.Lead, previousOwner string)
}

// transitionRecorder counts lifecycle transitions for observability. Shared
// by the lead, callback and transfer services.
type transitionRecorder interface {
	RecordTransition(entity, status string)
}

// LeadService enforces the lead pipeline state machine: guarded status
// writes, the closed-lead freeze, and ownership rules.
type LeadService struct {
	repo      leadStore
	directory employeeDirectory
	callbacks openCallbackCounter
	transfers openTransferCounter
	notifier  reassignmentNotifier
	metrics   transitionRecorder
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeadService constructs the service.
func NewLeadService(repo leadStore, directory employeeDirectory, callbacks openCallbackCounter, transfers openTransferCounter, notifier reassignmentNotifier, metrics transitionRecorder, summaries summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *LeadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		repo:      repo,
		directory: directory,
		callbacks: callbacks,
		transfers: transfers,
		notifier:  notifier,
		metrics:   metrics,
		summaries: summaries,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates required contact fields and stores a new lead. Status
// defaults to New when omitted.
func (s *LeadService) Create(ctx context.Context, req dto.CreateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}

	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	if !models.ValidLeadStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lead status")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}
	source := req.Source
	if source == "" {
		source = models.LeadSourceWebsite
	}

	assignedTo, err := s.resolveAssignee(ctx, req.AssignedTo, actor)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		ClientName:      strings.TrimSpace(req.ClientName),
		BusinessName:    strings.TrimSpace(req.BusinessName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           strings.TrimSpace(req.Phone),
		AlternatePhone:  optionalString(req.AlternatePhone),
		Source:          source,
		Status:          status,
		Priority:        priority,
		Industry:        optionalString(req.Industry),
		ExpectedRevenue: req.ExpectedRevenue,
		AssignedTo:      assignedTo,
		AssignedBy:      &actor.UserID,
		Notes:           optionalString(req.Notes),
		Tags:            pq.StringArray(req.Tags),
		NextFollowUpAt:  req.NextFollowUpAt,
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lead")
	}
	s.invalidateSummary(ctx)
	return lead, nil
}

// Get returns a lead, restricted to the assignee for non-admin actors.
func (s *LeadService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && lead.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your assigned leads")
	}
	return lead, nil
}

// List returns leads visible to the actor. Non-admin actors only see their
// own assignments regardless of the requested filter.
func (s *LeadService) List(ctx context.Context, filter models.LeadFilter, actor *models.JWTClaims) ([]models.Lead, *models.Pagination, error) {
	if !actor.CanAccessPipeline() {
		return nil, nil, appErrors.ErrForbidden
	}
	if !actor.IsSuperAdmin() {
		filter.AssignedTo = actor.UserID
	}
	leads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leads")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return leads, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Lookup finds a single lead by code, name or email. Super-admin only.
func (s *LeadService) Lookup(ctx context.Context, query string, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lead lookup is only available to super admins")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query is required")
	}
	lead, err := s.repo.Lookup(ctx, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no lead matched the search")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up lead")
	}
	return lead, nil
}

// Update persists descriptive lead fields.
func (s *LeadService) Update(ctx context.Context, id string, req dto.UpdateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}
	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && lead.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only edit your assigned leads")
	}

	lead.ClientName = strings.TrimSpace(req.ClientName)
	lead.BusinessName = strings.TrimSpace(req.BusinessName)
	lead.Email = strings.ToLower(strings.TrimSpace(req.Email))
	lead.Phone = strings.TrimSpace(req.Phone)
	lead.AlternatePhone = optionalString(req.AlternatePhone)
	if req.Source != "" {
		lead.Source = req.Source
	}
	if req.Priority != "" {
		if !models.ValidPriority(req.Priority) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
		lead.Priority = req.Priority
	}
	lead.Industry = optionalString(req.Industry)
	lead.ExpectedRevenue = req.ExpectedRevenue
	lead.Notes = optionalString(req.Notes)
	if req.Tags != nil {
		lead.Tags = pq.StringArray(req.Tags)
	}
	lead.NextFollowUpAt = req.NextFollowUpAt

	if err := s.repo.Update(ctx, lead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead")
	}
	s.invalidateSummary(ctx)
	return lead, nil
}

// UpdateStatus applies a pipeline transition. Any stage may move to any other
// stage, but a closed (Won/Lost) lead rejects further status writes unless
// the caller explicitly reopens it.
func (s *LeadService) UpdateStatus(ctx context.Context, id string, req dto.UpdateLeadStatusRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	if !models.ValidLeadStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lead status")
	}

	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && lead.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only edit your assigned leads")
	}
	if lead.Status.Closed() && !req.Reopen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "lead is closed; pass reopen to change its status")
	}
	if lead.Status.Closed() && req.Reopen {
		s.logger.Info("closed lead reopened",
			zap.String("lead_id", lead.ID),
			zap.String("previous_status", string(lead.Status)),
			zap.String("new_status", string(req.Status)),
			zap.String("actor", actor.UserID),
		)
	}

	now := s.now().UTC()
	params := repository.UpdateStatusParams{
		ID:     lead.ID,
		Status: req.Status,
		Reopen: req.Reopen,
	}
	if req.Status == models.LeadStatusContacted && lead.Status != models.LeadStatusContacted {
		params.LastContactedAt = &now
	}
	if req.Status == models.LeadStatusWon && !lead.Converted {
		params.Converted = true
		params.ConvertedAt = &now
	}
	if req.Status == models.LeadStatusLost {
		params.LostReason = optionalString(req.LostReason)
	}

	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race against a concurrent close or delete.
			return nil, s.classifyStatusFailure(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead status")
	}
	if s.metrics != nil {
		s.metrics.RecordTransition("lead", string(req.Status))
	}
	s.invalidateSummary(ctx)

	return s.loadLead(ctx, id)
}

// Reassign moves lead ownership. Closed leads are frozen for audit integrity.
func (s *LeadService) Reassign(ctx context.Context, id string, req dto.ReassignLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only super admins can reassign leads")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status.Closed() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "ownership of closed leads is frozen")
	}
	if _, err := s.directory.FindByID(ctx, req.AssignedTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assigned employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve employee")
	}

	previousOwner := lead.AssignedTo
	if err := s.repo.UpdateAssignee(ctx, id, req.AssignedTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyStatusFailure(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign lead")
	}

	lead.AssignedTo = req.AssignedTo
	if s.notifier != nil && previousOwner != req.AssignedTo {
		s.notifier.LeadReassigned(lead, previousOwner)
	}
	s.invalidateSummary(ctx)
	return lead, nil
}

// Delete removes a lead after verifying nothing open still references it.
func (s *LeadService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only super admins can delete leads")
	}
	if _, err := s.loadLead(ctx, id); err != nil {
		return err
	}

	openCallbacks, err := s.callbacks.CountOpenByLead(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open callbacks")
	}
	if openCallbacks > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "lead has open callbacks; resolve them before deleting")
	}
	openTransfers, err := s.transfers.CountOpenByLead(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open transfers")
	}
	if openTransfers > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "lead has open transfers; resolve them before deleting")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lead")
	}
	s.invalidateSummary(ctx)
	return nil
}

// Stats aggregates conversion metrics over the leads visible to the actor.
func (s *LeadService) Stats(ctx context.Context, actor *models.JWTClaims) (*dto.LeadStats, error) {
	if !actor.CanAccessPipeline() {
		return nil, appErrors.ErrForbidden
	}
	var (
		leads []models.Lead
		err   error
	)
	if actor.IsSuperAdmin() {
		leads, err = s.repo.All(ctx)
	} else {
		leads, _, err = s.repo.List(ctx, models.LeadFilter{AssignedTo: actor.UserID, PageSize: 200})
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leads")
	}
	stats := ComputeLeadMetrics(leads)
	return &stats, nil
}

func (s *LeadService) loadLead(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	return lead, nil
}

// classifyStatusFailure distinguishes a vanished lead from one that was
// closed by a concurrent writer after the zero-row conditional update.
func (s *LeadService) classifyStatusFailure(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "lead not found")
	}
	if current.Status.Closed() {
		return appErrors.Clone(appErrors.ErrInvalidState, "lead was closed concurrently")
	}
	return appErrors.Clone(appErrors.ErrConflict, "lead changed concurrently; re-read and retry")
}

func (s *LeadService) invalidateSummary(ctx context.Context) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate pipeline summary", zap.Error(err))
	}
}

func (s *LeadService) resolveAssignee(ctx context.Context, requested string, actor *models.JWTClaims) (string, error) {
	if actor.IsSuperAdmin() {
		if requested == "" {
			return actor.UserID, nil
		}
		if _, err := s.directory.FindByID(ctx, requested); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "assigned employee not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve employee")
		}
		return requested, nil
	}
	if requested != "" && requested != actor.UserID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "you can only assign leads to yourself")
	}
	return actor.UserID, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
