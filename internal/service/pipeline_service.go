package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

const pipelineSummaryCacheKey = "pipeline:summary"

type pipelineLeadSource interface {
	All(ctx context.Context) ([]models.Lead, error)
}

type pipelineCallbackSource interface {
	All(ctx context.Context) ([]models.Callback, error)
}

type pipelineTransferSource interface {
	All(ctx context.Context) ([]models.Transfer, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// summaryInvalidator lets the mutating services drop the cached summary as
// soon as the underlying data changes.
type summaryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// PipelineService composes the cross-entity reporting projection. The summary
// is recomputed from full snapshots on demand and cached with a short TTL so
// dashboards do not hammer the database.
type PipelineService struct {
	leads           pipelineLeadSource
	callbacks       pipelineCallbackSource
	transfers       pipelineTransferSource
	directory       employeeDirectory
	cache           summaryCache
	cacheTTL        time.Duration
	leaderboardSize int
	logger          *zap.Logger
	now             func() time.Time
}

// NewPipelineService constructs the service.
func NewPipelineService(leads pipelineLeadSource, callbacks pipelineCallbackSource, transfers pipelineTransferSource, directory employeeDirectory, cache summaryCache, cacheTTL time.Duration, leaderboardSize int, logger *zap.Logger) *PipelineService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if leaderboardSize <= 0 {
		leaderboardSize = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		leads:           leads,
		callbacks:       callbacks,
		transfers:       transfers,
		directory:       directory,
		cache:           cache,
		cacheTTL:        cacheTTL,
		leaderboardSize: leaderboardSize,
		logger:          logger,
		now:             time.Now,
	}
}

// Summary returns the composed pipeline projection. Super-admin only. Cache
// misses fall through to a full recompute; cache write failures are logged
// and never surfaced.
func (s *PipelineService) Summary(ctx context.Context, actor *models.JWTClaims) (*dto.PipelineSummary, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "the pipeline summary is only available to super admins")
	}

	if s.cache != nil {
		var cached dto.PipelineSummary
		if err := s.cache.Get(ctx, pipelineSummaryCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.HasCode(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("pipeline summary cache read failed", zap.Error(err))
		}
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, pipelineSummaryCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("pipeline summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary. The lead, callback and transfer
// services call it after every state change so dashboards never wait out the
// full TTL.
func (s *PipelineService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, pipelineSummaryCacheKey)
}

func (s *PipelineService) compute(ctx context.Context) (*dto.PipelineSummary, error) {
	leads, err := s.leads.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leads")
	}
	callbacks, err := s.callbacks.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load callbacks")
	}
	transfers, err := s.transfers.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfers")
	}

	now := s.now()
	summary := &dto.PipelineSummary{
		GeneratedAt:     now.UTC(),
		Leads:           ComputeLeadMetrics(leads),
		CallbackBuckets: ComputeCallbackBuckets(callbacks, now),
		Transfers:       ComputeTransferTotals(transfers),
		Leaderboard:     ComputeTransferLeaderboard(transfers, s.leaderboardSize),
	}
	s.enrichLeaderboard(ctx, &summary.Leaderboard)
	return summary, nil
}

// enrichLeaderboard resolves names and positions for leaderboard entries.
// Directory lookups are best-effort; an unresolvable id keeps its bare entry.
func (s *PipelineService) enrichLeaderboard(ctx context.Context, board *dto.TransferLeaderboard) {
	if s.directory == nil {
		return
	}
	resolve := func(entries []dto.LeaderboardEntry) {
		for i := range entries {
			employee, err := s.directory.FindByID(ctx, entries[i].EmployeeID)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					s.logger.Warn("leaderboard directory lookup failed",
						zap.String("employee_id", entries[i].EmployeeID), zap.Error(err))
				}
				continue
			}
			entries[i].Name = employee.Name
			entries[i].Position = employee.Position
		}
	}
	resolve(board.Initiated)
	resolve(board.Received)
}
