package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

type summaryCacheStub struct {
	stored  map[string]*dto.PipelineSummary
	getErr  error
	setErr  error
	sets    int
	deletes []string
}

func (s *summaryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	summary, ok := s.stored[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*dto.PipelineSummary)) = *summary
	return nil
}

func (s *summaryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	if summary, ok := value.(*dto.PipelineSummary); ok {
		s.stored[key] = summary
	}
	return nil
}

func (s *summaryCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletes = append(s.deletes, pattern)
	delete(s.stored, pipelineSummaryCacheKey)
	return nil
}

func newPipelineServiceForTest(leads *leadRepoStub, callbacks *callbackRepoStub, transfers *transferRepoStub, cacheStub *summaryCacheStub) *PipelineService {
	directory := employeeDirectoryStub{employees: map[string]*models.Employee{
		"emp-1": {ID: "emp-1", Name: "Ana Silva", Position: "Sales Executive"},
	}}
	svc := NewPipelineService(leads, callbacks, transfers, directory, cacheStub, time.Minute, 5, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestPipelineServiceSummaryComposesProjections(t *testing.T) {
	leads := &leadRepoStub{
		leads: map[string]*models.Lead{},
		listResult: []models.Lead{
			{Status: models.LeadStatusWon, ExpectedRevenue: 100},
			{Status: models.LeadStatusNew},
		},
	}
	callbacks := &callbackRepoStub{
		callbacks: map[string]*models.Callback{},
		listResult: []models.Callback{
			{ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
		},
	}
	transfers := &transferRepoStub{
		transfers: map[string]*models.Transfer{},
		allResult: []models.Transfer{
			{FromEmployee: "emp-1", ToEmployee: "sup-1", Status: models.TransferStatusTransferred},
		},
	}
	cacheStub := &summaryCacheStub{stored: map[string]*dto.PipelineSummary{}}
	svc := newPipelineServiceForTest(leads, callbacks, transfers, cacheStub)

	summary, err := svc.Summary(context.Background(), adminClaims())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Leads.TotalLeads)
	assert.Equal(t, 100.0, summary.Leads.TotalRevenue)
	assert.Equal(t, 1, summary.CallbackBuckets[models.BucketToday])
	assert.Equal(t, 1, summary.Transfers.Pending)
	require.Len(t, summary.Leaderboard.Initiated, 1)
	assert.Equal(t, "Ana Silva", summary.Leaderboard.Initiated[0].Name)
	assert.Equal(t, 1, cacheStub.sets)
}

func TestPipelineServiceSummaryServedFromCache(t *testing.T) {
	cached := &dto.PipelineSummary{Leads: dto.LeadStats{TotalLeads: 42}}
	cacheStub := &summaryCacheStub{stored: map[string]*dto.PipelineSummary{pipelineSummaryCacheKey: cached}}
	leads := &leadRepoStub{leads: map[string]*models.Lead{}}
	callbacks := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	transfers := &transferRepoStub{transfers: map[string]*models.Transfer{}}
	svc := newPipelineServiceForTest(leads, callbacks, transfers, cacheStub)

	summary, err := svc.Summary(context.Background(), adminClaims())

	require.NoError(t, err)
	assert.Equal(t, 42, summary.Leads.TotalLeads)
	assert.Equal(t, 0, cacheStub.sets)
}

func TestPipelineServiceSummaryRequiresSuperAdmin(t *testing.T) {
	cacheStub := &summaryCacheStub{stored: map[string]*dto.PipelineSummary{}}
	leads := &leadRepoStub{leads: map[string]*models.Lead{}}
	callbacks := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	transfers := &transferRepoStub{transfers: map[string]*models.Transfer{}}
	svc := newPipelineServiceForTest(leads, callbacks, transfers, cacheStub)

	_, err := svc.Summary(context.Background(), salesClaims("emp-1"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestPipelineServiceInvalidateDropsCache(t *testing.T) {
	cached := &dto.PipelineSummary{Leads: dto.LeadStats{TotalLeads: 42}}
	cacheStub := &summaryCacheStub{stored: map[string]*dto.PipelineSummary{pipelineSummaryCacheKey: cached}}
	leads := &leadRepoStub{leads: map[string]*models.Lead{}}
	callbacks := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	transfers := &transferRepoStub{transfers: map[string]*models.Transfer{}}
	svc := newPipelineServiceForTest(leads, callbacks, transfers, cacheStub)

	require.NoError(t, svc.Invalidate(context.Background()))
	assert.Equal(t, []string{pipelineSummaryCacheKey}, cacheStub.deletes)

	summary, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Leads.TotalLeads)
	assert.Equal(t, 1, cacheStub.sets)
}
