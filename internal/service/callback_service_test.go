package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

type callbackRepoStub struct {
	callbacks      map[string]*models.Callback
	listResult     []models.Callback
	listFilter     models.CallbackFilter
	created        *models.Callback
	rescheduleErr  error
	rescheduled    []time.Time
	completeErr    error
	completed      []string
	cancelErr      error
	unreachableErr error
	deleted        []string
}

func (s *callbackRepoStub) Create(ctx context.Context, cb *models.Callback) error {
	cb.ID = "cb-new"
	cb.Code = "CB000001"
	s.created = cb
	s.callbacks[cb.ID] = cb
	return nil
}

func (s *callbackRepoStub) FindByID(ctx context.Context, id string) (*models.Callback, error) {
	if cb, ok := s.callbacks[id]; ok {
		copied := *cb
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *callbackRepoStub) List(ctx context.Context, filter models.CallbackFilter) ([]models.Callback, int, error) {
	s.listFilter = filter
	return s.listResult, len(s.listResult), nil
}

func (s *callbackRepoStub) ListByLead(ctx context.Context, leadID string) ([]models.Callback, error) {
	return s.listResult, nil
}

func (s *callbackRepoStub) All(ctx context.Context) ([]models.Callback, error) {
	return s.listResult, nil
}

func (s *callbackRepoStub) Reschedule(ctx context.Context, id string, date time.Time, timeOfDay string, remarks *string) error {
	if s.rescheduleErr != nil {
		return s.rescheduleErr
	}
	s.rescheduled = append(s.rescheduled, date)
	if cb, ok := s.callbacks[id]; ok {
		cb.Status = models.CallbackStatusRescheduled
		cb.ScheduledDate = date
		cb.RescheduledCount++
	}
	return nil
}

func (s *callbackRepoStub) Complete(ctx context.Context, id string, completedBy string, outcome *string, at time.Time) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, id)
	if cb, ok := s.callbacks[id]; ok {
		cb.Status = models.CallbackStatusCompleted
		cb.CompletedAt = &at
		cb.CompletedBy = &completedBy
	}
	return nil
}

func (s *callbackRepoStub) Cancel(ctx context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	if cb, ok := s.callbacks[id]; ok {
		cb.Status = models.CallbackStatusCancelled
	}
	return nil
}

func (s *callbackRepoStub) MarkNotReachable(ctx context.Context, id string) error {
	if s.unreachableErr != nil {
		return s.unreachableErr
	}
	if cb, ok := s.callbacks[id]; ok {
		cb.Status = models.CallbackStatusNotReachable
	}
	return nil
}

func (s *callbackRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.callbacks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.callbacks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type openHandoffStub struct {
	transfer *models.Transfer
	err      error
}

func (s *openHandoffStub) FindOpenByCallback(ctx context.Context, callbackID string) (*models.Transfer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.transfer, nil
}

type callbackLeadStub struct {
	leads      map[string]*models.Lead
	followUps  []time.Time
	contactAts []time.Time
}

func (s *callbackLeadStub) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	if lead, ok := s.leads[id]; ok {
		return lead, nil
	}
	return nil, sql.ErrNoRows
}

func (s *callbackLeadStub) SetNextFollowUp(ctx context.Context, id string, at time.Time) error {
	s.followUps = append(s.followUps, at)
	return nil
}

func (s *callbackLeadStub) StampLastContacted(ctx context.Context, id string, at time.Time) error {
	s.contactAts = append(s.contactAts, at)
	return nil
}

func newCallbackServiceForTest(repo *callbackRepoStub, leads *callbackLeadStub) *CallbackService {
	svc := NewCallbackService(repo, leads, &openHandoffStub{err: sql.ErrNoRows}, nil, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestCallbackServiceCreateSnapshotsLead(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{
		"lead-1": {ID: "lead-1", ClientName: "Ana Silva", BusinessName: "Silva Trading", Status: models.LeadStatusQualified, AssignedTo: "emp-1"},
	}}
	svc := newCallbackServiceForTest(repo, leads)

	scheduled := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	req := dto.CreateCallbackRequest{LeadID: "lead-1", ScheduledDate: scheduled, ScheduledTime: "14:30"}
	cb, err := svc.Create(context.Background(), req, salesClaims("emp-1"))

	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", cb.ClientName)
	assert.Equal(t, "Silva Trading", cb.BusinessName)
	assert.Equal(t, models.CallbackStatusPending, cb.Status)
	assert.Equal(t, models.ChannelCall, cb.Channel)
	assert.Equal(t, "emp-1", cb.AssignedTo)
	assert.Equal(t, models.BucketTomorrow, cb.Bucket)
	assert.Equal(t, []time.Time{scheduled}, leads.followUps)
}

func TestCallbackServiceCreateRejectsClosedLead(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{
		"lead-1": {ID: "lead-1", Status: models.LeadStatusWon, AssignedTo: "emp-1"},
	}}
	svc := newCallbackServiceForTest(repo, leads)

	req := dto.CreateCallbackRequest{LeadID: "lead-1", ScheduledDate: time.Now(), ScheduledTime: "09:00"}
	_, err := svc.Create(context.Background(), req, salesClaims("emp-1"))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Nil(t, repo.created)
}

func TestCallbackServiceCreateRejectsUnknownChannel(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{
		"lead-1": {ID: "lead-1", Status: models.LeadStatusNew, AssignedTo: "emp-1"},
	}}
	svc := newCallbackServiceForTest(repo, leads)

	req := dto.CreateCallbackRequest{LeadID: "lead-1", ScheduledDate: time.Now(), ScheduledTime: "09:00", Channel: "Pigeon"}
	_, err := svc.Create(context.Background(), req, salesClaims("emp-1"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCallbackServiceListDecoratesBuckets(t *testing.T) {
	repo := &callbackRepoStub{
		callbacks: map[string]*models.Callback{},
		listResult: []models.Callback{
			{ID: "cb-1", ScheduledDate: time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
			{ID: "cb-2", ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
		},
	}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	callbacks, _, err := svc.List(context.Background(), models.CallbackFilter{}, adminClaims())

	require.NoError(t, err)
	require.Len(t, callbacks, 2)
	assert.Equal(t, models.BucketOverdue, callbacks[0].Bucket)
	assert.Equal(t, models.BucketToday, callbacks[1].Bucket)
}

func TestCallbackServiceListScopesNonAdmin(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	_, _, err := svc.List(context.Background(), models.CallbackFilter{AssignedTo: "other"}, salesClaims("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, "emp-1", repo.listFilter.AssignedTo)
}

func TestCallbackServiceRescheduleTracksHistory(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", LeadID: "lead-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1",
			ScheduledDate: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	newDate := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	req := dto.RescheduleCallbackRequest{ScheduledDate: newDate, ScheduledTime: "11:00"}
	cb, err := svc.Reschedule(context.Background(), "cb-1", req, salesClaims("emp-1"))

	require.NoError(t, err)
	assert.Equal(t, models.CallbackStatusRescheduled, cb.Status)
	assert.Equal(t, 1, cb.RescheduledCount)
	assert.Equal(t, []time.Time{newDate}, leads.followUps)
}

func TestCallbackServiceRescheduleRejectsTerminalStatus(t *testing.T) {
	repo := &callbackRepoStub{
		callbacks: map[string]*models.Callback{
			"cb-1": {ID: "cb-1", Status: models.CallbackStatusCancelled, AssignedTo: "emp-1"},
		},
		rescheduleErr: sql.ErrNoRows,
	}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	req := dto.RescheduleCallbackRequest{ScheduledDate: time.Now(), ScheduledTime: "11:00"}
	_, err := svc.Reschedule(context.Background(), "cb-1", req, salesClaims("emp-1"))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestCallbackServiceCompleteStampsLeadContact(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", LeadID: "lead-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	cb, err := svc.Complete(context.Background(), "cb-1", dto.CompleteCallbackRequest{Outcome: "client confirmed"}, salesClaims("emp-1"))

	require.NoError(t, err)
	assert.Equal(t, models.CallbackStatusCompleted, cb.Status)
	assert.Equal(t, models.BucketCompleted, cb.Bucket)
	require.Len(t, leads.contactAts, 1)
	assert.Equal(t, time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC), leads.contactAts[0])
}

func TestCallbackServiceCompleteIsIdempotent(t *testing.T) {
	done := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", Status: models.CallbackStatusCompleted, AssignedTo: "emp-1", CompletedAt: &done},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	cb, err := svc.Complete(context.Background(), "cb-1", dto.CompleteCallbackRequest{}, salesClaims("emp-1"))

	require.NoError(t, err)
	assert.Equal(t, models.CallbackStatusCompleted, cb.Status)
	assert.Equal(t, &done, cb.CompletedAt)
	// The repository write never happened.
	assert.Empty(t, repo.completed)
	assert.Empty(t, leads.contactAts)
}

func TestCallbackServiceCompleteRejectsCancelled(t *testing.T) {
	repo := &callbackRepoStub{
		callbacks: map[string]*models.Callback{
			"cb-1": {ID: "cb-1", Status: models.CallbackStatusCancelled, AssignedTo: "emp-1"},
		},
		completeErr: sql.ErrNoRows,
	}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	_, err := svc.Complete(context.Background(), "cb-1", dto.CompleteCallbackRequest{}, adminClaims())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Empty(t, leads.contactAts)
}

func TestCallbackServiceCancelRejectsCompleted(t *testing.T) {
	repo := &callbackRepoStub{
		callbacks: map[string]*models.Callback{
			"cb-1": {ID: "cb-1", Status: models.CallbackStatusCompleted, AssignedTo: "emp-1"},
		},
		cancelErr: sql.ErrNoRows,
	}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	_, err := svc.Cancel(context.Background(), "cb-1", salesClaims("emp-1"))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestCallbackServiceMutationsRequireAssignee(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	_, err := svc.Cancel(context.Background(), "cb-1", salesClaims("emp-2"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestCallbackServiceDeleteRequiresSuperAdmin(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	err := svc.Delete(context.Background(), "cb-1", salesClaims("emp-1"))

	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.deleted)
}

func TestCallbackServiceDeleteBlockedByOpenTransfer(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)
	svc.transfers = &openHandoffStub{transfer: &models.Transfer{ID: "tr-1", CallbackID: "cb-1", Status: models.TransferStatusTransferred}}

	err := svc.Delete(context.Background(), "cb-1", adminClaims())

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	assert.Empty(t, repo.deleted)
}

func TestCallbackServiceDeleteRemovesCallback(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", Status: models.CallbackStatusCancelled, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)
	invalidator := &summaryInvalidatorStub{}
	svc.summaries = invalidator

	err := svc.Delete(context.Background(), "cb-1", adminClaims())

	require.NoError(t, err)
	assert.Equal(t, []string{"cb-1"}, repo.deleted)
	assert.Equal(t, 1, invalidator.calls)
}

func TestCallbackServiceDeleteMissing(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	err := svc.Delete(context.Background(), "cb-404", adminClaims())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCallbackServiceCompleteInvalidatesSummary(t *testing.T) {
	repo := &callbackRepoStub{callbacks: map[string]*models.Callback{
		"cb-1": {ID: "cb-1", LeadID: "lead-1", Status: models.CallbackStatusPending, AssignedTo: "emp-1"},
	}}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)
	invalidator := &summaryInvalidatorStub{}
	svc.summaries = invalidator

	_, err := svc.Complete(context.Background(), "cb-1", dto.CompleteCallbackRequest{}, salesClaims("emp-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, invalidator.calls)
}

func TestCallbackServiceStats(t *testing.T) {
	repo := &callbackRepoStub{
		callbacks: map[string]*models.Callback{},
		listResult: []models.Callback{
			{ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
			{ScheduledDate: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusCompleted},
		},
	}
	leads := &callbackLeadStub{leads: map[string]*models.Lead{}}
	svc := newCallbackServiceForTest(repo, leads)

	stats, err := svc.Stats(context.Background(), adminClaims())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 50.0, stats.CompletionRate)
	assert.Equal(t, 1, stats.ByBucket[models.BucketToday])
	assert.Equal(t, 1, stats.ByBucket[models.BucketCompleted])
}
