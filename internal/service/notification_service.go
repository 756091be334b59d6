package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesdesk/pipeline-api/internal/models"
	"github.com/salesdesk/pipeline-api/pkg/config"
	"github.com/salesdesk/pipeline-api/pkg/jobs"
)

const (
	notificationTransferInitiated = "transfer.initiated"
	notificationLeadReassigned    = "lead.reassigned"
)

// notificationEvent is the webhook payload envelope.
type notificationEvent struct {
	Event      string      `json:"event"`
	Recipient  string      `json:"recipient"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// NotificationService dispatches workflow events to an external webhook
// through the background queue. Enqueue failures are logged and dropped;
// notifications never block or fail the triggering operation.
type NotificationService struct {
	queue   *jobs.Queue
	client  *http.Client
	url     string
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs the dispatcher and its queue. Call Start
// before use and Stop on shutdown.
func NewNotificationService(cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.WebhookURL,
		enabled: cfg.Enabled && cfg.WebhookURL != "",
		logger:  logger,
		now:     time.Now,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// TransferInitiated notifies the recipient of a pending handoff.
func (s *NotificationService) TransferInitiated(transfer *models.Transfer) {
	s.dispatch(notificationTransferInitiated, transfer.ToEmployee, transfer)
}

// LeadReassigned notifies the previous owner that a lead moved away.
func (s *NotificationService) LeadReassigned(lead *models.Lead, previousOwner string) {
	s.dispatch(notificationLeadReassigned, previousOwner, map[string]string{
		"leadId":     lead.ID,
		"leadCode":   lead.Code,
		"clientName": lead.ClientName,
		"assignedTo": lead.AssignedTo,
	})
}

func (s *NotificationService) dispatch(event, recipient string, data interface{}) {
	if !s.enabled {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: event,
		Payload: notificationEvent{
			Event:      event,
			Recipient:  recipient,
			OccurredAt: s.now().UTC(),
			Data:       data,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("event", event), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
