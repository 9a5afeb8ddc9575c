package tasks

import (
	"context"

	"agrowatch/config"
	"agrowatch/models"
	"agrowatch/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqAuditor pushes challenge lifecycle events onto the queue so
// persistence happens off the request path. It implements the OTP
// orchestrator's Auditor seam.
type AsynqAuditor struct {
	client *asynq.Client
}

// NewAsynqAuditor connects an enqueue-only client to the queue Redis DB.
func NewAsynqAuditor() *AsynqAuditor {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	return &AsynqAuditor{client: client}
}

// Record enqueues the audit event, plus a delivery check when the
// event is an SMS send. Failures are logged and swallowed: auditing
// never fails an authentication request.
func (a *AsynqAuditor) Record(ctx context.Context, event models.OTPEvent) {
	logger := utils.GetLogger()

	task, opts, err := NewOTPAuditTask(event)
	if err != nil {
		logger.Warn("Failed to build audit task", zap.Error(err))
		return
	}
	if _, err := a.client.EnqueueContext(ctx, task, opts...); err != nil {
		logger.Warn("Failed to enqueue audit event",
			zap.String("event", event.Event),
			zap.Error(err),
		)
	}

	if event.Event == models.OTPEventIssued && event.MessageSID != "" {
		task, opts, err := NewDeliveryCheckTask(event.ChallengeID, event.MessageSID)
		if err != nil {
			logger.Warn("Failed to build delivery check task", zap.Error(err))
			return
		}
		if _, err := a.client.EnqueueContext(ctx, task, opts...); err != nil {
			logger.Warn("Failed to enqueue delivery check", zap.Error(err))
		}
	}
}

// Close releases the queue connection.
func (a *AsynqAuditor) Close() error {
	return a.client.Close()
}
