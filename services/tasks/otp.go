package tasks

import (
	"encoding/json"
	"time"

	"agrowatch/models"

	"github.com/hibiken/asynq"
)

const (
	TypeOTPAudit      = "otp:audit"
	TypeDeliveryCheck = "otp:delivery_check"
)

// Carrier status usually settles within seconds; the first check waits
// this long after the send.
const deliveryCheckDelay = 30 * time.Second

// DeliveryCheckPayload identifies the message whose carrier status
// should be fetched.
type DeliveryCheckPayload struct {
	ChallengeID string `json:"challenge_id"`
	MessageSID  string `json:"message_sid"`
}

// NewOTPAuditTask wraps a challenge lifecycle event for the queue.
func NewOTPAuditTask(event models.OTPEvent) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeOTPAudit, b)
	opts := []asynq.Option{asynq.Queue("otp"), asynq.MaxRetry(3)}

	return task, opts, nil
}

// NewDeliveryCheckTask schedules a carrier status lookup for a sent
// message. The handler re-errors on non-final statuses so asynq's
// retry backoff spaces out subsequent checks.
func NewDeliveryCheckTask(challengeID, messageSID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(DeliveryCheckPayload{ChallengeID: challengeID, MessageSID: messageSID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeDeliveryCheck, b)
	opts := []asynq.Option{
		asynq.Queue("otp"),
		asynq.ProcessIn(deliveryCheckDelay),
		asynq.MaxRetry(5),
	}

	return task, opts, nil
}
