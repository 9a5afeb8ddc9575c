package otplogRepo

import (
	"context"

	"agrowatch/database"
	"agrowatch/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// OTPLogRepository persists the audit trail of challenge lifecycle
// events. Writes happen off the request path, in the queue worker.
type OTPLogRepository interface {
	Create(ctx context.Context, event models.OTPEvent) (string, error)
	GetByChallengeID(ctx context.Context, challengeID string) ([]models.OTPEvent, error)
	SetDeliveryStatus(ctx context.Context, challengeID, messageSID, status string) error
}

type mongoOTPLogRepo struct {
	coll *mongo.Collection
}

// NewMongoOTPLogRepo creates a new OTPLogRepository backed by MongoDB.
func NewMongoOTPLogRepo() OTPLogRepository {
	return &mongoOTPLogRepo{coll: database.Collection("otp_events")}
}
