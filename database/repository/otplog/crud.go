package otplogRepo

import (
	"context"
	"errors"
	"time"

	"agrowatch/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new audit event and returns its ID.
func (r *mongoOTPLogRepo) Create(ctx context.Context, event models.OTPEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.coll.InsertOne(ctx, event)
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

// GetByChallengeID fetches all events recorded for one challenge,
// oldest first.
func (r *mongoOTPLogRepo) GetByChallengeID(ctx context.Context, challengeID string) ([]models.OTPEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"challenge_id": challengeID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.OTPEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SetDeliveryStatus stamps the carrier delivery status onto the issued
// event that carries the given message SID.
func (r *mongoOTPLogRepo) SetDeliveryStatus(ctx context.Context, challengeID, messageSID, status string) error {
	filter := bson.M{"challenge_id": challengeID, "message_sid": messageSID}
	update := bson.M{"$set": bson.M{"delivery_status": status}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("audit event not found")
	}
	return nil
}
