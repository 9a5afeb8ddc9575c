// models/otp.go
package models

import "time"

// OTP audit event names, in lifecycle order.
const (
	OTPEventIssued    = "issued"
	OTPEventVerified  = "verified"
	OTPEventFailed    = "failed"
	OTPEventExhausted = "exhausted"
)

// OTPEvent is the persisted audit record for a challenge lifecycle
// step. Phone numbers are stored masked; codes are never stored.
type OTPEvent struct {
	ID             string    `bson:"id" json:"id"`
	ChallengeID    string    `bson:"challenge_id" json:"challenge_id"`
	Phone          string    `bson:"phone" json:"phone"`
	Purpose        string    `bson:"purpose" json:"purpose"`
	Provider       string    `bson:"provider" json:"provider"`
	Event          string    `bson:"event" json:"event"`
	Detail         string    `bson:"detail,omitempty" json:"detail,omitempty"`
	MessageSID     string    `bson:"message_sid,omitempty" json:"message_sid,omitempty"`
	DeliveryStatus string    `bson:"delivery_status,omitempty" json:"delivery_status,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
