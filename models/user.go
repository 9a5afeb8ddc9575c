// models/user.go
package models

import (
	"time"
)

// Role values assigned to users. New sign-ups default to farmer.
const (
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

// User represents a platform user keyed by phone number.
type User struct {
	ID           string     `bson:"id" json:"id"`
	Phone        string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email,omitempty" json:"email,omitempty"`
	Aadhar       string     `bson:"aadhar,omitempty" json:"aadhar,omitempty"`
	Role         string     `bson:"role" json:"role"`
	Verified     bool       `bson:"is_verified" json:"is_verified"`
	FirebaseUID  string     `bson:"firebase_uid,omitempty" json:"firebase_uid,omitempty"`
	PasswordHash string     `bson:"password_hash,omitempty" json:"-"`
	TokenHash    string     `bson:"token_hash,omitempty" json:"-"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	Active       bool       `bson:"is_active" json:"is_active"`

	Profile *FarmerProfile `bson:"farmer_profile,omitempty" json:"farmer_profile,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ProfileComplete reports whether the farmer has filled in the details
// the advisory features need. Non-farmer roles have no profile to fill.
func (u *User) ProfileComplete() bool {
	if u.Role != RoleFarmer {
		return true
	}
	return u.Profile != nil && u.Profile.Complete
}

// FarmerProfile carries the farm details collected after registration.
type FarmerProfile struct {
	FarmSize        float64      `bson:"farm_size" json:"farm_size"`
	Location        FarmLocation `bson:"location" json:"location"`
	SoilType        string       `bson:"soil_type,omitempty" json:"soil_type,omitempty"`
	IrrigationType  string       `bson:"irrigation_type,omitempty" json:"irrigation_type,omitempty"`
	ExperienceYears int          `bson:"experience_years,omitempty" json:"experience_years,omitempty"`
	Complete        bool         `bson:"is_profile_complete" json:"is_profile_complete"`
}

// FarmLocation pins the farm for localized weather and mandi data.
type FarmLocation struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
	District  string  `bson:"district,omitempty" json:"district,omitempty"`
	State     string  `bson:"state,omitempty" json:"state,omitempty"`
	Pincode   string  `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

// AuthenticatedUser is what every successful authentication converges
// on, whether the challenge went through Twilio or the identity
// platform.
type AuthenticatedUser struct {
	User                      *User  `json:"user"`
	AccessToken               string `json:"access_token"`
	RequiresProfileCompletion bool   `json:"requires_profile_completion"`
}
