package userRepo

import (
	"agrowatch/models"

	"go.mongodb.org/mongo-driver/bson"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	// GetByID retrieves a user by its unique ID.
	GetByID(id string) (*models.User, error)
	// GetByPhone retrieves a user by its canonical phone number.
	GetByPhone(phone string) (*models.User, error)
	// GetByFirebaseUID retrieves a user by its identity platform UID.
	GetByFirebaseUID(uid string) (*models.User, error)
	// Create inserts a new user record.
	Create(user *models.User) error
	// Update modifies an existing user record.
	Update(user *models.User) error
	// UpdateFields applies a partial $set update to a user record.
	UpdateFields(id string, fields bson.M) error
	// Delete removes a user record by its ID.
	Delete(id string) error
	// GetByIDWithProjection retrieves a user by its unique ID with a projection.
	GetByIDWithProjection(id string, projection bson.M) (*models.User, error)
	// GetByPhoneWithProjection retrieves a user by phone with a projection.
	GetByPhoneWithProjection(phone string, projection bson.M) (*models.User, error)
}
