package user

import "errors"

// Errors handlers translate into HTTP statuses.
var (
	// ErrUserNotFound is returned on login when no account matches the
	// verified phone number.
	ErrUserNotFound = errors.New("user not found, please register first")
	// ErrUserExists is returned on registration when the phone number
	// is already taken.
	ErrUserExists = errors.New("user already exists, please login instead")
	// ErrUserInactive blocks deactivated accounts from signing in.
	ErrUserInactive = errors.New("account is deactivated")
	// ErrInvalidCredentials covers both a wrong password and an
	// account without one, so responses do not reveal which.
	ErrInvalidCredentials = errors.New("invalid phone number or password")
	// ErrIdentityUnavailable is returned when an identity platform
	// path is hit but Firebase was never initialized.
	ErrIdentityUnavailable = errors.New("identity platform sign-in unavailable")
)
