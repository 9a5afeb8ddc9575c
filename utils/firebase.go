// utils/firebase.go
package utils

import (
	"context"
	"fmt"

	"agrowatch/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var FirebaseAuthClient *auth.Client

// FirebaseInit initializes the Firebase App and Auth client. Failure is
// returned, not fatal: without it ID-token logins and the identity
// platform sign-in path are unavailable, but OTP over SMS still works.
func FirebaseInit() error {
	if config.AppConfig.FirebaseCredentialsFile == "" {
		return fmt.Errorf("firebase: no credentials file configured")
	}

	ctx := context.Background()
	opt := option.WithCredentialsFile(config.AppConfig.FirebaseCredentialsFile)

	var fbCfg *firebase.Config
	if config.AppConfig.FirebaseProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: config.AppConfig.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opt)
	if err != nil {
		return fmt.Errorf("firebase: error initializing app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return fmt.Errorf("firebase: error getting Auth client: %w", err)
	}

	FirebaseAuthClient = client
	return nil
}

// GetFirebaseAuthClient returns the Auth client, or nil when Firebase
// was not initialized.
func GetFirebaseAuthClient() *auth.Client {
	return FirebaseAuthClient
}
