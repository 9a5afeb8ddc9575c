package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// MongoDB configuration.
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`
	RedisOTPDB    int    `mapstructure:"REDIS_OTP_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Access token settings.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenTTLHours int    `mapstructure:"TOKEN_TTL_HOURS"`

	// Twilio credentials. An empty value leaves the matching
	// provider unconfigured rather than failing boot.
	TwilioAccountSID          string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken           string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioVerifyServiceSID    string `mapstructure:"TWILIO_VERIFY_SERVICE_SID"`
	TwilioMessagingServiceSID string `mapstructure:"TWILIO_MESSAGING_SERVICE_SID"`
	TwilioFromNumber          string `mapstructure:"TWILIO_FROM_NUMBER"`

	// Firebase / Identity Platform.
	FirebaseWebAPIKey       string `mapstructure:"FIREBASE_WEB_API_KEY"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseRecaptchaToken  string `mapstructure:"FIREBASE_RECAPTCHA_TOKEN"`

	// OTP flow tunables.
	OTPChallengeTTLMinutes    int    `mapstructure:"OTP_CHALLENGE_TTL_MINUTES"`
	OTPMaxAttempts            int    `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPResendCooldownSeconds  int    `mapstructure:"OTP_RESEND_COOLDOWN_SECONDS"`
	OTPProviderTimeoutSeconds int    `mapstructure:"OTP_PROVIDER_TIMEOUT_SECONDS"`
	OTPDefaultCountryCode     string `mapstructure:"OTP_DEFAULT_COUNTRY_CODE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DB_NAME", "agrowatch")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_AUTH_DB", 1)
	viper.SetDefault("REDIS_OTP_DB", 2)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("TOKEN_TTL_HOURS", 72)
	viper.SetDefault("OTP_CHALLENGE_TTL_MINUTES", 5)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 3)
	viper.SetDefault("OTP_RESEND_COOLDOWN_SECONDS", 60)
	viper.SetDefault("OTP_PROVIDER_TIMEOUT_SECONDS", 5)
	viper.SetDefault("OTP_DEFAULT_COUNTRY_CODE", "+91")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
