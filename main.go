package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrowatch/config"
	"agrowatch/cron"
	"agrowatch/database"
	otplogRepoPkg "agrowatch/database/repository/otplog"
	userRepoPkg "agrowatch/database/repository/user"
	"agrowatch/handlers"
	"agrowatch/middleware"
	"agrowatch/routes"
	"agrowatch/services/otp"
	"agrowatch/services/tasks"
	"agrowatch/services/user"
	"agrowatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitRedis()
	if err := utils.FirebaseInit(); err != nil {
		logger.Sugar().Warnf("main: firebase admin unavailable, identity logins disabled: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	userRepo := userRepoPkg.NewMongoUserRepo()
	otplogRepo := otplogRepoPkg.NewMongoOTPLogRepo()

	cfg := config.AppConfig
	callTimeout := time.Duration(cfg.OTPProviderTimeoutSeconds) * time.Second
	challengeTTL := time.Duration(cfg.OTPChallengeTTLMinutes) * time.Minute
	cooldown := time.Duration(cfg.OTPResendCooldownSeconds) * time.Second

	// Verification providers, priority order. Unconfigured ones stay in
	// the slice and are skipped at send time.
	verifyProvider := otp.NewTwilioVerifyProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioVerifyServiceSID, callTimeout)
	smsProvider := otp.NewTwilioSMSProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioMessagingServiceSID, cfg.TwilioFromNumber, callTimeout, challengeTTL)
	providers := []otp.Provider{verifyProvider, smsProvider}

	firebaseProvider, err := otp.NewFirebasePhoneProvider(context.Background(), cfg.FirebaseWebAPIKey, otp.StaticRecaptchaToken(cfg.FirebaseRecaptchaToken))
	if err != nil {
		logger.Sugar().Warnf("main: firebase phone provider unavailable: %v", err)
	} else {
		providers = append(providers, firebaseProvider)
	}

	// Challenge store and resend gate live in the OTP Redis DB.
	otpCache := utils.GetOTPCacheClient()
	challengeStore := &otp.RedisChallengeStore{Client: otpCache}
	resendGate := &otp.RedisResendGate{Client: otpCache, Interval: cooldown}

	validator := otp.NewPhoneValidator(cfg.OTPDefaultCountryCode)
	auditor := tasks.NewAsynqAuditor()

	// services.
	sessionService := &user.DefaultSessionService{
		Repo:      userRepo,
		Firebase:  utils.GetFirebaseAuthClient(),
		AuthCache: utils.GetAuthCacheClient(),
		Validator: validator,
		TokenTTL:  time.Duration(cfg.TokenTTLHours) * time.Hour,
	}

	otpService := &otp.DefaultService{
		Providers:    providers,
		Validator:    validator,
		Store:        challengeStore,
		Gate:         resendGate,
		Sessions:     sessionService,
		Audit:        auditor,
		CallTimeout:  callTimeout,
		ChallengeTTL: challengeTTL,
		MaxAttempts:  cfg.OTPMaxAttempts,
	}

	// Background worker: audit persistence and delivery checks. The SMS
	// provider doubles as the delivery status source.
	cron.InitOTPWorker(otplogRepo, smsProvider)

	authHandler := handlers.NewAuthHandler(otpService, sessionService, resendGate, validator)
	accountHandler := handlers.NewAccountHandler(sessionService)
	statusHandler := handlers.NewStatusHandler(otpService)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		UserRepo: userRepo,

		SendOTPHandler:       authHandler.SendOTPHandler,
		VerifyOTPHandler:     authHandler.VerifyOTPHandler,
		LoginHandler:         authHandler.LoginHandler,
		FirebaseLoginHandler: authHandler.FirebaseLoginHandler,

		GetMeHandler:               accountHandler.GetMeHandler,
		RegisterHandler:            accountHandler.RegisterHandler,
		UpdateFarmerProfileHandler: accountHandler.UpdateFarmerProfileHandler,
		LogoutHandler:              authHandler.LogoutHandler,

		ProviderStatusHandler: statusHandler.ProviderStatusHandler,
		HealthHandler:         statusHandler.HealthHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	utils.StartHealthMonitor(map[string]*redis.Client{
		"auth": utils.GetAuthCacheClient(),
		"otp":  otpCache,
	}, database.MongoClient)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	otpService.Close()
	if err := auditor.Close(); err != nil {
		logger.Sugar().Warnf("main: failed to close audit queue client: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
