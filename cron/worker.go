package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"agrowatch/config"
	otplogRepo "agrowatch/database/repository/otplog"
	"agrowatch/models"
	"agrowatch/services/otp"
	"agrowatch/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// InitOTPWorker runs the async worker in background. It persists
// challenge audit events and follows up on SMS delivery status.
func InitOTPWorker(logRepo otplogRepo.OTPLogRepository, status otp.DeliveryStatusFetcher) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"otp":     5,
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeOTPAudit, handleAuditTask(logRepo))
	mux.HandleFunc(tasks.TypeDeliveryCheck, handleDeliveryCheckTask(logRepo, status))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[OTPWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[OTPWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[OTPWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleAuditTask(logRepo otplogRepo.OTPLogRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var event models.OTPEvent
		if err := json.Unmarshal(task.Payload(), &event); err != nil {
			log.Printf("[OTPAudit] 🔴 Invalid payload: %v", err)
			return err
		}

		if _, err := logRepo.Create(ctx, event); err != nil {
			log.Printf("[OTPAudit] ❌ Failed to persist event %s for challenge %s: %v", event.Event, event.ChallengeID, err)
			return err
		}
		return nil
	}
}

// finalDeliveryStatus lists carrier statuses that will not change
// again; anything else earns another check via asynq retry.
func finalDeliveryStatus(status string) bool {
	switch status {
	case "delivered", "failed", "undelivered", "canceled":
		return true
	}
	return false
}

func handleDeliveryCheckTask(logRepo otplogRepo.OTPLogRepository, status otp.DeliveryStatusFetcher) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.DeliveryCheckPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[DeliveryCheck] 🔴 Invalid payload: %v", err)
			return err
		}
		if status == nil {
			log.Printf("[DeliveryCheck] ⚠️ No status fetcher configured, skipping %s", p.MessageSID)
			return nil
		}

		current, err := status.FetchDeliveryStatus(ctx, p.MessageSID)
		if err != nil {
			log.Printf("[DeliveryCheck] ❌ Failed to fetch status for %s: %v", p.MessageSID, err)
			return err
		}

		if err := logRepo.SetDeliveryStatus(ctx, p.ChallengeID, p.MessageSID, current); err != nil {
			log.Printf("[DeliveryCheck] ❌ Failed to record status for %s: %v", p.MessageSID, err)
			return err
		}

		if !finalDeliveryStatus(current) {
			return fmt.Errorf("message %s still %s", p.MessageSID, current)
		}
		log.Printf("[DeliveryCheck] 📨 Message %s settled as %s", p.MessageSID, current)
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[OTPWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
