package cron

import (
	"context"
	"errors"
	"testing"

	"agrowatch/models"
	"agrowatch/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingLogRepo struct {
	created   []models.OTPEvent
	createErr error

	statusChallenge string
	statusSID       string
	statusValue     string
	statusErr       error
}

func (r *recordingLogRepo) Create(ctx context.Context, event models.OTPEvent) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.created = append(r.created, event)
	return "evt-1", nil
}

func (r *recordingLogRepo) GetByChallengeID(ctx context.Context, challengeID string) ([]models.OTPEvent, error) {
	return nil, nil
}

func (r *recordingLogRepo) SetDeliveryStatus(ctx context.Context, challengeID, messageSID, status string) error {
	if r.statusErr != nil {
		return r.statusErr
	}
	r.statusChallenge = challengeID
	r.statusSID = messageSID
	r.statusValue = status
	return nil
}

type stubStatusFetcher struct {
	status string
	err    error
	calls  int
}

func (s *stubStatusFetcher) FetchDeliveryStatus(ctx context.Context, messageSID string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.status, nil
}

func TestHandleAuditTask(t *testing.T) {
	t.Run("persists the queued event", func(t *testing.T) {
		repo := &recordingLogRepo{}
		event := models.OTPEvent{
			ChallengeID: "ch-1",
			Phone:       "+*********210",
			Purpose:     "login",
			Provider:    "twilio_sms",
			Event:       "issued",
		}
		task, _, err := tasks.NewOTPAuditTask(event)
		require.NoError(t, err)

		err = handleAuditTask(repo)(context.Background(), task)
		require.NoError(t, err)
		require.Len(t, repo.created, 1)
		require.Equal(t, "ch-1", repo.created[0].ChallengeID)
		require.Equal(t, "issued", repo.created[0].Event)
	})

	t.Run("rejects a malformed payload", func(t *testing.T) {
		repo := &recordingLogRepo{}
		task := asynq.NewTask(tasks.TypeOTPAudit, []byte("{not json"))

		err := handleAuditTask(repo)(context.Background(), task)
		require.Error(t, err)
		require.Empty(t, repo.created)
	})

	t.Run("propagates repository failures so asynq retries", func(t *testing.T) {
		repo := &recordingLogRepo{createErr: errors.New("mongo down")}
		task, _, err := tasks.NewOTPAuditTask(models.OTPEvent{ChallengeID: "ch-1", Event: "issued"})
		require.NoError(t, err)

		err = handleAuditTask(repo)(context.Background(), task)
		require.Error(t, err)
	})
}

func TestHandleDeliveryCheckTask(t *testing.T) {
	newTask := func(t *testing.T) *asynq.Task {
		t.Helper()
		task, _, err := tasks.NewDeliveryCheckTask("ch-1", "SM123")
		require.NoError(t, err)
		return task
	}

	t.Run("records a final status and settles", func(t *testing.T) {
		repo := &recordingLogRepo{}
		fetcher := &stubStatusFetcher{status: "delivered"}

		err := handleDeliveryCheckTask(repo, fetcher)(context.Background(), newTask(t))
		require.NoError(t, err)
		require.Equal(t, 1, fetcher.calls)
		require.Equal(t, "ch-1", repo.statusChallenge)
		require.Equal(t, "SM123", repo.statusSID)
		require.Equal(t, "delivered", repo.statusValue)
	})

	t.Run("records an interim status but errors for a retry", func(t *testing.T) {
		repo := &recordingLogRepo{}
		fetcher := &stubStatusFetcher{status: "sent"}

		err := handleDeliveryCheckTask(repo, fetcher)(context.Background(), newTask(t))
		require.Error(t, err)
		require.Equal(t, "sent", repo.statusValue)
	})

	t.Run("errors when the carrier lookup fails", func(t *testing.T) {
		repo := &recordingLogRepo{}
		fetcher := &stubStatusFetcher{err: errors.New("twilio unreachable")}

		err := handleDeliveryCheckTask(repo, fetcher)(context.Background(), newTask(t))
		require.Error(t, err)
		require.Empty(t, repo.statusValue)
	})

	t.Run("skips quietly without a status fetcher", func(t *testing.T) {
		repo := &recordingLogRepo{}

		err := handleDeliveryCheckTask(repo, nil)(context.Background(), newTask(t))
		require.NoError(t, err)
		require.Empty(t, repo.statusValue)
	})
}

func TestFinalDeliveryStatus(t *testing.T) {
	final := []string{"delivered", "failed", "undelivered", "canceled"}
	for _, s := range final {
		if !finalDeliveryStatus(s) {
			t.Errorf("finalDeliveryStatus(%q) = false, want true", s)
		}
	}
	interim := []string{"queued", "accepted", "sending", "sent", ""}
	for _, s := range interim {
		if finalDeliveryStatus(s) {
			t.Errorf("finalDeliveryStatus(%q) = true, want false", s)
		}
	}
}
