package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/feiralivre/marketplace-backend/pkg/config"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
)

type fakeOutboxRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutboxRepo) FetchUnpublished(_, _ int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	events := f.events
	f.events = nil
	return events, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeHandler struct {
	failFor map[uuid.UUID]error
	seen    []uuid.UUID
}

func (f *fakeHandler) Dispatch(_ context.Context, event models.OutboxEvent) error {
	f.seen = append(f.seen, event.ID)
	if err, ok := f.failFor[event.ID]; ok {
		return err
	}
	return nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newWorker(t *testing.T, repo outboxRepository, handler eventHandler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:    10,
			PollInterval: time.Millisecond,
			MaxAttempts:  3,
		}},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         &fakePinger{},
		Repository: repo,
		Handler:    handler,
	})
	require.NoError(t, err)
	return svc
}

func pendingEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	}
}

func TestProcessBatchMarksDispatchedEventsPublished(t *testing.T) {
	first := pendingEvent()
	second := pendingEvent()
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{first, second}}
	handler := &fakeHandler{}
	svc := newWorker(t, repo, handler)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, handler.seen)
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.published)
	require.Empty(t, repo.failed)
}

func TestProcessBatchRecordsFailuresAndContinues(t *testing.T) {
	broken := pendingEvent()
	healthy := pendingEvent()
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{broken, healthy}}
	handler := &fakeHandler{failFor: map[uuid.UUID]error{broken.ID: errors.New("boom")}}
	svc := newWorker(t, repo, handler)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{broken.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{healthy.ID}, repo.published)
}

func TestProcessBatchWithEmptyQueue(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newWorker(t, repo, &fakeHandler{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessBatchSurfacesFetchError(t *testing.T) {
	repo := &fakeOutboxRepo{fetchErr: errors.New("db down")}
	svc := newWorker(t, repo, &fakeHandler{})

	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newWorker(t, repo, &fakeHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunFailsWhenDatabaseUnreachable(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         &fakePinger{err: errors.New("no route")},
		Repository: &fakeOutboxRepo{},
		Handler:    &fakeHandler{},
	})
	require.NoError(t, err)
	require.Error(t, svc.Run(context.Background()))
}
