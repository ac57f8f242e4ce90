package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/quotedesk/rfq-service/internal/logger"
	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/notify"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	sent    []notify.Message
	failFor map[string]error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	if err, ok := f.failFor[msg.Recipient]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.ReminderConfig{}, &model.ReminderScheduleEntry{}, &model.Subcontractor{}))
	return db
}

func seedSchedule(t *testing.T, r *repo.Repository, ctx context.Context, subID string, at time.Time) *model.ReminderScheduleEntry {
	assert.NoError(t, r.DB(ctx).Create(&model.Subcontractor{
		ID: subID, Name: "Sub " + subID, ContactName: "Carol",
		Email: subID + "@example.com",
	}).Error)
	cfg := &model.ReminderConfig{
		RfqID: "rfq-" + subID, SubcontractorID: subID,
		DueDate: at.AddDate(0, 0, 7), EmailBody: "Quote is due soon.",
		UpdatedBy: "alice",
	}
	assert.NoError(t, r.CreateConfig(ctx, r.DB(ctx), cfg))
	entry := &model.ReminderScheduleEntry{ConfigID: cfg.ID, ReminderAt: at}
	assert.NoError(t, r.CreateEntry(ctx, r.DB(ctx), entry))
	return entry
}

func TestTick_DispatchesOnceThenNever(t *testing.T) {
	db := newTestDB(t)
	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	sink := &fakeNotifier{failFor: map[string]error{}}
	sched := New(repository, sink, time.UTC, CadenceInterval, time.Minute, "", logger.NewNop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Minute)
	entry := seedSchedule(t, repository, ctx, "sub-1", now)

	assert.Equal(t, 1, sched.TickAt(ctx, now))
	assert.Len(t, sink.sent, 1)
	assert.Equal(t, "sub-1@example.com", sink.sent[0].Recipient)

	var stored model.ReminderScheduleEntry
	assert.NoError(t, repository.DB(ctx).First(&stored, "id = ?", entry.ID).Error)
	assert.NotNil(t, stored.SentAt)

	// same minute again: the sent entry is no longer pending
	assert.Equal(t, 0, sched.TickAt(ctx, now))
	assert.Len(t, sink.sent, 1)
}

func TestTick_OnlyExactMinuteIsDue(t *testing.T) {
	db := newTestDB(t)
	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	sink := &fakeNotifier{failFor: map[string]error{}}
	sched := New(repository, sink, time.UTC, CadenceInterval, time.Minute, "", logger.NewNop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Minute)
	seedSchedule(t, repository, ctx, "sub-1", now.Add(time.Minute))

	assert.Equal(t, 0, sched.TickAt(ctx, now), "future entries must not fire early")
	assert.Equal(t, 1, sched.TickAt(ctx, now.Add(time.Minute)))
}

func TestTick_FailedDispatchIsAbandoned(t *testing.T) {
	db := newTestDB(t)
	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	sink := &fakeNotifier{failFor: map[string]error{
		"sub-bad@example.com": errors.New("smtp refused"),
	}}
	sched := New(repository, sink, time.UTC, CadenceInterval, time.Minute, "", logger.NewNop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Minute)
	badEntry := seedSchedule(t, repository, ctx, "sub-bad", now)
	seedSchedule(t, repository, ctx, "sub-good", now)

	assert.Equal(t, 1, sched.TickAt(ctx, now), "one failure must not stop the tick")
	assert.Len(t, sink.sent, 1)
	assert.Equal(t, "sub-good@example.com", sink.sent[0].Recipient)

	// the failed entry stays unsent and gets no second attempt
	var stored model.ReminderScheduleEntry
	assert.NoError(t, repository.DB(ctx).First(&stored, "id = ?", badEntry.ID).Error)
	assert.Nil(t, stored.SentAt)
}

// shutdownNotifier cancels the surrounding context while a send is in
// flight, the way a SIGTERM lands mid-tick.
type shutdownNotifier struct {
	cancel context.CancelFunc
	sent   int
}

func (n *shutdownNotifier) Send(_ context.Context, _ notify.Message) error {
	n.cancel()
	n.sent++
	return nil
}

func TestTick_ShutdownMidDispatchStillMarksSent(t *testing.T) {
	db := newTestDB(t)
	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &shutdownNotifier{cancel: cancel}
	sched := New(repository, sink, time.UTC, CadenceInterval, time.Minute, "", logger.NewNop())

	now := time.Now().UTC().Truncate(time.Minute)
	entry := seedSchedule(t, repository, ctx, "sub-1", now)

	assert.Equal(t, 1, sched.TickAt(ctx, now))
	assert.Equal(t, 1, sink.sent)

	// the delivered message must be recorded despite the cancellation,
	// otherwise a restart within the same minute would send it twice
	var stored model.ReminderScheduleEntry
	assert.NoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	assert.NotNil(t, stored.SentAt)
}

func TestTick_DisabledFlagSkipsDispatch(t *testing.T) {
	db := newTestDB(t)
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("reminders:enabled").SetVal("0")

	repository := repo.NewRepository(db, rdb, nil, logger.NewNop())
	sink := &fakeNotifier{failFor: map[string]error{}}
	sched := New(repository, sink, time.UTC, CadenceInterval, time.Minute, "", logger.NewNop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Minute)
	seedSchedule(t, repository, ctx, "sub-1", now)

	assert.Equal(t, 0, sched.TickAt(ctx, now))
	assert.Empty(t, sink.sent)
}

func TestRun_StopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	sched := New(repository, &fakeNotifier{}, time.UTC, CadenceInterval, time.Hour, "", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not observe cancellation")
	}
}

func TestNextDelay_DailyAt(t *testing.T) {
	sched := New(nil, &fakeNotifier{}, time.UTC, CadenceDailyAt, 0, "06:00", logger.NewNop())

	before := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	delay, err := sched.nextDelay(before)
	assert.NoError(t, err)
	assert.Equal(t, time.Hour, delay)

	after := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	delay, err = sched.nextDelay(after)
	assert.NoError(t, err)
	assert.Equal(t, 23*time.Hour, delay)

	sched = New(nil, &fakeNotifier{}, time.UTC, CadenceDailyAt, 0, "nope", logger.NewNop())
	_, err = sched.nextDelay(before)
	assert.Error(t, err)
}
