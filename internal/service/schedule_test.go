package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/quotedesk/rfq-service/internal/logger"
	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newScheduleTestEnv(t *testing.T) (*ScheduleService, *repo.Repository, context.Context) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.ReminderConfig{}, &model.ReminderScheduleEntry{}))

	repository := repo.NewRepository(db, nil, nil, logger.NewNop())
	svc := NewScheduleService(repository, time.UTC, logger.NewNop())
	return svc, repository, context.Background()
}

func baseRequest() ScheduleRequest {
	return ScheduleRequest{
		RfqID:           "rfq-1",
		SubcontractorID: "sub-1",
		Dates:           []string{"2024-01-15", "2024-01-20"},
		TimeOfDay:       "09:00",
		DueDate:         "2024-01-31",
		EmailBody:       "Please submit your quote.",
		UpdatedBy:       "alice",
	}
}

func TestCreateOrUpdate_UpsertsSingleConfig(t *testing.T) {
	svc, repository, ctx := newScheduleTestEnv(t)

	first, err := svc.CreateOrUpdate(ctx, baseRequest())
	assert.NoError(t, err)
	assert.Equal(t, 2, first.Scheduled)

	req := baseRequest()
	req.EmailBody = "Updated body."
	second, err := svc.CreateOrUpdate(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, first.ConfigID, second.ConfigID)

	var count int64
	assert.NoError(t, repository.DB(ctx).Model(&model.ReminderConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var cfg model.ReminderConfig
	assert.NoError(t, repository.DB(ctx).First(&cfg, "id = ?", first.ConfigID).Error)
	assert.Equal(t, "Updated body.", cfg.EmailBody)
}

func TestCreateOrUpdate_RearmsExistingEntry(t *testing.T) {
	svc, repository, ctx := newScheduleTestEnv(t)

	req := baseRequest()
	req.Dates = []string{"2024-01-15"}
	first, err := svc.CreateOrUpdate(ctx, req)
	assert.NoError(t, err)

	var entry model.ReminderScheduleEntry
	assert.NoError(t, repository.DB(ctx).First(&entry, "config_id = ?", first.ConfigID).Error)
	assert.NoError(t, repository.MarkSent(ctx, entry.ID, time.Now()))

	_, err = svc.CreateOrUpdate(ctx, req)
	assert.NoError(t, err)

	var count int64
	assert.NoError(t, repository.DB(ctx).Model(&model.ReminderScheduleEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "re-submitting the same instant must not duplicate the entry")

	assert.NoError(t, repository.DB(ctx).First(&entry, "id = ?", entry.ID).Error)
	assert.Nil(t, entry.SentAt, "re-submitting must re-arm a sent entry")
}

func TestCreateOrUpdate_SkipsMalformedDates(t *testing.T) {
	svc, repository, ctx := newScheduleTestEnv(t)

	req := baseRequest()
	req.Dates = []string{"2024-01-15", "not-a-date", "2024-01-20"}
	result, err := svc.CreateOrUpdate(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Scheduled)

	var entries []model.ReminderScheduleEntry
	assert.NoError(t, repository.DB(ctx).Order("reminder_at").Find(&entries).Error)
	assert.Len(t, entries, 2)
	assert.True(t, entries[0].ReminderAt.Equal(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)))
	assert.True(t, entries[1].ReminderAt.Equal(time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)))
}

func TestCreateOrUpdate_AllDatesInvalidFailsFast(t *testing.T) {
	svc, repository, ctx := newScheduleTestEnv(t)

	req := baseRequest()
	req.Dates = []string{"not-a-date"}
	_, err := svc.CreateOrUpdate(ctx, req)
	assert.ErrorIs(t, err, ErrNoValidDates)

	var count int64
	assert.NoError(t, repository.DB(ctx).Model(&model.ReminderConfig{}).Count(&count).Error)
	assert.EqualValues(t, 0, count, "a failed request must not persist a config")
}

func TestCreateOrUpdate_BadTimeOfDayFails(t *testing.T) {
	svc, _, ctx := newScheduleTestEnv(t)

	req := baseRequest()
	req.TimeOfDay = "quarter past nine"
	_, err := svc.CreateOrUpdate(ctx, req)
	assert.ErrorIs(t, err, ErrNoValidDates)
}

func TestCreateOrUpdate_MissingFields(t *testing.T) {
	svc, _, ctx := newScheduleTestEnv(t)

	req := baseRequest()
	req.EmailBody = "   "
	_, err := svc.CreateOrUpdate(ctx, req)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestNormalizeInstants_BusinessTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	assert.NoError(t, err)

	instants := normalizeInstants([]string{"2024-06-10"}, "08:30", loc)
	assert.Len(t, instants, 1)
	assert.True(t, instants[0].Equal(time.Date(2024, 6, 10, 8, 30, 0, 0, loc)))
}
