package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// enabledKey is the redis key backing the system-wide reminder switch.
// An absent key means enabled, so a cold redis never silences reminders.
const enabledKey = "reminders:enabled"

// PendingEntry is a due, unsent schedule entry joined with its config.
type PendingEntry struct {
	Entry  model.ReminderScheduleEntry
	Config model.ReminderConfig
}

// RepositoryInterface restricts Repo methods (service unit-test mocks).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	ConfigByPair(ctx context.Context, tx *gorm.DB, rfqID, subcontractorID string) (*model.ReminderConfig, error)
	CreateConfig(ctx context.Context, tx *gorm.DB, cfg *model.ReminderConfig) error
	UpdateConfig(ctx context.Context, tx *gorm.DB, cfg *model.ReminderConfig) error
	EntryByInstant(ctx context.Context, tx *gorm.DB, configID string, at time.Time) (*model.ReminderScheduleEntry, error)
	CreateEntry(ctx context.Context, tx *gorm.DB, entry *model.ReminderScheduleEntry) error
	RearmEntry(ctx context.Context, tx *gorm.DB, entryID string) error

	PendingEntries(ctx context.Context, at time.Time) ([]PendingEntry, error)
	MarkSent(ctx context.Context, entryID string, at time.Time) error

	RemindersEnabled(ctx context.Context) (bool, error)
	SetRemindersEnabled(ctx context.Context, enabled bool) error

	Subcontractor(ctx context.Context, id string) (*model.Subcontractor, error)
	MissingSubcontractors(ctx context.Context) ([]model.Subcontractor, error)
	SetRemindersSent(ctx context.Context, id string, n int) error
	DeleteSubcontractor(ctx context.Context, id string) error

	LatestQuote(ctx context.Context, subcontractorID string) (*model.Quote, error)
	RfqByID(ctx context.Context, id string) (*model.Rfq, error)
	RfqMessageByID(ctx context.Context, id string) (*model.RfqMessage, error)
	ActivityLogByID(ctx context.Context, id string) (*model.ActivityLogEntry, error)

	PublishEvent(ctx context.Context, eventType, subjectID string, payload interface{}) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo. rdb and writer may be nil; a nil rdb
// reports reminders enabled and a nil writer drops audit events.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// ConfigByPair looks up the one config for an (RFQ, subcontractor) pair.
func (r *Repository) ConfigByPair(ctx context.Context, tx *gorm.DB, rfqID, subcontractorID string) (*model.ReminderConfig, error) {
	var cfg model.ReminderConfig
	err := tx.WithContext(ctx).
		Where("rfq_id = ? AND subcontractor_id = ?", rfqID, subcontractorID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateConfig inserts a config with a fresh identity.
func (r *Repository) CreateConfig(ctx context.Context, tx *gorm.DB, cfg *model.ReminderConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	return tx.WithContext(ctx).Create(cfg).Error
}

// UpdateConfig rewrites the mutable fields of an existing config.
func (r *Repository) UpdateConfig(ctx context.Context, tx *gorm.DB, cfg *model.ReminderConfig) error {
	return tx.WithContext(ctx).Model(&model.ReminderConfig{}).
		Where("id = ?", cfg.ID).
		Updates(map[string]interface{}{
			"due_date":   cfg.DueDate,
			"email_body": cfg.EmailBody,
			"updated_by": cfg.UpdatedBy,
			"updated_at": time.Now(),
		}).Error
}

// EntryByInstant finds the schedule entry at an exact fire instant.
func (r *Repository) EntryByInstant(ctx context.Context, tx *gorm.DB, configID string, at time.Time) (*model.ReminderScheduleEntry, error) {
	var entry model.ReminderScheduleEntry
	err := tx.WithContext(ctx).
		Where("config_id = ? AND reminder_at = ?", configID, at.Truncate(time.Minute).UTC()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateEntry inserts a pending schedule entry. Instants are stored in
// UTC at minute precision so the due query can match on equality.
func (r *Repository) CreateEntry(ctx context.Context, tx *gorm.DB, entry *model.ReminderScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ReminderAt = entry.ReminderAt.Truncate(time.Minute).UTC()
	entry.SentAt = nil
	return tx.WithContext(ctx).Create(entry).Error
}

// RearmEntry resets sent_at so an already-dispatched instant fires again.
func (r *Repository) RearmEntry(ctx context.Context, tx *gorm.DB, entryID string) error {
	return tx.WithContext(ctx).Model(&model.ReminderScheduleEntry{}).
		Where("id = ?", entryID).
		Update("sent_at", nil).Error
}

// PendingEntries returns unsent entries due at exactly the given minute,
// each joined with its parent config. The system-wide switch is read
// once per call; disabled means no work regardless of due rows.
func (r *Repository) PendingEntries(ctx context.Context, at time.Time) ([]PendingEntry, error) {
	enabled, err := r.RemindersEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	var entries []model.ReminderScheduleEntry
	err = r.db.WithContext(ctx).
		Where("reminder_at = ? AND sent_at IS NULL", at.Truncate(time.Minute).UTC()).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ConfigID)
	}
	var configs []model.ReminderConfig
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&configs).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.ReminderConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}

	out := make([]PendingEntry, 0, len(entries))
	for _, e := range entries {
		cfg, ok := byID[e.ConfigID]
		if !ok {
			r.log.Warnf("schedule entry %s has no config %s, skipping", e.ID, e.ConfigID)
			continue
		}
		out = append(out, PendingEntry{Entry: e, Config: cfg})
	}
	return out, nil
}

// MarkSent stamps sent_at on one entry; overwriting is harmless.
func (r *Repository) MarkSent(ctx context.Context, entryID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ReminderScheduleEntry{}).
		Where("id = ?", entryID).
		Update("sent_at", at.UTC()).Error
}

// RemindersEnabled reads the system-wide switch.
func (r *Repository) RemindersEnabled(ctx context.Context) (bool, error) {
	if r.rdb == nil {
		return true, nil
	}
	val, err := r.rdb.Get(ctx, enabledKey).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return val != "0" && val != "false", nil
}

// SetRemindersEnabled flips the system-wide switch.
func (r *Repository) SetRemindersEnabled(ctx context.Context, enabled bool) error {
	if r.rdb == nil {
		return errors.New("redis not configured")
	}
	val := "1"
	if !enabled {
		val = "0"
	}
	return r.rdb.Set(ctx, enabledKey, val, 0).Err()
}

// Subcontractor fetches one directory record.
func (r *Repository) Subcontractor(ctx context.Context, id string) (*model.Subcontractor, error) {
	var sub model.Subcontractor
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// MissingSubcontractors lists records flagged missing by the DWH
// reconciliation.
func (r *Repository) MissingSubcontractors(ctx context.Context) ([]model.Subcontractor, error) {
	var subs []model.Subcontractor
	err := r.db.WithContext(ctx).Where("missing_from_dwh = ?", true).Find(&subs).Error
	return subs, err
}

// SetRemindersSent persists the escalation counter.
func (r *Repository) SetRemindersSent(ctx context.Context, id string, n int) error {
	return r.db.WithContext(ctx).Model(&model.Subcontractor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"reminders_sent": n, "updated_at": time.Now()}).Error
}

// DeleteSubcontractor removes a directory record.
func (r *Repository) DeleteSubcontractor(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Subcontractor{}).Error
}

// LatestQuote returns a subcontractor's most recent quote, if any.
func (r *Repository) LatestQuote(ctx context.Context, subcontractorID string) (*model.Quote, error) {
	var q model.Quote
	err := r.db.WithContext(ctx).
		Where("subcontractor_id = ?", subcontractorID).
		Order("submitted_at desc").
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// RfqByID fetches one RFQ.
func (r *Repository) RfqByID(ctx context.Context, id string) (*model.Rfq, error) {
	var rfq model.Rfq
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rfq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rfq, nil
}

// RfqMessageByID fetches one conversation message.
func (r *Repository) RfqMessageByID(ctx context.Context, id string) (*model.RfqMessage, error) {
	var msg model.RfqMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ActivityLogByID fetches one activity log entry.
func (r *Repository) ActivityLogByID(ctx context.Context, id string) (*model.ActivityLogEntry, error) {
	var entry model.ActivityLogEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PublishEvent sends an audit event to Kafka. A nil writer is a no-op.
func (r *Repository) PublishEvent(ctx context.Context, eventType, subjectID string, payload interface{}) error {
	if r.writer == nil {
		return nil
	}
	body, err := json.Marshal(map[string]interface{}{
		"type":       eventType,
		"subject_id": subjectID,
		"payload":    payload,
		"at":         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%s", eventType, subjectID)),
		Value: body,
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}
