package model

import "time"

// ReminderConfig holds the due date and message body governing one
// subcontractor's reminders for one RFQ. At most one row exists per
// (rfq_id, subcontractor_id); repeated submissions update it in place.
type ReminderConfig struct {
	ID              string    `gorm:"primaryKey;size:36"`
	RfqID           string    `gorm:"size:36;not null;uniqueIndex:idx_reminder_config_pair"`
	SubcontractorID string    `gorm:"size:36;not null;uniqueIndex:idx_reminder_config_pair"`
	DueDate         time.Time `gorm:"not null"`
	EmailBody       string    `gorm:"type:text;not null"`
	UpdatedBy       string    `gorm:"size:64;not null"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (ReminderConfig) TableName() string { return "reminder_config" }

// ReminderScheduleEntry is one concrete fire instant derived from a
// config. SentAt nil means pending; rows are never deleted so sent
// entries double as the dispatch audit trail.
type ReminderScheduleEntry struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ConfigID   string    `gorm:"size:36;not null;uniqueIndex:idx_schedule_entry_instant"`
	ReminderAt time.Time `gorm:"not null;uniqueIndex:idx_schedule_entry_instant"`
	SentAt     *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (ReminderScheduleEntry) TableName() string { return "reminder_schedule_entry" }
