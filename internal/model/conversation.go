package model

import "time"

// RfqMessage is a message in an RFQ conversation thread.
type RfqMessage struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RfqID     string    `gorm:"size:36;not null;index"`
	Author    string    `gorm:"size:64;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RfqMessage) TableName() string { return "rfq_message" }

// ActivityLogEntry records system actions on an RFQ. Replies may hang
// off a log entry instead of a message, so parent lookups try both
// tables.
type ActivityLogEntry struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RfqID     string    `gorm:"size:36;not null;index"`
	Action    string    `gorm:"size:64;not null"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ActivityLogEntry) TableName() string { return "activity_log" }
