package model

import "time"

// Subcontractor is the directory record the escalation sequence acts
// on. RemindersSent counts escalation messages already delivered; the
// record is deleted once the counter reaches the terminal threshold.
type Subcontractor struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Name           string    `gorm:"size:128;not null"`
	ContactName    string    `gorm:"size:128"`
	Email          string    `gorm:"size:256;not null"`
	RemindersSent  int       `gorm:"not null;default:0"`
	MissingFromDWH bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Subcontractor) TableName() string { return "subcontractor" }
