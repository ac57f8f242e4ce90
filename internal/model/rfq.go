package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Rfq struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ProjectName string    `gorm:"size:128;not null"`
	WorkItem    string    `gorm:"size:128"`
	DueDate     time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Rfq) TableName() string { return "rfq" }

// Quote is a subcontractor's submitted quote for an RFQ; only used to
// enrich escalation messages here.
type Quote struct {
	ID              uint64          `gorm:"primaryKey"`
	RfqID           string          `gorm:"size:36;not null;index"`
	SubcontractorID string          `gorm:"size:36;not null;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	SubmittedAt     time.Time       `gorm:"not null"`
}

func (Quote) TableName() string { return "quote" }
