package models

import (
	"time"
)

// CampaignRun represents one broadcast campaign from start to completion
type CampaignRun struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Template   string     `gorm:"type:text" json:"template"`
	StartedAt  time.Time  `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Sent       int        `gorm:"default:0" json:"sent"`
	Failed     int        `gorm:"default:0" json:"failed"`
	Outcome    string     `gorm:"type:varchar(20)" json:"outcome"` // completed, superseded
}

func (CampaignRun) TableName() string {
	return "campaign_runs"
}

// SendLog represents a single send attempt within a campaign
type SendLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"index" json:"campaign_id"`
	Phone      string    `gorm:"type:varchar(50);index;not null" json:"phone"`
	Body       string    `gorm:"type:text" json:"body"`
	Rewritten  bool      `gorm:"default:false" json:"rewritten"`
	Outcome    string    `gorm:"type:varchar(20)" json:"outcome"` // sent, failed
	Error      string    `gorm:"type:text" json:"error"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SendLog) TableName() string {
	return "send_logs"
}
