package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is a single incident submission, the aggregate root of the board.
// Password holds a bcrypt hash of the anonymous owner token and is never
// serialized; only the store layer reads it.
type Report struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Location    string    `gorm:"size:200;not null" json:"location"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Password    string    `gorm:"size:100;not null" json:"-"`
	IsOpen      bool      `gorm:"not null;default:true;index" json:"is_open"`
	ExpiresAt   time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is a reply bound to exactly one report. Immutable after creation.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
