package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides the id and timestamp columns shared by the application's
// tables. updated_datetime stays NULL until a row is first modified.
type BaseModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	CreatedDatetime time.Time  `gorm:"column:created_datetime;not null;autoCreateTime"`
	UpdatedDatetime *time.Time `gorm:"column:updated_datetime"`
}

// BeforeCreate assigns an ID when the caller did not
func (m *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
