package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Partner represents an employer or organization in the network.
type Partner struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Name        string    `gorm:"size:255;not null;index"`
	Description string    `gorm:"type:text"`
	Website     string    `gorm:"size:500"`
	Location    string    `gorm:"size:255;index"`
	// FocusAreas holds comma separated sector tags.
	FocusAreas string `gorm:"size:500"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate hook
func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SectorList returns the focus area tags as a slice.
func (p *Partner) SectorList() []string {
	return splitTagList(p.FocusAreas)
}
