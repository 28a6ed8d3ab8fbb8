package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Program represents a training or certification program.
type Program struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Title       string    `gorm:"size:255;not null;index"`
	Description string    `gorm:"type:text"`
	Provider    string    `gorm:"size:255;index"`
	Duration    string    `gorm:"size:100"`
	Cost        string    `gorm:"size:100"`
	Format      string    `gorm:"size:50"`
	// SectorTags holds comma separated sector tags.
	SectorTags string `gorm:"size:500"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate hook
func (p *Program) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SectorList returns the sector tags as a slice.
func (p *Program) SectorList() []string {
	return splitTagList(p.SectorTags)
}
