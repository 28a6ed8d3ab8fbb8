package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resource represents a knowledge base article or learning material.
type Resource struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Title        string    `gorm:"size:255;not null;index"`
	Description  string    `gorm:"type:text"`
	Content      string    `gorm:"type:text"`
	ResourceType string    `gorm:"size:50;index"`
	URL          string    `gorm:"size:500"`
	// Topics holds comma separated sector tags.
	Topics    string `gorm:"size:500"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate hook
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SectorList returns the topic tags as a slice.
func (r *Resource) SectorList() []string {
	return splitTagList(r.Topics)
}
