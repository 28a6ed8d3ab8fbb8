package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job represents a posted position on the jobs board.
type Job struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	Title           string    `gorm:"size:255;not null;index"`
	Description     string    `gorm:"type:text"`
	Company         string    `gorm:"size:255;index"`
	Location        string    `gorm:"size:255;index"`
	EmploymentType  string    `gorm:"size:50;index"`
	ExperienceLevel string    `gorm:"size:50"`
	SalaryRange     string    `gorm:"size:100"`
	// ClimateSectors holds comma separated sector tags.
	ClimateSectors string `gorm:"size:500"`
	ApplyURL       string `gorm:"size:500"`
	IsActive       bool   `gorm:"default:true;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate hook
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// SectorList returns the sector tags as a slice.
func (j *Job) SectorList() []string {
	return splitTagList(j.ClimateSectors)
}
