package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/database/models"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
)

// Seed populates the database with demo content for local development.
// Records are keyed by their natural identifiers so reruns are safe.
func Seed(db *gorm.DB) error {
	jobs := []models.Job{
		{
			Title:           "Solar Installer",
			Description:     "Install and maintain rooftop solar panels for residential customers across the metro area.",
			Company:         "Bright Future Energy",
			Location:        "Denver, CO",
			EmploymentType:  "full_time",
			ExperienceLevel: "entry",
			SalaryRange:     "$45,000-$60,000",
			ClimateSectors:  "solar, construction",
			ApplyURL:        "https://brightfuture.example.com/careers/solar-installer",
			IsActive:        true,
		},
		{
			Title:           "Wind Turbine Technician",
			Description:     "Service and repair utility scale wind turbines. Climb certification provided on the job.",
			Company:         "Plains Wind Co",
			Location:        "Amarillo, TX",
			EmploymentType:  "full_time",
			ExperienceLevel: "mid",
			SalaryRange:     "$55,000-$75,000",
			ClimateSectors:  "wind",
			ApplyURL:        "https://plainswind.example.com/jobs/technician",
			IsActive:        true,
		},
		{
			Title:           "Energy Efficiency Auditor",
			Description:     "Perform home energy audits and recommend weatherization and insulation upgrades.",
			Company:         "GreenHome Labs",
			Location:        "Portland, OR",
			EmploymentType:  "part_time",
			ExperienceLevel: "entry",
			SalaryRange:     "$25-$35/hr",
			ClimateSectors:  "efficiency, buildings",
			ApplyURL:        "https://greenhome.example.com/openings/auditor",
			IsActive:        true,
		},
		{
			Title:           "Sustainability Analyst",
			Description:     "Model decarbonization pathways and report emissions metrics for corporate clients.",
			Company:         "Meridian Advisors",
			Location:        "Remote",
			EmploymentType:  "full_time",
			ExperienceLevel: "senior",
			SalaryRange:     "$85,000-$110,000",
			ClimateSectors:  "policy, finance",
			ApplyURL:        "https://meridian.example.com/careers/analyst",
			IsActive:        true,
		},
	}

	err := apperrors.DatabaseErrorWrapper("seed jobs", func() error {
		for _, job := range jobs {
			var existing models.Job
			if err := db.Where("title = ? AND company = ?", job.Title, job.Company).
				FirstOrCreate(&existing, &job).Error; err != nil {
				return fmt.Errorf("seed job %s: %w", job.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	resources := []models.Resource{
		{
			Title:        "Getting Started in Solar",
			Description:  "A beginner guide to careers in the solar industry, from installation to sales.",
			Content:      "The solar workforce has grown every year for a decade. This guide covers the entry paths.",
			ResourceType: "guide",
			URL:          "https://greenboard.example.com/resources/getting-started-solar",
			Topics:       "solar, careers",
		},
		{
			Title:        "Wind Energy Basics",
			Description:  "How modern wind turbines work and what technicians do day to day.",
			Content:      "Utility scale turbines stand over 100 meters tall and need regular preventive maintenance.",
			ResourceType: "article",
			URL:          "https://greenboard.example.com/resources/wind-energy-basics",
			Topics:       "wind",
		},
		{
			Title:        "Climate Career Transitions",
			Description:  "Stories and advice from workers who moved into climate roles mid career.",
			Content:      "Transferable skills matter more than green credentials for most climate employers.",
			ResourceType: "guide",
			URL:          "https://greenboard.example.com/resources/career-transitions",
			Topics:       "careers",
		},
	}

	err = apperrors.DatabaseErrorWrapper("seed resources", func() error {
		for _, resource := range resources {
			var existing models.Resource
			if err := db.Where("title = ?", resource.Title).
				FirstOrCreate(&existing, &resource).Error; err != nil {
				return fmt.Errorf("seed resource %s: %w", resource.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	partners := []models.Partner{
		{
			Name:        "Bright Future Energy",
			Description: "Residential solar installer serving the Colorado front range.",
			Website:     "https://brightfuture.example.com",
			Location:    "Denver, CO",
			FocusAreas:  "solar",
		},
		{
			Name:        "Plains Wind Co",
			Description: "Owner operator of wind farms across the Texas panhandle.",
			Website:     "https://plainswind.example.com",
			Location:    "Amarillo, TX",
			FocusAreas:  "wind",
		},
		{
			Name:        "GreenHome Labs",
			Description: "Building performance company focused on residential efficiency retrofits.",
			Website:     "https://greenhome.example.com",
			Location:    "Portland, OR",
			FocusAreas:  "efficiency, buildings",
		},
	}

	err = apperrors.DatabaseErrorWrapper("seed partners", func() error {
		for _, partner := range partners {
			var existing models.Partner
			if err := db.Where("name = ?", partner.Name).
				FirstOrCreate(&existing, &partner).Error; err != nil {
				return fmt.Errorf("seed partner %s: %w", partner.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	programs := []models.Program{
		{
			Title:       "Solar Installation Certificate",
			Description: "Hands on training covering racking, wiring, and commissioning of rooftop systems.",
			Provider:    "Front Range Community College",
			Duration:    "12 weeks",
			Cost:        "$2,400",
			Format:      "in_person",
			SectorTags:  "solar",
		},
		{
			Title:       "Wind Technician Bootcamp",
			Description: "Accelerated program preparing students for GWO certified turbine work.",
			Provider:    "Plains Technical Institute",
			Duration:    "8 weeks",
			Cost:        "$3,100",
			Format:      "in_person",
			SectorTags:  "wind",
		},
		{
			Title:       "Building Science Fundamentals",
			Description: "Self paced course on envelope, HVAC, and diagnostic testing for auditors.",
			Provider:    "GreenHome Labs",
			Duration:    "6 weeks",
			Cost:        "Free",
			Format:      "online",
			SectorTags:  "efficiency, buildings",
		},
	}

	return apperrors.DatabaseErrorWrapper("seed programs", func() error {
		for _, program := range programs {
			var existing models.Program
			if err := db.Where("title = ?", program.Title).
				FirstOrCreate(&existing, &program).Error; err != nil {
				return fmt.Errorf("seed program %s: %w", program.Title, err)
			}
		}
		return nil
	})
}
