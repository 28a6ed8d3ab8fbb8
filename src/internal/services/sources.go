package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/database/models"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/search"
)

// newSources builds one Source per backing table. The timeout bounds each
// sub-query independently so one slow table cannot stall the fanout.
func newSources(db *gorm.DB, timeout time.Duration) []search.Source {
	return []search.Source{
		&jobSource{db: db, timeout: timeout},
		&resourceSource{db: db, timeout: timeout},
		&partnerSource{db: db, timeout: timeout},
		&programSource{db: db, timeout: timeout},
	}
}

// jobSource queries active job postings.
type jobSource struct {
	db      *gorm.DB
	timeout time.Duration
}

func (s *jobSource) Type() search.SourceType { return search.SourceJob }

func (s *jobSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	ctx, cancel := sourceContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&models.Job{}).Where("is_active = ?", true)
	query = applyFreeText(query, search.SourceJob, q.FreeText)
	query = applyFilters(query, search.SourceJob, q.Filters)

	var jobs []models.Job
	if err := query.Order("created_at DESC").Limit(q.Limit).Find(&jobs).Error; err != nil {
		return nil, classifySourceError(search.SourceJob, s.timeout, err)
	}

	records := make([]search.CandidateRecord, len(jobs))
	for i, job := range jobs {
		records[i] = candidateFromJob(job)
	}
	return records, nil
}

// resourceSource queries learning resources.
type resourceSource struct {
	db      *gorm.DB
	timeout time.Duration
}

func (s *resourceSource) Type() search.SourceType { return search.SourceResource }

func (s *resourceSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	ctx, cancel := sourceContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&models.Resource{})
	query = applyFreeText(query, search.SourceResource, q.FreeText)
	query = applyFilters(query, search.SourceResource, q.Filters)

	var resources []models.Resource
	if err := query.Order("created_at DESC").Limit(q.Limit).Find(&resources).Error; err != nil {
		return nil, classifySourceError(search.SourceResource, s.timeout, err)
	}

	records := make([]search.CandidateRecord, len(resources))
	for i, resource := range resources {
		records[i] = candidateFromResource(resource)
	}
	return records, nil
}

// partnerSource queries partner organizations.
type partnerSource struct {
	db      *gorm.DB
	timeout time.Duration
}

func (s *partnerSource) Type() search.SourceType { return search.SourcePartner }

func (s *partnerSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	ctx, cancel := sourceContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&models.Partner{})
	query = applyFreeText(query, search.SourcePartner, q.FreeText)
	query = applyFilters(query, search.SourcePartner, q.Filters)

	var partners []models.Partner
	if err := query.Order("created_at DESC").Limit(q.Limit).Find(&partners).Error; err != nil {
		return nil, classifySourceError(search.SourcePartner, s.timeout, err)
	}

	records := make([]search.CandidateRecord, len(partners))
	for i, partner := range partners {
		records[i] = candidateFromPartner(partner)
	}
	return records, nil
}

// programSource queries training programs.
type programSource struct {
	db      *gorm.DB
	timeout time.Duration
}

func (s *programSource) Type() search.SourceType { return search.SourceProgram }

func (s *programSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	ctx, cancel := sourceContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&models.Program{})
	query = applyFreeText(query, search.SourceProgram, q.FreeText)
	query = applyFilters(query, search.SourceProgram, q.Filters)

	var programs []models.Program
	if err := query.Order("created_at DESC").Limit(q.Limit).Find(&programs).Error; err != nil {
		return nil, classifySourceError(search.SourceProgram, s.timeout, err)
	}

	records := make([]search.CandidateRecord, len(programs))
	for i, program := range programs {
		records[i] = candidateFromProgram(program)
	}
	return records, nil
}

// sourceContext bounds one sub-query. A zero timeout leaves the parent
// context untouched.
func sourceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// classifySourceError converts a sub-query failure into a classified
// application error. A deadline overrun becomes a timeout error so the
// recorded source status names the exhausted budget instead of a raw
// context message.
func classifySourceError(t search.SourceType, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.TimeoutError(fmt.Sprintf("%s source query", t), timeout).WithCause(err)
	}
	return err
}

// applyFreeText adds a case-insensitive LIKE across the source's text
// columns. Empty text matches everything.
func applyFreeText(query *gorm.DB, t search.SourceType, freeText string) *gorm.DB {
	text := strings.ToLower(strings.TrimSpace(freeText))
	if text == "" {
		return query
	}
	mapping, ok := search.MappingFor(t)
	if !ok {
		return query
	}

	pattern := "%" + text + "%"
	clauses := make([]string, len(mapping.TextColumns))
	args := make([]interface{}, len(mapping.TextColumns))
	for i, col := range mapping.TextColumns {
		clauses[i] = fmt.Sprintf("LOWER(%s) LIKE ?", col)
		args[i] = pattern
	}
	return query.Where(strings.Join(clauses, " OR "), args...)
}

// applyFilters translates the canonical filter set into the source's native
// columns. Filters the source's mapping does not declare are skipped.
func applyFilters(query *gorm.DB, t search.SourceType, filters search.FilterSet) *gorm.DB {
	mapping, ok := search.MappingFor(t)
	if !ok {
		return query
	}

	// Sector overlap: a record matches when any requested sector appears
	// in its comma separated tag column.
	if len(filters.ClimateSectors) > 0 && mapping.SectorColumn != "" {
		clauses := make([]string, len(filters.ClimateSectors))
		args := make([]interface{}, len(filters.ClimateSectors))
		for i, sector := range filters.ClimateSectors {
			clauses[i] = fmt.Sprintf("LOWER(%s) LIKE ?", mapping.SectorColumn)
			args[i] = "%" + strings.ToLower(strings.TrimSpace(sector)) + "%"
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}

	if len(filters.EmploymentTypes) > 0 {
		if col, ok := mapping.Filters[search.FilterEmploymentType]; ok {
			query = query.Where(col+" IN ?", filters.EmploymentTypes)
		}
	}

	if filters.Location != "" {
		if col, ok := mapping.Filters[search.FilterLocation]; ok {
			pattern := "%" + strings.ToLower(strings.TrimSpace(filters.Location)) + "%"
			query = query.Where(fmt.Sprintf("LOWER(%s) LIKE ?", col), pattern)
		}
	}

	if filters.ExperienceLevel != "" {
		if col, ok := mapping.Filters[search.FilterExperienceLevel]; ok {
			query = query.Where(col+" = ?", filters.ExperienceLevel)
		}
	}

	if filters.SalaryRange != "" {
		if col, ok := mapping.Filters[search.FilterSalaryRange]; ok {
			query = query.Where(col+" = ?", filters.SalaryRange)
		}
	}

	if filters.DateRange != "" {
		if window, ok := search.DateRangeWindow(filters.DateRange); ok {
			query = query.Where("created_at >= ?", time.Now().UTC().Add(-window))
		}
	}

	return query
}

// candidateFromJob projects a job row into the shared candidate shape.
func candidateFromJob(job models.Job) search.CandidateRecord {
	return search.CandidateRecord{
		ID:          job.ID,
		Source:      search.SourceJob,
		Title:       job.Title,
		Description: job.Description,
		RawFields: map[string]interface{}{
			search.FieldClimateSectors: job.SectorList(),
			search.FieldEmploymentType: job.EmploymentType,
			"company":                  job.Company,
			"location":                 job.Location,
			"experience_level":         job.ExperienceLevel,
			"salary_range":             job.SalaryRange,
			"apply_url":                job.ApplyURL,
		},
		CreatedAt: job.CreatedAt,
	}
}

// candidateFromResource projects a resource row into the shared candidate shape.
func candidateFromResource(resource models.Resource) search.CandidateRecord {
	return search.CandidateRecord{
		ID:          resource.ID,
		Source:      search.SourceResource,
		Title:       resource.Title,
		Description: resource.Description,
		RawFields: map[string]interface{}{
			search.FieldClimateSectors: resource.SectorList(),
			"resource_type":            resource.ResourceType,
			"url":                      resource.URL,
		},
		CreatedAt: resource.CreatedAt,
	}
}

// candidateFromPartner projects a partner row into the shared candidate shape.
func candidateFromPartner(partner models.Partner) search.CandidateRecord {
	return search.CandidateRecord{
		ID:          partner.ID,
		Source:      search.SourcePartner,
		Title:       partner.Name,
		Description: partner.Description,
		RawFields: map[string]interface{}{
			search.FieldClimateSectors: partner.SectorList(),
			"website":                  partner.Website,
			"location":                 partner.Location,
		},
		CreatedAt: partner.CreatedAt,
	}
}

// candidateFromProgram projects a program row into the shared candidate shape.
func candidateFromProgram(program models.Program) search.CandidateRecord {
	return search.CandidateRecord{
		ID:          program.ID,
		Source:      search.SourceProgram,
		Title:       program.Title,
		Description: program.Description,
		RawFields: map[string]interface{}{
			search.FieldClimateSectors: program.SectorList(),
			"provider":                 program.Provider,
			"duration":                 program.Duration,
			"cost":                     program.Cost,
			"format":                   program.Format,
		},
		CreatedAt: program.CreatedAt,
	}
}
