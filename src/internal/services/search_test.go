package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	"github.com/greenboardhq/greenboard/src/internal/database/models"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/metrics"
	"github.com/greenboardhq/greenboard/src/internal/search"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	// A single connection keeps the concurrent sub-queries on the same
	// in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Auto migrate for tests
	err = db.AutoMigrate(
		&models.Job{},
		&models.Resource{},
		&models.Partner{},
		&models.Program{},
	)
	require.NoError(t, err)

	return db
}

// newTestSearchService builds a service with an isolated cache so
// subtests never observe each other's entries.
func newTestSearchService(t *testing.T, db *gorm.DB) *SearchService {
	svc := NewSearchService(db, viper.New(), cache.NewResponseCache(0, 0), metrics.NewMetrics(db), nil)
	require.NotNil(t, svc)
	return svc
}

func seedSearchFixture(t *testing.T, db *gorm.DB) {
	now := time.Now().UTC()

	jobs := []models.Job{
		{
			Title:           "Solar Installer",
			Description:     "Install and maintain rooftop panel systems for homeowners.",
			Company:         "Bright Future Energy",
			Location:        "Denver, CO",
			EmploymentType:  "full_time",
			ExperienceLevel: "entry",
			SalaryRange:     "$45,000-$60,000",
			ClimateSectors:  "solar, construction",
			IsActive:        true,
			CreatedAt:       now.Add(-1 * time.Hour),
		},
		{
			Title:           "Wind Turbine Technician",
			Description:     "Service and repair utility scale turbines.",
			Company:         "Plains Wind Co",
			Location:        "Amarillo, TX",
			EmploymentType:  "full_time",
			ExperienceLevel: "mid",
			SalaryRange:     "$55,000-$75,000",
			ClimateSectors:  "wind",
			IsActive:        true,
			CreatedAt:       now.Add(-2 * time.Hour),
		},
		{
			Title:           "Energy Efficiency Auditor",
			Description:     "Perform home energy audits and weatherization.",
			Company:         "GreenHome Labs",
			Location:        "Portland, OR",
			EmploymentType:  "part_time",
			ExperienceLevel: "entry",
			SalaryRange:     "$25-$35/hr",
			ClimateSectors:  "efficiency",
			IsActive:        true,
			CreatedAt:       now.Add(-10 * 24 * time.Hour),
		},
		{
			// Inactive posting, must never surface
			Title:          "Solar Sales Associate",
			Description:    "Door to door solar sales.",
			Company:        "Sunburst Marketing",
			Location:       "Phoenix, AZ",
			EmploymentType: "full_time",
			ClimateSectors: "solar",
			IsActive:       false,
			CreatedAt:      now.Add(-30 * time.Minute),
		},
	}
	for i := range jobs {
		require.NoError(t, db.Create(&jobs[i]).Error)
	}

	resources := []models.Resource{
		{
			Title:        "Getting Started in Solar",
			Description:  "A beginner guide to careers installing panels.",
			ResourceType: "guide",
			Topics:       "solar, careers",
			CreatedAt:    now.Add(-1 * time.Hour),
		},
		{
			Title:        "Wind Energy Basics",
			Description:  "How turbines work.",
			ResourceType: "article",
			Topics:       "wind",
			CreatedAt:    now.Add(-2 * time.Hour),
		},
	}
	for i := range resources {
		require.NoError(t, db.Create(&resources[i]).Error)
	}

	partners := []models.Partner{
		{
			Name:        "Bright Future Energy",
			Description: "Residential solar installer serving Colorado.",
			Location:    "Denver, CO",
			FocusAreas:  "solar",
			CreatedAt:   now.Add(-1 * time.Hour),
		},
		{
			Name:        "Plains Wind Co",
			Description: "Wind farm owner operator.",
			Location:    "Amarillo, TX",
			FocusAreas:  "wind",
			CreatedAt:   now.Add(-2 * time.Hour),
		},
	}
	for i := range partners {
		require.NoError(t, db.Create(&partners[i]).Error)
	}

	programs := []models.Program{
		{
			Title:       "Solar Installation Certificate",
			Description: "Racking, wiring, and commissioning.",
			Provider:    "Front Range Community College",
			SectorTags:  "solar",
			CreatedAt:   now.Add(-1 * time.Hour),
		},
		{
			Title:       "Wind Technician Bootcamp",
			Description: "Prepare for turbine certification.",
			Provider:    "Plains Technical Institute",
			SectorTags:  "wind",
			CreatedAt:   now.Add(-2 * time.Hour),
		},
	}
	for i := range programs {
		require.NoError(t, db.Create(&programs[i]).Error)
	}
}

// cannedSource returns a fixed candidate set regardless of the query.
type cannedSource struct {
	sourceType search.SourceType
	records    []search.CandidateRecord
}

func (c *cannedSource) Type() search.SourceType { return c.sourceType }

func (c *cannedSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	return c.records, nil
}

// brokenSource always fails.
type brokenSource struct {
	sourceType search.SourceType
}

func (b *brokenSource) Type() search.SourceType { return b.sourceType }

func (b *brokenSource) Search(ctx context.Context, q search.SourceQuery) ([]search.CandidateRecord, error) {
	return nil, errors.New("connection reset by peer")
}

func TestSearchService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedSearchFixture(t, db)

	t.Run("TitleMatchedJobOutranksUnmatchedResource", func(t *testing.T) {
		// Candidate-level ranking: a job with a title match lands at
		// 0.9 while a resource the text misses entirely keeps base 0.5.
		svc := newTestSearchService(t, db)
		svc.orchestrator = search.NewOrchestrator(nil,
			&cannedSource{sourceType: search.SourceJob, records: []search.CandidateRecord{
				{Title: "Solar Installer", Description: "Install rooftop systems.", Source: search.SourceJob},
			}},
			&cannedSource{sourceType: search.SourceResource, records: []search.CandidateRecord{
				{Title: "Wind Basics", Description: "How turbines work.", Source: search.SourceResource},
			}},
		)

		resp, err := svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "Solar Installer", resp.Results[0].Record.Title)
		assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-9)
		assert.Equal(t, "Wind Basics", resp.Results[1].Record.Title)
		assert.InDelta(t, 0.5, resp.Results[1].Score, 1e-9)
	})

	t.Run("SolarQueryRanksAcrossSources", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.NoError(t, err)
		require.Len(t, resp.Results, 4)
		assert.Equal(t, 4, resp.Total)

		// Title match + job boost first, then the two title matches in
		// source order, then the description-only partner match.
		assert.Equal(t, "Solar Installer", resp.Results[0].Record.Title)
		assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-9)
		assert.Equal(t, "Getting Started in Solar", resp.Results[1].Record.Title)
		assert.Equal(t, "Solar Installation Certificate", resp.Results[2].Record.Title)
		assert.InDelta(t, 0.8, resp.Results[1].Score, 1e-9)
		assert.InDelta(t, 0.8, resp.Results[2].Score, 1e-9)
		assert.Equal(t, "Bright Future Energy", resp.Results[3].Record.Title)
		assert.InDelta(t, 0.7, resp.Results[3].Score, 1e-9)

		for i := 1; i < len(resp.Results); i++ {
			assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
		}

		// Title highlight preserves original casing.
		require.NotEmpty(t, resp.Results[0].Highlights)
		assert.Equal(t, "<mark>Solar</mark> Installer", resp.Results[0].Highlights[0])

		// The inactive posting must not leak in.
		for _, r := range resp.Results {
			assert.NotEqual(t, "Solar Sales Associate", r.Record.Title)
		}
	})

	t.Run("EmptyTextWithJobFilterScoresPointSix", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{ContentTypes: []search.SourceType{search.SourceJob}},
			Limit:   10,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 3)

		// All tie at base + job boost; ordering falls back to recency.
		for _, r := range resp.Results {
			assert.Equal(t, search.SourceJob, r.Record.Source)
			assert.InDelta(t, 0.6, r.Score, 1e-9)
			assert.Empty(t, r.Highlights)
		}
		assert.Equal(t, "Solar Installer", resp.Results[0].Record.Title)
		assert.Equal(t, "Wind Turbine Technician", resp.Results[1].Record.Title)
		assert.Equal(t, "Energy Efficiency Auditor", resp.Results[2].Record.Title)
	})

	t.Run("SourceFailureStillResolves", func(t *testing.T) {
		svc := newTestSearchService(t, db)
		svc.orchestrator = search.NewOrchestrator(nil,
			&jobSource{db: db},
			&brokenSource{sourceType: search.SourceResource},
		)

		resp, err := svc.Execute(ctx, search.Query{FreeText: "wind", Limit: 10})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Wind Turbine Technician", resp.Results[0].Record.Title)
		assert.Equal(t, 1, resp.Total)

		require.Len(t, resp.Sources, 2)
		assert.True(t, resp.Sources[0].OK)
		assert.Equal(t, search.SourceJob, resp.Sources[0].Source)
		assert.False(t, resp.Sources[1].OK)
		assert.Contains(t, resp.Sources[1].Error, "connection reset")
	})

	t.Run("AllSourcesFailedIsRetryableAndNotCached", func(t *testing.T) {
		svc := newTestSearchService(t, db)
		svc.orchestrator = search.NewOrchestrator(nil,
			&brokenSource{sourceType: search.SourceJob},
			&brokenSource{sourceType: search.SourceResource},
			&brokenSource{sourceType: search.SourcePartner},
			&brokenSource{sourceType: search.SourceProgram},
		)

		_, err := svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.Error(t, err)

		var cerr *apperrors.CustomError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "ALL_SOURCES_FAILED", cerr.Code)
		assert.True(t, cerr.Retryable())

		// Error responses never populate the cache.
		assert.Equal(t, 0, svc.cache.Stats().Entries)
	})

	t.Run("RepeatQueryServedByteIdentical", func(t *testing.T) {
		svc := newTestSearchService(t, db)
		q := search.Query{FreeText: "solar", Limit: 5, IncludeFacets: true}

		first, err := svc.Execute(ctx, q)
		require.NoError(t, err)
		stats := svc.cache.Stats()
		assert.Equal(t, int64(0), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, 1, stats.Entries)

		second, err := svc.Execute(ctx, q)
		require.NoError(t, err)
		stats = svc.cache.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)

		firstJSON, err := json.Marshal(first)
		require.NoError(t, err)
		secondJSON, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(secondJSON))

		// The stored elapsed time is replayed, not remeasured.
		assert.Equal(t, first.ElapsedMs, second.ElapsedMs)
	})

	t.Run("DefaultedAndClampedLimitsShareCacheKeys", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		_, err := svc.Execute(ctx, search.Query{FreeText: "wind"})
		require.NoError(t, err)
		_, err = svc.Execute(ctx, search.Query{FreeText: "wind", Limit: 20})
		require.NoError(t, err)

		// Limit 0 defaults to 20, so the second call is a hit.
		stats := svc.cache.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)

		_, err = svc.Execute(ctx, search.Query{FreeText: "wind", Limit: 500})
		require.NoError(t, err)
		_, err = svc.Execute(ctx, search.Query{FreeText: "wind", Limit: 100})
		require.NoError(t, err)

		// Limit 500 clamps to the 100 maximum and collides with it.
		stats = svc.cache.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
	})

	t.Run("ValidationFailsBeforeAnyWork", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		cases := []search.Query{
			{FreeText: "solar", Limit: -1},
			{Filters: search.FilterSet{ContentTypes: []search.SourceType{"video"}}},
			{Filters: search.FilterSet{DateRange: "1y"}},
		}
		for _, q := range cases {
			_, err := svc.Execute(ctx, q)
			require.Error(t, err)

			var cerr *apperrors.CustomError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, apperrors.ErrorTypeValidation, cerr.Type)
			assert.Equal(t, "VALIDATION_FAILED", cerr.Code)
		}

		// Rejected queries touch neither the cache nor the sources.
		stats := svc.cache.Stats()
		assert.Equal(t, 0, stats.Entries)
		assert.Equal(t, int64(0), stats.Misses)
	})

	t.Run("FacetsScanFullSetsBeforeTruncation", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		// Limit 5 caps each source at 2, yielding 8 candidates; the page
		// truncates to 5 but facets count all 8.
		resp, err := svc.Execute(ctx, search.Query{Limit: 5, IncludeFacets: true})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 5)
		assert.Equal(t, 8, resp.Total)

		require.Contains(t, resp.Facets, search.FacetClimateSectors)
		assert.Equal(t, []search.Facet{
			{Value: "solar", Count: 4},
			{Value: "wind", Count: 4},
			{Value: "construction", Count: 1},
			{Value: "careers", Count: 1},
		}, resp.Facets[search.FacetClimateSectors])

		require.Contains(t, resp.Facets, search.FacetEmploymentTypes)
		assert.Equal(t, []search.Facet{
			{Value: "full_time", Count: 2},
		}, resp.Facets[search.FacetEmploymentTypes])
	})

	t.Run("FacetsOmittedUnlessRequested", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.NoError(t, err)
		assert.Nil(t, resp.Facets)
	})

	t.Run("SectorFilterNarrowsEverySource", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{ClimateSectors: []string{"wind"}},
			Limit:   20,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 4)
		titles := make([]string, len(resp.Results))
		for i, r := range resp.Results {
			titles[i] = r.Record.Title
		}
		assert.ElementsMatch(t, []string{
			"Wind Turbine Technician",
			"Wind Energy Basics",
			"Plains Wind Co",
			"Wind Technician Bootcamp",
		}, titles)

		// Multiple sectors match on overlap: wind or careers.
		resp, err = svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{ClimateSectors: []string{"wind", "careers"}},
			Limit:   20,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 5)
	})

	t.Run("EmploymentFilterAppliesOnlyToJobs", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{EmploymentTypes: []string{"part_time"}},
			Limit:   20,
		})
		require.NoError(t, err)

		// Jobs narrow to the one part-time posting; sources without an
		// employment column are untouched.
		assert.Len(t, resp.Results, 7)
		var jobTitles []string
		for _, r := range resp.Results {
			if r.Record.Source == search.SourceJob {
				jobTitles = append(jobTitles, r.Record.Title)
			}
		}
		assert.Equal(t, []string{"Energy Efficiency Auditor"}, jobTitles)
	})

	t.Run("LocationFilterAppliesWhereDeclared", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{Location: "Denver"},
			Limit:   20,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 6)

		for _, r := range resp.Results {
			switch r.Record.Source {
			case search.SourceJob:
				assert.Equal(t, "Solar Installer", r.Record.Title)
			case search.SourcePartner:
				assert.Equal(t, "Bright Future Energy", r.Record.Title)
			}
		}
	})

	t.Run("ExperienceAndSalaryFiltersMatchExactly", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{
				ContentTypes:    []search.SourceType{search.SourceJob},
				ExperienceLevel: "mid",
			},
			Limit: 20,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Wind Turbine Technician", resp.Results[0].Record.Title)

		resp, err = svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{
				ContentTypes: []search.SourceType{search.SourceJob},
				SalaryRange:  "$45,000-$60,000",
			},
			Limit: 20,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Solar Installer", resp.Results[0].Record.Title)
	})

	t.Run("DateRangeFilterExcludesOldRecords", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		resp, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{DateRange: "7d"},
			Limit:   20,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 8)
		for _, r := range resp.Results {
			assert.NotEqual(t, "Energy Efficiency Auditor", r.Record.Title)
		}
	})

	t.Run("InvalidateFlushesTaggedEntries", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		_, err := svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.NoError(t, err)
		_, err = svc.Execute(ctx, search.Query{FreeText: "wind", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, svc.cache.Stats().Entries)

		removed := svc.cache.Invalidate(ctx, cache.TagAPIData)
		assert.Equal(t, 2, removed)
		assert.Equal(t, 0, svc.cache.Stats().Entries)

		// The flushed query is a fresh miss afterwards.
		_, err = svc.Execute(ctx, search.Query{FreeText: "solar", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), svc.cache.Stats().Misses)
	})

	t.Run("PerSourceTagInvalidation", func(t *testing.T) {
		svc := newTestSearchService(t, db)

		// A job-only query carries the job tag; a resource-only query
		// does not, so flushing source:job leaves it alone.
		_, err := svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{ContentTypes: []search.SourceType{search.SourceJob}},
			Limit:   10,
		})
		require.NoError(t, err)
		_, err = svc.Execute(ctx, search.Query{
			Filters: search.FilterSet{ContentTypes: []search.SourceType{search.SourceResource}},
			Limit:   10,
		})
		require.NoError(t, err)

		removed := svc.cache.Invalidate(ctx, "source:job")
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, svc.cache.Stats().Entries)
	})
}
