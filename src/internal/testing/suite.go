package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/database"
	"github.com/greenboardhq/greenboard/src/internal/database/models"
	"github.com/greenboardhq/greenboard/src/internal/server"
)

// TestSuite boots the full HTTP stack against an in-memory database so
// integration tests exercise routing, middleware, and handlers together.
// Embed it in a suite struct and let testify drive the lifecycle.
type TestSuite struct {
	suite.Suite

	DB         *gorm.DB
	Config     *viper.Viper
	Server     *server.Server
	Echo       *echo.Echo
	TestServer *httptest.Server
}

// SetupTest builds a fresh datastore and server for every test.
func (s *TestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	s.Require().NoError(err)

	// A single connection keeps the concurrent sub-queries on the same
	// in-memory database.
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.Job{},
		&models.Resource{},
		&models.Partner{},
		&models.Program{},
	))

	s.DB = db
	s.Config = testConfig()
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Server = server.New(s.Echo, s.Config, db)
	s.TestServer = httptest.NewServer(s.Echo)
}

// TearDownTest releases the server and datastore.
func (s *TestSuite) TearDownTest() {
	if s.TestServer != nil {
		s.TestServer.Close()
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// testConfig returns server configuration suitable for tests. Rate
// limiting is off so request-heavy tests never trip it.
func testConfig() *viper.Viper {
	cfg := viper.New()
	cfg.Set("version", "test")
	cfg.Set("environment", "test")
	cfg.Set("database.type", "sqlite")
	cfg.Set("search.default_limit", 20)
	cfg.Set("search.max_limit", 100)
	cfg.Set("search.source_timeout", "3s")
	cfg.Set("cache.ttl", "5m")
	cfg.Set("cache.max_entries", 1000)
	cfg.Set("cache.clean_interval", "1m")
	cfg.Set("ratelimit.enabled", false)
	cfg.Set("metrics.enabled", true)
	cfg.Set("metrics.collect_interval", "30s")
	cfg.Set("cors.origins", []string{"*"})
	cfg.Set("cors.methods", "GET, POST, OPTIONS")
	cfg.Set("cors.headers", "Content-Type, X-Request-ID")
	cfg.Set("features.facets", true)
	cfg.Set("features.suggestions", true)
	cfg.Set("features.admin", true)
	return cfg
}

// SeedDemoData loads the demo dataset used by the seed command.
func (s *TestSuite) SeedDemoData() {
	s.Require().NoError(database.Seed(s.DB))
}

// CreateJob inserts an active job posting with the given sector tags.
func (s *TestSuite) CreateJob(title, description, company string, sectors []string) models.Job {
	job := models.Job{
		Title:          title,
		Description:    description,
		Company:        company,
		EmploymentType: "full_time",
		ClimateSectors: models.JoinTagList(sectors),
		IsActive:       true,
	}
	s.Require().NoError(s.DB.Create(&job).Error)
	return job
}

// CreateResource inserts a resource with the given topic tags.
func (s *TestSuite) CreateResource(title, description string, topics []string) models.Resource {
	resource := models.Resource{
		Title:        title,
		Description:  description,
		ResourceType: "article",
		Topics:       models.JoinTagList(topics),
	}
	s.Require().NoError(s.DB.Create(&resource).Error)
	return resource
}

// GET issues a request against the test server and returns the status
// code and raw body.
func (s *TestSuite) GET(path string) (int, []byte) {
	resp, err := http.Get(s.TestServer.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, body
}

// GetJSON issues a GET and decodes the JSON response into dest.
func (s *TestSuite) GetJSON(path string, dest interface{}) int {
	status, body := s.GET(path)
	if dest != nil {
		s.Require().NoError(json.Unmarshal(body, dest), "body: %s", string(body))
	}
	return status
}

// PostJSON issues a POST with a JSON body and decodes the response into
// dest.
func (s *TestSuite) PostJSON(path string, payload interface{}, dest interface{}) int {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)

	resp, err := http.Post(s.TestServer.URL+path, "application/json", bytes.NewReader(raw))
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if dest != nil {
		s.Require().NoError(json.Unmarshal(body, dest), "body: %s", string(body))
	}
	return resp.StatusCode
}
