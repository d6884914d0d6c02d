// Package testhelpers provides reusable testing utilities for Aurora.
//
// This package contains:
// - In-memory database setup
// - Catalog and entity fixtures
// - Request builders
// - Assertion helpers
package testhelpers

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/igapp/aurora/internal/database"
)

// ========================================
// Database Helpers
// ========================================

// SetupTestDB opens a migrated in-memory SQLite database that is closed when the test ends
func SetupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// TestLogger returns a sugared logger that writes through the test log
func TestLogger(t testing.TB) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

// ========================================
// Fixtures
// ========================================

// Fixtures holds one row of each reference entity, inserted directly
type Fixtures struct {
	Critical      database.Severity
	Low           database.Severity
	Active        database.RuleStatus
	Inactive      database.RuleStatus
	New           database.AlertStatus
	Investigating database.AlertStatus
	Resolved      database.AlertStatus
	FalsePositive database.AlertStatus
	Source        database.Source
	Rule          database.Rule
	LogEvent      database.LogEvent
}

// SeedFixtures inserts the standard catalogs plus one source, rule and log event
func SeedFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	t.Helper()
	f := &Fixtures{
		Critical:      database.Severity{Name: "CRITICAL", Level: 5},
		Low:           database.Severity{Name: "LOW", Level: 2},
		Active:        database.RuleStatus{Name: "ACTIVE"},
		Inactive:      database.RuleStatus{Name: "INACTIVE"},
		New:           database.AlertStatus{Name: "NEW"},
		Investigating: database.AlertStatus{Name: "INVESTIGATING"},
		Resolved:      database.AlertStatus{Name: "RESOLVED"},
		FalsePositive: database.AlertStatus{Name: "FALSE_POSITIVE"},
	}
	for _, row := range []interface{}{
		&f.Critical, &f.Low, &f.Active, &f.Inactive,
		&f.New, &f.Investigating, &f.Resolved, &f.FalsePositive,
	} {
		MustCreate(t, db, row)
	}

	f.Source = NewSourceBuilder().WithAgentID("a1").WithHostname("h1").Build()
	MustCreate(t, db, &f.Source)

	f.Rule = database.Rule{
		Name:              "R1",
		Condition:         "x",
		StatusID:          f.Active.ID,
		DefaultSeverityID: f.Critical.ID,
		Enabled:           true,
	}
	MustCreate(t, db, &f.Rule)

	f.LogEvent = database.LogEvent{SourceID: f.Source.ID, Message: "failed login"}
	MustCreate(t, db, &f.LogEvent)
	return f
}

// MustCreate inserts a row or fails the test
func MustCreate(t testing.TB, db *gorm.DB, row interface{}) {
	t.Helper()
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create %T: %v", row, err)
	}
}

// InsertAlert inserts an alert for the fixture rule, event and source with the given status
func (f *Fixtures) InsertAlert(t testing.TB, db *gorm.DB, statusID uint, message string) database.Alert {
	t.Helper()
	alert := database.Alert{
		RuleID:     f.Rule.ID,
		LogEventID: f.LogEvent.ID,
		SourceID:   f.Source.ID,
		SeverityID: f.Critical.ID,
		StatusID:   statusID,
		Message:    message,
	}
	MustCreate(t, db, &alert)
	return alert
}

// CountRows returns the number of rows of model, soft-deleted ones included
func CountRows(t testing.TB, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count %T: %v", model, err)
	}
	return n
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}

// UniqueName returns prefix with a per-call suffix, for rows with unique names
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
