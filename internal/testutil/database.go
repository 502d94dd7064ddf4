// Package testutil provides shared fixtures for tests that need a run
// history database.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/storage"
)

// TestDB is an in-memory run history seeded with reports.
type TestDB struct {
	Store   *storage.SQLiteStorage
	t       *testing.T
	Reports []*model.Report
}

// SetupTestDB creates a migrated in-memory database holding reports. The
// database is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewReport("run-1", model.RunCompleted, 3),
//	)
func SetupTestDB(t *testing.T, reports ...*model.Report) *TestDB {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, report := range reports {
		if err := store.SaveReport(ctx, report); err != nil {
			t.Fatalf("failed to seed run %q: %v", report.RunID, err)
		}
	}

	return &TestDB{Store: store, Reports: reports, t: t}
}

// MustGetRun returns the stored report or fails the test.
func (db *TestDB) MustGetRun(runID string) *model.Report {
	db.t.Helper()
	report, err := db.Store.GetRun(context.Background(), runID)
	if err != nil {
		db.t.Fatalf("failed to get run %q: %v", runID, err)
	}
	return report
}

// NewReport builds a finished report whose rows were all created on one
// quote, numbered from sheet row 2.
func NewReport(runID string, status model.RunStatus, rows int) *model.Report {
	started := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	report := &model.Report{
		RunID:      runID,
		Workbook:   "orders/" + runID + ".xlsx",
		Sheet:      "Sheet1",
		Status:     status,
		OrderID:    "Q-" + runID,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	for i := range rows {
		lineItem := fmt.Sprintf("L-%d", i+1)
		report.Rows = append(report.Rows, model.RowReport{
			RowNumber: i + 2,
			State:     model.StateSubmitted,
			Outcome:   model.Created(report.OrderID, lineItem),
			Style:     "G500",
			Color:     "Black",
			Quantity:  12,
		})
	}
	return report
}
