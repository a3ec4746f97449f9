package sqlite

import (
	"context"
	"database/sql"
	"testing"

	alerts "coldchain-bridge/internal/alerts/domain"
	"coldchain-bridge/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testAlert(deviceID string, severity alerts.Severity) *alerts.Alert {
	return &alerts.Alert{
		DeviceID:     deviceID,
		Type:         alerts.TypeTemperatureViolation,
		Severity:     severity,
		Temperature:  20,
		ThresholdMin: 35,
		ThresholdMax: 41,
		Message:      "out of range",
	}
}

func TestAlertInsertAndUnsynced(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t))
	ctx := context.Background()

	warn := testAlert("fridge-1", alerts.SeverityWarning)
	crit := testAlert("freezer-1", alerts.SeverityCritical)
	for _, a := range []*alerts.Alert{warn, crit} {
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if warn.ID == 0 || crit.ID <= warn.ID {
		t.Fatalf("expected increasing ids, got %d then %d", warn.ID, crit.ID)
	}

	rows, err := repo.Unsynced(ctx, 10)
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 unsynced alerts, got %d", len(rows))
	}
	if rows[0].ID != warn.ID || rows[1].ID != crit.ID {
		t.Fatalf("alerts out of insertion order: %d, %d", rows[0].ID, rows[1].ID)
	}
	if rows[1].Severity != alerts.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", rows[1].Severity)
	}
	if rows[0].ThresholdMin != 35 || rows[0].ThresholdMax != 41 {
		t.Fatalf("thresholds lost in roundtrip: %+v", rows[0])
	}
}

func TestAlertMarkSynced(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t))
	ctx := context.Background()

	kept := testAlert("fridge-1", alerts.SeverityWarning)
	done := testAlert("fridge-1", alerts.SeverityWarning)
	for _, a := range []*alerts.Alert{kept, done} {
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.MarkSynced(ctx, []int64{done.ID}); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	rows, err := repo.Unsynced(ctx, 10)
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != kept.ID {
		t.Fatalf("expected only alert %d unsynced, got %+v", kept.ID, rows)
	}
}
