package config

import (
	"os"
	"path/filepath"
	"testing"

	"microdote/scheduler"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	path := writeTemp(t, `
host:
  addr: ":8080"
  db_path: "./collection.db"
scheduler:
  new_cards_per_day: 10
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := f.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig: %v", err)
	}

	if cfg.NewCardsPerDay != 10 {
		t.Errorf("expected override new_cards_per_day=10, got %d", cfg.NewCardsPerDay)
	}
	want := scheduler.DefaultConfig()
	if cfg.ReviewCardsPerDay != want.ReviewCardsPerDay {
		t.Errorf("expected default review_cards_per_day=%d, got %d", want.ReviewCardsPerDay, cfg.ReviewCardsPerDay)
	}
	if cfg.Location != want.Location {
		t.Errorf("expected default UTC location")
	}
}

func TestLoad_TimeZoneOverride(t *testing.T) {
	path := writeTemp(t, `
scheduler:
  time_zone: "America/New_York"
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := f.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig: %v", err)
	}
	if cfg.Location.String() != "America/New_York" {
		t.Errorf("expected America/New_York, got %s", cfg.Location.String())
	}
}

func TestLoad_InvalidNewSpread(t *testing.T) {
	path := writeTemp(t, `
scheduler:
  new_spread: "sideways"
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := f.SchedulerConfig(); err == nil {
		t.Fatalf("expected error for invalid new_spread")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
