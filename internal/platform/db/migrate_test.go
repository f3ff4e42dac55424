package db

import (
	"errors"
	"testing"
	"testing/fstest"
	"time"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestLoadMigrations(t *testing.T) {
	fsys := mapFS(map[string]string{
		"001_users.sql":           "CREATE TABLE users (id BIGSERIAL PRIMARY KEY);",
		"002_daily_scores.sql":    "CREATE TABLE daily_scores (id BIGSERIAL PRIMARY KEY);",
		"003_medication_logs.sql": "CREATE TABLE medication_logs (id BIGSERIAL PRIMARY KEY);",
	})

	migrations, err := NewMigrator(nil, fsys, "").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_users.sql" {
		t.Errorf("expected name 001_users.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE users (id BIGSERIAL PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	fsys := mapFS(map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"005_middle.sql": "SELECT 5;",
	})

	migrations, err := NewMigrator(nil, fsys, "").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expectedVersions := []int{1, 2, 5, 10}
	if len(migrations) != len(expectedVersions) {
		t.Fatalf("expected %d migrations, got %d", len(expectedVersions), len(migrations))
	}
	for i, expected := range expectedVersions {
		if migrations[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsInvalidNames(t *testing.T) {
	fsys := mapFS(map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not a sql file",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
		"sub/003_nested.sql": "SELECT 3;",
	})

	migrations, err := NewMigrator(nil, fsys, "").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := mapFS(map[string]string{
		"001_a.sql": "SELECT 1;",
		"001_b.sql": "SELECT 1;",
	})
	if _, err := NewMigrator(nil, fsys, "").LoadMigrations(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}, "").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestNewMigrator_DefaultSchema(t *testing.T) {
	if got := NewMigrator(nil, fstest.MapFS{}, "").Schema(); got != "public" {
		t.Errorf("expected default schema public, got %s", got)
	}
	if got := NewMigrator(nil, fstest.MapFS{}, "it_run_1").Schema(); got != "it_run_1" {
		t.Errorf("expected schema it_run_1, got %s", got)
	}
}

func TestBuildStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_users.sql"},
		{Version: 2, Name: "002_daily_scores.sql"},
		{Version: 3, Name: "003_medication_logs.sql"},
	}
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	statuses := buildStatus(migrations, map[int]time.Time{1: at})

	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %s, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Error("expected migration 002 to be pending")
	}
	if statuses[2].Name != "003_medication_logs.sql" {
		t.Errorf("unexpected name %s", statuses[2].Name)
	}
}

func TestApplyPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	var ran []int
	count, err := applyPending(migrations, map[int]time.Time{1: {}}, func(m Migration) error {
		ran = append(ran, m.Version)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 || len(ran) != 2 || ran[0] != 2 || ran[1] != 3 {
		t.Errorf("expected to apply [2 3], got %v (count %d)", ran, count)
	}
}

func TestApplyPending_StopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	count, err := applyPending(migrations, nil, func(m Migration) error {
		if m.Version == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 applied before failure, got %d", count)
	}
}
