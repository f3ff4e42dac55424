package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartbeat/heartbeat/internal/domain/medicationlog"
	"github.com/heartbeat/heartbeat/internal/domain/scoring"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
)

func createMedication(t *testing.T, pool *pgxpool.Pool, userID int64, name string) int64 {
	t.Helper()
	var id int64
	if err := pool.QueryRow(context.Background(),
		`INSERT INTO medications (user_id, name, dosage) VALUES ($1, $2, '10mg') RETURNING id`,
		userID, name).Scan(&id); err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return id
}

func logDose(t *testing.T, pool *pgxpool.Pool, userID, medID int64, at time.Time, status string) {
	t.Helper()
	if _, err := pool.Exec(context.Background(),
		`INSERT INTO medication_logs (user_id, medication_id, scheduled_time, status) VALUES ($1, $2, $3, $4)`,
		userID, medID, at, status); err != nil {
		t.Fatalf("log dose: %v", err)
	}
}

func TestMedicationLog_MonthlyAndCalendar(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	user := createUser(t, pool, "meds", "patient", nil)
	aspirin := createMedication(t, pool, user, "Aspirin")
	statin := createMedication(t, pool, user, "Atorvastatin")

	day := func(d, h int) time.Time { return time.Date(2024, time.April, d, h, 0, 0, 0, time.UTC) }
	logDose(t, pool, user, aspirin, day(1, 8), "taken")
	logDose(t, pool, user, statin, day(1, 21), "taken")
	logDose(t, pool, user, aspirin, day(2, 8), "taken")
	logDose(t, pool, user, statin, day(2, 21), "missed")
	logDose(t, pool, user, aspirin, time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC), "taken")

	svc := medicationlog.NewService(medicationlog.NewRepoPG(pool))
	caller := auth.Caller{UserID: user, Role: auth.RolePatient}
	april := scoring.Month{Year: 2024, Month: time.April}

	m, err := svc.Monthly(ctx, caller, nil, april)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if m.DaysLogged != 2 || m.BaseScore != 5 || m.MaxPossibleScore != 100 {
		t.Errorf("unexpected monthly score %+v", m)
	}

	cal, err := svc.Calendar(ctx, caller, nil, april)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(cal.Cells) != 30 {
		t.Fatalf("expected 30 cells, got %d", len(cal.Cells))
	}
	if cal.Cells[1].AdherenceRate == nil || *cal.Cells[1].AdherenceRate != 50 {
		t.Errorf("expected 50%% on day 2, got %v", cal.Cells[1].AdherenceRate)
	}
	if cal.Cells[2].AdherenceRate != nil {
		t.Errorf("expected no data on day 3")
	}

	meds, err := svc.PerMedication(ctx, caller, nil, medicationlog.Window{})
	if err != nil {
		t.Fatalf("per medication: %v", err)
	}
	if len(meds) != 2 {
		t.Fatalf("expected 2 medications, got %d", len(meds))
	}
	if meds[0].Name != "Aspirin" || meds[0].TakenCount != 3 {
		t.Errorf("unexpected aspirin summary %+v", meds[0])
	}
	if meds[1].AdherenceRate != 50 || meds[1].BarColor != scoring.BarYellow {
		t.Errorf("unexpected statin summary %+v", meds[1])
	}
}
