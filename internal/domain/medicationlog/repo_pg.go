package medicationlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartbeat/heartbeat/internal/platform/db"
)

type medicationLogRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &medicationLogRepoPG{pool: pool}
}

func (r *medicationLogRepoPG) ListByUser(ctx context.Context, userID int64, w Window) ([]*Log, error) {
	where := []string{"ml.user_id = $1"}
	args := []interface{}{userID}
	if !w.From.IsZero() {
		args = append(args, w.From)
		where = append(where, fmt.Sprintf("ml.scheduled_time >= $%d", len(args)))
	}
	if !w.To.IsZero() {
		args = append(args, w.To)
		where = append(where, fmt.Sprintf("ml.scheduled_time < $%d", len(args)))
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT ml.id, ml.user_id, ml.medication_id, m.name,
			ml.scheduled_time, ml.taken_time, ml.status, ml.notes
		FROM medication_logs ml
		JOIN medications m ON m.id = ml.medication_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY ml.scheduled_time, ml.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query medication logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Log, error) {
		var l Log
		err := row.Scan(&l.ID, &l.UserID, &l.MedicationID, &l.MedicationName,
			&l.ScheduledTime, &l.TakenTime, &l.Status, &l.Notes)
		return &l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan medication logs: %w", err)
	}
	return logs, nil
}
