package dailyscore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartbeat/heartbeat/internal/platform/db"
)

const pgForeignKeyViolation = "23503"

type dailyScoreRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &dailyScoreRepoPG{pool: pool}
}

func (r *dailyScoreRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const scoreCols = `ds.id, ds.user_id, ds.score_date, ds.post_surgery_day,
	ds.exercise_score, ds.nutrition_score, ds.medication_score,
	ds.sleep_score, ds.vitals_score, ds.hydration_score,
	ds.total_daily_score, ds.notes, ds.created_at, ds.updated_at`

const userCols = `u.id, u.name, u.email`

func scanScore(row pgx.Row, withUser bool) (*DailyScore, error) {
	var d DailyScore
	dest := []interface{}{
		&d.ID, &d.UserID, &d.ScoreDate.Time, &d.PostSurgeryDay,
		&d.ExerciseScore, &d.NutritionScore, &d.MedicationScore,
		&d.SleepScore, &d.VitalsScore, &d.HydrationScore,
		&d.TotalDailyScore, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
	}
	var u UserSummary
	if withUser {
		dest = append(dest, &u.ID, &u.Name, &u.Email)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if withUser {
		d.User = &u
	}
	return &d, nil
}

// LockDay takes a transaction-scoped advisory lock keyed on the user and day.
// FOR UPDATE alone cannot guard the first insert of a day.
func (r *dailyScoreRepoPG) LockDay(ctx context.Context, userID int64, date Date) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('daily_scores:' || $1::text || ':' || $2::date::text, 0))`,
		userID, date.Time)
	if err != nil {
		return fmt.Errorf("lock daily score: %w", err)
	}
	return nil
}

func (r *dailyScoreRepoPG) GetForUpdate(ctx context.Context, userID int64, date Date) (*DailyScore, error) {
	return scanScore(r.conn(ctx).QueryRow(ctx, `
		SELECT `+scoreCols+` FROM daily_scores ds
		WHERE ds.user_id = $1 AND ds.score_date = $2
		FOR UPDATE`, userID, date.Time), false)
}

// Upsert derives post_surgery_day from the owner's surgery date and reports
// whether the row was inserted via the xmax system column.
func (r *dailyScoreRepoPG) Upsert(ctx context.Context, d *DailyScore) (bool, error) {
	var created bool
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO daily_scores (user_id, score_date, post_surgery_day,
			exercise_score, nutrition_score, medication_score,
			sleep_score, vitals_score, hydration_score,
			total_daily_score, notes)
		VALUES ($1, $2::date,
			(SELECT $2::date - u.surgery_date FROM users u WHERE u.id = $1),
			$3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, score_date) DO UPDATE SET
			post_surgery_day = EXCLUDED.post_surgery_day,
			exercise_score = EXCLUDED.exercise_score,
			nutrition_score = EXCLUDED.nutrition_score,
			medication_score = EXCLUDED.medication_score,
			sleep_score = EXCLUDED.sleep_score,
			vitals_score = EXCLUDED.vitals_score,
			hydration_score = EXCLUDED.hydration_score,
			total_daily_score = EXCLUDED.total_daily_score,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, post_surgery_day, created_at, updated_at, (xmax = 0)`,
		d.UserID, d.ScoreDate.Time,
		d.ExerciseScore, d.NutritionScore, d.MedicationScore,
		d.SleepScore, d.VitalsScore, d.HydrationScore,
		d.TotalDailyScore, d.Notes,
	).Scan(&d.ID, &d.PostSurgeryDay, &d.CreatedAt, &d.UpdatedAt, &created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return false, ErrUnknownUser
		}
		return false, fmt.Errorf("upsert daily score: %w", err)
	}
	return created, nil
}

func (r *dailyScoreRepoPG) GetByID(ctx context.Context, id int64) (*DailyScore, error) {
	return scanScore(r.conn(ctx).QueryRow(ctx, `
		SELECT `+scoreCols+`, `+userCols+`
		FROM daily_scores ds JOIN users u ON u.id = ds.user_id
		WHERE ds.id = $1`, id), true)
}

func (r *dailyScoreRepoPG) GetByDate(ctx context.Context, userID int64, date Date) (*DailyScore, error) {
	return scanScore(r.conn(ctx).QueryRow(ctx, `
		SELECT `+scoreCols+`, `+userCols+`
		FROM daily_scores ds JOIN users u ON u.id = ds.user_id
		WHERE ds.user_id = $1 AND ds.score_date = $2`, userID, date.Time), true)
}

func (r *dailyScoreRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM daily_scores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete daily score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// whereClause renders f as SQL predicates on the ds alias.
func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("ds.user_id = $%d", *f.UserID)
	}
	if f.Range.From != nil {
		add("ds.score_date >= $%d", f.Range.From.Time)
	}
	if f.Range.To != nil {
		add("ds.score_date <= $%d", f.Range.To.Time)
	}
	if f.MinScore != nil {
		add("ds.total_daily_score >= $%d", *f.MinScore)
	}
	if f.MaxScore != nil {
		add("ds.total_daily_score <= $%d", *f.MaxScore)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *dailyScoreRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*DailyScore, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM daily_scores ds`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count daily scores: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s, %s
		FROM daily_scores ds JOIN users u ON u.id = ds.user_id%s
		ORDER BY ds.score_date DESC, ds.id DESC
		LIMIT $%d OFFSET $%d`, scoreCols, userCols, where, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list daily scores: %w", err)
	}
	defer rows.Close()

	items := []*DailyScore{}
	for rows.Next() {
		d, err := scanScore(rows, true)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *dailyScoreRepoPG) Range(ctx context.Context, userID int64, rg Range) ([]*DailyScore, error) {
	where, args := whereClause(Filter{UserID: &userID, Range: rg})
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+scoreCols+` FROM daily_scores ds`+where+` ORDER BY ds.score_date ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("range daily scores: %w", err)
	}
	defer rows.Close()

	var items []*DailyScore
	for rows.Next() {
		d, err := scanScore(rows, false)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *dailyScoreRepoPG) LoggedDates(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT score_date FROM daily_scores WHERE user_id = $1 ORDER BY score_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("logged dates: %w", err)
	}
	defer rows.Close()

	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan logged dates: %w", err)
	}
	return dates, nil
}
