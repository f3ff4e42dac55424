package dailyscore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
	"github.com/heartbeat/heartbeat/internal/platform/cache"
	"github.com/heartbeat/heartbeat/internal/platform/db"
	"github.com/heartbeat/heartbeat/internal/platform/telemetry"
)

const defaultCacheTTL = 5 * time.Minute

type Service struct {
	scores Repository
	tx     db.TxRunner
	cache  cache.Store
	ttl    time.Duration
	log    zerolog.Logger
	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(scores Repository, tx db.TxRunner) *Service {
	return &Service{
		scores: scores,
		tx:     tx,
		cache:  cache.NopStore{},
		ttl:    defaultCacheTTL,
		log:    zerolog.Nop(),
		loc:    time.UTC,
		now:    time.Now,
		tracer: telemetry.Tracer("heartbeat/dailyscore"),
	}
}

// SetCache attaches a read-model cache. Entries for a user are dropped on
// every write for that user.
func (s *Service) SetCache(store cache.Store, ttl time.Duration) {
	s.cache = store
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *Service) SetLogger(log zerolog.Logger) { s.log = log }

// SetClock sets the zone "today" is judged in for streaks.
func (s *Service) SetClock(loc *time.Location, now func() time.Time) {
	if loc != nil {
		s.loc = loc
	}
	if now != nil {
		s.now = now
	}
}

func (s *Service) startSpan(ctx context.Context, name string, userID int64) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "dailyscore."+name)
	span.SetAttributes(attribute.Int64("user.id", userID))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("dailyscore:%d:", userID)
}

// generationKey lives outside userPrefix so prefix deletes never reset it.
func generationKey(userID int64) string {
	return fmt.Sprintf("dailyscore:gen:%d", userID)
}

// invalidate bumps the user's generation, orphaning every entry keyed under
// the old one, then reclaims them.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	if _, err := s.cache.Incr(ctx, generationKey(userID)); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache generation bump failed")
	}
	if err := s.cache.DeletePrefix(ctx, userPrefix(userID)); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache invalidation failed")
	}
}

// cached serves a per-user read model or runs load and stores its result
// under the generation read before loading. Cache errors are logged and never
// fail the request; when the generation cannot be read the cache is skipped.
func cached[T any](ctx context.Context, s *Service, userID int64, name string, load func(context.Context) (T, error)) (T, error) {
	gen, err := cache.Generation(ctx, s.cache, generationKey(userID))
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache generation read failed")
		return load(ctx)
	}
	key := fmt.Sprintf("%sg%d:%s", userPrefix(userID), gen, name)

	var out T
	hit, err := cache.GetJSON(ctx, s.cache, key, &out)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if hit {
		return out, nil
	}

	out, err = load(ctx)
	if err != nil {
		return out, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, out, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return out, nil
}

// Submit creates or updates the caller's score for a date. Fields that were
// sent overwrite the stored ones, omitted fields are kept and the total is
// recomputed from the merged row. created reports whether a row was inserted.
func (s *Service) Submit(ctx context.Context, caller auth.Caller, in ScoreInput) (*DailyScore, bool, error) {
	date, err := in.Validate()
	if err != nil {
		return nil, false, err
	}
	userID, err := auth.ResolveWriteTarget(caller, in.UserID)
	if err != nil {
		return nil, false, err
	}

	ctx, span := s.startSpan(ctx, "Submit", userID)
	var saved *DailyScore
	var created bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.scores.LockDay(ctx, userID, date); err != nil {
			return err
		}
		row, err := s.scores.GetForUpdate(ctx, userID, date)
		switch {
		case errors.Is(err, ErrNotFound):
			row = &DailyScore{UserID: userID, ScoreDate: date}
		case err != nil:
			return fmt.Errorf("load daily score: %w", err)
		}

		in.ApplyTo(row)
		if created, err = s.scores.Upsert(ctx, row); err != nil {
			return err
		}
		if saved, err = s.scores.GetByID(ctx, row.ID); err != nil {
			return fmt.Errorf("reload daily score: %w", err)
		}
		return nil
	})
	defer endSpan(span, err)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return nil, false, invalid("userId", "user %d does not exist", userID)
		}
		return nil, false, err
	}

	s.invalidate(ctx, userID)
	span.SetAttributes(attribute.Bool("created", created), attribute.Float64("total", saved.TotalDailyScore))
	s.log.Info().
		Int64("user_id", userID).
		Str("score_date", date.String()).
		Float64("total", saved.TotalDailyScore).
		Bool("created", created).
		Msg("daily score saved")
	return saved, created, nil
}

// Get loads one row if the caller may see its owner.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id int64) (*DailyScore, error) {
	d, err := s.scores.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccessUserData(caller, d.UserID) {
		return nil, auth.ErrForbidden
	}
	return d, nil
}

func (s *Service) GetByDate(ctx context.Context, caller auth.Caller, requested *int64, date Date) (*DailyScore, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return nil, err
	}
	return s.scores.GetByDate(ctx, userID, date)
}

// Delete removes a row the caller may touch and returns its owner.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id int64) (int64, error) {
	d, err := s.scores.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !auth.CanAccessUserData(caller, d.UserID) {
		return 0, auth.ErrForbidden
	}
	if err := s.scores.Delete(ctx, id); err != nil {
		return 0, err
	}
	s.invalidate(ctx, d.UserID)
	s.log.Info().Int64("user_id", d.UserID).Int64("id", id).Msg("daily score deleted")
	return d.UserID, nil
}

// List pins patients to their own rows. Therapists and admins may omit the
// user to list across patients.
func (s *Service) List(ctx context.Context, caller auth.Caller, f Filter, limit, offset int) ([]*DailyScore, int, error) {
	switch {
	case caller.Role == auth.RolePatient:
		f.UserID = &caller.UserID
	case !caller.ActsForOthers():
		return nil, 0, auth.ErrForbidden
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return nil, 0, invalid("minScore", "minScore must not exceed maxScore")
	}
	return s.scores.List(ctx, f, limit, offset)
}

func (s *Service) points(ctx context.Context, userID int64, r Range) ([]scoring.DailyPoint, error) {
	rows, err := s.scores.Range(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	points := make([]scoring.DailyPoint, len(rows))
	for i, d := range rows {
		points[i] = d.Point()
	}
	return points, nil
}

func (s *Service) Stats(ctx context.Context, caller auth.Caller, requested *int64, r Range) (scoring.Stats, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return scoring.Stats{}, err
	}

	ctx, span := s.startSpan(ctx, "Stats", userID)
	st, err := cached(ctx, s, userID, "stats:"+r.key(), func(ctx context.Context) (scoring.Stats, error) {
		points, err := s.points(ctx, userID, r)
		if err != nil {
			return scoring.Stats{}, err
		}
		return scoring.Summarize(points), nil
	})
	endSpan(span, err)
	return st, err
}

// Trends returns []scoring.Bucket for week and month intervals and
// []scoring.DailyRecord for day.
func (s *Service) Trends(ctx context.Context, caller auth.Caller, requested *int64, r Range, interval scoring.Interval) (interface{}, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "Trends", userID)
	span.SetAttributes(attribute.String("interval", string(interval)))
	name := "trends:" + string(interval) + ":" + r.key()

	var out interface{}
	if bucket := interval.KeyFunc(); bucket != nil {
		out, err = cached(ctx, s, userID, name, func(ctx context.Context) ([]scoring.Bucket, error) {
			points, err := s.points(ctx, userID, r)
			if err != nil {
				return nil, err
			}
			return scoring.BucketTrends(points, bucket), nil
		})
	} else {
		out, err = cached(ctx, s, userID, name, func(ctx context.Context) ([]scoring.DailyRecord, error) {
			points, err := s.points(ctx, userID, r)
			if err != nil {
				return nil, err
			}
			return scoring.DailyTrend(points), nil
		})
	}
	endSpan(span, err)
	return out, err
}

func (s *Service) Streak(ctx context.Context, caller auth.Caller, requested *int64) (scoring.Streak, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return scoring.Streak{}, err
	}

	today := s.now().In(s.loc)
	return cached(ctx, s, userID, "streak:"+DateOf(today).String(), func(ctx context.Context) (scoring.Streak, error) {
		dates, err := s.scores.LoggedDates(ctx, userID)
		if err != nil {
			return scoring.Streak{}, err
		}
		return scoring.Streaks(dates, DateOf(today).Time), nil
	})
}
