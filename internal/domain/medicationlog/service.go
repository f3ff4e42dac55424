package medicationlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
	"github.com/heartbeat/heartbeat/internal/platform/telemetry"
)

type Service struct {
	logs   Repository
	log    zerolog.Logger
	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(logs Repository) *Service {
	return &Service{
		logs:   logs,
		log:    zerolog.Nop(),
		loc:    time.UTC,
		now:    time.Now,
		tracer: telemetry.Tracer("heartbeat/medicationlog"),
	}
}

func (s *Service) SetLogger(log zerolog.Logger) { s.log = log }

// SetClock sets the zone doses are bucketed into calendar days in, and the
// clock used for the default month.
func (s *Service) SetClock(loc *time.Location, now func() time.Time) {
	if loc != nil {
		s.loc = loc
	}
	if now != nil {
		s.now = now
	}
}

// Location is the scoring time zone.
func (s *Service) Location() *time.Location { return s.loc }

// CurrentMonth is the month containing now in the scoring time zone.
func (s *Service) CurrentMonth() scoring.Month {
	return scoring.MonthOf(s.now().In(s.loc))
}

func (s *Service) monthCounts(ctx context.Context, name string, userID int64, m scoring.Month) (map[int]scoring.DoseCount, error) {
	ctx, span := s.tracer.Start(ctx, "medicationlog."+name)
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.String("month", m.String()))
	defer span.End()

	from, to := m.Bounds(s.loc)
	logs, err := s.logs.ListByUser(ctx, userID, Window{From: from, To: to})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load medication logs: %w", err)
	}
	span.SetAttributes(attribute.Int("logs", len(logs)))
	return dailyCounts(logs, m, s.loc), nil
}

// Monthly scores month m for the target user.
func (s *Service) Monthly(ctx context.Context, caller auth.Caller, requested *int64, m scoring.Month) (scoring.Monthly, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return scoring.Monthly{}, err
	}
	counts, err := s.monthCounts(ctx, "Monthly", userID, m)
	if err != nil {
		return scoring.Monthly{}, err
	}
	out := scoring.MonthlyScore(m, scoring.DailyRates(counts))
	s.log.Debug().
		Int64("user_id", userID).
		Str("month", out.Month).
		Int("total_score", out.TotalScore).
		Msg("monthly medication score")
	return out, nil
}

// Calendar builds the adherence heatmap of month m for the target user.
func (s *Service) Calendar(ctx context.Context, caller auth.Caller, requested *int64, m scoring.Month) (*Calendar, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return nil, err
	}
	counts, err := s.monthCounts(ctx, "Calendar", userID, m)
	if err != nil {
		return nil, err
	}
	return &Calendar{
		Year:        m.Year,
		Month:       int(m.Month),
		DaysInMonth: m.DaysInMonth(),
		Cells:       scoring.BuildHeatmap(m, counts),
	}, nil
}

// PerMedication summarises adherence per medication over w.
func (s *Service) PerMedication(ctx context.Context, caller auth.Caller, requested *int64, w Window) ([]MedicationAdherence, error) {
	userID, err := auth.ResolveTargetUser(caller, requested)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "medicationlog.PerMedication")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	logs, err := s.logs.ListByUser(ctx, userID, w)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load medication logs: %w", err)
	}
	return perMedication(logs), nil
}
