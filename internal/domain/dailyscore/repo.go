package dailyscore

import (
	"context"
	"time"
)

type Repository interface {
	// LockDay serializes writers of one (userID, date) for the rest of the
	// current transaction, whether or not the row exists yet.
	LockDay(ctx context.Context, userID int64, date Date) error
	// GetForUpdate locks the row for (userID, date) inside the current
	// transaction. It returns ErrNotFound when there is none.
	GetForUpdate(ctx context.Context, userID int64, date Date) (*DailyScore, error)
	// Upsert writes d keyed on (user, date) and fills ID, PostSurgeryDay and
	// timestamps. created is false when an existing row was updated.
	Upsert(ctx context.Context, d *DailyScore) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*DailyScore, error)
	GetByDate(ctx context.Context, userID int64, date Date) (*DailyScore, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*DailyScore, int, error)
	// Range returns a user's rows in ascending date order without the user join.
	Range(ctx context.Context, userID int64, r Range) ([]*DailyScore, error)
	LoggedDates(ctx context.Context, userID int64) ([]time.Time, error)
}
