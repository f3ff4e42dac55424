package medicationlog

import "context"

type Repository interface {
	// ListByUser returns a user's logs scheduled inside w, ordered by
	// scheduled time, with the medication name joined in.
	ListByUser(ctx context.Context, userID int64, w Window) ([]*Log, error)
}
