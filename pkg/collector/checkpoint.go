package collector

import (
	"context"
	"fmt"
	"time"

	"instacollector/pkg/store"
)

// Tracker decides which users are due for a timeline sweep today and
// records completed sweeps as daily stamps on the user record. Stamps
// are append-only and at most one is added per calendar day, so an
// interrupted daily pass resumes where it stopped.
type Tracker struct {
	users       *store.Collection
	postsPerDay int
	now         func() time.Time
}

// NewTracker creates a tracker over the users collection.
func NewTracker(users *store.Collection, postsPerDay int) *Tracker {
	return &Tracker{users: users, postsPerDay: postsPerDay, now: time.Now}
}

// DateStamp formats a calendar day the way stamps are stored, with no
// zero padding.
func DateStamp(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%d-%d-%d", y, int(m), d)
}

// Due opens a cursor over public users due for a sweep. The historical
// pass selects users with no sweep history at all; the daily pass
// selects everyone missing today's stamp, never-swept users included.
func (t *Tracker) Due(ctx context.Context, historicalFirst bool) (*store.Cursor, error) {
	if historicalFirst {
		return t.users.Find(ctx, store.Filter{
			NotPrivate:   true,
			MissingDates: true,
		})
	}
	return t.users.Find(ctx, store.Filter{
		NotPrivate:  true,
		WithoutDate: DateStamp(t.now()),
	})
}

// LimitFor returns the item cap for a user's sweep. A user with no
// sweep history gets an unlimited historical pass when historicalFirst
// is set; everyone else is capped at the daily rate.
func (t *Tracker) LimitFor(rec *store.Record, historicalFirst bool) int {
	if historicalFirst && len(rec.Dates()) == 0 {
		return 0
	}
	return t.postsPerDay
}

// MarkSwept appends today's stamp to the user's sweep history. Calling
// it twice on the same day leaves a single stamp.
func (t *Tracker) MarkSwept(ctx context.Context, rec *store.Record) error {
	stamp := DateStamp(t.now())

	dates := rec.Dates()
	for _, d := range dates {
		if d == stamp {
			return nil
		}
	}
	dates = append(dates, stamp)

	return t.users.SetDatesFetched(ctx, rec.ID, dates)
}
