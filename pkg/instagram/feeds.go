package instagram

import (
	"context"
)

// Feed is a remote, paginated result set bound to one query. Next
// fetches the next page (possibly empty); MoreAvailable is meaningful
// only after a successful or exhausted fetch. Page fetches never run
// concurrently for one feed.
type Feed interface {
	Next(ctx context.Context) ([]Payload, error)
	MoreAvailable() bool
}

// UserMediaFeed pages through one account's timeline.
type UserMediaFeed struct {
	session *Session
	userID  string
	maxID   string
	more    bool
}

// NewUserMediaFeed creates a timeline feed for the given account id.
func NewUserMediaFeed(s *Session, userID string) *UserMediaFeed {
	return &UserMediaFeed{session: s, userID: userID, more: true}
}

func (f *UserMediaFeed) Next(ctx context.Context) ([]Payload, error) {
	var resp feedResponse
	if err := f.session.getJSON(ctx, pagedPath(userMediaPath(f.userID), f.maxID), &resp); err != nil {
		return nil, err
	}
	if err := checkAPIStatus(resp.Status, resp.Message); err != nil {
		return nil, err
	}

	f.maxID = resp.NextMaxID
	f.more = resp.MoreAvailable && resp.NextMaxID != ""

	items := make([]Payload, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, item.payload())
	}
	return items, nil
}

func (f *UserMediaFeed) MoreAvailable() bool { return f.more }

// FollowerFeed pages through the followers of one account.
type FollowerFeed struct {
	session   *Session
	accountID string
	maxID     string
	more      bool
}

// NewFollowerFeed creates a follower feed for the given account id.
func NewFollowerFeed(s *Session, accountID string) *FollowerFeed {
	return &FollowerFeed{session: s, accountID: accountID, more: true}
}

func (f *FollowerFeed) Next(ctx context.Context) ([]Payload, error) {
	var resp followersResponse
	if err := f.session.getJSON(ctx, pagedPath(followersPath(f.accountID), f.maxID), &resp); err != nil {
		return nil, err
	}
	if err := checkAPIStatus(resp.Status, resp.Message); err != nil {
		return nil, err
	}

	f.maxID = resp.NextMaxID
	f.more = resp.NextMaxID != ""

	items := make([]Payload, 0, len(resp.Users))
	for _, user := range resp.Users {
		items = append(items, user.payload())
	}
	return items, nil
}

func (f *FollowerFeed) MoreAvailable() bool { return f.more }

// HashtagFeed pages through posts tagged with one hashtag.
type HashtagFeed struct {
	session *Session
	tag     string
	maxID   string
	more    bool
}

// NewHashtagFeed creates a feed over posts carrying the given hashtag.
func NewHashtagFeed(s *Session, tag string) *HashtagFeed {
	return &HashtagFeed{session: s, tag: tag, more: true}
}

func (f *HashtagFeed) Next(ctx context.Context) ([]Payload, error) {
	var resp feedResponse
	if err := f.session.getJSON(ctx, pagedPath(hashtagPath(f.tag), f.maxID), &resp); err != nil {
		return nil, err
	}
	if err := checkAPIStatus(resp.Status, resp.Message); err != nil {
		return nil, err
	}

	f.maxID = resp.NextMaxID
	f.more = resp.MoreAvailable && resp.NextMaxID != ""

	items := make([]Payload, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, item.payload())
	}
	return items, nil
}

func (f *HashtagFeed) MoreAvailable() bool { return f.more }

// LocationFeed pages through posts attached to one location.
type LocationFeed struct {
	session    *Session
	locationID string
	maxID      string
	more       bool
}

// NewLocationFeed creates a feed over posts for the given location id.
func NewLocationFeed(s *Session, locationID string) *LocationFeed {
	return &LocationFeed{session: s, locationID: locationID, more: true}
}

func (f *LocationFeed) Next(ctx context.Context) ([]Payload, error) {
	var resp feedResponse
	if err := f.session.getJSON(ctx, pagedPath(locationPath(f.locationID), f.maxID), &resp); err != nil {
		return nil, err
	}
	if err := checkAPIStatus(resp.Status, resp.Message); err != nil {
		return nil, err
	}

	f.maxID = resp.NextMaxID
	f.more = resp.MoreAvailable && resp.NextMaxID != ""

	items := make([]Payload, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, item.payload())
	}
	return items, nil
}

func (f *LocationFeed) MoreAvailable() bool { return f.more }
