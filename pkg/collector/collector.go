package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"instacollector/pkg/config"
	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
	"instacollector/pkg/media"
	"instacollector/pkg/ratelimit"
	"instacollector/pkg/retry"
	"instacollector/pkg/store"
)

// Collector owns the long-running ingestion engine: one API session,
// one document store, per-collection write buffers and the sweep tasks
// that drive them.
type Collector struct {
	cfg    *config.Config
	logger logger.Logger

	session *instagram.Session
	store   *store.Store
	users   *Buffer
	posts   *Buffer
	tracker *Tracker

	userMedia *media.Materializer
	postMedia *media.Materializer

	activateOnce sync.Once
	activateErr  error
}

// New creates an inactive collector. Nothing touches the network or
// the filesystem until Activate.
func New(cfg *config.Config, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{cfg: cfg, logger: log}
}

// Activate builds the session, opens the store and wires the buffers.
// Idempotent; concurrent and repeated calls share one activation.
func (c *Collector) Activate() error {
	c.activateOnce.Do(func() {
		c.activateErr = c.activate()
	})
	return c.activateErr
}

func (c *Collector) activate() error {
	limiter := ratelimit.NewTokenBucket(c.cfg.RateLimit.RequestsPerMinute, time.Minute)

	session, err := instagram.NewSession(instagram.Credentials{
		Username:  c.cfg.Instagram.Username,
		SessionID: c.cfg.Instagram.SessionID,
		CSRFToken: c.cfg.Instagram.CSRFToken,
		UserAgent: c.cfg.Instagram.UserAgent,
	}, c.cfg.Instagram.Timeout, limiter, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	c.session = session

	st, err := store.Open(&c.cfg.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	c.store = st

	if c.cfg.Media.Save || c.cfg.Tasks.DownloadMedia.On {
		if err := c.wireMedia(); err != nil {
			st.Close()
			return err
		}
	}

	var userMat, postMat Materializer
	if c.cfg.Media.Save {
		userMat, postMat = c.userMedia, c.postMedia
	}

	c.users = NewBuffer(st.Users(), c.cfg.FlushThreshold(store.CollectionUsers), userMat, c.logger)
	c.posts = NewBuffer(st.Posts(), c.cfg.FlushThreshold(store.CollectionPosts), postMat, c.logger)
	c.tracker = NewTracker(st.Users(), c.cfg.Sweep.PostsPerDay)

	return nil
}

func (c *Collector) wireMedia() error {
	userStore, err := media.NewFileStore(c.cfg.MediaDir(store.CollectionUsers), c.logger)
	if err != nil {
		return fmt.Errorf("failed to create user media store: %w", err)
	}
	postStore, err := media.NewFileStore(c.cfg.MediaDir(store.CollectionPosts), c.logger)
	if err != nil {
		return fmt.Errorf("failed to create post media store: %w", err)
	}

	c.userMedia = media.NewMaterializer(c.session, userStore, c.cfg.Media.RetryAttempts, c.logger)
	c.postMedia = media.NewMaterializer(c.session, postStore, c.cfg.Media.RetryAttempts, c.logger)
	return nil
}

// Close releases the collector's resources.
func (c *Collector) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Run starts every enabled sweep under supervision and blocks until
// the context is cancelled and all sweeps have stopped.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.Activate(); err != nil {
		return err
	}

	sup := NewSupervisor(c.logger)

	if c.cfg.Tasks.FetchUsers.On {
		sup.Go(ctx, "fetch_users", c.CollectUsers)
	}
	if c.cfg.Tasks.FetchPosts.On {
		sup.Go(ctx, "fetch_posts", c.CollectPosts)
	}
	if c.cfg.Tasks.FetchHashtagPosts.On {
		sup.Go(ctx, "fetch_hashtag_posts", c.CollectHashtagPosts)
	}
	if c.cfg.Tasks.FetchLocationPosts.On {
		sup.Go(ctx, "fetch_location_posts", c.CollectLocationPosts)
	}
	if c.cfg.Tasks.DownloadMedia.On {
		sup.Go(ctx, "download_post_media", c.DownloadPostMedia)
		sup.Go(ctx, "download_profile_pictures", c.DownloadProfilePictures)
	}

	sup.Wait()
	return ctx.Err()
}

// CollectUsers seeds and refreshes the users collection from the
// follower list of the configured influencer account. Each exhausted
// pass is followed by a cool-down, then the feed is walked again to
// pick up new followers.
func (c *Collector) CollectUsers(ctx context.Context) error {
	influencer, err := c.session.SearchUser(ctx, c.cfg.Sweep.Influencer)
	if err != nil {
		return fmt.Errorf("failed to resolve influencer %q: %w", c.cfg.Sweep.Influencer, err)
	}

	for {
		feed := instagram.NewFollowerFeed(c.session, influencer.ID)
		staged, err := Drain(ctx, feed, c.users, DrainOptions{
			Name:     "followers of " + influencer.Username,
			Cooldown: c.cfg.Sweep.Cooldown,
			Logger:   c.logger,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}

		logger.LogSweepCycle("fetch_users", 1, staged)

		if werr := retry.Wait(ctx, c.cfg.Sweep.Cooldown); werr != nil {
			return werr
		}
	}
}

// CollectPosts walks every user due for a timeline sweep today and
// drains that user's feed into the posts collection. Users with no
// sweep history get an uncapped historical pass when configured;
// everyone else is capped at the daily rate. A completed user is
// stamped so a restart within the same day skips them.
func (c *Collector) CollectPosts(ctx context.Context) error {
	for {
		if err := c.sweepDueUsers(ctx); err != nil {
			return err
		}

		if werr := retry.Wait(ctx, c.cfg.Sweep.Cooldown); werr != nil {
			return werr
		}
	}
}

func (c *Collector) sweepDueUsers(ctx context.Context) error {
	// Users with no sweep history at all go first when the historical
	// pass is enabled. Completing one stamps the user, which keeps them
	// out of the daily pass below until tomorrow.
	if c.cfg.Tasks.FetchPosts.HistoricalFirst {
		if err := c.sweepPass(ctx, true); err != nil {
			return err
		}
	}
	return c.sweepPass(ctx, false)
}

func (c *Collector) sweepPass(ctx context.Context, historical bool) error {
	cursor, err := c.tracker.Due(ctx, historical)
	if err != nil {
		return fmt.Errorf("failed to select due users: %w", err)
	}
	defer cursor.Close()

	entities, items := 0, 0
	for cursor.HasNext() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rec, err := cursor.Next()
		if err != nil {
			c.logger.ErrorWhen("retrieving user info from storage", err)
			continue
		}

		staged, err := c.sweepUser(ctx, rec)
		items += staged
		entities++

		switch {
		case err == nil:
			if merr := c.tracker.MarkSwept(ctx, rec); merr != nil {
				c.logger.ErrorWhen("recording the sweep stamp of user "+rec.ID, merr)
			}
		case err == ErrAccountPrivate:
			// Flagged inside the drain; no stamp, the user drops out
			// of future selection.
		default:
			return err
		}
	}

	logger.LogSweepCycle("fetch_posts", entities, items)
	return nil
}

func (c *Collector) sweepUser(ctx context.Context, rec *store.Record) (int, error) {
	name := "user " + rec.ID
	if user := decodeUser(rec); user != nil && user.Username != "" {
		name = "user " + user.Username
	}

	feed := instagram.NewUserMediaFeed(c.session, rec.ID)
	return Drain(ctx, feed, c.posts, DrainOptions{
		Name:     name,
		Limit:    c.tracker.LimitFor(rec, c.cfg.Tasks.FetchPosts.HistoricalFirst),
		Cooldown: c.cfg.Sweep.Cooldown,
		MarkPrivate: func(ctx context.Context) error {
			return c.store.Users().MarkPrivate(ctx, rec.ID)
		},
		Logger: c.logger,
	})
}

// CollectHashtagPosts drains the configured hashtag feeds into the
// posts collection, cycling with a cool-down between passes.
func (c *Collector) CollectHashtagPosts(ctx context.Context) error {
	for {
		for _, tag := range c.cfg.Tasks.FetchHashtagPosts.Values {
			feed := instagram.NewHashtagFeed(c.session, tag)
			staged, err := Drain(ctx, feed, c.posts, DrainOptions{
				Name:     "hashtag " + tag,
				Cooldown: c.cfg.Sweep.Cooldown,
				Logger:   c.logger,
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil && err != ErrAccountPrivate {
				return err
			}

			logger.LogSweepCycle("fetch_hashtag_posts", 1, staged)
		}

		if werr := retry.Wait(ctx, c.cfg.Sweep.Cooldown); werr != nil {
			return werr
		}
	}
}

// CollectLocationPosts resolves each configured location query once,
// then drains its feed into the posts collection on every pass.
func (c *Collector) CollectLocationPosts(ctx context.Context) error {
	locations := make([]*instagram.Location, 0, len(c.cfg.Tasks.FetchLocationPosts.Values))
	for _, query := range c.cfg.Tasks.FetchLocationPosts.Values {
		loc, err := c.session.SearchLocation(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to resolve location %q: %w", query, err)
		}
		locations = append(locations, loc)
	}

	for {
		for _, loc := range locations {
			feed := instagram.NewLocationFeed(c.session, loc.ID)
			staged, err := Drain(ctx, feed, c.posts, DrainOptions{
				Name:     "location " + loc.Name,
				Cooldown: c.cfg.Sweep.Cooldown,
				Logger:   c.logger,
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil && err != ErrAccountPrivate {
				return err
			}

			logger.LogSweepCycle("fetch_location_posts", 1, staged)
		}

		if werr := retry.Wait(ctx, c.cfg.Sweep.Cooldown); werr != nil {
			return werr
		}
	}
}

// DownloadPostMedia backfills local media for posts stored without it.
func (c *Collector) DownloadPostMedia(ctx context.Context) error {
	return c.backfillMedia(ctx, "download_post_media", c.store.Posts(), c.postMedia, decodePost)
}

// DownloadProfilePictures backfills profile pictures for stored users.
func (c *Collector) DownloadProfilePictures(ctx context.Context) error {
	return c.backfillMedia(ctx, "download_profile_pictures", c.store.Users(), c.userMedia, func(rec *store.Record) instagram.Payload {
		if user := decodeUser(rec); user != nil {
			return user
		}
		return nil
	})
}

// backfillMedia runs one materialization pass over records missing
// media, then cools down and repeats. Saved names are recorded on the
// record so the next pass skips it.
func (c *Collector) backfillMedia(ctx context.Context, sweep string, coll *store.Collection, mat *media.Materializer, decode func(*store.Record) instagram.Payload) error {
	if mat == nil {
		return fmt.Errorf("media materialization is not wired for %s", sweep)
	}

	for {
		if err := c.backfillOnce(ctx, sweep, coll, mat, decode); err != nil {
			return err
		}

		if werr := retry.Wait(ctx, c.cfg.Sweep.Cooldown); werr != nil {
			return werr
		}
	}
}

func (c *Collector) backfillOnce(ctx context.Context, sweep string, coll *store.Collection, mat *media.Materializer, decode func(*store.Record) instagram.Payload) error {
	cursor, err := coll.Find(ctx, store.Filter{MissingSrc: true})
	if err != nil {
		return fmt.Errorf("failed to select records without media: %w", err)
	}
	defer cursor.Close()

	pool := media.NewPool(c.cfg.Media.Workers, mat, c.logger)
	pool.Start(ctx)

	var consumerWG sync.WaitGroup
	consumerWG.Add(1)
	entities := 0
	go func() {
		defer consumerWG.Done()
		for result := range pool.Results() {
			if err := coll.SetSrc(ctx, result.ID, result.Names); err != nil {
				c.logger.ErrorWhen("recording materialized media of "+result.ID, err)
			}
			entities++
		}
	}()

	for cursor.HasNext() {
		if ctx.Err() != nil {
			break
		}

		rec, err := cursor.Next()
		if err != nil {
			c.logger.ErrorWhen("retrieving a record from storage", err)
			continue
		}

		payload := decode(rec)
		if payload == nil {
			continue
		}

		if err := pool.Submit(media.Job{ID: rec.ID, Payload: payload}); err != nil {
			break
		}
	}

	pool.Stop()
	consumerWG.Wait()

	logger.LogSweepCycle(sweep, entities, entities)
	return ctx.Err()
}

func decodeUser(rec *store.Record) *instagram.UserPayload {
	var user instagram.UserPayload
	if err := json.Unmarshal(rec.Info, &user); err != nil {
		return nil
	}
	return &user
}

func decodePost(rec *store.Record) instagram.Payload {
	var post instagram.PostPayload
	if err := json.Unmarshal(rec.Info, &post); err != nil {
		return nil
	}
	return &post
}
