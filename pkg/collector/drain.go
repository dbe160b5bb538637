package collector

import (
	"context"
	"errors"
	"time"

	"instacollector/pkg/classify"
	"instacollector/pkg/instagram"
	"instacollector/pkg/logger"
	"instacollector/pkg/retry"
)

// ErrAccountPrivate terminates a drain whose feed turned private
// mid-iteration. The caller moves on to the next entity.
var ErrAccountPrivate = errors.New("account turned private")

// DrainOptions controls one drain run.
type DrainOptions struct {
	// Name identifies the feed in log occasions
	Name string
	// Limit caps the number of staged items; 0 means unlimited
	Limit int
	// Cooldown is how long a rate-limited fetch sleeps before retrying
	Cooldown time.Duration
	// MarkPrivate flags the feed's entity when it turns private.
	// Best effort; a failed flag never masks the privacy signal.
	MarkPrivate func(ctx context.Context) error
	Logger      logger.Logger
}

// Drain pulls a feed to exhaustion (or to the limit), staging every
// item into the buffer and flushing after each page. Rate limiting
// suspends and re-fetches the same page, so no item is skipped or
// double-staged. Transient transport and duplicate failures pass
// silently; anything else is logged and iteration continues. Returns
// the number of items staged.
func Drain(ctx context.Context, feed instagram.Feed, buf *Buffer, opts DrainOptions) (int, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		items, err := feed.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return total, err
			}

			switch kind := classify.Classify(err); kind {
			case classify.KindRateLimited:
				// The cursor has not advanced; after the cool-down the
				// same page is fetched again.
				logger.LogRateLimit(opts.Name, int(opts.Cooldown.Seconds()))
				if werr := retry.Wait(ctx, opts.Cooldown); werr != nil {
					return total, werr
				}
				continue

			case classify.KindAccountPrivate:
				if opts.MarkPrivate != nil {
					if merr := opts.MarkPrivate(ctx); merr != nil {
						log.ErrorWhen("flagging a private account in storage", merr)
					}
				}
				buf.Flush(ctx)
				return total, ErrAccountPrivate

			default:
				if !classify.Ignorable(kind) {
					log.ErrorWhen("iterating feed data of "+opts.Name, err)
				}
				continue
			}
		}

		for _, item := range items {
			if err := buf.Stage(ctx, item); err != nil {
				log.ErrorWhen("staging feed item of "+opts.Name, err)
				continue
			}
			total++
			if opts.Limit > 0 && total >= opts.Limit {
				buf.Flush(ctx)
				return total, nil
			}
		}

		// Every fetched page becomes durable before the next fetch.
		buf.Flush(ctx)

		if !feed.MoreAvailable() {
			return total, nil
		}
	}
}
