package counter

import (
	"context"
	"errors"
	"time"

	"comichub/internal/domain/ads"
	"comichub/internal/filter"
	"comichub/internal/metrics"

	"go.uber.org/zap"
)

// Lookup resolves an ad by id. ads.Store satisfies it.
type Lookup interface {
	GetByID(ctx context.Context, id int64) (*ads.Ad, error)
}

// Recorder validates ad ids and hands events to the accumulator.
// Counting is best effort: accumulator failures are logged, never returned.
type Recorder struct {
	acc     Accumulator
	lookup  Lookup
	known   *filter.KnownAds
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func NewRecorder(acc Accumulator, lookup Lookup, known *filter.KnownAds, m *metrics.Metrics, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{acc: acc, lookup: lookup, known: known, metrics: m, logger: logger}
}

// resolve looks the ad up in the store. A filter miss is not trusted: the ad
// may have been created by another instance, so it is added once found.
func (r *Recorder) resolve(ctx context.Context, id int64) (*ads.Ad, error) {
	missed := r.known != nil && !r.known.MightExist(id)
	ad, err := r.lookup.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if missed {
		r.known.Add(id)
	}
	return ad, nil
}

func (r *Recorder) record(ctx context.Context, kind Kind, id int64) {
	if err := r.acc.Record(ctx, kind, id); err != nil {
		r.metrics.CountersDropped.WithLabelValues(string(kind)).Inc()
		r.logger.Warnw("failed to record ad counter", "ad_id", id, "kind", kind, "error", err)
		return
	}
	r.metrics.CountersRecorded.WithLabelValues(string(kind)).Inc()
}

// View records a display of ad id. Only ads.ErrNotFound is returned; a store
// outage while resolving the id is logged and the view is dropped.
func (r *Recorder) View(ctx context.Context, id int64) error {
	if _, err := r.resolve(ctx, id); err != nil {
		if errors.Is(err, ads.ErrNotFound) {
			return err
		}
		r.metrics.CountersDropped.WithLabelValues(string(KindView)).Inc()
		r.logger.Warnw("dropping view, ad lookup failed", "ad_id", id, "error", err)
		return nil
	}
	r.record(ctx, KindView, id)
	return nil
}

// Click records a click on ad id and returns the ad so the caller can
// navigate to its destination. Lookup errors are returned unchanged.
func (r *Recorder) Click(ctx context.Context, id int64) (*ads.Ad, error) {
	ad, err := r.resolve(ctx, id)
	if err != nil {
		if !errors.Is(err, ads.ErrNotFound) {
			r.metrics.CountersDropped.WithLabelValues(string(KindClick)).Inc()
		}
		return nil, err
	}
	r.record(ctx, KindClick, id)
	return ad, nil
}

// Known registers a newly created ad id with the existence filter.
func (r *Recorder) Known(id int64) {
	if r.known != nil {
		r.known.Add(id)
	}
}

// KeepSeeded reloads the existence filter every interval until ctx is done,
// dropping ids of deleted ads. Failed reloads keep the current filter.
func (r *Recorder) KeepSeeded(ctx context.Context, interval time.Duration, ids func(context.Context) ([]int64, error)) {
	if r.known == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := r.Seed(seedCtx, ids); err != nil {
				r.logger.Warnw("failed to reseed ad id filter", "error", err)
			}
			cancel()
		}
	}
}

// Seed loads every existing id into the existence filter.
func (r *Recorder) Seed(ctx context.Context, ids func(context.Context) ([]int64, error)) error {
	if r.known == nil {
		return nil
	}
	list, err := ids(ctx)
	if err != nil {
		return err
	}
	r.known.Reset(list)
	r.logger.Infow("ad id filter seeded", "count", len(list))
	return nil
}
