package counter

import (
	"context"
	"errors"
	"sync"
	"time"

	"comichub/internal/domain/ads"
	"comichub/internal/metrics"

	"go.uber.org/zap"
)

// FlushResult summarizes one pass over the buffered counters.
type FlushResult struct {
	Applied  int
	Restored int
	Dropped  int
}

// Flusher periodically drains Buffered into the store.
type Flusher struct {
	buf      *Buffered
	store    Incrementer
	interval time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewFlusher(buf *Buffered, store Incrementer, interval time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *Flusher {
	return &Flusher{
		buf:      buf,
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

func (f *Flusher) Start() {
	f.wg.Add(1)
	go f.run()
	f.logger.Infow("counter flusher started", "interval", f.interval.String())
}

// Stop ends the loop after one last flush so buffered events reach the store.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
	f.logger.Info("counter flusher stopped")
}

func (f *Flusher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flushWithTimeout()
		case <-f.stopCh:
			f.flushWithTimeout()
			return
		}
	}
}

func (f *Flusher) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := f.Flush(ctx)
	if err != nil {
		f.logger.Errorw("counter flush failed", "error", err)
		return
	}
	if res.Applied > 0 || res.Restored > 0 || res.Dropped > 0 {
		f.logger.Infow("counter flush completed", "applied", res.Applied, "restored", res.Restored, "dropped", res.Dropped)
	}
}

// Flush moves every buffered total into the store. A failed store write puts
// the total back in Redis for the next pass; totals for deleted ads are dropped.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult

	keys, err := f.buf.keys(ctx)
	if err != nil {
		return res, err
	}

	for _, key := range keys {
		kind, id, err := parseKey(key)
		if err != nil {
			f.logger.Warnw("skipping counter key", "key", key, "error", err)
			continue
		}

		delta, err := f.buf.take(ctx, key)
		if err != nil {
			f.logger.Errorw("failed to take buffered counter", "key", key, "error", err)
			continue
		}
		if delta == 0 {
			continue
		}

		err = apply(ctx, f.store, kind, id, delta)
		switch {
		case err == nil:
			res.Applied++
			f.metrics.CountersFlushed.WithLabelValues(string(kind)).Add(float64(delta))
		case errors.Is(err, ads.ErrNotFound):
			res.Dropped++
			f.metrics.CountersDropped.WithLabelValues(string(kind)).Add(float64(delta))
			f.logger.Infow("dropping counter for deleted ad", "ad_id", id, "kind", kind, "delta", delta)
		default:
			res.Restored++
			f.metrics.FlushFailures.Inc()
			f.logger.Errorw("failed to flush counter", "ad_id", id, "kind", kind, "error", err)
			if rerr := f.buf.restore(ctx, key, delta); rerr != nil {
				f.metrics.CountersDropped.WithLabelValues(string(kind)).Add(float64(delta))
				f.logger.Errorw("failed to restore counter", "ad_id", id, "kind", kind, "lost", delta, "error", rerr)
			}
		}
	}
	return res, nil
}
