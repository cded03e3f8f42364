package savedcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/store"
)

// Refresher runs the cache reconciliation on a repeating schedule so saved
// locations stay warm even when no request touches the batch endpoint.
type Refresher struct {
	cache      *Cache
	store      store.Store
	logger     *zap.Logger
	interval   time.Duration
	jobTimeout time.Duration
	scheduler  *gocron.Scheduler
}

// NewRefresher creates a refresher that reconciles every interval.
func NewRefresher(cache *Cache, s store.Store, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		cache:      cache,
		store:      s,
		logger:     logger,
		interval:   interval,
		jobTimeout: 30 * time.Second,
		scheduler:  gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the refresh job and begins running it asynchronously.
// The job stops when Stop is called or ctx is canceled.
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.scheduler.Every(r.interval).Do(func() {
		jobCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
		r.refresh(jobCtx)
	})
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		r.scheduler.Stop()
	}()
	return nil
}

// Stop cancels future refresh runs. A run already in flight finishes.
func (r *Refresher) Stop() {
	r.scheduler.Stop()
}

func (r *Refresher) refresh(ctx context.Context) {
	locations, err := r.savedLocations(ctx)
	if err != nil {
		r.logger.Warn("scheduled refresh skipped: cannot read saved locations", zap.Error(err))
		return
	}
	if len(locations) == 0 {
		return
	}

	r.logger.Debug("running scheduled saved weather refresh",
		zap.Int("locations", len(locations)))
	r.cache.Reconcile(ctx, locations)
}

func (r *Refresher) savedLocations(ctx context.Context) ([]models.Location, error) {
	value, ok, err := r.store.Get(ctx, store.KeySavedLocations)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var locations []models.Location
	if err := json.Unmarshal([]byte(value), &locations); err != nil {
		return nil, err
	}
	return locations, nil
}
