package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Warmer refreshes cached weather for searches.
type Warmer interface {
	RecentSearches(ctx context.Context) ([]weather.Search, error)
	Warm(ctx context.Context, s weather.Search) error
}

// Scheduler periodically re-fetches weather for the most recent searches so
// repeat lookups are served from a fresh cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	interval  time.Duration
	limit     int
}

// New creates a new Scheduler warming at most limit searches per run.
func New(warmer Warmer, interval time.Duration, limit int) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		warmer:    warmer,
		interval:  interval,
		limit:     limit,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.limit <= 0 || s.interval <= 0 {
		log.Println("scheduler: cache warming disabled; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce warms the most recent searches concurrently and reports how many
// were refreshed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	log.Println("scheduler: running cache warm job")

	searches, err := s.warmer.RecentSearches(ctx)
	if err != nil {
		log.Printf("scheduler: list recent searches: %v", err)
		return 0
	}
	if s.limit > 0 && len(searches) > s.limit {
		searches = searches[:s.limit]
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		warmed int
	)
	for _, search := range searches {
		search := search
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.warmer.Warm(ctx, search); err != nil {
				if errors.Is(err, weather.ErrNotFound) {
					log.Printf("scheduler: %s no longer matches any provider", search.Key())
				} else {
					log.Printf("scheduler: warm failed for %s: %v", search.Key(), err)
				}
				return
			}
			mu.Lock()
			warmed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Printf("scheduler: completed cache warm job (%d/%d refreshed)", warmed, len(searches))
	return warmed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
