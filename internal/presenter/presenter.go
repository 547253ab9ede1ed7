// Package presenter turns user actions into weather lookups and delivers the
// results to a View.
//
// Every exported method must be called on the UI execution context (the
// Executor the presenter was built with). Lookups run on their own
// goroutines; results are handed back to the UI context, where they are
// dropped if the view was detached in the meantime.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// ErrMissingDependency is returned by New when a collaborator is nil.
var ErrMissingDependency = errors.New("presenter: missing dependency")

// Presenter mediates between the weather repository, the location provider
// and a View.
type Presenter struct {
	repo      Repository
	locations LocationProvider
	ui        Executor
	now       func() time.Time

	// Owned by the UI context.
	view          View
	lastViewState *ViewState

	mu     sync.Mutex
	scope  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Presenter.
type Option func(*Presenter)

// WithClock overrides the clock used to stamp new searches.
func WithClock(now func() time.Time) Option {
	return func(p *Presenter) { p.now = now }
}

// New creates a Presenter. All three collaborators are required.
func New(repo Repository, locations LocationProvider, ui Executor, opts ...Option) (*Presenter, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("%w: weather repository", ErrMissingDependency)
	case locations == nil:
		return nil, fmt.Errorf("%w: location provider", ErrMissingDependency)
	case ui == nil:
		return nil, fmt.Errorf("%w: ui executor", ErrMissingDependency)
	}

	p := &Presenter{
		repo:      repo,
		locations: locations,
		ui:        ui,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.scope, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

// OnViewAttached binds v. When load is true the last delivered state, if any,
// is replayed without animation and the last search is repeated.
func (p *Presenter) OnViewAttached(v View, load bool) {
	p.view = v
	if !load {
		return
	}
	if p.lastViewState != nil {
		p.render(*p.lastViewState, false)
	}
	p.RepeatLastSearch()
}

// OnViewDetached unbinds the view and cancels every lookup in flight.
func (p *Presenter) OnViewDetached() {
	p.view = nil
	p.resetScope()
}

// Close cancels outstanding lookups and waits for their goroutines to exit.
func (p *Presenter) Close() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}

// Wait blocks until every background stage started so far has finished and
// handed its result to the UI context.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

// LastViewState returns the most recently delivered state, or nil.
func (p *Presenter) LastViewState() *ViewState {
	return p.lastViewState
}

// SearchByCoordinates looks up weather at the device's last known location.
// With no location known the view gets an empty weather state.
func (p *Presenter) SearchByCoordinates() {
	p.load(func(ctx context.Context) (*weather.Search, error) {
		c, err := p.locations.LastLocation(ctx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			log.Printf("DEBUG: presenter: no last known location")
			return nil, nil
		}
		s := weather.NewCoordinateSearch(*c, p.now())
		return &s, nil
	})
}

// SearchByText looks up weather for a free-text place or a zip code. Empty
// or whitespace-only text is ignored.
func (p *Presenter) SearchByText(text string) {
	s, ok := weather.NewTextSearch(text, p.now())
	if !ok {
		return
	}
	p.load(func(context.Context) (*weather.Search, error) {
		return &s, nil
	})
}

// RepeatLastSearch looks up weather for the most recent history entry.
func (p *Presenter) RepeatLastSearch() {
	p.load(func(ctx context.Context) (*weather.Search, error) {
		searches, err := p.repo.RecentSearches(ctx)
		if err != nil {
			return nil, err
		}
		if len(searches) == 0 {
			return nil, nil
		}
		s := searches[0]
		return &s, nil
	})
}

// DeleteRecentSearch removes s from history and repopulates the recent
// search list. Weather on screen is left alone.
func (p *Presenter) DeleteRecentSearch(s weather.Search) {
	if s.Timestamp.IsZero() {
		return
	}
	async(p, func(ctx context.Context) ([]weather.Search, error) {
		if err := p.repo.DeleteRecentSearch(ctx, s.Timestamp); err != nil {
			return nil, err
		}
		return p.repo.RecentSearches(ctx)
	}, func(searches []weather.Search, err error) {
		if err != nil {
			p.showError(err)
			return
		}
		p.populateSearches(searches)
		if p.lastViewState != nil {
			p.lastViewState.Searches = searches
		}
	})
}

// searchSource is the first stage of a lookup: it produces the search to run,
// or nil when there is nothing to look up.
type searchSource func(ctx context.Context) (*weather.Search, error)

func (p *Presenter) load(source searchSource) {
	if p.view != nil {
		p.view.SetLoadingIndicator(true)
	}
	async(p, func(ctx context.Context) (ViewState, error) {
		search, err := source(ctx)
		if err != nil {
			return ViewState{}, err
		}
		w, err := p.loadWeather(ctx, search, true)
		if err != nil {
			return ViewState{}, err
		}
		return p.mergeSearches(ctx, w)
	}, func(state ViewState, err error) {
		if err != nil {
			p.showError(err)
			return
		}
		p.render(state, true)
		p.lastViewState = &state
		p.completed()
	})
}

// loadWeather is the weather stage. A nil search short-circuits to nil
// weather without touching the repository.
func (p *Presenter) loadWeather(ctx context.Context, s *weather.Search, forceUpdate bool) (*weather.Weather, error) {
	if s == nil {
		return nil, nil
	}
	log.Printf("DEBUG: presenter: weather search %s", s.Key())
	if forceUpdate {
		// forces the repository to skip the cache
		p.repo.RefreshWeather()
	}
	return p.repo.GetWeather(ctx, *s)
}

// mergeSearches is the history stage: it pairs w with the current history.
func (p *Presenter) mergeSearches(ctx context.Context, w *weather.Weather) (ViewState, error) {
	searches, err := p.repo.RecentSearches(ctx)
	if err != nil {
		return ViewState{}, err
	}
	return ViewState{Weather: w, Searches: searches}, nil
}

// async runs work off the UI context within the presenter's current scope
// and hands the outcome to deliver on the UI context. Nothing is delivered
// once the scope is cancelled. A panic in work is delivered as an error.
func async[T any](p *Presenter, work func(ctx context.Context) (T, error), deliver func(T, error)) {
	ctx := p.currentScope()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		result, err := recovered(ctx, work)
		if ctx.Err() != nil {
			return
		}
		p.ui.Post(func() {
			if ctx.Err() != nil {
				return
			}
			deliver(result, err)
		})
	}()
}

func recovered[T any](ctx context.Context, work func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: presenter: lookup panicked: %v", r)
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return work(ctx)
}

func (p *Presenter) currentScope() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scope
}

func (p *Presenter) resetScope() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.scope, p.cancel = context.WithCancel(context.Background())
}

func (p *Presenter) render(state ViewState, animate bool) {
	p.populateSearches(state.Searches)
	if state.Weather == nil {
		p.showEmptyWeather()
	} else {
		p.showWeather(state.Weather, animate)
	}
}

func (p *Presenter) populateSearches(searches []weather.Search) {
	if p.view != nil {
		p.view.PopulateRecentSearches(searches)
	}
}

func (p *Presenter) showEmptyWeather() {
	if p.view != nil {
		p.view.ShowEmptyWeather()
		p.view.SetLoadingIndicator(false)
	}
}

func (p *Presenter) showWeather(w *weather.Weather, animate bool) {
	if p.view != nil {
		p.view.ShowWeather(w, animate)
		p.view.SetLoadingIndicator(false)
	}
}

func (p *Presenter) showError(err error) {
	log.Printf("ERROR: presenter: %v", err)
	if p.view != nil {
		p.view.ShowError(err.Error())
		p.view.SetLoadingIndicator(false)
	}
}

func (p *Presenter) completed() {
	if p.view != nil {
		p.view.SetLoadingIndicator(false)
	}
}
