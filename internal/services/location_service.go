package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
)

// WatchOptions configures the device location watch.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// LocationWatcher is the external location capability: a watch-style API
// yielding periodic position samples. The returned release function stops the
// watch; the channel closes afterwards.
type LocationWatcher interface {
	Watch(ctx context.Context, opts WatchOptions) (<-chan models.LocationSample, func(), error)
}

// PushLocationSource is a LocationWatcher fed by explicit Push calls, used to
// bridge transport-delivered provider positions into a session.
type PushLocationSource struct {
	mu     sync.Mutex
	ch     chan models.LocationSample
	closed bool
}

func NewPushLocationSource() *PushLocationSource {
	return &PushLocationSource{
		ch: make(chan models.LocationSample, 16),
	}
}

func (s *PushLocationSource) Watch(ctx context.Context, opts WatchOptions) (<-chan models.LocationSample, func(), error) {
	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
	return s.ch, release, nil
}

// Push delivers one sample. Samples pushed faster than the consumer drains are
// dropped; the next fix supersedes them anyway.
func (s *PushLocationSource) Push(sample models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("location source closed")
	}

	select {
	case s.ch <- sample:
		return nil
	default:
		return nil
	}
}

// LocationProvider samples the local device position for the provider role:
// it filters stale fixes, derives heading, throttles the output stream and
// runs the heading smoother. The client role never constructs one.
type LocationProvider struct {
	watcher LocationWatcher
	config  *config.NavigationConfig
	logger  *logger.Logger

	mu             sync.Mutex
	previous       *models.LocationSample
	current        *models.LocationSample
	currentHeading float64
	targetHeading  float64
	headingKnown   bool
	lastEmit       time.Time

	out     chan models.LocationSample
	release func()

	now func() time.Time
}

func NewLocationProvider(watcher LocationWatcher, cfg *config.NavigationConfig, log *logger.Logger) *LocationProvider {
	return &LocationProvider{
		watcher: watcher,
		config:  cfg,
		logger:  log,
		out:     make(chan models.LocationSample, 16),
		now:     time.Now,
	}
}

// Start begins watching. A watch failure is a blocking error state for the
// provider role.
func (p *LocationProvider) Start(ctx context.Context) error {
	samples, release, err := p.watcher.Watch(ctx, WatchOptions{
		HighAccuracy: true,
		Timeout:      p.config.LocationMaxAge,
		MaxAge:       p.config.LocationMaxAge,
	})
	if err != nil {
		return fmt.Errorf("location watch unavailable: %w", err)
	}
	p.release = release

	go func() {
		defer close(p.out)
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-samples:
				if !ok {
					return
				}
				p.ingest(sample)
			}
		}
	}()

	return nil
}

// Samples is the throttled output stream: at most one sample per configured
// location interval reaches consumers.
func (p *LocationProvider) Samples() <-chan models.LocationSample {
	return p.out
}

func (p *LocationProvider) ingest(sample models.LocationSample) {
	now := p.now()

	if !sample.Timestamp.IsZero() && now.Sub(sample.Timestamp) > p.config.LocationMaxAge {
		return
	}

	p.mu.Lock()

	p.previous = p.current
	s := sample
	p.current = &s

	// Prefer the device sensor heading. Without it, derive a bearing from the
	// two latest samples, but only when they are separated by more than the
	// noise floor so a stationary device does not spin.
	if sample.HasHeading() {
		p.targetHeading = utils.NormalizeHeading(*sample.Heading)
		p.headingKnown = true
	} else if p.previous != nil {
		prev := utils.Point{Lat: p.previous.Latitude, Lng: p.previous.Longitude}
		curr := utils.Point{Lat: sample.Latitude, Lng: sample.Longitude}
		if utils.DistanceMeters(prev, curr) > p.config.HeadingNoiseFloorMeters {
			p.targetHeading = utils.Bearing(prev, curr)
			p.headingKnown = true
		}
	}

	throttled := !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.config.LocationInterval
	if !throttled {
		p.lastEmit = now
	}
	p.mu.Unlock()

	if throttled {
		return
	}

	select {
	case p.out <- sample:
	default:
		// Consumer is behind; the next fix supersedes this one.
	}
}

// SmoothTick advances the displayed heading one animation step toward the
// target along the shorter arc and returns the new value. Called once per
// animation tick by the session loop.
func (p *LocationProvider) SmoothTick() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.headingKnown {
		return p.currentHeading
	}

	p.currentHeading = utils.InterpolateHeading(p.currentHeading, p.targetHeading, p.config.HeadingFactor)
	return p.currentHeading
}

// Heading returns the current smoothed heading in [0, 360).
func (p *LocationProvider) Heading() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentHeading
}

// Current returns the latest accepted sample, or nil before the first fix.
func (p *LocationProvider) Current() *models.LocationSample {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	sample := *p.current
	return &sample
}

// Stop releases the location watch.
func (p *LocationProvider) Stop() {
	if p.release != nil {
		p.release()
	}
}
