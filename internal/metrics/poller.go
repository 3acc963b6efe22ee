package metrics

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"together/internal/api"
)

// DefaultMaxInsights is how many insights a poll shows.
const DefaultMaxInsights = 2

// Fetcher loads one metrics report.
type Fetcher interface {
	Fetch(ctx context.Context, partnerID string, w TimeWindow) (*Report, error)
}

// APIFetcher reads ai/relationship-metrics/{partner} from the backend.
type APIFetcher struct {
	Client *api.Client
}

func (f APIFetcher) Fetch(ctx context.Context, partnerID string, w TimeWindow) (*Report, error) {
	var r Report
	path := "ai/relationship-metrics/" + url.PathEscape(partnerID)
	if err := f.Client.Get(ctx, path, w.Query(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type PollerConfig struct {
	PartnerID   string
	Window      TimeWindow
	Interval    time.Duration
	Retry       RetryPolicy
	MaxInsights int
	Location    *time.Location
}

// Poller fetches metrics on an interval while switched on. Once the retry
// policy is exhausted it switches itself off; Start turns it back on.
type Poller struct {
	fetcher Fetcher
	display Display
	logger  *slog.Logger
	cfg     PollerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(fetcher Fetcher, display Display, logger *slog.Logger, cfg PollerConfig) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Window.IsZero() {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxInsights <= 0 {
		cfg.MaxInsights = DefaultMaxInsights
	}
	return &Poller{
		fetcher: fetcher,
		display: display,
		logger:  logger,
		cfg:     cfg,
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start fetches immediately and then every interval. It returns false if
// the poller was already running.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.display.SetStatus(StatusUpdatesActive)
	p.logger.Info("started metrics updates", "interval", p.cfg.Interval, "window", p.cfg.Window.String())
	go p.loop(loopCtx, done)
	return true
}

// Stop switches the poller off and waits for an in-flight fetch to end.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Toggle flips the poller and reports whether it is now running.
func (p *Poller) Toggle(ctx context.Context) bool {
	if p.Running() {
		p.Stop()
		return false
	}
	return p.Start(ctx)
}

// Done is closed when the current run ends, or is nil if never started.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel()
		p.cancel = nil
		p.mu.Unlock()

		p.display.SetStatus(StatusUpdatesDisabled)
		p.logger.Info("stopped metrics updates")
		close(done)
	}()

	failures := 0
	for {
		wait := p.cfg.Interval
		if err := p.fetch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			p.display.SetStatus(FetchFailed(err))
			if p.cfg.Retry.Exhausted(failures) {
				p.logger.Warn("stopping metrics updates after error", "failures", failures, "error", err)
				return
			}
			wait = p.cfg.Retry.Delay(failures)
			p.logger.Warn("metrics fetch failed", "failures", failures, "retry_in", wait, "error", err)
		} else {
			failures = 0
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context) error {
	p.display.SetStatus(StatusUpdating)
	report, err := p.fetcher.Fetch(ctx, p.cfg.PartnerID, p.cfg.Window)
	if err != nil {
		return err
	}
	p.display.Render(report.Snapshot(p.cfg.MaxInsights))
	p.display.SetStatus(UpdatedAt(time.Now(), p.cfg.Location))
	return nil
}
