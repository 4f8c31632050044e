package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	tlog "taxlyzer/internal/log"
)

// ErrAlreadyRunning is returned by Start on a running poller.
var ErrAlreadyRunning = errors.New("poller is already running")

// Poller calls a function on a fixed interval until stopped.
type Poller struct {
	name     string
	interval time.Duration
	fn       func(context.Context) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller returns a stopped poller. fn runs once immediately on Start and
// then every interval.
func NewPoller(name string, interval time.Duration, fn func(context.Context) error) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{name: name, interval: interval, fn: fn}
}

// Start begins the loop in its own goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Poller started", "poller", p.name, "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish or ctx to
// expire.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Poller stopped gracefully", "poller", p.name)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Poller stop timed out", "poller", p.name)
		return ctx.Err()
	}
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *Poller) run(ctx context.Context) {
	if err := p.fn(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Poll run failed", "poller", p.name, slog.Any(tlog.FieldError, err))
	}
}
