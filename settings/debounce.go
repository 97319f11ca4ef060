package settings

import (
	"context"
	"sync"
	"time"

	"github.com/wizzomafizzo/yapper/logging"
)

// Debouncer coalesces bursts of saves into a single disk write. Saved
// values are cached in memory immediately, so loads observe the newest
// state before the flush lands. It wraps a Manager; hosts that want every
// save on disk synchronously use the Manager directly.
type Debouncer struct {
	manager *Manager
	delay   time.Duration

	mu      sync.Mutex
	cache   *Snapshot // newest saved or loaded value
	dirty   *Snapshot // pending value not yet flushed
	lastErr error
	closed  bool

	flushMu sync.Mutex // held for the duration of each flush

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewDebouncer wraps manager with a trailing-edge debounce: a flush runs
// once saves have been quiet for delay. The context carries the logger
// used by background flushes.
func NewDebouncer(ctx context.Context, manager *Manager, delay time.Duration) *Debouncer {
	d := &Debouncer{
		manager: manager,
		delay:   delay,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.worker(ctx)
	return d
}

// Save records s for readers immediately and schedules a flush. A pending
// flush that has not started writing yet is replaced; one that has started
// always runs to completion.
func (d *Debouncer) Save(_ context.Context, s Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	snap := s
	d.cache = &snap
	d.dirty = &snap

	select {
	case d.kick <- struct{}{}:
	default:
	}
	return nil
}

// Load returns the cached snapshot when one exists, otherwise it delegates
// to the manager and caches the result.
func (d *Debouncer) Load(ctx context.Context) Snapshot {
	d.mu.Lock()
	if d.cache != nil {
		s := *d.cache
		d.mu.Unlock()
		return s
	}
	d.mu.Unlock()

	s := d.manager.Load(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		snap := s
		d.cache = &snap
	}
	return *d.cache
}

// Flush writes any pending snapshot now. It returns the first error from
// this or an earlier background flush, then clears it.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.flush(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.lastErr
	d.lastErr = nil
	return err
}

// Close flushes pending work and stops the background worker. Further
// saves fail with ErrClosed. Closing more than once is safe.
func (d *Debouncer) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	return d.Flush(ctx)
}

// worker waits for a burst of saves to go quiet, then flushes it.
func (d *Debouncer) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case <-d.kick:
		}

		timer := time.NewTimer(d.delay)
	wait:
		for {
			select {
			case <-d.kick:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(d.delay)
			case <-timer.C:
				break wait
			case <-d.done:
				if !timer.Stop() {
					<-timer.C
				}
				d.flush(ctx)
				return
			}
		}
		d.flush(ctx)
	}
}

// flush persists the pending snapshot, if any.
func (d *Debouncer) flush(ctx context.Context) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	snap := d.dirty
	d.dirty = nil
	d.mu.Unlock()

	if snap == nil {
		return
	}

	if err := d.manager.Save(ctx, *snap); err != nil {
		logging.Get(ctx).Error().Err(err).Msg("debounced settings flush failed")
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
	}
}
