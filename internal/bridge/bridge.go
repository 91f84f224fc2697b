// Package bridge owns the compositor session: it keeps the state store in
// sync with backend events, fans deltas out to subscribers, and validates
// commands before they reach the compositor.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/backend"
	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/state"
	"github.com/wmbridge/wmbridge/internal/wm"
)

const (
	defaultSubscriberQueue  = 16
	defaultReconnectInitial = 250 * time.Millisecond
	defaultReconnectMax     = 10 * time.Second
	defaultResyncDelay      = 200 * time.Millisecond
)

// Options tune the bridge loop. Zero values select the defaults.
type Options struct {
	// SubscriberQueue is the per-subscriber delta buffer. Once it fills,
	// further deltas merge into a single pending net delta.
	SubscriberQueue int

	// ReconnectInitial is the delay before the first reconnect attempt; it
	// doubles after every failure up to ReconnectMax.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// ResyncDelay is how long to let the compositor settle after a monitor
	// change before reconciling against a fresh snapshot.
	ResyncDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.SubscriberQueue <= 0 {
		o.SubscriberQueue = defaultSubscriberQueue
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = defaultReconnectInitial
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = defaultReconnectMax
	}
	if o.ResyncDelay <= 0 {
		o.ResyncDelay = defaultResyncDelay
	}
	return o
}

// Bridge maintains the authoritative model for one compositor backend.
type Bridge struct {
	backend backend.Backend
	opts    Options
	log     *zerolog.Logger
	store   *state.Store
	dist    *distributor

	connected atomic.Bool
	resyncReq chan struct{}
}

// New wires a bridge around the given backend. Run must be started before
// the model holds anything.
func New(b backend.Backend, opts Options) *Bridge {
	return &Bridge{
		backend:   b,
		opts:      opts.withDefaults(),
		log:       logger.WithComponent("bridge"),
		store:     state.New(),
		dist:      newDistributor(opts.withDefaults().SubscriberQueue),
		resyncReq: make(chan struct{}, 1),
	}
}

// Run drives the connect, stream, reconnect loop until ctx is cancelled.
// The model is marked stale whenever no compositor session is live.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.dist.closeAll()

	// The model starts stale until the first sync.
	if delta, changed := b.store.SetStale(true); changed {
		b.dist.publish(delta)
	}

	backoff := b.opts.ReconnectInitial
	for {
		synced, err := b.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if synced {
			backoff = b.opts.ReconnectInitial
		}

		if delta, changed := b.store.SetStale(true); changed {
			b.dist.publish(delta)
		}
		if err != nil {
			b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("Session ended, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > b.opts.ReconnectMax {
			backoff = b.opts.ReconnectMax
		}
	}
}

// session runs one connected stretch: connect, initial sync, then the event
// loop until the stream drops or ctx is cancelled. synced reports whether
// the initial sync succeeded, which resets the reconnect backoff.
func (b *Bridge) session(ctx context.Context) (synced bool, err error) {
	if err := b.backend.Connect(ctx); err != nil {
		return false, fmt.Errorf("failed to connect to %s: %w", b.backend.Name(), err)
	}
	defer func() {
		b.connected.Store(false)
		if cerr := b.backend.Close(); cerr != nil {
			b.log.Debug().Err(cerr).Msg("Backend close failed")
		}
	}()

	if err := b.resync(ctx); err != nil {
		return false, err
	}
	b.connected.Store(true)
	b.log.Info().Str("backend", b.backend.Name()).Msg("Connected and synced")

	// A resync request left over from a previous session is already covered
	// by the initial sync above.
	select {
	case <-b.resyncReq:
	default:
	}

	events := b.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case <-b.resyncReq:
			if err := b.resync(ctx); err != nil {
				return true, err
			}
		case ev, ok := <-events:
			if !ok {
				if err := b.backend.Err(); err != nil {
					return true, fmt.Errorf("event stream failed: %w", err)
				}
				return true, errors.New("event stream closed")
			}
			b.handleEvent(ev)
		}
	}
}

func (b *Bridge) handleEvent(ev wm.Event) {
	delta, err := b.store.Apply(ev)
	if err != nil {
		var inv *wm.InvariantError
		if errors.As(err, &inv) {
			b.log.Warn().
				Str("event", inv.Event).
				Str("reason", inv.Reason).
				Msg("Model out of sync, scheduling resync")
			b.scheduleResync(0)
		} else {
			b.log.Error().Err(err).Str("event", ev.Kind()).Msg("Failed to apply event")
		}
		return
	}
	if !delta.Empty() {
		b.dist.publish(delta)
	}

	switch ev.(type) {
	case wm.MonitorAdded, wm.MonitorRemoved, wm.MonitorsReset:
		// Monitor changes cascade workspace and window moves that arrive as
		// separate events; let the compositor settle, then reconcile.
		b.scheduleResync(b.opts.ResyncDelay)
	}
}

// scheduleResync requests a full snapshot reconciliation. Requests collapse:
// at most one is pending at any time.
func (b *Bridge) scheduleResync(after time.Duration) {
	if after <= 0 {
		b.requestResync()
		return
	}
	time.AfterFunc(after, b.requestResync)
}

func (b *Bridge) requestResync() {
	select {
	case b.resyncReq <- struct{}{}:
	default:
	}
}

func (b *Bridge) resync(ctx context.Context) error {
	snap, err := b.backend.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", b.backend.Name(), err)
	}
	delta := b.store.Resync(snap)
	if !delta.Empty() {
		b.dist.publish(delta)
	}
	return nil
}

// Execute validates a command against the capability set and the current
// model, then dispatches it to the compositor. The model is never mutated
// here; the compositor's own events report whatever the command changed.
func (b *Bridge) Execute(ctx context.Context, cmd wm.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if !b.backend.Capabilities().Has(cmd.Op) {
		return fmt.Errorf("%s on %s: %w", cmd.Op, b.backend.Name(), wm.ErrNotSupported)
	}
	if !b.connected.Load() {
		return wm.ErrConnectionClosed
	}
	if !b.store.Contains(cmd.Window, cmd.Workspace, cmd.Monitor) {
		return fmt.Errorf("%s target: %w", cmd.Op, wm.ErrNotFound)
	}

	if err := b.backend.Dispatch(ctx, cmd); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", cmd.Op, err)
	}
	b.log.Debug().Str("command", cmd.String()).Msg("Dispatched")
	return nil
}

// Snapshot returns a deep copy of the current model.
func (b *Bridge) Snapshot() wm.Snapshot {
	return b.store.Snapshot()
}

// Subscribe registers a delta consumer and returns the model as of
// registration. Deltas are idempotent, so one already reflected in the
// returned snapshot reapplies harmlessly.
func (b *Bridge) Subscribe() (wm.Snapshot, *Subscription) {
	sub := b.dist.subscribe()
	return b.store.Snapshot(), sub
}

// Unsubscribe drops the subscription and closes its delta channel.
func (b *Bridge) Unsubscribe(sub *Subscription) {
	b.dist.unsubscribe(sub)
}

// BackendName names the compositor backend in use.
func (b *Bridge) BackendName() string {
	return b.backend.Name()
}

// Capabilities lists the operations the backend supports.
func (b *Bridge) Capabilities() wm.Capabilities {
	return b.backend.Capabilities()
}

// Connected reports whether a compositor session is live and synced.
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Subscribers reports how many delta consumers are registered.
func (b *Bridge) Subscribers() int {
	return b.dist.count()
}
