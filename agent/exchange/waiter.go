package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/findy-network/findy-triangle/agent/bus"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

// IsTerminal tells if the state ends the wait.
type IsTerminal func(s psm.SubState) bool

// Ready is the default IsTerminal: the connection is Completed, and the
// credential and the proof are Done.
func Ready(s psm.SubState) bool {
	return s.IsReady()
}

// Waiter keeps book of the outstanding waits. Only one wait per agent and
// handle is allowed at a time.
type Waiter struct {
	lk      sync.Mutex
	waiting map[psm.StateKey]struct{}
}

func NewWaiter() *Waiter {
	return &Waiter{waiting: make(map[psm.StateKey]struct{})}
}

// Wait is one registered wait. Result must be called, or Cancel if the
// result isn't needed any more.
type Wait struct {
	w      *Waiter
	key    psm.StateKey
	kind   psm.Kind
	label  string
	sub    *bus.Subscription
	timer  *time.Timer
	done   chan *psm.PSM
	seen   atomic.Bool
	once   sync.Once
	cancel context.CancelFunc
}

// Await waits until the exchange of the handle reaches the terminal state at
// the src agent. It's Start and Result in one call.
func (w *Waiter) Await(
	ctx context.Context,
	src Source,
	kind psm.Kind,
	handle string,
	isTerminal IsTerminal,
	timeout time.Duration,
) (
	*psm.PSM,
	error,
) {
	wt, err := w.Start(ctx, src, kind, handle, isTerminal, timeout)
	if err != nil {
		return nil, err
	}
	return wt.Result(ctx)
}

// Start registers the wait. The event listener is installed when Start
// returns, so the command which triggers the exchange can be sent after it.
// The current state of the exchange is queried in the background. Zero
// timeout means the default exchange timeout.
func (w *Waiter) Start(
	ctx context.Context,
	src Source,
	kind psm.Kind,
	handle string,
	isTerminal IsTerminal,
	timeout time.Duration,
) (
	wt *Wait,
	err error,
) {
	if timeout <= 0 {
		timeout = utils.Settings.ExchangeTimeout()
	}
	if isTerminal == nil {
		isTerminal = Ready
	}
	key := psm.StateKey{DID: src.DID(), Nonce: handle}

	w.lk.Lock()
	if _, ok := w.waiting[key]; ok {
		w.lk.Unlock()
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadyWaiting, kind, key)
	}
	w.waiting[key] = struct{}{}
	w.lk.Unlock()

	qCtx, cancel := context.WithCancel(ctx)
	wt = &Wait{
		w:      w,
		key:    key,
		kind:   kind,
		label:  src.Events().Name(),
		timer:  time.NewTimer(timeout),
		done:   make(chan *psm.PSM, 1),
		cancel: cancel,
	}
	wt.sub = src.Events().Subscribe(kind, func(ev bus.Event) {
		if ev.Handle != handle {
			return
		}
		wt.seen.Store(true)
		if isTerminal(ev.State) {
			wt.resolve(ev.Record)
		}
	})
	go wt.reconcile(qCtx, src, isTerminal)

	glog.V(3).Infof("%s: waiting %s %s (%v)", wt.label, kind, handle, timeout)
	return wt, nil
}

func (wt *Wait) reconcile(ctx context.Context, src Source, isTerminal IsTerminal) {
	p, err := src.Query(ctx, wt.kind, wt.key.Nonce)
	switch {
	case err == nil:
		wt.seen.Store(true)
		if isTerminal(p.Sub()) {
			glog.V(3).Infof("%s: %s %s already %s",
				wt.label, wt.kind, wt.key.Nonce, p.Sub())
			wt.resolve(p)
		}
	case errors.Is(err, storage.ErrDataNotFound):
		glog.V(4).Infof("%s: %s %s not yet found", wt.label, wt.kind, wt.key.Nonce)
	default:
		glog.Warningf("%s: query %s %s: %v", wt.label, wt.kind, wt.key.Nonce, err)
	}
}

// resolve never blocks. The first result wins, the rest are ignored.
func (wt *Wait) resolve(p *psm.PSM) {
	select {
	case wt.done <- p:
	default:
	}
}

// Result blocks until the exchange is in the terminal state, the timeout
// fires or the ctx is done. The listener is always released.
func (wt *Wait) Result(ctx context.Context) (p *psm.PSM, err error) {
	defer wt.Cancel()

	select {
	case p = <-wt.done:
		return p, nil
	case <-wt.timer.C:
		// terminal state may have arrived at the same time
		select {
		case p = <-wt.done:
			return p, nil
		default:
		}
		if !wt.seen.Load() {
			return nil, fmt.Errorf("%w: %s %s at %s",
				ErrNotFound, wt.kind, wt.key.Nonce, wt.label)
		}
		return nil, fmt.Errorf("%w: %s %s at %s",
			ErrTimeout, wt.kind, wt.key.Nonce, wt.label)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// Cancel releases the wait. It can be called many times.
func (wt *Wait) Cancel() {
	wt.once.Do(func() {
		wt.timer.Stop()
		wt.cancel()
		wt.sub.Unsubscribe()

		wt.w.lk.Lock()
		delete(wt.w.waiting, wt.key)
		wt.w.lk.Unlock()
	})
}
