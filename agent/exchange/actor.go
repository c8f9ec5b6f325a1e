package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-triangle/agent/bus"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
)

var errNoCredentials = errors.New("no credentials for the proof request")

// AutoActor answers on behalf of the responder. It acts only on the handles
// it owns and at most once per handle. Failed actions aren't retried, they
// are recorded for the coordinator. The actions aren't started any more
// when the actor's ctx is done, and the running ones get the ctx.
type AutoActor struct {
	ctx     context.Context
	name    string
	actions Actions

	lk       sync.Mutex
	owned    map[string]struct{}
	acted    map[string]struct{}
	failures map[string]error

	wg sync.WaitGroup
}

func NewAutoActor(ctx context.Context, name string, actions Actions) *AutoActor {
	return &AutoActor{
		ctx:      ctx,
		name:     name,
		actions:  actions,
		owned:    make(map[string]struct{}),
		acted:    make(map[string]struct{}),
		failures: make(map[string]error),
	}
}

// Own tells the actor to act on the handle's exchange.
func (a *AutoActor) Own(handle string) {
	a.lk.Lock()
	defer a.lk.Unlock()
	a.owned[handle] = struct{}{}
}

// Release forgets the handle.
func (a *AutoActor) Release(handle string) {
	a.lk.Lock()
	defer a.lk.Unlock()
	delete(a.owned, handle)
	delete(a.acted, handle)
	delete(a.failures, handle)
}

// Register subscribes the actor to the kind's events of the bus.
func (a *AutoActor) Register(b *bus.Bus, kind psm.Kind) *bus.Subscription {
	return b.Subscribe(kind, a.OnStateChange)
}

// OnStateChange is the bus.Handler of the actor. The actions are run in their
// own goroutines that the publisher isn't blocked.
func (a *AutoActor) OnStateChange(ev bus.Event) {
	switch ev.Kind {
	case psm.KindConnection:
		glog.V(3).Infof("%s: connection %s is %s", a.name, ev.Handle, ev.State)

	case psm.KindIssueCredential:
		switch ev.State {
		case psm.OfferReceived:
			a.act(ev, a.actions.AcceptOffer)
		case psm.Accepted, psm.Done:
			glog.V(4).Infof("%s: credential %s is %s", a.name, ev.Handle, ev.State)
		default:
			glog.V(4).Infof("%s: no action for credential %s in %s",
				a.name, ev.Handle, ev.State)
		}

	case psm.KindPresentProof:
		switch ev.State {
		case psm.RequestReceived:
			a.act(ev, a.presentProof)
		case psm.Accepted, psm.Done:
			glog.V(4).Infof("%s: proof %s is %s", a.name, ev.Handle, ev.State)
		default:
			glog.V(4).Infof("%s: no action for proof %s in %s",
				a.name, ev.Handle, ev.State)
		}

	default:
		glog.Warningf("%s: unknown exchange kind %s", a.name, ev.Kind)
	}
}

func (a *AutoActor) presentProof(ctx context.Context, handle string) error {
	sel, err := a.actions.SelectCredentials(ctx, handle)
	if err != nil {
		return err
	}
	if sel.IsEmpty() {
		return errNoCredentials
	}
	return a.actions.AcceptRequest(ctx, handle, sel)
}

func (a *AutoActor) act(ev bus.Event, action func(ctx context.Context, handle string) error) {
	a.lk.Lock()
	if _, ok := a.owned[ev.Handle]; !ok {
		a.lk.Unlock()
		return
	}
	if err := a.ctx.Err(); err != nil {
		a.lk.Unlock()
		glog.V(3).Infof("%s: %s %s abandoned: %v", a.name, ev.Kind, ev.Handle, err)
		return
	}
	if _, ok := a.acted[ev.Handle]; ok {
		a.lk.Unlock()
		glog.V(3).Infof("%s: %s %s already acted", a.name, ev.Kind, ev.Handle)
		return
	}
	a.acted[ev.Handle] = struct{}{}
	a.wg.Add(1)
	a.lk.Unlock()

	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(a.ctx, utils.Settings.ExchangeTimeout())
		defer cancel()

		glog.V(2).Infof("%s: acting on %s %s in %s",
			a.name, ev.Kind, ev.Handle, ev.State)
		err := action(ctx, ev.Handle)
		autoActions.WithLabelValues(ev.Kind.String(), result(err)).Inc()
		if err != nil {
			glog.Errorf("%s: action on %s %s failed: %v",
				a.name, ev.Kind, ev.Handle, err)
			a.lk.Lock()
			a.failures[ev.Handle] = fmt.Errorf("%w: %s %s: %w",
				ErrActionFailed, ev.Kind, ev.Handle, err)
			a.lk.Unlock()
		}
	}()
}

// Failure returns the error of the handle's failed action or nil.
func (a *AutoActor) Failure(handle string) error {
	a.lk.Lock()
	defer a.lk.Unlock()
	return a.failures[handle]
}

// Wait waits the started actions.
func (a *AutoActor) Wait() {
	a.wg.Wait()
}
