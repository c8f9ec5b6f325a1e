/*
Package ssi is the demo SSI agent of the trust triangle. It runs simplified
Aries protocols for the connection (DIDExchange), credential issuing and proof
presentation. Every agent has its own did:key, an event bus for the state
changes of its exchanges, and its protocol state machines in the psm database.

The agent offers three kinds of functions:
  - commands start the exchange, e.g. OfferCredential
  - actions continue the exchange at the other end, e.g. AcceptOffer
  - queries tell the state of the exchange, e.g. Query
*/
package ssi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-triangle/agent/bus"
	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/trans"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/samber/lo"
)

var (
	ErrState        = errors.New("exchange is not in the right state")
	ErrNoConnection = errors.New("connection not found")
	ErrNotReady     = errors.New("connection isn't ready")
	ErrDuplicate    = errors.New("exchange handle already used")
	ErrInvalid      = errors.New("invalid parameters")
)

type Config struct {
	Label string

	// Endpoint is our inbound transport address given to other agents.
	Endpoint string

	// Seed is optional 32 byte ed25519 seed. With the seed the agent keeps
	// its DID over restarts.
	Seed []byte

	Transport trans.Transport
}

type Agent struct {
	label    string
	did      string
	pubKey   ed25519.PublicKey
	privKey  ed25519.PrivateKey
	endpoint string

	tr     trans.Transport
	events *bus.Bus

	// lk serializes the read-modify-write of our PSMs and reps.
	lk sync.Mutex

	registry *registry
}

// New creates the agent with the fresh did:key. The caller must connect the
// agent to the inbound transport, e.g. trans.Loopback.Register.
func New(cfg Config) (a *Agent, err error) {
	defer err2.Handle(&err, "new agent %s", cfg.Label)

	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: transport is missing", ErrInvalid)
	}
	var (
		pub  ed25519.PublicKey
		priv ed25519.PrivateKey
	)
	if cfg.Seed != nil {
		if len(cfg.Seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: seed must be %d bytes",
				ErrInvalid, ed25519.SeedSize)
		}
		priv = ed25519.NewKeyFromSeed(cfg.Seed)
		pub = priv.Public().(ed25519.PublicKey)
	} else {
		pub, priv = try.To2(ed25519.GenerateKey(rand.Reader))
	}
	did, _ := fingerprint.CreateDIDKey(pub)
	glog.V(1).Infof("agent %s: %s at %s", cfg.Label, did, cfg.Endpoint)

	return &Agent{
		label:    cfg.Label,
		did:      did,
		pubKey:   pub,
		privKey:  priv,
		endpoint: cfg.Endpoint,
		tr:       cfg.Transport,
		events:   bus.New(cfg.Label),
		registry: newRegistry(),
	}, nil
}

func (a *Agent) DID() string {
	return a.did
}

func (a *Agent) Label() string {
	return a.label
}

func (a *Agent) Endpoint() string {
	return a.endpoint
}

// Events returns the agent's event bus.
func (a *Agent) Events() *bus.Bus {
	return a.events
}

func (a *Agent) key(handle string) psm.StateKey {
	return psm.StateKey{DID: a.did, Nonce: handle}
}

// Query returns the exchange record by the handle. Errors wrap
// storage.ErrDataNotFound if the agent doesn't have the exchange.
func (a *Agent) Query(_ context.Context, kind psm.Kind, handle string) (*psm.PSM, error) {
	return psm.FindPSM(kind, a.key(handle))
}

// Receive verifies the message and starts to process it in the background.
func (a *Agent) Receive(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "%s receive", a.label)

	try.To(msg.Verify())
	go a.handle(msg)
	return nil
}

func (a *Agent) handle(msg *didcomm.Message) {
	defer err2.Catch(err2.Err(func(err error) {
		glog.Errorf("%s: %s handling error: %v", a.label, msg.Type, err)
	}))

	glog.V(3).Infof("%s: <- %s thread: %s", a.label, msg.Type, msg.ThreadID())

	switch msg.Type {
	case didcomm.ConnectionRequest:
		try.To(a.onConnectionRequest(msg))
	case didcomm.ConnectionResponse:
		try.To(a.onConnectionResponse(msg))
	case didcomm.ConnectionComplete:
		try.To(a.onConnectionComplete(msg))
	case didcomm.CredentialOffer:
		try.To(a.onCredentialOffer(msg))
	case didcomm.CredentialRequest:
		try.To(a.onCredentialRequest(msg))
	case didcomm.CredentialIssue:
		try.To(a.onCredentialIssue(msg))
	case didcomm.PresentationRequest:
		try.To(a.onPresentationRequest(msg))
	case didcomm.Presentation:
		try.To(a.onPresentation(msg))
	case didcomm.PresentationAck:
		try.To(a.onPresentationAck(msg))
	default:
		glog.Warningf("%s: unknown message type %s", a.label, msg.Type)
	}
}

// send signs and sends the protocol message.
func (a *Agent) send(endpoint, t, thID string, body interface{}) error {
	return a.sendContext(context.Background(), endpoint, t, thID, body)
}

func (a *Agent) sendContext(
	ctx context.Context,
	endpoint, t, thID string,
	body interface{},
) (
	err error,
) {
	defer err2.Handle(&err, "send %s", t)

	msg := didcomm.NewMessage(utils.UUID(), t, thID, a.did, body)
	msg.Sign(a.privKey)

	ctx, cancel := context.WithTimeout(ctx, utils.Settings.Timeout())
	defer cancel()

	glog.V(3).Infof("%s: -> %s thread: %s", a.label, t, thID)
	return a.tr.Send(ctx, endpoint, msg)
}

// start creates the new PSM for the handle, saves the rep if given, and
// publishes the first state.
func (a *Agent) start(
	kind psm.Kind,
	handle string,
	startedByUs bool,
	connID string,
	first psm.SubState,
	rep psm.Rep,
) (
	p *psm.PSM,
	err error,
) {
	defer err2.Handle(&err, "start %s", kind)

	a.lk.Lock()
	if _, err := psm.GetPSM(a.key(handle)); err == nil {
		a.lk.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, handle)
	}
	p = &psm.PSM{
		Key:         a.key(handle),
		Kind:        kind,
		StartedByUs: startedByUs,
		ConnID:      connID,
	}
	err = a.save(p, first, rep)
	a.lk.Unlock()
	try.To(err)

	a.publish(p)
	return p, nil
}

// step moves the existing PSM to the next state. If expect is given the
// current state must be one of them. Update can modify the PSM and return
// the rep to save.
func (a *Agent) step(
	kind psm.Kind,
	handle string,
	next psm.SubState,
	expect []psm.SubState,
	update func(p *psm.PSM) (psm.Rep, error),
) (
	p *psm.PSM,
	err error,
) {
	defer err2.Handle(&err, "step %s to %s", kind, next)

	a.lk.Lock()
	p, err = a.stepLocked(kind, handle, next, expect, update)
	a.lk.Unlock()
	try.To(err)

	a.publish(p)
	return p, nil
}

func (a *Agent) stepLocked(
	kind psm.Kind,
	handle string,
	next psm.SubState,
	expect []psm.SubState,
	update func(p *psm.PSM) (psm.Rep, error),
) (
	p *psm.PSM,
	err error,
) {
	defer err2.Handle(&err)

	p = try.To1(psm.FindPSM(kind, a.key(handle)))
	if len(expect) > 0 && !lo.Contains(expect, p.Sub()) {
		return nil, fmt.Errorf("%w: %s is %s", ErrState, handle, p.Sub())
	}
	var rep psm.Rep
	if update != nil {
		rep = try.To1(update(p))
	}
	try.To(a.save(p, next, rep))
	return p, nil
}

func (a *Agent) save(p *psm.PSM, next psm.SubState, rep psm.Rep) (err error) {
	defer err2.Handle(&err)

	try.To(p.Advance(next))
	if rep != nil {
		try.To(psm.AddRep(rep))
	}
	return psm.AddPSM(p)
}

func (a *Agent) publish(p *psm.PSM) {
	snapshot := *p
	snapshot.States = append([]psm.State(nil), p.States...)
	a.events.Publish(bus.Event{
		Kind:   p.Kind,
		Handle: p.Key.Nonce,
		State:  p.Sub(),
		Record: &snapshot,
	})
}
