package psm

import (
	"errors"
	"fmt"
	"time"

	"github.com/findy-network/findy-common-go/dto"
)

// Kind is the exchange kind, i.e. the Aries protocol the PSM runs.
type Kind uint

const (
	KindConnection Kind = 1 + iota
	KindIssueCredential
	KindPresentProof
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindIssueCredential:
		return "issue-credential"
	case KindPresentProof:
		return "present-proof"
	default:
		return "unknown"
	}
}

// SubState is the enumeration of the exchange states. Each Kind uses its own
// subset, see order. Completed and Done are the terminal success states.
// Failure is always timeout which isn't recorded to the PSM.
type SubState uint

const (
	Invited SubState = 0x01 << iota
	Requested
	Completed
	OfferSent
	OfferReceived
	RequestSent
	RequestReceived
	Accepted
	Done
)

func (ss SubState) String() string {
	switch ss {
	case Invited:
		return "Invited"
	case Requested:
		return "Requested"
	case Completed:
		return "Completed"
	case OfferSent:
		return "OfferSent"
	case OfferReceived:
		return "OfferReceived"
	case RequestSent:
		return "RequestSent"
	case RequestReceived:
		return "RequestReceived"
	case Accepted:
		return "Accepted"
	case Done:
		return "Done"
	default:
		return "Unknown State"
	}
}

func (ss SubState) IsReady() bool {
	return ss&(Completed|Done) != 0
}

// order tells the linear state order of the each kind. Initiator and
// responder share the order, but they skip each other's states, e.g. issuer
// goes OfferSent -> Accepted -> Done.
var order = map[Kind][]SubState{
	KindConnection:      {Invited, Requested, Completed},
	KindIssueCredential: {OfferSent, OfferReceived, Accepted, Done},
	KindPresentProof:    {RequestSent, RequestReceived, Accepted, Done},
}

func (k Kind) index(ss SubState) int {
	for i, s := range order[k] {
		if s == ss {
			return i
		}
	}
	return -1
}

// ErrTransition is returned when the state machine is asked to go backwards
// or to state which doesn't belong to its kind.
var ErrTransition = errors.New("illegal state transition")

type StateKey struct {
	DID   string
	Nonce string
}

func (key StateKey) Data() []byte {
	return []byte(key.DID + "|" + key.Nonce)
}

func (key StateKey) String() string {
	return key.DID + "|" + key.Nonce
}

type State struct {
	Timestamp int64
	Sub       SubState
}

// PSM is Protocol State Machine that works in event sourcing principle, i.e.
// every state transition is saved to its States field.
type PSM struct {
	// Key is the primary key of the protocol state machine: it's pointed by
	// agent's DID and the exchange handle, which is the thread ID of the
	// protocol. Both ends use the same handle.
	Key StateKey

	Kind Kind

	// StartedByUs tells if our agent is the one who sent the first protocol
	// msg.
	StartedByUs bool

	// ConnID is our end's connection ID. For the connection protocol it's
	// set when the pairwise is created.
	ConnID string

	// States has all of the state history of this PSM in timestamp order
	States []State
}

func NewPSM(d []byte) *PSM {
	p := &PSM{}
	dto.FromGOB(d, p)
	return p
}

func (p *PSM) Data() []byte {
	return dto.ToGOB(p)
}

func (p *PSM) IsReady() bool {
	if lastState := p.LastState(); lastState != nil {
		return lastState.Sub.IsReady()
	}
	return false
}

func (p *PSM) Timestamp() int64 {
	if state := p.LastState(); state != nil {
		return state.Timestamp
	}
	return 0
}

func (p *PSM) FirstState() *State {
	if len(p.States) > 0 {
		return &p.States[0]
	}
	return nil
}

func (p *PSM) LastState() *State {
	sCount := len(p.States)
	if sCount > 0 {
		return &p.States[sCount-1]
	}
	return nil
}

// Sub returns the current sub state or zero if the PSM has no states.
func (p *PSM) Sub() SubState {
	if state := p.LastState(); state != nil {
		return state.Sub
	}
	return 0
}

// Advance moves the machine to the next state. The states must move forward
// in the order of the kind.
func (p *PSM) Advance(next SubState) error {
	ni := p.Kind.index(next)
	if ni < 0 {
		return fmt.Errorf("%w: %s for %s", ErrTransition, next, p.Kind)
	}
	if last := p.LastState(); last != nil && p.Kind.index(last.Sub) >= ni {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, last.Sub, next)
	}
	p.States = append(p.States, State{
		Timestamp: time.Now().UnixNano(),
		Sub:       next,
	})
	return nil
}
